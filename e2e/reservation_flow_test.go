package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/student-housing-reservation/internal/pkg/auth"
)

// Request はHTTPリクエストを実行
func (s *TestServer) Request(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody []byte
	if body != nil {
		reqBody, _ = json.Marshal(body)
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func tokenFor(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := tokens.NewToken(auth.Identity{UserID: userID, Role: role}, time.Hour)
	require.NoError(t, err)
	return token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func createBody(start, end string) map[string]interface{} {
	return map[string]interface{}{
		"target_id":  roomID,
		"start_date": start,
		"end_date":   end,
	}
}

// TestE2E_HealthCheck はヘルスチェックをテスト
func TestE2E_HealthCheck(t *testing.T) {
	server := getTestServer(t)

	rec := server.Request(http.MethodGet, "/health", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "ok", resp["database"])
}

// TestE2E_CompleteReservationJourney は作成から完了までの一連の流れをテスト
func TestE2E_CompleteReservationJourney(t *testing.T) {
	server := getTestServer(t)

	student := tokenFor(t, "7", "estudante")
	owner := tokenFor(t, roomOwnerID, "proprietario")
	var reservationID string

	t.Run("予約作成", func(t *testing.T) {
		body := createBody("2030-03-01", "2030-03-15")
		body["notes"] = "到着は夜になります"

		rec := server.Request(http.MethodPost, "/reservations", body, student)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		resp := decode(t, rec)
		res := resp["reservation"].(map[string]interface{})
		reservationID = res["id"].(string)
		assert.NotEmpty(t, reservationID)
		assert.Equal(t, "pending", res["status"])
		assert.Equal(t, "pending", res["payment_status"])
		assert.Equal(t, "7", res["user_id"])
		assert.Equal(t, float64(6300), res["total_price"])

		breakdown := resp["breakdown"].(map[string]interface{})
		assert.Equal(t, "Quarto T1 Centro", breakdown["accommodation"])
		assert.Equal(t, float64(roomBasePrice), breakdown["price_per_night"])
		assert.Equal(t, float64(14), breakdown["nights"])
	})

	t.Run("自分の予約一覧に表示される", func(t *testing.T) {
		rec := server.Request(http.MethodGet, "/reservations/minhas", nil, student)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode(t, rec)
		data := resp["data"].([]interface{})
		require.Len(t, data, 1)
		assert.Equal(t, reservationID, data[0].(map[string]interface{})["id"])
	})

	t.Run("施設所有者が施設の予約一覧を取得", func(t *testing.T) {
		rec := server.Request(http.MethodGet, "/reservations/alojamento/"+roomID, nil, owner)
		require.Equal(t, http.StatusOK, rec.Code)

		resp := decode(t, rec)
		pagination := resp["pagination"].(map[string]interface{})
		assert.Equal(t, float64(1), pagination["total"])
	})

	t.Run("第三者は予約を参照できない", func(t *testing.T) {
		stranger := tokenFor(t, "99", "estudante")
		rec := server.Request(http.MethodGet, "/reservations/"+reservationID, nil, stranger)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("施設所有者が予約を確定", func(t *testing.T) {
		rec := server.Request(http.MethodPatch, "/reservations/"+reservationID+"/status",
			map[string]string{"status": "confirmed"}, owner)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		res := decode(t, rec)["reservation"].(map[string]interface{})
		assert.Equal(t, "confirmed", res["status"])
		assert.Equal(t, float64(2), res["version"])
	})

	t.Run("確定済みの予約は予約者がキャンセルできない", func(t *testing.T) {
		rec := server.Request(http.MethodDelete, "/reservations/"+reservationID, nil, student)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("旧形式のフィールドで支払い済みにする", func(t *testing.T) {
		rec := server.Request(http.MethodPatch, "/reservations/"+reservationID+"/pagamento",
			map[string]string{"pagamento_status": "paid"}, owner)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		res := decode(t, rec)["reservation"].(map[string]interface{})
		assert.Equal(t, "paid", res["payment_status"])
	})

	t.Run("施設所有者が予約を完了", func(t *testing.T) {
		rec := server.Request(http.MethodPatch, "/reservations/"+reservationID+"/status",
			map[string]string{"status": "completed"}, owner)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "completed", decode(t, rec)["reservation"].(map[string]interface{})["status"])
	})
}

// TestE2E_CancelPendingReservation は保留中の予約のキャンセルで日程が解放されることをテスト
func TestE2E_CancelPendingReservation(t *testing.T) {
	server := getTestServer(t)

	student := tokenFor(t, "7", "estudante")
	other := tokenFor(t, "8", "estudante")

	rec := server.Request(http.MethodPost, "/reservations", createBody("2030-05-01", "2030-05-10"), student)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode(t, rec)["reservation"].(map[string]interface{})["id"].(string)

	t.Run("他人の予約はキャンセルできない", func(t *testing.T) {
		rec := server.Request(http.MethodDelete, "/reservations/"+id, nil, other)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("本人がキャンセル", func(t *testing.T) {
		rec := server.Request(http.MethodDelete, "/reservations/"+id, nil, student)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, decode(t, rec)["message"])
	})

	t.Run("キャンセル後は同じ日程を予約できる", func(t *testing.T) {
		rec := server.Request(http.MethodPost, "/reservations", createBody("2030-05-01", "2030-05-10"), other)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

// TestE2E_OverlapRules は日程の重複判定をテスト
func TestE2E_OverlapRules(t *testing.T) {
	server := getTestServer(t)

	student := tokenFor(t, "7", "estudante")
	rec := server.Request(http.MethodPost, "/reservations", createBody("2030-06-10", "2030-06-20"), student)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name       string
		start, end string
		wantStatus int
	}{
		{"前半が重なる", "2030-06-05", "2030-06-11", http.StatusConflict},
		{"内側に含まれる", "2030-06-12", "2030-06-15", http.StatusConflict},
		{"チェックアウト日に開始", "2030-06-20", "2030-06-25", http.StatusCreated},
		{"チェックイン日に終了", "2030-06-01", "2030-06-10", http.StatusCreated},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := tokenFor(t, fmt.Sprintf("%d", 100+i), "estudante")
			rec := server.Request(http.MethodPost, "/reservations", createBody(tt.start, tt.end), token)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}
}

// TestE2E_ConcurrentReservations は同じ日程への同時予約で1件だけ成功することをテスト
func TestE2E_ConcurrentReservations(t *testing.T) {
	server := getTestServer(t)

	const workers = 10
	var (
		wg        sync.WaitGroup
		created   int32
		conflicts int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			token, err := tokens.NewToken(auth.Identity{UserID: fmt.Sprintf("%d", 200+n), Role: "estudante"}, time.Hour)
			if err != nil {
				return
			}
			rec := server.Request(http.MethodPost, "/reservations", createBody("2030-07-01", "2030-07-08"), token)
			switch rec.Code {
			case http.StatusCreated:
				atomic.AddInt32(&created, 1)
			case http.StatusConflict:
				atomic.AddInt32(&conflicts, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), created)
	assert.Equal(t, int32(workers-1), conflicts)

	var count int
	require.NoError(t, testDB.Get(&count, "SELECT COUNT(*) FROM reservations WHERE target_id = $1", roomID))
	assert.Equal(t, 1, count)
}

// TestE2E_Authorization は認証と役割の検証をテスト
func TestE2E_Authorization(t *testing.T) {
	server := getTestServer(t)

	t.Run("トークンなし", func(t *testing.T) {
		rec := server.Request(http.MethodGet, "/reservations/minhas", nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("施設所有者は予約を作成できない", func(t *testing.T) {
		owner := tokenFor(t, roomOwnerID, "proprietario")
		rec := server.Request(http.MethodPost, "/reservations", createBody("2030-08-01", "2030-08-05"), owner)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("存在しない施設", func(t *testing.T) {
		student := tokenFor(t, "7", "estudante")
		body := createBody("2030-08-01", "2030-08-05")
		body["target_id"] = "999"
		rec := server.Request(http.MethodPost, "/reservations", body, student)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("日付の形式が不正", func(t *testing.T) {
		student := tokenFor(t, "7", "estudante")
		rec := server.Request(http.MethodPost, "/reservations", createBody("01/08/2030", "2030-08-05"), student)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestE2E_AccommodationServiceDown は宿泊施設サービス停止時に503を返すことをテスト
func TestE2E_AccommodationServiceDown(t *testing.T) {
	getTestServer(t)

	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	server := newTestServer(url)
	student := tokenFor(t, "7", "estudante")

	rec := server.Request(http.MethodPost, "/reservations", createBody("2030-09-01", "2030-09-05"), student)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decode(t, rec)["kind"])

	var count int
	require.NoError(t, testDB.Get(&count, "SELECT COUNT(*) FROM reservations"))
	assert.Equal(t, 0, count)
}
