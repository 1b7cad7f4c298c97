package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/sanosuguru/student-housing-reservation/internal/domain/target"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/apperr"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/logger"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/metrics"
)

const maxBodySize = 1 << 20

// Config は外部サービスクライアントの設定
type Config struct {
	BaseURL     string
	Resource    string // accommodations / events
	ServiceName string
	Timeout     time.Duration

	// 連続失敗回数がこの値を超えるとサーキットが開く
	BreakerMaxFailures uint32
	// サーキットが開いてから半開状態になるまでの時間
	BreakerOpenTimeout time.Duration
}

// DefaultConfig は宿泊施設サービス向けのデフォルト設定を返す
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:            baseURL,
		Resource:           "accommodations",
		ServiceName:        "accommodation-service",
		Timeout:            5 * time.Second,
		BreakerMaxFailures: 2,
		BreakerOpenTimeout: 10 * time.Second,
	}
}

var errCallerDone = errors.New("呼び出し元のリクエストが終了しました")

// Client はHTTP経由で予約対象を取得する target.Fetcher の実装
type Client struct {
	cfg        Config
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
	metrics    *metrics.Metrics
}

// NewClient は新しいクライアントを作成する
func NewClient(cfg Config, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Resource == "" {
		cfg.Resource = "accommodations"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = cfg.Resource + "-service"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    m,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.ServiceName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > cfg.BreakerMaxFailures
		},
		// 404 は相手サービスが正常に応答した結果として扱う
		// 呼び出し元の切断・期限切れは相手サービスの障害として数えない
		IsSuccessful: func(err error) bool {
			return err == nil || apperr.Is(err, apperr.KindNotFound) || errors.Is(err, errCallerDone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("サーキットブレーカーの状態が変化しました",
				zap.String("remote_service", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// FetchTarget は予約対象を取得する
func (c *Client) FetchTarget(ctx context.Context, id string) (*target.Target, error) {
	start := time.Now()

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.fetch(ctx, id)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = target.ErrUnavailable(c.cfg.ServiceName, err)
	}

	c.metrics.ObserveRemote(c.cfg.ServiceName, outcomeOf(err), time.Since(start).Seconds())
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			logger.FromContext(ctx).Warn("外部サービスの呼び出しに失敗しました",
				zap.String("remote_service", c.cfg.ServiceName),
				zap.String("target_id", id),
				zap.Error(err),
			)
		}
		return nil, err
	}
	return result.(*target.Target), nil
}

func (c *Client) fetch(parent context.Context, id string) (*target.Target, error) {
	ctx, cancel := context.WithTimeout(parent, c.cfg.Timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, c.cfg.Resource, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperr.Internal(err, "リクエストの作成に失敗しました")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// 接続拒否・名前解決失敗・タイムアウトはすべて利用不可として扱う
		return nil, c.transportError(parent, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.transportError(parent, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, target.ErrNotFound(id)
	case resp.StatusCode != http.StatusOK:
		return nil, target.ErrUpstream(c.cfg.ServiceName, fmt.Sprintf("status %d", resp.StatusCode))
	}

	return decodeTarget(c.cfg.ServiceName, id, body)
}

// transportError は通信エラーを利用不可エラーに変換する
// 呼び出し元のコンテキストが先に終了していた場合は errCallerDone を含める
func (c *Client) transportError(parent context.Context, err error) error {
	if parent.Err() != nil {
		err = fmt.Errorf("%w: %w", errCallerDone, parent.Err())
	}
	return target.ErrUnavailable(c.cfg.ServiceName, err)
}

// targetPayload は宿泊施設・イベントサービスの応答
type targetPayload struct {
	ID             json.RawMessage `json:"id"`
	ProprietarioID json.RawMessage `json:"proprietario_id"`
	OrganizadorID  json.RawMessage `json:"organizador_id"`
	PrecoBase      json.RawMessage `json:"precoBase"`
	Preco          json.RawMessage `json:"preco"`
	Nome           string          `json:"nome"`
}

func decodeTarget(service, id string, body []byte) (*target.Target, error) {
	var p targetPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, target.ErrUpstream(service, "不正なJSON")
	}

	ownerID := rawString(p.ProprietarioID)
	if ownerID == "" {
		ownerID = rawString(p.OrganizadorID)
	}
	if ownerID == "" {
		return nil, target.ErrUpstream(service, "所有者IDがありません")
	}

	priceRaw := p.PrecoBase
	if isAbsent(priceRaw) {
		priceRaw = p.Preco
	}
	price, ok := rawFloat(priceRaw)
	if !ok || price < 0 {
		return nil, target.ErrUpstream(service, "料金が不正です")
	}

	t := &target.Target{
		ID:        rawString(p.ID),
		OwnerID:   ownerID,
		BasePrice: price,
		Name:      p.Nome,
	}
	if t.ID == "" {
		t.ID = id
	}
	return t, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// rawString は数値・文字列どちらのIDも文字列として返す
func rawString(raw json.RawMessage) string {
	if isAbsent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// rawFloat は数値または数値文字列（DECIMAL列のシリアライズ結果）を返す
func rawFloat(raw json.RawMessage) (float64, bool) {
	if isAbsent(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func outcomeOf(err error) string {
	switch apperr.KindOf(err) {
	case "":
		return "ok"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindUnavailable:
		if errors.Is(err, errCallerDone) {
			return "canceled"
		}
		return "unavailable"
	case apperr.KindUpstream:
		return "upstream_error"
	default:
		return "error"
	}
}
