package reservation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func period(t *testing.T, start, end string) DateRange {
	t.Helper()
	r, err := NewDateRange(date(t, start), date(t, end))
	require.NoError(t, err)
	return r
}

func createTestReservation(t *testing.T) *Reservation {
	t.Helper()
	r := NewReservation("target-1", "user-1", period(t, "2030-03-01", "2030-03-04"), 100, "  窓側希望  ")
	r.ID = "res-1"
	return r
}

func TestNewReservation(t *testing.T) {
	r := createTestReservation(t)

	require.NoError(t, r.Validate())
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, PaymentPending, r.PaymentStatus)
	assert.Equal(t, 300.0, r.TotalPrice)
	assert.Equal(t, "窓側希望", r.Notes)
	assert.Equal(t, 0, r.Version)
}

func TestReservation_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Reservation)
		want   error
	}{
		{name: "宿泊施設ID未指定", mutate: func(r *Reservation) { r.TargetID = "" }, want: ErrTargetIDRequired},
		{name: "予約者ID未指定", mutate: func(r *Reservation) { r.UserID = "" }, want: ErrUserIDRequired},
		{name: "開始日未指定", mutate: func(r *Reservation) { r.StartDate = time.Time{} }, want: ErrStartDateRequired},
		{name: "終了日が開始日と同じ", mutate: func(r *Reservation) { r.EndDate = r.StartDate }, want: ErrInvalidDateRange},
		{name: "負の料金", mutate: func(r *Reservation) { r.TotalPrice = -1 }, want: ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := createTestReservation(t)
			tt.mutate(r)
			assert.ErrorIs(t, r.Validate(), tt.want)
		})
	}
}

func TestCalculateTotalPrice(t *testing.T) {
	assert.Equal(t, 0.0, CalculateTotalPrice(3, 0))
	assert.Equal(t, 100.5, CalculateTotalPrice(1, 100.5))
	assert.Equal(t, 0.3, CalculateTotalPrice(3, 0.1))
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "pending", want: StatusPending},
		{in: " Confirmed ", want: StatusConfirmed},
		{in: "confirmado", want: StatusConfirmed},
		{in: "cancelado", want: StatusCanceled},
		{in: "concluido", want: StatusCompleted},
		{in: "rejeitado", want: StatusRejected},
		{in: "cancelada", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStatus(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePaymentStatus(t *testing.T) {
	got, err := ParsePaymentStatus("pago")
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, got)

	got, err = ParsePaymentStatus("refunded")
	require.NoError(t, err)
	assert.Equal(t, PaymentRefunded, got)

	_, err = ParsePaymentStatus("free")
	assert.ErrorIs(t, err, ErrInvalidPaymentStatus)
}

func TestStatus_Classification(t *testing.T) {
	assert.True(t, StatusPending.IsActive())
	assert.True(t, StatusConfirmed.IsActive())
	assert.False(t, StatusCanceled.IsActive())
	assert.True(t, StatusRejected.IsTerminal())
	assert.False(t, StatusConfirmed.IsTerminal())
}

func TestReservation_Cancel(t *testing.T) {
	t.Run("予約者本人はpendingの予約をキャンセルできる", func(t *testing.T) {
		r := createTestReservation(t)
		require.NoError(t, r.Cancel("user-1"))
		assert.Equal(t, StatusCanceled, r.Status)
	})

	t.Run("他人の予約はキャンセルできない", func(t *testing.T) {
		r := createTestReservation(t)
		assert.ErrorIs(t, r.Cancel("user-2"), ErrNotReservationOwner)
		assert.Equal(t, StatusPending, r.Status)
	})

	t.Run("確定済みの予約はキャンセルできない", func(t *testing.T) {
		r := createTestReservation(t)
		r.Status = StatusConfirmed
		assert.ErrorIs(t, r.Cancel("user-1"), ErrReservationNotPending)
		assert.Equal(t, StatusConfirmed, r.Status)
	})
}
