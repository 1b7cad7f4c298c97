package reservation

import (
	"math"
	"strings"
	"time"
)

// Status は予約の状態を表す
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
)

// ActiveStatuses は重複判定の対象となる状態
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

// 旧サービスが使っていたポルトガル語の値
var legacyStatuses = map[string]Status{
	"pendente":   StatusPending,
	"confirmado": StatusConfirmed,
	"cancelado":  StatusCanceled,
	"concluido":  StatusCompleted,
	"rejeitado":  StatusRejected,
}

// ParseStatus は文字列を予約状態に変換する
func ParseStatus(s string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if st := Status(v); st.IsValid() {
		return st, nil
	}
	if st, ok := legacyStatuses[v]; ok {
		return st, nil
	}
	return "", ErrInvalidStatus
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCanceled, StatusCompleted, StatusRejected:
		return true
	}
	return false
}

// IsActive は重複判定の対象となる状態かを返す
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// IsTerminal はこれ以上遷移できない状態かを返す
func (s Status) IsTerminal() bool {
	return s == StatusCanceled || s == StatusCompleted || s == StatusRejected
}

// PaymentStatus は支払い状態を表す
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

var legacyPaymentStatuses = map[string]PaymentStatus{
	"pendente":    PaymentPending,
	"pago":        PaymentPaid,
	"reembolsado": PaymentRefunded,
}

// ParsePaymentStatus は文字列を支払い状態に変換する
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if ps := PaymentStatus(v); ps.IsValid() {
		return ps, nil
	}
	if ps, ok := legacyPaymentStatuses[v]; ok {
		return ps, nil
	}
	return "", ErrInvalidPaymentStatus
}

func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentPending, PaymentPaid, PaymentRefunded:
		return true
	}
	return false
}

// Reservation は宿泊予約エンティティを表す
type Reservation struct {
	ID            string
	TargetID      string
	UserID        string
	StartDate     time.Time
	EndDate       time.Time
	Status        Status
	PaymentStatus PaymentStatus
	TotalPrice    float64
	Notes         string
	Version       int // 楽観的ロック用
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewReservation は新しい予約を作成する
// 料金は作成時点の1泊料金から計算したスナップショット
func NewReservation(targetID, userID string, period DateRange, pricePerNight float64, notes string) *Reservation {
	now := time.Now()
	return &Reservation{
		TargetID:      targetID,
		UserID:        userID,
		StartDate:     period.Start,
		EndDate:       period.End,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		TotalPrice:    CalculateTotalPrice(period.Nights(), pricePerNight),
		Notes:         strings.TrimSpace(notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// CalculateTotalPrice は宿泊数×1泊料金を返す（小数点以下2桁に丸める）
func CalculateTotalPrice(nights int, pricePerNight float64) float64 {
	return math.Round(float64(nights)*pricePerNight*100) / 100
}

// Period は宿泊期間を返す
func (r *Reservation) Period() DateRange {
	return DateRange{Start: r.StartDate, End: r.EndDate}
}

// IsOwnedBy は予約者本人かを返す
func (r *Reservation) IsOwnedBy(userID string) bool {
	return userID != "" && r.UserID == userID
}

func (r *Reservation) IsPending() bool {
	return r.Status == StatusPending
}

// Validate は予約の検証を行う
func (r *Reservation) Validate() error {
	if r.TargetID == "" {
		return ErrTargetIDRequired
	}
	if r.UserID == "" {
		return ErrUserIDRequired
	}
	if _, err := NewDateRange(r.StartDate, r.EndDate); err != nil {
		return err
	}
	if r.TotalPrice < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// ApplyStatus は検証済みの状態遷移を反映する
func (r *Reservation) ApplyStatus(to Status) {
	r.Status = to
	r.UpdatedAt = time.Now()
}

// ApplyPaymentStatus は検証済みの支払い状態を反映する
func (r *Reservation) ApplyPaymentStatus(to PaymentStatus) {
	r.PaymentStatus = to
	r.UpdatedAt = time.Now()
}

// Cancel は予約者本人によるキャンセルを行う
func (r *Reservation) Cancel(userID string) error {
	if !r.IsOwnedBy(userID) {
		return ErrNotReservationOwner
	}
	if !r.IsPending() {
		return ErrReservationNotPending
	}
	r.ApplyStatus(StatusCanceled)
	return nil
}
