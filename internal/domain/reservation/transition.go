package reservation

// Relation は操作者と予約の関係
type Relation struct {
	OwnsReservation bool
	OwnsTarget      bool
}

type transition struct {
	from Status
	to   Status
}

// 予約者本人に許可される遷移
var renterTransitions = map[transition]bool{
	{StatusPending, StatusCanceled}: true,
}

// 宿泊施設の所有者に許可される遷移
var targetOwnerTransitions = map[transition]bool{
	{StatusPending, StatusConfirmed}:   true,
	{StatusPending, StatusRejected}:    true,
	{StatusConfirmed, StatusCompleted}: true,
}

// RenterMay は予約者本人が from から to へ遷移できるかを返す
func RenterMay(from, to Status) bool {
	return renterTransitions[transition{from, to}]
}

// TargetOwnerMay は宿泊施設の所有者が from から to へ遷移できるかを返す
// 所有者かどうかの判定には外部サービスへの問い合わせが必要なため、
// 呼び出し側はこれが true の場合のみ問い合わせる
func TargetOwnerMay(from, to Status) bool {
	return targetOwnerTransitions[transition{from, to}]
}

// CheckTransition は状態遷移の可否を判定する
// 遷移先の値が不正な場合は権限判定より先に ErrInvalidStatus を返す
func CheckTransition(actor Actor, rel Relation, from, to Status) error {
	if !to.IsValid() {
		return ErrInvalidStatus
	}
	if actor.IsAdmin() {
		return nil
	}
	if rel.OwnsReservation && RenterMay(from, to) {
		return nil
	}
	if rel.OwnsTarget && TargetOwnerMay(from, to) {
		return nil
	}
	return ErrTransitionForbidden
}

// PaymentPolicy は支払い状態の遷移ルール
type PaymentPolicy struct {
	// RequireConfirmed が true の場合、確定済み（または完了）の予約のみ支払い済みにできる
	RequireConfirmed bool
}

var paymentTransitions = map[PaymentStatus]PaymentStatus{
	PaymentPending: PaymentPaid,
	PaymentPaid:    PaymentRefunded,
}

// Check は支払い状態の遷移可否を判定する
// 管理者にも同じ遷移ルールを適用する
func (p PaymentPolicy) Check(r *Reservation, to PaymentStatus) error {
	if !to.IsValid() {
		return ErrInvalidPaymentStatus
	}
	if next, ok := paymentTransitions[r.PaymentStatus]; !ok || next != to {
		return ErrInvalidPaymentTransition
	}
	if p.RequireConfirmed && to == PaymentPaid &&
		r.Status != StatusConfirmed && r.Status != StatusCompleted {
		return ErrPaymentRequiresConfirmation
	}
	return nil
}

// CanManagePayment は支払い状態を変更できる利用者かを返す
func CanManagePayment(actor Actor, ownsTarget bool) bool {
	return actor.IsAdmin() || ownsTarget
}
