package reservation

import "github.com/sanosuguru/student-housing-reservation/internal/pkg/apperr"

// Reservation ドメインのエラー定義
var (
	ErrReservationNotFound         = apperr.NotFound("予約が見つかりません")
	ErrTargetIDRequired            = apperr.InvalidArgument("宿泊施設IDは必須です")
	ErrUserIDRequired              = apperr.InvalidArgument("ユーザーIDは必須です")
	ErrStartDateRequired           = apperr.InvalidArgument("開始日は必須です")
	ErrEndDateRequired             = apperr.InvalidArgument("終了日は必須です")
	ErrInvalidDate                 = apperr.InvalidArgument("日付はYYYY-MM-DD形式である必要があります")
	ErrInvalidDateRange            = apperr.InvalidArgument("終了日は開始日より後である必要があります")
	ErrStartDateInPast             = apperr.InvalidArgument("開始日を過去の日付にすることはできません")
	ErrInvalidPrice                = apperr.InvalidArgument("料金は0以上である必要があります")
	ErrInvalidStatus               = apperr.InvalidArgument("無効な予約状態です（pending, confirmed, canceled, completed, rejected）")
	ErrInvalidPaymentStatus        = apperr.InvalidArgument("無効な支払い状態です（pending, paid, refunded）")
	ErrDateRangeConflict           = apperr.Conflict("指定期間には既に予約が存在します")
	ErrConcurrentModification      = apperr.Conflict("予約が同時に更新されました。再度お試しください")
	ErrTransitionForbidden         = apperr.Forbidden("この予約をこの状態に更新する権限がありません")
	ErrNotReservationOwner         = apperr.Forbidden("この予約を操作する権限がありません")
	ErrNotTargetOwner              = apperr.Forbidden("宿泊施設の所有者のみが操作できます")
	ErrReservationNotPending       = apperr.InvalidState("保留中の予約のみキャンセルできます")
	ErrInvalidPaymentTransition    = apperr.InvalidState("この支払い状態への変更はできません")
	ErrPaymentRequiresConfirmation = apperr.InvalidState("確定済みの予約のみ支払い済みにできます")
)
