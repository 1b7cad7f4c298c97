package target

import (
	"context"
	"fmt"

	"github.com/sanosuguru/student-housing-reservation/internal/pkg/apperr"
)

// Target は予約対象（宿泊施設）の外部サービス上のエンティティ
// 予約サービスはデータベースを共有しないため、作成時に外部サービスから取得する
type Target struct {
	ID        string
	OwnerID   string
	BasePrice float64 // 1泊あたりの料金
	Name      string
}

// IsOwnedBy は指定ユーザーが所有者かを返す
func (t *Target) IsOwnedBy(userID string) bool {
	return userID != "" && t.OwnerID == userID
}

// Fetcher は外部サービスから予約対象を取得する
type Fetcher interface {
	FetchTarget(ctx context.Context, id string) (*Target, error)
}

// ErrNotFound は予約対象が存在しない場合のエラーを返す
func ErrNotFound(id string) *apperr.Error {
	return apperr.NotFound(fmt.Sprintf("宿泊施設が見つかりません: %s", id))
}

// ErrUnavailable は外部サービスに接続できない場合のエラーを返す
func ErrUnavailable(service string, cause error) *apperr.Error {
	return apperr.Wrap(cause, apperr.KindUnavailable, fmt.Sprintf("%s が利用できません", service))
}

// ErrUpstream は外部サービスが想定外の応答を返した場合のエラーを返す
func ErrUpstream(service, detail string) *apperr.Error {
	return apperr.New(apperr.KindUpstream, fmt.Sprintf("%s から不正な応答: %s", service, detail))
}
