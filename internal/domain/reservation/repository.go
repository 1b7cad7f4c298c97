package reservation

import (
	"context"

	"github.com/sanosuguru/student-housing-reservation/internal/domain/transaction"
)

// ListFilter は一覧取得の条件
type ListFilter struct {
	Status *Status
	Limit  int
	Offset int
}

// Repository は予約リポジトリのインターフェース
type Repository interface {
	// Create は新しい予約を作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, reservation *Reservation) error

	// GetByID はIDから予約を取得する
	GetByID(ctx context.Context, id string) (*Reservation, error)

	// ListByUser は予約者の予約一覧と総件数を作成日時の降順で取得する
	ListByUser(ctx context.Context, userID string, filter ListFilter) ([]*Reservation, int, error)

	// ListByTarget は宿泊施設の予約一覧と総件数を作成日時の降順で取得する
	ListByTarget(ctx context.Context, targetID string, filter ListFilter) ([]*Reservation, int, error)

	// FindOverlapping は期間が交差する可能性のある予約を取得する（トランザクション必須）
	FindOverlapping(ctx context.Context, tx transaction.Tx, targetID string, period DateRange, statuses []Status) ([]*Reservation, error)

	// Update は予約の状態を更新する（楽観的ロック、トランザクション必須）
	Update(ctx context.Context, tx transaction.Tx, reservation *Reservation) error
}
