package application

import (
	"context"
	"fmt"

	"github.com/sanosuguru/student-housing-reservation/internal/domain/reservation"
	"github.com/sanosuguru/student-housing-reservation/internal/domain/transaction"
)

// OverlapDetector は同一施設の有効な予約との期間重複を判定する
type OverlapDetector struct {
	repo reservation.Repository
}

func NewOverlapDetector(repo reservation.Repository) *OverlapDetector {
	return &OverlapDetector{repo: repo}
}

// HasConflict は period と重なる予約が statuses のいずれかの状態で存在するかを返す
// チェックアウト日と次のチェックイン日が同じ場合は重複としない
func (d *OverlapDetector) HasConflict(ctx context.Context, tx transaction.Tx, targetID string, period reservation.DateRange, statuses []reservation.Status) (bool, error) {
	candidates, err := d.repo.FindOverlapping(ctx, tx, targetID, period, statuses)
	if err != nil {
		return false, fmt.Errorf("重複チェックに失敗: %w", err)
	}

	active := make(map[reservation.Status]bool, len(statuses))
	for _, s := range statuses {
		active[s] = true
	}
	for _, c := range candidates {
		if active[c.Status] && c.Period().Overlaps(period) {
			return true, nil
		}
	}
	return false, nil
}
