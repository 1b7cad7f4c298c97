package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sanosuguru/student-housing-reservation/internal/domain/reservation"
	"github.com/sanosuguru/student-housing-reservation/internal/domain/transaction"
)

const reservationColumns = `id, target_id, user_id, start_date, end_date, status, payment_status, total_price, notes, version, created_at, updated_at`

type reservationRow struct {
	ID            string         `db:"id"`
	TargetID      string         `db:"target_id"`
	UserID        string         `db:"user_id"`
	StartDate     time.Time      `db:"start_date"`
	EndDate       time.Time      `db:"end_date"`
	Status        string         `db:"status"`
	PaymentStatus string         `db:"payment_status"`
	TotalPrice    float64        `db:"total_price"`
	Notes         sql.NullString `db:"notes"`
	Version       int            `db:"version"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

var errTxRequired = errors.New("トランザクションが必要です")

type ReservationRepository struct{ db *sqlx.DB }

func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) Create(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlTx, err := txFrom(tx)
	if err != nil {
		return err
	}
	query := `INSERT INTO reservations (target_id, user_id, start_date, end_date, status, payment_status, total_price, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, version, created_at, updated_at`
	err = sqlTx.QueryRowxContext(ctx, query,
		res.TargetID, res.UserID,
		res.StartDate.Format(reservation.DateLayout), res.EndDate.Format(reservation.DateLayout),
		string(res.Status), string(res.PaymentStatus), res.TotalPrice, nullString(res.Notes),
	).Scan(&res.ID, &res.Version, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		if translated := translateError(err); translated != err {
			return translated
		}
		return fmt.Errorf("予約作成に失敗: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	// 不正な形式のIDは存在しない予約として扱う
	if _, err := uuid.Parse(id); err != nil {
		return nil, reservation.ErrReservationNotFound
	}
	var row reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reservation.ErrReservationNotFound
		}
		return nil, fmt.Errorf("予約取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *ReservationRepository) ListByUser(ctx context.Context, userID string, filter reservation.ListFilter) ([]*reservation.Reservation, int, error) {
	return r.list(ctx, "user_id", userID, filter)
}

func (r *ReservationRepository) ListByTarget(ctx context.Context, targetID string, filter reservation.ListFilter) ([]*reservation.Reservation, int, error) {
	return r.list(ctx, "target_id", targetID, filter)
}

// list は column（固定値のみ）で絞り込んだ一覧と総件数を返す
func (r *ReservationRepository) list(ctx context.Context, column, value string, filter reservation.ListFilter) ([]*reservation.Reservation, int, error) {
	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	where := ` WHERE ` + column + ` = $1 AND ($2::text IS NULL OR status = $2)`

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reservations`+where, value, status); err != nil {
		return nil, 0, fmt.Errorf("予約件数取得に失敗: %w", err)
	}
	if total == 0 {
		return []*reservation.Reservation{}, 0, nil
	}

	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations` + where + ` ORDER BY created_at DESC, id LIMIT $3 OFFSET $4`
	if err := r.db.SelectContext(ctx, &rows, query, value, status, filter.Limit, filter.Offset); err != nil {
		return nil, 0, fmt.Errorf("予約一覧取得に失敗: %w", err)
	}
	return toEntities(rows), total, nil
}

// FindOverlapping は期間が交差する候補をSQLで絞り込んで返す
// 半開区間の最終判定は呼び出し側で行う
func (r *ReservationRepository) FindOverlapping(ctx context.Context, tx transaction.Tx, targetID string, period reservation.DateRange, statuses []reservation.Status) ([]*reservation.Reservation, error) {
	sqlTx, err := txFrom(tx)
	if err != nil {
		return nil, err
	}
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	var rows []reservationRow
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE target_id = $1 AND status = ANY($2) AND start_date < $3 AND $4 < end_date
		ORDER BY start_date`
	err = sqlTx.SelectContext(ctx, &rows, query,
		targetID, pq.Array(values),
		period.End.Format(reservation.DateLayout), period.Start.Format(reservation.DateLayout),
	)
	if err != nil {
		if translated := translateError(err); translated != err {
			return nil, translated
		}
		return nil, fmt.Errorf("重複予約の検索に失敗: %w", err)
	}
	return toEntities(rows), nil
}

// Update は状態・支払い状態・備考を更新する
// 読み込み時のバージョンと一致しない場合は ErrConcurrentModification を返す
func (r *ReservationRepository) Update(ctx context.Context, tx transaction.Tx, res *reservation.Reservation) error {
	sqlTx, err := txFrom(tx)
	if err != nil {
		return err
	}
	query := `UPDATE reservations
		SET status = $1, payment_status = $2, notes = $3, updated_at = NOW(), version = version + 1
		WHERE id = $4 AND version = $5
		RETURNING version, updated_at`
	err = sqlTx.QueryRowxContext(ctx, query,
		string(res.Status), string(res.PaymentStatus), nullString(res.Notes), res.ID, res.Version,
	).Scan(&res.Version, &res.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return reservation.ErrConcurrentModification
		}
		if translated := translateError(err); translated != err {
			return translated
		}
		return fmt.Errorf("予約更新に失敗: %w", err)
	}
	return nil
}

func (row *reservationRow) toEntity() *reservation.Reservation {
	return &reservation.Reservation{
		ID:            row.ID,
		TargetID:      row.TargetID,
		UserID:        row.UserID,
		StartDate:     reservation.DateOf(row.StartDate),
		EndDate:       reservation.DateOf(row.EndDate),
		Status:        reservation.Status(row.Status),
		PaymentStatus: reservation.PaymentStatus(row.PaymentStatus),
		TotalPrice:    row.TotalPrice,
		Notes:         row.Notes.String,
		Version:       row.Version,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

func toEntities(rows []reservationRow) []*reservation.Reservation {
	result := make([]*reservation.Reservation, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ reservation.Repository = (*ReservationRepository)(nil)
