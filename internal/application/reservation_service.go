package application

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/student-housing-reservation/internal/domain/reservation"
	"github.com/sanosuguru/student-housing-reservation/internal/domain/target"
	"github.com/sanosuguru/student-housing-reservation/internal/domain/transaction"
	redisinfra "github.com/sanosuguru/student-housing-reservation/internal/infrastructure/redis"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/apperr"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/logger"
	"github.com/sanosuguru/student-housing-reservation/internal/pkg/metrics"
)

const (
	lockMaxRetries = 3
	lockRetryDelay = 100 * time.Millisecond

	msgTargetBusy = "この宿泊施設の予約を処理中です。再度お試しください"
)

// Options は予約サービスの動作設定
type Options struct {
	PaymentRequiresConfirmed bool
	DefaultPageSize          int
	MaxPageSize              int
	LockTTL                  time.Duration
}

func (o Options) withDefaults() Options {
	if o.DefaultPageSize <= 0 {
		o.DefaultPageSize = 10
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = 100
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 10 * time.Second
	}
	return o
}

type ReservationService struct {
	txManager   transaction.Manager
	repo        reservation.Repository
	targets     target.Fetcher
	detector    *OverlapDetector
	lockManager redisinfra.LockManagerInterface
	metrics     *metrics.Metrics
	payment     reservation.PaymentPolicy
	opts        Options
	now         func() time.Time
}

// NewReservationService は予約サービスを作成する
// lockManager と m は nil を許容する
func NewReservationService(txm transaction.Manager, repo reservation.Repository, targets target.Fetcher, lm redisinfra.LockManagerInterface, m *metrics.Metrics, opts Options) *ReservationService {
	opts = opts.withDefaults()
	return &ReservationService{
		txManager:   txm,
		repo:        repo,
		targets:     targets,
		detector:    NewOverlapDetector(repo),
		lockManager: lm,
		metrics:     m,
		payment:     reservation.PaymentPolicy{RequireConfirmed: opts.PaymentRequiresConfirmed},
		opts:        opts,
		now:         time.Now,
	}
}

// SetClock は現在時刻の取得方法を差し替える
func (s *ReservationService) SetClock(now func() time.Time) {
	s.now = now
}

type CreateReservationInput struct {
	Actor     reservation.Actor
	TargetID  string
	StartDate time.Time
	EndDate   time.Time
	Notes     string
}

// Breakdown は料金の内訳
type Breakdown struct {
	TargetName    string
	Nights        int
	PricePerNight float64
	Total         float64
}

type CreateResult struct {
	Reservation *reservation.Reservation
	Breakdown   Breakdown
}

// ListQuery は一覧取得の条件（Page は0始まり）
type ListQuery struct {
	Status   string
	Page     int
	PageSize int
}

// Page はページング済みの一覧
type Page struct {
	Items   []*reservation.Reservation
	Total   int
	Pages   int
	Current int
	Limit   int
}

// Create は予約を作成する
func (s *ReservationService) Create(ctx context.Context, input CreateReservationInput) (*CreateResult, error) {
	result, err := s.create(ctx, input)
	s.metrics.ObserveReservation(resultLabel(err))
	return result, err
}

func (s *ReservationService) create(ctx context.Context, input CreateReservationInput) (*CreateResult, error) {
	log := logger.FromContext(ctx)

	targetID := strings.TrimSpace(input.TargetID)
	if targetID == "" {
		return nil, reservation.ErrTargetIDRequired
	}
	if input.Actor.ID == "" {
		return nil, reservation.ErrUserIDRequired
	}
	period, err := reservation.NewDateRange(input.StartDate, input.EndDate)
	if err != nil {
		return nil, err
	}
	if period.StartsBefore(s.now().UTC()) {
		return nil, reservation.ErrStartDateInPast
	}

	// 施設の存在確認（外部サービス）。失敗時は何も書き込まない
	t, err := s.targets.FetchTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}

	res := reservation.NewReservation(targetID, input.Actor.ID, period, t.BasePrice, input.Notes)
	if err := res.Validate(); err != nil {
		return nil, err
	}

	// 同一施設への作成をレプリカ間で直列化する
	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLockWithRetry(ctx, redisinfra.TargetLockKey(targetID), s.opts.LockTTL, lockMaxRetries, lockRetryDelay)
		switch {
		case errors.Is(err, redisinfra.ErrLockNotAcquired):
			return nil, apperr.Wrap(err, apperr.KindConflict, msgTargetBusy)
		case err != nil:
			// Redis障害時はDBの排他制約に委ねて続行する
			log.Warn("分散ロックを取得できないためロックなしで続行します",
				zap.String("target_id", targetID), zap.Error(err))
		default:
			defer func() {
				if err := lock.Release(ctx); err != nil {
					log.Warn("分散ロックの解放に失敗しました", zap.String("target_id", targetID), zap.Error(err))
				}
			}()
		}
	}

	err = transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		conflict, err := s.detector.HasConflict(ctx, tx, targetID, period, reservation.ActiveStatuses)
		if err != nil {
			return err
		}
		if conflict {
			return reservation.ErrDateRangeConflict
		}
		return s.repo.Create(ctx, tx, res)
	})
	if err != nil {
		return nil, err
	}

	log.Info("予約を作成しました",
		zap.String("reservation_id", res.ID),
		zap.String("target_id", targetID),
		zap.String("user_id", res.UserID),
		zap.Stringer("period", period),
	)

	return &CreateResult{
		Reservation: res,
		Breakdown: Breakdown{
			TargetName:    t.Name,
			Nights:        period.Nights(),
			PricePerNight: t.BasePrice,
			Total:         res.TotalPrice,
		},
	}, nil
}

// GetByID は予約者本人または管理者に予約を返す
func (s *ReservationService) GetByID(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !res.IsOwnedBy(actor.ID) {
		return nil, reservation.ErrNotReservationOwner
	}
	return res, nil
}

// ListMine は利用者自身の予約一覧を新しい順に返す
func (s *ReservationService) ListMine(ctx context.Context, actor reservation.Actor, q ListQuery) (*Page, error) {
	filter, err := s.buildFilter(q)
	if err != nil {
		return nil, err
	}
	items, total, err := s.repo.ListByUser(ctx, actor.ID, filter)
	if err != nil {
		return nil, err
	}
	return newPage(items, total, filter), nil
}

// ListForTarget は施設の所有者または管理者に施設の予約一覧を返す
func (s *ReservationService) ListForTarget(ctx context.Context, actor reservation.Actor, targetID string, q ListQuery) (*Page, error) {
	filter, err := s.buildFilter(q)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		t, err := s.targets.FetchTarget(ctx, targetID)
		if err != nil {
			return nil, err
		}
		if !t.IsOwnedBy(actor.ID) {
			return nil, reservation.ErrNotTargetOwner
		}
	}
	items, total, err := s.repo.ListByTarget(ctx, targetID, filter)
	if err != nil {
		return nil, err
	}
	return newPage(items, total, filter), nil
}

// UpdateStatus は状態遷移表に従って予約状態を変更する
func (s *ReservationService) UpdateStatus(ctx context.Context, actor reservation.Actor, id, status string) (*reservation.Reservation, error) {
	to, err := reservation.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	from := res.Status
	rel := reservation.Relation{OwnsReservation: res.IsOwnedBy(actor.ID)}
	renterAllowed := rel.OwnsReservation && reservation.RenterMay(from, to)
	// 所有者の確認は所有者にしかできない遷移の場合のみ行う
	if !actor.IsAdmin() && !renterAllowed && reservation.TargetOwnerMay(from, to) {
		if rel.OwnsTarget, err = s.ownsTarget(ctx, actor, res.TargetID); err != nil {
			return nil, err
		}
	}
	if err := reservation.CheckTransition(actor, rel, from, to); err != nil {
		return nil, err
	}

	res.ApplyStatus(to)
	if err := s.save(ctx, res); err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(from), string(to))
	logger.FromContext(ctx).Info("予約状態を更新しました",
		zap.String("reservation_id", res.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_id", actor.ID),
	)
	return res, nil
}

// UpdatePaymentStatus は施設の所有者または管理者が支払い状態を変更する
func (s *ReservationService) UpdatePaymentStatus(ctx context.Context, actor reservation.Actor, id, paymentStatus string) (*reservation.Reservation, error) {
	to, err := reservation.ParsePaymentStatus(paymentStatus)
	if err != nil {
		return nil, err
	}
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	owns := false
	if !actor.IsAdmin() {
		if owns, err = s.ownsTarget(ctx, actor, res.TargetID); err != nil {
			return nil, err
		}
	}
	if !reservation.CanManagePayment(actor, owns) {
		return nil, reservation.ErrNotTargetOwner
	}
	if err := s.payment.Check(res, to); err != nil {
		return nil, err
	}

	from := res.PaymentStatus
	res.ApplyPaymentStatus(to)
	if err := s.save(ctx, res); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("支払い状態を更新しました",
		zap.String("reservation_id", res.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_id", actor.ID),
	)
	return res, nil
}

// CancelMine は予約者本人が保留中の予約をキャンセルする
func (s *ReservationService) CancelMine(ctx context.Context, actor reservation.Actor, id string) (*reservation.Reservation, error) {
	res, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := res.Status
	if err := res.Cancel(actor.ID); err != nil {
		return nil, err
	}
	if err := s.save(ctx, res); err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(from), string(res.Status))
	logger.FromContext(ctx).Info("予約をキャンセルしました",
		zap.String("reservation_id", res.ID),
		zap.String("user_id", actor.ID),
	)
	return res, nil
}

// ownsTarget は利用者が施設の所有者かを外部サービスに問い合わせる
// 施設が存在しない場合は所有者ではないものとして扱う
func (s *ReservationService) ownsTarget(ctx context.Context, actor reservation.Actor, targetID string) (bool, error) {
	t, err := s.targets.FetchTarget(ctx, targetID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	return t.IsOwnedBy(actor.ID), nil
}

func (s *ReservationService) save(ctx context.Context, res *reservation.Reservation) error {
	return transaction.Run(ctx, s.txManager, func(tx transaction.Tx) error {
		return s.repo.Update(ctx, tx, res)
	})
}

func (s *ReservationService) buildFilter(q ListQuery) (reservation.ListFilter, error) {
	filter := reservation.ListFilter{Limit: q.PageSize}
	if filter.Limit <= 0 {
		filter.Limit = s.opts.DefaultPageSize
	}
	if filter.Limit > s.opts.MaxPageSize {
		filter.Limit = s.opts.MaxPageSize
	}
	page := q.Page
	if page < 0 {
		page = 0
	}
	filter.Offset = page * filter.Limit

	if q.Status != "" {
		status, err := reservation.ParseStatus(q.Status)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	return filter, nil
}

func newPage(items []*reservation.Reservation, total int, filter reservation.ListFilter) *Page {
	if items == nil {
		items = []*reservation.Reservation{}
	}
	return &Page{
		Items:   items,
		Total:   total,
		Pages:   int(math.Ceil(float64(total) / float64(filter.Limit))),
		Current: filter.Offset / filter.Limit,
		Limit:   filter.Limit,
	}
}

// resultLabel は予約作成結果のメトリクスラベルを返す
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, redisinfra.ErrLockNotAcquired):
		return "lock_failed"
	}
	switch apperr.KindOf(err) {
	case apperr.KindConflict:
		return "conflict"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindUnavailable, apperr.KindUpstream:
		return "unavailable"
	case apperr.KindInvalidArgument:
		return "invalid"
	default:
		return "error"
	}
}
