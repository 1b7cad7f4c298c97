package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sanosuguru/student-housing-reservation/internal/domain/reservation"
	"github.com/sanosuguru/student-housing-reservation/internal/domain/transaction"
)

// memoryStore はテスト用のインメモリ実装
// トランザクションは Begin から Commit/Rollback まで排他的に実行される（SERIALIZABLE 相当）
type memoryStore struct {
	txLock sync.Mutex
	mu     sync.Mutex
	rows   map[string]*reservation.Reservation
	seq    int
	base   time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		rows: make(map[string]*reservation.Reservation),
		base: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

type memoryTx struct {
	store   *memoryStore
	creates []*reservation.Reservation
	updates []*reservation.Reservation
	done    bool
}

func (s *memoryStore) Begin(ctx context.Context) (transaction.Tx, error) {
	s.txLock.Lock()
	return &memoryTx{store: s}, nil
}

func (tx *memoryTx) Commit() error {
	if tx.done {
		return fmt.Errorf("トランザクションは終了しています")
	}
	tx.done = true
	defer tx.store.txLock.Unlock()

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for _, r := range tx.creates {
		tx.store.rows[r.ID] = r
	}
	for _, r := range tx.updates {
		tx.store.rows[r.ID] = r
	}
	return nil
}

func (tx *memoryTx) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.store.txLock.Unlock()
	return nil
}

func clone(r *reservation.Reservation) *reservation.Reservation {
	c := *r
	return &c
}

func (s *memoryStore) Create(ctx context.Context, tx transaction.Tx, r *reservation.Reservation) error {
	s.mu.Lock()
	s.seq++
	r.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", s.seq)
	r.CreatedAt = s.base.Add(time.Duration(s.seq) * time.Second)
	r.UpdatedAt = r.CreatedAt
	r.Version = 1
	s.mu.Unlock()

	mtx := tx.(*memoryTx)
	mtx.creates = append(mtx.creates, clone(r))
	return nil
}

func (s *memoryStore) GetByID(ctx context.Context, id string) (*reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[id]
	if !ok {
		return nil, reservation.ErrReservationNotFound
	}
	return clone(r), nil
}

func (s *memoryStore) list(match func(r *reservation.Reservation) bool, filter reservation.ListFilter) ([]*reservation.Reservation, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []*reservation.Reservation
	for _, r := range s.rows {
		if !match(r) {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		all = append(all, clone(r))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := len(all)
	if filter.Offset >= total {
		return []*reservation.Reservation{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}
	return all[filter.Offset:end], total, nil
}

func (s *memoryStore) ListByUser(ctx context.Context, userID string, filter reservation.ListFilter) ([]*reservation.Reservation, int, error) {
	return s.list(func(r *reservation.Reservation) bool { return r.UserID == userID }, filter)
}

func (s *memoryStore) ListByTarget(ctx context.Context, targetID string, filter reservation.ListFilter) ([]*reservation.Reservation, int, error) {
	return s.list(func(r *reservation.Reservation) bool { return r.TargetID == targetID }, filter)
}

func (s *memoryStore) FindOverlapping(ctx context.Context, tx transaction.Tx, targetID string, period reservation.DateRange, statuses []reservation.Status) ([]*reservation.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*reservation.Reservation
	for _, r := range s.rows {
		if r.TargetID != targetID {
			continue
		}
		for _, st := range statuses {
			if r.Status == st && r.StartDate.Before(period.End) && period.Start.Before(r.EndDate) {
				result = append(result, clone(r))
				break
			}
		}
	}
	return result, nil
}

func (s *memoryStore) Update(ctx context.Context, tx transaction.Tx, r *reservation.Reservation) error {
	s.mu.Lock()
	current, ok := s.rows[r.ID]
	s.mu.Unlock()
	if !ok || current.Version != r.Version {
		return reservation.ErrConcurrentModification
	}
	r.Version++
	mtx := tx.(*memoryTx)
	mtx.updates = append(mtx.updates, clone(r))
	return nil
}

var (
	_ reservation.Repository = (*memoryStore)(nil)
	_ transaction.Manager    = (*memoryStore)(nil)
)
