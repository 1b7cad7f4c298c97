package remote

import (
	"context"
	"sync"

	"github.com/sanosuguru/student-housing-reservation/internal/domain/target"
)

// Fake はメモリ上で予約対象を返す target.Fetcher の実装（テスト用）
type Fake struct {
	mu      sync.RWMutex
	targets map[string]target.Target
	err     error
	calls   int
}

// NewFake は指定した予約対象を持つFakeを作成する
func NewFake(targets ...target.Target) *Fake {
	f := &Fake{targets: make(map[string]target.Target)}
	for _, t := range targets {
		f.targets[t.ID] = t
	}
	return f
}

// Put は予約対象を登録する
func (f *Fake) Put(t target.Target) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targets[t.ID] = t
}

// SetError は以降の呼び出しで返すエラーを設定する（nilで解除）
func (f *Fake) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls は FetchTarget の呼び出し回数を返す
func (f *Fake) Calls() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.calls
}

func (f *Fake) FetchTarget(ctx context.Context, id string) (*target.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if f.err != nil {
		return nil, f.err
	}
	t, ok := f.targets[id]
	if !ok {
		return nil, target.ErrNotFound(id)
	}
	return &t, nil
}
