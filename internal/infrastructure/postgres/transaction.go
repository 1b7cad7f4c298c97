package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/student-housing-reservation/internal/domain/transaction"
)

// storeTx は予約ストアのトランザクション
type storeTx struct {
	tx *sqlx.Tx
}

// Commit は直列化失敗・排他制約違反をドメインのエラーに変換して返す
func (t *storeTx) Commit() error {
	return translateError(t.tx.Commit())
}

// Rollback はコミット済みの場合は何もしない
func (t *storeTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// TxManager は予約ストアのトランザクションを開始する
type TxManager struct {
	db   *sqlx.DB
	opts *sql.TxOptions
}

// NewTxManager は SERIALIZABLE 分離レベルの TxManager を作成する
// 重複チェックと挿入の間に他のトランザクションが割り込んだ場合はコミット時に失敗する
func NewTxManager(db *sqlx.DB) *TxManager {
	return NewTxManagerWithIsolation(db, sql.LevelSerializable)
}

func NewTxManagerWithIsolation(db *sqlx.DB, level sql.IsolationLevel) *TxManager {
	return &TxManager{db: db, opts: &sql.TxOptions{Isolation: level}}
}

func (m *TxManager) Begin(ctx context.Context) (transaction.Tx, error) {
	tx, err := m.db.BeginTxx(ctx, m.opts)
	if err != nil {
		return nil, translateError(err)
	}
	return &storeTx{tx: tx}, nil
}

// txFrom はリポジトリが使う sqlx.Tx を取り出す
// 別の実装のトランザクションが渡された場合は errTxRequired を返す
func txFrom(tx transaction.Tx) (*sqlx.Tx, error) {
	if st, ok := tx.(*storeTx); ok && st != nil {
		return st.tx, nil
	}
	return nil, errTxRequired
}

var _ transaction.Manager = (*TxManager)(nil)
