package transaction

import (
	"context"
	"fmt"
)

// Tx は予約ストアのトランザクション
// ドメイン層がインフラ層（sqlx等）に依存しないようにするための抽象化
type Tx interface {
	Commit() error
	Rollback() error
}

// Manager はトランザクションを開始する
// 分離レベルは実装側の設定に従う（予約作成は SERIALIZABLE を前提とする）
type Manager interface {
	Begin(ctx context.Context) (Tx, error)
}

// Run は fn をトランザクション内で実行する
// fn がエラーを返した場合、またはコミットに失敗した場合は何も書き込まれない
func Run(ctx context.Context, m Manager, fn func(tx Tx) error) error {
	tx, err := m.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}
