package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// viewerSetting は行レベルセキュリティのポリシーが参照する設定名。
const viewerSetting = "helpdesk.user_email"

// withViewer はトランザクションを開始し、閲覧者のメールアドレスを
// トランザクションローカルな設定に書き込んでからfnを実行する。
// fnがエラーを返した場合はロールバックする。
func withViewer(ctx context.Context, db *sql.DB, viewerEmail string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT set_config('`+viewerSetting+`', $1, true)`, viewerEmail); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("閲覧者の設定に失敗しました: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}
