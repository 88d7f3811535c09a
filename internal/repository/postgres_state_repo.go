package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStateRepo はPostgreSQLを使用した現在セッションポインタのリポジトリ。
// app_stateテーブルの単一行（id=1）のみを読み書きする。
type PostgresStateRepo struct {
	db *sql.DB
}

// NewPostgresStateRepo はPostgresStateRepoを生成する。
func NewPostgresStateRepo(db *sql.DB) *PostgresStateRepo {
	return &PostgresStateRepo{db: db}
}

// CurrentSessionID は現在のセッションIDを返す。未設定の場合は空文字列。
func (r *PostgresStateRepo) CurrentSessionID(ctx context.Context) (string, error) {
	var id sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT current_session_id FROM app_state WHERE id = 1`,
	).Scan(&id)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read current session id: %w", err)
	}
	return id.String, nil
}

// SetCurrentSessionID は現在のセッションIDを設定する。
func (r *PostgresStateRepo) SetCurrentSessionID(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE app_state SET current_session_id = $1 WHERE id = 1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to set current session id: %w", err)
	}
	return nil
}

// ClearCurrentSessionID は指定IDが現在のセッションである場合のみクリアする。
func (r *PostgresStateRepo) ClearCurrentSessionID(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE app_state SET current_session_id = NULL WHERE id = 1 AND current_session_id = $1`,
		sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear current session id: %w", err)
	}
	return nil
}

// compile-time interface check
var _ StateRepository = (*PostgresStateRepo)(nil)
