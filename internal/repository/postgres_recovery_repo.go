package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/petfinder/internal/model"
)

// PostgresRecoveryRepo はPostgreSQLを使用したクールダウン状態リポジトリ。
// 最終送信時刻を永続化することで、プロセス再起動によるレート制限の回避を防ぐ。
type PostgresRecoveryRepo struct {
	db *sql.DB
}

// NewPostgresRecoveryRepo はPostgresRecoveryRepoを生成する。
func NewPostgresRecoveryRepo(db *sql.DB) *PostgresRecoveryRepo {
	return &PostgresRecoveryRepo{db: db}
}

// Find は指定メールアドレスの最終送信時刻を取得する。記録がない場合はnilを返す。
func (r *PostgresRecoveryRepo) Find(ctx context.Context, email string) (*model.RecoveryState, error) {
	state := &model.RecoveryState{}
	err := r.db.QueryRowContext(ctx,
		`SELECT email, last_request_at FROM password_recovery WHERE email = $1`,
		email,
	).Scan(&state.Email, &state.LastRequestAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recovery state: %w", err)
	}
	return state, nil
}

// Upsert は最終送信時刻を冪等に記録する。
func (r *PostgresRecoveryRepo) Upsert(ctx context.Context, email string, lastRequestAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO password_recovery (email, last_request_at)
		 VALUES ($1, $2)
		 ON CONFLICT (email) DO UPDATE SET last_request_at = EXCLUDED.last_request_at`,
		email, lastRequestAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert recovery state: %w", err)
	}
	return nil
}

// DeleteByEmail は指定メールアドレスの記録を削除する。
func (r *PostgresRecoveryRepo) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM password_recovery WHERE email = $1`,
		email,
	)
	if err != nil {
		return fmt.Errorf("failed to delete recovery state: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RecoveryRepository = (*PostgresRecoveryRepo)(nil)
