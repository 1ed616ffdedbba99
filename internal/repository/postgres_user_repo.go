package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/petfinder/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// テーブル名は観測された論理スキーマ名（usuarios）をそのまま使用する。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO usuarios (id, email, display_name, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.DisplayName, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, email, display_name, password_hash, created_at, updated_at
		 FROM usuarios WHERE id = $1`, id)
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, email, display_name, password_hash, created_at, updated_at
		 FROM usuarios WHERE email = $1`, email)
}

// FindByDisplayName は表示名でユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByDisplayName(ctx context.Context, displayName string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, email, display_name, password_hash, created_at, updated_at
		 FROM usuarios WHERE display_name = $1`, displayName)
}

// UpdateEmail はユーザーのメールアドレスを更新する。
func (r *PostgresUserRepo) UpdateEmail(ctx context.Context, id, email string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE usuarios SET email = $2, updated_at = now() WHERE id = $1`,
		id, email,
	)
	if err != nil {
		return fmt.Errorf("failed to update user email: %w", err)
	}
	return requireRowAffected(result, "user", id)
}

// UpdateDisplayName はユーザーの表示名を更新する。
func (r *PostgresUserRepo) UpdateDisplayName(ctx context.Context, id, displayName string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE usuarios SET display_name = $2, updated_at = now() WHERE id = $1`,
		id, displayName,
	)
	if err != nil {
		return fmt.Errorf("failed to update user display name: %w", err)
	}
	return requireRowAffected(result, "user", id)
}

// DeleteByID は指定IDのユーザーを削除する。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM usuarios WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireRowAffected(result, "user", id)
}

// findOne は1件取得クエリを実行する。sql.ErrNoRowsはnilに変換する。
func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// requireRowAffected は更新・削除が1件以上の行に作用したことを検証する。
func requireRowAffected(result sql.Result, entity, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
