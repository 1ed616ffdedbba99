package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/petfinder/internal/model"
)

// PostgresListingRepo はPostgreSQLを使用した掲載リポジトリ。
// テーブル名は観測された論理スキーマ名（mascotas_perdidas）をそのまま使用する。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

const listingColumns = `id, owner_id, name, breed, age, locality, last_seen, description, lost_date, photo_key, created_at`

// Create は掲載を作成する。
func (r *PostgresListingRepo) Create(ctx context.Context, listing *model.Listing) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mascotas_perdidas (`+listingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		listing.ID, listing.OwnerID, listing.Name, listing.Breed, listing.Age,
		listing.Locality, listing.LastSeen, listing.Description,
		listing.LostDate, listing.PhotoKey, listing.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// FindByID は指定IDの掲載を取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id string) (*model.Listing, error) {
	listing := &model.Listing{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM mascotas_perdidas WHERE id = $1`,
		id,
	).Scan(
		&listing.ID, &listing.OwnerID, &listing.Name, &listing.Breed, &listing.Age,
		&listing.Locality, &listing.LastSeen, &listing.Description,
		&listing.LostDate, &listing.PhotoKey, &listing.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	return listing, nil
}

// ListRecent は新着順の掲載一覧を返す。
func (r *PostgresListingRepo) ListRecent(ctx context.Context, limit int) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM mascotas_perdidas
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// ListByOwnerID は指定ユーザーが作成した掲載一覧を返す。
func (r *PostgresListingRepo) ListByOwnerID(ctx context.Context, ownerID string) ([]*model.Listing, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM mascotas_perdidas
		 WHERE owner_id = $1
		 ORDER BY created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings by owner: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

// Update は掲載内容を上書き更新する。
func (r *PostgresListingRepo) Update(ctx context.Context, listing *model.Listing) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE mascotas_perdidas
		 SET name = $2, breed = $3, age = $4, locality = $5, last_seen = $6,
		     description = $7, lost_date = $8, photo_key = $9
		 WHERE id = $1`,
		listing.ID, listing.Name, listing.Breed, listing.Age, listing.Locality,
		listing.LastSeen, listing.Description, listing.LostDate, listing.PhotoKey,
	)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	return requireRowAffected(result, "listing", listing.ID)
}

// DeleteByID は指定IDの掲載を削除する。
// 紐づく目撃報告の削除は呼び出し側が先に行う（子→親の順序）。
func (r *PostgresListingRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM mascotas_perdidas WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	return requireRowAffected(result, "listing", id)
}

// scanListings は複数行の掲載レコードをスキャンする。
func scanListings(rows *sql.Rows) ([]*model.Listing, error) {
	var listings []*model.Listing
	for rows.Next() {
		listing := &model.Listing{}
		if err := rows.Scan(
			&listing.ID, &listing.OwnerID, &listing.Name, &listing.Breed, &listing.Age,
			&listing.Locality, &listing.LastSeen, &listing.Description,
			&listing.LostDate, &listing.PhotoKey, &listing.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate listings: %w", err)
	}
	return listings, nil
}

// compile-time interface check
var _ ListingRepository = (*PostgresListingRepo)(nil)
