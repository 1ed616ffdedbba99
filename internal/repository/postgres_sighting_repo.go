package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/petfinder/internal/model"
)

// PostgresSightingRepo はPostgreSQLを使用した目撃報告リポジトリ。
// テーブル名は観測された論理スキーマ名（avistamientos）をそのまま使用する。
// 掲載との間に外部キー制約は張らず、孤児の解決はリコンサイラに委ねる。
type PostgresSightingRepo struct {
	db *sql.DB
}

// NewPostgresSightingRepo はPostgresSightingRepoを生成する。
func NewPostgresSightingRepo(db *sql.DB) *PostgresSightingRepo {
	return &PostgresSightingRepo{db: db}
}

const sightingColumns = `id, listing_id, reporter_id, location, photo_key, created_at`

// Create は目撃報告を作成する。
func (r *PostgresSightingRepo) Create(ctx context.Context, sighting *model.Sighting) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO avistamientos (`+sightingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sighting.ID, sighting.ListingID, sighting.ReporterID,
		sighting.Location, sighting.PhotoKey, sighting.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sighting: %w", err)
	}
	return nil
}

// ListByListingID は指定掲載への目撃報告一覧を返す。
func (r *PostgresSightingRepo) ListByListingID(ctx context.Context, listingID string) ([]*model.Sighting, error) {
	return r.list(ctx,
		`SELECT `+sightingColumns+` FROM avistamientos
		 WHERE listing_id = $1
		 ORDER BY created_at DESC`,
		listingID)
}

// ListByReporterID は指定ユーザーが報告した目撃報告一覧を返す。
func (r *PostgresSightingRepo) ListByReporterID(ctx context.Context, reporterID string) ([]*model.Sighting, error) {
	return r.list(ctx,
		`SELECT `+sightingColumns+` FROM avistamientos
		 WHERE reporter_id = $1
		 ORDER BY created_at DESC`,
		reporterID)
}

// ListByListingOwner は指定ユーザーが所有する掲載への目撃報告一覧を返す。
// 孤児（親掲載が削除済み）の報告はこのクエリでは結合できないため含まれない。
// 孤児の削除はリコンサイラの全件走査とワーカージョブが担う。
func (r *PostgresSightingRepo) ListByListingOwner(ctx context.Context, ownerID string) ([]*model.Sighting, error) {
	return r.list(ctx,
		`SELECT a.id, a.listing_id, a.reporter_id, a.location, a.photo_key, a.created_at
		 FROM avistamientos a
		 JOIN mascotas_perdidas m ON m.id = a.listing_id
		 WHERE m.owner_id = $1
		 ORDER BY a.created_at DESC`,
		ownerID)
}

// DeleteByID は指定IDの目撃報告を削除する。
func (r *PostgresSightingRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM avistamientos WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete sighting: %w", err)
	}
	return nil
}

// DeleteByListingID は指定掲載に紐づく全目撃報告を削除する。
// 掲載クローズ時のカスケード削除（子→親）の子側として呼ばれる。
func (r *PostgresSightingRepo) DeleteByListingID(ctx context.Context, listingID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM avistamientos WHERE listing_id = $1`,
		listingID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete sightings by listing: %w", err)
	}
	return nil
}

// DeleteByReporterID は指定ユーザーが報告した全目撃報告を削除する。
// 退会処理の最初の段として呼ばれる。
func (r *PostgresSightingRepo) DeleteByReporterID(ctx context.Context, reporterID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM avistamientos WHERE reporter_id = $1`,
		reporterID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete sightings by reporter: %w", err)
	}
	return nil
}

// list は複数行の目撃報告クエリを実行する。
func (r *PostgresSightingRepo) list(ctx context.Context, query string, arg any) ([]*model.Sighting, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list sightings: %w", err)
	}
	defer rows.Close()

	var sightings []*model.Sighting
	for rows.Next() {
		sighting := &model.Sighting{}
		if err := rows.Scan(
			&sighting.ID, &sighting.ListingID, &sighting.ReporterID,
			&sighting.Location, &sighting.PhotoKey, &sighting.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sighting: %w", err)
		}
		sightings = append(sightings, sighting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sightings: %w", err)
	}
	return sightings, nil
}

// compile-time interface check
var _ SightingRepository = (*PostgresSightingRepo)(nil)
