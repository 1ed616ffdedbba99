// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/petfinder/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByDisplayName は表示名でユーザーを検索する。見つからない場合はnilを返す。
	FindByDisplayName(ctx context.Context, displayName string) (*model.User, error)

	// UpdateEmail はユーザーのメールアドレスを更新する。
	UpdateEmail(ctx context.Context, id, email string) error

	// UpdateDisplayName はユーザーの表示名を更新する。
	UpdateDisplayName(ctx context.Context, id, displayName string) error

	// DeleteByID は指定IDのユーザーを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ListingRepository は迷子ペット掲載の永続化インターフェース。
type ListingRepository interface {
	// Create は掲載を作成する。
	Create(ctx context.Context, listing *model.Listing) error

	// FindByID は指定IDの掲載を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Listing, error)

	// ListRecent は新着順の掲載一覧を返す。
	ListRecent(ctx context.Context, limit int) ([]*model.Listing, error)

	// ListByOwnerID は指定ユーザーが作成した掲載一覧を返す。
	ListByOwnerID(ctx context.Context, ownerID string) ([]*model.Listing, error)

	// Update は掲載内容を上書き更新する。
	Update(ctx context.Context, listing *model.Listing) error

	// DeleteByID は指定IDの掲載を削除する。
	DeleteByID(ctx context.Context, id string) error
}

// SightingRepository は目撃報告の永続化インターフェース。
// 掲載との間に外部キー制約は張らない。孤児の掃除はリコンサイラの責務とする。
type SightingRepository interface {
	// Create は目撃報告を作成する。
	Create(ctx context.Context, sighting *model.Sighting) error

	// ListByListingID は指定掲載への目撃報告一覧を返す。
	ListByListingID(ctx context.Context, listingID string) ([]*model.Sighting, error)

	// ListByReporterID は指定ユーザーが報告した目撃報告一覧を返す。
	ListByReporterID(ctx context.Context, reporterID string) ([]*model.Sighting, error)

	// ListByListingOwner は指定ユーザーが所有する掲載への目撃報告一覧を返す。
	// 孤児（親掲載が削除済み）の報告は所有者を特定できないため含まれない。
	ListByListingOwner(ctx context.Context, ownerID string) ([]*model.Sighting, error)

	// DeleteByID は指定IDの目撃報告を削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByListingID は指定掲載に紐づく全目撃報告を削除する。
	DeleteByListingID(ctx context.Context, listingID string) error

	// DeleteByReporterID は指定ユーザーが報告した全目撃報告を削除する。
	DeleteByReporterID(ctx context.Context, reporterID string) error
}

// RecoveryRepository はパスワード再設定クールダウン状態の永続化インターフェース。
type RecoveryRepository interface {
	// Find は指定メールアドレスの最終送信時刻を取得する。記録がない場合はnilを返す。
	Find(ctx context.Context, email string) (*model.RecoveryState, error)

	// Upsert は最終送信時刻を冪等に記録する。
	Upsert(ctx context.Context, email string, lastRequestAt time.Time) error

	// DeleteByEmail は指定メールアドレスの記録を削除する。
	DeleteByEmail(ctx context.Context, email string) error
}
