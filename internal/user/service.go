// Package user はアカウント管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/petfinder/internal/model"
	"github.com/hitoshi/petfinder/internal/repository"
)

// ListingCloser は掲載のクローズ（カスケード削除）インターフェース。
type ListingCloser interface {
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Listing, error)
	Close(ctx context.Context, userID, listingID string) error
}

// Service はアカウント管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo     repository.UserRepository
	sessionRepo  repository.SessionRepository
	sightingRepo repository.SightingRepository
	recoveryRepo repository.RecoveryRepository
	listings     ListingCloser
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sightingRepo repository.SightingRepository,
	recoveryRepo repository.RecoveryRepository,
	listings ListingCloser,
) *Service {
	return &Service{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		sightingRepo: sightingRepo,
		recoveryRepo: recoveryRepo,
		listings:     listings,
	}
}

// Profile は指定ユーザーのアカウント情報を返す。
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: 本人の目撃報告 → 所有する掲載（掲載ごとに目撃報告→写真→掲載）
// → パスワード再設定記録 → セッション → ユーザー行。
// 途中の段階で失敗した場合はそこで中断し、完了済みの削除は巻き戻さない。
// 同じ順序で再実行すれば残りを削除できる（各段階は冪等）。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	// ユーザー存在確認
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 本人が報告した目撃報告を削除
	if err := s.sightingRepo.DeleteByReporterID(ctx, userID); err != nil {
		return fmt.Errorf("目撃報告の削除に失敗しました: %w", err)
	}

	// 2. 所有する掲載をカスケード削除（掲載への目撃報告→写真→掲載本体）
	listings, err := s.listings.ListByOwner(ctx, userID)
	if err != nil {
		return fmt.Errorf("掲載一覧の取得に失敗しました: %w", err)
	}
	for _, listing := range listings {
		if err := s.listings.Close(ctx, userID, listing.ID); err != nil {
			return fmt.Errorf("掲載の削除に失敗しました (listing_id=%s): %w", listing.ID, err)
		}
	}

	// 3. パスワード再設定のクールダウン記録を削除
	if err := s.recoveryRepo.DeleteByEmail(ctx, user.Email); err != nil {
		return fmt.Errorf("パスワード再設定記録の削除に失敗しました: %w", err)
	}

	// 4. セッションを削除
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	// 5. ユーザーを削除
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
