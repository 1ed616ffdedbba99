// Package listing は迷子ペット掲載の公開・閲覧・更新・クローズを提供する。
//
// クローズ時は掲載に紐づく目撃報告を先に削除してから掲載本体を削除する
// （子→親の順）。外部ストアにまたがるトランザクションは仮定せず、
// 段階ごとの失敗は呼び出し元に報告し、成功済みの削除は巻き戻さない。
package listing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/petfinder/internal/model"
	"github.com/hitoshi/petfinder/internal/repository"
	"github.com/hitoshi/petfinder/internal/security"
	"github.com/hitoshi/petfinder/internal/storage"
)

// maxPhotoBytes はURL取り込み時に受け付ける写真の最大サイズ。
const maxPhotoBytes = 10 * 1024 * 1024

// importTimeout はURL取り込みのHTTPタイムアウト。
const importTimeout = 30 * time.Second

// DefaultBrowseLimit は新着一覧の既定件数。
const DefaultBrowseLimit = 50

// PhotoUpload は掲載写真のアップロード入力。
type PhotoUpload struct {
	Body        io.Reader
	ContentType string
}

// PublishInput は掲載公開の入力。
// PhotoとPhotoURLはどちらか一方のみ指定する。PhotoURLを指定した場合は
// SSRF防止の検証を通過したURLから写真を取り込む。
type PublishInput struct {
	Name        string
	Breed       string
	Age         string
	Locality    string
	LastSeen    string
	Description string
	LostDate    time.Time
	Photo       *PhotoUpload
	PhotoURL    string
}

// UpdateInput は掲載更新の入力。Photoを指定すると写真を差し替える。
type UpdateInput struct {
	Name        string
	Breed       string
	Age         string
	Locality    string
	LastSeen    string
	Description string
	LostDate    time.Time
	Photo       *PhotoUpload
}

// MetricsRecorder は掲載イベントのメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordListingPublished()
	RecordListingClosed()
}

// Service は掲載に関するビジネスロジックを提供する。
type Service struct {
	listingRepo  repository.ListingRepository
	sightingRepo repository.SightingRepository
	photoStore   storage.PhotoStoreService
	sanitizer    security.TextSanitizerService
	ssrfGuard    security.SSRFGuardService
	importClient *http.Client
	metrics      MetricsRecorder // nil可
	now          func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	listingRepo repository.ListingRepository,
	sightingRepo repository.SightingRepository,
	photoStore storage.PhotoStoreService,
	sanitizer security.TextSanitizerService,
	ssrfGuard security.SSRFGuardService,
) *Service {
	return &Service{
		listingRepo:  listingRepo,
		sightingRepo: sightingRepo,
		photoStore:   photoStore,
		sanitizer:    sanitizer,
		ssrfGuard:    ssrfGuard,
		importClient: ssrfGuard.NewSafeClient(importTimeout),
		now:          time.Now,
	}
}

// SetMetrics はメトリクスレコーダーを設定する。未設定でも動作に影響しない。
func (s *Service) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// Publish は掲載を公開する。写真の保存に成功してから掲載レコードを作成する。
func (s *Service) Publish(ctx context.Context, ownerID string, input PublishInput) (*model.Listing, error) {
	listing := &model.Listing{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        s.sanitizer.SanitizePlain(input.Name),
		Breed:       s.sanitizer.SanitizePlain(input.Breed),
		Age:         s.sanitizer.SanitizePlain(input.Age),
		Locality:    s.sanitizer.SanitizePlain(input.Locality),
		LastSeen:    s.sanitizer.SanitizePlain(input.LastSeen),
		Description: s.sanitizer.SanitizePlain(input.Description),
		LostDate:    input.LostDate,
		CreatedAt:   s.now(),
	}

	if err := s.validate(listing); err != nil {
		return nil, err
	}

	photoKey, err := s.storePhoto(ctx, ownerID, input.Photo, input.PhotoURL)
	if err != nil {
		return nil, err
	}
	listing.PhotoKey = photoKey

	if err := s.listingRepo.Create(ctx, listing); err != nil {
		// 掲載レコードの作成に失敗したら、保存済みの写真を残さない
		if delErr := s.photoStore.Delete(ctx, photoKey); delErr != nil {
			slog.Warn("failed to clean up photo after listing create failure",
				slog.String("photo_key", photoKey),
				slog.Any("error", delErr),
			)
		}
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordListingPublished()
	}

	slog.Info("listing published",
		slog.String("listing_id", listing.ID),
		slog.String("owner_id", ownerID),
	)
	return listing, nil
}

// Get は掲載を1件取得する。
func (s *Service) Get(ctx context.Context, listingID string) (*model.Listing, error) {
	listing, err := s.listingRepo.FindByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError(listingID)
	}
	return listing, nil
}

// Browse は新着順の掲載一覧を返す。limitが0以下の場合は既定件数を使う。
func (s *Service) Browse(ctx context.Context, limit int) ([]*model.Listing, error) {
	if limit <= 0 {
		limit = DefaultBrowseLimit
	}
	listings, err := s.listingRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return listings, nil
}

// ListByOwner は指定ユーザーが公開した掲載一覧を返す。
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*model.Listing, error) {
	listings, err := s.listingRepo.ListByOwnerID(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings by owner: %w", err)
	}
	return listings, nil
}

// Update は掲載内容を更新する。所有者以外による更新は拒否する。
// 写真を差し替えた場合、古い写真の削除はベストエフォートで行う。
func (s *Service) Update(ctx context.Context, userID, listingID string, input UpdateInput) (*model.Listing, error) {
	listing, err := s.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.CanModifyBy(userID) {
		return nil, model.NewNotOwnerError()
	}

	listing.Name = s.sanitizer.SanitizePlain(input.Name)
	listing.Breed = s.sanitizer.SanitizePlain(input.Breed)
	listing.Age = s.sanitizer.SanitizePlain(input.Age)
	listing.Locality = s.sanitizer.SanitizePlain(input.Locality)
	listing.LastSeen = s.sanitizer.SanitizePlain(input.LastSeen)
	listing.Description = s.sanitizer.SanitizePlain(input.Description)
	listing.LostDate = input.LostDate

	if err := s.validate(listing); err != nil {
		return nil, err
	}

	oldPhotoKey := ""
	newPhotoKey := ""
	if input.Photo != nil {
		key, err := s.photoStore.Upload(ctx, userID, input.Photo.ContentType, input.Photo.Body)
		if err != nil {
			return nil, model.NewStorageFailureError(err.Error())
		}
		oldPhotoKey = listing.PhotoKey
		listing.PhotoKey = key
		newPhotoKey = key
	}

	if err := s.listingRepo.Update(ctx, listing); err != nil {
		// 更新レコードの保存に失敗したら、差し替え用に保存した写真を残さない
		if newPhotoKey != "" {
			if delErr := s.photoStore.Delete(ctx, newPhotoKey); delErr != nil {
				slog.Warn("failed to clean up photo after listing update failure",
					slog.String("photo_key", newPhotoKey),
					slog.Any("error", delErr),
				)
			}
		}
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}

	if oldPhotoKey != "" {
		if err := s.photoStore.Delete(ctx, oldPhotoKey); err != nil {
			slog.Warn("failed to delete replaced photo",
				slog.String("photo_key", oldPhotoKey),
				slog.Any("error", err),
			)
		}
	}

	slog.Info("listing updated", slog.String("listing_id", listingID))
	return listing, nil
}

// Close は掲載をクローズする。所有者以外によるクローズは拒否する。
// 削除順序: 目撃報告（子）→ 写真 → 掲載本体（親）。
// 子を先に消すことで、親の欠落を孤児削除のトリガーとして扱う
// リコンサイラとの競合を避ける。
func (s *Service) Close(ctx context.Context, userID, listingID string) error {
	listing, err := s.Get(ctx, listingID)
	if err != nil {
		return err
	}
	if !listing.CanModifyBy(userID) {
		return model.NewNotOwnerError()
	}

	// 1. 目撃報告を削除
	if err := s.sightingRepo.DeleteByListingID(ctx, listingID); err != nil {
		return fmt.Errorf("failed to delete sightings for listing %s: %w", listingID, err)
	}

	// 2. 写真を削除（失敗しても続行）
	if err := s.photoStore.Delete(ctx, listing.PhotoKey); err != nil {
		slog.Warn("failed to delete listing photo",
			slog.String("listing_id", listingID),
			slog.String("photo_key", listing.PhotoKey),
			slog.Any("error", err),
		)
	}

	// 3. 掲載本体を削除
	if err := s.listingRepo.DeleteByID(ctx, listingID); err != nil {
		return fmt.Errorf("failed to delete listing %s: %w", listingID, err)
	}

	if s.metrics != nil {
		s.metrics.RecordListingClosed()
	}

	slog.Info("listing closed", slog.String("listing_id", listingID))
	return nil
}

// PhotoURL は掲載写真の閲覧用URLを返す。写真なしの場合は空文字列。
func (s *Service) PhotoURL(ctx context.Context, photoKey string) (string, error) {
	return s.photoStore.PresignedGetURL(ctx, photoKey)
}

// validate は掲載の必須項目と迷子日の妥当性を検証する。
func (s *Service) validate(listing *model.Listing) error {
	if listing.Name == "" {
		return model.NewValidationError("ペットの名前を入力してください")
	}
	if listing.Locality == "" {
		return model.NewValidationError("迷子になった地域を入力してください")
	}
	if listing.LostDate.IsZero() {
		return model.NewValidationError("迷子になった日を入力してください")
	}
	// 迷子日は当日まで。未来日は入力ミスとして拒否する
	today := s.now().Truncate(24 * time.Hour)
	if listing.LostDate.After(today.Add(24*time.Hour - time.Nanosecond)) {
		return model.NewValidationError("迷子になった日に未来の日付は指定できません")
	}
	return nil
}

// storePhoto はアップロードまたはURL取り込みで写真を保存し、キーを返す。
// どちらも指定されていない場合は写真なしとして空キーを返す。
func (s *Service) storePhoto(ctx context.Context, ownerID string, photo *PhotoUpload, photoURL string) (string, error) {
	if photo != nil {
		key, err := s.photoStore.Upload(ctx, ownerID, photo.ContentType, photo.Body)
		if err != nil {
			return "", model.NewStorageFailureError(err.Error())
		}
		return key, nil
	}
	if photoURL != "" {
		return s.importPhotoFromURL(ctx, ownerID, photoURL)
	}
	return "", nil
}

// importPhotoFromURL は外部URLから写真を取り込む。
// URLは静的検証とSSRF防止クライアントの両方を通過する必要がある。
func (s *Service) importPhotoFromURL(ctx context.Context, ownerID, photoURL string) (string, error) {
	if err := s.ssrfGuard.ValidateURL(photoURL); err != nil {
		slog.Warn("photo import URL blocked",
			slog.String("url", photoURL),
			slog.Any("error", err),
		)
		return "", model.NewPhotoBlockedError()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return "", model.NewValidationError("写真URLの形式が正しくありません")
	}

	resp, err := s.importClient.Do(req)
	if err != nil {
		// SSRF防止クライアントによるブロックもここに含まれる
		slog.Warn("photo import request failed",
			slog.String("url", photoURL),
			slog.Any("error", err),
		)
		return "", model.NewPhotoBlockedError()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", model.NewStorageFailureError(fmt.Sprintf("写真の取得に失敗しました (HTTP %d)", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", model.NewValidationError("指定されたURLは画像ではありません")
	}

	body := io.LimitReader(resp.Body, maxPhotoBytes)
	key, err := s.photoStore.Upload(ctx, ownerID, contentType, body)
	if err != nil {
		return "", model.NewStorageFailureError(err.Error())
	}
	return key, nil
}
