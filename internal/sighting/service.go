// Package sighting は目撃報告の受付と、掲載との整合性維持
// （リコンシリエーション）を提供する。
package sighting

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/petfinder/internal/model"
	"github.com/hitoshi/petfinder/internal/notify"
	"github.com/hitoshi/petfinder/internal/repository"
	"github.com/hitoshi/petfinder/internal/security"
	"github.com/hitoshi/petfinder/internal/storage"
)

// PhotoUpload は目撃報告に添付する写真の入力。
type PhotoUpload struct {
	Body        io.Reader
	ContentType string
}

// ReportInput は目撃報告の入力。
type ReportInput struct {
	ListingID string
	Location  string
	Photo     *PhotoUpload // 任意
}

// MetricsRecorder は目撃報告イベントのメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordSightingReported(listingID string)
}

// Service は目撃報告に関するビジネスロジックを提供する。
type Service struct {
	listingRepo  repository.ListingRepository
	sightingRepo repository.SightingRepository
	photoStore   storage.PhotoStoreService
	sanitizer    security.TextSanitizerService
	pushSender   notify.PushSender
	reconciler   *Reconciler
	metrics      MetricsRecorder // nil可
	now          func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	listingRepo repository.ListingRepository,
	sightingRepo repository.SightingRepository,
	photoStore storage.PhotoStoreService,
	sanitizer security.TextSanitizerService,
	pushSender notify.PushSender,
	reconciler *Reconciler,
) *Service {
	return &Service{
		listingRepo:  listingRepo,
		sightingRepo: sightingRepo,
		photoStore:   photoStore,
		sanitizer:    sanitizer,
		pushSender:   pushSender,
		reconciler:   reconciler,
		now:          time.Now,
	}
}

// SetMetrics はメトリクスレコーダーを設定する。未設定でも動作に影響しない。
func (s *Service) SetMetrics(m MetricsRecorder) {
	s.metrics = m
}

// Report は目撃報告を受け付ける。
// 掲載の所有者自身による報告は拒否する。受付後、掲載の所有者に
// プッシュ通知を送る（通知の失敗は報告の成否に影響しない）。
func (s *Service) Report(ctx context.Context, reporterID string, input ReportInput) (*model.Sighting, error) {
	location := s.sanitizer.SanitizePlain(input.Location)
	if location == "" {
		return nil, model.NewValidationError("目撃した場所を入力してください")
	}

	listing, err := s.listingRepo.FindByID(ctx, input.ListingID)
	if err != nil {
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError(input.ListingID)
	}
	if listing.OwnerID == reporterID {
		return nil, model.NewOwnSightingError()
	}

	photoKey := ""
	if input.Photo != nil {
		photoKey, err = s.photoStore.Upload(ctx, reporterID, input.Photo.ContentType, input.Photo.Body)
		if err != nil {
			return nil, model.NewStorageFailureError(err.Error())
		}
	}

	sighting := &model.Sighting{
		ID:         uuid.New().String(),
		ListingID:  input.ListingID,
		ReporterID: reporterID,
		Location:   location,
		PhotoKey:   photoKey,
		CreatedAt:  s.now(),
	}

	if err := s.sightingRepo.Create(ctx, sighting); err != nil {
		return nil, fmt.Errorf("failed to create sighting: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSightingReported(input.ListingID)
	}

	// 通知はベストエフォート。失敗しても報告自体は成立している
	payload := notify.BuildSightingPayload(listing.Name, location)
	if err := s.pushSender.Send(ctx, listing.OwnerID, payload); err != nil {
		slog.Warn("failed to send sighting notification",
			slog.String("listing_id", listing.ID),
			slog.String("owner_id", listing.OwnerID),
			slog.Any("error", err),
		)
	}

	slog.Info("sighting reported",
		slog.String("sighting_id", sighting.ID),
		slog.String("listing_id", input.ListingID),
	)
	return sighting, nil
}

// NoticesForOwner は指定ユーザーが所有する掲載への目撃報告を
// 親掲載と結合した表示用ビューとして返す。
func (s *Service) NoticesForOwner(ctx context.Context, ownerID string) ([]*model.SightingNotice, error) {
	sightings, err := s.sightingRepo.ListByListingOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sightings for owner: %w", err)
	}
	return s.reconciler.Reconcile(ctx, sightings)
}

// ReportsByUser は指定ユーザーが報告した目撃報告を解決済みビューとして返す。
// 親掲載が削除済みの報告はこの走査中に削除され、結果から除外される。
func (s *Service) ReportsByUser(ctx context.Context, reporterID string) ([]*model.SightingNotice, error) {
	sightings, err := s.sightingRepo.ListByReporterID(ctx, reporterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sightings by reporter: %w", err)
	}
	return s.reconciler.Reconcile(ctx, sightings)
}
