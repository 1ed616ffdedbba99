package sighting

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/petfinder/internal/model"
	"github.com/hitoshi/petfinder/internal/repository"
	"github.com/hitoshi/petfinder/internal/storage"
)

// Reconciler は目撃報告の集合を掲載の集合と整合させる。
//
// 親掲載が存在する報告は掲載名と写真URLを結合した表示用ビューに解決し、
// 親掲載が存在しない報告（孤児）はストアから削除して結果から除外する。
// 孤児の削除はベストエフォートで、失敗はログに記録し同期リトライしない。
type Reconciler struct {
	listingRepo    repository.ListingRepository
	sightingRepo   repository.SightingRepository
	photoStore     storage.PhotoStoreService
	maxConcurrency int
}

// NewReconciler はReconcilerを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewReconciler(
	listingRepo repository.ListingRepository,
	sightingRepo repository.SightingRepository,
	photoStore storage.PhotoStoreService,
	maxConcurrency int,
) *Reconciler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Reconciler{
		listingRepo:    listingRepo,
		sightingRepo:   sightingRepo,
		photoStore:     photoStore,
		maxConcurrency: maxConcurrency,
	}
}

// Reconcile は目撃報告の集合を解決する。
//
// 親掲載の取得は掲載IDごとに1回だけ行い（明示的な結合ステップ）、
// semaphoreパターンで並列数を制御する。すべての解決が完了してから
// 結果を返すため、返り値に未解決の報告が混ざることはない。
// 入力の重複は報告IDで除去され、孤児への削除呼び出しは報告ごとに1回となる。
func (r *Reconciler) Reconcile(ctx context.Context, sightings []*model.Sighting) ([]*model.SightingNotice, error) {
	if len(sightings) == 0 {
		return nil, nil
	}

	// 報告IDで重複を除去する
	deduped := make([]*model.Sighting, 0, len(sightings))
	seen := make(map[string]struct{}, len(sightings))
	for _, sg := range sightings {
		if _, ok := seen[sg.ID]; ok {
			continue
		}
		seen[sg.ID] = struct{}{}
		deduped = append(deduped, sg)
	}

	listings, failed := r.resolveListings(ctx, deduped)

	notices := make([]*model.SightingNotice, 0, len(deduped))
	for _, sg := range deduped {
		if _, lookupFailed := failed[sg.ListingID]; lookupFailed {
			// 一時的な取得失敗。孤児と断定できないため削除せず結果からも除外する
			continue
		}
		parent, ok := listings[sg.ListingID]
		if !ok || parent == nil {
			// 孤児: 親掲載が存在しないためストアから削除する
			r.deleteOrphan(ctx, sg)
			continue
		}

		photoURL, err := r.photoStore.PresignedGetURL(ctx, parent.PhotoKey)
		if err != nil {
			slog.Warn("failed to resolve listing photo URL",
				slog.String("listing_id", parent.ID),
				slog.Any("error", err),
			)
			photoURL = ""
		}

		notices = append(notices, &model.SightingNotice{
			Sighting:     *sg,
			ListingName:  parent.Name,
			ListingPhoto: photoURL,
		})
	}

	return notices, nil
}

// resolveListings は報告が参照する掲載を掲載IDごとに1回だけ並列取得する。
// 取得エラーの掲載IDはfailedに記録する。
func (r *Reconciler) resolveListings(ctx context.Context, sightings []*model.Sighting) (map[string]*model.Listing, map[string]struct{}) {
	ids := make([]string, 0, len(sightings))
	idSeen := make(map[string]struct{}, len(sightings))
	for _, sg := range sightings {
		if _, ok := idSeen[sg.ListingID]; ok {
			continue
		}
		idSeen[sg.ListingID] = struct{}{}
		ids = append(ids, sg.ListingID)
	}

	var mu sync.Mutex
	listings := make(map[string]*model.Listing, len(ids))
	failed := make(map[string]struct{})

	sem := make(chan struct{}, r.maxConcurrency)
	var wg sync.WaitGroup

	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}

		go func(listingID string) {
			defer wg.Done()
			defer func() { <-sem }()

			listing, err := r.listingRepo.FindByID(ctx, listingID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Error("failed to resolve parent listing",
					slog.String("listing_id", listingID),
					slog.Any("error", err),
				)
				failed[listingID] = struct{}{}
				return
			}
			if listing != nil {
				listings[listingID] = listing
			}
		}(id)
	}
	wg.Wait()

	return listings, failed
}

// deleteOrphan は孤児となった目撃報告を削除する。失敗はログのみ。
func (r *Reconciler) deleteOrphan(ctx context.Context, sg *model.Sighting) {
	if err := r.sightingRepo.DeleteByID(ctx, sg.ID); err != nil {
		slog.Warn("failed to delete orphaned sighting",
			slog.String("sighting_id", sg.ID),
			slog.String("listing_id", sg.ListingID),
			slog.Any("error", err),
		)
		return
	}
	slog.Info("orphaned sighting deleted",
		slog.String("sighting_id", sg.ID),
		slog.String("listing_id", sg.ListingID),
	)
}
