package sighting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/petfinder/internal/model"
	"github.com/hitoshi/petfinder/internal/notify"
	"github.com/hitoshi/petfinder/internal/security"
)

// mockPushSender はnotify.PushSenderのモック実装。
type mockPushSender struct {
	sendFunc func(ctx context.Context, userID string, payload notify.Payload) error
	sent     []notify.Payload
	sentTo   []string
}

func (m *mockPushSender) Send(ctx context.Context, userID string, payload notify.Payload) error {
	m.sent = append(m.sent, payload)
	m.sentTo = append(m.sentTo, userID)
	if m.sendFunc != nil {
		return m.sendFunc(ctx, userID, payload)
	}
	return nil
}

func newTestSightingService(listings *mockListingRepo, sightings *mockSightingRepo, push *mockPushSender) *Service {
	photos := &mockPhotoStore{}
	reconciler := NewReconciler(listings, sightings, photos, 4)
	svc := NewService(listings, sightings, photos, security.NewTextSanitizer(), push, reconciler)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

// TestReport_Success は目撃報告の受付と所有者への通知をテストする。
func TestReport_Success(t *testing.T) {
	listings := newMockListingRepo(&model.Listing{ID: "L1", OwnerID: "owner-1", Name: "ポチ"})
	var created *model.Sighting
	sightings := newMockSightingRepo()
	sightings.createFunc = func(ctx context.Context, sighting *model.Sighting) error {
		created = sighting
		return nil
	}
	push := &mockPushSender{}
	svc := newTestSightingService(listings, sightings, push)

	sighting, err := svc.Report(context.Background(), "reporter-1", ReportInput{
		ListingID: "L1",
		Location:  "中央公園の北口",
	})
	if err != nil {
		t.Fatalf("Report() returned error: %v", err)
	}

	if created == nil {
		t.Fatal("sighting was not persisted")
	}
	if sighting.ReporterID != "reporter-1" {
		t.Errorf("reporter ID = %q, want reporter-1", sighting.ReporterID)
	}
	if sighting.Location != "中央公園の北口" {
		t.Errorf("location = %q, want 中央公園の北口", sighting.Location)
	}

	if len(push.sent) != 1 {
		t.Fatalf("push sent %d times, want 1", len(push.sent))
	}
	if push.sentTo[0] != "owner-1" {
		t.Errorf("push sent to %q, want owner-1 (the listing owner)", push.sentTo[0])
	}
	if push.sent[0].Body != "ポチの目撃が報告されました" {
		t.Errorf("push body = %q, expected listing name in body", push.sent[0].Body)
	}
	if push.sent[0].Location != "中央公園の北口" {
		t.Errorf("push location = %q, want 中央公園の北口", push.sent[0].Location)
	}
}

// TestReport_OwnListing は自分の掲載への報告が拒否されることをテストする。
func TestReport_OwnListing(t *testing.T) {
	listings := newMockListingRepo(&model.Listing{ID: "L1", OwnerID: "owner-1"})
	sightings := newMockSightingRepo()
	sightings.createFunc = func(ctx context.Context, sighting *model.Sighting) error {
		t.Fatal("sighting must not be created for the listing owner")
		return nil
	}
	svc := newTestSightingService(listings, sightings, &mockPushSender{})

	_, err := svc.Report(context.Background(), "owner-1", ReportInput{ListingID: "L1", Location: "駅前"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeOwnSighting {
		t.Fatalf("expected OWN_SIGHTING, got %v", err)
	}
}

// TestReport_BlankLocation は場所未入力の拒否をテストする。
func TestReport_BlankLocation(t *testing.T) {
	listings := newMockListingRepo(&model.Listing{ID: "L1", OwnerID: "owner-1"})
	svc := newTestSightingService(listings, newMockSightingRepo(), &mockPushSender{})

	for _, location := range []string{"", "   ", "<p></p>"} {
		_, err := svc.Report(context.Background(), "reporter-1", ReportInput{ListingID: "L1", Location: location})
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeValidation {
			t.Errorf("Report() with location %q: expected VALIDATION_ERROR, got %v", location, err)
		}
	}
}

// TestReport_ListingNotFound は存在しない掲載への報告の拒否をテストする。
func TestReport_ListingNotFound(t *testing.T) {
	svc := newTestSightingService(newMockListingRepo(), newMockSightingRepo(), &mockPushSender{})

	_, err := svc.Report(context.Background(), "reporter-1", ReportInput{ListingID: "missing", Location: "駅前"})
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeListingNotFound {
		t.Fatalf("expected LISTING_NOT_FOUND, got %v", err)
	}
}

// TestReport_PushFailureDoesNotFailReport は通知失敗が報告の成否に
// 影響しないことをテストする。
func TestReport_PushFailureDoesNotFailReport(t *testing.T) {
	listings := newMockListingRepo(&model.Listing{ID: "L1", OwnerID: "owner-1", Name: "ポチ"})
	push := &mockPushSender{
		sendFunc: func(ctx context.Context, userID string, payload notify.Payload) error {
			return errors.New("push provider down")
		},
	}
	svc := newTestSightingService(listings, newMockSightingRepo(), push)

	if _, err := svc.Report(context.Background(), "reporter-1", ReportInput{ListingID: "L1", Location: "駅前"}); err != nil {
		t.Fatalf("Report() returned error: %v", err)
	}
}

// TestReport_SanitizesLocation は場所のHTMLタグ除去をテストする。
func TestReport_SanitizesLocation(t *testing.T) {
	listings := newMockListingRepo(&model.Listing{ID: "L1", OwnerID: "owner-1"})
	svc := newTestSightingService(listings, newMockSightingRepo(), &mockPushSender{})

	sighting, err := svc.Report(context.Background(), "reporter-1", ReportInput{
		ListingID: "L1",
		Location:  `<script>alert('x')</script>北区の河川敷`,
	})
	if err != nil {
		t.Fatalf("Report() returned error: %v", err)
	}
	if strings.Contains(sighting.Location, "script") {
		t.Errorf("location still contains markup: %q", sighting.Location)
	}
	if sighting.Location != "北区の河川敷" {
		t.Errorf("location = %q, want 北区の河川敷", sighting.Location)
	}
}

// TestNoticesForOwner は所有者向け通知一覧が解決済みビューで返ることをテストする。
func TestNoticesForOwner(t *testing.T) {
	listings := newMockListingRepo(&model.Listing{ID: "L1", OwnerID: "owner-1", Name: "ポチ"})
	sightings := newMockSightingRepo()
	sightings.listByListingOwner = []*model.Sighting{sightingFor("S1", "L1")}
	svc := newTestSightingService(listings, sightings, &mockPushSender{})

	notices, err := svc.NoticesForOwner(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("NoticesForOwner() returned error: %v", err)
	}
	if len(notices) != 1 || notices[0].ListingName != "ポチ" {
		t.Fatalf("notices = %v, want one resolved notice for ポチ", notices)
	}
}

// TestReportsByUser_RemovesOrphans は報告者ビューの走査中に孤児が削除されることをテストする。
func TestReportsByUser_RemovesOrphans(t *testing.T) {
	listings := newMockListingRepo(&model.Listing{ID: "L1", Name: "ポチ"})
	sightings := newMockSightingRepo()
	sightings.listByReporter = []*model.Sighting{
		sightingFor("S1", "L1"),
		sightingFor("S2", "L-deleted"),
	}
	svc := newTestSightingService(listings, sightings, &mockPushSender{})

	notices, err := svc.ReportsByUser(context.Background(), "reporter-1")
	if err != nil {
		t.Fatalf("ReportsByUser() returned error: %v", err)
	}
	if len(notices) != 1 || notices[0].ID != "S1" {
		t.Fatalf("notices = %v, want only S1", notices)
	}
	if got := sightings.deleteByIDCalls["S2"]; got != 1 {
		t.Errorf("delete(S2) called %d times, want exactly 1", got)
	}
}

type mockSightingMetrics struct {
	reported []string
}

func (m *mockSightingMetrics) RecordSightingReported(listingID string) {
	m.reported = append(m.reported, listingID)
}

// TestReport_RecordsMetrics は報告の受付成功時にメトリクスが記録されることをテストする。
func TestReport_RecordsMetrics(t *testing.T) {
	listings := newMockListingRepo(&model.Listing{ID: "L1", OwnerID: "owner-1", Name: "ポチ"})
	sightings := newMockSightingRepo()
	svc := newTestSightingService(listings, sightings, &mockPushSender{})
	recorder := &mockSightingMetrics{}
	svc.SetMetrics(recorder)

	if _, err := svc.Report(context.Background(), "reporter-1", ReportInput{ListingID: "L1", Location: "北区"}); err != nil {
		t.Fatalf("Report() returned error: %v", err)
	}
	if len(recorder.reported) != 1 || recorder.reported[0] != "L1" {
		t.Errorf("reported = %v, want [L1]", recorder.reported)
	}

	// 所有者自身の報告は拒否され、記録もされない
	if _, err := svc.Report(context.Background(), "owner-1", ReportInput{ListingID: "L1", Location: "北区"}); err == nil {
		t.Fatal("expected own-sighting rejection")
	}
	if len(recorder.reported) != 1 {
		t.Errorf("reported = %v after rejected report, want [L1]", recorder.reported)
	}
}
