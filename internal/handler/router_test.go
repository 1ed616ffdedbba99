package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/petfinder/internal/middleware"
	"github.com/hitoshi/petfinder/internal/model"
)

type mockSessionFinder struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionFinder) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// newTestRouter は全モック依存で構成したルーターを返す。
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	sessions := &mockSessionFinder{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session" {
				return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
			}
			return nil, nil
		},
	}

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rateLimiter.Stop)

	deps := &RouterDeps{
		HealthChecker:     &mockHealthChecker{},
		SessionFinder:     sessions,
		CORSAllowedOrigin: "http://localhost:3000",
		CSRFConfig:        middleware.CSRFConfig{},
		RateLimiter:       rateLimiter,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),

		AuthService:     &mockAuthService{},
		AuthConfig:      testAuthConfig(),
		RecoveryService: &mockRecoveryService{},
		ListingService:  &mockListingService{},
		SightingService: &mockSightingService{},
		UserService:     &mockUserService{},
	}

	return NewRouter(deps)
}

// csrfRequest はCSRFの二重送信Cookie検証を通過するリクエストを組み立てる。
func csrfRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-csrf-token"})
	req.Header.Set("X-CSRF-Token", "test-csrf-token")
	return req
}

func TestRouter_Health_ReturnsOK(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_Health_DBDown_Returns503(t *testing.T) {
	sessions := &mockSessionFinder{}
	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rateLimiter.Stop)

	router := NewRouter(&RouterDeps{
		HealthChecker:     &mockHealthChecker{err: errors.New("connection refused")},
		SessionFinder:     sessions,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rateLimiter,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		AuthService:       &mockAuthService{},
		AuthConfig:        testAuthConfig(),
		RecoveryService:   &mockRecoveryService{},
		ListingService:    &mockListingService{},
		SightingService:   &mockSightingService{},
		UserService:       &mockUserService{},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusServiceUnavailable {
		t.Errorf("GET /health status = %d, want %d", w.Result().StatusCode, http.StatusServiceUnavailable)
	}
}

func TestRouter_BrowseListings_PublicAccess(t *testing.T) {
	router := newTestRouter(t)

	// セッションCookieなしでも閲覧できる
	req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /api/listings status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestRouter_CSRFTokenEndpoint_SetsCookie(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/csrf-token status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var found bool
	for _, c := range resp.Cookies() {
		if c.Name == "csrf_token" && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("csrf_token cookie was not set")
	}
}

func TestRouter_StateChangingRequest_WithoutCSRF_Returns403(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sightings", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("POST without CSRF token status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

func TestRouter_AuthedRoute_WithoutSession_Returns401(t *testing.T) {
	router := newTestRouter(t)

	req := csrfRequest(http.MethodDelete, "/api/listings/listing-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("DELETE without session status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestRouter_AuthedRoute_WithValidSession_Succeeds(t *testing.T) {
	router := newTestRouter(t)

	req := csrfRequest(http.MethodDelete, "/api/listings/listing-1", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("DELETE with session status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

func TestRouter_SetsSecurityHeaders(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Result().Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/listings", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("OPTIONS status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want http://localhost:3000", got)
	}
}

func TestRouter_UnknownRoute_Returns404(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("GET /api/unknown status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}
