package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/petfinder/internal/model"
)

// mockRecoveryService はRecoveryServiceInterfaceのモック実装。
type mockRecoveryService struct {
	requestFn   func(ctx context.Context, email string) error
	remainingFn func(ctx context.Context, email string) (int64, error)
	messageFn   func(email string) string
	cleared     []string
}

func (m *mockRecoveryService) RequestRecovery(ctx context.Context, email string) error {
	if m.requestFn != nil {
		return m.requestFn(ctx, email)
	}
	return nil
}

func (m *mockRecoveryService) RemainingSeconds(ctx context.Context, email string) (int64, error) {
	if m.remainingFn != nil {
		return m.remainingFn(ctx, email)
	}
	return 0, nil
}

func (m *mockRecoveryService) StatusMessage(email string) string {
	if m.messageFn != nil {
		return m.messageFn(email)
	}
	return ""
}

func (m *mockRecoveryService) ClearMessage(email string) {
	m.cleared = append(m.cleared, email)
}

func TestRecoveryRequest_Accepted(t *testing.T) {
	var requestedEmail string
	svc := &mockRecoveryService{
		requestFn: func(ctx context.Context, email string) error {
			requestedEmail = email
			return nil
		},
	}
	h := NewRecoveryHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/recovery", strings.NewReader(`{"email":"taro@example.com"}`))
	w := httptest.NewRecorder()

	h.Request(w, req)

	if w.Result().StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusAccepted)
	}
	if requestedEmail != "taro@example.com" {
		t.Errorf("requested email = %q, want taro@example.com", requestedEmail)
	}
}

func TestRecoveryRequest_CooldownActive_Returns429(t *testing.T) {
	svc := &mockRecoveryService{
		requestFn: func(ctx context.Context, email string) error {
			return model.NewCooldownActiveError(42)
		},
	}
	h := NewRecoveryHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/recovery", strings.NewReader(`{"email":"taro@example.com"}`))
	w := httptest.NewRecorder()

	h.Request(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if body.Code != model.ErrCodeCooldownActive {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCooldownActive)
	}
	if !strings.Contains(body.Message, "42") {
		t.Errorf("message = %q, expected remaining seconds in message", body.Message)
	}
}

func TestRecoveryRequest_MailFailure_Returns502(t *testing.T) {
	svc := &mockRecoveryService{
		requestFn: func(ctx context.Context, email string) error {
			return model.NewMailFailureError("パスワード再設定メール")
		},
	}
	h := NewRecoveryHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/recovery", strings.NewReader(`{"email":"taro@example.com"}`))
	w := httptest.NewRecorder()

	h.Request(w, req)

	if w.Result().StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadGateway)
	}
}

func TestRecoveryStatus_ReturnsRemainingAndMessage(t *testing.T) {
	svc := &mockRecoveryService{
		remainingFn: func(ctx context.Context, email string) (int64, error) {
			return 30, nil
		},
		messageFn: func(email string) string {
			return "パスワード再設定メールを送信しました"
		},
	}
	h := NewRecoveryHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/auth/recovery/status?email=taro%40example.com", nil)
	w := httptest.NewRecorder()

	h.Status(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var body recoveryStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.RemainingSeconds != 30 {
		t.Errorf("remaining_seconds = %d, want 30", body.RemainingSeconds)
	}
	if body.Message != "パスワード再設定メールを送信しました" {
		t.Errorf("message = %q, want sent message", body.Message)
	}
}

func TestRecoveryStatus_MissingEmail_Returns400(t *testing.T) {
	h := NewRecoveryHandler(&mockRecoveryService{})

	req := httptest.NewRequest(http.MethodGet, "/auth/recovery/status", nil)
	w := httptest.NewRecorder()

	h.Status(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestRecoveryClearMessage_ClearsOnlyMessage(t *testing.T) {
	svc := &mockRecoveryService{}
	h := NewRecoveryHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/auth/recovery/clear-message", strings.NewReader(`{"email":"taro@example.com"}`))
	w := httptest.NewRecorder()

	h.ClearMessage(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if len(svc.cleared) != 1 || svc.cleared[0] != "taro@example.com" {
		t.Errorf("cleared = %v, want [taro@example.com]", svc.cleared)
	}
}
