package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/petfinder/internal/model"
)

// RecoveryServiceInterface はパスワード再設定ハンドラーが必要とするサービスインターフェース。
type RecoveryServiceInterface interface {
	RequestRecovery(ctx context.Context, email string) error
	RemainingSeconds(ctx context.Context, email string) (int64, error)
	StatusMessage(email string) string
	ClearMessage(email string)
}

// RecoveryHandler はパスワード再設定メールのHTTPハンドラー。
// 再設定メールには60秒のクールダウンがあり、クールダウン中のリクエストは
// メール送信なしで拒否される。
type RecoveryHandler struct {
	service RecoveryServiceInterface
}

// NewRecoveryHandler はRecoveryHandlerを生成する。
func NewRecoveryHandler(service RecoveryServiceInterface) *RecoveryHandler {
	return &RecoveryHandler{service: service}
}

// recoveryRequest は再設定メール送信リクエストのボディ。
type recoveryRequest struct {
	Email string `json:"email"`
}

// recoveryStatusResponse は再設定クールダウン状態のレスポンス。
type recoveryStatusResponse struct {
	RemainingSeconds int64  `json:"remaining_seconds"`
	Message          string `json:"message"`
}

// Request はパスワード再設定メールの送信を要求する。
// POST /auth/recovery
func (h *RecoveryHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.RequestRecovery(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// Status は再設定クールダウンの残り秒数と表示用メッセージを返す。
// 残り秒数は最終送信時刻から都度再計算されるため、ポーリングで減少が観測できる。
// GET /auth/recovery/status?email=...
func (h *RecoveryHandler) Status(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("emailクエリパラメータを指定してください"))
		return
	}

	remaining, err := h.service.RemainingSeconds(r.Context(), email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recoveryStatusResponse{
		RemainingSeconds: remaining,
		Message:          h.service.StatusMessage(email),
	})
}

// ClearMessage は送信完了メッセージを消去する。クールダウンタイマーには影響しない。
// POST /auth/recovery/clear-message
func (h *RecoveryHandler) ClearMessage(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	h.service.ClearMessage(req.Email)
	w.WriteHeader(http.StatusNoContent)
}
