package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/petfinder/internal/listing"
	"github.com/hitoshi/petfinder/internal/middleware"
	"github.com/hitoshi/petfinder/internal/model"
)

// maxUploadMemory はmultipartフォーム解析時にメモリへ保持する最大バイト数。
const maxUploadMemory = 10 * 1024 * 1024

// lostDateLayout は迷子になった日の入力フォーマット。
const lostDateLayout = "2006-01-02"

// ListingServiceInterface は掲載ハンドラーが必要とするサービスインターフェース。
type ListingServiceInterface interface {
	Publish(ctx context.Context, ownerID string, input listing.PublishInput) (*model.Listing, error)
	Get(ctx context.Context, listingID string) (*model.Listing, error)
	Browse(ctx context.Context, limit int) ([]*model.Listing, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Listing, error)
	Update(ctx context.Context, userID, listingID string, input listing.UpdateInput) (*model.Listing, error)
	Close(ctx context.Context, userID, listingID string) error
	PhotoURL(ctx context.Context, photoKey string) (string, error)
}

// ListingHandler は迷子ペット掲載のHTTPハンドラー。
type ListingHandler struct {
	service ListingServiceInterface
}

// NewListingHandler はListingHandlerを生成する。
func NewListingHandler(service ListingServiceInterface) *ListingHandler {
	return &ListingHandler{service: service}
}

// listingResponse は掲載情報のAPIレスポンス。
type listingResponse struct {
	ID          string `json:"id"`
	OwnerID     string `json:"owner_id"`
	Name        string `json:"name"`
	Breed       string `json:"breed"`
	Age         string `json:"age"`
	Locality    string `json:"locality"`
	LastSeen    string `json:"last_seen"`
	Description string `json:"description"`
	LostDate    string `json:"lost_date"`
	PhotoURL    string `json:"photo_url"`
	CreatedAt   string `json:"created_at"`
}

// Publish は掲載を公開する。
// POST /api/listings（multipart/form-data）
// 写真はphotoフィールドのファイル、またはphoto_urlフィールドのURL取り込みで指定する。
func (h *ListingHandler) Publish(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("multipartフォームの解析に失敗しました"))
		return
	}

	input := listing.PublishInput{
		Name:        r.FormValue("name"),
		Breed:       r.FormValue("breed"),
		Age:         r.FormValue("age"),
		Locality:    r.FormValue("locality"),
		LastSeen:    r.FormValue("last_seen"),
		Description: r.FormValue("description"),
		PhotoURL:    r.FormValue("photo_url"),
	}

	if lostDate := r.FormValue("lost_date"); lostDate != "" {
		parsed, err := time.Parse(lostDateLayout, lostDate)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("迷子になった日はYYYY-MM-DD形式で入力してください"))
			return
		}
		input.LostDate = parsed
	}

	file, header, err := r.FormFile("photo")
	if err == nil {
		defer file.Close()
		input.Photo = &listing.PhotoUpload{
			Body:        file,
			ContentType: header.Header.Get("Content-Type"),
		}
	}

	created, err := h.service.Publish(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(h.toListingResponse(r.Context(), created))
}

// Browse は新着順の掲載一覧を返す。
// GET /api/listings?limit=50
func (h *ListingHandler) Browse(w http.ResponseWriter, r *http.Request) {
	limit := listing.DefaultBrowseLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("limitは1以上の整数で指定してください"))
			return
		}
		limit = parsed
	}

	listings, err := h.service.Browse(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeListingList(r.Context(), w, listings)
}

// Mine は自分が作成した掲載一覧を返す。
// GET /api/listings/mine
func (h *ListingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	listings, err := h.service.ListByOwner(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.writeListingList(r.Context(), w, listings)
}

// Get は掲載詳細を返す。
// GET /api/listings/{id}
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	listingID := chi.URLParam(r, "id")

	found, err := h.service.Get(r.Context(), listingID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.toListingResponse(r.Context(), found))
}

// Update は掲載内容を更新する。所有者のみ実行できる。
// PUT /api/listings/{id}（multipart/form-data）
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	listingID := chi.URLParam(r, "id")

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("multipartフォームの解析に失敗しました"))
		return
	}

	input := listing.UpdateInput{
		Name:        r.FormValue("name"),
		Breed:       r.FormValue("breed"),
		Age:         r.FormValue("age"),
		Locality:    r.FormValue("locality"),
		LastSeen:    r.FormValue("last_seen"),
		Description: r.FormValue("description"),
	}

	if lostDate := r.FormValue("lost_date"); lostDate != "" {
		parsed, err := time.Parse(lostDateLayout, lostDate)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("迷子になった日はYYYY-MM-DD形式で入力してください"))
			return
		}
		input.LostDate = parsed
	}

	file, header, err := r.FormFile("photo")
	if err == nil {
		defer file.Close()
		input.Photo = &listing.PhotoUpload{
			Body:        file,
			ContentType: header.Header.Get("Content-Type"),
		}
	}

	updated, err := h.service.Update(r.Context(), userID, listingID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.toListingResponse(r.Context(), updated))
}

// Close は掲載をクローズする。紐づく目撃報告と写真も削除される。
// DELETE /api/listings/{id}
func (h *ListingHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	listingID := chi.URLParam(r, "id")

	if err := h.service.Close(r.Context(), userID, listingID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeListingList は掲載一覧をJSONで書き込む。
func (h *ListingHandler) writeListingList(ctx context.Context, w http.ResponseWriter, listings []*model.Listing) {
	responses := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		responses = append(responses, h.toListingResponse(ctx, l))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// toListingResponse はmodel.ListingからAPIレスポンスに変換する。
// 写真キーは参照用URLに解決する。解決失敗時は空文字のまま返す。
func (h *ListingHandler) toListingResponse(ctx context.Context, l *model.Listing) listingResponse {
	photoURL, err := h.service.PhotoURL(ctx, l.PhotoKey)
	if err != nil {
		slog.Warn("failed to resolve photo URL",
			slog.String("listing_id", l.ID),
			slog.String("error", err.Error()),
		)
		photoURL = ""
	}

	return listingResponse{
		ID:          l.ID,
		OwnerID:     l.OwnerID,
		Name:        l.Name,
		Breed:       l.Breed,
		Age:         l.Age,
		Locality:    l.Locality,
		LastSeen:    l.LastSeen,
		Description: l.Description,
		LostDate:    l.LostDate.Format(lostDateLayout),
		PhotoURL:    photoURL,
		CreatedAt:   l.CreatedAt.Format(time.RFC3339),
	}
}

// --- 共通ヘルパー ---

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeUnauthorized は401レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeInvalidRequestBody はリクエストボディ解析失敗の400レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeNameTaken, model.ErrCodeEmailTaken, model.ErrCodeOwnSighting:
		return http.StatusConflict
	case model.ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case model.ErrCodeUserNotFound, model.ErrCodeListingNotFound:
		return http.StatusNotFound
	case model.ErrCodeNotOwner, model.ErrCodePhotoBlocked:
		return http.StatusForbidden
	case model.ErrCodeCooldownActive:
		return http.StatusTooManyRequests
	case model.ErrCodeStorageFailure, model.ErrCodeMailFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
