package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/petfinder/internal/middleware"
	"github.com/hitoshi/petfinder/internal/model"
	"github.com/hitoshi/petfinder/internal/sighting"
)

// SightingServiceInterface は目撃報告ハンドラーが必要とするサービスインターフェース。
type SightingServiceInterface interface {
	Report(ctx context.Context, reporterID string, input sighting.ReportInput) (*model.Sighting, error)
	NoticesForOwner(ctx context.Context, ownerID string) ([]*model.SightingNotice, error)
	ReportsByUser(ctx context.Context, reporterID string) ([]*model.SightingNotice, error)
}

// SightingHandler は目撃報告のHTTPハンドラー。
type SightingHandler struct {
	service SightingServiceInterface
}

// NewSightingHandler はSightingHandlerを生成する。
func NewSightingHandler(service SightingServiceInterface) *SightingHandler {
	return &SightingHandler{service: service}
}

// sightingResponse は目撃報告のAPIレスポンス。
type sightingResponse struct {
	ID        string `json:"id"`
	ListingID string `json:"listing_id"`
	Location  string `json:"location"`
	CreatedAt string `json:"created_at"`
}

// noticeResponse は親掲載の情報を結合した目撃報告のAPIレスポンス。
type noticeResponse struct {
	ID           string `json:"id"`
	ListingID    string `json:"listing_id"`
	ListingName  string `json:"listing_name"`
	ListingPhoto string `json:"listing_photo"`
	Location     string `json:"location"`
	CreatedAt    string `json:"created_at"`
}

// Report は目撃報告を受け付ける。
// POST /api/sightings（multipart/form-data: listing_id, location, photo）
func (h *SightingHandler) Report(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("multipartフォームの解析に失敗しました"))
		return
	}

	input := sighting.ReportInput{
		ListingID: r.FormValue("listing_id"),
		Location:  r.FormValue("location"),
	}

	file, header, err := r.FormFile("photo")
	if err == nil {
		defer file.Close()
		input.Photo = &sighting.PhotoUpload{
			Body:        file,
			ContentType: header.Header.Get("Content-Type"),
		}
	}

	created, err := h.service.Report(r.Context(), userID, input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sightingResponse{
		ID:        created.ID,
		ListingID: created.ListingID,
		Location:  created.Location,
		CreatedAt: created.CreatedAt.Format(time.RFC3339),
	})
}

// Notices は自分の掲載への目撃報告一覧を返す。
// GET /api/sightings/notices
func (h *SightingHandler) Notices(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	notices, err := h.service.NoticesForOwner(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeNoticeList(w, notices)
}

// Mine は自分が報告した目撃報告一覧を返す。
// 親掲載が削除済みの報告はこの取得時に整理され、結果に含まれない。
// GET /api/sightings/mine
func (h *SightingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	notices, err := h.service.ReportsByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeNoticeList(w, notices)
}

// writeNoticeList は目撃報告の解決済みビュー一覧をJSONで書き込む。
func writeNoticeList(w http.ResponseWriter, notices []*model.SightingNotice) {
	responses := make([]noticeResponse, 0, len(notices))
	for _, n := range notices {
		responses = append(responses, noticeResponse{
			ID:           n.ID,
			ListingID:    n.ListingID,
			ListingName:  n.ListingName,
			ListingPhoto: n.ListingPhoto,
			Location:     n.Location,
			CreatedAt:    n.CreatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}
