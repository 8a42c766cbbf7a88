package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/digestman/internal/model"
)

// ValidationServiceInterface はソースハンドラーが必要とするサービスインターフェース。
type ValidationServiceInterface interface {
	// Validate はURLを検証プローブする。
	Validate(ctx context.Context, rawURL string) (*model.SourceValidation, error)
}

// SourceHandler はソース検証のHTTPハンドラー。
type SourceHandler struct {
	validator ValidationServiceInterface
}

// NewSourceHandler はSourceHandlerを生成する。
func NewSourceHandler(validator ValidationServiceInterface) *SourceHandler {
	return &SourceHandler{validator: validator}
}

// validateSourceRequest はソース検証リクエストのボディ。
type validateSourceRequest struct {
	URL string `json:"url"`
}

// validationResponse はソース検証結果のAPIレスポンス。
type validationResponse struct {
	Valid       bool   `json:"valid"`
	IsFeed      bool   `json:"is_feed"`
	FeedURL     string `json:"feed_url,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Message     string `json:"message,omitempty"`
}

// ValidateSource はソースURLの検証を処理する。
// POST /api/sources/validate
func (h *SourceHandler) ValidateSource(w http.ResponseWriter, r *http.Request) {
	var req validateSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	validation, err := h.validator.Validate(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, validationResponse{
		Valid:       validation.Valid,
		IsFeed:      validation.IsFeed,
		FeedURL:     validation.FeedURL,
		Title:       validation.Title,
		Description: validation.Description,
		Message:     validation.Message,
	})
}
