package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/digestman/internal/model"
)

// maxDigestListLimit はダイジェスト一覧の取得件数上限。
const maxDigestListLimit = 50

// DigestReaderInterface はダイジェストハンドラーが必要とする読み取りインターフェース。
type DigestReaderInterface interface {
	// FindByID は指定IDのダイジェストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Digest, error)
	// ListByUser はユーザーのダイジェスト一覧を生成日の降順で返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Digest, error)
	// ListEntries はダイジェストの内容をorder_position昇順で返す。
	ListEntries(ctx context.Context, digestID string) ([]model.DigestEntry, error)
	// MarkRead はダイジェストを既読にする。
	MarkRead(ctx context.Context, id string) error
}

// DigestHandler はダイジェストのHTTPハンドラー。
type DigestHandler struct {
	reader DigestReaderInterface
}

// NewDigestHandler はDigestHandlerを生成する。
func NewDigestHandler(reader DigestReaderInterface) *DigestHandler {
	return &DigestHandler{reader: reader}
}

// digestResponse はダイジェスト概要のAPIレスポンス。
type digestResponse struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	GenerationDate string    `json:"generation_date"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"created_at"`
}

// digestEntryResponse はダイジェスト内の1エントリのAPIレスポンス。
type digestEntryResponse struct {
	OrderPosition int        `json:"order_position"`
	SummaryText   string     `json:"summary_text"`
	Model         string     `json:"model"`
	ReadingTime   int        `json:"reading_time"`
	ArticleTitle  string     `json:"article_title"`
	ArticleURL    string     `json:"article_url"`
	SourceName    string     `json:"source_name"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
}

// digestDetailResponse はダイジェスト詳細のAPIレスポンス。
type digestDetailResponse struct {
	digestResponse
	Entries []digestEntryResponse `json:"entries"`
}

// ListDigests はユーザーのダイジェスト一覧を取得する。
// GET /api/digests?user_id=xxx
func (h *DigestHandler) ListDigests(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.PipelineError{
			Code:     "INVALID_REQUEST",
			Message:  "user_idは必須です。",
			Category: model.ErrCategoryValidation,
			Action:   "クエリパラメータuser_idを指定してください。",
		})
		return
	}

	digests, err := h.reader.ListByUser(r.Context(), userID, maxDigestListLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]digestResponse, 0, len(digests))
	for _, d := range digests {
		responses = append(responses, toDigestResponse(d))
	}

	writeJSON(w, http.StatusOK, map[string]any{"digests": responses})
}

// GetDigest はダイジェストの詳細（エントリ込み）を取得する。
// GET /api/digests/:id
func (h *DigestHandler) GetDigest(w http.ResponseWriter, r *http.Request) {
	digestID := chi.URLParam(r, "id")

	digest, err := h.reader.FindByID(r.Context(), digestID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if digest == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewDigestNotFoundError(digestID))
		return
	}

	entries, err := h.reader.ListEntries(r.Context(), digestID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	detail := digestDetailResponse{
		digestResponse: toDigestResponse(digest),
		Entries:        make([]digestEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		detail.Entries = append(detail.Entries, digestEntryResponse{
			OrderPosition: e.OrderPosition,
			SummaryText:   e.SummaryText,
			Model:         e.Model,
			ReadingTime:   e.ReadingTime,
			ArticleTitle:  e.ArticleTitle,
			ArticleURL:    e.ArticleURL,
			SourceName:    e.SourceName,
			PublishedAt:   e.PublishedAt,
		})
	}

	writeJSON(w, http.StatusOK, detail)
}

// MarkDigestRead はダイジェストを既読にする。
// POST /api/digests/:id/read
func (h *DigestHandler) MarkDigestRead(w http.ResponseWriter, r *http.Request) {
	digestID := chi.URLParam(r, "id")

	digest, err := h.reader.FindByID(r.Context(), digestID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if digest == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewDigestNotFoundError(digestID))
		return
	}

	if err := h.reader.MarkRead(r.Context(), digestID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toDigestResponse はmodel.DigestからAPIレスポンスに変換する。
func toDigestResponse(d *model.Digest) digestResponse {
	return digestResponse{
		ID:             d.ID,
		UserID:         d.UserID,
		Title:          d.Title,
		GenerationDate: d.GenerationDate.Format("2006-01-02"),
		Read:           d.Read,
		CreatedAt:      d.CreatedAt,
	}
}
