package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/adminfeed/internal/middleware"
	"github.com/hitoshi/adminfeed/internal/model"
	"github.com/hitoshi/adminfeed/internal/summary"
)

// SummaryStore は要約キャッシュのインターフェース。
type SummaryStore interface {
	Get(key string) (*model.SummaryEntry, error)
	Put(key, text, messageType, messageID string) error
	All() (map[string]model.SummaryEntry, error)
}

// SummaryHandler は要約キャッシュのHTTPハンドラー。
type SummaryHandler struct {
	store  SummaryStore
	logger *slog.Logger
}

// NewSummaryHandler はSummaryHandlerを生成する。
func NewSummaryHandler(store SummaryStore, logger *slog.Logger) *SummaryHandler {
	return &SummaryHandler{store: store, logger: logger}
}

type putSummaryRequest struct {
	MessageKey  string `json:"messageKey"`
	Summary     string `json:"summary"`
	MessageType string `json:"messageType"`
	MessageID   string `json:"messageId"`
}

type summaryResponse struct {
	Success   bool      `json:"success"`
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}

type summariesResponse struct {
	Success   bool                          `json:"success"`
	Count     int                           `json:"count"`
	Summaries map[string]model.SummaryEntry `json:"summaries"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// GetSummary はキャッシュ済みの要約を返す。
// キーは"MARADMIN 123/25"のように"/"を含むため、ワイルドカードで受けてデコードする。
// GET /api/summary/{messageKey...}
func (h *SummaryHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if decoded, err := url.PathUnescape(key); err == nil {
		key = decoded
	}
	if key == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("messageKey is required"))
		return
	}

	entry, err := h.store.Get(key)
	if errors.Is(err, summary.ErrNotFound) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewSummaryNotFoundError(key))
		return
	}
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, summaryResponse{
		Success:   true,
		Summary:   entry.Summary,
		Timestamp: entry.Timestamp,
	})
}

// PutSummary は要約を保存する。同じキーは上書きする。
// POST /api/summary
func (h *SummaryHandler) PutSummary(w http.ResponseWriter, r *http.Request) {
	var req putSummaryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.MessageKey) == "" || strings.TrimSpace(req.Summary) == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("messageKey and summary are required"))
		return
	}

	if err := h.store.Put(req.MessageKey, req.Summary, req.MessageType, req.MessageID); err != nil {
		h.logger.Error("要約キャッシュの書き込みに失敗しました",
			slog.String("message_key", req.MessageKey),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewCacheWriteFailedError())
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// ListSummaries はキャッシュ全体を返す。
// GET /api/summaries
func (h *SummaryHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.All()
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, summariesResponse{
		Success:   true,
		Count:     len(entries),
		Summaries: entries,
	})
}
