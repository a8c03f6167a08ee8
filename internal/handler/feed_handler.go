package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/adminfeed/internal/feed"
	"github.com/hitoshi/adminfeed/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// FeedIDs は登録済みのフィードIDを返す。
	FeedIDs() []string
	// FetchFeed はフォールバックチェーンでフィードを取得する。
	FetchFeed(ctx context.Context, id string) (*feed.Result, error)
	// FetchAll は全フィードを取得してマージする。
	FetchAll(ctx context.Context) (*feed.AggregateResult, error)
}

// FeedHandler はフィード取得のHTTPハンドラー。
type FeedHandler struct {
	service FeedServiceInterface
	logger  *slog.Logger
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{service: service, logger: logger}
}

type feedListResponse struct {
	Success bool     `json:"success"`
	Feeds   []string `json:"feeds"`
}

type feedResponse struct {
	Success bool `json:"success"`
	*feed.Result
	Count int `json:"count"`
}

type messagesResponse struct {
	Success  bool            `json:"success"`
	Messages []model.Message `json:"messages"`
	Warnings []string        `json:"warnings"`
	Count    int             `json:"count"`
}

// ListFeeds は登録済みフィードIDの一覧を返す。
// GET /api/feeds
func (h *FeedHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, feedListResponse{Success: true, Feeds: h.service.FeedIDs()})
}

// GetFeed は1フィードを取得する。上流の失敗は警告として200で返す。
// GET /api/feeds/{feedID}
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.FetchFeed(r.Context(), chi.URLParam(r, "feedID"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, feedResponse{Success: true, Result: result, Count: len(result.Messages)})
}

// ListMessages は全フィードをマージしたメッセージ一覧を返す。
// GET /api/messages
func (h *FeedHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.FetchAll(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messagesResponse{
		Success:  true,
		Messages: result.Messages,
		Warnings: result.Warnings,
		Count:    len(result.Messages),
	})
}
