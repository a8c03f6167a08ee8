package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/adminfeed/internal/feedback"
	"github.com/hitoshi/adminfeed/internal/middleware"
	"github.com/hitoshi/adminfeed/internal/model"
)

// FeedbackSubmitter はフィードバック登録のインターフェース。
type FeedbackSubmitter interface {
	Submit(ctx context.Context, req feedback.Request) (*feedback.Result, error)
}

// FeedbackHandler はフィードバック登録のHTTPハンドラー。
type FeedbackHandler struct {
	submitter FeedbackSubmitter
	logger    *slog.Logger
}

// NewFeedbackHandler はFeedbackHandlerを生成する。
func NewFeedbackHandler(submitter FeedbackSubmitter, logger *slog.Logger) *FeedbackHandler {
	return &FeedbackHandler{submitter: submitter, logger: logger}
}

type feedbackResponse struct {
	Success bool `json:"success"`
	*feedback.Result
}

// Submit はフィードバックをIssueとして登録する。
// POST /api/feedback
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req feedback.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Type) == "" || strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Description) == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(feedback.ErrInvalidRequest.Error()))
		return
	}

	result, err := h.submitter.Submit(r.Context(), req)
	switch {
	case errors.Is(err, feedback.ErrNotConfigured):
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewNotConfiguredError("feedback"))
		return
	case errors.Is(err, feedback.ErrInvalidRequest):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(err.Error()))
		return
	case err != nil:
		h.logger.Error("フィードバックの登録に失敗しました", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewFeedbackFailedError("issue tracker request failed"))
		return
	}

	writeJSON(w, http.StatusCreated, feedbackResponse{Success: true, Result: result})
}
