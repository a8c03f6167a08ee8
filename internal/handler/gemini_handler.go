package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/adminfeed/internal/gemini"
	"github.com/hitoshi/adminfeed/internal/middleware"
	"github.com/hitoshi/adminfeed/internal/model"
)

// Summarizer はAI要約のインターフェース。
type Summarizer interface {
	Summarize(ctx context.Context, content, messageType string) (string, error)
}

// GeminiHandler はAI要約生成のHTTPハンドラー。
type GeminiHandler struct {
	summarizer Summarizer
	logger     *slog.Logger
}

// NewGeminiHandler はGeminiHandlerを生成する。
func NewGeminiHandler(summarizer Summarizer, logger *slog.Logger) *GeminiHandler {
	return &GeminiHandler{summarizer: summarizer, logger: logger}
}

type summarizeRequest struct {
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
}

type summarizeResponse struct {
	Success bool   `json:"success"`
	Summary string `json:"summary"`
}

// Summarize はメッセージ本文の要約を生成する。
// POST /api/gemini/summarize
func (h *GeminiHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("content is required"))
		return
	}

	text, err := h.summarizer.Summarize(r.Context(), req.Content, req.MessageType)
	switch {
	case errors.Is(err, gemini.ErrNotConfigured):
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewNotConfiguredError("Gemini API"))
		return
	case errors.Is(err, gemini.ErrEmptyContent):
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("content is required"))
		return
	case err != nil:
		h.logger.Error("要約の生成に失敗しました",
			slog.String("message_type", req.MessageType),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewSummarizeFailedError("model request failed"))
		return
	}

	writeJSON(w, http.StatusOK, summarizeResponse{Success: true, Summary: text})
}
