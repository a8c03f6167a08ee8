package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/adminfeed/internal/upstream"
)

// UpstreamProxy は上流ページのパススルー取得のインターフェース。
type UpstreamProxy interface {
	FetchALNAVListing(ctx context.Context, rawYear string) (*upstream.Response, error)
	FetchDirectivesListing(ctx context.Context) (*upstream.Response, error)
	Fetch(ctx context.Context, rawURL string) (*upstream.Response, error)
}

// UpstreamHandler は上流ページのパススルーと汎用プロキシのHTTPハンドラー。
type UpstreamHandler struct {
	proxy  UpstreamProxy
	logger *slog.Logger
}

// NewUpstreamHandler はUpstreamHandlerを生成する。
func NewUpstreamHandler(proxy UpstreamProxy, logger *slog.Logger) *UpstreamHandler {
	return &UpstreamHandler{proxy: proxy, logger: logger}
}

// ALNAVListing は年別ALNAV一覧ページのHTMLをそのまま返す。
// GET /api/alnav/{year}
func (h *UpstreamHandler) ALNAVListing(w http.ResponseWriter, r *http.Request) {
	resp, err := h.proxy.FetchALNAVListing(r.Context(), chi.URLParam(r, "year"))
	h.write(w, resp, err)
}

// DirectivesListing は現行指令一覧ページのHTMLをそのまま返す。
// GET /api/navy-directives
func (h *UpstreamHandler) DirectivesListing(w http.ResponseWriter, r *http.Request) {
	resp, err := h.proxy.FetchDirectivesListing(r.Context())
	h.write(w, resp, err)
}

// Proxy は許可ドメインのURLを取得して返す。
// GET /api/proxy?url=
func (h *UpstreamHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	resp, err := h.proxy.Fetch(r.Context(), r.URL.Query().Get("url"))
	h.write(w, resp, err)
}

func (h *UpstreamHandler) write(w http.ResponseWriter, resp *upstream.Response, err error) {
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "text/html; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(resp.Body)
}
