package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/adminfeed/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	Logger             *slog.Logger
	Clock              func() time.Time

	// メトリクス（/metrics）
	MetricsHandler http.Handler

	// フィード
	FeedService FeedServiceInterface

	// 要約キャッシュ・AI要約
	SummaryStore SummaryStore
	Summarizer   Summarizer

	// 上流パススルー
	Proxy UpstreamProxy

	// ソーシャル
	Videos           VideoSearcher
	Posts            PostsSource
	FacebookMaxPages int

	// フィードバック
	Feedback FeedbackSubmitter
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → CORS → RateLimit(/api/のみ)
//
// /api/gemini/summarizeには要約専用のレート制限を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	feedHandler := NewFeedHandler(deps.FeedService, deps.Logger)
	summaryHandler := NewSummaryHandler(deps.SummaryStore, deps.Logger)
	upstreamHandler := NewUpstreamHandler(deps.Proxy, deps.Logger)
	socialHandler := NewSocialHandler(deps.Videos, deps.Posts, deps.FacebookMaxPages, deps.Logger)
	geminiHandler := NewGeminiHandler(deps.Summarizer, deps.Logger)
	feedbackHandler := NewFeedbackHandler(deps.Feedback, deps.Logger)

	// --- レート制限対象外のルート ---
	r.Get("/health", NewHealthHandler(clock))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- /api/ ---
	r.Route("/api", func(r chi.Router) {
		r.Use(deps.RateLimiter.APIMiddleware())

		// フィード
		r.Get("/feeds", feedHandler.ListFeeds)
		r.Get("/feeds/{feedID}", feedHandler.GetFeed)
		r.Get("/messages", feedHandler.ListMessages)

		// 上流パススルー
		r.Get("/alnav/{year}", upstreamHandler.ALNAVListing)
		r.Get("/navy-directives", upstreamHandler.DirectivesListing)
		r.Get("/proxy", upstreamHandler.Proxy)

		// 要約キャッシュ
		r.Get("/summary/*", summaryHandler.GetSummary)
		r.Post("/summary", summaryHandler.PutSummary)
		r.Get("/summaries", summaryHandler.ListSummaries)

		// ソーシャル
		r.Get("/youtube/videos", socialHandler.YouTubeVideos)
		r.Get("/facebook/semperadmin", socialHandler.FacebookPosts)

		// AI要約（要約専用レート制限を追加）
		r.With(deps.RateLimiter.SummarizeMiddleware()).Post("/gemini/summarize", geminiHandler.Summarize)

		// フィードバック
		r.Post("/feedback", feedbackHandler.Submit)
	})

	return r
}
