package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/adminfeed/internal/config"
	"github.com/hitoshi/adminfeed/internal/facebook"
	"github.com/hitoshi/adminfeed/internal/feed"
	"github.com/hitoshi/adminfeed/internal/feedback"
	"github.com/hitoshi/adminfeed/internal/gemini"
	"github.com/hitoshi/adminfeed/internal/handler"
	"github.com/hitoshi/adminfeed/internal/logger"
	"github.com/hitoshi/adminfeed/internal/metrics"
	"github.com/hitoshi/adminfeed/internal/middleware"
	"github.com/hitoshi/adminfeed/internal/security"
	"github.com/hitoshi/adminfeed/internal/summary"
	"github.com/hitoshi/adminfeed/internal/upstream"
	"github.com/hitoshi/adminfeed/internal/youtube"
)

// shutdownTimeout はグレースフルシャットダウンの待機上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。fetchコマンドの結果はoutに書き出す。
func Run(w, out io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Int("window_days", cfg.WindowDays),
	)

	switch cmd {
	case CommandFetch:
		return runFetch(cfg, out, FetchTarget(args))
	default:
		return runServe(cfg)
	}
}

// components は起動モード間で共有する構築済みの依存関係。
type components struct {
	registry    *prometheus.Registry
	feeds       *feed.Service
	summaries   *summary.Store
	proxy       *upstream.Proxy
	videos      *youtube.Client
	posts       *facebook.Client
	summarizer  *gemini.Summarizer
	feedback    *feedback.Service
	rateLimiter *middleware.RateLimiter
}

// buildComponents は設定から全サービスを構築する。
// 外部サービスの認証情報が無い場合は未設定状態のクライアントを組み込む。
func buildComponents(ctx context.Context, cfg *config.Config, log *slog.Logger) (*components, error) {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 2. SSRF防止付きHTTPクライアント
	allowed := cfg.ProxyAllowedDomains
	if len(allowed) == 0 {
		allowed = upstream.DefaultAllowedDomains
	}
	allowlist := security.NewDomainAllowlist(allowed)
	proxyGuard := security.NewSSRFGuard(allowlist)
	sourceGuard := security.NewSSRFGuard(nil)
	httpClient := sourceGuard.NewSafeClient(cfg.UpstreamTimeout, cfg.UpstreamMaxSize)

	// 3. フィード取り込み
	posts := facebook.NewClient(httpClient, log, cfg.FacebookAccessToken, cfg.FacebookPageID)

	defs, err := feed.LoadDefinitions(cfg.FeedsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed definitions: %w", err)
	}
	reg, err := feed.NewRegistry(defs)
	if err != nil {
		return nil, fmt.Errorf("invalid feed definitions: %w", err)
	}
	builder := &feed.Builder{
		HTTPClient:       httpClient,
		MaxBodySize:      cfg.UpstreamMaxSize,
		Posts:            posts,
		FacebookMaxPages: cfg.FacebookMaxPages,
		Clock:            time.Now,
	}
	feeds, err := feed.NewService(reg, builder, cfg.WindowDays, cfg.UpstreamTimeout, time.Now, collector, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed service: %w", err)
	}

	// 4. 上流パススルー
	proxy := upstream.NewProxy(httpClient, proxyGuard, allowlist, cfg.UpstreamMaxSize, collector, log)

	// 5. 外部サービス
	videos, err := youtube.NewClient(ctx, cfg.YouTubeAPIKey, cfg.YouTubeChannelID)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}
	summarizer, err := gemini.NewSummarizer(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create summarizer: %w", err)
	}
	fb, err := feedback.NewService(ctx, cfg.GitHubToken, cfg.GitHubRepo, cfg.FeedbackTimeout, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create feedback service: %w", err)
	}

	slog.Info("external services configured",
		slog.Bool("youtube", videos.Configured()),
		slog.Bool("facebook", posts.Configured()),
		slog.Bool("gemini", summarizer.Configured()),
		slog.Bool("feedback", fb.Configured()),
		slog.Int("feeds", len(reg.IDs())),
	)

	// 6. レート制限
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitAPI, cfg.RateLimitAPIWindow, cfg.RateLimitSummarize),
		log,
	)

	return &components{
		registry:    registry,
		feeds:       feeds,
		summaries:   summary.NewStore(cfg.SummaryCachePath),
		proxy:       proxy,
		videos:      videos,
		posts:       posts,
		summarizer:  summarizer,
		feedback:    fb,
		rateLimiter: rateLimiter,
	}, nil
}

// newRouter は構築済みの依存関係からHTTPルーターを構成する。
func newRouter(cfg *config.Config, c *components, log *slog.Logger) http.Handler {
	return handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        c.rateLimiter,
		Logger:             log,
		Clock:              time.Now,
		MetricsHandler:     metrics.Handler(c.registry),

		FeedService: c.feeds,

		SummaryStore: c.summaries,
		Summarizer:   c.summarizer,

		Proxy: c.proxy,

		Videos:           c.videos,
		Posts:            c.posts,
		FacebookMaxPages: cfg.FacebookMaxPages,

		Feedback: c.feedback,
	})
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	c, err := buildComponents(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer c.rateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      newRouter(cfg, c, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runFetch はフィードを1回取得し、結果をJSONでoutに書き出す。
// targetがFetchAllの場合は全フィードを統合した結果を書き出す。
func runFetch(cfg *config.Config, out io.Writer, target string) error {
	log := slog.Default()
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, err := buildComponents(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.rateLimiter.Stop()

	return fetchTo(ctx, c.feeds, out, target)
}

// feedFetcher はfetchコマンドが使用するフィード取得のインターフェース。
type feedFetcher interface {
	FetchFeed(ctx context.Context, id string) (*feed.Result, error)
	FetchAll(ctx context.Context) (*feed.AggregateResult, error)
}

// fetchTo は対象フィードを取得してJSONをoutに書き出す。
func fetchTo(ctx context.Context, feeds feedFetcher, out io.Writer, target string) error {
	var result any
	if target == FetchAll {
		all, err := feeds.FetchAll(ctx)
		if err != nil {
			return fmt.Errorf("fetch all feeds: %w", err)
		}
		result = all
	} else {
		one, err := feeds.FetchFeed(ctx, target)
		if err != nil {
			return fmt.Errorf("fetch feed %s: %w", target, err)
		}
		result = one
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("write fetch result: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
