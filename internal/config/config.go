package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// 外部サービスの認証情報は任意で、未設定の機能は503を返す。
type Config struct {
	// Server
	ServerPort string
	LogLevel   string

	// CORS
	CORSAllowedOrigins []string

	// Feeds
	FeedsConfigPath string
	WindowDays      int

	// Upstream
	UpstreamTimeout     time.Duration
	UpstreamMaxSize     int64
	ProxyAllowedDomains []string

	// Summary cache
	SummaryCachePath string

	// YouTube
	YouTubeAPIKey    string
	YouTubeChannelID string

	// Facebook
	FacebookAccessToken string
	FacebookPageID      string
	FacebookMaxPages    int

	// Gemini
	GeminiAPIKey string
	GeminiModel  string

	// Feedback
	GitHubToken     string
	GitHubRepo      string
	FeedbackTimeout time.Duration

	// Rate Limit
	RateLimitAPI       int
	RateLimitAPIWindow time.Duration
	RateLimitSummarize int
}

// Load は環境変数からConfigを読み込む。
// 安全なデフォルトに戻せない不正値がある場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.ServerPort = getEnvString("SERVER_PORT", "3000")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"})

	cfg.FeedsConfigPath = getEnvString("FEEDS_CONFIG_PATH", "")
	cfg.WindowDays = getEnvInt("WINDOW_DAYS", 7)

	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", 30*time.Second)
	cfg.UpstreamMaxSize = getEnvInt64("UPSTREAM_MAX_SIZE", 10485760)
	cfg.ProxyAllowedDomains = getEnvList("PROXY_ALLOWED_DOMAINS", nil)

	cfg.SummaryCachePath = getEnvString("SUMMARY_CACHE_PATH", "data/summaries.json")

	cfg.YouTubeAPIKey = os.Getenv("YOUTUBE_API_KEY")
	cfg.YouTubeChannelID = os.Getenv("YOUTUBE_CHANNEL_ID")

	cfg.FacebookAccessToken = os.Getenv("FACEBOOK_ACCESS_TOKEN")
	cfg.FacebookPageID = getEnvString("FACEBOOK_PAGE_ID", "semperadmin")
	cfg.FacebookMaxPages = getEnvInt("FACEBOOK_MAX_PAGES", 10)

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.5-flash")

	cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	cfg.GitHubRepo = strings.TrimSpace(os.Getenv("GITHUB_REPO"))
	cfg.FeedbackTimeout = getEnvDuration("FEEDBACK_TIMEOUT", 15*time.Second)

	cfg.RateLimitAPI = getEnvInt("RATE_LIMIT_API", 100)
	cfg.RateLimitAPIWindow = getEnvDuration("RATE_LIMIT_API_WINDOW", 15*time.Minute)
	cfg.RateLimitSummarize = getEnvInt("RATE_LIMIT_SUMMARIZE", 10)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate はデフォルトに戻せない設定値を検証する。
func (c *Config) validate() error {
	var invalid []string

	if c.GitHubRepo != "" {
		parts := strings.Split(c.GitHubRepo, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			invalid = append(invalid, "GITHUB_REPO (must be owner/name)")
		}
	}
	if c.RateLimitAPI <= 0 {
		invalid = append(invalid, "RATE_LIMIT_API (must be positive)")
	}
	if c.RateLimitAPIWindow <= 0 {
		invalid = append(invalid, "RATE_LIMIT_API_WINDOW (must be positive)")
	}
	if c.RateLimitSummarize <= 0 {
		invalid = append(invalid, "RATE_LIMIT_SUMMARIZE (must be positive)")
	}
	if c.UpstreamMaxSize <= 0 {
		invalid = append(invalid, "UPSTREAM_MAX_SIZE (must be positive)")
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %v", invalid)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvList はカンマ区切りの環境変数を空要素を除いたスライスとして返す。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
