package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/adminfeed/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	APIRate         rate.Limit    // /api/全体のレート（req/sec）。100/900
	APIBurst        int           // /api/全体のバーストサイズ
	SummarizeRate   rate.Limit    // AI要約のレート（req/sec）。10/60
	SummarizeBurst  int           // AI要約のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// NewRateLimiterConfig は「window内にrequests回」の指定からレート設定を生成する。
// バーストサイズは回数と同じにする。
func NewRateLimiterConfig(apiRequests int, apiWindow time.Duration, summarizePerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		APIRate:         rate.Limit(float64(apiRequests) / apiWindow.Seconds()),
		APIBurst:        apiRequests,
		SummarizeRate:   rate.Limit(float64(summarizePerMinute) / 60.0),
		SummarizeBurst:  summarizePerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// /api/全体 100 req/15min/IP、AI要約 10 req/min/IP
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(100, 15*time.Minute, 10)
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet はクライアントIPをキーとするリミッターの集合。
type limiterSet struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

// get はクライアントのリミッターを取得または作成する。
func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cl, exists := s.limiters[key]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(s.limit, s.burst)
	s.limiters[key] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

// len は管理中のエントリ数を返す。
func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// evict は最終アクセス時刻がttlを超えたエントリを削除する。
func (s *limiterSet) evict(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cl := range s.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

// RateLimiter はクライアントIPごとのレート制限を管理する。
// /api/全体のレート制限とAI要約のレート制限の2種類を提供する。
type RateLimiter struct {
	config    RateLimiterConfig
	api       *limiterSet
	summarize *limiterSet
	logger    *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	rl := &RateLimiter{
		config:    config,
		api:       newLimiterSet(config.APIRate, config.APIBurst),
		summarize: newLimiterSet(config.SummarizeRate, config.SummarizeBurst),
		logger:    logger,
		stopCh:    make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// APIMiddleware は/api/全体のレート制限ミドルウェアを返す。
func (rl *RateLimiter) APIMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.api, "api")
}

// SummarizeMiddleware はAI要約専用のレート制限ミドルウェアを返す。
// /api/全体のレート制限とは独立に動作する。
func (rl *RateLimiter) SummarizeMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.summarize, "summarize")
}

// APILimiterCount は現在管理されている/api/リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) APILimiterCount() int {
	return rl.api.len()
}

// SummarizeLimiterCount は現在管理されているAI要約リミッターのエントリ数を返す。
func (rl *RateLimiter) SummarizeLimiterCount() int {
	return rl.summarize.len()
}

func (rl *RateLimiter) middleware(set *limiterSet, limitType string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := ClientIP(r)

			if !set.get(clientIP).Allow() {
				writeRateLimitResponse(w, set.limit)
				rl.logger.Warn("rate limit exceeded",
					slog.String("client_ip", clientIP),
					slog.String("limit_type", limitType),
					slog.String("request_id", RequestIDFromContext(r.Context())),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP はリクエスト元のIPアドレスを返す。
// RemoteAddrのポート部分を除去する。プロキシ配下ではchiのRealIPミドルウェアを前段に置くこと。
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
// 15分ウィンドウのリミッターはトークンが満杯に戻るまで保持する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	if refill := refillDuration(rl.config.APIRate, rl.config.APIBurst); refill > ttl {
		ttl = refill
	}

	now := time.Now()
	rl.api.evict(now, ttl)
	rl.summarize.evict(now, ttl)
}

// refillDuration はバースト分のトークンが補充されるまでの時間を返す。
func refillDuration(r rate.Limit, burst int) time.Duration {
	if r <= 0 {
		return 0
	}
	return time.Duration(float64(burst) / float64(r) * float64(time.Second))
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitExceededError())
}
