package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	yt "google.golang.org/api/youtube/v3"

	"github.com/hitoshi/adminfeed/internal/facebook"
	"github.com/hitoshi/adminfeed/internal/feed"
	"github.com/hitoshi/adminfeed/internal/feedback"
	"github.com/hitoshi/adminfeed/internal/middleware"
	"github.com/hitoshi/adminfeed/internal/model"
	"github.com/hitoshi/adminfeed/internal/upstream"
)

// --- モック定義 ---

// mockFeedService はFeedServiceInterfaceのモック実装。
type mockFeedService struct {
	feedIDsFn   func() []string
	fetchFeedFn func(ctx context.Context, id string) (*feed.Result, error)
	fetchAllFn  func(ctx context.Context) (*feed.AggregateResult, error)
}

func (m *mockFeedService) FeedIDs() []string {
	if m.feedIDsFn != nil {
		return m.feedIDsFn()
	}
	return []string{}
}

func (m *mockFeedService) FetchFeed(ctx context.Context, id string) (*feed.Result, error) {
	if m.fetchFeedFn != nil {
		return m.fetchFeedFn(ctx, id)
	}
	return nil, model.NewFeedNotFoundError(id)
}

func (m *mockFeedService) FetchAll(ctx context.Context) (*feed.AggregateResult, error) {
	if m.fetchAllFn != nil {
		return m.fetchAllFn(ctx)
	}
	return &feed.AggregateResult{Messages: []model.Message{}, Warnings: []string{}}, nil
}

// mockSummaryStore はSummaryStoreのモック実装。
type mockSummaryStore struct {
	getFn func(key string) (*model.SummaryEntry, error)
	putFn func(key, text, messageType, messageID string) error
	allFn func() (map[string]model.SummaryEntry, error)
}

func (m *mockSummaryStore) Get(key string) (*model.SummaryEntry, error) {
	return m.getFn(key)
}

func (m *mockSummaryStore) Put(key, text, messageType, messageID string) error {
	return m.putFn(key, text, messageType, messageID)
}

func (m *mockSummaryStore) All() (map[string]model.SummaryEntry, error) {
	return m.allFn()
}

// mockProxy はUpstreamProxyのモック実装。
type mockProxy struct {
	fetchALNAVFn      func(ctx context.Context, rawYear string) (*upstream.Response, error)
	fetchDirectivesFn func(ctx context.Context) (*upstream.Response, error)
	fetchFn           func(ctx context.Context, rawURL string) (*upstream.Response, error)
}

func (m *mockProxy) FetchALNAVListing(ctx context.Context, rawYear string) (*upstream.Response, error) {
	return m.fetchALNAVFn(ctx, rawYear)
}

func (m *mockProxy) FetchDirectivesListing(ctx context.Context) (*upstream.Response, error) {
	return m.fetchDirectivesFn(ctx)
}

func (m *mockProxy) Fetch(ctx context.Context, rawURL string) (*upstream.Response, error) {
	return m.fetchFn(ctx, rawURL)
}

// mockVideoSearcher はVideoSearcherのモック実装。
type mockVideoSearcher struct {
	searchFn func(ctx context.Context, pageToken string, maxResults int) (*yt.SearchListResponse, error)
}

func (m *mockVideoSearcher) SearchVideos(ctx context.Context, pageToken string, maxResults int) (*yt.SearchListResponse, error) {
	return m.searchFn(ctx, pageToken, maxResults)
}

// mockPostsSource はPostsSourceのモック実装。
type mockPostsSource struct {
	fetchFn func(ctx context.Context, maxPages int) (*facebook.PostsResult, error)
}

func (m *mockPostsSource) FetchPosts(ctx context.Context, maxPages int) (*facebook.PostsResult, error) {
	return m.fetchFn(ctx, maxPages)
}

// mockSummarizer はSummarizerのモック実装。
type mockSummarizer struct {
	summarizeFn func(ctx context.Context, content, messageType string) (string, error)
}

func (m *mockSummarizer) Summarize(ctx context.Context, content, messageType string) (string, error) {
	return m.summarizeFn(ctx, content, messageType)
}

// mockFeedbackSubmitter はFeedbackSubmitterのモック実装。
type mockFeedbackSubmitter struct {
	submitFn func(ctx context.Context, req feedback.Request) (*feedback.Result, error)
}

func (m *mockFeedbackSubmitter) Submit(ctx context.Context, req feedback.Request) (*feedback.Result, error) {
	return m.submitFn(ctx, req)
}

// --- テストヘルパー ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// newTestDeps はテスト用のRouterDepsを生成する。
// 各テストで必要な依存だけを差し替えて使う。
func newTestDeps(t *testing.T) *RouterDeps {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), testLogger())
	t.Cleanup(rl.Stop)

	return &RouterDeps{
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		RateLimiter:        rl,
		Logger:             testLogger(),
		Clock:              func() time.Time { return testNow },
		FeedService:        &mockFeedService{},
		SummaryStore:       &mockSummaryStore{},
		Proxy:              &mockProxy{},
		Videos:             &mockVideoSearcher{},
		Posts:              &mockPostsSource{},
		FacebookMaxPages:   10,
		Summarizer:         &mockSummarizer{},
		Feedback:           &mockFeedbackSubmitter{},
	}
}

// serve はルーター経由でリクエストを処理する。
func serve(deps *RouterDeps, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	NewRouter(deps).ServeHTTP(w, req)
	return w
}

// decodeBody はレスポンスボディをmapにデコードするヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v\nraw: %s", err, w.Body.String())
	}
	return result
}
