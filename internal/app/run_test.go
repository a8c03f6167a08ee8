package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/adminfeed/internal/feed"
	"github.com/hitoshi/adminfeed/internal/model"
)

// mockFeedFetcher はfeedFetcherのモック。
type mockFeedFetcher struct {
	fetchFeedFn func(ctx context.Context, id string) (*feed.Result, error)
	fetchAllFn  func(ctx context.Context) (*feed.AggregateResult, error)
}

func (m *mockFeedFetcher) FetchFeed(ctx context.Context, id string) (*feed.Result, error) {
	return m.fetchFeedFn(ctx, id)
}

func (m *mockFeedFetcher) FetchAll(ctx context.Context) (*feed.AggregateResult, error) {
	return m.fetchAllFn(ctx)
}

// TestRun_FetchUnknownFeed_ReturnsError は未登録フィードのfetchがエラーになることを検証する。
// 上流への通信は発生しない。
func TestRun_FetchUnknownFeed_ReturnsError(t *testing.T) {
	setTestEnv(t)

	var logs, out bytes.Buffer
	err := Run(&logs, &out, []string{"fetch", "no-such-feed"})
	if err == nil {
		t.Fatal("Run(fetch no-such-feed) should return error")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeFeedNotFound {
		t.Errorf("error = %v, want FEED_NOT_FOUND", err)
	}
	if out.Len() != 0 {
		t.Errorf("no output expected on error, got %s", out.String())
	}
}

func TestRun_WithInvalidEnv_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("RATE_LIMIT_API", "0")

	var logs, out bytes.Buffer
	err := Run(&logs, &out, []string{"serve"})
	if err == nil {
		t.Fatal("Run with invalid env should return error")
	}
}

func TestFetchTo_SingleFeed(t *testing.T) {
	fetcher := &mockFeedFetcher{
		fetchFeedFn: func(_ context.Context, id string) (*feed.Result, error) {
			return &feed.Result{
				FeedID:   id,
				Type:     model.FeedTypeMARADMIN,
				Messages: []model.Message{{Identifier: "MARADMIN 123/25", Type: model.FeedTypeMARADMIN}},
				TierUsed: 0,
				Warnings: []string{},
			}, nil
		},
	}

	var out bytes.Buffer
	if err := fetchTo(context.Background(), fetcher, &out, "maradmin"); err != nil {
		t.Fatalf("fetchTo: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if got["feed"] != "maradmin" {
		t.Errorf("feed = %v, want maradmin", got["feed"])
	}
	if !strings.Contains(out.String(), "MARADMIN 123/25") {
		t.Errorf("output should contain message identifier, got %s", out.String())
	}
}

func TestFetchTo_All(t *testing.T) {
	called := false
	fetcher := &mockFeedFetcher{
		fetchAllFn: func(_ context.Context) (*feed.AggregateResult, error) {
			called = true
			return &feed.AggregateResult{
				Messages: []model.Message{},
				Warnings: []string{"secnav: all tiers failed"},
			}, nil
		},
	}

	var out bytes.Buffer
	if err := fetchTo(context.Background(), fetcher, &out, FetchAll); err != nil {
		t.Fatalf("fetchTo: %v", err)
	}
	if !called {
		t.Error("FetchAll should be called for target all")
	}
	if !strings.Contains(out.String(), "all tiers failed") {
		t.Errorf("output should contain warnings, got %s", out.String())
	}
}

func TestRunHealthcheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	if err := runHealthcheck(u.Port()); err != nil {
		t.Errorf("runHealthcheck() error = %v", err)
	}
}

func TestRunHealthcheck_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	if err := runHealthcheck(u.Port()); err == nil {
		t.Error("runHealthcheck() should fail for 503")
	}
}

// setTestEnv は外部サービスの認証情報を含まない最小の環境を設定する。
func setTestEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_PORT", "LOG_LEVEL", "FEEDS_CONFIG_PATH", "PROXY_ALLOWED_DOMAINS",
		"YOUTUBE_API_KEY", "YOUTUBE_CHANNEL_ID", "FACEBOOK_ACCESS_TOKEN",
		"GEMINI_API_KEY", "GITHUB_TOKEN", "GITHUB_REPO",
		"RATE_LIMIT_API", "RATE_LIMIT_API_WINDOW", "RATE_LIMIT_SUMMARIZE",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("SUMMARY_CACHE_PATH", t.TempDir()+"/summaries.json")
}
