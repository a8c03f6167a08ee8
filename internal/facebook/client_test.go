package facebook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/adminfeed/internal/model"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// newPagingServer はtotalPagesページの投稿を返すテストサーバーを生成する。
// 最終ページ以外はpaging.nextに次ページのURLを含める。
func newPagingServer(t *testing.T, totalPages int, calls *int32) *httptest.Server {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)

		if r.URL.Query().Get("access_token") != "token-123" {
			t.Errorf("access_token = %q, want token-123", r.URL.Query().Get("access_token"))
		}

		page := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)

		resp := map[string]any{
			"data": []Post{{
				ID:           fmt.Sprintf("post-%d", page),
				Message:      fmt.Sprintf("MARADMIN %d/25 Page %d\nDetails", page, page),
				CreatedTime:  "2025-06-14T10:00:00+0000",
				PermalinkURL: fmt.Sprintf("https://www.facebook.com/semperadmin/posts/%d", page),
			}},
		}
		if page < totalPages {
			resp["paging"] = map[string]string{
				"next": fmt.Sprintf("%s/semperadmin/posts?access_token=token-123&page=%d", server.URL, page+1),
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	return server
}

func TestClient_FetchPosts_FollowsCursorUntilExhausted(t *testing.T) {
	var calls int32
	server := newPagingServer(t, 3, &calls)
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "token-123", "semperadmin")
	c.endpoint = server.URL

	result, err := c.FetchPosts(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchPosts がエラーを返した: %v", err)
	}
	if result.PagesRetrieved != 3 {
		t.Errorf("PagesRetrieved = %d, want 3", result.PagesRetrieved)
	}
	if len(result.Posts) != 3 {
		t.Errorf("len(Posts) = %d, want 3", len(result.Posts))
	}
	if result.HasMore {
		t.Error("HasMore = true, want false")
	}
}

func TestClient_FetchPosts_PageCap(t *testing.T) {
	var calls int32
	server := newPagingServer(t, 50, &calls)
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "token-123", "semperadmin")
	c.endpoint = server.URL

	result, err := c.FetchPosts(context.Background(), 100)
	if err != nil {
		t.Fatalf("FetchPosts がエラーを返した: %v", err)
	}
	if result.PagesRetrieved != MaxPages {
		t.Errorf("PagesRetrieved = %d, want %d", result.PagesRetrieved, MaxPages)
	}
	if atomic.LoadInt32(&calls) != MaxPages {
		t.Errorf("calls = %d, want %d", calls, MaxPages)
	}
	if !result.HasMore {
		t.Error("HasMore = false, want true")
	}
}

func TestClient_FetchPosts_StopsOnEmptyPage(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 投稿0件だがカーソルは返すページ
		fmt.Fprintf(w, `{"data":[],"paging":{"next":"%s/semperadmin/posts?page=2"}}`, server.URL)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "token-123", "semperadmin")
	c.endpoint = server.URL

	result, err := c.FetchPosts(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchPosts がエラーを返した: %v", err)
	}
	if result.PagesRetrieved != 1 || result.HasMore {
		t.Errorf("PagesRetrieved = %d, HasMore = %v, want 1, false", result.PagesRetrieved, result.HasMore)
	}
}

func TestClient_FetchPosts_FirstPageFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "token-123", "semperadmin")
	c.endpoint = server.URL

	if _, err := c.FetchPosts(context.Background(), 10); err == nil {
		t.Error("1ページ目の失敗でエラーが返されるべき")
	}
}

func TestClient_FetchPosts_LaterPageFailureReturnsPartial(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `{"data":[{"id":"1","message":"MARADMIN 1/25 A","created_time":"2025-06-14T10:00:00+0000"}],"paging":{"next":"%s/semperadmin/posts?page=2"}}`, server.URL)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "token-123", "semperadmin")
	c.endpoint = server.URL

	result, err := c.FetchPosts(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchPosts がエラーを返した: %v", err)
	}
	if result.PagesRetrieved != 1 || len(result.Posts) != 1 {
		t.Errorf("PagesRetrieved = %d, len(Posts) = %d, want 1, 1", result.PagesRetrieved, len(result.Posts))
	}
	// 失敗したページのカーソルは未取得のまま残る
	if !result.HasMore {
		t.Error("HasMore = false, want true after later page failure")
	}
}

func TestClient_FetchPosts_IgnoresForeignCursor(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"data":[{"id":"1","message":"x","created_time":"2025-06-14T10:00:00+0000"}],"paging":{"next":"https://evil.example.com/next"}}`)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), "token-123", "semperadmin")
	c.endpoint = server.URL

	result, err := c.FetchPosts(context.Background(), 10)
	if err != nil {
		t.Fatalf("FetchPosts がエラーを返した: %v", err)
	}
	if calls != 1 || result.HasMore {
		t.Errorf("calls = %d, HasMore = %v, want 1, false", calls, result.HasMore)
	}
}

func TestClient_FetchPosts_NotConfigured(t *testing.T) {
	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), "", "semperadmin")

	_, err := c.FetchPosts(context.Background(), 10)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestRedact(t *testing.T) {
	err := errors.New(`Get "https://graph.facebook.com/x?access_token=abc%2Bdef": timeout`)
	got := redact(err, "abc+def")
	if strings.Contains(got, "abc") {
		t.Errorf("トークンが伏せ字になっていない: %q", got)
	}
}

// mockFetcher はテスト用のPostsFetcher実装。
type mockFetcher struct {
	fetchPostsFn func(ctx context.Context, maxPages int) (*PostsResult, error)
}

func (m *mockFetcher) FetchPosts(ctx context.Context, maxPages int) (*PostsResult, error) {
	return m.fetchPostsFn(ctx, maxPages)
}

func TestAdapter_Fetch(t *testing.T) {
	var gotMaxPages int
	fetcher := &mockFetcher{fetchPostsFn: func(_ context.Context, maxPages int) (*PostsResult, error) {
		gotMaxPages = maxPages
		return &PostsResult{
			Posts: []Post{
				{ID: "1", Message: "MARADMIN 301/25 Promotions\nFull text", CreatedTime: "2025-06-14T10:00:00+0000", PermalinkURL: "https://www.facebook.com/p/1"},
				{ID: "2", Message: "", CreatedTime: "2025-06-14T09:00:00+0000"},
			},
			PagesRetrieved: 3,
			HasMore:        true,
		}, nil
	}}

	a := NewAdapter("semperadmin", fetcher, 3)
	batch, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch がエラーを返した: %v", err)
	}
	if gotMaxPages != 3 {
		t.Errorf("maxPages = %d, want 3", gotMaxPages)
	}
	if len(batch.Candidates) != 1 {
		t.Fatalf("len(Candidates) = %d, want 1", len(batch.Candidates))
	}

	c := batch.Candidates[0]
	if c.Title != "MARADMIN 301/25 Promotions" {
		t.Errorf("Title = %q", c.Title)
	}
	want := time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC)
	if c.PublishedAt == nil || !c.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", c.PublishedAt, want)
	}
	if len(batch.Warnings) != 1 || !strings.Contains(batch.Warnings[0], "more data may exist") {
		t.Errorf("Warnings = %v", batch.Warnings)
	}
	if a.Tier() != model.TierSocial {
		t.Errorf("Tier = %q, want social", a.Tier())
	}
}

func TestAdapter_FetchError(t *testing.T) {
	fetcher := &mockFetcher{fetchPostsFn: func(context.Context, int) (*PostsResult, error) {
		return nil, ErrNotConfigured
	}}

	if _, err := NewAdapter("semperadmin", fetcher, 10).Fetch(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}
