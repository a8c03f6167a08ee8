package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	yt "google.golang.org/api/youtube/v3"

	"github.com/hitoshi/adminfeed/internal/facebook"
	"github.com/hitoshi/adminfeed/internal/middleware"
	"github.com/hitoshi/adminfeed/internal/model"
	"github.com/hitoshi/adminfeed/internal/youtube"
)

// VideoSearcher はチャンネル動画検索のインターフェース。
type VideoSearcher interface {
	SearchVideos(ctx context.Context, pageToken string, maxResults int) (*yt.SearchListResponse, error)
}

// PostsSource はページ投稿取得のインターフェース。
type PostsSource interface {
	FetchPosts(ctx context.Context, maxPages int) (*facebook.PostsResult, error)
}

// SocialHandler はYouTube動画とFacebook投稿のHTTPハンドラー。
type SocialHandler struct {
	videos   VideoSearcher
	posts    PostsSource
	maxPages int
	logger   *slog.Logger
}

// NewSocialHandler はSocialHandlerを生成する。
func NewSocialHandler(videos VideoSearcher, posts PostsSource, maxPages int, logger *slog.Logger) *SocialHandler {
	return &SocialHandler{videos: videos, posts: posts, maxPages: maxPages, logger: logger}
}

type postsMetadata struct {
	TotalPosts     int  `json:"totalPosts"`
	PagesRetrieved int  `json:"pagesRetrieved"`
	HasMore        bool `json:"hasMore"`
}

type postsResponse struct {
	Success  bool            `json:"success"`
	Posts    []facebook.Post `json:"posts"`
	Metadata postsMetadata   `json:"metadata"`
}

// YouTubeVideos はチャンネルの動画検索結果をそのまま返す。
// GET /api/youtube/videos?pageToken=&maxResults=
func (h *SocialHandler) YouTubeVideos(w http.ResponseWriter, r *http.Request) {
	maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))

	resp, err := h.videos.SearchVideos(r.Context(), r.URL.Query().Get("pageToken"), maxResults)
	if errors.Is(err, youtube.ErrNotConfigured) {
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewNotConfiguredError("YouTube API"))
		return
	}
	if err != nil {
		h.logger.Error("YouTube動画の検索に失敗しました", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError("youtube search failed"))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// FacebookPosts はページ投稿をページ上限まで取得して返す。
// GET /api/facebook/semperadmin
func (h *SocialHandler) FacebookPosts(w http.ResponseWriter, r *http.Request) {
	result, err := h.posts.FetchPosts(r.Context(), h.maxPages)
	if errors.Is(err, facebook.ErrNotConfigured) {
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewNotConfiguredError("Facebook API"))
		return
	}
	if err != nil {
		h.logger.Error("Facebook投稿の取得に失敗しました", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError("facebook request failed"))
		return
	}

	posts := result.Posts
	if posts == nil {
		posts = []facebook.Post{}
	}
	writeJSON(w, http.StatusOK, postsResponse{
		Success: true,
		Posts:   posts,
		Metadata: postsMetadata{
			TotalPosts:     len(posts),
			PagesRetrieved: result.PagesRetrieved,
			HasMore:        result.HasMore,
		},
	})
}
