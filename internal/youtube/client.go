// Package youtube はYouTube Data APIによるチャンネル動画検索を提供する。
package youtube

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const (
	// DefaultMaxResults はmaxResults未指定時の件数。
	DefaultMaxResults = 50
	// maxResultsLimit はAPIが受け付ける1ページの最大件数。
	maxResultsLimit = 50
)

// ErrNotConfigured はAPIキーまたはチャンネルIDが未設定であることを示す。
var ErrNotConfigured = errors.New("youtube api key or channel id is not configured")

// Searcher はチャンネル内検索のインターフェース。テスト時にモックに差し替え可能。
type Searcher interface {
	Search(ctx context.Context, channelID, pageToken string, maxResults int64) (*yt.SearchListResponse, error)
}

// apiSearcher はyoutube/v3を使用するSearcherの実装。
type apiSearcher struct {
	service *yt.Service
}

// Search は新しい順にチャンネルの動画を検索する。
func (s *apiSearcher) Search(ctx context.Context, channelID, pageToken string, maxResults int64) (*yt.SearchListResponse, error) {
	call := s.service.Search.List([]string{"snippet"}).
		ChannelId(channelID).
		Type("video").
		Order("date").
		MaxResults(maxResults)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Context(ctx).Do()
}

// Client はチャンネル動画検索のクライアント。
type Client struct {
	searcher  Searcher
	channelID string
}

// NewClient はAPIキーでYouTube Data APIのクライアントを生成する。
// APIキーが空の場合は未設定状態のクライアントを返し、検索時にErrNotConfiguredとなる。
func NewClient(ctx context.Context, apiKey, channelID string, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return &Client{channelID: channelID}, nil
	}

	service, err := yt.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &Client{searcher: &apiSearcher{service: service}, channelID: channelID}, nil
}

// NewClientWithSearcher は任意のSearcherでClientを生成する。
func NewClientWithSearcher(searcher Searcher, channelID string) *Client {
	return &Client{searcher: searcher, channelID: channelID}
}

// Configured は検索可能な状態かを返す。
func (c *Client) Configured() bool {
	return c.searcher != nil && c.channelID != ""
}

// SearchVideos はチャンネルの動画を検索する。
// maxResultsは1から50の範囲に丸め、0以下の場合は50とする。
func (c *Client) SearchVideos(ctx context.Context, pageToken string, maxResults int) (*yt.SearchListResponse, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	resp, err := c.searcher.Search(ctx, c.channelID, pageToken, ClampMaxResults(maxResults))
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	return resp, nil
}

// ClampMaxResults はmaxResultsをAPIの受け付ける範囲に丸める。
func ClampMaxResults(n int) int64 {
	switch {
	case n <= 0:
		return DefaultMaxResults
	case n > maxResultsLimit:
		return maxResultsLimit
	default:
		return int64(n)
	}
}
