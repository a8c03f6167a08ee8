// Package facebook はFacebook Graph APIのページ投稿取得機能を提供する。
// paging.nextカーソルを上限ページ数まで辿って投稿を集約する。
package facebook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const (
	// defaultEndpoint はGraph APIのベースURL。
	defaultEndpoint = "https://graph.facebook.com/v19.0"
	// postFields は取得する投稿フィールド。
	postFields = "message,created_time,permalink_url,id"
	// MaxPages は1回の取得で辿るページ数の上限。
	MaxPages = 10
	// maxPageSize は1ページのレスポンスボディの上限（2MB）。
	maxPageSize = 2 * 1024 * 1024
)

// ErrNotConfigured はアクセストークンが未設定であることを示す。
var ErrNotConfigured = errors.New("facebook access token is not configured")

// Post はページ投稿1件を表す。フィールド名はGraph APIに合わせる。
type Post struct {
	ID           string `json:"id"`
	Message      string `json:"message,omitempty"`
	CreatedTime  string `json:"created_time"`
	PermalinkURL string `json:"permalink_url,omitempty"`
}

// PostsResult は複数ページを集約した取得結果。
type PostsResult struct {
	Posts          []Post
	PagesRetrieved int
	// HasMore は取得を終えた時点で未取得のカーソルが残っていたことを示す。
	// ページ上限到達と後続ページの取得失敗の両方で立つ。
	HasMore bool
}

// postsPage はGraph APIの1ページ分のレスポンス。
type postsPage struct {
	Data   []Post `json:"data"`
	Paging struct {
		Next string `json:"next"`
	} `json:"paging"`
}

// Client はGraph APIのクライアント。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	accessToken string
	pageID      string
	endpoint    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, accessToken, pageID string) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		accessToken: accessToken,
		pageID:      pageID,
		endpoint:    defaultEndpoint,
	}
}

// Configured はアクセストークンが設定済みかを返す。
func (c *Client) Configured() bool {
	return c.accessToken != ""
}

// PageID は取得対象のページIDを返す。
func (c *Client) PageID() string {
	return c.pageID
}

// FetchPosts はページ投稿を取得し、paging.nextを辿って集約する。
// 次のカーソルがない、maxPagesに達した、投稿0件のページを受け取った、のいずれかで終了する。
// maxPagesは1からMaxPagesの範囲に丸める。
// 1ページ目の失敗はエラーを返し、2ページ目以降の失敗はHasMoreを立ててそれまでの結果を返す。
func (c *Client) FetchPosts(ctx context.Context, maxPages int) (*PostsResult, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if maxPages <= 0 || maxPages > MaxPages {
		maxPages = MaxPages
	}

	firstURL, err := c.firstPageURL()
	if err != nil {
		return nil, err
	}

	result := &PostsResult{Posts: []Post{}}
	next := firstURL
	for next != "" && result.PagesRetrieved < maxPages {
		page, err := c.fetchPage(ctx, next)
		if err != nil {
			if result.PagesRetrieved == 0 {
				return nil, err
			}
			c.logger.Warn("Facebook投稿の後続ページ取得に失敗したため取得済みの結果を返します",
				slog.Int("pages_retrieved", result.PagesRetrieved),
				slog.String("error", err.Error()),
			)
			break
		}

		result.PagesRetrieved++
		result.Posts = append(result.Posts, page.Data...)

		if len(page.Data) == 0 {
			next = ""
			break
		}
		next = c.sameHostCursor(page.Paging.Next)
	}

	result.HasMore = next != ""
	return result, nil
}

// firstPageURL は1ページ目のリクエストURLを構築する。
func (c *Client) firstPageURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	u = u.JoinPath(c.pageID, "posts")

	q := u.Query()
	q.Set("fields", postFields)
	q.Set("access_token", c.accessToken)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sameHostCursor はエンドポイントと同一ホストのカーソルURLのみを返す。
// カーソルURLにはアクセストークンが含まれるため、別ホストには送信しない。
func (c *Client) sameHostCursor(next string) string {
	if next == "" {
		return ""
	}
	nu, err := url.Parse(next)
	if err != nil {
		return ""
	}
	eu, err := url.Parse(c.endpoint)
	if err != nil || nu.Host != eu.Host {
		c.logger.Warn("Facebookのページングカーソルが想定外のホストを指しているため無視します",
			slog.String("host", nu.Host),
		)
		return ""
	}
	return next
}

// fetchPage は1ページ分の投稿を取得する。
func (c *Client) fetchPage(ctx context.Context, pageURL string) (*postsPage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Facebook Graph APIの呼び出しに失敗しました",
			slog.String("page_id", c.pageID),
			slog.String("error", redact(err, c.accessToken)),
		)
		return nil, errors.New(redact(err, c.accessToken))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Facebook Graph APIがエラーステータスを返しました",
			slog.String("page_id", c.pageID),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("graph api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var page postsPage
	if err := json.Unmarshal(body, &page); err != nil {
		c.logger.Error("Facebook Graph APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("decode posts page: %w", err)
	}
	return &page, nil
}

// redact はエラーメッセージに含まれるアクセストークンを伏せ字にする。
// net/httpのエラーはリクエストURLを含む。
func redact(err error, token string) string {
	msg := err.Error()
	if token == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(token), "REDACTED")
	return strings.ReplaceAll(msg, token, "REDACTED")
}
