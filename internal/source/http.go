// Package source はフォールバックチェーンを構成する具体的なソースアダプタを提供する。
// RSSフィード、HTML一覧ページのスクレイプ、静的プレースホルダーの3種類がある。
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

const (
	// UserAgent は上流サイトへのリクエストに付与するUser-Agent。
	UserAgent = "AdminFeed/1.0 (+https://github.com/hitoshi/adminfeed)"
	// DefaultMaxBodySize はレスポンスボディの上限（10MB）。
	DefaultMaxBodySize int64 = 10 * 1024 * 1024
)

// StatusClass はHTTPステータスコードの分類。
type StatusClass int

const (
	// StatusOK は取得成功（2xx）。
	StatusOK StatusClass = iota
	// StatusGone は恒久的な失敗（404/410/401/403）。
	StatusGone
	// StatusRetryable は一時的な失敗（429/5xx）。
	StatusRetryable
	// StatusUnknown は未知のステータスコード。
	StatusUnknown
)

// String はログ出力用の分類名を返す。
func (c StatusClass) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusGone:
		return "gone"
	case StatusRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// ClassifyHTTPStatus はHTTPステータスコードを分類する。
func ClassifyHTTPStatus(statusCode int) StatusClass {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusOK
	case statusCode == 404 || statusCode == 410:
		return StatusGone
	case statusCode == 401 || statusCode == 403:
		return StatusGone
	case statusCode == 429:
		return StatusRetryable
	case statusCode >= 500:
		return StatusRetryable
	default:
		return StatusUnknown
	}
}

// StatusError は上流が2xx以外を返したことを示すエラー。
type StatusError struct {
	URL        string
	StatusCode int
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) from %s", e.StatusCode, ClassifyHTTPStatus(e.StatusCode), e.URL)
}

// Get は指定URLにGETリクエストを送信し、ボディを上限サイズまで読み込んで返す。
// 2xx以外のステータスは*StatusErrorを返す。
// 上限を超えるボディはエラーとする。
func Get(ctx context.Context, client *http.Client, rawURL string, maxBodySize int64) ([]byte, error) {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if ClassifyHTTPStatus(resp.StatusCode) != StatusOK {
		// コネクション再利用のためにボディを読み捨てる
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxBodySize {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxBodySize)
	}
	return body, nil
}
