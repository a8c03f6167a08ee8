// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, feed, upstream, config, storage, system
	Action   string // ユーザー向け対処方法

	// AllowedDomains はDOMAIN_NOT_ALLOWEDの場合に許可ドメイン一覧を保持する。
	AllowedDomains []string
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeFeedNotFound      = "FEED_NOT_FOUND"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidYear       = "INVALID_YEAR"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeDomainNotAllowed  = "DOMAIN_NOT_ALLOWED"
	ErrCodeUpstreamFailed    = "UPSTREAM_FAILED"
	ErrCodeNotConfigured     = "SERVICE_NOT_CONFIGURED"
	ErrCodeSummaryNotFound   = "SUMMARY_NOT_FOUND"
	ErrCodeCacheWriteFailed  = "CACHE_WRITE_FAILED"
	ErrCodeSummarizeFailed   = "SUMMARIZE_FAILED"
	ErrCodeFeedbackFailed    = "FEEDBACK_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// NewFeedNotFoundError は未登録フィードのエラーを生成する。
func NewFeedNotFoundError(feedID string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("unknown feed: %s", feedID),
		Category: "feed",
		Action:   "Use one of the feed IDs returned by GET /api/feeds.",
	}
}

// NewInvalidRequestError は入力不備のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "Check the request body and required fields.",
	}
}

// NewInvalidYearError は年パラメータが不正な場合のエラーを生成する。
func NewInvalidYearError(year string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidYear,
		Message:  fmt.Sprintf("invalid year: %q", year),
		Category: "validation",
		Action:   "Specify a four digit year such as 2025.",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("invalid url: %s", reason),
		Category: "validation",
		Action:   "Provide an absolute http:// or https:// URL.",
	}
}

// NewDomainNotAllowedError は許可リスト外ドメインへのプロキシ要求のエラーを生成する。
func NewDomainNotAllowedError(host string, allowed []string) *APIError {
	return &APIError{
		Code:     ErrCodeDomainNotAllowed,
		Message:  fmt.Sprintf("domain not allowed: %s", host),
		Category: "validation",
		Action:   "Allowed domains: " + strings.Join(allowed, ", "),

		AllowedDomains: allowed,
	}
}

// NewUpstreamFailedError は上流サイトの取得失敗エラーを生成する。
func NewUpstreamFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("upstream request failed: %s", reason),
		Category: "upstream",
		Action:   "The source site may be unavailable. Try again later.",
	}
}

// NewNotConfiguredError は必要な認証情報が未設定の場合のエラーを生成する。
// capabilityには利用できない機能名を指定する。
func NewNotConfiguredError(capability string) *APIError {
	return &APIError{
		Code:     ErrCodeNotConfigured,
		Message:  fmt.Sprintf("%s is not configured on this server", capability),
		Category: "config",
		Action:   "Ask the operator to set the required credentials.",
	}
}

// NewSummaryNotFoundError は要約キャッシュ未登録のエラーを生成する。
func NewSummaryNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeSummaryNotFound,
		Message:  fmt.Sprintf("no cached summary for %s", key),
		Category: "storage",
		Action:   "Request a new summary.",
	}
}

// NewCacheWriteFailedError は要約キャッシュの書き込み失敗エラーを生成する。
func NewCacheWriteFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCacheWriteFailed,
		Message:  "failed to store summary",
		Category: "storage",
		Action:   "Try again later.",
	}
}

// NewSummarizeFailedError はAI要約生成の失敗エラーを生成する。
func NewSummarizeFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSummarizeFailed,
		Message:  fmt.Sprintf("summary generation failed: %s", reason),
		Category: "upstream",
		Action:   "Try again later.",
	}
}

// NewFeedbackFailedError はフィードバック登録の失敗エラーを生成する。
func NewFeedbackFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedbackFailed,
		Message:  fmt.Sprintf("failed to submit feedback: %s", reason),
		Category: "upstream",
		Action:   "Try again later.",
	}
}

// NewRateLimitExceededError はレート制限超過のエラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "too many requests",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、利用者には一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "internal error",
		Category: "system",
		Action:   "Try again later.",
	}
}
