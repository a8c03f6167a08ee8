package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/adminfeed/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。successは常にfalse、errorはmessageと同じ値を持つ。
type ErrorResponseBody struct {
	Success        bool     `json:"success"`
	Error          string   `json:"error"`
	Code           string   `json:"code"`
	Message        string   `json:"message"`
	Category       string   `json:"category"`
	Action         string   `json:"action"`
	AllowedDomains []string `json:"allowedDomains,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Error:          apiErr.Message,
		Code:           apiErr.Code,
		Message:        apiErr.Message,
		Category:       apiErr.Category,
		Action:         apiErr.Action,
		AllowedDomains: apiErr.AllowedDomains,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
