package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/adminfeed/internal/gemini"
)

func TestGeminiHandler_Summarize(t *testing.T) {
	deps := newTestDeps(t)
	deps.Summarizer = &mockSummarizer{
		summarizeFn: func(ctx context.Context, content, messageType string) (string, error) {
			if content != "Full message text" || messageType != "maradmin" {
				t.Errorf("content = %q, messageType = %q", content, messageType)
			}
			return "Short summary.", nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/gemini/summarize", strings.NewReader(`{"content":"Full message text","messageType":"maradmin"}`))
	w := serve(deps, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decodeBody(t, w)
	if body["success"] != true || body["summary"] != "Short summary." {
		t.Errorf("body = %v", body)
	}
}

func TestGeminiHandler_Summarize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"本文なし", `{"messageType":"alnav"}`, nil, http.StatusBadRequest},
		{"不正なJSON", `not json`, nil, http.StatusBadRequest},
		{"未設定", `{"content":"x"}`, gemini.ErrNotConfigured, http.StatusServiceUnavailable},
		{"モデル失敗", `{"content":"x"}`, errors.New("gemini returned empty text"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps(t)
			deps.Summarizer = &mockSummarizer{
				summarizeFn: func(ctx context.Context, content, messageType string) (string, error) {
					if tt.err == nil {
						t.Error("Summarize should not be called")
					}
					return "", tt.err
				},
			}

			w := serve(deps, httptest.NewRequest(http.MethodPost, "/api/gemini/summarize", strings.NewReader(tt.body)))
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}
