package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/adminfeed/internal/feedback"
)

func TestFeedbackHandler_Submit(t *testing.T) {
	deps := newTestDeps(t)
	deps.Feedback = &mockFeedbackSubmitter{
		submitFn: func(ctx context.Context, req feedback.Request) (*feedback.Result, error) {
			if req.Type != "bug" || req.Title != "Broken link" || req.Email != "m@example.com" {
				t.Errorf("request = %+v", req)
			}
			return &feedback.Result{IssueNumber: 7, IssueURL: "https://github.com/usmc/adminfeed/issues/7"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(
		`{"type":"bug","title":"Broken link","description":"The ALNAV link 404s","email":"m@example.com"}`,
	))
	w := serve(deps, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["success"] != true || body["issueNumber"] != float64(7) || body["issueUrl"] != "https://github.com/usmc/adminfeed/issues/7" {
		t.Errorf("body = %v", body)
	}
}

func TestFeedbackHandler_Submit_Errors(t *testing.T) {
	valid := `{"type":"bug","title":"t","description":"d"}`

	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"タイトルなし", `{"type":"bug","description":"d"}`, nil, http.StatusBadRequest},
		{"種別なし", `{"title":"t","description":"d"}`, nil, http.StatusBadRequest},
		{"未設定", valid, feedback.ErrNotConfigured, http.StatusServiceUnavailable},
		{"サニタイズ後に空", valid, feedback.ErrInvalidRequest, http.StatusBadRequest},
		{"上流失敗", valid, errors.New("401 Bad credentials"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestDeps(t)
			deps.Feedback = &mockFeedbackSubmitter{
				submitFn: func(ctx context.Context, req feedback.Request) (*feedback.Result, error) {
					if tt.err == nil {
						t.Error("Submit should not be called")
					}
					return nil, tt.err
				},
			}

			w := serve(deps, httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(tt.body)))
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}
