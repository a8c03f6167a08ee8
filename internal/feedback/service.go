// Package feedback は利用者からのフィードバックをGitHub Issueとして登録する。
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"

	"github.com/hitoshi/adminfeed/internal/security"
)

const (
	// DefaultTimeout はIssue作成リクエストのデフォルトタイムアウト。
	DefaultTimeout = 15 * time.Second

	MaxTitleLength       = 200
	MaxDescriptionLength = 50000
	MaxEmailLength       = 200
	maxTypeLength        = 50
	maxContextLength     = 2000
)

var (
	// ErrNotConfigured はGitHubトークンまたはリポジトリが未設定であることを示す。
	ErrNotConfigured = errors.New("feedback is not configured")
	// ErrInvalidRequest は必須項目が欠けていることを示す。
	ErrInvalidRequest = errors.New("type, title and description are required")
)

// Request はフィードバックの送信内容。
type Request struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Email       string `json:"email,omitempty"`
	Context     string `json:"context,omitempty"`
}

// Result は作成されたIssueの情報。
type Result struct {
	IssueNumber int    `json:"issueNumber"`
	IssueURL    string `json:"issueUrl"`
}

// Service はフィードバックをGitHub Issueとして登録するサービス。
type Service struct {
	client    *gh.Client
	owner     string
	repo      string
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
	sanitizer security.ContentSanitizerService
}

// ParseRepository は"owner/name"形式のリポジトリ指定を分解する。
func ParseRepository(s string) (owner, repo string, err error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository must be in owner/name form: %q", s)
	}
	return parts[0], parts[1], nil
}

// NewService はFeedbackServiceを生成する。
// tokenまたはrepositoryが空の場合は未設定状態となり、SubmitはErrNotConfiguredを返す。
func NewService(ctx context.Context, token, repository string, timeout time.Duration, logger *slog.Logger) (*Service, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s := &Service{timeout: timeout, logger: logger, now: time.Now, sanitizer: security.NewContentSanitizer()}
	if token == "" || repository == "" {
		return s, nil
	}

	owner, repo, err := ParseRepository(repository)
	if err != nil {
		return nil, err
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = timeout

	s.client = gh.NewClient(tc)
	s.owner = owner
	s.repo = repo
	return s, nil
}

// Configured はIssue作成が可能な状態かを返す。
func (s *Service) Configured() bool {
	return s.client != nil
}

// Submit はフィードバックを整形してIssueを作成する。
func (s *Service) Submit(ctx context.Context, req Request) (*Result, error) {
	if !s.Configured() {
		return nil, ErrNotConfigured
	}

	req = Sanitize(s.sanitizer, req)
	if req.Type == "" || req.Title == "" || req.Description == "" {
		return nil, ErrInvalidRequest
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	issue, _, err := s.client.Issues.Create(ctx, s.owner, s.repo, &gh.IssueRequest{
		Title:  gh.Ptr(fmt.Sprintf("[%s] %s", req.Type, req.Title)),
		Body:   gh.Ptr(s.buildBody(req)),
		Labels: &[]string{"feedback", req.Type},
	})
	if err != nil {
		return nil, fmt.Errorf("create issue: %w", err)
	}

	s.logger.Info("フィードバックIssueを作成",
		slog.String("type", req.Type),
		slog.Int("issue_number", issue.GetNumber()),
	)

	return &Result{
		IssueNumber: issue.GetNumber(),
		IssueURL:    issue.GetHTMLURL(),
	}, nil
}

// Sanitize は制御文字とHTMLを除去し、各項目を上限長で切り詰める。
// 説明文のみ改行とタブを保持する。
func Sanitize(sanitizer security.ContentSanitizerService, req Request) Request {
	plain := func(v string, n int) string {
		return limit(sanitizer.PlainText(sanitizer.StripControl(v, false)), n)
	}
	return Request{
		Type:        strings.ToLower(plain(req.Type, maxTypeLength)),
		Title:       plain(req.Title, MaxTitleLength),
		Description: limit(stripTags(sanitizer, sanitizer.StripControl(req.Description, true)), MaxDescriptionLength),
		Email:       limit(strings.TrimSpace(sanitizer.StripControl(req.Email, false)), MaxEmailLength),
		Context:     plain(req.Context, maxContextLength),
	}
}

// stripTags は改行を保持したまま行ごとにHTMLを除去する。
func stripTags(sanitizer security.ContentSanitizerService, s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = sanitizer.PlainText(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (s *Service) buildBody(req Request) string {
	var b strings.Builder
	b.WriteString("## Description\n\n")
	b.WriteString(req.Description)
	b.WriteString("\n\n## Details\n\n")
	fmt.Fprintf(&b, "- Type: %s\n", req.Type)
	if req.Email != "" {
		fmt.Fprintf(&b, "- Contact: %s\n", req.Email)
	}
	if req.Context != "" {
		fmt.Fprintf(&b, "- Context: %s\n", req.Context)
	}
	fmt.Fprintf(&b, "- Submitted: %s\n", s.now().UTC().Format(time.RFC3339))
	return b.String()
}

// limit は文字列をn文字（rune単位）以下に切り詰める。
func limit(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
