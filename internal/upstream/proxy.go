// Package upstream は上流サイトの一覧ページのパススルー取得と、
// 許可ドメインに限定した汎用プロキシを提供する。
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/adminfeed/internal/model"
	"github.com/hitoshi/adminfeed/internal/security"
	"github.com/hitoshi/adminfeed/internal/source"
)

const (
	// ALNAVListingURL は年別ALNAV一覧ページのURL。{year}は西暦年に置換する。
	ALNAVListingURL = "https://www.mynavyhr.navy.mil/References/Messages/ALNAV-{year}/"
	// DirectivesListingURL はSECNAV/OPNAVの現行指令一覧ページのURL。
	DirectivesListingURL = "https://www.secnav.navy.mil/doni/allinstructions.aspx"
	// minYear はALNAV一覧として受け付ける最も古い年。
	minYear = 1990
)

// DefaultAllowedDomains は汎用プロキシのデフォルト許可ドメイン。
var DefaultAllowedDomains = []string{
	"navy.mil",
	"marines.mil",
	"defense.gov",
	"af.mil",
	"army.mil",
	"uscg.mil",
	"spaceforce.mil",
}

// URLValidator はアウトバウンドURLの検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// StatusRecorder は上流のHTTPステータスを記録するインターフェース。
type StatusRecorder interface {
	RecordUpstreamStatus(target string, statusCode int)
}

// Response は上流から取得したレスポンス。
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Proxy は上流サイトへのパススルー取得を行う。
type Proxy struct {
	httpClient    *http.Client
	proxyClient   *http.Client
	validator     URLValidator
	allowlist     security.DomainAllowlist
	maxBodySize   int64
	recorder      StatusRecorder
	logger        *slog.Logger
	clock         func() time.Time
	alnavURL      string
	directivesURL string
}

// NewProxy はProxyの新しいインスタンスを生成する。
// validatorは汎用プロキシの対象URLの検証に使用し、allowlistはエラー応答で利用者に提示する。
// recorderはnilでもよい。
func NewProxy(
	httpClient *http.Client,
	validator URLValidator,
	allowlist security.DomainAllowlist,
	maxBodySize int64,
	recorder StatusRecorder,
	logger *slog.Logger,
) *Proxy {
	if maxBodySize <= 0 {
		maxBodySize = source.DefaultMaxBodySize
	}
	p := &Proxy{
		httpClient:    httpClient,
		validator:     validator,
		allowlist:     allowlist,
		maxBodySize:   maxBodySize,
		recorder:      recorder,
		logger:        logger,
		clock:         time.Now,
		alnavURL:      ALNAVListingURL,
		directivesURL: DirectivesListingURL,
	}
	p.proxyClient = p.newRedirectCheckedClient(httpClient)
	return p
}

// maxRedirects は汎用プロキシが追従するリダイレクトの上限。
const maxRedirects = 10

// redirectError はリダイレクト先の検証失敗を表す。
type redirectError struct {
	host string
	err  error
}

func (e *redirectError) Error() string {
	return fmt.Sprintf("redirect to %s rejected: %v", e.host, e.err)
}

func (e *redirectError) Unwrap() error {
	return e.err
}

// newRedirectCheckedClient はリダイレクトの各ホップをvalidatorで検証するクライアントを返す。
// Transportとタイムアウトは元のクライアントと共有する。
func (p *Proxy) newRedirectCheckedClient(base *http.Client) *http.Client {
	client := &http.Client{}
	if base != nil {
		*client = *base
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		if err := p.validator.ValidateURL(req.URL.String()); err != nil {
			return &redirectError{host: req.URL.Hostname(), err: err}
		}
		return nil
	}
	return client
}

// AllowedDomains は汎用プロキシの許可ドメインを返す。
func (p *Proxy) AllowedDomains() []string {
	return append([]string(nil), p.allowlist...)
}

// ParseYear はALNAV一覧の年パラメータを検証する。
// 4桁の数値でminYearから翌年までの範囲のみ受け付ける。
func ParseYear(raw string, now time.Time) (int, error) {
	if len(raw) != 4 {
		return 0, model.NewInvalidYearError(raw)
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < minYear || year > now.Year()+1 {
		return 0, model.NewInvalidYearError(raw)
	}
	return year, nil
}

// FetchALNAVListing は指定年のALNAV一覧ページのHTMLを取得する。
func (p *Proxy) FetchALNAVListing(ctx context.Context, rawYear string) (*Response, error) {
	year, err := ParseYear(rawYear, p.clock())
	if err != nil {
		return nil, err
	}
	target := strings.ReplaceAll(p.alnavURL, "{year}", strconv.Itoa(year))
	return p.get(ctx, p.httpClient, "alnav", target)
}

// FetchDirectivesListing は現行指令一覧ページのHTMLを取得する。
func (p *Proxy) FetchDirectivesListing(ctx context.Context) (*Response, error) {
	return p.get(ctx, p.httpClient, "directives", p.directivesURL)
}

// Fetch は許可ドメインに一致するURLのみを取得する汎用プロキシ。
// http/https以外のスキームと許可リスト外のホストは拒否する。
func (p *Proxy) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, model.NewInvalidRequestError("url query parameter is required")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Hostname() == "" {
		return nil, model.NewInvalidURLError("only absolute http and https URLs are supported")
	}

	if err := p.validator.ValidateURL(rawURL); err != nil {
		if errors.Is(err, security.ErrDomainNotAllowed) {
			return nil, model.NewDomainNotAllowedError(parsed.Hostname(), p.AllowedDomains())
		}
		return nil, model.NewInvalidURLError(err.Error())
	}

	return p.get(ctx, p.proxyClient, "proxy", rawURL)
}

// get はGETリクエストを送信し、2xxのレスポンスのみを返す。
// 汎用プロキシではリダイレクト先が許可リスト外の場合DOMAIN_NOT_ALLOWEDとする。
func (p *Proxy) get(ctx context.Context, client *http.Client, target, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", source.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		var redirErr *redirectError
		if errors.As(err, &redirErr) {
			p.logger.Warn("許可されていないリダイレクト先を拒否しました",
				slog.String("target", target),
				slog.String("url", rawURL),
				slog.String("redirect_host", redirErr.host),
			)
			if errors.Is(redirErr.err, security.ErrDomainNotAllowed) {
				return nil, model.NewDomainNotAllowedError(redirErr.host, p.AllowedDomains())
			}
			return nil, model.NewInvalidURLError(redirErr.Error())
		}
		p.record(target, 0)
		p.logger.Error("上流サイトへのリクエストに失敗しました",
			slog.String("target", target),
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamFailedError(target + " request failed")
	}
	defer resp.Body.Close()

	p.record(target, resp.StatusCode)

	if source.ClassifyHTTPStatus(resp.StatusCode) != source.StatusOK {
		p.logger.Warn("上流サイトがエラーステータスを返しました",
			slog.String("target", target),
			slog.String("url", rawURL),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewUpstreamFailedError(fmt.Sprintf("%s returned status %d", target, resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBodySize+1))
	if err != nil {
		return nil, model.NewUpstreamFailedError(fmt.Sprintf("%s read failed", target))
	}
	if int64(len(body)) > p.maxBodySize {
		return nil, model.NewUpstreamFailedError(fmt.Sprintf("%s response exceeds %d bytes", target, p.maxBodySize))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}

func (p *Proxy) record(target string, statusCode int) {
	if p.recorder != nil {
		p.recorder.RecordUpstreamStatus(target, statusCode)
	}
}
