package source

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/adminfeed/internal/ingest"
	"github.com/hitoshi/adminfeed/internal/model"
)

// yearPlaceholder は一覧ページURL内で現在の年に置換されるプレースホルダー。
const yearPlaceholder = "{year}"

// ScrapeConfig はHTML一覧ページのスクレイプ設定。
type ScrapeConfig struct {
	// URL は一覧ページのURL。{year}を含む場合は取得時の年に置換する。
	URL string
	// LinkSelector は各メッセージへのアンカー要素のセレクタ。
	LinkSelector string
	// RowSelector は日付・件名を探すためのアンカーの親要素のセレクタ。
	RowSelector string
	// DateSelector は行内の日付要素のセレクタ。datetime属性があれば優先する。
	DateSelector string
	// SubjectSelector は行内の件名要素のセレクタ（任意）。
	SubjectSelector string
}

// ScrapeAdapter はHTML一覧ページから構造的にアンカーを抽出するソースアダプタ。
type ScrapeAdapter struct {
	name        string
	config      ScrapeConfig
	httpClient  *http.Client
	maxBodySize int64
	clock       func() time.Time
}

// NewScrapeAdapter はScrapeAdapterの新しいインスタンスを生成する。
// clockは{year}の展開に使用する。nilの場合はtime.Nowを使用する。
func NewScrapeAdapter(name string, config ScrapeConfig, httpClient *http.Client, maxBodySize int64, clock func() time.Time) *ScrapeAdapter {
	if clock == nil {
		clock = time.Now
	}
	if config.LinkSelector == "" {
		config.LinkSelector = "a[href]"
	}
	return &ScrapeAdapter{
		name:        name,
		config:      config,
		httpClient:  httpClient,
		maxBodySize: maxBodySize,
		clock:       clock,
	}
}

// Name はアダプタ名を返す。
func (a *ScrapeAdapter) Name() string { return a.name }

// Tier はscrapeを返す。
func (a *ScrapeAdapter) Tier() model.Tier { return model.TierScrape }

// URL は{year}を展開した取得先URLを返す。
func (a *ScrapeAdapter) URL() string {
	return ExpandYear(a.config.URL, a.clock())
}

// Fetch は一覧ページを1回取得し、アンカーごとに正規化前のレコードを生成する。
// 識別子を含まないアンカーもそのまま返し、正規化で破棄させる。
func (a *ScrapeAdapter) Fetch(ctx context.Context) (*ingest.RawBatch, error) {
	body, err := Get(ctx, a.httpClient, a.URL(), a.maxBodySize)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	return &ingest.RawBatch{Candidates: a.extract(doc)}, nil
}

// extract はドキュメントからアンカーを抽出する。
func (a *ScrapeAdapter) extract(doc *goquery.Document) []model.RawCandidate {
	var candidates []model.RawCandidate

	doc.Find(a.config.LinkSelector).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		title := collapse(link.Text())
		if title == "" {
			title = collapse(link.AttrOr("title", ""))
		}
		if title == "" {
			return
		}

		c := model.RawCandidate{Title: title, Link: href}

		row := link
		if a.config.RowSelector != "" {
			row = link.Closest(a.config.RowSelector)
		}
		if row.Length() > 0 {
			if a.config.DateSelector != "" {
				c.Published = dateText(row.Find(a.config.DateSelector).First())
			}
			if a.config.SubjectSelector != "" {
				if subject := collapse(row.Find(a.config.SubjectSelector).First().Text()); subject != "" && !strings.Contains(title, subject) {
					c.Title = title + " - " + subject
				}
			}
		}

		candidates = append(candidates, c)
	})

	return candidates
}

// dateText は日付要素の値を返す。<time datetime="...">の属性値を優先する。
func dateText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	if v, ok := s.Attr("datetime"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return collapse(s.Text())
}

// ExpandYear はURL内の{year}を指定時刻の西暦年に置換する。
func ExpandYear(rawURL string, now time.Time) string {
	return strings.ReplaceAll(rawURL, yearPlaceholder, strconv.Itoa(now.Year()))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
