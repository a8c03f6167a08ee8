package source

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/adminfeed/internal/ingest"
	"github.com/hitoshi/adminfeed/internal/model"
)

// RSSAdapter はRSS/Atomフィードを取得するソースアダプタ。
// パースはgofeedに任せ、CDATAや名前空間の扱いもパーサー側で処理される。
type RSSAdapter struct {
	name        string
	feedURL     string
	httpClient  *http.Client
	maxBodySize int64
}

// NewRSSAdapter はRSSAdapterの新しいインスタンスを生成する。
func NewRSSAdapter(name, feedURL string, httpClient *http.Client, maxBodySize int64) *RSSAdapter {
	return &RSSAdapter{
		name:        name,
		feedURL:     feedURL,
		httpClient:  httpClient,
		maxBodySize: maxBodySize,
	}
}

// Name はアダプタ名を返す。
func (a *RSSAdapter) Name() string { return a.name }

// Tier はrssを返す。
func (a *RSSAdapter) Tier() model.Tier { return model.TierRSS }

// Fetch はフィードを1回取得し、各itemを正規化前のレコードに変換する。
func (a *RSSAdapter) Fetch(ctx context.Context) (*ingest.RawBatch, error) {
	body, err := Get(ctx, a.httpClient, a.feedURL, a.maxBodySize)
	if err != nil {
		return nil, err
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return &ingest.RawBatch{Candidates: convertFeedItems(parsed.Items)}, nil
}

// convertFeedItems はgofeedのアイテムをRawCandidateに変換する。
// 公開日はPublishedParsedを優先し、なければUpdatedParsedを使用する。
func convertFeedItems(items []*gofeed.Item) []model.RawCandidate {
	candidates := make([]model.RawCandidate, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}

		c := model.RawCandidate{
			Title:       item.Title,
			Link:        item.Link,
			Published:   item.Published,
			PublishedAt: item.PublishedParsed,
			Description: item.Description,
		}
		if c.PublishedAt == nil {
			c.PublishedAt = item.UpdatedParsed
			if c.Published == "" {
				c.Published = item.Updated
			}
		}
		if c.Description == "" {
			c.Description = item.Content
		}
		if len(item.Categories) > 0 {
			c.Category = item.Categories[0]
		}

		candidates = append(candidates, c)
	}
	return candidates
}
