package feed

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/adminfeed/internal/facebook"
	"github.com/hitoshi/adminfeed/internal/ingest"
	"github.com/hitoshi/adminfeed/internal/model"
	"github.com/hitoshi/adminfeed/internal/source"
)

// AdapterBuilder はティア定義から具体的なアダプタを生成するインターフェース。
type AdapterBuilder interface {
	Build(def Definition, tier TierDef) (ingest.Adapter, error)
}

// Builder はAdapterBuilderの標準実装。
// 全アダプタでSSRF防止付きの共有HTTPクライアントを使用する。
type Builder struct {
	HTTPClient  *http.Client
	MaxBodySize int64
	// Posts はsocialティアの投稿取得クライアント。nilの場合socialティアは構築できない。
	Posts            facebook.PostsFetcher
	FacebookMaxPages int
	Clock            func() time.Time
}

// Build はティア種別に応じたアダプタを生成する。
func (b *Builder) Build(def Definition, tier TierDef) (ingest.Adapter, error) {
	name := tier.Name
	if name == "" {
		name = def.ID + "-" + string(tier.Kind)
	}

	switch tier.Kind {
	case model.TierRSS:
		return source.NewRSSAdapter(name, tier.URL, b.HTTPClient, b.MaxBodySize), nil
	case model.TierScrape:
		return source.NewScrapeAdapter(name, source.ScrapeConfig{
			URL:             tier.URL,
			LinkSelector:    tier.LinkSelector,
			RowSelector:     tier.RowSelector,
			DateSelector:    tier.DateSelector,
			SubjectSelector: tier.SubjectSelector,
		}, b.HTTPClient, b.MaxBodySize, b.Clock), nil
	case model.TierSocial:
		if b.Posts == nil {
			return nil, fmt.Errorf("feed %s: social tier requires a posts client", def.ID)
		}
		maxPages := tier.MaxPages
		if maxPages == 0 {
			maxPages = b.FacebookMaxPages
		}
		return facebook.NewAdapter(name, b.Posts, maxPages), nil
	case model.TierStatic:
		title := tier.Title
		if title == "" {
			title = fmt.Sprintf("%s messages are temporarily unavailable", def.Type)
		}
		link := tier.URL
		if link == "" {
			link = def.ListingURL
		}
		return source.NewStaticAdapter(name, title, link, tier.Description), nil
	default:
		return nil, fmt.Errorf("feed %s: unknown tier kind %q", def.ID, tier.Kind)
	}
}
