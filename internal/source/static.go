package source

import (
	"context"

	"github.com/hitoshi/adminfeed/internal/ingest"
	"github.com/hitoshi/adminfeed/internal/model"
)

// StaticAdapter は常に1件のプレースホルダーを返す最終ティアのアダプタ。
// 全ての上流が到達不能でもパイプラインが空以外の結果を返せるようにする。
type StaticAdapter struct {
	name        string
	title       string
	listingURL  string
	description string
}

// NewStaticAdapter はStaticAdapterの新しいインスタンスを生成する。
// listingURLは利用者が一覧を直接確認できる上流ページ。
func NewStaticAdapter(name, title, listingURL, description string) *StaticAdapter {
	return &StaticAdapter{
		name:        name,
		title:       title,
		listingURL:  listingURL,
		description: description,
	}
}

// Name はアダプタ名を返す。
func (a *StaticAdapter) Name() string { return a.name }

// Tier はstaticを返す。
func (a *StaticAdapter) Tier() model.Tier { return model.TierStatic }

// Fetch は上流にアクセスせずプレースホルダーを返す。
func (a *StaticAdapter) Fetch(_ context.Context) (*ingest.RawBatch, error) {
	return &ingest.RawBatch{
		Candidates: []model.RawCandidate{{
			Title:       a.title,
			Link:        a.listingURL,
			Description: a.description,
			Placeholder: true,
		}},
	}, nil
}
