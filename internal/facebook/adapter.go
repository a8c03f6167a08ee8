package facebook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/adminfeed/internal/ingest"
	"github.com/hitoshi/adminfeed/internal/model"
)

// createdTimeLayout はGraph APIのcreated_timeの形式（例: 2025-06-14T10:00:00+0000）。
const createdTimeLayout = "2006-01-02T15:04:05-0700"

// PostsFetcher は投稿取得のインターフェース。テスト時にモックに差し替え可能。
type PostsFetcher interface {
	FetchPosts(ctx context.Context, maxPages int) (*PostsResult, error)
}

// Adapter はページ投稿をフォールバックチェーンのsocialティアとして提供する。
type Adapter struct {
	name     string
	fetcher  PostsFetcher
	maxPages int
}

// NewAdapter はAdapterの新しいインスタンスを生成する。
func NewAdapter(name string, fetcher PostsFetcher, maxPages int) *Adapter {
	if maxPages <= 0 || maxPages > MaxPages {
		maxPages = MaxPages
	}
	return &Adapter{name: name, fetcher: fetcher, maxPages: maxPages}
}

// Name はアダプタ名を返す。
func (a *Adapter) Name() string { return a.name }

// Tier はsocialを返す。
func (a *Adapter) Tier() model.Tier { return model.TierSocial }

// Fetch は投稿を取得し、本文の1行目をタイトルとするレコードに変換する。
// ページ上限到達時にカーソルが残っていた場合は警告を付与する（失敗ではない）。
func (a *Adapter) Fetch(ctx context.Context) (*ingest.RawBatch, error) {
	result, err := a.fetcher.FetchPosts(ctx, a.maxPages)
	if err != nil {
		return nil, err
	}

	batch := &ingest.RawBatch{Candidates: PostsToCandidates(result.Posts)}
	if result.HasMore {
		batch.Warnings = append(batch.Warnings,
			fmt.Sprintf("%s: stopped after %d pages, more data may exist", model.TierSocial, result.PagesRetrieved))
	}
	return batch, nil
}

// PostsToCandidates は投稿を正規化前のレコードに変換する。本文のない投稿は除外する。
func PostsToCandidates(posts []Post) []model.RawCandidate {
	candidates := make([]model.RawCandidate, 0, len(posts))
	for _, p := range posts {
		message := strings.TrimSpace(p.Message)
		if message == "" {
			continue
		}

		title, _, _ := strings.Cut(message, "\n")
		c := model.RawCandidate{
			Title:       title,
			Link:        p.PermalinkURL,
			Published:   p.CreatedTime,
			Description: message,
		}
		if t, err := time.Parse(createdTimeLayout, p.CreatedTime); err == nil {
			c.PublishedAt = &t
		}
		candidates = append(candidates, c)
	}
	return candidates
}
