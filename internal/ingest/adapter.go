package ingest

import (
	"context"

	"github.com/hitoshi/adminfeed/internal/model"
)

// Adapter はフォールバックチェーンの1ティアとなるソースアダプタのインターフェース。
// 上流の取得・解析に失敗した場合はエラーを返し、パニックを呼び出し元に伝播させない。
// 解析できないコンテンツは0件として扱われる。
type Adapter interface {
	// Name はログと警告に使用するアダプタ名を返す。
	Name() string
	// Tier はアダプタのティア種別を返す。
	Tier() model.Tier
	// Fetch は上流から正規化前のレコードを取得する。
	Fetch(ctx context.Context) (*RawBatch, error)
}

// RawBatch はアダプタ1回分の取得結果。
type RawBatch struct {
	Candidates []model.RawCandidate
	// Warnings は失敗ではないが利用者に伝えるべき事象（ページ上限到達など）。
	Warnings []string
}
