// Package model はドメインモデルを定義する。
package model

import "time"

// FeedType はメッセージ種別（識別子の名前空間）を表す。
type FeedType string

const (
	// FeedTypeMARADMIN は海兵隊の管理メッセージ。
	FeedTypeMARADMIN FeedType = "MARADMIN"
	// FeedTypeALNAV は海軍長官発の全海軍向けメッセージ。
	FeedTypeALNAV FeedType = "ALNAV"
	// FeedTypeSECNAV はSECNAV指令（SECNAVINST等）。
	FeedTypeSECNAV FeedType = "SECNAV"
)

// Valid はサポート対象の種別かを返す。
func (t FeedType) Valid() bool {
	switch t {
	case FeedTypeMARADMIN, FeedTypeALNAV, FeedTypeSECNAV:
		return true
	default:
		return false
	}
}

// Tier はフォールバックチェーン内のアダプタ種別を表す。
type Tier string

const (
	// TierRSS はRSS/XMLフィードから取得するティア。
	TierRSS Tier = "rss"
	// TierScrape はHTML一覧ページをスクレイプするティア。
	TierScrape Tier = "scrape"
	// TierSocial はページングされたJSON API（SNS）から取得するティア。
	TierSocial Tier = "social"
	// TierStatic は固定のプレースホルダーを返す最終ティア。
	TierStatic Tier = "static"
)

// Message は正規化済みの管理メッセージを表す。
// フェッチサイクルごとに生成され、永続化されない。
type Message struct {
	Identifier  string    `json:"identifier"`
	Type        FeedType  `json:"type"`
	Title       string    `json:"title"`
	Subject     string    `json:"subject"`
	Link        string    `json:"link"`
	PublishedAt time.Time `json:"publishedAt"`
	Description string    `json:"description,omitempty"`
	Category    string    `json:"category,omitempty"`
	SourceTier  Tier      `json:"sourceTier"`
	// Placeholder は静的フォールバックの代替レコードであることを示す。
	// 代替レコードは期間フィルタの対象外となる。
	Placeholder bool `json:"placeholder,omitempty"`
}

// RawCandidate はソースアダプタが抽出した正規化前のレコードを表す。
type RawCandidate struct {
	Title string
	Link  string
	// Published は上流が返した日時文字列（未パース）。
	Published string
	// PublishedAt はアダプタ側でパース済みの日時。nilの場合はPublishedをパースする。
	PublishedAt *time.Time
	Description string
	Category    string
	Placeholder bool
}
