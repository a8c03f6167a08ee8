// Package model はドメインモデルを定義する。
package model

import "time"

// SummaryEntry はAI要約キャッシュの1エントリを表す。
// キーは呼び出し元が指定するメッセージキー（種別を含む場合がある）。
type SummaryEntry struct {
	Summary     string    `json:"summary"`
	MessageType string    `json:"messageType,omitempty"`
	MessageID   string    `json:"messageId,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
