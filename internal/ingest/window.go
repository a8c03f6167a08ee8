package ingest

import (
	"time"

	"github.com/hitoshi/adminfeed/internal/model"
)

// FilterWindow は公開日時がnowからwindowDays日以内のメッセージのみを返す。
// 境界はちょうどwindowDays日前を含む。静的フォールバックの代替レコードは常に残す。
// windowDaysが0以下の場合はフィルタを無効にし、入力をそのまま返す。
// 壁時計は参照しないため、同じ入力に対して常に同じ結果となる。
func FilterWindow(messages []model.Message, windowDays int, now time.Time) []model.Message {
	if windowDays <= 0 {
		return messages
	}

	cutoff := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	kept := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.Placeholder || !m.PublishedAt.Before(cutoff) {
			kept = append(kept, m)
		}
	}
	return kept
}
