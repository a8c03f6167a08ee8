package ingest

import (
	"sort"

	"github.com/hitoshi/adminfeed/internal/model"
)

// mergeKey は重複排除のグループキー。識別子は種別ごとの名前空間を持つ。
// プレースホルダーは識別子が種別ごとに共通のため、リンク先（一覧ページ）でも区別する。
type mergeKey struct {
	feedType   model.FeedType
	identifier string
	link       string
}

func keyOf(m model.Message) mergeKey {
	key := keyOf(m)
	if m.Placeholder {
		key.link = m.Link
	}
	return key
}

// Merge は複数のメッセージ列を結合し、(種別, 識別子)で重複を排除して新しい順に並べる。
// 重複時は公開日時が最も新しいものを残し、同時刻の場合は先に現れたものを残す。
// 並び替えは安定ソートで、同時刻のメッセージは残存順を保つ。
func Merge(seqs ...[]model.Message) []model.Message {
	index := make(map[mergeKey]int)
	var merged []model.Message

	for _, seq := range seqs {
		for _, m := range seq {
			key := keyOf(m)
			if i, ok := index[key]; ok {
				if m.PublishedAt.After(merged[i].PublishedAt) {
					merged[i] = m
				}
				continue
			}
			index[key] = len(merged)
			merged = append(merged, m)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PublishedAt.After(merged[j].PublishedAt)
	})

	if merged == nil {
		return []model.Message{}
	}
	return merged
}
