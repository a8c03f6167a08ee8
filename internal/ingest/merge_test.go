package ingest

import (
	"testing"
	"time"

	"github.com/hitoshi/adminfeed/internal/model"
)

func TestMerge_KeepsLatestDuplicate(t *testing.T) {
	older := messageAt("MARADMIN 10/25", testNow.Add(-48*time.Hour))
	older.Title = "older"
	newer := messageAt("MARADMIN 10/25", testNow.Add(-1*time.Hour))
	newer.Title = "newer"

	got := Merge([]model.Message{older}, []model.Message{newer})
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Title != "newer" {
		t.Errorf("Title = %q, want newer", got[0].Title)
	}

	// 順序を入れ替えても新しい方が残る
	got = Merge([]model.Message{newer, older})
	if len(got) != 1 || got[0].Title != "newer" {
		t.Errorf("逆順: got = %+v", got)
	}
}

func TestMerge_TieKeepsFirstSeen(t *testing.T) {
	a := messageAt("MARADMIN 10/25", testNow)
	a.Title = "first"
	b := messageAt("MARADMIN 10/25", testNow)
	b.Title = "second"

	got := Merge([]model.Message{a, b})
	if len(got) != 1 || got[0].Title != "first" {
		t.Errorf("got = %+v, want first", got)
	}
}

func TestMerge_SortNewestFirstStable(t *testing.T) {
	m1 := messageAt("MARADMIN 1/25", testNow.Add(-2*time.Hour))
	m2 := messageAt("MARADMIN 2/25", testNow)
	m3 := messageAt("MARADMIN 3/25", testNow.Add(-2*time.Hour))
	m4 := messageAt("MARADMIN 4/25", testNow.Add(-1*time.Hour))

	got := Merge([]model.Message{m1, m2, m3, m4})

	want := []string{"MARADMIN 2/25", "MARADMIN 4/25", "MARADMIN 1/25", "MARADMIN 3/25"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].Identifier != id {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Identifier, id)
		}
	}
}

func TestMerge_IdentifiersNamespacedByType(t *testing.T) {
	a := model.Message{Identifier: "X 1/25", Type: model.FeedTypeMARADMIN, PublishedAt: testNow}
	b := model.Message{Identifier: "X 1/25", Type: model.FeedTypeALNAV, PublishedAt: testNow}

	if got := Merge([]model.Message{a}, []model.Message{b}); len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestMerge_Empty(t *testing.T) {
	got := Merge()
	if got == nil {
		t.Fatal("Merge() は nil ではなく空スライスを返すべき")
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestMerge_PlaceholdersFromDifferentListingsKept(t *testing.T) {
	a := model.Message{Identifier: "MARADMIN PENDING", Type: model.FeedTypeMARADMIN, Link: "https://www.marines.mil/News/Messages/MARADMINS/", PublishedAt: testNow, Placeholder: true}
	b := model.Message{Identifier: "MARADMIN PENDING", Type: model.FeedTypeMARADMIN, Link: "https://www.facebook.com/semperadmin/", PublishedAt: testNow, Placeholder: true}

	if got := Merge([]model.Message{a}, []model.Message{b}); len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}

	// 同じ一覧ページのプレースホルダーは1件にまとめる
	if got := Merge([]model.Message{a}, []model.Message{a}); len(got) != 1 {
		t.Errorf("同一プレースホルダー: len = %d, want 1", len(got))
	}
}
