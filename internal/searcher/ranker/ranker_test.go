package ranker

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/index"
)

func TestRankOrdersByScoreThenPage(t *testing.T) {
	postings := map[string]index.PostingList{
		"cat": {
			{Page: 1, Frequency: 1},
			{Page: 2, Frequency: 3},
			{Page: 4, Frequency: 1},
		},
	}
	lengths := map[int]int{1: 10, 2: 10, 4: 10}
	got := Rank("b", postings, nil, RankParams{TotalPages: 10, AvgPageLength: 10}, func(p int) int { return lengths[p] }, 0)
	if len(got) != 3 {
		t.Fatalf("got %d results", len(got))
	}
	if got[0].Page != 2 {
		t.Errorf("highest tf must rank first: %+v", got)
	}
	if got[1].Page != 1 || got[2].Page != 4 {
		t.Errorf("ties must be ordered by page: %+v", got)
	}
	for _, sp := range got {
		if sp.BookID != "b" || sp.Score <= 0 {
			t.Errorf("bad scored page %+v", sp)
		}
	}
}

func TestRankRestrictsToPageSet(t *testing.T) {
	postings := map[string]index.PostingList{
		"cat": {{Page: 1, Frequency: 1}, {Page: 2, Frequency: 1}},
	}
	got := Rank("b", postings, map[int]struct{}{2: {}}, RankParams{TotalPages: 2, AvgPageLength: 5}, func(int) int { return 5 }, 0)
	if len(got) != 1 || got[0].Page != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestRankLimit(t *testing.T) {
	postings := map[string]index.PostingList{
		"x": {{Page: 1, Frequency: 1}, {Page: 2, Frequency: 1}, {Page: 3, Frequency: 1}},
	}
	got := Rank("b", postings, nil, RankParams{TotalPages: 3, AvgPageLength: 1}, func(int) int { return 1 }, 2)
	if len(got) != 2 {
		t.Fatalf("limit ignored: %d", len(got))
	}
}

func TestLessTieBreak(t *testing.T) {
	a := ScoredPage{PageKey: PageKey{BookID: "a", Page: 9}, Score: 1}
	b := ScoredPage{PageKey: PageKey{BookID: "b", Page: 1}, Score: 1}
	if !Less(a, b) || Less(b, a) {
		t.Error("equal scores must order by book id")
	}
}
