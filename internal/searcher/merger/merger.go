// Package merger combines the ranked pages of several books into one
// globally ordered list.
package merger

import (
	"container/heap"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/ranker"
)

// Merge returns the best limit pages across all bookResults, ordered by
// descending score and then ascending (book, page). A limit of zero or less
// keeps every page.
func Merge(bookResults [][]ranker.ScoredPage, limit int) []ranker.ScoredPage {
	if limit <= 0 {
		all := make([]ranker.ScoredPage, 0)
		for _, results := range bookResults {
			all = append(all, results...)
		}
		sort.Slice(all, func(i, j int) bool {
			return ranker.Less(all[i], all[j])
		})
		return all
	}
	h := &scoredPageHeap{}
	heap.Init(h)
	for _, results := range bookResults {
		for _, page := range results {
			heap.Push(h, page)
			if h.Len() > limit {
				heap.Pop(h)
			}
		}
	}
	result := make([]ranker.ScoredPage, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(h).(ranker.ScoredPage)
	}
	return result
}

// scoredPageHeap is a min-heap: the root is the worst page kept so far.
type scoredPageHeap []ranker.ScoredPage

func (h scoredPageHeap) Len() int { return len(h) }

func (h scoredPageHeap) Less(i, j int) bool {
	return ranker.Less(h[j], h[i])
}

func (h scoredPageHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredPageHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredPage))
}

func (h *scoredPageHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
