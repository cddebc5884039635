package executor

import (
	"context"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/ranker"
)

// BookResult is the ranked output of one book.
type BookResult struct {
	BookID     string
	Ranked     []ranker.ScoredPage
	Candidates int
	TermStats  map[string]int
}

// fanOut evaluates the plan on each book concurrently. Results keep the
// order of bookIDs.
func (e *Executor) fanOut(
	ctx context.Context,
	snap *indexer.Snapshot,
	bookIDs []string,
	plan *parser.QueryPlan,
	params ranker.RankParams,
	limit int,
) ([]BookResult, error) {
	results := make([]BookResult, len(bookIDs))
	var wg sync.WaitGroup
	for i, id := range bookIDs {
		book, ok := snap.Book(id)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(idx int, book *index.BookIndex) {
			defer wg.Done()
			results[idx] = evaluateBook(book, plan, params, limit)
		}(i, book)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func evaluateBook(book *index.BookIndex, plan *parser.QueryPlan, params ranker.RankParams, limit int) BookResult {
	br := BookResult{
		BookID:    book.BookID(),
		TermStats: make(map[string]int),
	}
	postingsPerTerm := make(map[string]index.PostingList, len(plan.Terms))
	for _, term := range plan.Terms {
		postings := book.Search(term)
		if len(postings) > 0 {
			postingsPerTerm[term] = postings
			br.TermStats[term] = len(postings)
		}
	}

	var candidates map[int]struct{}
	switch plan.Type {
	case parser.QueryAND:
		if len(postingsPerTerm) < len(plan.Terms) {
			return br
		}
		candidates = intersectPostings(postingsPerTerm)
	case parser.QueryOR:
		candidates = unionPostings(postingsPerTerm)
	}
	for _, term := range plan.ExcludeTerms {
		for _, p := range book.Search(term) {
			delete(candidates, p.Page)
		}
	}
	br.Candidates = len(candidates)
	if len(candidates) == 0 {
		return br
	}
	br.Ranked = ranker.Rank(book.BookID(), postingsPerTerm, candidates, params, book.PageLength, limit)
	return br
}

func intersectPostings(postingsPerTerm map[string]index.PostingList) map[int]struct{} {
	if len(postingsPerTerm) == 0 {
		return make(map[int]struct{})
	}
	var shortestTerm string
	shortestLen := int(^uint(0) >> 1)
	for term, postings := range postingsPerTerm {
		if len(postings) < shortestLen {
			shortestLen = len(postings)
			shortestTerm = term
		}
	}
	candidates := make(map[int]struct{})
	for _, p := range postingsPerTerm[shortestTerm] {
		candidates[p.Page] = struct{}{}
	}
	for term, postings := range postingsPerTerm {
		if term == shortestTerm {
			continue
		}
		pageSet := make(map[int]struct{}, len(postings))
		for _, p := range postings {
			pageSet[p.Page] = struct{}{}
		}
		for page := range candidates {
			if _, exists := pageSet[page]; !exists {
				delete(candidates, page)
			}
		}
	}
	return candidates
}

func unionPostings(postingsPerTerm map[string]index.PostingList) map[int]struct{} {
	result := make(map[int]struct{})
	for _, postings := range postingsPerTerm {
		for _, p := range postings {
			result[p.Page] = struct{}{}
		}
	}
	return result
}
