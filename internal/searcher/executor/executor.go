// Package executor runs a parsed query against a snapshot of the index
// store and produces ranked hits with highlighted snippets.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/snippet"
	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
)

// Hit is one matching page. Score only orders hits and is not serialised.
type Hit struct {
	BookID  string   `json:"book_id"`
	Page    int      `json:"page"`
	Score   float64  `json:"-"`
	Snippet string   `json:"snippet"`
	Tokens  []string `json:"tokens"`
}

type SearchResult struct {
	Query     string         `json:"query"`
	BookID    string         `json:"book_id,omitempty"`
	TotalHits int            `json:"total_hits"`
	Hits      []Hit          `json:"hits"`
	TermStats map[string]int `json:"term_stats"`
}

// Source supplies consistent views of the index.
type Source interface {
	Snapshot() *indexer.Snapshot
}

type Executor struct {
	source  Source
	snippet snippet.Options
	logger  *slog.Logger
}

func New(source Source, opts snippet.Options) *Executor {
	return &Executor{
		source:  source,
		snippet: opts,
		logger:  slog.Default().With("component", "query-executor"),
	}
}

// Execute evaluates plan across every book, or only bookID when it is not
// empty. An unknown bookID is ErrNotFound. limit caps the number of hits;
// zero or less returns all of them.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, bookID string, limit int) (*SearchResult, error) {
	snap := e.source.Snapshot()
	bookIDs := snap.BookIDs()
	if bookID != "" {
		if _, ok := snap.Book(bookID); !ok {
			return nil, apperrors.NotFoundf("book %q is not indexed", bookID)
		}
		bookIDs = []string{bookID}
	}
	result := &SearchResult{
		Query:     plan.RawQuery,
		BookID:    bookID,
		Hits:      []Hit{},
		TermStats: make(map[string]int),
	}
	if len(bookIDs) == 0 {
		return result, nil
	}

	params := ranker.RankParams{
		TotalPages:    snap.TotalPages(),
		AvgPageLength: snap.AvgPageLength(),
		PageFreq:      make(map[string]int, len(plan.Terms)),
	}
	for _, term := range plan.Terms {
		params.PageFreq[term] = snap.PageFrequency(term)
	}

	bookResults, err := e.fanOut(ctx, snap, bookIDs, plan, params, limit)
	if err != nil {
		return nil, fmt.Errorf("book fan-out: %w", err)
	}
	ranked := make([][]ranker.ScoredPage, 0, len(bookResults))
	for _, br := range bookResults {
		result.TotalHits += br.Candidates
		for term, n := range br.TermStats {
			result.TermStats[term] += n
		}
		ranked = append(ranked, br.Ranked)
	}

	for _, sp := range merger.Merge(ranked, limit) {
		book, ok := snap.Book(sp.BookID)
		if !ok {
			continue
		}
		text, _ := book.PageText(sp.Page)
		snip := snippet.Highlight(text, plan.Terms, e.snippet)
		result.Hits = append(result.Hits, Hit{
			BookID:  sp.BookID,
			Page:    sp.Page,
			Score:   sp.Score,
			Snippet: snip,
			Tokens:  snippet.ExtractTokens(snip),
		})
	}

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"terms", plan.Terms,
		"books_queried", len(bookIDs),
		"candidates", result.TotalHits,
		"results", len(result.Hits),
	)
	return result, nil
}
