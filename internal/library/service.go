package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/highlight"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/hocr"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/searcher/snippet"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/tracing"
)

// PageResult is one hit with its highlight regions.
type PageResult struct {
	BookID  string             `json:"book_id"`
	Page    int                `json:"page_number"`
	Snippet string             `json:"snippet_text"`
	Tokens  []string           `json:"tokens"`
	Regions []highlight.Region `json:"highlight_regions"`
}

type SearchResponse struct {
	Query     string       `json:"query"`
	BookID    string       `json:"book_id,omitempty"`
	TotalHits int          `json:"total_hits"`
	Results   []PageResult `json:"results"`
}

type ReindexFailure struct {
	BookID string `json:"book_id"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// ReindexReport summarises a full reindex. A failed book keeps whatever it
// had in the index before.
type ReindexReport struct {
	Indexed []string         `json:"indexed"`
	Failed  []ReindexFailure `json:"failed"`
	Removed []string         `json:"removed"`
}

func (r *ReindexReport) OK() bool {
	return len(r.Failed) == 0
}

type BookSummary struct {
	BookID  string `json:"book_id"`
	OnDisk  bool   `json:"on_disk"`
	Indexed bool   `json:"indexed"`
	Pages   int    `json:"indexed_pages"`
}

// ResultCache stores composed search responses. Invalidate drops every
// entry that may contain bookID.
type ResultCache interface {
	GetOrCompute(ctx context.Context, query, bookID string, limit int,
		compute func() (*SearchResponse, error)) (*SearchResponse, bool, error)
	Invalidate(ctx context.Context, bookID string) error
}

// StatusRecorder keeps a durable record of each book's index state.
type StatusRecorder interface {
	RecordIndexed(ctx context.Context, bookID string, pages int) error
	RecordFailed(ctx context.Context, bookID string, cause error) error
	RecordDeleted(ctx context.Context, bookID string) error
}

// IndexNotifier tells other processes that a book's segment changed.
type IndexNotifier interface {
	NotifyIndexChanged(ctx context.Context, bookID string, deleted bool, pages int) error
}

// Tracker receives analytics events.
type Tracker interface {
	Track(event interface{})
}

// Options wires a Service. Collection and Store are required; the rest are
// optional.
type Options struct {
	Collection    *Collection
	Store         *indexer.Store
	Search        config.SearchConfig
	Index         config.IndexConfig
	PageCacheSize int
	Metrics       *metrics.Metrics
	Cache         ResultCache
	Ledger        StatusRecorder
	Notifier      IndexNotifier
	Tracker       Tracker
}

type Service struct {
	collection *Collection
	store      *indexer.Store
	executor   *executor.Executor
	pages      *highlight.PageCache
	resolver   *highlight.Resolver
	search     config.SearchConfig
	index      config.IndexConfig
	metrics    *metrics.Metrics
	cache      ResultCache
	ledger     StatusRecorder
	notifier   IndexNotifier
	tracker    Tracker
	logger     *slog.Logger
}

func NewService(opts Options) (*Service, error) {
	if opts.Collection == nil || opts.Store == nil {
		return nil, fmt.Errorf("library service needs a collection and an index store")
	}
	size := opts.PageCacheSize
	if size <= 0 {
		size = 2048
	}
	pages, err := highlight.NewPageCache(opts.Collection, size, opts.Metrics)
	if err != nil {
		return nil, err
	}
	if opts.Index.Workers < 1 {
		opts.Index.Workers = 1
	}
	s := &Service{
		collection: opts.Collection,
		store:      opts.Store,
		executor: executor.New(opts.Store, snippet.Options{
			Surround:     opts.Search.SnippetSurround,
			MaxFragments: opts.Search.MaxFragments,
		}),
		pages:    pages,
		resolver: highlight.NewResolver(pages, opts.Metrics),
		search:   opts.Search,
		index:    opts.Index,
		metrics:  opts.Metrics,
		cache:    opts.Cache,
		ledger:   opts.Ledger,
		notifier: opts.Notifier,
		tracker:  opts.Tracker,
		logger:   slog.Default().With("component", "library"),
	}
	s.publishIndexSize()
	return s, nil
}

// Search runs query over every indexed book, or only bookID when given, and
// resolves the highlight regions of every hit. A hit whose page vanished
// before its regions were resolved fails the whole search with
// ErrStaleHit.
func (s *Service) Search(ctx context.Context, query, bookID string) (*SearchResponse, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "search")
	span.SetAttr("query", query)
	span.SetAttr("book_id", bookID)
	defer func() {
		span.End()
		span.Log()
	}()

	plan, err := parser.Parse(query)
	if err != nil {
		span.Fail(err)
		s.observeSearch(ctx, query, bookID, nil, nil, false, start, err)
		return nil, err
	}

	compute := func() (*SearchResponse, error) {
		return s.compose(ctx, plan, bookID)
	}
	var (
		resp     *SearchResponse
		cacheHit bool
	)
	if s.cache != nil {
		resp, cacheHit, err = s.cache.GetOrCompute(ctx, query, bookID, s.search.MaxResults, compute)
		if err == nil && resp.Query != query {
			// Equivalent queries share an entry; answer with the caller's spelling.
			shared := *resp
			shared.Query = query
			resp = &shared
		}
	} else {
		resp, err = compute()
	}
	span.SetAttr("cache_hit", cacheHit)
	if err != nil {
		span.Fail(err)
		s.observeSearch(ctx, query, bookID, plan, nil, cacheHit, start, err)
		return nil, err
	}
	span.SetAttr("results", len(resp.Results))
	s.observeSearch(ctx, query, bookID, plan, resp, cacheHit, start, nil)
	return resp, nil
}

func (s *Service) compose(ctx context.Context, plan *parser.QueryPlan, bookID string) (*SearchResponse, error) {
	qctx, qspan := tracing.StartChildSpan(ctx, "query")
	result, err := s.executor.Execute(qctx, plan, bookID, s.search.MaxResults)
	qspan.End()
	if err != nil {
		qspan.Fail(err)
		return nil, err
	}
	qspan.SetAttr("hits", len(result.Hits))

	rctx, rspan := tracing.StartChildSpan(ctx, "resolve")
	defer rspan.End()
	resp := &SearchResponse{
		Query:     plan.RawQuery,
		BookID:    bookID,
		TotalHits: result.TotalHits,
		Results:   make([]PageResult, 0, len(result.Hits)),
	}
	regionCount := 0
	for _, hit := range result.Hits {
		if !s.store.Has(hit.BookID) {
			if s.metrics != nil {
				s.metrics.StaleHitsTotal.Inc()
			}
			err := apperrors.Newf(apperrors.ErrStaleHit, http.StatusConflict, "book %s was removed from the index", hit.BookID)
			rspan.Fail(err)
			return nil, err
		}
		regions, err := s.resolver.Resolve(rctx, highlight.Target{
			BookID: hit.BookID,
			Page:   hit.Page,
			Tokens: hit.Tokens,
		})
		if err != nil {
			rspan.Fail(err)
			return nil, err
		}
		regionCount += len(regions)
		resp.Results = append(resp.Results, PageResult{
			BookID:  hit.BookID,
			Page:    hit.Page,
			Snippet: hit.Snippet,
			Tokens:  hit.Tokens,
			Regions: regions,
		})
	}
	rspan.SetAttr("regions", regionCount)
	return resp, nil
}

func (s *Service) observeSearch(
	ctx context.Context,
	query, bookID string,
	plan *parser.QueryPlan,
	resp *SearchResponse,
	cacheHit bool,
	start time.Time,
	err error,
) {
	latency := time.Since(start)
	returned, total := 0, 0
	if resp != nil {
		returned, total = len(resp.Results), resp.TotalHits
	}
	resultType := "hit"
	switch {
	case err != nil:
		resultType = "error"
	case returned == 0:
		resultType = "zero_result"
	}
	if s.metrics != nil {
		cacheStatus := "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
		s.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
		s.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		if err == nil {
			s.metrics.SearchResultsCount.Observe(float64(returned))
		}
	}
	if s.tracker != nil {
		event := analytics.SearchEvent{
			Type:      analytics.EventSearch,
			Query:     query,
			BookID:    bookID,
			TotalHits: total,
			Returned:  returned,
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestID(ctx),
		}
		if plan != nil {
			event.Terms = plan.Terms
		}
		switch {
		case err != nil:
			event.Type = analytics.EventSearchError
			event.ErrorKind = apperrors.Kind(err)
		case returned == 0:
			event.Type = analytics.EventZeroResult
		}
		s.tracker.Track(event)
	}
	logger.FromContext(ctx).Info("search",
		"query", query,
		"book_id", bookID,
		"result_type", resultType,
		"results", returned,
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
}

// Reindex rebuilds bookID, or every book in the collection when bookID is
// empty. A single-book reindex returns that book's error directly.
func (s *Service) Reindex(ctx context.Context, bookID string) (*ReindexReport, error) {
	if bookID == "" {
		return s.ReindexAll(ctx)
	}
	if _, err := s.ReindexBook(ctx, bookID); err != nil {
		return nil, err
	}
	return &ReindexReport{Indexed: []string{bookID}, Failed: []ReindexFailure{}, Removed: []string{}}, nil
}

// ReindexBook parses the book's markup and atomically replaces its index
// entries. On failure the previous entries stay in place.
func (s *Service) ReindexBook(ctx context.Context, bookID string) (int, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("component", "library", "book_id", bookID)

	var pageCount int
	err := resilience.WithTimeout(ctx, s.index.BuildTimeout, "reindex "+bookID, func(ctx context.Context) error {
		doc, err := s.collection.Load(ctx, bookID)
		if err != nil {
			return err
		}
		book, err := s.store.Build(ctx, bookID, pageTexts(doc))
		if err != nil {
			return err
		}
		pageCount = book.PageCount()
		return nil
	})
	if s.metrics != nil {
		s.metrics.ReindexDuration.Observe(time.Since(start).Seconds())
	}
	s.trackReindex(bookID, pageCount, start, err)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ReindexBooksTotal.WithLabelValues("failed").Inc()
		}
		if s.ledger != nil {
			if lerr := s.ledger.RecordFailed(ctx, bookID, err); lerr != nil {
				log.Error("recording failed reindex", "error", lerr)
			}
		}
		log.Error("reindex failed", "error", err, "kind", apperrors.Kind(err))
		return 0, err
	}

	s.invalidate(ctx, bookID)
	if s.metrics != nil {
		s.metrics.ReindexBooksTotal.WithLabelValues("indexed").Inc()
	}
	s.publishIndexSize()
	if s.ledger != nil {
		if lerr := s.ledger.RecordIndexed(ctx, bookID, pageCount); lerr != nil {
			log.Error("recording reindex", "error", lerr)
		}
	}
	if s.notifier != nil {
		if nerr := s.notifier.NotifyIndexChanged(ctx, bookID, false, pageCount); nerr != nil {
			log.Error("publishing index change", "error", nerr)
		}
	}
	log.Info("book reindexed", "pages", pageCount, "duration_ms", time.Since(start).Milliseconds())
	return pageCount, nil
}

// ReindexAll rebuilds every book in the collection with bounded
// parallelism, collecting per-book failures instead of stopping, and drops
// index entries of books that are no longer on disk.
func (s *Service) ReindexAll(ctx context.Context) (*ReindexReport, error) {
	ids, err := s.collection.Books()
	if err != nil {
		return nil, err
	}
	report := &ReindexReport{
		Indexed: make([]string, 0, len(ids)),
		Failed:  make([]ReindexFailure, 0),
		Removed: make([]string, 0),
	}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.index.Workers)
	for _, id := range ids {
		g.Go(func() error {
			_, err := s.ReindexBook(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, ReindexFailure{
					BookID: id,
					Kind:   apperrors.Kind(err),
					Error:  err.Error(),
				})
				return nil
			}
			report.Indexed = append(report.Indexed, id)
			return nil
		})
	}
	_ = g.Wait()

	present := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		present[id] = struct{}{}
	}
	for _, id := range s.store.Books() {
		if _, ok := present[id]; ok {
			continue
		}
		if err := s.DeleteBook(ctx, id); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			report.Failed = append(report.Failed, ReindexFailure{BookID: id, Kind: apperrors.Kind(err), Error: err.Error()})
			continue
		}
		report.Removed = append(report.Removed, id)
	}

	sort.Strings(report.Indexed)
	sort.Strings(report.Removed)
	sort.Slice(report.Failed, func(i, j int) bool {
		return report.Failed[i].BookID < report.Failed[j].BookID
	})
	s.logger.Info("full reindex finished",
		"indexed", len(report.Indexed),
		"failed", len(report.Failed),
		"removed", len(report.Removed),
	)
	return report, nil
}

// DeleteBook removes the book from the index. Its markup stays on disk.
func (s *Service) DeleteBook(ctx context.Context, bookID string) error {
	if err := s.store.Delete(bookID); err != nil {
		return err
	}
	s.invalidate(ctx, bookID)
	if s.metrics != nil {
		s.metrics.ReindexBooksTotal.WithLabelValues("removed").Inc()
	}
	s.publishIndexSize()
	log := logger.FromContext(ctx).With("book_id", bookID)
	if s.ledger != nil {
		if err := s.ledger.RecordDeleted(ctx, bookID); err != nil {
			log.Error("recording delete", "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyIndexChanged(ctx, bookID, true, 0); err != nil {
			log.Error("publishing index change", "error", err)
		}
	}
	return nil
}

// Refresh reloads bookID's segment written by another process and drops
// everything cached for it.
func (s *Service) Refresh(ctx context.Context, bookID string) error {
	if err := s.store.Reload(bookID); err != nil {
		return err
	}
	s.invalidate(ctx, bookID)
	s.publishIndexSize()
	return nil
}

// Metadata parses the book's markup and returns its bibliographic fields.
func (s *Service) Metadata(ctx context.Context, bookID string) (hocr.Metadata, error) {
	doc, err := s.collection.Load(ctx, bookID)
	if err != nil {
		return hocr.Metadata{}, err
	}
	return doc.Metadata, nil
}

// TOC returns the book's structural markers in document order.
func (s *Service) TOC(ctx context.Context, bookID string) ([]hocr.TOCEntry, error) {
	doc, err := s.collection.Load(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if doc.TOC == nil {
		return []hocr.TOCEntry{}, nil
	}
	return doc.TOC, nil
}

// Books lists every book found on disk or in the index.
func (s *Service) Books(ctx context.Context) ([]BookSummary, error) {
	onDisk, err := s.collection.Books()
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*BookSummary)
	for _, id := range onDisk {
		byID[id] = &BookSummary{BookID: id, OnDisk: true}
	}
	snap := s.store.Snapshot()
	for _, id := range snap.BookIDs() {
		sum, ok := byID[id]
		if !ok {
			sum = &BookSummary{BookID: id}
			byID[id] = sum
		}
		book, _ := snap.Book(id)
		sum.Indexed = true
		sum.Pages = book.PageCount()
	}
	out := make([]BookSummary, 0, len(byID))
	for _, sum := range byID {
		out = append(out, *sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookID < out[j].BookID })
	return out, nil
}

// Ping checks that the index directory is still reachable.
func (s *Service) Ping(ctx context.Context) error {
	if _, err := os.Stat(s.store.Dir()); err != nil {
		return fmt.Errorf("index directory: %w", err)
	}
	return nil
}

// Collection exposes the collection, used by the watcher.
func (s *Service) Collection() *Collection {
	return s.collection
}

func (s *Service) trackReindex(bookID string, pages int, start time.Time, err error) {
	if s.tracker == nil {
		return
	}
	event := analytics.ReindexEvent{
		Type:      analytics.EventReindex,
		BookID:    bookID,
		Pages:     pages,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		event.Failed = true
		event.Pages = 0
		event.ErrorKind = apperrors.Kind(err)
	}
	s.tracker.Track(event)
}

func (s *Service) invalidate(ctx context.Context, bookID string) {
	s.pages.Invalidate(bookID)
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, bookID); err != nil {
			s.logger.Warn("result cache invalidation failed", "book_id", bookID, "error", err)
		}
	}
}

func (s *Service) publishIndexSize() {
	books, pages := s.store.Stats()
	s.metrics.SetIndexSize(books, pages)
}

func pageTexts(doc *hocr.Document) []index.PageText {
	pages := make([]index.PageText, 0, len(doc.Pages))
	for i := range doc.Pages {
		pages = append(pages, index.PageText{
			Number: doc.Pages[i].Number,
			Text:   doc.Pages[i].Text(),
		})
	}
	return pages
}
