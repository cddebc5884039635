package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/highlight"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/hocr"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
)

type recorder struct {
	mu       sync.Mutex
	indexed  []string
	failed   []string
	deleted  []string
	notified []string
	events   []interface{}
}

func (r *recorder) RecordIndexed(_ context.Context, bookID string, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, bookID)
	return nil
}

func (r *recorder) RecordFailed(_ context.Context, bookID string, _ error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, bookID)
	return nil
}

func (r *recorder) RecordDeleted(_ context.Context, bookID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, bookID)
	return nil
}

func (r *recorder) NotifyIndexChanged(_ context.Context, bookID string, deleted bool, _ int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if deleted {
		bookID = "-" + bookID
	}
	r.notified = append(r.notified, bookID)
	return nil
}

func (r *recorder) Track(event interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type memoryCache struct {
	mu          sync.Mutex
	entries     map[string]*SearchResponse
	invalidated []string
}

func (c *memoryCache) GetOrCompute(_ context.Context, query, bookID string, _ int,
	compute func() (*SearchResponse, error)) (*SearchResponse, bool, error) {
	key := bookID + "|" + query
	c.mu.Lock()
	if resp, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return resp, true, nil
	}
	c.mu.Unlock()
	resp, err := compute()
	if err != nil {
		return nil, false, err
	}
	c.mu.Lock()
	c.entries[key] = resp
	c.mu.Unlock()
	return resp, false, nil
}

func (c *memoryCache) Invalidate(_ context.Context, bookID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*SearchResponse)
	c.invalidated = append(c.invalidated, bookID)
	return nil
}

type fixture struct {
	root  string
	store *indexer.Store
	svc   *Service
	rec   *recorder
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	root := t.TempDir()
	store, err := indexer.Open(filepath.Join(root, ".index"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	rec := &recorder{}
	cfg := config.Default()
	opts := Options{
		Collection: newCollection(t, root),
		Store:      store,
		Search:     cfg.Search,
		Index:      cfg.Index,
		Ledger:     rec,
		Notifier:   rec,
		Tracker:    rec,
	}
	if mutate != nil {
		mutate(&opts)
	}
	svc, err := NewService(opts)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{root: root, store: store, svc: svc, rec: rec}
}

func (f *fixture) reindexAll(t *testing.T) *ReindexReport {
	t.Helper()
	report, err := f.svc.Reindex(context.Background(), "")
	if err != nil {
		t.Fatalf("Reindex: %v", err)
	}
	return report
}

func TestSearchResolvesMergedRegion(t *testing.T) {
	f := newFixture(t, nil)
	writeBook(t, f.root, "cats", catsMarkup)
	writeBook(t, f.root, "dogs", dogsMarkup)
	f.reindexAll(t)

	resp, err := f.svc.Search(context.Background(), "the cat", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalHits != 1 || len(resp.Results) != 1 {
		t.Fatalf("results = %+v", resp.Results)
	}
	hit := resp.Results[0]
	if hit.BookID != "cats" || hit.Page != 3 {
		t.Fatalf("hit = %s page %d", hit.BookID, hit.Page)
	}
	want := []highlight.Region{{Page: 3, BBox: hocr.BBox{Left: 10, Top: 20, Right: 55, Bottom: 40}}}
	if !reflect.DeepEqual(hit.Regions, want) {
		t.Errorf("regions = %+v, want %+v", hit.Regions, want)
	}
	if len(hit.Tokens) == 0 {
		t.Error("expected highlighted tokens")
	}
}

func TestSearchScopedToBook(t *testing.T) {
	f := newFixture(t, nil)
	writeBook(t, f.root, "cats", catsMarkup)
	writeBook(t, f.root, "dogs", dogsMarkup)
	f.reindexAll(t)
	ctx := context.Background()

	resp, err := f.svc.Search(ctx, "the", "dogs")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range resp.Results {
		if r.BookID != "dogs" {
			t.Errorf("scoped search returned %s", r.BookID)
		}
	}
	if len(resp.Results) != 1 || resp.Results[0].Page != 2 {
		t.Errorf("results = %+v", resp.Results)
	}

	if _, err := f.svc.Search(ctx, "the", "birds"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("unknown book err = %v", err)
	}
}

func TestSearchInvalidQuery(t *testing.T) {
	f := newFixture(t, nil)
	for _, q := range []string{"", "   ", "NOT cat"} {
		if _, err := f.svc.Search(context.Background(), q, ""); !errors.Is(err, apperrors.ErrInvalidQuery) {
			t.Errorf("Search(%q) err = %v", q, err)
		}
	}
}

func TestSearchEmptyCollection(t *testing.T) {
	f := newFixture(t, nil)
	f.reindexAll(t)
	resp, err := f.svc.Search(context.Background(), "cat", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalHits != 0 || resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestReindexIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	writeBook(t, f.root, "cats", catsMarkup)
	ctx := context.Background()

	if _, err := f.svc.ReindexBook(ctx, "cats"); err != nil {
		t.Fatal(err)
	}
	first, err := f.svc.Search(ctx, "cat OR preface", "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ReindexBook(ctx, "cats"); err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Search(ctx, "cat OR preface", "")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reindex changed results:\n%+v\n%+v", first, second)
	}
}

func TestReindexAllReportsFailuresAndPrunes(t *testing.T) {
	f := newFixture(t, nil)
	writeBook(t, f.root, "cats", catsMarkup)
	writeBook(t, f.root, "dogs", dogsMarkup)
	f.reindexAll(t)

	writeBook(t, f.root, "broken", `<html><body><p>no pages</p></body></html>`)
	if err := os.RemoveAll(filepath.Join(f.root, "dogs")); err != nil {
		t.Fatal(err)
	}
	report := f.reindexAll(t)

	if report.OK() {
		t.Fatal("expected a failure")
	}
	if !reflect.DeepEqual(report.Indexed, []string{"cats"}) {
		t.Errorf("indexed = %v", report.Indexed)
	}
	if len(report.Failed) != 1 || report.Failed[0].BookID != "broken" || report.Failed[0].Kind != "malformed_markup" {
		t.Errorf("failed = %+v", report.Failed)
	}
	if !reflect.DeepEqual(report.Removed, []string{"dogs"}) {
		t.Errorf("removed = %v", report.Removed)
	}
	if f.store.Has("dogs") || f.store.Has("broken") {
		t.Error("pruned or failed book still indexed")
	}
	if len(f.rec.failed) != 1 || len(f.rec.deleted) != 1 {
		t.Errorf("ledger failed=%v deleted=%v", f.rec.failed, f.rec.deleted)
	}
}

func TestFailedRebuildKeepsPreviousIndex(t *testing.T) {
	f := newFixture(t, nil)
	writeBook(t, f.root, "cats", catsMarkup)
	ctx := context.Background()
	if _, err := f.svc.ReindexBook(ctx, "cats"); err != nil {
		t.Fatal(err)
	}
	writeBook(t, f.root, "cats", `<div class="ocr_page" id="page_x"></div>`)
	if _, err := f.svc.ReindexBook(ctx, "cats"); !errors.Is(err, apperrors.ErrMalformedMarkup) {
		t.Fatalf("err = %v", err)
	}
	if text, err := f.store.Lookup("cats", 3); err != nil || text == "" {
		t.Errorf("previous index lost: %q, %v", text, err)
	}
}

func TestDeleteBookHidesIt(t *testing.T) {
	f := newFixture(t, nil)
	writeBook(t, f.root, "cats", catsMarkup)
	ctx := context.Background()
	if _, err := f.svc.ReindexBook(ctx, "cats"); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DeleteBook(ctx, "cats"); err != nil {
		t.Fatalf("DeleteBook: %v", err)
	}
	resp, err := f.svc.Search(ctx, "cat", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("deleted book still searchable: %+v", resp.Results)
	}
	if err := f.svc.DeleteBook(ctx, "cats"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second delete err = %v", err)
	}
	if !reflect.DeepEqual(f.rec.notified, []string{"cats", "-cats"}) {
		t.Errorf("notifications = %v", f.rec.notified)
	}
}

func TestSearchStaleHitWhenMarkupVanishes(t *testing.T) {
	f := newFixture(t, nil)
	writeBook(t, f.root, "cats", catsMarkup)
	ctx := context.Background()
	if _, err := f.svc.ReindexBook(ctx, "cats"); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(filepath.Join(f.root, "cats")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Search(ctx, "cat", ""); !errors.Is(err, apperrors.ErrStaleHit) {
		t.Fatalf("err = %v, want ErrStaleHit", err)
	}
}

func TestSearchUsesResultCache(t *testing.T) {
	cache := &memoryCache{entries: make(map[string]*SearchResponse)}
	f := newFixture(t, func(o *Options) { o.Cache = cache })
	writeBook(t, f.root, "cats", catsMarkup)
	ctx := context.Background()
	if _, err := f.svc.ReindexBook(ctx, "cats"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Search(ctx, "cat", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Search(ctx, "cat", ""); err != nil {
		t.Fatal(err)
	}
	var hits int
	for _, e := range f.rec.events {
		if ev, ok := e.(analytics.SearchEvent); ok && ev.CacheHit {
			hits++
		}
	}
	if hits != 1 {
		t.Errorf("cache hits = %d, want 1", hits)
	}
	if err := f.svc.DeleteBook(ctx, "cats"); err != nil {
		t.Fatal(err)
	}
	if len(cache.entries) != 0 || cache.invalidated[len(cache.invalidated)-1] != "cats" {
		t.Errorf("cache not invalidated: %v", cache.invalidated)
	}
}

func TestMetadataAndTOC(t *testing.T) {
	f := newFixture(t, nil)
	writeBook(t, f.root, "cats", catsMarkup)
	ctx := context.Background()

	md, err := f.svc.Metadata(ctx, "cats")
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if md.Title != "A Study of Cats" || md.Creator != "Jane Doe" || md.PageCount != 2 {
		t.Errorf("metadata = %+v", md)
	}
	toc, err := f.svc.TOC(ctx, "cats")
	if err != nil {
		t.Fatalf("TOC: %v", err)
	}
	if want := []hocr.TOCEntry{{Title: "Preface", Page: 1, Kind: "chapter"}}; !reflect.DeepEqual(toc, want) {
		t.Errorf("toc = %+v", toc)
	}
	if _, err := f.svc.Metadata(ctx, "dogs"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("missing book err = %v", err)
	}
}

func TestBooksListing(t *testing.T) {
	f := newFixture(t, nil)
	writeBook(t, f.root, "cats", catsMarkup)
	writeBook(t, f.root, "dogs", dogsMarkup)
	if _, err := f.svc.ReindexBook(context.Background(), "cats"); err != nil {
		t.Fatal(err)
	}
	books, err := f.svc.Books(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []BookSummary{
		{BookID: "cats", OnDisk: true, Indexed: true, Pages: 2},
		{BookID: "dogs", OnDisk: true},
	}
	if !reflect.DeepEqual(books, want) {
		t.Errorf("books = %+v", books)
	}
}

func TestRefreshPicksUpOtherWriter(t *testing.T) {
	f := newFixture(t, nil)
	writeBook(t, f.root, "cats", catsMarkup)
	other, err := indexer.Open(f.store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	doc, err := f.svc.Collection().Load(context.Background(), "cats")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Build(context.Background(), "cats", pageTexts(doc)); err != nil {
		t.Fatal(err)
	}
	if f.store.Has("cats") {
		t.Fatal("store saw the other writer before refresh")
	}
	if err := f.svc.Refresh(context.Background(), "cats"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if !f.store.Has("cats") {
		t.Error("refresh did not load the segment")
	}
}
