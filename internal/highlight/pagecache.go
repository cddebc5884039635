package highlight

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/hocr"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/metrics"
)

// DocumentLoader parses the current markup of a book.
type DocumentLoader interface {
	Load(ctx context.Context, bookID string) (*hocr.Document, error)
}

type pageKey struct {
	book string
	page int
}

// PageCache is a bounded read-through cache of parsed pages keyed by
// (book, page). Cached pages are never mutated. Each book carries a
// generation number; Invalidate bumps it and drops the book's pages, and a
// load that started under an older generation does not populate the cache.
type PageCache struct {
	pages   *lru.Cache[pageKey, *hocr.Page]
	loader  DocumentLoader
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu   sync.Mutex
	gens map[string]uint64
}

// NewPageCache creates a cache holding at most size pages.
func NewPageCache(loader DocumentLoader, size int, m *metrics.Metrics) (*PageCache, error) {
	pages, err := lru.New[pageKey, *hocr.Page](size)
	if err != nil {
		return nil, fmt.Errorf("creating page cache: %w", err)
	}
	return &PageCache{
		pages:   pages,
		loader:  loader,
		metrics: m,
		logger:  slog.Default().With("component", "page-cache"),
		gens:    make(map[string]uint64),
	}, nil
}

// Page returns the parsed page, loading and caching every page of the book
// on a miss. Concurrent misses on the same book share one parse. ok is false
// when the book parses but has no such page.
func (c *PageCache) Page(ctx context.Context, bookID string, number int) (page *hocr.Page, ok bool, err error) {
	key := pageKey{book: bookID, page: number}
	if p, hit := c.pages.Get(key); hit {
		if c.metrics != nil {
			c.metrics.PageCacheHits.Inc()
		}
		return p, true, nil
	}
	if c.metrics != nil {
		c.metrics.PageCacheMisses.Inc()
	}

	gen := c.generation(bookID)
	v, err, _ := c.group.Do(bookID+"\x00"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		doc, err := c.loader.Load(ctx, bookID)
		if err != nil {
			return nil, err
		}
		c.fill(bookID, gen, doc)
		return doc, nil
	})
	if err != nil {
		return nil, false, err
	}
	page, ok = v.(*hocr.Document).Page(number)
	return page, ok, nil
}

// Invalidate drops every cached page of bookID. Loads already in flight
// for the book are not cached.
func (c *PageCache) Invalidate(bookID string) {
	c.mu.Lock()
	c.gens[bookID]++
	c.mu.Unlock()

	removed := 0
	for _, key := range c.pages.Keys() {
		if key.book == bookID && c.pages.Remove(key) {
			removed++
		}
	}
	c.logger.Debug("book invalidated", "book_id", bookID, "pages_removed", removed)
}

// Purge empties the cache.
func (c *PageCache) Purge() {
	c.mu.Lock()
	for book := range c.gens {
		c.gens[book]++
	}
	c.mu.Unlock()
	c.pages.Purge()
}

func (c *PageCache) Len() int {
	return c.pages.Len()
}

func (c *PageCache) generation(bookID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[bookID]
}

// fill inserts the document's pages while holding mu, so an Invalidate
// either happens before the generation check or removes what was added.
func (c *PageCache) fill(bookID string, gen uint64, doc *hocr.Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[bookID] != gen {
		return
	}
	for i := range doc.Pages {
		c.pages.Add(pageKey{book: bookID, page: doc.Pages[i].Number}, &doc.Pages[i])
	}
}
