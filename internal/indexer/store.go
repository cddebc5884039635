// Package indexer owns the collection's index store: one immutable inverted
// index per book, persisted as one segment file per book and published to
// readers by swapping a pointer.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/segment"
	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
)

// Store is the index of one collection. Builds of different books run
// independently; a build of one book is serialised against other builds and
// deletes of the same book. Readers never block on a build.
type Store struct {
	dir    string
	writer *segment.Writer
	logger *slog.Logger

	mu     sync.RWMutex
	books  map[string]*index.BookIndex
	closed bool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// Open creates the index directory if needed and loads every persisted book
// segment. A segment that fails verification is logged and skipped; the
// book can be rebuilt by reindexing it. Failure to create or list the
// directory is ErrIndexUnavailable.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.Newf(apperrors.ErrIndexUnavailable, http.StatusServiceUnavailable,
			"creating index directory %s: %v", dir, err)
	}
	s := &Store{
		dir:    dir,
		writer: segment.NewWriter(dir),
		logger: slog.Default().With("component", "index-store"),
		books:  make(map[string]*index.BookIndex),
		locks:  make(map[string]*sync.Mutex),
	}
	if err := s.loadExistingSegments(); err != nil {
		return nil, apperrors.Newf(apperrors.ErrIndexUnavailable, http.StatusServiceUnavailable,
			"loading index segments: %v", err)
	}
	return s, nil
}

// Dir returns the directory holding the segment files.
func (s *Store) Dir() string {
	return s.dir
}

// Build replaces every entry of bookID with one entry per page. The new
// index is fully built and persisted before it becomes visible, so readers
// see either the old or the new book, never a mix.
func (s *Store) Build(ctx context.Context, bookID string, pages []index.PageText) (*index.BookIndex, error) {
	if err := validateBookID(bookID); err != nil {
		return nil, err
	}
	lock := s.bookLock(bookID)
	lock.Lock()
	defer lock.Unlock()

	book, err := index.Build(bookID, pages)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrMalformedMarkup, http.StatusUnprocessableEntity, "%v", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("building book %s: %w", bookID, err)
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	path, err := s.writer.Write(book)
	if err != nil {
		return nil, fmt.Errorf("persisting book %s: %w", bookID, err)
	}

	s.mu.Lock()
	s.books[bookID] = book
	s.mu.Unlock()

	s.logger.Info("book indexed",
		"book_id", bookID,
		"pages", book.PageCount(),
		"tokens", book.TotalTokens(),
		"segment", filepath.Base(path),
	)
	return book, nil
}

// Delete removes every entry of bookID. Deleting a book that is not indexed
// is ErrNotFound.
func (s *Store) Delete(bookID string) error {
	lock := s.bookLock(bookID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	_, ok := s.books[bookID]
	s.mu.RUnlock()
	if !ok {
		return apperrors.NotFoundf("book %q is not indexed", bookID)
	}
	if err := os.Remove(segment.Path(s.dir, bookID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing segment of book %s: %w", bookID, err)
	}
	s.mu.Lock()
	delete(s.books, bookID)
	s.mu.Unlock()

	s.logger.Info("book removed from index", "book_id", bookID)
	return nil
}

// Lookup returns the stored text of one page.
func (s *Store) Lookup(bookID string, page int) (string, error) {
	book, ok := s.Book(bookID)
	if !ok {
		return "", apperrors.NotFoundf("book %q is not indexed", bookID)
	}
	text, ok := book.PageText(page)
	if !ok {
		return "", apperrors.NotFoundf("book %q has no page %d", bookID, page)
	}
	return text, nil
}

// Book returns the current index of bookID.
func (s *Store) Book(bookID string) (*index.BookIndex, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.books[bookID]
	return b, ok
}

// Has reports whether bookID is indexed.
func (s *Store) Has(bookID string) bool {
	_, ok := s.Book(bookID)
	return ok
}

// Books returns the indexed book ids in ascending order.
func (s *Store) Books() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.books))
	for id := range s.books {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Snapshot captures the current set of book indexes. The snapshot is
// unaffected by later builds and deletes.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	books := make(map[string]*index.BookIndex, len(s.books))
	for id, b := range s.books {
		books[id] = b
	}
	s.mu.RUnlock()
	return newSnapshot(books)
}

// Reload re-reads the segment of bookID from disk, picking up a build made
// by another process. A missing segment removes the book.
func (s *Store) Reload(bookID string) error {
	if err := validateBookID(bookID); err != nil {
		return err
	}
	lock := s.bookLock(bookID)
	lock.Lock()
	defer lock.Unlock()

	book, err := segment.Read(segment.Path(s.dir, bookID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.mu.Lock()
			delete(s.books, bookID)
			s.mu.Unlock()
			s.logger.Info("book segment gone, dropped from index", "book_id", bookID)
			return nil
		}
		return fmt.Errorf("reloading book %s: %w", bookID, err)
	}
	if book.BookID() != bookID {
		return fmt.Errorf("segment for %s belongs to book %s", bookID, book.BookID())
	}
	s.mu.Lock()
	s.books[bookID] = book
	s.mu.Unlock()
	s.logger.Info("book reloaded", "book_id", bookID, "pages", book.PageCount())
	return nil
}

// Stats returns the number of indexed books and pages.
func (s *Store) Stats() (books int, pages int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.books {
		pages += b.PageCount()
	}
	return len(s.books), pages
}

// Close releases the store. Later builds fail with ErrIndexUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.books = make(map[string]*index.BookIndex)
	return nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return apperrors.New(apperrors.ErrIndexUnavailable, http.StatusServiceUnavailable, "index store is closed")
	}
	return nil
}

func (s *Store) bookLock(bookID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[bookID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[bookID] = l
	}
	return l
}

func (s *Store) loadExistingSegments() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading data directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(name, segment.TmpExt) {
			s.logger.Warn("removing leftover temp segment", "segment", name)
			os.Remove(filepath.Join(s.dir, name))
			continue
		}
		if !strings.HasSuffix(name, segment.Ext) {
			continue
		}
		book, err := segment.Read(filepath.Join(s.dir, name))
		if err != nil {
			s.logger.Error("failed to open segment, skipping",
				"segment", name,
				"error", err,
			)
			continue
		}
		if want := strings.TrimSuffix(name, segment.Ext); book.BookID() != want {
			s.logger.Error("segment name does not match its book, skipping",
				"segment", name,
				"book_id", book.BookID(),
			)
			continue
		}
		s.books[book.BookID()] = book
	}
	s.logger.Info("segment recovery complete", "books_loaded", len(s.books))
	return nil
}

// validateBookID rejects ids that cannot name a segment file inside the
// index directory.
func validateBookID(bookID string) error {
	if bookID == "" || bookID == "." || bookID == ".." ||
		strings.ContainsAny(bookID, `/\`) || strings.HasPrefix(bookID, ".") {
		return apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid book id %q", bookID)
	}
	return nil
}
