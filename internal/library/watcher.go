package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
)

// Reindexer is the part of Service the watcher drives.
type Reindexer interface {
	ReindexBook(ctx context.Context, bookID string) (int, error)
	DeleteBook(ctx context.Context, bookID string) error
}

// Watcher follows the collection root and every book directory, and
// reindexes a book once its markup has been quiet for the debounce
// interval. A book whose markup disappears is removed from the index.
type Watcher struct {
	collection *Collection
	target     Reindexer
	debounce   time.Duration
	fs         *fsnotify.Watcher
	ready      chan string
	stop       chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer

	logger *slog.Logger
}

func NewWatcher(collection *Collection, target Reindexer, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	w := &Watcher{
		collection: collection,
		target:     target,
		debounce:   debounce,
		fs:         fsw,
		ready:      make(chan string, 64),
		stop:       make(chan struct{}),
		pending:    make(map[string]*time.Timer),
		logger:     slog.Default().With("component", "collection-watcher"),
	}
	if err := w.fs.Add(collection.Root()); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watching %s: %w", collection.Root(), err)
	}
	ids, err := collection.Books()
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, id := range ids {
		w.watchBook(id)
	}
	return w, nil
}

// Run processes file events until ctx is cancelled. Rebuilds run one at a
// time on the calling goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watching collection", "root", w.collection.Root())
	defer w.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", "error", err)
		case id := <-w.ready:
			w.apply(ctx, id)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if id, ok := w.collection.BookIDFromPath(ev.Name); ok {
		w.schedule(id)
		return
	}
	id, ok := w.bookDir(ev.Name)
	if !ok {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			w.watchBook(id)
		}
	}
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.schedule(id)
	}
}

// bookDir reports whether path is a direct child directory name of the
// collection root.
func (w *Watcher) bookDir(path string) (string, bool) {
	rel, err := filepath.Rel(w.collection.Root(), path)
	if err != nil || rel == "." || strings.ContainsRune(rel, filepath.Separator) || !isBookDir(rel) {
		return "", false
	}
	return rel, true
}

func (w *Watcher) watchBook(id string) {
	dir := filepath.Join(w.collection.Root(), id)
	if err := w.fs.Add(dir); err != nil {
		w.logger.Warn("cannot watch book directory", "book_id", id, "error", err)
	}
}

func (w *Watcher) schedule(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[id]; ok {
		t.Reset(w.debounce)
		return
	}
	w.pending[id] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, id)
		w.mu.Unlock()
		select {
		case w.ready <- id:
		case <-w.stop:
		}
	})
}

func (w *Watcher) apply(ctx context.Context, id string) {
	log := w.logger.With("book_id", id)
	if !w.collection.Exists(id) {
		err := w.target.DeleteBook(ctx, id)
		switch {
		case err == nil:
			log.Info("book removed from collection, index entries dropped")
		case !errors.Is(err, apperrors.ErrNotFound):
			log.Error("dropping removed book", "error", err)
		}
		return
	}
	if _, err := w.target.ReindexBook(ctx, id); err != nil {
		log.Error("reindex after change failed", "error", err)
	}
}

func (w *Watcher) shutdown() {
	close(w.stop)
	w.mu.Lock()
	for id, t := range w.pending {
		t.Stop()
		delete(w.pending, id)
	}
	w.mu.Unlock()
	if err := w.fs.Close(); err != nil {
		w.logger.Warn("closing file watcher", "error", err)
	}
}
