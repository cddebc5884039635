package library

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
)

type fakeReindexer struct {
	mu      sync.Mutex
	rebuilt map[string]int
	removed map[string]int
	changed chan struct{}
}

func newFakeReindexer() *fakeReindexer {
	return &fakeReindexer{
		rebuilt: make(map[string]int),
		removed: make(map[string]int),
		changed: make(chan struct{}, 16),
	}
}

func (f *fakeReindexer) ReindexBook(_ context.Context, bookID string) (int, error) {
	f.mu.Lock()
	f.rebuilt[bookID]++
	f.mu.Unlock()
	f.changed <- struct{}{}
	return 1, nil
}

func (f *fakeReindexer) DeleteBook(_ context.Context, bookID string) error {
	f.mu.Lock()
	f.removed[bookID]++
	f.mu.Unlock()
	f.changed <- struct{}{}
	return apperrors.NotFoundf("book %q not indexed", bookID)
}

func (f *fakeReindexer) counts(bookID string) (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rebuilt[bookID], f.removed[bookID]
}

func waitForChange(t *testing.T, f *fakeReindexer) {
	t.Helper()
	select {
	case <-f.changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not react")
	}
}

func startWatcher(t *testing.T, root string, target Reindexer) {
	t.Helper()
	w, err := NewWatcher(newCollection(t, root), target, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWatcherReindexesNewBook(t *testing.T) {
	root := t.TempDir()
	target := newFakeReindexer()
	startWatcher(t, root, target)

	dir := filepath.Join(root, "cats")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to add the new directory before writing.
	time.Sleep(20 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "cats.hocr"), []byte(catsMarkup), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForChange(t, target)
	if rebuilt, _ := target.counts("cats"); rebuilt < 1 {
		t.Errorf("rebuilt = %d", rebuilt)
	}
}

func TestWatcherDebouncesWrites(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, "cats", catsMarkup)
	target := newFakeReindexer()
	startWatcher(t, root, target)

	path := filepath.Join(root, "cats", "cats.hocr")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte(catsMarkup), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	waitForChange(t, target)
	time.Sleep(200 * time.Millisecond)
	if rebuilt, _ := target.counts("cats"); rebuilt != 1 {
		t.Errorf("rebuilt %d times, want 1", rebuilt)
	}
}

func TestWatcherDropsRemovedBook(t *testing.T) {
	root := t.TempDir()
	writeBook(t, root, "cats", catsMarkup)
	target := newFakeReindexer()
	startWatcher(t, root, target)

	if err := os.Remove(filepath.Join(root, "cats", "cats.hocr")); err != nil {
		t.Fatal(err)
	}
	waitForChange(t, target)
	if rebuilt, removed := target.counts("cats"); rebuilt != 0 || removed != 1 {
		t.Errorf("rebuilt=%d removed=%d", rebuilt, removed)
	}
}

func TestWatcherIgnoresHiddenDirectories(t *testing.T) {
	root := t.TempDir()
	target := newFakeReindexer()
	startWatcher(t, root, target)

	writeBook(t, root, ".index", catsMarkup)
	select {
	case <-target.changed:
		t.Fatal("hidden directory triggered a rebuild")
	case <-time.After(200 * time.Millisecond):
	}
}
