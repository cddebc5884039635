// Package library ties the collection on disk, the hOCR parser, the index
// store, the query engine and the highlight resolver together behind the
// operations the API and CLI expose: reindex, delete, metadata, table of
// contents and search.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/hocr"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
)

// Collection enumerates the books under a root directory. Book <id> lives
// in <root>/<id>/<id><ext>; directories whose name starts with a dot are
// never books.
type Collection struct {
	root   string
	ext    string
	parser *hocr.Parser
	logger *slog.Logger
}

// NewCollection builds the parser from cfg and returns the collection.
func NewCollection(cfg config.LibraryConfig) (*Collection, error) {
	opts := hocr.DefaultOptions()
	if len(cfg.MetadataFields) > 0 {
		opts.Metadata.Fields = cfg.MetadataFields
	}
	opts.Metadata.TitleFromBookID = cfg.TitleFromBookID
	parser, err := hocr.NewParser(opts)
	if err != nil {
		return nil, fmt.Errorf("configuring markup parser: %w", err)
	}
	ext := cfg.MarkupExt
	if ext == "" {
		ext = ".hocr"
	}
	return &Collection{
		root:   cfg.Root,
		ext:    ext,
		parser: parser,
		logger: slog.Default().With("component", "collection"),
	}, nil
}

func (c *Collection) Root() string {
	return c.root
}

// MarkupPath returns where the markup of bookID is expected.
func (c *Collection) MarkupPath(bookID string) string {
	return filepath.Join(c.root, bookID, bookID+c.ext)
}

// BookIDFromPath reports which book a markup path belongs to.
func (c *Collection) BookIDFromPath(path string) (string, bool) {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return "", false
	}
	dir, file := filepath.Split(rel)
	dir = filepath.Clean(dir)
	if dir == "." || strings.ContainsRune(dir, filepath.Separator) || !isBookDir(dir) {
		return "", false
	}
	if file != dir+c.ext {
		return "", false
	}
	return dir, true
}

// Books lists the ids of every book with a markup file, ascending. A
// missing root is an empty collection.
func (c *Collection) Books() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("listing collection %s: %w", c.root, err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !isBookDir(e.Name()) {
			continue
		}
		if _, err := os.Stat(c.MarkupPath(e.Name())); err != nil {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// Exists reports whether bookID has a markup file.
func (c *Collection) Exists(bookID string) bool {
	if !isBookDir(bookID) || strings.ContainsAny(bookID, `/\`) {
		return false
	}
	_, err := os.Stat(c.MarkupPath(bookID))
	return err == nil
}

// Load parses the markup of bookID. A book without a markup file is
// ErrNotFound.
func (c *Collection) Load(ctx context.Context, bookID string) (*hocr.Document, error) {
	if !c.Exists(bookID) {
		return nil, apperrors.NotFoundf("book %q not found in collection", bookID)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.MarkupPath(bookID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NotFoundf("book %q not found in collection", bookID)
		}
		return nil, fmt.Errorf("opening markup of %s: %w", bookID, err)
	}
	defer f.Close()
	doc, err := c.parser.Parse(f, bookID)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("book parsed",
		"book_id", bookID,
		"pages", len(doc.Pages),
		"words", doc.WordCount(),
		"dropped_words", doc.DroppedWords,
	)
	return doc, nil
}

func isBookDir(name string) bool {
	return name != "" && !strings.HasPrefix(name, ".")
}
