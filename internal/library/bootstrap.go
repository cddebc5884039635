package library

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/config"
)

// OptionsFromConfig opens the collection and index store named by cfg. The
// caller owns the returned Store and closes it; optional integrations are
// left for the caller to set.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	collection, err := NewCollection(cfg.Library)
	if err != nil {
		return Options{}, err
	}
	store, err := indexer.Open(cfg.IndexDir())
	if err != nil {
		return Options{}, fmt.Errorf("opening index at %s: %w", cfg.IndexDir(), err)
	}
	return Options{
		Collection:    collection,
		Store:         store,
		Search:        cfg.Search,
		Index:         cfg.Index,
		PageCacheSize: cfg.Highlight.PageCacheSize,
	}, nil
}
