// Package highlight maps the highlighted tokens of a search hit back to word
// bounding boxes on the scanned page and merges adjacent boxes into
// highlight regions.
package highlight

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/hocr"
	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/metrics"
)

// Region is one highlight rectangle on a page.
type Region struct {
	Page int `json:"page_number"`
	hocr.BBox
}

// Target names the page a hit landed on and its highlighted tokens in
// snippet order.
type Target struct {
	BookID string
	Page   int
	Tokens []string
}

type Resolver struct {
	cache   *PageCache
	metrics *metrics.Metrics
}

func NewResolver(cache *PageCache, m *metrics.Metrics) *Resolver {
	return &Resolver{cache: cache, metrics: m}
}

// Resolve locates every token among the page's words and returns the merged
// regions. A book or page that no longer exists is ErrStaleHit. Tokens that
// match no word contribute nothing.
func (r *Resolver) Resolve(ctx context.Context, t Target) ([]Region, error) {
	if len(t.Tokens) == 0 {
		return []Region{}, nil
	}
	page, ok, err := r.cache.Page(ctx, t.BookID, t.Page)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, r.stale(t, err.Error())
		}
		return nil, err
	}
	if !ok {
		return nil, r.stale(t, "page no longer exists")
	}
	regions := Regions(page, t.Tokens)
	if r.metrics != nil {
		r.metrics.HighlightRegions.Add(float64(len(regions)))
	}
	return regions, nil
}

func (r *Resolver) stale(t Target, reason string) error {
	if r.metrics != nil {
		r.metrics.StaleHitsTotal.Inc()
	}
	return apperrors.Newf(apperrors.ErrStaleHit, http.StatusConflict,
		"book %s page %d: %s", t.BookID, t.Page, reason)
}

type wordPos struct {
	line, word int
}

// Regions computes highlight regions for tokens on page.
//
// Every word whose text contains a token, compared case-insensitively, is a
// candidate; candidates are discovered in token order and then document
// order, and a word matched by several tokens is used once. A candidate
// that sits next to an already highlighted word on the same line joins that
// word's region, so the boxes of consecutive matched words merge into one
// rectangle. Candidates on different lines never merge. Regions are
// returned in the order they were first discovered.
func Regions(page *hocr.Page, tokens []string) []Region {
	type region struct {
		order int
		box   hocr.BBox
		words []wordPos
		dead  bool
	}
	var regions []*region
	owner := make(map[wordPos]*region)

	for _, tok := range tokens {
		needle := strings.ToLower(tok)
		if needle == "" {
			continue
		}
		for li, line := range page.Lines {
			for wi, w := range line.Words {
				pos := wordPos{li, wi}
				if _, done := owner[pos]; done {
					continue
				}
				if !strings.Contains(strings.ToLower(w.Text), needle) {
					continue
				}
				left := owner[wordPos{li, wi - 1}]
				right := owner[wordPos{li, wi + 1}]
				var target, absorbed *region
				switch {
				case left != nil && right != nil && left != right:
					target, absorbed = left, right
					if right.order < left.order {
						target, absorbed = right, left
					}
				case left != nil:
					target = left
				case right != nil:
					target = right
				default:
					target = &region{order: len(regions), box: w.BBox}
					regions = append(regions, target)
				}
				target.box = target.box.Union(w.BBox)
				target.words = append(target.words, pos)
				owner[pos] = target
				if absorbed != nil {
					// The merged region keeps the slot of whichever was found first.
					target.box = target.box.Union(absorbed.box)
					for _, p := range absorbed.words {
						owner[p] = target
					}
					target.words = append(target.words, absorbed.words...)
					absorbed.dead = true
				}
			}
		}
	}

	out := make([]Region, 0, len(regions))
	for _, reg := range regions {
		if reg.dead {
			continue
		}
		out = append(out, Region{Page: page.Number, BBox: reg.box})
	}
	return out
}
