// Package ranker scores matching pages with Okapi BM25.
package ranker

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

// PageKey addresses one page of one book.
type PageKey struct {
	BookID string `json:"book_id"`
	Page   int    `json:"page"`
}

func (k PageKey) Less(o PageKey) bool {
	if k.BookID != o.BookID {
		return k.BookID < o.BookID
	}
	return k.Page < o.Page
}

type ScoredPage struct {
	PageKey
	Score float64 `json:"score"`
}

// RankParams carries corpus-wide statistics so that scores computed for
// different books are comparable.
type RankParams struct {
	TotalPages    int64
	AvgPageLength float64
	// PageFreq is the number of pages in the corpus containing each term.
	// Terms missing from the map fall back to the posting list length.
	PageFreq map[string]int
}

// Less orders by descending score, then ascending (book, page).
func Less(a, b ScoredPage) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.PageKey.Less(b.PageKey)
}

// Rank scores the candidate pages of one book. pages restricts scoring to
// the given set; a nil set scores every page that appears in a posting list.
func Rank(
	bookID string,
	postingsPerTerm map[string]index.PostingList,
	pages map[int]struct{},
	params RankParams,
	pageLength func(page int) int,
	limit int,
) []ScoredPage {
	scores := make(map[int]float64)
	for term, postings := range postingsPerTerm {
		pageFreq, ok := params.PageFreq[term]
		if !ok {
			pageFreq = len(postings)
		}
		idf := computeIDF(params.TotalPages, int64(pageFreq))
		for _, posting := range postings {
			if pages != nil {
				if _, keep := pages[posting.Page]; !keep {
					continue
				}
			}
			tfNorm := computeTFNorm(
				float64(posting.Frequency),
				float64(pageLength(posting.Page)),
				params.AvgPageLength,
			)
			scores[posting.Page] += idf * tfNorm
		}
	}
	result := make([]ScoredPage, 0, len(scores))
	for page, score := range scores {
		result = append(result, ScoredPage{
			PageKey: PageKey{BookID: bookID, Page: page},
			Score:   math.Round(score*10000) / 10000,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return Less(result[i], result[j])
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

func computeIDF(totalPages int64, pageFreq int64) float64 {
	numerator := float64(totalPages) - float64(pageFreq)
	denominator := float64(pageFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, pageLength float64, avgPageLength float64) float64 {
	if avgPageLength == 0 {
		return 0
	}
	lengthRatio := pageLength / avgPageLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
