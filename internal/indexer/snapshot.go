package indexer

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/index"
)

// Snapshot is a consistent, read-only view of the store taken at one
// instant. Corpus statistics used for ranking are computed once per
// snapshot.
type Snapshot struct {
	books       map[string]*index.BookIndex
	ids         []string
	totalPages  int64
	totalTokens int64
}

func newSnapshot(books map[string]*index.BookIndex) *Snapshot {
	s := &Snapshot{
		books: books,
		ids:   make([]string, 0, len(books)),
	}
	for id, b := range books {
		s.ids = append(s.ids, id)
		s.totalPages += int64(b.PageCount())
		s.totalTokens += b.TotalTokens()
	}
	sort.Strings(s.ids)
	return s
}

// Book returns the index of bookID as of the snapshot.
func (s *Snapshot) Book(bookID string) (*index.BookIndex, bool) {
	b, ok := s.books[bookID]
	return b, ok
}

// BookIDs returns the ids of every book in the snapshot, ascending.
func (s *Snapshot) BookIDs() []string {
	return s.ids
}

func (s *Snapshot) Len() int {
	return len(s.ids)
}

// TotalPages is the number of indexed pages across all books.
func (s *Snapshot) TotalPages() int64 {
	return s.totalPages
}

// AvgPageLength is the mean token count per page.
func (s *Snapshot) AvgPageLength() float64 {
	if s.totalPages == 0 {
		return 0
	}
	return float64(s.totalTokens) / float64(s.totalPages)
}

// PageFrequency returns how many pages across all books contain term.
func (s *Snapshot) PageFrequency(term string) int {
	n := 0
	for _, b := range s.books {
		n += len(b.Search(term))
	}
	return n
}
