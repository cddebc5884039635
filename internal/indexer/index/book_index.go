// Package index holds the in-memory inverted index of a single book. A
// BookIndex is built once and never mutated, so the store can publish it to
// readers by swapping a pointer.
package index

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/tokenizer"
)

type BookIndex struct {
	bookID      string
	postings    map[string]PostingList
	pages       map[int]StoredPage
	order       []int
	totalTokens int64
}

// Build tokenizes every page and returns the book's index. Page numbers must
// be unique.
func Build(bookID string, pages []PageText) (*BookIndex, error) {
	b := &BookIndex{
		bookID:   bookID,
		postings: make(map[string]PostingList),
		pages:    make(map[int]StoredPage, len(pages)),
		order:    make([]int, 0, len(pages)),
	}
	for _, page := range pages {
		if _, dup := b.pages[page.Number]; dup {
			return nil, fmt.Errorf("book %s: duplicate page %d", bookID, page.Number)
		}
		tokens := tokenizer.Tokenize(page.Text)
		termData := make(map[string]*Posting)
		for _, token := range tokens {
			p, exists := termData[token.Term]
			if !exists {
				p = &Posting{
					Page:      page.Number,
					Positions: make([]int, 0, 4),
				}
				termData[token.Term] = p
			}
			p.Frequency++
			p.Positions = append(p.Positions, token.Position)
		}
		for term, posting := range termData {
			b.postings[term] = append(b.postings[term], *posting)
		}
		b.pages[page.Number] = StoredPage{
			Number: page.Number,
			Text:   page.Text,
			Length: len(tokens),
		}
		b.order = append(b.order, page.Number)
		b.totalTokens += int64(len(tokens))
	}
	for term := range b.postings {
		sortPostings(b.postings[term])
	}
	return b, nil
}

// FromParts reassembles a BookIndex from its persisted terms and pages.
func FromParts(bookID string, entries []TermEntry, pages []StoredPage) (*BookIndex, error) {
	b := &BookIndex{
		bookID:   bookID,
		postings: make(map[string]PostingList, len(entries)),
		pages:    make(map[int]StoredPage, len(pages)),
		order:    make([]int, 0, len(pages)),
	}
	for _, p := range pages {
		if _, dup := b.pages[p.Number]; dup {
			return nil, fmt.Errorf("book %s: duplicate page %d", bookID, p.Number)
		}
		b.pages[p.Number] = p
		b.order = append(b.order, p.Number)
		b.totalTokens += int64(p.Length)
	}
	for _, e := range entries {
		for _, p := range e.Postings {
			if _, ok := b.pages[p.Page]; !ok {
				return nil, fmt.Errorf("book %s: term %q references unknown page %d", bookID, e.Term, p.Page)
			}
		}
		b.postings[e.Term] = e.Postings
	}
	return b, nil
}

func (b *BookIndex) BookID() string {
	return b.bookID
}

// Search returns the postings for an already normalised term, ordered by
// page number. The returned slice must not be modified.
func (b *BookIndex) Search(term string) PostingList {
	return b.postings[term]
}

// PageText returns the stored text of a page.
func (b *BookIndex) PageText(number int) (string, bool) {
	p, ok := b.pages[number]
	return p.Text, ok
}

// PageLength returns the token count of a page.
func (b *BookIndex) PageLength(number int) int {
	return b.pages[number].Length
}

func (b *BookIndex) PageCount() int {
	return len(b.order)
}

func (b *BookIndex) TotalTokens() int64 {
	return b.totalTokens
}

// Terms returns every term with its postings, sorted by term.
func (b *BookIndex) Terms() []TermEntry {
	entries := make([]TermEntry, 0, len(b.postings))
	for term, postings := range b.postings {
		entries = append(entries, TermEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Pages returns the stored pages in their original order.
func (b *BookIndex) Pages() []StoredPage {
	out := make([]StoredPage, 0, len(b.order))
	for _, n := range b.order {
		out = append(out, b.pages[n])
	}
	return out
}

func sortPostings(p PostingList) {
	sort.Slice(p, func(i, j int) bool {
		return p[i].Page < p[j].Page
	})
}
