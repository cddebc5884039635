// Package hocr parses hOCR structured-text markup for a scanned book into an
// addressable tree of pages, lines and words with pixel bounding boxes, and
// extracts the book's bibliographic metadata and table-of-contents markers.
//
// The tree is rebuilt on every parse and never mutated afterwards, so a
// Document may be shared between goroutines.
package hocr

import "strings"

// BBox is a rectangle in page pixel coordinates.
type BBox struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Valid reports whether the box is well ordered.
func (b BBox) Valid() bool {
	return b.Left <= b.Right && b.Top <= b.Bottom
}

// Union returns the smallest box containing both b and o.
func (b BBox) Union(o BBox) BBox {
	return BBox{
		Left:   min(b.Left, o.Left),
		Top:    min(b.Top, o.Top),
		Right:  max(b.Right, o.Right),
		Bottom: max(b.Bottom, o.Bottom),
	}
}

// Contains reports whether o lies entirely inside b.
func (b BBox) Contains(o BBox) bool {
	return o.Left >= b.Left && o.Top >= b.Top && o.Right <= b.Right && o.Bottom <= b.Bottom
}

// Word is one recognized word. Text is never empty.
type Word struct {
	Text string `json:"text"`
	BBox BBox   `json:"bbox"`
}

// Line is an ordered run of words.
type Line struct {
	Words []Word `json:"words"`
}

// Text joins the line's words with single spaces.
func (l Line) Text() string {
	parts := make([]string, 0, len(l.Words))
	for _, w := range l.Words {
		parts = append(parts, w.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Page is one scanned page. Number comes from the page_<N> identifier and is
// kept in document order even when the numbers are out of sequence.
type Page struct {
	Number int    `json:"page_number"`
	Lines  []Line `json:"lines"`
	// Width and Height come from the page's own bbox property when present.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Text returns the page text: line texts joined by newlines, empty lines
// skipped.
func (p *Page) Text() string {
	var b strings.Builder
	for _, l := range p.Lines {
		t := l.Text()
		if t == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t)
	}
	return b.String()
}

// WordCount returns the number of words on the page.
func (p *Page) WordCount() int {
	n := 0
	for _, l := range p.Lines {
		n += len(l.Words)
	}
	return n
}

// Metadata holds the recognized bibliographic fields of a book. Every field
// is populated: absent fields carry their configured default.
type Metadata struct {
	Title       string `json:"title"`
	Creator     string `json:"creator"`
	Description string `json:"description"`
	Publisher   string `json:"publisher"`
	Contributor string `json:"contributor"`
	Date        string `json:"date"`
	Language    string `json:"language"`
	PageCount   int    `json:"page_count"`
}

// TOCEntry is one structural marker. Entries form a flat list in document
// order.
type TOCEntry struct {
	Title string `json:"title"`
	Page  int    `json:"page_number"`
	Kind  string `json:"kind"`
}

// Document is the parsed form of one book's markup.
type Document struct {
	BookID   string     `json:"book_id"`
	Pages    []Page     `json:"pages"`
	Metadata Metadata   `json:"metadata"`
	TOC      []TOCEntry `json:"toc"`
	// DroppedWords counts word containers skipped because their bbox was
	// missing or malformed.
	DroppedWords int `json:"dropped_words"`
}

// Page returns the page with the given number.
func (d *Document) Page(number int) (*Page, bool) {
	for i := range d.Pages {
		if d.Pages[i].Number == number {
			return &d.Pages[i], true
		}
	}
	return nil, false
}

// WordCount returns the number of words across all pages.
func (d *Document) WordCount() int {
	n := 0
	for i := range d.Pages {
		n += d.Pages[i].WordCount()
	}
	return n
}
