package hocr

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
)

const pageIDPrefix = "page_"

// Classes lists the class values that give a container its role.
type Classes struct {
	Page  string
	Lines []string
	Word  string
	// TOC maps a structural marker class to the kind reported on TOCEntry.
	TOC map[string]string
}

// DefaultClasses returns the hOCR class names produced by common OCR
// engines.
func DefaultClasses() Classes {
	return Classes{
		Page:  "ocr_page",
		Lines: []string{"ocr_line", "ocr_caption", "ocr_header", "ocr_textfloat"},
		Word:  "ocrx_word",
		TOC: map[string]string{
			"ocr_title":      "title",
			"ocr_chapter":    "chapter",
			"ocr_section":    "section",
			"ocr_subsection": "subsection",
		},
	}
}

// Options configures a Parser.
type Options struct {
	Classes  Classes
	Metadata MetadataSpec
	Logger   *slog.Logger
}

// DefaultOptions returns the standard hOCR classes and metadata fields.
func DefaultOptions() Options {
	return Options{
		Classes:  DefaultClasses(),
		Metadata: DefaultMetadataSpec(),
	}
}

// Parser turns hOCR markup into a Document. It holds no mutable state and is
// safe for concurrent use.
type Parser struct {
	classes  Classes
	lines    map[string]struct{}
	metadata MetadataSpec
	logger   *slog.Logger
}

// NewParser validates opts and returns a Parser.
func NewParser(opts Options) (*Parser, error) {
	if opts.Classes.Page == "" || opts.Classes.Word == "" || len(opts.Classes.Lines) == 0 {
		return nil, fmt.Errorf("page, line and word classes must all be set")
	}
	if err := opts.Metadata.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "hocr-parser")
	}
	lines := make(map[string]struct{}, len(opts.Classes.Lines))
	for _, c := range opts.Classes.Lines {
		lines[c] = struct{}{}
	}
	return &Parser{
		classes:  opts.Classes,
		lines:    lines,
		metadata: opts.Metadata,
		logger:   logger,
	}, nil
}

// Parse reads one book's markup. A missing or unparsable page identifier,
// duplicate page numbers or a document without any page container fail with
// ErrMalformedMarkup. A word whose bbox cannot be parsed is dropped and
// logged; parsing continues.
func (p *Parser) Parse(r io.Reader, bookID string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrMalformedMarkup, http.StatusUnprocessableEntity,
			"book %s: %v", bookID, err)
	}
	w := &walker{
		parser: p,
		doc:    &Document{BookID: bookID, Pages: make([]Page, 0, 64)},
		seen:   make(map[int]struct{}),
		log:    p.logger.With("book_id", bookID),
	}
	w.visit(root)
	if w.err != nil {
		return nil, w.err
	}
	if len(w.doc.Pages) == 0 {
		return nil, apperrors.Newf(apperrors.ErrMalformedMarkup, http.StatusUnprocessableEntity,
			"book %s: no %s container found", bookID, p.classes.Page)
	}
	w.doc.Metadata = p.metadata.build(bookID, w.meta, len(w.doc.Pages))
	if w.doc.DroppedWords > 0 {
		w.log.Warn("words dropped during parse", "dropped", w.doc.DroppedWords)
	}
	return w.doc, nil
}

type walker struct {
	parser *Parser
	doc    *Document
	page   *Page
	line   *Line
	orphan *Line
	seen   map[int]struct{}
	meta   []metaPair
	// pendingTOC holds indexes of TOC entries found outside any page; they
	// take the number of the next page that opens.
	pendingTOC []int
	log        *slog.Logger
	err        error
}

func (w *walker) visit(n *html.Node) {
	if w.err != nil {
		return
	}
	if n.Type == html.ElementNode {
		if n.DataAtom == atom.Meta {
			if name := attr(n, "name"); name != "" {
				w.meta = append(w.meta, metaPair{name: name, content: attr(n, "content")})
			}
		}
		classes := strings.Fields(attr(n, "class"))
		if kind, ok := w.tocKind(classes); ok {
			w.addTOCEntry(n, kind)
		}
		switch {
		case hasClass(classes, w.parser.classes.Page):
			w.visitPage(n)
			return
		case w.page != nil && w.isLine(classes):
			w.visitLine(n)
			return
		case w.page != nil && hasClass(classes, w.parser.classes.Word):
			w.addWord(n)
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.visit(c)
	}
}

func (w *walker) visitPage(n *html.Node) {
	if w.page != nil {
		w.err = apperrors.Newf(apperrors.ErrMalformedMarkup, http.StatusUnprocessableEntity,
			"book %s: nested page container inside page %d", w.doc.BookID, w.page.Number)
		return
	}
	number, err := parsePageID(attr(n, "id"))
	if err != nil {
		w.err = apperrors.Newf(apperrors.ErrMalformedMarkup, http.StatusUnprocessableEntity,
			"book %s: %v", w.doc.BookID, err)
		return
	}
	if _, dup := w.seen[number]; dup {
		w.err = apperrors.Newf(apperrors.ErrMalformedMarkup, http.StatusUnprocessableEntity,
			"book %s: duplicate page %d", w.doc.BookID, number)
		return
	}
	w.seen[number] = struct{}{}

	page := Page{Number: number}
	if box, err := ParseBBox(attr(n, "title")); err == nil {
		page.Width = box.Right - box.Left
		page.Height = box.Bottom - box.Top
	}
	w.page = &page
	for _, idx := range w.pendingTOC {
		w.doc.TOC[idx].Page = number
	}
	w.pendingTOC = w.pendingTOC[:0]

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.visit(c)
	}
	w.flushOrphans()
	w.doc.Pages = append(w.doc.Pages, page)
	w.page = nil
}

func (w *walker) visitLine(n *html.Node) {
	w.flushOrphans()
	outer := w.line
	line := Line{}
	w.line = &line
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.visit(c)
	}
	w.line = outer
	if len(line.Words) > 0 {
		w.page.Lines = append(w.page.Lines, line)
	}
}

func (w *walker) addWord(n *html.Node) {
	text := cleanText(flattenText(n))
	if text == "" {
		return
	}
	title := attr(n, "title")
	box, err := ParseBBox(title)
	if err != nil {
		w.doc.DroppedWords++
		w.log.Warn("dropping word with malformed bbox",
			"page", w.page.Number,
			"word", text,
			"title", title,
			"error", err,
		)
		return
	}
	word := Word{Text: text, BBox: box}
	if w.line != nil {
		w.line.Words = append(w.line.Words, word)
		return
	}
	if w.orphan == nil {
		w.orphan = &Line{}
	}
	w.orphan.Words = append(w.orphan.Words, word)
}

// flushOrphans closes the implicit line collecting words that sit directly
// under a page or block without a line container.
func (w *walker) flushOrphans() {
	if w.orphan == nil {
		return
	}
	if len(w.orphan.Words) > 0 {
		w.page.Lines = append(w.page.Lines, *w.orphan)
	}
	w.orphan = nil
}

func (w *walker) addTOCEntry(n *html.Node, kind string) {
	title := strings.Join(strings.Fields(cleanText(flattenText(n))), " ")
	if title == "" {
		return
	}
	entry := TOCEntry{Title: title, Kind: kind}
	if w.page != nil {
		entry.Page = w.page.Number
	} else {
		w.pendingTOC = append(w.pendingTOC, len(w.doc.TOC))
	}
	w.doc.TOC = append(w.doc.TOC, entry)
}

func (w *walker) tocKind(classes []string) (string, bool) {
	for _, c := range classes {
		if kind, ok := w.parser.classes.TOC[c]; ok {
			return kind, true
		}
	}
	return "", false
}

func (w *walker) isLine(classes []string) bool {
	for _, c := range classes {
		if _, ok := w.parser.lines[c]; ok {
			return true
		}
	}
	return false
}

// parsePageID reads N from an identifier of the literal form page_<N>.
func parsePageID(id string) (int, error) {
	if !strings.HasPrefix(id, pageIDPrefix) {
		return 0, fmt.Errorf("page container id %q does not start with %q", id, pageIDPrefix)
	}
	n, err := strconv.ParseUint(id[len(pageIDPrefix):], 10, 31)
	if err != nil {
		return 0, fmt.Errorf("page container id %q: %w", id, err)
	}
	return int(n), nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(classes []string, want string) bool {
	for _, c := range classes {
		if c == want {
			return true
		}
	}
	return false
}

// flattenText concatenates every descendant text node of n.
func flattenText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// cleanText trims s and removes private-use runes, which are reserved for
// snippet highlight markers.
func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if strings.IndexFunc(s, isPrivateUse) < 0 {
		return s
	}
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if isPrivateUse(r) {
			return -1
		}
		return r
	}, s))
}

func isPrivateUse(r rune) bool {
	return unicode.In(r, unicode.Co)
}
