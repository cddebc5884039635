package hocr

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
)

const sampleBook = `<!DOCTYPE html>
<html>
<head>
  <title></title>
  <meta name="DC.title" content="A Study of Cats">
  <meta name="DC.creator" content="Jane Doe">
  <meta name="DC.creator" content="Second Author">
  <meta name="DC.language" content="en">
</head>
<body>
  <h1 class="ocr_title">A Study of Cats</h1>
  <div class="ocr_page" id="page_3" title="image 0003.jpg; bbox 0 0 800 1200">
    <div class="ocr_carea">
      <p class="ocr_par">
        <span class="ocr_line" title="bbox 10 20 100 40">
          <span class="ocrx_word" title="bbox 10 20 30 40; x_wconf 91">the</span>
          <span class="ocrx_word" title="bbox 31 20 55 40">cat</span>
          <span class="ocrx_word" title="bbox 57 20 80 40"><strong>sat</strong></span>
        </span>
        <span class="ocr_line" title="bbox 10 50 100 70">
          <span class="ocrx_word" title="bbox 10 50 40 70">on</span>
          <span class="ocrx_word" title="bbox nope">the</span>
          <span class="ocrx_word" title="bbox 60 50 90 70">   </span>
          <span class="ocrx_word" title="bbox 60 50 95 70">mat.</span>
        </span>
      </p>
    </div>
    <h2 class="ocr_chapter">Chapter <em>One</em></h2>
  </div>
  <div class="ocr_page" id="page_1" title="bbox 0 0 800 1200">
    <span class="ocr_line"><span class="ocrx_word" title="bbox 1 2 3 4">preface</span></span>
    <span class="ocr_section">Notes</span>
  </div>
</body>
</html>`

func newTestParser(t *testing.T) *Parser {
	t.Helper()
	opts := DefaultOptions()
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	p, err := NewParser(opts)
	if err != nil {
		t.Fatalf("NewParser: %v", err)
	}
	return p
}

func TestParseStructure(t *testing.T) {
	doc, err := newTestParser(t).Parse(strings.NewReader(sampleBook), "cats")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Number != 3 || doc.Pages[1].Number != 1 {
		t.Errorf("pages must keep document order, got %d, %d", doc.Pages[0].Number, doc.Pages[1].Number)
	}
	p3 := doc.Pages[0]
	if p3.Width != 800 || p3.Height != 1200 {
		t.Errorf("page dimensions = %dx%d", p3.Width, p3.Height)
	}
	if len(p3.Lines) != 2 {
		t.Fatalf("expected 2 lines on page 3, got %d", len(p3.Lines))
	}
	first := p3.Lines[0].Words
	if len(first) != 3 || first[2].Text != "sat" {
		t.Fatalf("unexpected first line: %+v", first)
	}
	if first[0].BBox != (BBox{10, 20, 30, 40}) {
		t.Errorf("bbox = %+v", first[0].BBox)
	}
	if got := p3.Text(); got != "the cat sat\non mat." {
		t.Errorf("page text = %q", got)
	}
}

func TestParseDropsMalformedWords(t *testing.T) {
	doc, err := newTestParser(t).Parse(strings.NewReader(sampleBook), "cats")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// 8 word containers: one has a bad bbox, one is whitespace only.
	if doc.DroppedWords != 1 {
		t.Errorf("DroppedWords = %d, want 1", doc.DroppedWords)
	}
	if doc.WordCount() != 6 {
		t.Errorf("WordCount = %d, want 6", doc.WordCount())
	}
}

func TestParseMetadata(t *testing.T) {
	doc, err := newTestParser(t).Parse(strings.NewReader(sampleBook), "cats")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	md := doc.Metadata
	if md.Title != "A Study of Cats" {
		t.Errorf("title = %q", md.Title)
	}
	if md.Creator != "Jane Doe" {
		t.Errorf("creator = %q, first match must win", md.Creator)
	}
	if md.Language != "en" || md.Publisher != "" {
		t.Errorf("language=%q publisher=%q", md.Language, md.Publisher)
	}
	if md.PageCount != 2 {
		t.Errorf("page count = %d", md.PageCount)
	}
}

func TestParseMetadataTitleDefaultsToBookID(t *testing.T) {
	markup := `<html><body><div class="ocr_page" id="page_1"></div></body></html>`
	doc, err := newTestParser(t).Parse(strings.NewReader(markup), "untitled-book")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Metadata.Title != "untitled-book" {
		t.Errorf("title = %q", doc.Metadata.Title)
	}
}

func TestParseTOC(t *testing.T) {
	doc, err := newTestParser(t).Parse(strings.NewReader(sampleBook), "cats")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []TOCEntry{
		{Title: "A Study of Cats", Page: 3, Kind: "title"},
		{Title: "Chapter One", Page: 3, Kind: "chapter"},
		{Title: "Notes", Page: 1, Kind: "section"},
	}
	if len(doc.TOC) != len(want) {
		t.Fatalf("toc = %+v", doc.TOC)
	}
	for i := range want {
		if doc.TOC[i] != want[i] {
			t.Errorf("toc[%d] = %+v, want %+v", i, doc.TOC[i], want[i])
		}
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name   string
		markup string
	}{
		{"no pages", `<html><body><p>nothing</p></body></html>`},
		{"missing id", `<div class="ocr_page"></div>`},
		{"bad id", `<div class="ocr_page" id="page_x"></div>`},
		{"negative id", `<div class="ocr_page" id="page_-1"></div>`},
		{"wrong prefix", `<div class="ocr_page" id="p_1"></div>`},
		{"duplicate", `<div class="ocr_page" id="page_1"></div><div class="ocr_page" id="page_1"></div>`},
	}
	p := newTestParser(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Parse(strings.NewReader(tt.markup), "b")
			if !errors.Is(err, apperrors.ErrMalformedMarkup) {
				t.Fatalf("expected ErrMalformedMarkup, got %v", err)
			}
		})
	}
}

func TestParseStripsPrivateUseRunes(t *testing.T) {
	markup := "<div class=\"ocr_page\" id=\"page_1\"><span class=\"ocr_line\">" +
		"<span class=\"ocrx_word\" title=\"bbox 0 0 5 5\">c\ue000at\ue001</span></span></div>"
	doc, err := newTestParser(t).Parse(strings.NewReader(markup), "b")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := doc.Pages[0].Lines[0].Words[0].Text; got != "cat" {
		t.Errorf("word = %q", got)
	}
}

func TestParseOrphanWordsFormImplicitLine(t *testing.T) {
	markup := `<div class="ocr_page" id="page_2"><p class="ocr_par">` +
		`<span class="ocrx_word" title="bbox 0 0 5 5">loose</span>` +
		`<span class="ocrx_word" title="bbox 6 0 9 5">words</span></p></div>`
	doc, err := newTestParser(t).Parse(strings.NewReader(markup), "b")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Pages[0].Lines) != 1 || len(doc.Pages[0].Lines[0].Words) != 2 {
		t.Fatalf("lines = %+v", doc.Pages[0].Lines)
	}
}

func TestNewParserRejectsUnknownField(t *testing.T) {
	opts := DefaultOptions()
	opts.Metadata.Fields = append(opts.Metadata.Fields, opts.Metadata.Fields[0])
	opts.Metadata.Fields[len(opts.Metadata.Fields)-1].Name = "isbn"
	if _, err := NewParser(opts); err == nil {
		t.Fatal("expected unsupported field error")
	}
}

func TestParseBBox(t *testing.T) {
	tests := []struct {
		title   string
		want    BBox
		wantErr bool
	}{
		{"bbox 1 2 3 4", BBox{1, 2, 3, 4}, false},
		{"image x.jpg; bbox 0 0 10 20; ppageno 0", BBox{0, 0, 10, 20}, false},
		{"bbox 1 2 3", BBox{}, true},
		{"bbox a b c d", BBox{}, true},
		{"bbox 5 2 3 4", BBox{}, true},
		{"x_wconf 90", BBox{}, true},
		{"", BBox{}, true},
	}
	for _, tt := range tests {
		got, err := ParseBBox(tt.title)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBBox(%q) err = %v", tt.title, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBBox(%q) = %+v, want %+v", tt.title, got, tt.want)
		}
	}
}

func TestBBoxUnionContains(t *testing.T) {
	a := BBox{10, 20, 30, 40}
	b := BBox{31, 20, 55, 40}
	u := a.Union(b)
	if u != (BBox{10, 20, 55, 40}) {
		t.Fatalf("union = %+v", u)
	}
	if !u.Contains(a) || !u.Contains(b) {
		t.Error("union must contain both inputs")
	}
}
