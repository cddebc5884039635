// Package snippet builds highlighted text fragments around query matches
// and scans highlighted tokens back out of them.
//
// Matches are wrapped in a pair of Unicode private-use runes. The markup
// parser strips every private-use rune from word text, so the markers can
// never occur in indexed page text and token extraction is unambiguous.
package snippet

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/tokenizer"
)

const (
	Open  = '\uE000'
	Close = '\uE001'

	// Separator joins fragments taken from different parts of a page.
	Separator = "..."
)

// Options controls fragment construction.
type Options struct {
	// Surround is the number of characters of context kept on each side of
	// a match before widening to word boundaries.
	Surround int
	// MaxFragments keeps only the best-scoring fragments. Zero keeps all.
	MaxFragments int
}

func DefaultOptions() Options {
	return Options{Surround: 40}
}

type fragment struct {
	start, end int
	matches    []tokenizer.Token
}

func (f fragment) score() int {
	distinct := make(map[string]struct{}, len(f.matches))
	for _, m := range f.matches {
		distinct[m.Term] = struct{}{}
	}
	return len(distinct)*10 + len(f.matches)
}

// Highlight returns the fragments of text that contain any of terms, with
// each matching word wrapped in Open and Close. terms must already be
// normalised with the tokenizer. It returns "" when nothing matches.
func Highlight(text string, terms []string, opts Options) string {
	if len(terms) == 0 || text == "" {
		return ""
	}
	want := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		want[t] = struct{}{}
	}
	var matches []tokenizer.Token
	for _, tok := range tokenizer.Tokenize(text) {
		if _, ok := want[tok.Term]; ok {
			matches = append(matches, tok)
		}
	}
	if len(matches) == 0 {
		return ""
	}

	frags := buildFragments(text, matches, opts.Surround)
	if opts.MaxFragments > 0 && len(frags) > opts.MaxFragments {
		sort.SliceStable(frags, func(i, j int) bool {
			return frags[i].score() > frags[j].score()
		})
		frags = frags[:opts.MaxFragments]
		sort.Slice(frags, func(i, j int) bool {
			return frags[i].start < frags[j].start
		})
	}

	var b strings.Builder
	b.Grow(len(text) + len(matches)*2*utf8.UTFMax)
	for i, f := range frags {
		if i > 0 {
			b.WriteString(Separator)
		}
		b.WriteString(render(text, f))
	}
	return b.String()
}

// buildFragments opens a window around every match and merges windows that
// touch or overlap.
func buildFragments(text string, matches []tokenizer.Token, surround int) []fragment {
	frags := make([]fragment, 0, len(matches))
	for _, m := range matches {
		start := widenLeft(text, backRunes(text, m.Start, surround))
		end := widenRight(text, forwardRunes(text, m.End, surround))
		if n := len(frags); n > 0 && start <= frags[n-1].end {
			last := &frags[n-1]
			if end > last.end {
				last.end = end
			}
			last.matches = append(last.matches, m)
			continue
		}
		frags = append(frags, fragment{start: start, end: end, matches: []tokenizer.Token{m}})
	}
	return frags
}

func render(text string, f fragment) string {
	var b strings.Builder
	pos := f.start
	for _, m := range f.matches {
		b.WriteString(text[pos:m.Start])
		b.WriteRune(Open)
		b.WriteString(text[m.Start:m.End])
		b.WriteRune(Close)
		pos = m.End
	}
	b.WriteString(text[pos:f.end])
	return strings.TrimSpace(b.String())
}

func backRunes(text string, i, n int) int {
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(text[:i])
		i -= size
	}
	return i
}

func forwardRunes(text string, i, n int) int {
	for ; n > 0 && i < len(text); n-- {
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return i
}

// widenLeft moves i back to the start of the word it falls inside.
func widenLeft(text string, i int) int {
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:i])
		if !isWordRune(r) {
			break
		}
		i -= size
	}
	return i
}

// widenRight moves i forward to the end of the word it falls inside.
func widenRight(text string, i int) int {
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !isWordRune(r) {
			break
		}
		i += size
	}
	return i
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

// ExtractTokens returns, in order of appearance, the text between each Open
// and the following Close marker. An Open without a matching Close and
// empty pairs are ignored; a second Open before a Close restarts the token.
func ExtractTokens(snippet string) []string {
	tokens := make([]string, 0)
	start := -1
	for i, r := range snippet {
		switch r {
		case Open:
			start = i + utf8.RuneLen(Open)
		case Close:
			if start >= 0 && i > start {
				tokens = append(tokens, snippet[start:i])
			}
			start = -1
		}
	}
	return tokens
}

// Strip removes the highlight markers from snippet.
func Strip(snippet string) string {
	return strings.Map(func(r rune) rune {
		if r == Open || r == Close {
			return -1
		}
		return r
	}, snippet)
}
