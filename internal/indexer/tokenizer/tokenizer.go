// Package tokenizer provides text tokenisation for the page index and the
// snippet highlighter. It splits on non-alphanumeric boundaries, lower-cases
// each word and applies a simple suffix-based stemmer. Every token keeps the
// byte span of its surface form so matches can be wrapped in place.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token represents a single normalised term, its ordinal position and the
// byte span [Start, End) of the original word in the tokenised text.
type Token struct {
	Term     string
	Position int
	Start    int
	End      int
}

// Tokenize breaks text into a slice of stemmed, lowercased Tokens.
func Tokenize(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	start := -1
	pos := 0
	emit := func(end int) {
		term := Normalize(text[start:end])
		if term != "" {
			tokens = append(tokens, Token{
				Term:     term,
				Position: pos,
				Start:    start,
				End:      end,
			})
			pos++
		}
		start = -1
	}
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			emit(i)
		}
	}
	if start >= 0 {
		emit(len(text))
	}
	return tokens
}

// Terms returns the distinct normalised terms of text in first-seen order.
func Terms(text string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, tok := range Tokenize(text) {
		if _, ok := seen[tok.Term]; ok {
			continue
		}
		seen[tok.Term] = struct{}{}
		out = append(out, tok.Term)
	}
	return out
}

// Normalize lower-cases and stems a single word.
func Normalize(word string) string {
	if word == "" {
		return ""
	}
	return stem(strings.ToLower(word))
}

func isWordRune(r rune) bool {
	return r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

var suffixes = []struct {
	suffix      string
	replacement string
	minLen      int
}{
	{"ational", "ate", 2},
	{"tional", "tion", 2},
	{"encies", "ence", 2},
	{"ances", "ance", 2},
	{"ments", "ment", 2},
	{"izing", "ize", 2},
	{"ating", "ate", 2},
	{"iness", "y", 2},
	{"ously", "ous", 2},
	{"ively", "ive", 2},
	{"eness", "ene", 2},
	{"tion", "t", 3},
	{"sion", "s", 3},
	{"ying", "y", 2},
	{"ling", "l", 3},
	{"ies", "y", 2},
	{"ing", "", 3},
	{"ers", "er", 2},
	{"est", "", 3},
	{"ful", "", 3},
	{"ous", "", 3},
	{"ess", "", 3},
	{"ble", "", 3},
	{"ed", "", 3},
	{"er", "", 3},
	{"ly", "", 3},
	{"es", "", 3},
	{"ss", "ss", 2},
	{"s", "", 3},
}

// stem applies a simple suffix-stripping stemmer to the given word.
func stem(word string) string {
	for _, rule := range suffixes {
		if strings.HasSuffix(word, rule.suffix) {
			newWord := word[:len(word)-len(rule.suffix)] + rule.replacement
			if len(newWord) >= rule.minLen {
				return newWord
			}
		}
	}
	return word
}
