// Package parser turns a raw query string into a QueryPlan: the normalised
// terms to match, the boolean mode joining them, and the terms to exclude.
package parser

import (
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
)

type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

func (t QueryType) String() string {
	if t == QueryOR {
		return "OR"
	}
	return "AND"
}

type QueryPlan struct {
	Terms        []string
	Type         QueryType
	ExcludeTerms []string
	RawQuery     string
}

// Parse builds a plan from query. Space-separated words are ANDed unless an
// OR keyword appears; NOT excludes the word that follows it. A word that
// tokenizes into several terms ("cat's") contributes all of them. A query
// without any required term is ErrInvalidQuery.
func Parse(query string) (*QueryPlan, error) {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Type:         QueryAND,
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "query is empty")
	}
	seen := make(map[string]struct{})
	words := strings.Fields(query)
	excludeNext := false
	for i := 0; i < len(words); i++ {
		switch words[i] {
		case "AND":
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		tokens := tokenizer.Tokenize(words[i])
		if len(tokens) == 0 {
			continue
		}
		for _, tok := range tokens {
			if excludeNext {
				plan.ExcludeTerms = append(plan.ExcludeTerms, tok.Term)
				continue
			}
			if _, dup := seen[tok.Term]; dup {
				continue
			}
			seen[tok.Term] = struct{}{}
			plan.Terms = append(plan.Terms, tok.Term)
		}
		excludeNext = false
	}
	if len(plan.Terms) == 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest,
			"query %q has no searchable term", query)
	}
	return plan, nil
}
