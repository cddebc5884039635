// Package validator checks reindex requests before they are queued and
// returns per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/ingestion"
)

const maxBookIDLength = 255

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateReindexRequest accepts an empty book id, meaning the whole
// collection, or a single directory name that is not hidden.
func ValidateReindexRequest(req *ingestion.ReindexRequest) error {
	errs := make(map[string]string)
	if msg := checkBookID(req.BookID); msg != "" {
		errs["book_id"] = msg
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func checkBookID(id string) string {
	switch {
	case id == "":
		return ""
	case strings.TrimSpace(id) != id:
		return "book id must not have surrounding whitespace"
	case len(id) > maxBookIDLength:
		return fmt.Sprintf("book id must be at most %d characters", maxBookIDLength)
	case strings.ContainsAny(id, `/\`):
		return "book id must not contain path separators"
	case strings.HasPrefix(id, "."):
		return "book id must not start with a dot"
	}
	return ""
}
