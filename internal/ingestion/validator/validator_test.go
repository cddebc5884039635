package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/ingestion"
)

func TestValidateReindexRequest(t *testing.T) {
	tests := []struct {
		bookID  string
		wantErr bool
	}{
		{"", false},
		{"cats", false},
		{"moby-dick_1851", false},
		{"../cats", true},
		{"a/b", true},
		{`a\b`, true},
		{".index", true},
		{" cats", true},
		{strings.Repeat("b", maxBookIDLength+1), true},
	}
	for _, tt := range tests {
		err := ValidateReindexRequest(&ingestion.ReindexRequest{BookID: tt.bookID})
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateReindexRequest(%q) = %v", tt.bookID, err)
			continue
		}
		if err == nil {
			continue
		}
		var ve *ValidationError
		if !errors.As(err, &ve) || ve.Fields["book_id"] == "" {
			t.Errorf("expected a book_id field error, got %v", err)
		}
	}
}
