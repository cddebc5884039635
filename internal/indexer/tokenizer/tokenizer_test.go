package tokenizer

import "testing"

func TestTokenizeOffsets(t *testing.T) {
	text := "The cat, sat!"
	tokens := Tokenize(text)
	want := []struct {
		term  string
		start int
		end   int
	}{
		{"the", 0, 3},
		{"cat", 4, 7},
		{"sat", 9, 12},
	}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens: %+v", len(tokens), tokens)
	}
	for i, w := range want {
		tok := tokens[i]
		if tok.Term != w.term || tok.Start != w.start || tok.End != w.end || tok.Position != i {
			t.Errorf("token %d = %+v, want %+v", i, tok, w)
		}
		if got := text[tok.Start:tok.End]; Normalize(got) != tok.Term {
			t.Errorf("span %q does not normalise to %q", got, tok.Term)
		}
	}
}

func TestTokenizeKeepsShortAndStopWords(t *testing.T) {
	tokens := Tokenize("a is the")
	if len(tokens) != 3 {
		t.Fatalf("expected every word to be kept, got %+v", tokens)
	}
}

func TestTokenizeUnicode(t *testing.T) {
	text := "Größe über café"
	tokens := Tokenize(text)
	if len(tokens) != 3 {
		t.Fatalf("got %+v", tokens)
	}
	if got := text[tokens[2].Start:tokens[2].End]; got != "café" {
		t.Errorf("third span = %q", got)
	}
	if tokens[0].Term != "größe" {
		t.Errorf("first term = %q", tokens[0].Term)
	}
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"cats":      "cat",
		"indexing":  "index",
		"libraries": "library",
		"class":     "class",
		"was":       "was",
		"national":  "nate",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTerms(t *testing.T) {
	got := Terms("Cat cats CAT dog")
	if len(got) != 2 || got[0] != "cat" || got[1] != "dog" {
		t.Fatalf("Terms = %v", got)
	}
}
