package snippet

import (
	"reflect"
	"strings"
	"testing"
)

const (
	o = string(Open)
	c = string(Close)
)

func TestHighlightWholePage(t *testing.T) {
	got := Highlight("the cat sat\non mat.", []string{"the", "cat"}, Options{Surround: 40})
	want := o + "the" + c + " " + o + "cat" + c + " sat\non mat."
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestHighlightKeepsSurfaceForm(t *testing.T) {
	got := Highlight("Cats, CATS and dogs", []string{"cat"}, Options{Surround: 100})
	if got != o+"Cats"+c+", "+o+"CATS"+c+" and dogs" {
		t.Errorf("got %q", got)
	}
}

func TestHighlightFragments(t *testing.T) {
	text := "alpha " + strings.Repeat("filler ", 20) + "omega"
	got := Highlight(text, []string{"alpha", "omega"}, Options{Surround: 5})
	frags := strings.Split(got, Separator)
	if len(frags) != 2 {
		t.Fatalf("expected 2 fragments, got %q", got)
	}
	if frags[0] != o+"alpha"+c+" filler" {
		t.Errorf("first fragment = %q", frags[0])
	}
	if frags[1] != "filler "+o+"omega"+c {
		t.Errorf("second fragment = %q", frags[1])
	}
}

func TestHighlightWidensToWordBoundaries(t *testing.T) {
	got := Highlight("extraordinary cat", []string{"cat"}, Options{Surround: 3})
	if got != "extraordinary "+o+"cat"+c {
		t.Errorf("got %q", got)
	}
}

func TestHighlightMaxFragments(t *testing.T) {
	text := "cat " + strings.Repeat("x ", 30) + "cat dog " + strings.Repeat("y ", 30) + "dog"
	got := Highlight(text, []string{"cat", "dog"}, Options{Surround: 2, MaxFragments: 1})
	if got != "x "+o+"cat"+c+" "+o+"dog"+c+" y" {
		t.Errorf("best fragment not chosen: %q", got)
	}
}

func TestHighlightNoMatch(t *testing.T) {
	if got := Highlight("nothing here", []string{"cat"}, DefaultOptions()); got != "" {
		t.Errorf("got %q", got)
	}
	if got := Highlight("cat", nil, DefaultOptions()); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestExtractTokens(t *testing.T) {
	tests := []struct {
		name    string
		snippet string
		want    []string
	}{
		{"ordered", o + "the" + c + " " + o + "cat" + c + " sat", []string{"the", "cat"}},
		{"repeats kept", o + "a" + c + o + "a" + c, []string{"a", "a"}},
		{"empty pair", o + c + "x", []string{}},
		{"unclosed", "x " + o + "cat", []string{}},
		{"stray close", "x" + c + o + "y" + c, []string{"y"}},
		{"reopen", o + "a " + o + "b" + c, []string{"b"}},
		{"braces are text", "{{{cat}}} " + o + "dog" + c, []string{"dog"}},
		{"unicode", o + "Größe" + c, []string{"Größe"}},
		{"none", "plain text", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTokens(tt.snippet); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHighlightThenExtract(t *testing.T) {
	snip := Highlight("The cat sat on the mat with the cat.", []string{"the", "cat"}, DefaultOptions())
	want := []string{"The", "cat", "the", "the", "cat"}
	if got := ExtractTokens(snip); !reflect.DeepEqual(got, want) {
		t.Errorf("tokens = %q, want %q", got, want)
	}
	if Strip(snip) != "The cat sat on the mat with the cat." {
		t.Errorf("Strip = %q", Strip(snip))
	}
}
