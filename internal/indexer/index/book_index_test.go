package index

import "testing"

func TestBuildAndSearch(t *testing.T) {
	b, err := Build("cats", []PageText{
		{Number: 3, Text: "the cat sat"},
		{Number: 1, Text: "cats and dogs\nthe cat"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	postings := b.Search("cat")
	if len(postings) != 2 {
		t.Fatalf("postings = %+v", postings)
	}
	if postings[0].Page != 1 || postings[0].Frequency != 2 {
		t.Errorf("first posting = %+v", postings[0])
	}
	if postings[1].Page != 3 || postings[1].Frequency != 1 {
		t.Errorf("second posting = %+v", postings[1])
	}
	if b.PageCount() != 2 || b.TotalTokens() != 8 {
		t.Errorf("pages=%d tokens=%d", b.PageCount(), b.TotalTokens())
	}
	if text, ok := b.PageText(3); !ok || text != "the cat sat" {
		t.Errorf("PageText(3) = %q, %v", text, ok)
	}
	if _, ok := b.PageText(2); ok {
		t.Error("page 2 must not exist")
	}
	pages := b.Pages()
	if pages[0].Number != 3 || pages[1].Number != 1 {
		t.Errorf("pages must keep input order: %+v", pages)
	}
}

func TestBuildRejectsDuplicatePages(t *testing.T) {
	_, err := Build("b", []PageText{{Number: 1, Text: "a"}, {Number: 1, Text: "b"}})
	if err == nil {
		t.Fatal("expected duplicate page error")
	}
}

func TestFromPartsRoundTrip(t *testing.T) {
	orig, err := Build("b", []PageText{{Number: 1, Text: "alpha beta"}, {Number: 2, Text: "beta gamma"}})
	if err != nil {
		t.Fatal(err)
	}
	rebuilt, err := FromParts("b", orig.Terms(), orig.Pages())
	if err != nil {
		t.Fatalf("FromParts: %v", err)
	}
	if len(rebuilt.Search("beta")) != 2 || rebuilt.TotalTokens() != orig.TotalTokens() {
		t.Errorf("rebuilt index differs: %+v", rebuilt.Search("beta"))
	}
}

func TestFromPartsRejectsDanglingPosting(t *testing.T) {
	_, err := FromParts("b",
		[]TermEntry{{Term: "x", Postings: PostingList{{Page: 9, Frequency: 1}}}},
		[]StoredPage{{Number: 1, Text: "x", Length: 1}},
	)
	if err == nil {
		t.Fatal("expected error for posting on unknown page")
	}
}
