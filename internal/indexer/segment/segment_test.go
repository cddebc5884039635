package segment

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/index"
)

func buildBook(t *testing.T) *index.BookIndex {
	t.Helper()
	b, err := index.Build("moby", []index.PageText{
		{Number: 1, Text: "Call me Ishmael."},
		{Number: 2, Text: "Some years ago, never mind how long"},
		{Number: 5, Text: "the whale, the whale"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return b
}

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	book := buildBook(t)
	path, err := NewWriter(dir).Write(book)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if path != Path(dir, "moby") {
		t.Errorf("path = %s", path)
	}
	if _, err := os.Stat(path + TmpExt); !os.IsNotExist(err) {
		t.Error("temp file must be renamed away")
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.BookID() != "moby" || got.PageCount() != 3 || got.TotalTokens() != book.TotalTokens() {
		t.Errorf("book=%s pages=%d tokens=%d", got.BookID(), got.PageCount(), got.TotalTokens())
	}
	whale := got.Search("whale")
	if len(whale) != 1 || whale[0].Page != 5 || whale[0].Frequency != 2 {
		t.Errorf("whale postings = %+v", whale)
	}
	if text, _ := got.PageText(2); text != "Some years ago, never mind how long" {
		t.Errorf("page 2 text = %q", text)
	}
}

func TestWriteReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	if _, err := w.Write(buildBook(t)); err != nil {
		t.Fatal(err)
	}
	small, _ := index.Build("moby", []index.PageText{{Number: 9, Text: "fin"}})
	if _, err := w.Write(small); err != nil {
		t.Fatal(err)
	}
	got, err := Read(Path(dir, "moby"))
	if err != nil {
		t.Fatal(err)
	}
	if got.PageCount() != 1 || len(got.Search("whale")) != 0 {
		t.Errorf("segment was not replaced: %d pages", got.PageCount())
	}
}

func TestReadDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path, err := NewWriter(dir).Write(buildBook(t))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	data[HeaderSize+3] ^= 0xff
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x"+Ext)
	os.WriteFile(path, []byte("not a segment"), 0644)
	if _, err := Read(path); err == nil {
		t.Fatal("expected error for truncated file")
	}
}

func TestWriteRejectsEmptyBook(t *testing.T) {
	empty, _ := index.Build("empty", nil)
	if _, err := NewWriter(t.TempDir()).Write(empty); err == nil {
		t.Fatal("expected error for book without pages")
	}
}
