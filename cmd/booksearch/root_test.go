package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

const catsMarkup = `<html><body>
<div class="ocr_page" id="page_3"><span class="ocr_line">
  <span class="ocrx_word" title="bbox 10 20 30 40">the</span>
  <span class="ocrx_word" title="bbox 31 20 55 40">cat</span>
</span></div></body></html>`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestReindexThenSearch(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "cats")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cats.hocr"), []byte(catsMarkup), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "--root", root, "reindex"); err != nil {
		t.Fatalf("reindex: %v", err)
	}
	out, err := run(t, "--root", root, "search", "the cat")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var resp struct {
		Results []struct {
			Page    int `json:"page_number"`
			Regions []struct {
				Left  int `json:"left"`
				Right int `json:"right"`
			} `json:"highlight_regions"`
		} `json:"results"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decoding %q: %v", out, err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Page != 3 {
		t.Fatalf("results = %+v", resp.Results)
	}
	if r := resp.Results[0].Regions; len(r) != 1 || r[0].Left != 10 || r[0].Right != 55 {
		t.Errorf("regions = %+v", r)
	}
}

func TestRejectsUnknownOutput(t *testing.T) {
	if _, err := run(t, "--root", t.TempDir(), "-o", "xml", "books"); err == nil {
		t.Fatal("expected an error")
	}
	outputFormat = "json"
}
