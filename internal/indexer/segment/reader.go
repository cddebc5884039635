package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/index"
)

// Read loads and verifies a segment file and rebuilds the book's index from
// it. A bad magic number, unknown version, section bounds outside the file
// or a checksum mismatch are all reported as errors.
func Read(path string) (*index.BookIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	if len(data) < HeaderSize+FooterSize {
		return nil, fmt.Errorf("invalid segment file %s: truncated (%d bytes)", path, len(data))
	}
	header := decodeHeader(data[:HeaderSize])
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}
	bodyEnd := int64(len(data) - FooterSize)
	footer := data[bodyEnd:]
	if binary.LittleEndian.Uint32(footer[4:8]) != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad footer")
	}
	if sum := crc32.ChecksumIEEE(data[HeaderSize:bodyEnd]); sum != binary.LittleEndian.Uint32(footer[0:4]) {
		return nil, fmt.Errorf("segment checksum mismatch in %s", path)
	}

	section := func(name string, off, size int64) ([]byte, error) {
		if off < int64(HeaderSize) || size < 0 || off+size > bodyEnd {
			return nil, fmt.Errorf("%s section out of bounds", name)
		}
		return data[off : off+size], nil
	}

	dictBytes, err := section("dictionary", header.DictOffset, header.DictSize)
	if err != nil {
		return nil, err
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	if len(dict) != int(header.TermCount) {
		return nil, fmt.Errorf("dictionary has %d terms, header says %d", len(dict), header.TermCount)
	}

	entries := make([]index.TermEntry, 0, len(dict))
	for _, d := range dict {
		raw, err := section("postings", header.PostOffset+d.PostOffset, int64(d.PostLen))
		if err != nil {
			return nil, fmt.Errorf("term %q: %w", d.Term, err)
		}
		var postings index.PostingList
		if err := json.Unmarshal(raw, &postings); err != nil {
			return nil, fmt.Errorf("parsing postings for %q: %w", d.Term, err)
		}
		entries = append(entries, index.TermEntry{Term: d.Term, Postings: postings})
	}

	pagesBytes, err := section("pages", header.PagesOffset, header.PagesSize)
	if err != nil {
		return nil, err
	}
	var pages pagesSection
	if err := json.Unmarshal(pagesBytes, &pages); err != nil {
		return nil, fmt.Errorf("parsing pages: %w", err)
	}
	if len(pages.Pages) != int(header.PageCount) {
		return nil, fmt.Errorf("segment has %d pages, header says %d", len(pages.Pages), header.PageCount)
	}
	return index.FromParts(pages.BookID, entries, pages.Pages)
}
