// Package segment persists one book's index as a single .spdx file: a fixed
// binary header, the postings section, the term dictionary, the stored pages
// and a checksum footer.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/indexer/index"
)

// MagicBytes identifies a valid .spdx segment file.
const (
	MagicBytes    uint32 = 0x53504458
	FormatVersion uint32 = 2
	HeaderSize    int    = 96
	FooterSize    int    = 8
	Ext                  = ".spdx"
	TmpExt               = ".tmp"
)

// SegmentHeader is the 96-byte header written at the start of every segment.
type SegmentHeader struct {
	Magic       uint32
	Version     uint32
	TermCount   uint32
	PageCount   uint32
	CreatedAt   int64
	PostOffset  int64
	PostSize    int64
	DictOffset  int64
	DictSize    int64
	PagesOffset int64
	PagesSize   int64
	TotalTokens int64
}

// DictEntry maps a term to its postings offset, length, and page frequency
// in the segment file.
type DictEntry struct {
	Term       string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	PageFreq   int    `json:"d"`
}

type pagesSection struct {
	BookID string             `json:"book_id"`
	Pages  []index.StoredPage `json:"pages"`
}

// Path returns the segment file for bookID inside dir.
func Path(dir, bookID string) string {
	return filepath.Join(dir, bookID+Ext)
}

// Writer serialises book indexes into .spdx segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically replaces the segment file of the given book. It writes to
// a .tmp file first and renames on success, so a reader never observes a
// partially written segment.
func (w *Writer) Write(book *index.BookIndex) (string, error) {
	if book.PageCount() == 0 {
		return "", fmt.Errorf("cannot write segment for book %s without pages", book.BookID())
	}
	finalPath := Path(w.dataDir, book.BookID())
	tmpPath := finalPath + TmpExt

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	committed := false
	defer func() {
		f.Close()
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	entries := book.Terms()
	header := SegmentHeader{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		TermCount:   uint32(len(entries)),
		PageCount:   uint32(book.PageCount()),
		CreatedAt:   time.Now().Unix(),
		TotalTokens: book.TotalTokens(),
	}
	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	crc := crc32.NewIEEE()
	offset := int64(HeaderSize)
	write := func(data []byte) error {
		if _, err := f.Write(data); err != nil {
			return err
		}
		crc.Write(data)
		offset += int64(len(data))
		return nil
	}

	header.PostOffset = offset
	dict := make([]DictEntry, 0, len(entries))
	for _, entry := range entries {
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		relativeOffset := offset - header.PostOffset
		if err := write(postingsData); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Term:       entry.Term,
			PostOffset: relativeOffset,
			PostLen:    len(postingsData),
			PageFreq:   len(entry.Postings),
		})
	}
	header.PostSize = offset - header.PostOffset

	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	header.DictOffset = offset
	if err := write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	header.DictSize = int64(len(dictData))

	pagesData, err := json.Marshal(pagesSection{BookID: book.BookID(), Pages: book.Pages()})
	if err != nil {
		return "", fmt.Errorf("marshaling pages: %w", err)
	}
	header.PagesOffset = offset
	if err := write(pagesData); err != nil {
		return "", fmt.Errorf("writing pages: %w", err)
	}
	header.PagesSize = int64(len(pagesData))

	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], crc.Sum32())
	binary.LittleEndian.PutUint32(footer[4:8], MagicBytes)
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	committed = true
	return finalPath, nil
}

func encodeHeader(h SegmentHeader) []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.PageCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.PagesOffset))
	binary.LittleEndian.PutUint64(b[64:72], uint64(h.PagesSize))
	binary.LittleEndian.PutUint64(b[72:80], uint64(h.TotalTokens))
	return b
}

func decodeHeader(b []byte) SegmentHeader {
	return SegmentHeader{
		Magic:       binary.LittleEndian.Uint32(b[0:4]),
		Version:     binary.LittleEndian.Uint32(b[4:8]),
		TermCount:   binary.LittleEndian.Uint32(b[8:12]),
		PageCount:   binary.LittleEndian.Uint32(b[12:16]),
		CreatedAt:   int64(binary.LittleEndian.Uint64(b[16:24])),
		PostOffset:  int64(binary.LittleEndian.Uint64(b[24:32])),
		PostSize:    int64(binary.LittleEndian.Uint64(b[32:40])),
		DictOffset:  int64(binary.LittleEndian.Uint64(b[40:48])),
		DictSize:    int64(binary.LittleEndian.Uint64(b[48:56])),
		PagesOffset: int64(binary.LittleEndian.Uint64(b[56:64])),
		PagesSize:   int64(binary.LittleEndian.Uint64(b[64:72])),
		TotalTokens: int64(binary.LittleEndian.Uint64(b[72:80])),
	}
}
