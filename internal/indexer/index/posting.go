package index

// Posting records how often a term occurs on one page of a book.
type Posting struct {
	Page      int   `json:"p"`
	Frequency int   `json:"f"`
	Positions []int `json:"x"`
}

type PostingList []Posting

type TermEntry struct {
	Term     string
	Postings PostingList
}

// PageText is the input to a book build: one page number and its text.
type PageText struct {
	Number int
	Text   string
}

// StoredPage is a page's verbatim text plus its token count.
type StoredPage struct {
	Number int    `json:"n"`
	Text   string `json:"t"`
	Length int    `json:"l"`
}
