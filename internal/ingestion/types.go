// Package ingestion defines the request/response types and Kafka event schemas
// used by the asynchronous reindex pipeline.
package ingestion

import "time"

// Event types carried in the event-type message header.
const (
	TypeReindexRequest = "reindex_request"
	TypeIndexComplete  = "index_complete"
)

// ReindexRequest is the Kafka payload asking an indexer to rebuild one
// book, or the whole collection when BookID is empty.
type ReindexRequest struct {
	RequestID   string    `json:"request_id"`
	BookID      string    `json:"book_id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// ReindexAccepted is returned to the caller once a request is queued.
type ReindexAccepted struct {
	RequestID string `json:"request_id"`
	BookID    string `json:"book_id,omitempty"`
	Status    string `json:"status"`
}

// IndexCompleteEvent announces that a book's segment was rebuilt or
// removed. Origin identifies the publishing process so it can ignore its
// own announcements.
type IndexCompleteEvent struct {
	BookID      string    `json:"book_id"`
	Deleted     bool      `json:"deleted"`
	Pages       int       `json:"pages"`
	Origin      string    `json:"origin"`
	CompletedAt time.Time `json:"completed_at"`
}
