package analytics

import "time"

type EventType string

const (
	EventSearch      EventType = "search"
	EventZeroResult  EventType = "zero_result"
	EventSearchError EventType = "search_error"
	EventReindex     EventType = "reindex"
)

// SearchEvent is published once per search request.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	BookID    string    `json:"book_id,omitempty"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// ReindexEvent is published once per book rebuild attempt.
type ReindexEvent struct {
	Type      EventType `json:"type"`
	BookID    string    `json:"book_id"`
	Pages     int       `json:"pages"`
	Failed    bool      `json:"failed"`
	ErrorKind string    `json:"error_kind,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// Key returns the partition key of an event: the book for book-scoped
// events, otherwise the event type.
func Key(event interface{}) string {
	switch e := event.(type) {
	case SearchEvent:
		if e.BookID != "" {
			return e.BookID
		}
		return string(e.Type)
	case ReindexEvent:
		return e.BookID
	default:
		return "analytics"
	}
}

// TypeOf returns the event's type, or "unknown" for foreign values.
func TypeOf(event interface{}) string {
	switch e := event.(type) {
	case SearchEvent:
		return string(e.Type)
	case ReindexEvent:
		return string(e.Type)
	default:
		return "unknown"
	}
}

// requestIDOf returns the request that produced event, when it has one.
func requestIDOf(event interface{}) string {
	if e, ok := event.(SearchEvent); ok {
		return e.RequestID
	}
	return ""
}
