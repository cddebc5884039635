// Package publisher queues reindex requests on Kafka and announces
// finished rebuilds so every process serving the index can reload.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/resilience"
)

// EventPublisher writes one event. *kafka.Producer satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// PendingRecorder marks a book as queued for rebuild.
type PendingRecorder interface {
	RecordPending(ctx context.Context, bookID string) error
}

// allBooksKey partitions full-collection requests.
const allBooksKey = "_all"

type Publisher struct {
	producer EventPublisher
	ledger   PendingRecorder
	retry    resilience.RetryConfig
	logger   *slog.Logger
}

// New creates a Publisher. ledger may be nil.
func New(producer EventPublisher, ledger PendingRecorder) *Publisher {
	return &Publisher{
		producer: producer,
		ledger:   ledger,
		retry: resilience.RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
		},
		logger: slog.Default().With("component", "reindex-publisher"),
	}
}

// Request queues a rebuild of bookID, or of the whole collection when
// bookID is empty. The request id reuses the caller's request id when the
// context carries one.
func (p *Publisher) Request(ctx context.Context, bookID string) (*ingestion.ReindexAccepted, error) {
	requestID := logger.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	if bookID != "" && p.ledger != nil {
		if err := p.ledger.RecordPending(ctx, bookID); err != nil {
			p.logger.Error("failed to mark book pending", "book_id", bookID, "error", err)
		}
	}
	key := bookID
	if key == "" {
		key = allBooksKey
	}
	event := kafka.Event{
		Key:       key,
		Type:      ingestion.TypeReindexRequest,
		RequestID: requestID,
		Value: ingestion.ReindexRequest{
			RequestID:   requestID,
			BookID:      bookID,
			RequestedAt: time.Now().UTC(),
		},
	}
	err := resilience.Retry(ctx, "publish-reindex", p.retry, func() error {
		return p.producer.Publish(ctx, event)
	})
	if err != nil {
		return nil, fmt.Errorf("queueing reindex of %q: %w", key, err)
	}
	p.logger.Info("reindex queued", "request_id", requestID, "book_id", bookID)
	return &ingestion.ReindexAccepted{
		RequestID: requestID,
		BookID:    bookID,
		Status:    "PENDING",
	}, nil
}

// Notifier publishes IndexCompleteEvents tagged with this process's origin.
type Notifier struct {
	producer EventPublisher
	origin   string
	logger   *slog.Logger
}

func NewNotifier(producer EventPublisher, origin string) *Notifier {
	return &Notifier{
		producer: producer,
		origin:   origin,
		logger:   slog.Default().With("component", "index-notifier"),
	}
}

func (n *Notifier) Origin() string {
	return n.origin
}

func (n *Notifier) NotifyIndexChanged(ctx context.Context, bookID string, deleted bool, pages int) error {
	err := n.producer.Publish(ctx, kafka.Event{
		Key:  bookID,
		Type: ingestion.TypeIndexComplete,
		Value: ingestion.IndexCompleteEvent{
			BookID:      bookID,
			Deleted:     deleted,
			Pages:       pages,
			Origin:      n.origin,
			CompletedAt: time.Now().UTC(),
		},
	})
	if err != nil {
		return fmt.Errorf("announcing index change of %s: %w", bookID, err)
	}
	n.logger.Debug("index change announced", "book_id", bookID, "deleted", deleted)
	return nil
}
