// Package consumer reads reindex requests and index-change announcements
// from Kafka and drives the library service with them.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/internal/library"
	apperrors "github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/logger"
)

// Reindexer rebuilds books. *library.Service satisfies it.
type Reindexer interface {
	Reindex(ctx context.Context, bookID string) (*library.ReindexReport, error)
}

// Refresher reloads a book another process rebuilt.
type Refresher interface {
	Refresh(ctx context.Context, bookID string) error
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates an IndexConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleReindexRequest returns a MessageHandler that rebuilds the requested
// book or collection. Per-book failures are recorded by the service and the
// message is committed; only a transient failure leaves it uncommitted.
func HandleReindexRequest(svc Reindexer) kafka.MessageHandler {
	log := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[ingestion.ReindexRequest](value)
		if err != nil {
			log.Error("failed to decode reindex request", "error", err, "key", string(key))
			return nil
		}
		ctx = logger.WithRequestID(ctx, req.RequestID)
		report, err := svc.Reindex(ctx, req.BookID)
		if err != nil {
			if transient(err) {
				return fmt.Errorf("reindexing %q: %w", req.BookID, err)
			}
			log.Error("reindex request failed",
				"request_id", req.RequestID,
				"book_id", req.BookID,
				"kind", apperrors.Kind(err),
				"error", err,
			)
			return nil
		}
		log.Info("reindex request processed",
			"request_id", req.RequestID,
			"book_id", req.BookID,
			"indexed", len(report.Indexed),
			"failed", len(report.Failed),
			"removed", len(report.Removed),
		)
		return nil
	}
}

// HandleIndexComplete returns a MessageHandler that reloads books rebuilt by
// other processes. Events carrying origin are skipped.
func HandleIndexComplete(svc Refresher, origin string) kafka.MessageHandler {
	log := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingestion.IndexCompleteEvent](value)
		if err != nil {
			log.Error("failed to decode index-complete event", "error", err, "key", string(key))
			return nil
		}
		if event.Origin == origin {
			return nil
		}
		if err := svc.Refresh(ctx, event.BookID); err != nil {
			if transient(err) {
				return fmt.Errorf("refreshing %s: %w", event.BookID, err)
			}
			log.Error("refresh failed", "book_id", event.BookID, "error", err)
			return nil
		}
		log.Debug("book refreshed", "book_id", event.BookID, "deleted", event.Deleted)
		return nil
	}
}

func transient(err error) bool {
	return errors.Is(err, apperrors.ErrIndexUnavailable) ||
		errors.Is(err, apperrors.ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
