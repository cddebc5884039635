package analytics

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/Scanned-Book-Search/pkg/kafka"
)

// Publisher writes one analytics event. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Collector buffers analytics events and publishes them from a single
// goroutine so Track never blocks a request.
type Collector struct {
	producer Publisher
	eventCh  chan interface{}
	logger   *slog.Logger
	done     chan struct{}
}

func NewCollector(producer Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	c := &Collector{
		producer: producer,
		eventCh:  make(chan interface{}, bufferSize),
		logger:   slog.Default().With("component", "analytics-collector"),
		done:     make(chan struct{}),
	}

	return c
}

func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				if err := c.producer.Publish(ctx, toMessage(event)); err != nil {
					c.logger.Error("failed to publish analytics event", "error", err)
				}
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track queues event, dropping it when the buffer is full.
func (c *Collector) Track(event interface{}) {
	select {
	case c.eventCh <- event:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
	}
}

func (c *Collector) Close() {
	close(c.eventCh)
	<-c.done
}

func (c *Collector) drainRemaining() {
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return
			}
			ctx := context.Background()
			if err := c.producer.Publish(ctx, toMessage(event)); err != nil {
				c.logger.Error("failed to publish remaining event", "error", err)
			}
		default:
			return
		}
	}
}

func toMessage(event interface{}) kafka.Event {
	return kafka.Event{
		Key:       Key(event),
		Type:      TypeOf(event),
		RequestID: requestIDOf(event),
		Value:     event,
	}
}
