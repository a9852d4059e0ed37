package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/topic-discovery/pkg/metrics"
)

const maxBatch = 100

// Publisher writes a batch of events to the analytics topic.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events and publishes them from a single background
// goroutine. Track never blocks; a full buffer drops the event.
type Collector struct {
	publisher Publisher
	eventCh   chan QueryEvent
	metrics   *metrics.Metrics
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// NewCollector creates a Collector with room for bufferSize pending events.
// m may be nil.
func NewCollector(publisher Publisher, bufferSize int, m *metrics.Metrics) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		publisher: publisher,
		eventCh:   make(chan QueryEvent, bufferSize),
		metrics:   m,
		logger:    slog.Default().With("component", "analytics-collector"),
		done:      make(chan struct{}),
	}
}

// Start launches the publish loop. It stops when ctx is cancelled or Close
// is called, publishing whatever is still buffered.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		batch := make([]kafka.Event, 0, maxBatch)
		for {
			select {
			case event, ok := <-c.eventCh:
				if !ok {
					return
				}
				batch = append(batch[:0], toKafka(event))
				batch = c.fill(batch)
				c.publish(ctx, batch)
			case <-ctx.Done():
				c.drainRemaining()
				return
			}
		}
	}()
	c.logger.Info("analytics collector started", "buffer_size", cap(c.eventCh))
}

// Track queues event for publishing.
func (c *Collector) Track(event QueryEvent) {
	select {
	case c.eventCh <- event:
	default:
		if c.metrics != nil {
			c.metrics.AnalyticsDropped.Inc()
		}
		c.logger.Warn("analytics event dropped (buffer full)", "type", event.Type)
	}
}

// Close stops accepting events and waits for the publish loop to flush.
// Track must not be called after Close.
func (c *Collector) Close() {
	c.closeOnce.Do(func() { close(c.eventCh) })
	<-c.done
}

// fill appends already-buffered events to batch without blocking.
func (c *Collector) fill(batch []kafka.Event) []kafka.Event {
	for len(batch) < maxBatch {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				return batch
			}
			batch = append(batch, toKafka(event))
		default:
			return batch
		}
	}
	return batch
}

func (c *Collector) drainRemaining() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		batch := c.fill(make([]kafka.Event, 0, maxBatch))
		if len(batch) == 0 {
			return
		}
		c.publish(flushCtx, batch)
	}
}

func (c *Collector) publish(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
	}
}

func toKafka(e QueryEvent) kafka.Event {
	return kafka.Event{Key: string(e.Type), Value: e}
}
