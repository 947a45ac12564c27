package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/metrics"
)

// Publisher sends a batch of events. *kafka.Producer satisfies it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// CollectorOptions tunes batching. Zero fields take defaults.
type CollectorOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	Metrics       *metrics.Metrics
}

// Collector buffers analytics events and publishes them in batches from a
// single background goroutine. Track never blocks the request path: when the
// buffer is full the event is dropped and counted.
type Collector struct {
	publisher     Publisher
	eventCh       chan kafka.Event
	batchSize     int
	flushInterval time.Duration
	metrics       *metrics.Metrics
	logger        *slog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewCollector(publisher Publisher, opts CollectorOptions) *Collector {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1024
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan kafka.Event, opts.BufferSize),
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		metrics:       opts.Metrics,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start launches the publish loop. It stops when ctx is done or Close is
// called, flushing whatever is buffered.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := c.publisher.PublishBatch(ctx, batch); err != nil {
			c.logger.Error("failed to publish analytics batch", "events", len(batch), "error", err)
			c.dropped(len(batch))
		}
		batch = batch[:0]
	}

	for {
		select {
		case e, ok := <-c.eventCh:
			if !ok {
				flush(context.Background())
				return
			}
			batch = append(batch, e)
			if len(batch) >= c.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.drain(&batch)
			flush(shutdownCtx)
			cancel()
			return
		}
	}
}

func (c *Collector) drain(batch *[]kafka.Event) {
	for {
		select {
		case e, ok := <-c.eventCh:
			if !ok {
				return
			}
			*batch = append(*batch, e)
		default:
			return
		}
	}
}

// TrackSearch queues a search event, keyed by query so one query's events
// share a partition.
func (c *Collector) TrackSearch(e SearchEvent) {
	if e.Type == "" {
		e.Type = EventSearch
	}
	c.track(kafka.Event{Key: e.Query, Value: e})
}

// TrackIndex queues an index event.
func (c *Collector) TrackIndex(e IndexEvent) {
	if e.Type == "" {
		e.Type = EventIndexBuilt
	}
	c.track(kafka.Event{Key: "index", Value: e})
}

func (c *Collector) track(e kafka.Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped(1)
		return
	}
	select {
	case c.eventCh <- e:
	default:
		c.logger.Warn("analytics event dropped (buffer full)")
		c.dropped(1)
	}
}

func (c *Collector) dropped(n int) {
	if c.metrics != nil {
		c.metrics.AnalyticsEventsDropped.Add(float64(n))
	}
}

// Close stops accepting events and waits for the final flush. Start must
// have been called.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.eventCh)
	c.mu.Unlock()
	<-c.done
}
