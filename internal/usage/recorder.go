// Package usage provides the durable per-call usage log: an async
// batched writer plus the historical queries behind the stats endpoint.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/verimail/verimail/internal/metrics"
	"github.com/verimail/verimail/internal/model"
)

const (
	// DefaultBufferSize is the capacity of the in-flight record buffer.
	DefaultBufferSize = 1024

	// DefaultBatchSize is the max records written per insert.
	DefaultBatchSize = 100

	// DefaultFlushInterval bounds how long a record may sit in the
	// buffer before being written.
	DefaultFlushInterval = 2 * time.Second

	// writeTimeout bounds each store write.
	writeTimeout = 5 * time.Second
)

// Store persists usage records and answers historical queries.
type Store interface {
	InsertUsageRecords(ctx context.Context, records []*model.UsageRecord) error
	CountUsage(ctx context.Context, keyID string, since time.Time) (int64, error)
}

// Recorder is the append-only usage log writer. Record is fire-and-
// forget: the handler path never blocks on persistence, and a full
// buffer drops the record with a warning rather than stalling traffic.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	metrics metrics.Recorder
	buf     chan *model.UsageRecord

	batchSize     int
	flushInterval time.Duration

	// quit and done exist from construction so Shutdown can signal and
	// observe the writer loop no matter how it interleaves with Run.
	quit     chan struct{}
	done     chan struct{}
	started  bool
	stopOnce sync.Once
	mu       sync.Mutex
}

// NewRecorder creates a usage recorder. Non-positive sizes fall back to
// the defaults; a nil metrics recorder falls back to a no-op.
func NewRecorder(store Store, logger *slog.Logger, recorder metrics.Recorder, bufferSize int) *Recorder {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Recorder{
		store:         store,
		logger:        logger.With("component", "usage.recorder"),
		metrics:       recorder,
		buf:           make(chan *model.UsageRecord, bufferSize),
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Record enqueues a usage record without blocking. Returns immediately;
// persistence failures are logged, never surfaced to the caller.
func (r *Recorder) Record(record *model.UsageRecord) {
	select {
	case r.buf <- record:
		r.metrics.IncUsageRecord("queued")
	default:
		r.logger.Warn("usage buffer full, dropping record",
			slog.String("api_key_id", record.APIKeyID),
			slog.String("endpoint", record.Endpoint),
		)
		r.metrics.IncUsageRecord("dropped")
	}
}

// Run starts the writer loop. Blocks until the context is cancelled or
// Shutdown is called, then drains the buffer.
func (r *Recorder) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("usage recorder already started")
	}
	r.started = true
	r.mu.Unlock()

	defer close(r.done)

	r.logger.Info("usage recorder started")

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	batch := make([]*model.UsageRecord, 0, r.batchSize)

	for {
		select {
		case <-ctx.Done():
			r.flush(r.drain(batch))
			r.logger.Info("usage recorder stopped")
			return nil
		case <-r.quit:
			r.flush(r.drain(batch))
			r.logger.Info("usage recorder stopped")
			return nil
		case record := <-r.buf:
			batch = append(batch, record)
			if len(batch) >= r.batchSize {
				r.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

// Shutdown stops the writer and waits for the final drain to complete.
// It implements server.ShutdownFunc.
func (r *Recorder) Shutdown(ctx context.Context) error {
	// Signal before checking started: a Run that is still on its way in
	// observes the closed channel and drains immediately, so a Shutdown
	// that races the startup never strands the writer loop.
	r.stopOnce.Do(func() { close(r.quit) })

	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.logger.Warn("usage recorder shutdown timed out")
		return ctx.Err()
	}
}

// drain appends whatever is still buffered to the in-flight batch.
func (r *Recorder) drain(batch []*model.UsageRecord) []*model.UsageRecord {
	for {
		select {
		case record := <-r.buf:
			batch = append(batch, record)
		default:
			return batch
		}
	}
}

// flush writes a batch to the store with a bounded timeout.
func (r *Recorder) flush(batch []*model.UsageRecord) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.store.InsertUsageRecords(ctx, batch); err != nil {
		r.logger.Error("failed to write usage batch",
			slog.Int("batch_size", len(batch)),
			slog.String("error", err.Error()),
		)
		r.metrics.IncUsageRecord("failed")
		return
	}

	r.logger.Debug("usage batch written", slog.Int("batch_size", len(batch)))
	r.metrics.IncUsageRecord("written")
}

// HistoricalCounts returns the all-time and trailing-week request counts
// for a key, sourced from the usage log rather than the quota ledger.
func HistoricalCounts(ctx context.Context, store Store, keyID string, now time.Time) (total, week int64, err error) {
	total, err = store.CountUsage(ctx, keyID, time.Time{})
	if err != nil {
		return 0, 0, fmt.Errorf("count total usage: %w", err)
	}

	week, err = store.CountUsage(ctx, keyID, now.AddDate(0, 0, -7))
	if err != nil {
		return 0, 0, fmt.Errorf("count weekly usage: %w", err)
	}

	return total, week, nil
}
