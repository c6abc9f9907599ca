package usage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/verimail/verimail/internal/metrics"
	"github.com/verimail/verimail/internal/model"
)

// memoryStore collects inserted records for assertions.
type memoryStore struct {
	mu      sync.Mutex
	records []*model.UsageRecord
	fail    bool
}

func (s *memoryStore) InsertUsageRecords(ctx context.Context, records []*model.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *memoryStore) CountUsage(ctx context.Context, keyID string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, record := range s.records {
		if record.APIKeyID == keyID && record.Timestamp.After(since) {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecord(keyID, endpoint string, at time.Time) *model.UsageRecord {
	return &model.UsageRecord{
		ID:         "rec-" + endpoint,
		APIKeyID:   keyID,
		Endpoint:   endpoint,
		Timestamp:  at,
		StatusCode: 200,
		EmailCount: 1,
	}
}

func TestRecorder_WritesOnShutdownDrain(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	recorder := NewRecorder(store, discardLogger(), nil, 16)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = recorder.Run(context.Background())
	}()

	now := time.Now().UTC()
	recorder.Record(testRecord("key-1", "/api/validate", now))
	recorder.Record(testRecord("key-1", "/api/stats", now))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := recorder.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error = %v", err)
	}
	<-runDone

	if got := store.len(); got != 2 {
		t.Errorf("stored %d records, want 2", got)
	}
}

func TestRecorder_ShutdownBeforeRunDoesNotDeadlock(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	recorder := NewRecorder(store, discardLogger(), nil, 16)
	recorder.Record(testRecord("key-1", "/api/validate", time.Now().UTC()))

	// Shutdown wins the race with Run: it must return without hanging,
	// and the late-starting writer must still drain and exit.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := recorder.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown error = %v", err)
	}

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = recorder.Run(context.Background())
	}()

	select {
	case <-runDone:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not exit after Shutdown")
	}

	if got := store.len(); got != 1 {
		t.Errorf("stored %d records, want 1 from the late drain", got)
	}
}

func TestRecorder_FlushesFullBatches(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	recorder := NewRecorder(store, discardLogger(), nil, 512)
	recorder.batchSize = 5
	recorder.flushInterval = time.Hour // force size-based flushing

	go func() { _ = recorder.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = recorder.Shutdown(ctx)
	})

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		recorder.Record(testRecord("key-1", "/api/validate", now))
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.len() < 5 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := store.len(); got != 5 {
		t.Errorf("stored %d records, want 5 after full batch", got)
	}
}

func TestRecorder_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	store := &memoryStore{}
	inmem := metrics.NewInMemory()
	// Recorder never started: the buffer fills and overflow drops.
	recorder := NewRecorder(store, discardLogger(), inmem, 2)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		recorder.Record(testRecord("key-1", "/api/validate", now))
	}

	snap := inmem.Snapshot()
	if snap.UsageRecords["queued"] != 2 {
		t.Errorf("queued = %d, want 2", snap.UsageRecords["queued"])
	}
	if snap.UsageRecords["dropped"] != 3 {
		t.Errorf("dropped = %d, want 3", snap.UsageRecords["dropped"])
	}
}

func TestHistoricalCounts(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	store := &memoryStore{records: []*model.UsageRecord{
		testRecord("key-1", "/api/validate", now.AddDate(0, -1, 0)), // a month ago
		testRecord("key-1", "/api/validate", now.AddDate(0, 0, -3)), // inside the week
		testRecord("key-1", "/api/stats", now.Add(-time.Hour)),      // inside the week
		testRecord("key-2", "/api/validate", now.Add(-time.Hour)),   // other key
	}}

	total, week, err := HistoricalCounts(context.Background(), store, "key-1", now)
	if err != nil {
		t.Fatalf("HistoricalCounts error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if week != 2 {
		t.Errorf("week = %d, want 2", week)
	}
}
