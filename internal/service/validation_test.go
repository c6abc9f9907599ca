package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/verimail/verimail/internal/auth"
	"github.com/verimail/verimail/internal/metrics"
	"github.com/verimail/verimail/internal/model"
	"github.com/verimail/verimail/internal/quota"
	"github.com/verimail/verimail/internal/testutil"
	"github.com/verimail/verimail/internal/usage"
	"github.com/verimail/verimail/internal/validator"
)

// usageStore is a minimal in-memory usage.Store.
type usageStore struct {
	mu      sync.Mutex
	records []*model.UsageRecord
}

func (s *usageStore) InsertUsageRecords(ctx context.Context, records []*model.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *usageStore) CountUsage(ctx context.Context, keyID string, since time.Time) (int64, error) {
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

var _ usage.Store = (*usageStore)(nil)

type fixture struct {
	svc     *ValidationService
	keys    *testutil.KeyStore
	store   *usageStore
	clock   *testutil.Clock
	metrics *metrics.InMemoryRecorder
	key     *model.APIKey
}

func newFixture(t *testing.T, tier string) *fixture {
	t.Helper()

	clock := testutil.NewClock(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	keys := testutil.NewKeyStore()
	key := testutil.NewTestAPIKey(t, tier)
	keys.Put(key)

	resolver := testutil.NewResolver().
		WithMX("example.com", "mx1.example.com").
		WithA("example.com", "93.184.216.34")

	store := &usageStore{}
	inmem := metrics.NewInMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewValidationService(
		quota.NewLedger(keys, clock.Now),
		validator.New(resolver, time.Second),
		store,
		nil,
		inmem,
		logger,
		clock.Now,
	)

	return &fixture{svc: svc, keys: keys, store: store, clock: clock, metrics: inmem, key: key}
}

func (f *fixture) ctx() context.Context {
	return auth.ContextWithAuth(context.Background(), &model.AuthContext{
		KeyID:     f.key.ID,
		KeyPrefix: f.key.KeyPrefix,
		Tier:      f.key.Tier,
	})
}

func TestValidateOne(t *testing.T) {
	t.Parallel()

	f := newFixture(t, model.TierFree)

	verdict, err := f.svc.ValidateOne(f.ctx(), "user@example.com")
	if err != nil {
		t.Fatalf("ValidateOne error = %v", err)
	}
	if !verdict.IsValid {
		t.Errorf("verdict = %+v, want valid", verdict)
	}

	// One unit consumed.
	if got := f.keys.Get(f.key.ID).RequestsToday; got != 1 {
		t.Errorf("RequestsToday = %d, want 1", got)
	}

	snap := f.metrics.Snapshot()
	if snap.ValidationsValid != 1 {
		t.Errorf("valid validations = %d, want 1", snap.ValidationsValid)
	}
}

func TestValidateOne_MissingEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(t, model.TierFree)

	if _, err := f.svc.ValidateOne(f.ctx(), "  "); !errors.Is(err, ErrMissingEmail) {
		t.Errorf("error = %v, want ErrMissingEmail", err)
	}

	// Malformed input is rejected before admission; no consumption.
	if got := f.keys.Get(f.key.ID).RequestsToday; got != 0 {
		t.Errorf("RequestsToday = %d, want 0", got)
	}
}

func TestValidateOne_QuotaExceeded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, model.TierFree)
	f.key.RequestsToday = model.DailyLimits[model.TierFree]
	f.key.LastRequest = ptrTime(f.clock.Now())
	f.keys.Put(f.key)

	_, err := f.svc.ValidateOne(f.ctx(), "user@example.com")
	var quotaErr *quota.QuotaExceededError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("error = %v, want *QuotaExceededError", err)
	}
	if quotaErr.Limit != 50 || quotaErr.Tier != model.TierFree {
		t.Errorf("quota error = %+v", quotaErr)
	}
	if got := f.metrics.Snapshot().QuotaRejected["exceeded"]; got != 1 {
		t.Errorf("exceeded rejections = %d, want 1", got)
	}
}

func TestValidateOne_UnauthenticatedContext(t *testing.T) {
	t.Parallel()

	f := newFixture(t, model.TierFree)

	_, err := f.svc.ValidateOne(context.Background(), "user@example.com")
	if !errors.Is(err, quota.ErrKeyMissing) {
		t.Errorf("error = %v, want ErrKeyMissing", err)
	}
}

func TestValidateBulk(t *testing.T) {
	t.Parallel()

	f := newFixture(t, model.TierBasic)

	emails := []string{
		"user@example.com",
		"",   // skipped
		"  ", // skipped
		"not-an-email",
		"admin@example.com",
	}

	result, err := f.svc.ValidateBulk(f.ctx(), emails)
	if err != nil {
		t.Fatalf("ValidateBulk error = %v", err)
	}
	if result.TotalProcessed != 3 {
		t.Errorf("TotalProcessed = %d, want 3", result.TotalProcessed)
	}
	if result.TotalValid != 2 {
		t.Errorf("TotalValid = %d, want 2", result.TotalValid)
	}
	if len(result.Results) != 3 {
		t.Errorf("len(Results) = %d, want 3", len(result.Results))
	}

	// Only processed entries consume quota.
	if got := f.keys.Get(f.key.ID).RequestsToday; got != 3 {
		t.Errorf("RequestsToday = %d, want 3", got)
	}
}

func TestValidateBulk_EmptyBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, model.TierFree)

	if _, err := f.svc.ValidateBulk(f.ctx(), nil); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("error = %v, want ErrEmptyBatch", err)
	}
}

func TestValidateBulk_TooLarge(t *testing.T) {
	t.Parallel()

	f := newFixture(t, model.TierPremium)

	emails := make([]string, MaxBulkEmails+1)
	for i := range emails {
		emails[i] = "user@example.com"
	}

	if _, err := f.svc.ValidateBulk(f.ctx(), emails); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("error = %v, want ErrBatchTooLarge", err)
	}
	if got := f.keys.Get(f.key.ID).RequestsToday; got != 0 {
		t.Errorf("RequestsToday = %d, want 0", got)
	}
}

func TestValidateBulk_InsufficientQuota(t *testing.T) {
	t.Parallel()

	f := newFixture(t, model.TierFree)
	f.key.RequestsToday = 45
	f.key.LastRequest = ptrTime(f.clock.Now())
	f.keys.Put(f.key)

	emails := make([]string, 10)
	for i := range emails {
		emails[i] = "user@example.com"
	}

	_, err := f.svc.ValidateBulk(f.ctx(), emails)
	var insufficientErr *quota.InsufficientQuotaError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("error = %v, want *InsufficientQuotaError", err)
	}
	if insufficientErr.Remaining != 5 {
		t.Errorf("Remaining = %d, want 5", insufficientErr.Remaining)
	}

	// Whole batch rejected; nothing validated or consumed.
	if got := f.keys.Get(f.key.ID).RequestsToday; got != 45 {
		t.Errorf("RequestsToday = %d, want 45", got)
	}
	if got := f.metrics.Snapshot().QuotaRejected["insufficient"]; got != 1 {
		t.Errorf("insufficient rejections = %d, want 1", got)
	}
}

func TestDomainReputation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, model.TierFree)

	report, err := f.svc.DomainReputation(f.ctx(), "  EXAMPLE.com ")
	if err != nil {
		t.Fatalf("DomainReputation error = %v", err)
	}
	if report.Domain != "example.com" {
		t.Errorf("Domain = %q, want %q", report.Domain, "example.com")
	}
	if !report.HasMX {
		t.Error("HasMX = false, want true")
	}

	if got := f.keys.Get(f.key.ID).RequestsToday; got != 1 {
		t.Errorf("RequestsToday = %d, want 1", got)
	}
}

func TestDomainReputation_MissingDomain(t *testing.T) {
	t.Parallel()

	f := newFixture(t, model.TierFree)

	if _, err := f.svc.DomainReputation(f.ctx(), ""); !errors.Is(err, ErrMissingDomain) {
		t.Errorf("error = %v, want ErrMissingDomain", err)
	}
}

func TestUsageStats(t *testing.T) {
	t.Parallel()

	f := newFixture(t, model.TierBasic)
	now := f.clock.Now()

	f.store.records = []*model.UsageRecord{
		{ID: "1", APIKeyID: f.key.ID, Timestamp: now.AddDate(0, -1, 0)},
		{ID: "2", APIKeyID: f.key.ID, Timestamp: now.AddDate(0, 0, -2)},
		{ID: "3", APIKeyID: "other", Timestamp: now.Add(-time.Hour)},
	}
	f.key.RequestsToday = 7
	f.key.LastRequest = ptrTime(now)
	f.keys.Put(f.key)

	stats, err := f.svc.UsageStats(f.ctx())
	if err != nil {
		t.Fatalf("UsageStats error = %v", err)
	}

	if stats.Tier != model.TierBasic || stats.DailyLimit != 1500 {
		t.Errorf("stats tier/limit = %s/%d", stats.Tier, stats.DailyLimit)
	}
	if stats.RequestsToday != 7 || stats.RemainingToday != 1493 {
		t.Errorf("today = %d remaining = %d", stats.RequestsToday, stats.RemainingToday)
	}
	if stats.TotalRequests != 2 || stats.RequestsThisWeek != 1 {
		t.Errorf("total = %d week = %d", stats.TotalRequests, stats.RequestsThisWeek)
	}

	// Stats never consume quota.
	if got := f.keys.Get(f.key.ID).RequestsToday; got != 7 {
		t.Errorf("RequestsToday after stats = %d, want 7", got)
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
