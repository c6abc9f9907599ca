package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/verimail/verimail/internal/model"
)

// KeyStore persists API keys and their daily counters.
// Implementations must serialize updates per key: RolloverAndGet and
// IncrementUsage are each atomic with respect to concurrent calls for
// the same key (row-level locking in SQL, a per-key mutex in memory).
type KeyStore interface {
	// RolloverAndGet applies the lazy day rollover (reset requests_today
	// to 0 when the stored last_request date precedes today) and returns
	// the key's current record. Inactive or unknown keys yield an error
	// satisfying errors.Is(err, ErrKeyNotFound).
	RolloverAndGet(ctx context.Context, keyID string, today time.Time) (*model.APIKey, error)

	// IncrementUsage atomically adds n to requests_today and stamps
	// last_request. Increments must never be lost under concurrency.
	IncrementUsage(ctx context.Context, keyID string, n int, now time.Time) error
}

// Ledger answers "is this call admissible" against tier daily limits and
// records consumption. The day rollover is applied lazily at admission
// time; there is no background reset job.
type Ledger struct {
	store KeyStore
	now   func() time.Time
}

// NewLedger creates a Ledger. A nil clock defaults to time.Now.
func NewLedger(store KeyStore, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store: store,
		now:   now,
	}
}

// Admit decides whether a single call for the given key may proceed.
//
// Returns ErrKeyMissing for an empty key ID, ErrKeyInvalid when the key
// does not resolve to an active record, and *QuotaExceededError when the
// daily limit is reached. On success it returns the key record with the
// rollover already applied.
func (l *Ledger) Admit(ctx context.Context, keyID string) (*model.APIKey, error) {
	key, err := l.resolve(ctx, keyID)
	if err != nil {
		return nil, err
	}

	if key.RequestsToday >= key.DailyLimit() {
		return nil, &QuotaExceededError{Tier: key.Tier, Limit: key.DailyLimit()}
	}

	return key, nil
}

// AdmitBatch decides whether a bulk call of batchSize validations may
// proceed. The whole batch is rejected with *InsufficientQuotaError when
// it does not fit in the remaining daily allowance; no partial
// consumption ever occurs.
func (l *Ledger) AdmitBatch(ctx context.Context, keyID string, batchSize int) (*model.APIKey, error) {
	key, err := l.resolve(ctx, keyID)
	if err != nil {
		return nil, err
	}

	if batchSize > key.Remaining() {
		return nil, &InsufficientQuotaError{Remaining: key.Remaining()}
	}

	return key, nil
}

// Commit records the consumption of an admitted call: n is the number of
// validations actually performed (1 for single calls, the processed count
// for bulk). Applied exactly once per admitted call, even when n is zero.
func (l *Ledger) Commit(ctx context.Context, keyID string, n int) error {
	if n < 0 {
		return fmt.Errorf("negative consumption count %d", n)
	}
	if err := l.store.IncrementUsage(ctx, keyID, n, l.now().UTC()); err != nil {
		return fmt.Errorf("commit usage for key %s: %w", keyID, err)
	}
	return nil
}

// Inspect returns the key record with the rollover applied, without a
// limit check. Used by the stats endpoint, which reports on quota but
// does not consume it.
func (l *Ledger) Inspect(ctx context.Context, keyID string) (*model.APIKey, error) {
	return l.resolve(ctx, keyID)
}

// resolve fetches the key record with the lazy day rollover applied.
func (l *Ledger) resolve(ctx context.Context, keyID string) (*model.APIKey, error) {
	if keyID == "" {
		return nil, ErrKeyMissing
	}

	key, err := l.store.RolloverAndGet(ctx, keyID, l.now().UTC())
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrKeyInvalid
		}
		return nil, fmt.Errorf("resolve key %s: %w", keyID, err)
	}

	if !key.IsActive {
		return nil, ErrKeyInvalid
	}

	return key, nil
}
