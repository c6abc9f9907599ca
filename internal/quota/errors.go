// Package quota implements the per-key daily quota ledger.
package quota

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyMissing indicates no API key was supplied with the request.
	ErrKeyMissing = errors.New("API key is required")
	// ErrKeyInvalid indicates the key does not resolve to an active record.
	ErrKeyInvalid = errors.New("invalid API key")
	// ErrKeyNotFound is returned by key stores when no record exists.
	ErrKeyNotFound = errors.New("API key not found")
)

// QuotaExceededError indicates the key's daily limit has been reached.
// Carries tier and limit so the caller can report them.
type QuotaExceededError struct {
	Tier  string
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily quota exceeded for %s tier (limit %d)", e.Tier, e.Limit)
}

// InsufficientQuotaError indicates a bulk batch is larger than the
// remaining daily allowance. Carries the remaining count.
type InsufficientQuotaError struct {
	Remaining int
}

func (e *InsufficientQuotaError) Error() string {
	return fmt.Sprintf("not enough requests remaining: %d left today", e.Remaining)
}
