package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/verimail/verimail/internal/model"
)

const (
	// reputationKeyPrefix is the Redis key prefix for reputation reports.
	reputationKeyPrefix = "rep:"
	// DefaultReputationTTL is the TTL for cached reputation reports. DNS
	// records for a domain change rarely; an hour keeps lookups cheap
	// without serving stale scores for long.
	DefaultReputationTTL = time.Hour
)

// GetReputation retrieves a cached reputation report for a domain.
// Returns nil if not found (cache miss).
func (c *Cache) GetReputation(ctx context.Context, domain string) (*model.ReputationReport, error) {
	key := reputationKeyPrefix + domain

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		// Cache miss is not an error
		return nil, nil //nolint:nilerr
	}

	var report model.ReputationReport
	if err := json.Unmarshal(data, &report); err != nil {
		// Corrupted cache entry - treat as miss
		return nil, nil //nolint:nilerr
	}

	return &report, nil
}

// SetReputation caches a reputation report for a domain.
func (c *Cache) SetReputation(ctx context.Context, domain string, report *model.ReputationReport) error {
	key := reputationKeyPrefix + domain

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal reputation report: %w", err)
	}

	return c.client.Set(ctx, key, data, DefaultReputationTTL).Err()
}
