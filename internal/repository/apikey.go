package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/verimail/verimail/internal/model"
	"github.com/verimail/verimail/internal/quota"
)

// Common errors for API key repository operations.
var (
	ErrAPIKeyNotFound = errors.New("API key not found")
)

// CreateAPIKey inserts a new API key into the database.
func (r *Repository) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	query := `
		INSERT INTO api_keys (id, key_hash, key_prefix, name, tier, is_active, requests_today, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		key.ID,
		key.KeyHash,
		key.KeyPrefix,
		key.Name,
		key.Tier,
		key.IsActive,
		key.RequestsToday,
		key.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create API key: %w", err)
	}

	return nil
}

// GetAPIKeyByID retrieves an API key by its ID.
func (r *Repository) GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error) {
	query := `
		SELECT id, key_hash, key_prefix, name, tier, is_active, requests_today, last_request, created_at
		FROM api_keys
		WHERE id = $1
	`

	return scanAPIKey(r.pool.QueryRow(ctx, query, id))
}

// GetAPIKeysByPrefix retrieves all active API keys matching a prefix.
// Used during authentication to find candidate keys for verification.
func (r *Repository) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	query := `
		SELECT id, key_hash, key_prefix, name, tier, is_active, requests_today, last_request, created_at
		FROM api_keys
		WHERE key_prefix = $1 AND is_active
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get API keys by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*model.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan API key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API keys: %w", err)
	}

	return keys, nil
}

// DeactivateAPIKey deactivates an API key. Keys are never deleted.
func (r *Repository) DeactivateAPIKey(ctx context.Context, id string) error {
	query := `
		UPDATE api_keys
		SET is_active = FALSE
		WHERE id = $1 AND is_active
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate API key: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}

	return nil
}

// RolloverAndGet implements quota.KeyStore. The day rollover and the
// read run in a single UPDATE so concurrent admissions for the same key
// serialize on the row lock and never observe a stale counter.
func (r *Repository) RolloverAndGet(ctx context.Context, keyID string, today time.Time) (*model.APIKey, error) {
	query := `
		UPDATE api_keys
		SET requests_today = CASE
			WHEN last_request IS NOT NULL AND (last_request AT TIME ZONE 'UTC')::date < $2::date
			THEN 0
			ELSE requests_today
		END
		WHERE id = $1 AND is_active
		RETURNING id, key_hash, key_prefix, name, tier, is_active, requests_today, last_request, created_at
	`

	key, err := scanAPIKey(r.pool.QueryRow(ctx, query, keyID, today.UTC()))
	if err != nil {
		if errors.Is(err, ErrAPIKeyNotFound) {
			return nil, quota.ErrKeyNotFound
		}
		return nil, err
	}
	return key, nil
}

// IncrementUsage implements quota.KeyStore. The increment is a single
// atomic UPDATE; concurrent commits for the same key never lose updates.
func (r *Repository) IncrementUsage(ctx context.Context, keyID string, n int, now time.Time) error {
	query := `
		UPDATE api_keys
		SET requests_today = requests_today + $2,
		    last_request = $3
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, keyID, n, now.UTC())
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}

	if result.RowsAffected() == 0 {
		return quota.ErrKeyNotFound
	}

	return nil
}

// scanAPIKey scans a single row into an APIKey model.
func scanAPIKey(row pgx.Row) (*model.APIKey, error) {
	var key model.APIKey

	err := row.Scan(
		&key.ID,
		&key.KeyHash,
		&key.KeyPrefix,
		&key.Name,
		&key.Tier,
		&key.IsActive,
		&key.RequestsToday,
		&key.LastRequest,
		&key.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to scan API key: %w", err)
	}

	return &key, nil
}
