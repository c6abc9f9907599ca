package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/verimail/verimail/internal/model"
)

// InsertUsageRecords bulk-inserts usage records via COPY.
// Implements usage.Store.
func (r *Repository) InsertUsageRecords(ctx context.Context, records []*model.UsageRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(records))
	for _, record := range records {
		rows = append(rows, []any{
			record.ID,
			record.APIKeyID,
			record.Endpoint,
			record.Timestamp.UTC(),
			record.IPAddress,
			record.UserAgent,
			record.ResponseTime.Milliseconds(),
			record.StatusCode,
			record.EmailCount,
		})
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"api_usage"},
		[]string{"id", "api_key_id", "endpoint", "timestamp", "ip_address", "user_agent", "response_time_ms", "status_code", "email_count"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage records: %w", err)
	}

	return nil
}

// CountUsage counts usage records for a key since the given instant.
// A zero since counts all records. Implements usage.Store.
func (r *Repository) CountUsage(ctx context.Context, keyID string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM api_usage
		WHERE api_key_id = $1 AND timestamp > $2
	`

	var count int64
	if err := r.pool.QueryRow(ctx, query, keyID, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count usage: %w", err)
	}

	return count, nil
}
