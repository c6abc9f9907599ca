// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/verimail/verimail/internal/auth"
	"github.com/verimail/verimail/internal/cache"
	"github.com/verimail/verimail/internal/metrics"
	"github.com/verimail/verimail/internal/model"
	"github.com/verimail/verimail/internal/quota"
	"github.com/verimail/verimail/internal/usage"
	"github.com/verimail/verimail/internal/validator"
)

// Service errors.
var (
	ErrMissingEmail  = errors.New("email is required")
	ErrMissingDomain = errors.New("domain is required")
	ErrEmptyBatch    = errors.New("emails array is empty")
	ErrBatchTooLarge = errors.New("too many emails in one request")
)

// MaxBulkEmails is the maximum batch size for bulk validation.
const MaxBulkEmails = 100

// ValidationService orchestrates admission, validation, and usage
// accounting for the API endpoints.
type ValidationService struct {
	ledger     *quota.Ledger
	validator  *validator.Validator
	usageStore usage.Store
	repCache   *cache.Cache // optional; nil disables reputation caching
	metrics    metrics.Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewValidationService creates a ValidationService. A nil metrics
// recorder defaults to noop, a nil clock to time.Now.
func NewValidationService(
	ledger *quota.Ledger,
	v *validator.Validator,
	usageStore usage.Store,
	repCache *cache.Cache,
	recorder metrics.Recorder,
	logger *slog.Logger,
	now func() time.Time,
) *ValidationService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if now == nil {
		now = time.Now
	}
	return &ValidationService{
		ledger:     ledger,
		validator:  v,
		usageStore: usageStore,
		repCache:   repCache,
		metrics:    recorder,
		logger:     logger,
		now:        now,
	}
}

// ValidateOne validates a single email address for the authenticated
// key: admit against the daily quota, validate, commit one unit.
func (s *ValidationService) ValidateOne(ctx context.Context, email string) (*model.ValidationVerdict, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrMissingEmail
	}

	keyID := auth.KeyIDFromContext(ctx)
	if _, err := s.ledger.Admit(ctx, keyID); err != nil {
		s.observeRejection(err)
		return nil, err
	}

	start := s.now()
	verdict := s.validator.Validate(ctx, email)
	s.observeVerdict(verdict, s.now().Sub(start))

	s.commit(ctx, keyID, 1)

	return &verdict, nil
}

// ValidateBulk validates up to MaxBulkEmails addresses in one call.
// The whole batch is admitted up front; when the remaining daily
// allowance cannot cover it, nothing is validated or consumed. Blank
// entries are skipped and do not count against the quota.
func (s *ValidationService) ValidateBulk(ctx context.Context, emails []string) (*model.BulkResult, error) {
	if len(emails) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(emails) > MaxBulkEmails {
		return nil, fmt.Errorf("%w: got %d, maximum is %d", ErrBatchTooLarge, len(emails), MaxBulkEmails)
	}

	keyID := auth.KeyIDFromContext(ctx)
	if _, err := s.ledger.AdmitBatch(ctx, keyID, len(emails)); err != nil {
		s.observeRejection(err)
		return nil, err
	}

	result := &model.BulkResult{
		Results: make([]model.ValidationVerdict, 0, len(emails)),
	}

	for _, email := range emails {
		if strings.TrimSpace(email) == "" {
			continue
		}

		start := s.now()
		verdict := s.validator.Validate(ctx, email)
		s.observeVerdict(verdict, s.now().Sub(start))

		result.Results = append(result.Results, verdict)
		if verdict.IsValid {
			result.TotalValid++
		}
	}
	result.TotalProcessed = len(result.Results)

	s.commit(ctx, keyID, result.TotalProcessed)

	return result, nil
}

// DomainReputation builds a reputation report for a bare domain.
// Reports are cached; a cache hit still consumes one quota unit, the
// call is metered on admission, not on DNS work.
func (s *ValidationService) DomainReputation(ctx context.Context, domain string) (*model.ReputationReport, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return nil, ErrMissingDomain
	}

	keyID := auth.KeyIDFromContext(ctx)
	if _, err := s.ledger.Admit(ctx, keyID); err != nil {
		s.observeRejection(err)
		return nil, err
	}

	var report *model.ReputationReport
	if s.repCache != nil {
		report, _ = s.repCache.GetReputation(ctx, domain)
	}

	if report == nil {
		fresh := s.validator.DomainReputation(ctx, domain)
		report = &fresh
		if s.repCache != nil {
			if err := s.repCache.SetReputation(ctx, domain, report); err != nil {
				s.logger.Warn("reputation cache write failed",
					slog.String("domain", domain),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	s.commit(ctx, keyID, 1)

	return report, nil
}

// UsageStats reports quota standing and historical usage for the
// authenticated key. Stats calls do not consume quota.
func (s *ValidationService) UsageStats(ctx context.Context) (*model.UsageStats, error) {
	keyID := auth.KeyIDFromContext(ctx)

	key, err := s.ledger.Inspect(ctx, keyID)
	if err != nil {
		return nil, err
	}

	total, week, err := usage.HistoricalCounts(ctx, s.usageStore, keyID, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("count historical usage: %w", err)
	}

	return &model.UsageStats{
		Tier:             key.Tier,
		DailyLimit:       key.DailyLimit(),
		RequestsToday:    key.RequestsToday,
		RemainingToday:   key.Remaining(),
		TotalRequests:    total,
		RequestsThisWeek: week,
		CreatedAt:        key.CreatedAt,
	}, nil
}

// observeVerdict records validation metrics for one verdict.
func (s *ValidationService) observeVerdict(verdict model.ValidationVerdict, elapsed time.Duration) {
	result := "invalid"
	if verdict.IsValid {
		result = "valid"
	}
	s.metrics.IncValidation(result)
	s.metrics.ObserveValidationDuration(elapsed)
}

// observeRejection records admission-rejection metrics.
func (s *ValidationService) observeRejection(err error) {
	var quotaErr *quota.QuotaExceededError
	var insufficientErr *quota.InsufficientQuotaError
	switch {
	case errors.As(err, &quotaErr):
		s.metrics.IncQuotaRejected("exceeded")
	case errors.As(err, &insufficientErr):
		s.metrics.IncQuotaRejected("insufficient")
	}
}

// commit records quota consumption for an admitted call. A failed
// commit is logged but does not fail the request; the caller already
// received its verdicts.
func (s *ValidationService) commit(ctx context.Context, keyID string, n int) {
	if err := s.ledger.Commit(ctx, keyID, n); err != nil {
		s.logger.Error("usage commit failed",
			slog.String("key_id", keyID),
			slog.Int("count", n),
			slog.String("error", err.Error()),
		)
	}
}
