package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/verimail/verimail/internal/auth"
	"github.com/verimail/verimail/internal/handler/dto"
	"github.com/verimail/verimail/internal/model"
	"github.com/verimail/verimail/internal/quota"
	"github.com/verimail/verimail/internal/service"
	"github.com/verimail/verimail/internal/usage"
)

// ValidationHandler handles HTTP requests for validation operations.
type ValidationHandler struct {
	svc    *service.ValidationService
	usage  *usage.Recorder // optional; nil disables usage recording
	logger *slog.Logger
	now    func() time.Time
}

// NewValidationHandler creates a new ValidationHandler. A nil clock
// defaults to time.Now.
func NewValidationHandler(svc *service.ValidationService, recorder *usage.Recorder, logger *slog.Logger, now func() time.Time) *ValidationHandler {
	if now == nil {
		now = time.Now
	}
	return &ValidationHandler{
		svc:    svc,
		usage:  recorder,
		logger: logger,
		now:    now,
	}
}

// ValidateOne handles POST /api/validate.
func (h *ValidationHandler) ValidateOne(w http.ResponseWriter, r *http.Request) {
	start := h.now()

	var req dto.ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		h.recordUsage(r, start, http.StatusBadRequest, 0)
		return
	}

	verdict, err := h.svc.ValidateOne(r.Context(), req.Email)
	if err != nil {
		status := h.handleServiceError(w, err)
		h.recordUsage(r, start, status, 0)
		return
	}

	h.logger.Info("email_validated",
		"key_id", auth.KeyIDFromContext(r.Context()),
		"domain", verdict.Domain,
		"is_valid", verdict.IsValid,
	)

	writeJSON(w, http.StatusOK, verdict)
	h.recordUsage(r, start, http.StatusOK, 1)
}

// ValidateBulk handles POST /api/validate/bulk.
func (h *ValidationHandler) ValidateBulk(w http.ResponseWriter, r *http.Request) {
	start := h.now()

	var req dto.BulkValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		h.recordUsage(r, start, http.StatusBadRequest, 0)
		return
	}

	result, err := h.svc.ValidateBulk(r.Context(), req.Emails)
	if err != nil {
		status := h.handleServiceError(w, err)
		h.recordUsage(r, start, status, 0)
		return
	}

	h.logger.Info("bulk_validated",
		"key_id", auth.KeyIDFromContext(r.Context()),
		"total_processed", result.TotalProcessed,
		"total_valid", result.TotalValid,
	)

	writeJSON(w, http.StatusOK, result)
	h.recordUsage(r, start, http.StatusOK, result.TotalProcessed)
}

// Reputation handles GET /api/domain/reputation.
func (h *ValidationHandler) Reputation(w http.ResponseWriter, r *http.Request) {
	start := h.now()

	report, err := h.svc.DomainReputation(r.Context(), r.URL.Query().Get("domain"))
	if err != nil {
		status := h.handleServiceError(w, err)
		h.recordUsage(r, start, status, 0)
		return
	}

	writeJSON(w, http.StatusOK, report)
	h.recordUsage(r, start, http.StatusOK, 1)
}

// Stats handles GET /api/stats.
func (h *ValidationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	start := h.now()

	stats, err := h.svc.UsageStats(r.Context())
	if err != nil {
		status := h.handleServiceError(w, err)
		h.recordUsage(r, start, status, 0)
		return
	}

	writeJSON(w, http.StatusOK, stats)
	h.recordUsage(r, start, http.StatusOK, 0)
}

// handleServiceError maps service errors to HTTP responses and returns
// the status code written.
func (h *ValidationHandler) handleServiceError(w http.ResponseWriter, err error) int {
	var quotaErr *quota.QuotaExceededError
	var insufficientErr *quota.InsufficientQuotaError

	switch {
	case errors.Is(err, service.ErrMissingEmail):
		h.writeError(w, http.StatusBadRequest, "MISSING_EMAIL", "Email is required")
		return http.StatusBadRequest
	case errors.Is(err, service.ErrMissingDomain):
		h.writeError(w, http.StatusBadRequest, "MISSING_DOMAIN", "Domain parameter is required")
		return http.StatusBadRequest
	case errors.Is(err, service.ErrEmptyBatch):
		h.writeError(w, http.StatusBadRequest, "EMPTY_BATCH", "Emails array must not be empty")
		return http.StatusBadRequest
	case errors.Is(err, service.ErrBatchTooLarge):
		h.writeError(w, http.StatusBadRequest, "BATCH_TOO_LARGE", err.Error())
		return http.StatusBadRequest
	case errors.Is(err, quota.ErrKeyMissing), errors.Is(err, quota.ErrKeyInvalid):
		h.writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
		return http.StatusUnauthorized
	case errors.As(err, &quotaErr):
		writeJSON(w, http.StatusTooManyRequests, dto.ErrorResponse{
			Error: "Daily quota exceeded",
			Code:  "QUOTA_EXCEEDED",
			Tier:  quotaErr.Tier,
			Limit: quotaErr.Limit,
		})
		return http.StatusTooManyRequests
	case errors.As(err, &insufficientErr):
		remaining := insufficientErr.Remaining
		writeJSON(w, http.StatusTooManyRequests, dto.ErrorResponse{
			Error:     "Insufficient quota for batch",
			Code:      "INSUFFICIENT_QUOTA",
			Remaining: &remaining,
		})
		return http.StatusTooManyRequests
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
		return http.StatusInternalServerError
	}
}

// writeError writes an error response.
func (h *ValidationHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// recordUsage queues one usage record for the request.
func (h *ValidationHandler) recordUsage(r *http.Request, start time.Time, status, emailCount int) {
	if h.usage == nil {
		return
	}

	h.usage.Record(&model.UsageRecord{
		ID:           ulid.Make().String(),
		APIKeyID:     auth.KeyIDFromContext(r.Context()),
		Endpoint:     r.URL.Path,
		Timestamp:    start.UTC(),
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
		ResponseTime: h.now().Sub(start),
		StatusCode:   status,
		EmailCount:   emailCount,
	})
}
