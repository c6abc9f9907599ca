// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// ValidateRequest represents the request body for single validation.
type ValidateRequest struct {
	Email string `json:"email"`
}

// BulkValidateRequest represents the request body for bulk validation.
type BulkValidateRequest struct {
	Emails []string `json:"emails"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`

	// Quota detail, set on 429 responses only.
	Tier      string `json:"tier,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}
