package model

// ValidationVerdict is the result of validating a single email address.
// Immutable once produced; a pure function of the input email, DNS state,
// and the static disposable/role sets.
type ValidationVerdict struct {
	Email            string   `json:"email"`
	IsValid          bool     `json:"is_valid"`
	SyntaxValid      bool     `json:"syntax_valid"`
	Domain           string   `json:"domain,omitempty"`
	MXValid          bool     `json:"mx_valid"`
	IsDisposable     bool     `json:"is_disposable"`
	IsRoleAccount    bool     `json:"is_role_account"`
	DomainReputation float64  `json:"domain_reputation"`
	Errors           []string `json:"errors"`
}

// ReputationReport is the detailed reputation view for a domain.
type ReputationReport struct {
	Domain          string  `json:"domain"`
	ReputationScore float64 `json:"reputation_score"`
	HasMX           bool    `json:"has_mx"`
	IsDisposable    bool    `json:"is_disposable"`
	Category        string  `json:"category"`
}

// BulkResult aggregates the verdicts of a bulk validation call.
type BulkResult struct {
	Results        []ValidationVerdict `json:"results"`
	TotalProcessed int                 `json:"total_processed"`
	TotalValid     int                 `json:"total_valid"`
}
