package validator

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/verimail/verimail/internal/model"
)

// Verdict error reasons.
const (
	reasonInvalidSyntax = "Invalid email syntax"
	reasonDisposable    = "Disposable email address"
	reasonNoMX          = "No valid MX records found"
)

// syntaxRegex validates basic email syntax: local part of letters,
// digits and ._%+-, domain of letters, digits, dots and hyphens, with
// a final label of at least two letters.
var syntaxRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validator orchestrates syntax checking, disposable/role detection,
// MX validation and reputation scoring into a single verdict.
type Validator struct {
	resolver   Resolver
	reputation *ReputationEngine
	timeout    time.Duration
}

// New creates a Validator backed by the given resolver. A zero timeout
// falls back to DefaultLookupTimeout.
func New(resolver Resolver, timeout time.Duration) *Validator {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &Validator{
		resolver:   resolver,
		reputation: NewReputationEngine(resolver, timeout),
		timeout:    timeout,
	}
}

// Reputation exposes the validator's reputation engine.
func (v *Validator) Reputation() *ReputationEngine {
	return v.reputation
}

// Validate produces a verdict for a single email address.
//
// The function is total: malformed input yields a verdict with
// syntax_valid=false, never an error. DNS failures degrade fields to
// false/low-score rather than aborting.
func (v *Validator) Validate(ctx context.Context, email string) model.ValidationVerdict {
	verdict := model.ValidationVerdict{
		Email:  email,
		Errors: []string{},
	}

	if !syntaxRegex.MatchString(email) {
		verdict.Errors = append(verdict.Errors, reasonInvalidSyntax)
		return verdict
	}
	verdict.SyntaxValid = true

	// Split on the last @; the regex guarantees one is present.
	at := strings.LastIndex(email, "@")
	local := email[:at]
	domain := strings.ToLower(email[at+1:])
	verdict.Domain = domain

	verdict.IsDisposable = IsDisposableDomain(domain)
	if verdict.IsDisposable {
		verdict.Errors = append(verdict.Errors, reasonDisposable)
	}

	verdict.IsRoleAccount = IsRoleAccount(local)

	verdict.MXValid = hasMXRecords(ctx, v.resolver, v.timeout, domain)
	if !verdict.MXValid {
		verdict.Errors = append(verdict.Errors, reasonNoMX)
	}

	verdict.DomainReputation = v.reputation.Score(ctx, domain)

	// Disposability and low reputation each independently disqualify
	// an otherwise deliverable address.
	verdict.IsValid = verdict.SyntaxValid &&
		verdict.MXValid &&
		!verdict.IsDisposable &&
		verdict.DomainReputation > 0.3

	return verdict
}

// DomainReputation builds the reputation report for a bare domain.
func (v *Validator) DomainReputation(ctx context.Context, domain string) model.ReputationReport {
	domain = strings.ToLower(strings.TrimSpace(domain))
	facts := v.reputation.Report(ctx, domain)
	return model.ReputationReport{
		Domain:          domain,
		ReputationScore: facts.Score,
		HasMX:           facts.HasMX,
		IsDisposable:    facts.IsDisposable,
		Category:        facts.Category,
	}
}
