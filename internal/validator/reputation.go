package validator

import (
	"context"
	"time"
)

// Reputation categories by score threshold.
const (
	CategoryExcellent = "excellent" // >= 0.8
	CategoryGood      = "good"      // >= 0.6
	CategoryFair      = "fair"      // >= 0.4
	CategoryPoor      = "poor"      // < 0.4
)

// DefaultLookupTimeout bounds each DNS lookup so a slow resolver cannot
// stall a request handler.
const DefaultLookupTimeout = 3 * time.Second

// knownProviders maps major mail providers to fixed reputation scores.
// Matching domains skip live DNS lookups entirely.
var knownProviders = map[string]float64{
	"gmail.com":      0.95,
	"yahoo.com":      0.90,
	"outlook.com":    0.90,
	"hotmail.com":    0.85,
	"aol.com":        0.80,
	"icloud.com":     0.85,
	"protonmail.com": 0.80,
}

// ReputationEngine computes deterministic reputation scores for domains
// from static knowledge plus live DNS signals.
type ReputationEngine struct {
	resolver Resolver
	timeout  time.Duration
}

// NewReputationEngine creates a ReputationEngine backed by the given
// resolver. A zero timeout falls back to DefaultLookupTimeout.
func NewReputationEngine(resolver Resolver, timeout time.Duration) *ReputationEngine {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &ReputationEngine{
		resolver: resolver,
		timeout:  timeout,
	}
}

// Score computes a reputation score in [0,1] for a domain.
//
// Known providers short-circuit to their fixed score. For other domains
// the score starts at 0.5 and is adjusted by live signals: +0.2 for a
// resolvable address record, +0.2 for MX records, +0.1 for a domain
// shorter than 15 characters. If the address record does not resolve at
// all, the score drops by 0.3 and no bonuses apply.
func (e *ReputationEngine) Score(ctx context.Context, domain string) float64 {
	if fixed, ok := knownProviders[domain]; ok {
		return fixed
	}

	score := 0.5

	if hasAddressRecord(ctx, e.resolver, e.timeout, domain) {
		score += 0.2

		if hasMXRecords(ctx, e.resolver, e.timeout, domain) {
			score += 0.2
		}

		// Shorter established domains tend to be more reputable.
		if len(domain) < 15 {
			score += 0.1
		}
	} else {
		score -= 0.3
	}

	return clamp(score)
}

// Classify maps a score to its reputation category.
func Classify(score float64) string {
	switch {
	case score >= 0.8:
		return CategoryExcellent
	case score >= 0.6:
		return CategoryGood
	case score >= 0.4:
		return CategoryFair
	default:
		return CategoryPoor
	}
}

// ReputationFacts bundles the raw signals behind a reputation report.
type ReputationFacts struct {
	Score        float64
	HasMX        bool
	IsDisposable bool
	Category     string
}

// Report gathers the full reputation picture for a domain.
func (e *ReputationEngine) Report(ctx context.Context, domain string) ReputationFacts {
	score := e.Score(ctx, domain)
	return ReputationFacts{
		Score:        score,
		HasMX:        hasMXRecords(ctx, e.resolver, e.timeout, domain),
		IsDisposable: IsDisposableDomain(domain),
		Category:     Classify(score),
	}
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
