// Package model defines domain entities for the application.
package model

import "time"

// Tier constants. A tier is a named quota class with a daily request limit.
const (
	TierFree    = "free"
	TierBasic   = "basic"
	TierPremium = "premium"
)

// DailyLimits maps tier names to their daily request limits.
var DailyLimits = map[string]int{
	TierFree:    50,
	TierBasic:   1500,
	TierPremium: 6000,
}

// DefaultDailyLimit applies to keys with an unknown tier.
const DefaultDailyLimit = 100

// WindowLimit defines short-horizon rate limit parameters for an endpoint.
type WindowLimit struct {
	Requests int
	Window   time.Duration
}

// APIKey represents an API key entity.
type APIKey struct {
	ID            string     `json:"id"`
	KeyHash       string     `json:"-"` // Never serialize
	KeyPrefix     string     `json:"key_prefix"`
	Name          string     `json:"name,omitempty"`
	Tier          string     `json:"tier"`
	IsActive      bool       `json:"is_active"`
	RequestsToday int        `json:"requests_today"`
	LastRequest   *time.Time `json:"last_request,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// DailyLimit returns the daily request limit for this key's tier.
// Unknown tiers fall back to DefaultDailyLimit.
func (k *APIKey) DailyLimit() int {
	if limit, ok := DailyLimits[k.Tier]; ok {
		return limit
	}
	return DefaultDailyLimit
}

// Remaining returns how many requests are left today.
// Never negative, even if the counter overshot the limit.
func (k *APIKey) Remaining() int {
	remaining := k.DailyLimit() - k.RequestsToday
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AuthContext holds authenticated request context.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	KeyID     string
	KeyPrefix string
	Tier      string
}
