package model

import "time"

// UsageRecord is an append-only fact about a single API call.
// Written once by the usage recorder, never mutated.
type UsageRecord struct {
	ID           string        `json:"id"`
	APIKeyID     string        `json:"api_key_id"`
	Endpoint     string        `json:"endpoint"`
	Timestamp    time.Time     `json:"timestamp"`
	IPAddress    string        `json:"ip_address,omitempty"`
	UserAgent    string        `json:"user_agent,omitempty"`
	ResponseTime time.Duration `json:"response_time"`
	StatusCode   int           `json:"status_code"`
	EmailCount   int           `json:"email_count"`
}

// UsageStats is the usage summary returned by the stats endpoint.
// Historical counts come from the usage log; the daily counter comes
// from the quota ledger.
type UsageStats struct {
	Tier             string    `json:"tier"`
	DailyLimit       int       `json:"daily_limit"`
	RequestsToday    int       `json:"requests_today"`
	RemainingToday   int       `json:"remaining_today"`
	TotalRequests    int64     `json:"total_requests"`
	RequestsThisWeek int64     `json:"requests_this_week"`
	CreatedAt        time.Time `json:"created_at"`
}
