package validator_test

import (
	"context"
	"math"
	"testing"

	"github.com/verimail/verimail/internal/testutil"
	"github.com/verimail/verimail/internal/validator"
)

// closeTo absorbs float64 rounding in summed scores: the bonus chain
// 0.5+0.2+0.2+0.1 lands a few ulps under 1.0.
func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestScore_KnownProviderShortCircuits(t *testing.T) {
	t.Parallel()

	// No records registered: if the engine performed lookups, the score
	// would be 0.2, not the fixed provider score.
	resolver := testutil.NewResolver()
	engine := validator.NewReputationEngine(resolver, 0)

	testCases := []struct {
		domain string
		want   float64
	}{
		{domain: "gmail.com", want: 0.95},
		{domain: "yahoo.com", want: 0.90},
		{domain: "outlook.com", want: 0.90},
		{domain: "hotmail.com", want: 0.85},
		{domain: "aol.com", want: 0.80},
		{domain: "icloud.com", want: 0.85},
		{domain: "protonmail.com", want: 0.80},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.domain, func(t *testing.T) {
			if got := engine.Score(context.Background(), tc.domain); got != tc.want {
				t.Errorf("Score(%q) = %v, want %v", tc.domain, got, tc.want)
			}
		})
	}

	if n := resolver.Lookups(); n != 0 {
		t.Errorf("known providers triggered %d DNS lookups, want 0", n)
	}
}

func TestScore_LiveSignals(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		domain  string
		mx      bool
		a       bool
		want    float64
	}{
		{
			// 0.5 + 0.2 (A) + 0.2 (MX) + 0.1 (short) = 1.0
			name:   "all signals short domain",
			domain: "corp.io",
			mx:     true,
			a:      true,
			want:   1.0,
		},
		{
			// 0.5 + 0.2 (A) + 0.2 (MX), no length bonus
			name:   "all signals long domain",
			domain: "very-long-company-name.com",
			mx:     true,
			a:      true,
			want:   0.9,
		},
		{
			// 0.5 + 0.2 (A) + 0.1 (short), no MX
			name:   "address only",
			domain: "webonly.io",
			mx:     false,
			a:      true,
			want:   0.8,
		},
		{
			// 0.5 - 0.3, no bonuses once the address lookup fails
			name:   "nothing resolves",
			domain: "dead.example",
			mx:     false,
			a:      false,
			want:   0.2,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resolver := testutil.NewResolver()
			if tc.mx {
				resolver.WithMX(tc.domain, "mx."+tc.domain)
			}
			if tc.a {
				resolver.WithA(tc.domain, "203.0.113.5")
			}
			engine := validator.NewReputationEngine(resolver, 0)

			if got := engine.Score(context.Background(), tc.domain); !closeTo(got, tc.want) {
				t.Errorf("Score(%q) = %v, want %v", tc.domain, got, tc.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		score float64
		want  string
	}{
		{score: 1.0, want: validator.CategoryExcellent},
		{score: 0.8, want: validator.CategoryExcellent},
		{score: 0.79, want: validator.CategoryGood},
		{score: 0.6, want: validator.CategoryGood},
		{score: 0.59, want: validator.CategoryFair},
		{score: 0.4, want: validator.CategoryFair},
		{score: 0.39, want: validator.CategoryPoor},
		{score: 0.0, want: validator.CategoryPoor},
	}

	for _, tc := range testCases {
		if got := validator.Classify(tc.score); got != tc.want {
			t.Errorf("Classify(%v) = %q, want %q", tc.score, got, tc.want)
		}
	}
}

func TestDomainReputation_Report(t *testing.T) {
	t.Parallel()

	resolver := testutil.NewResolver().
		WithMX("corp.io", "mx.corp.io").
		WithA("corp.io", "203.0.113.5")
	v := validator.New(resolver, 0)

	report := v.DomainReputation(context.Background(), "  Corp.IO  ")

	if report.Domain != "corp.io" {
		t.Errorf("Domain = %q, want corp.io (trimmed, lowercased)", report.Domain)
	}
	if !closeTo(report.ReputationScore, 1.0) {
		t.Errorf("ReputationScore = %v, want 1.0", report.ReputationScore)
	}
	if !report.HasMX {
		t.Error("HasMX = false, want true")
	}
	if report.IsDisposable {
		t.Error("IsDisposable = true, want false")
	}
	if report.Category != validator.CategoryExcellent {
		t.Errorf("Category = %q, want excellent", report.Category)
	}
}

func TestDomainReputation_DisposableDomain(t *testing.T) {
	t.Parallel()

	resolver := testutil.NewResolver()
	v := validator.New(resolver, 0)

	report := v.DomainReputation(context.Background(), "mailinator.com")
	if !report.IsDisposable {
		t.Error("IsDisposable = false, want true")
	}
	if report.Category != validator.CategoryPoor {
		t.Errorf("Category = %q, want poor", report.Category)
	}
}

func TestIsDisposableDomain(t *testing.T) {
	t.Parallel()

	if !validator.IsDisposableDomain("MAILINATOR.COM") {
		t.Error("disposable check should be case-insensitive")
	}
	if validator.IsDisposableDomain("example.com") {
		t.Error("example.com is not disposable")
	}
}

func TestIsRoleAccount(t *testing.T) {
	t.Parallel()

	for _, local := range []string{"admin", "Postmaster", "NO-REPLY", "abuse", "root"} {
		if !validator.IsRoleAccount(local) {
			t.Errorf("IsRoleAccount(%q) = false, want true", local)
		}
	}
	if validator.IsRoleAccount("alice") {
		t.Error("IsRoleAccount(alice) = true, want false")
	}
}
