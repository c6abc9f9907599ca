// Package validator implements email verification: syntax checking,
// disposable and role-account detection, MX validation, and domain
// reputation scoring.
package validator

import (
	"context"
	"net"
	"time"
)

// Resolver abstracts the subset of net.Resolver used for validation.
// *net.Resolver satisfies this interface directly.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// hasMXRecords resolves MX records for a domain with a bounded timeout.
// A failed or empty lookup is a normal outcome, not an error: the domain
// simply cannot receive mail as far as we can tell. No retries.
func hasMXRecords(ctx context.Context, resolver Resolver, timeout time.Duration, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	records, err := resolver.LookupMX(ctx, domain)
	return err == nil && len(records) > 0
}

// hasAddressRecord resolves A/AAAA records for a domain with a bounded
// timeout. Timeout and NXDOMAIN degrade uniformly to false.
func hasAddressRecord(ctx context.Context, resolver Resolver, timeout time.Duration, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := resolver.LookupIPAddr(ctx, domain)
	return err == nil && len(addrs) > 0
}
