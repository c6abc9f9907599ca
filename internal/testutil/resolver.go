package testutil

import (
	"context"
	"errors"
	"net"
	"sync"
)

// ErrNXDomain simulates a resolver NXDOMAIN failure.
var ErrNXDomain = errors.New("no such host")

// Resolver is a scripted DNS resolver for tests. Domains registered via
// WithMX/WithA resolve; everything else fails with ErrNXDomain.
type Resolver struct {
	mu      sync.Mutex
	mx      map[string][]*net.MX
	a       map[string][]net.IPAddr
	lookups int
}

// NewResolver creates an empty scripted resolver.
func NewResolver() *Resolver {
	return &Resolver{
		mx: make(map[string][]*net.MX),
		a:  make(map[string][]net.IPAddr),
	}
}

// WithMX registers MX records for a domain.
func (r *Resolver) WithMX(domain string, hosts ...string) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make([]*net.MX, 0, len(hosts))
	for i, host := range hosts {
		records = append(records, &net.MX{Host: host, Pref: uint16(10 * (i + 1))})
	}
	r.mx[domain] = records
	return r
}

// WithA registers an address record for a domain.
func (r *Resolver) WithA(domain string, addrs ...string) *Resolver {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make([]net.IPAddr, 0, len(addrs))
	for _, addr := range addrs {
		records = append(records, net.IPAddr{IP: net.ParseIP(addr)})
	}
	r.a[domain] = records
	return r
}

// LookupMX implements validator.Resolver.
func (r *Resolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if records, ok := r.mx[name]; ok {
		return records, nil
	}
	return nil, ErrNXDomain
}

// LookupIPAddr implements validator.Resolver.
func (r *Resolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if records, ok := r.a[host]; ok {
		return records, nil
	}
	return nil, ErrNXDomain
}

// Lookups returns the total number of lookup calls observed.
func (r *Resolver) Lookups() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}
