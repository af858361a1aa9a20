package resolver

import (
	"context"
	"net"
	"time"
)

// Resolver resolves remote hostnames with a per-lookup timeout.
type Resolver struct {
	timeout  time.Duration
	resolver *net.Resolver
}

func New(timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{timeout: timeout, resolver: net.DefaultResolver}
}

// LookupHost returns the addresses of host. IP literals resolve to
// themselves without a query.
func (r *Resolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []string{ip.String()}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	addrs, err := r.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}
