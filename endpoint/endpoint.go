// Package endpoint validates distributor endpoints and discovers them
// through DNS SRV records.
//
// A distributor declares the address it serves content from at
// enrollment. Validate checks the declared string is well formed;
// Discover resolves the SRV record set a distributor domain publishes
// under _rights._tcp, optionally with DNSSEC validation.
package endpoint

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"
)

// SRVService is the SRV service label distributors publish under:
// _rights._tcp.{domain}.
const SRVService = "rights"

// Validate checks that a declared endpoint is non-empty and either a
// host:port pair or an http(s) URL with a host.
func Validate(endpoint string) error {
	if strings.TrimSpace(endpoint) == "" {
		return ErrEmptyEndpoint
	}
	if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("%w: %q: %w", ErrInvalidEndpoint, endpoint, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("%w: %q: missing host", ErrInvalidEndpoint, endpoint)
		}
		return nil
	}
	if _, _, err := net.SplitHostPort(endpoint); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrInvalidEndpoint, endpoint, err)
	}
	return nil
}

// Host extracts the host name from a declared endpoint, stripping any
// URL scheme or port.
func Host(endpoint string) (string, error) {
	if err := Validate(endpoint); err != nil {
		return "", err
	}
	if strings.Contains(endpoint, "://") {
		u, _ := url.Parse(endpoint)
		return u.Hostname(), nil
	}
	host, _, _ := net.SplitHostPort(endpoint)
	return host, nil
}

// Verify validates a declared endpoint and confirms its host publishes
// at least one _rights._tcp SRV record through the given resolver.
func Verify(endpoint string, resolver Resolver) error {
	host, err := Host(endpoint)
	if err != nil {
		return err
	}
	_, err = DiscoverWithResolver(host, resolver)
	return err
}

// Resolver defines the interface for DNS lookups.
// This allows tests to mock DNS resolution.
type Resolver interface {
	// LookupSRV looks up SRV records for the given service, proto, and name.
	LookupSRV(service, proto, name string) (string, []*net.SRV, error)
}

// defaultResolver wraps the standard net package DNS functions.
type defaultResolver struct{}

func (d *defaultResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	return net.LookupSRV(service, proto, name)
}

// DefaultResolver is the production DNS resolver using the net package.
var DefaultResolver Resolver = &defaultResolver{}

// Discover resolves the _rights._tcp SRV records for a distributor
// domain and returns the endpoints (host:port) sorted by priority
// ascending, then weight descending.
func Discover(domain string) ([]string, error) {
	return DiscoverWithResolver(domain, DefaultResolver)
}

// DiscoverWithResolver resolves SRV records using the provided resolver.
func DiscoverWithResolver(domain string, resolver Resolver) ([]string, error) {
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrDNSLookupFailed)
	}

	_, addrs, err := resolver.LookupSRV(SRVService, "tcp", domain)
	if err != nil {
		return nil, fmt.Errorf("%w: SRV lookup for _%s._tcp.%s: %w", ErrDNSLookupFailed, SRVService, domain, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no SRV records for _%s._tcp.%s", ErrNoEndpoints, SRVService, domain)
	}

	sort.Slice(addrs, func(i, j int) bool {
		if addrs[i].Priority != addrs[j].Priority {
			return addrs[i].Priority < addrs[j].Priority
		}
		return addrs[i].Weight > addrs[j].Weight
	})

	endpoints := make([]string, 0, len(addrs))
	for _, srv := range addrs {
		host := strings.TrimSuffix(srv.Target, ".")
		endpoints = append(endpoints, fmt.Sprintf("%s:%d", host, srv.Port))
	}
	return endpoints, nil
}
