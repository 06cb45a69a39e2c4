package endpoint

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// defaultUpstream is the default recursive resolver for DNSSEC queries.
	defaultUpstream = "8.8.8.8:53"

	// dnssecTimeout is the timeout for DNSSEC queries.
	dnssecTimeout = 10 * time.Second

	// edns0BufSize is the EDNS0 UDP buffer size.
	edns0BufSize = 4096
)

// DNSSECResolver implements Resolver with DNSSEC validation. It relies
// on the upstream recursive resolver to perform the validation and
// checks the AD (Authenticated Data) flag in responses, so a forged
// SRV record set cannot redirect enrollment to an attacker endpoint.
type DNSSECResolver struct {
	// Upstream is the recursive resolver address (e.g., "8.8.8.8:53").
	Upstream string
}

// NewDNSSECResolver creates a new DNSSECResolver.
// If upstream is empty, it defaults to "8.8.8.8:53".
func NewDNSSECResolver(upstream string) *DNSSECResolver {
	if upstream == "" {
		upstream = defaultUpstream
	}
	return &DNSSECResolver{Upstream: upstream}
}

// Compile-time interface check.
var _ Resolver = (*DNSSECResolver)(nil)

// LookupSRV looks up SRV records with DNSSEC validation. The first
// return value (cname) is always empty since miekg/dns does not return
// a canonical name for SRV queries the way net.LookupSRV does.
func (r *DNSSECResolver) LookupSRV(service, proto, name string) (string, []*net.SRV, error) {
	qname := fmt.Sprintf("_%s._%s.%s", service, proto, name)

	resp, err := r.query(qname, dns.TypeSRV)
	if err != nil {
		return "", nil, err
	}

	var srvs []*net.SRV
	for _, rr := range resp.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			srvs = append(srvs, &net.SRV{
				Target:   strings.TrimSuffix(srv.Target, "."),
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	}
	return "", srvs, nil
}

// query sends a DNS query with the DNSSEC OK flag set and validates
// that the response carries the AD flag.
func (r *DNSSECResolver) query(name string, qtype uint16) (*dns.Msg, error) {
	fqdn := dns.Fqdn(name)

	msg := new(dns.Msg)
	msg.SetQuestion(fqdn, qtype)
	msg.RecursionDesired = true
	msg.SetEdns0(edns0BufSize, true) // DO (DNSSEC OK) flag

	client := &dns.Client{Timeout: dnssecTimeout}
	resp, _, err := client.Exchange(msg, r.Upstream)
	if err != nil {
		return nil, fmt.Errorf("%w: query %s %s: %w",
			ErrDNSLookupFailed, name, dns.TypeToString[qtype], err)
	}

	if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
		return nil, fmt.Errorf("%w: query %s %s: rcode %s",
			ErrDNSLookupFailed, name, dns.TypeToString[qtype],
			dns.RcodeToString[resp.Rcode])
	}

	// The AD flag means the recursive resolver validated DNSSEC.
	if !resp.AuthenticatedData {
		return nil, fmt.Errorf("%w: AD flag not set for %s %s",
			ErrDNSSECValidationFailed, name, dns.TypeToString[qtype])
	}

	return resp, nil
}
