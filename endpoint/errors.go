package endpoint

import "errors"

var (
	// ErrEmptyEndpoint indicates a distributor declared no endpoint.
	ErrEmptyEndpoint = errors.New("endpoint: empty endpoint")

	// ErrInvalidEndpoint indicates the declared endpoint is malformed.
	ErrInvalidEndpoint = errors.New("endpoint: invalid endpoint")

	// ErrDNSLookupFailed indicates the SRV lookup failed.
	ErrDNSLookupFailed = errors.New("endpoint: DNS lookup failed")

	// ErrNoEndpoints indicates the domain publishes no SRV records.
	ErrNoEndpoints = errors.New("endpoint: no endpoints found")

	// ErrDNSSECValidationFailed indicates the response was not DNSSEC authenticated.
	ErrDNSSECValidationFailed = errors.New("endpoint: DNSSEC validation failed")
)
