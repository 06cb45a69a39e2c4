// Package fees implements the per-currency fee registry and the
// floor-adjusted fee negotiation used when quoting distributors.
//
// Fees are expressed in basis points (10000 = 100%). Each currency
// additionally carries an absolute floor, the minimum fee a distributor
// accepts regardless of the computed percentage.
package fees

import (
	"fmt"
	"math/bits"
	"sort"
	"sync"
)

// BpsDenominator is the basis-point denominator: 10000 bps = 100%.
const BpsDenominator = 10000

// CurrencyConfig holds the fee configuration of a single currency.
type CurrencyConfig struct {
	FeeBps    uint64 // fee percentage in basis points, [0, 10000]
	Floor     uint64 // absolute minimum fee
	Supported bool
}

// Registry tracks fee configuration per currency.
type Registry struct {
	mu         sync.RWMutex
	currencies map[string]CurrencyConfig
}

// NewRegistry creates an empty fee registry.
func NewRegistry() *Registry {
	return &Registry{currencies: make(map[string]CurrencyConfig)}
}

// SetFee sets the fee percentage for currency and marks it supported.
// bps must be in [0, BpsDenominator].
func (r *Registry) SetFee(currency string, bps uint64) error {
	if currency == "" {
		return ErrEmptyCurrency
	}
	if bps > BpsDenominator {
		return fmt.Errorf("%w: %d", ErrInvalidBasisPoints, bps)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg := r.currencies[currency]
	cfg.FeeBps = bps
	cfg.Supported = true
	r.currencies[currency] = cfg
	return nil
}

// Fee returns the fee percentage in basis points for currency.
func (r *Registry) Fee(currency string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.currencies[currency]
	if !ok || !cfg.Supported {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}
	return cfg.FeeBps, nil
}

// SetFloor sets the absolute minimum fee for an already-supported currency.
func (r *Registry) SetFloor(currency string, minimum uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.currencies[currency]
	if !ok || !cfg.Supported {
		return fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}
	cfg.Floor = minimum
	r.currencies[currency] = cfg
	return nil
}

// Floor returns the absolute minimum fee for currency.
func (r *Registry) Floor(currency string) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.currencies[currency]
	if !ok || !cfg.Supported {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}
	return cfg.Floor, nil
}

// Supported reports whether currency is configured.
func (r *Registry) Supported(currency string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currencies[currency].Supported
}

// Currencies returns the supported currencies in sorted order.
func (r *Registry) Currencies() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.currencies))
	for c, cfg := range r.currencies {
		if cfg.Supported {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

// Negotiate computes the fee a distributor accepts for a proposed total.
//
// The percentage fee is proposedTotal * feeBps / 10000. The floor is
// adjusted sub-linearly for custodial load:
//
//	adjustedFloor = floor + floor*log2(max(custodyCount,1))/10
//
// so the effective minimum grows slowly as a distributor custodies more
// content. The result is max(percentage fee, adjusted floor), which is
// non-decreasing in custodyCount for a fixed floor and independent of
// custodyCount when the floor is zero.
func (r *Registry) Negotiate(proposedTotal uint64, currency string, custodyCount uint64) (uint64, error) {
	r.mu.RLock()
	cfg, ok := r.currencies[currency]
	r.mu.RUnlock()
	if !ok || !cfg.Supported {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedCurrency, currency)
	}

	proposed := proposedTotal * cfg.FeeBps / BpsDenominator
	adjusted := cfg.Floor + cfg.Floor*log2(max64(custodyCount, 1))/10
	if proposed > adjusted {
		return proposed, nil
	}
	return adjusted, nil
}

// log2 returns the integer base-2 logarithm of n (n must be >= 1).
func log2(n uint64) uint64 {
	return uint64(bits.Len64(n) - 1)
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
