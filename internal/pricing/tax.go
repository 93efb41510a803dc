package pricing

import "strings"

// TaxQuoter resolves the tax amount for a destination region and subtotal.
// Implementations must be local, non-blocking lookups: the checkout
// transaction consults the quoter after in-transaction revalidation, and a
// networked implementation would hold row locks across an outbound call.
type TaxQuoter interface {
	QuoteTax(region string, subtotal Money) Money
}

// RegionRates quotes tax from a flat per-region basis-point table. Unknown
// regions quote zero; tax never blocks order creation.
type RegionRates struct {
	// BasisPoints maps an upper-cased region code to its rate in basis points
	// (125 = 1.25%).
	BasisPoints map[string]int
	// DefaultBps applies when the region has no entry and is usually zero.
	DefaultBps int
}

// QuoteTax computes the tax in minor units, truncating fractional cents.
func (r RegionRates) QuoteTax(region string, subtotal Money) Money {
	if subtotal <= 0 {
		return 0
	}
	bps := r.DefaultBps
	if r.BasisPoints != nil {
		if v, ok := r.BasisPoints[normalizeRegion(region)]; ok {
			bps = v
		}
	}
	if bps <= 0 {
		return 0
	}
	return subtotal * Money(bps) / 10000
}

func normalizeRegion(region string) string {
	return strings.ToUpper(strings.TrimSpace(region))
}
