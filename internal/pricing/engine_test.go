package pricing_test

import (
	"testing"

	"github.com/storelane/backoffice/internal/pricing"
)

func TestComputeTotalsInvariant(t *testing.T) {
	items := []pricing.Item{
		{Qty: 2, UnitPrice: 2999},
		{Qty: 1, UnitPrice: 1250},
	}
	s := pricing.Compute(items, 500, 300, 599)
	if s.Subtotal != 7248 {
		t.Fatalf("subtotal = %d", s.Subtotal)
	}
	if s.Total != s.Subtotal+s.Tax+s.Shipping-s.Discount {
		t.Fatalf("total invariant violated: %+v", s)
	}
	if s.Total != 7647 {
		t.Fatalf("total = %d", s.Total)
	}
}

func TestComputeClampsInputs(t *testing.T) {
	items := []pricing.Item{{Qty: 1, UnitPrice: 1000}, {Qty: -3, UnitPrice: 9999}}
	s := pricing.Compute(items, 5000, -10, -1)
	if s.Subtotal != 1000 {
		t.Fatalf("negative quantities must be skipped, subtotal = %d", s.Subtotal)
	}
	if s.Discount != 1000 {
		t.Fatalf("discount must be capped at subtotal, got %d", s.Discount)
	}
	if s.Tax != 0 || s.Shipping != 0 {
		t.Fatalf("negative tax/shipping must clamp to zero: %+v", s)
	}
	if s.Total != 0 {
		t.Fatalf("total = %d", s.Total)
	}
}

func TestRegionRates(t *testing.T) {
	q := pricing.RegionRates{BasisPoints: map[string]int{"CA": 725, "NY": 400}}
	if got := q.QuoteTax("ca", 10000); got != 725 {
		t.Fatalf("CA tax = %d", got)
	}
	if got := q.QuoteTax("TX", 10000); got != 0 {
		t.Fatalf("unknown region must quote zero, got %d", got)
	}
	if got := q.QuoteTax("NY", 0); got != 0 {
		t.Fatalf("zero subtotal must quote zero, got %d", got)
	}
}

func TestRegionRatesDefault(t *testing.T) {
	q := pricing.RegionRates{DefaultBps: 100}
	if got := q.QuoteTax("anywhere", 5000); got != 50 {
		t.Fatalf("default rate tax = %d", got)
	}
}
