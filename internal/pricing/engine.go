package pricing

// Money represents a monetary value stored in minor units (cents). Keeping
// amounts in cents makes every subtotal an exact integer sum, so half-up
// rounding is settled at the point a price is entered, not recomputed per
// cart.
type Money = int64

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int32
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal Money
	Discount Money
	Tax      Money
	Shipping Money
	Total    Money
}

// Compute calculates order totals. The result maintains
// Total == Subtotal + Tax + Shipping - Discount.
func Compute(items []Item, discount, tax, shipping Money) Summary {
	var subtotal Money
	for _, it := range items {
		if it.Qty <= 0 {
			continue
		}
		subtotal += Money(it.Qty) * it.UnitPrice
	}
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	if tax < 0 {
		tax = 0
	}
	if shipping < 0 {
		shipping = 0
	}
	return Summary{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Shipping: shipping,
		Total:    subtotal + tax + shipping - discount,
	}
}
