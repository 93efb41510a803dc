// Package shipping quotes delivery cost for a checkout. Quoting happens
// before the fulfillment transaction opens; the chosen amount is passed into
// checkout as a resolved value.
package shipping

import (
	"context"
	"errors"
	"strings"

	"github.com/storelane/backoffice/internal/pricing"
)

// QuoteReq describes the shipment to price.
type QuoteReq struct {
	Method        string
	Country       string
	Region        string
	SubtotalCents pricing.Money
	ItemCount     int32
}

// Quote is a priced shipping option.
type Quote struct {
	Method    string
	CostCents pricing.Money
	// EstimatedDays is zero when the provider gives no estimate.
	EstimatedDays int32
}

// ErrMethodUnavailable is returned when no rate exists for the requested
// method and destination.
var ErrMethodUnavailable = errors.New("shipping: method unavailable for destination")

// Provider prices a shipment. Implementations may call external rate APIs,
// so callers pass a context and never invoke Quote inside a transaction.
type Provider interface {
	Quote(ctx context.Context, req QuoteReq) (Quote, error)
}

// TableRates is a static in-process Provider. Rates are keyed by method, with
// an optional free-shipping threshold per method.
type TableRates struct {
	Rates map[string]TableRate
}

// TableRate is one method's pricing row.
type TableRate struct {
	CostCents     pricing.Money
	FreeOverCents pricing.Money
	EstimatedDays int32
}

func (t TableRates) Quote(_ context.Context, req QuoteReq) (Quote, error) {
	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = "STANDARD"
	}
	rate, ok := t.Rates[method]
	if !ok {
		return Quote{}, ErrMethodUnavailable
	}
	cost := rate.CostCents
	if rate.FreeOverCents > 0 && req.SubtotalCents >= rate.FreeOverCents {
		cost = 0
	}
	return Quote{Method: method, CostCents: cost, EstimatedDays: rate.EstimatedDays}, nil
}
