package shipping

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRates() TableRates {
	return TableRates{Rates: map[string]TableRate{
		"STANDARD": {CostCents: 599, FreeOverCents: 10000, EstimatedDays: 5},
		"EXPRESS":  {CostCents: 1499, EstimatedDays: 2},
	}}
}

func TestQuoteStandard(t *testing.T) {
	q, err := testRates().Quote(context.Background(), QuoteReq{Method: "standard", SubtotalCents: 5998})
	require.NoError(t, err)
	assert.Equal(t, "STANDARD", q.Method)
	assert.Equal(t, int64(599), q.CostCents)
	assert.Equal(t, int32(5), q.EstimatedDays)
}

func TestQuoteDefaultsToStandard(t *testing.T) {
	q, err := testRates().Quote(context.Background(), QuoteReq{})
	require.NoError(t, err)
	assert.Equal(t, "STANDARD", q.Method)
}

func TestQuoteFreeShippingThreshold(t *testing.T) {
	q, err := testRates().Quote(context.Background(), QuoteReq{Method: "STANDARD", SubtotalCents: 10000})
	require.NoError(t, err)
	assert.Equal(t, int64(0), q.CostCents)
}

func TestQuoteUnknownMethod(t *testing.T) {
	_, err := testRates().Quote(context.Background(), QuoteReq{Method: "DRONE"})
	require.ErrorIs(t, err, ErrMethodUnavailable)
}
