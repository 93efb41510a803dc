package cart_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/storelane/backoffice/internal/cart"
	"github.com/storelane/backoffice/internal/catalog"
)

type stubCatalog struct {
	products map[[16]byte]catalog.Product
	variants map[[16]byte]catalog.Variant
	stock    map[[16]byte]int32
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		products: map[[16]byte]catalog.Product{},
		variants: map[[16]byte]catalog.Variant{},
		stock:    map[[16]byte]int32{},
	}
}

func (s *stubCatalog) ProductForSale(_ context.Context, id pgtype.UUID) (catalog.Product, error) {
	p, ok := s.products[id.Bytes]
	if !ok {
		return catalog.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (s *stubCatalog) VariantForSale(_ context.Context, id pgtype.UUID) (catalog.Variant, error) {
	v, ok := s.variants[id.Bytes]
	if !ok {
		return catalog.Variant{}, pgx.ErrNoRows
	}
	return v, nil
}

func (s *stubCatalog) StockOnHand(_ context.Context, ownerID pgtype.UUID) (int32, bool, error) {
	qty, ok := s.stock[ownerID.Bytes]
	return qty, ok, nil
}

func (s *stubCatalog) addProduct(price int64, published, tracked bool, stock int32) pgtype.UUID {
	id := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	s.products[id.Bytes] = catalog.Product{
		ID: id, Name: "Widget", SKU: "WID-1", Slug: "widget",
		PriceCents: price, Published: published, TrackInventory: tracked,
	}
	if tracked {
		s.stock[id.Bytes] = stock
	}
	return id
}

func TestValidateAcceptsAvailableLine(t *testing.T) {
	store := newStubCatalog()
	pid := store.addProduct(2999, true, true, 2)
	v := cart.Validator{Catalog: store}

	out, err := v.Validate(context.Background(), []cart.Line{{ProductID: uuid.UUID(pid.Bytes).String(), Quantity: 2}})
	require.NoError(t, err)
	require.True(t, out.Valid())
	require.Len(t, out.Lines, 1)
	require.EqualValues(t, 5998, out.Subtotal)
	require.EqualValues(t, 2, out.Lines[0].AvailableStock)
	require.Equal(t, "WID-1", out.Lines[0].SKU)
}

func TestValidateRejectsMissingUnpublishedAndBadQuantity(t *testing.T) {
	store := newStubCatalog()
	unpublished := store.addProduct(1000, false, false, 0)
	v := cart.Validator{Catalog: store}

	out, err := v.Validate(context.Background(), []cart.Line{
		{ProductID: uuid.NewString(), Quantity: 1},
		{ProductID: uuid.UUID(unpublished.Bytes).String(), Quantity: 1},
		{ProductID: uuid.UUID(unpublished.Bytes).String(), Quantity: 0},
	})
	require.NoError(t, err)
	require.False(t, out.Valid())
	require.Empty(t, out.Lines)
	require.Len(t, out.Errors, 3)
	require.Equal(t, cart.CodeNotFound, out.Errors[0].Code)
	require.Equal(t, cart.CodeUnpublished, out.Errors[1].Code)
	require.Equal(t, cart.CodeInvalidQuantity, out.Errors[2].Code)
	require.EqualValues(t, 0, out.Subtotal)
}

func TestValidateInsufficientStock(t *testing.T) {
	store := newStubCatalog()
	pid := store.addProduct(500, true, true, 1)
	v := cart.Validator{Catalog: store}

	out, err := v.Validate(context.Background(), []cart.Line{{ProductID: uuid.UUID(pid.Bytes).String(), Quantity: 3}})
	require.NoError(t, err)
	require.False(t, out.Valid())
	require.Equal(t, cart.CodeInsufficientStock, out.Errors[0].Code)
}

func TestValidateUntrackedIgnoresStock(t *testing.T) {
	store := newStubCatalog()
	pid := store.addProduct(500, true, false, 0)
	v := cart.Validator{Catalog: store}

	out, err := v.Validate(context.Background(), []cart.Line{{ProductID: uuid.UUID(pid.Bytes).String(), Quantity: 50}})
	require.NoError(t, err)
	require.True(t, out.Valid())
}

func TestValidateVariantOverridesPriceAndStockOwner(t *testing.T) {
	store := newStubCatalog()
	pid := store.addProduct(2999, true, true, 0) // product itself out of stock
	vid := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	store.variants[vid.Bytes] = catalog.Variant{
		ID: vid, ProductID: pid, Name: "Large", SKU: "WID-1-L",
		PriceCents: pgtype.Int8{Int64: 3499, Valid: true},
	}
	store.stock[vid.Bytes] = 4
	v := cart.Validator{Catalog: store}

	variantID := uuid.UUID(vid.Bytes).String()
	out, err := v.Validate(context.Background(), []cart.Line{{
		ProductID: uuid.UUID(pid.Bytes).String(), VariantID: &variantID, Quantity: 2,
	}})
	require.NoError(t, err)
	require.True(t, out.Valid())
	require.EqualValues(t, 6998, out.Subtotal)
	require.Equal(t, "WID-1-L", out.Lines[0].SKU)
	require.EqualValues(t, 4, out.Lines[0].AvailableStock)
}

func TestValidateVariantFromOtherProductRejected(t *testing.T) {
	store := newStubCatalog()
	pid := store.addProduct(2999, true, false, 0)
	other := store.addProduct(999, true, false, 0)
	vid := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	store.variants[vid.Bytes] = catalog.Variant{ID: vid, ProductID: other, SKU: "OTH-1-S"}
	v := cart.Validator{Catalog: store}

	variantID := uuid.UUID(vid.Bytes).String()
	out, err := v.Validate(context.Background(), []cart.Line{{
		ProductID: uuid.UUID(pid.Bytes).String(), VariantID: &variantID, Quantity: 1,
	}})
	require.NoError(t, err)
	require.False(t, out.Valid())
	require.Equal(t, cart.CodeNotFound, out.Errors[0].Code)
}

func TestEmptyCartNeverValid(t *testing.T) {
	v := cart.Validator{Catalog: newStubCatalog()}
	out, err := v.Validate(context.Background(), nil)
	require.NoError(t, err)
	require.False(t, out.Valid())
}
