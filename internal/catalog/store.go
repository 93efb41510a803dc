// Package catalog reads sellable products and live stock through the tenant
// gate. It is the lookup surface the cart validator and the checkout
// transaction share, so both see the same publication and soft-deletion
// rules.
package catalog

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/storelane/backoffice/internal/gate"
)

// Product is the sellable subset of a product row.
type Product struct {
	ID             pgtype.UUID
	Name           string
	SKU            string
	Slug           string
	ImageURL       pgtype.Text
	PriceCents     int64
	Published      bool
	TrackInventory bool
}

// Variant is a purchasable variation of a product. PriceCents overrides the
// product price when valid.
type Variant struct {
	ID         pgtype.UUID
	ProductID  pgtype.UUID
	Name       string
	SKU        string
	PriceCents pgtype.Int8
}

// Store resolves catalog lookups through the gate; every read is scoped to
// the tenant carried by ctx.
type Store struct {
	G *gate.Gate
}

// WithTx rebinds the store to a transaction-scoped gate.
func (s Store) WithTx(tx gate.DBTX) Store {
	return Store{G: s.G.WithTx(tx)}
}

// ProductForSale returns the product when it exists and is not soft-deleted.
// Publication is reported, not filtered, so callers can distinguish
// "unpublished" from "missing".
func (s Store) ProductForSale(ctx context.Context, id pgtype.UUID) (Product, error) {
	row, err := s.G.SelectRow(ctx, gate.KindProducts,
		[]string{"id", "name", "sku", "slug", "image_url", "price_cents", "is_published", "track_inventory"},
		gate.Filter{"id": id, "deleted_at": nil},
	)
	if err != nil {
		return Product{}, err
	}
	var p Product
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Slug, &p.ImageURL, &p.PriceCents, &p.Published, &p.TrackInventory); err != nil {
		return Product{}, err
	}
	return p, nil
}

// VariantForSale returns the variant when it exists and is not soft-deleted.
func (s Store) VariantForSale(ctx context.Context, id pgtype.UUID) (Variant, error) {
	row, err := s.G.SelectRow(ctx, gate.KindProductVariants,
		[]string{"id", "product_id", "name", "sku", "price_cents"},
		gate.Filter{"id": id, "deleted_at": nil},
	)
	if err != nil {
		return Variant{}, err
	}
	var v Variant
	if err := row.Scan(&v.ID, &v.ProductID, &v.Name, &v.SKU, &v.PriceCents); err != nil {
		return Variant{}, err
	}
	return v, nil
}

// StockOnHand reports the current counter for a product or variant owner.
// The second result is false when no inventory row exists for the owner.
func (s Store) StockOnHand(ctx context.Context, ownerID pgtype.UUID) (int32, bool, error) {
	row, err := s.G.SelectRow(ctx, gate.KindInventory,
		[]string{"quantity_on_hand"},
		gate.Filter{"owner_id": ownerID},
	)
	if err != nil {
		return 0, false, err
	}
	var qty int32
	if err := row.Scan(&qty); err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return qty, true, nil
}
