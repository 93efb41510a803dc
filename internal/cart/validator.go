// Package cart validates checkout lines against the live catalog and stock.
// Validation collects every problem instead of failing fast so one response
// can report all of them, and its result is consumed immediately: stock is
// time-sensitive, so a ValidatedCart must never be cached across requests.
package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/storelane/backoffice/internal/catalog"
	"github.com/storelane/backoffice/internal/pricing"
)

// Line is one requested cart entry.
type Line struct {
	ProductID string  `json:"productId" validate:"required,uuid"`
	VariantID *string `json:"variantId,omitempty" validate:"omitempty,uuid"`
	Quantity  int32   `json:"quantity" validate:"required"`
}

// Error codes attached to rejected lines.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeUnpublished       = "UNPUBLISHED"
	CodeInvalidQuantity   = "INVALID_QUANTITY"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
)

// LineError describes why a line was rejected.
type LineError struct {
	ProductID string  `json:"productId"`
	VariantID *string `json:"variantId,omitempty"`
	Code      string  `json:"code"`
	Message   string  `json:"message"`
}

// ValidatedLine is an accepted line with resolved price, identity, and stock.
type ValidatedLine struct {
	ProductID      pgtype.UUID
	VariantID      pgtype.UUID
	Name           string
	SKU            string
	ImageURL       pgtype.Text
	UnitPrice      pricing.Money
	Quantity       int32
	AvailableStock int32
	Tracked        bool
	Subtotal       pricing.Money
}

// ValidatedCart is the validator's result. Subtotal sums accepted lines only.
type ValidatedCart struct {
	Lines    []ValidatedLine
	Subtotal pricing.Money
	Errors   []LineError
}

// Valid reports whether the cart can proceed to checkout: no errors and at
// least one accepted line.
func (c ValidatedCart) Valid() bool {
	return len(c.Errors) == 0 && len(c.Lines) > 0
}

// CatalogStore is the lookup surface the validator needs. catalog.Store
// satisfies it; tests substitute stubs.
type CatalogStore interface {
	ProductForSale(ctx context.Context, id pgtype.UUID) (catalog.Product, error)
	VariantForSale(ctx context.Context, id pgtype.UUID) (catalog.Variant, error)
	StockOnHand(ctx context.Context, ownerID pgtype.UUID) (int32, bool, error)
}

// Validator checks cart lines against catalog state reached through the
// tenant gate, so every lookup is scoped to the tenant on ctx.
type Validator struct {
	Catalog CatalogStore
}

// Validate resolves every line. Infrastructure failures (including a missing
// tenant context) return an error; per-line business rejections are collected
// on the result instead.
func (v Validator) Validate(ctx context.Context, lines []Line) (ValidatedCart, error) {
	var out ValidatedCart
	for _, line := range lines {
		if line.Quantity <= 0 {
			out.Errors = append(out.Errors, LineError{
				ProductID: line.ProductID,
				VariantID: line.VariantID,
				Code:      CodeInvalidQuantity,
				Message:   "quantity must be positive",
			})
			continue
		}

		pid, err := parseUUID(line.ProductID)
		if err != nil {
			out.Errors = append(out.Errors, reject(line, CodeNotFound, "product not found"))
			continue
		}
		product, err := v.Catalog.ProductForSale(ctx, pid)
		if err != nil {
			if catalog.IsNotFound(err) {
				out.Errors = append(out.Errors, reject(line, CodeNotFound, "product not found"))
				continue
			}
			return ValidatedCart{}, fmt.Errorf("cart: load product: %w", err)
		}
		if !product.Published {
			out.Errors = append(out.Errors, reject(line, CodeUnpublished, "product is not published"))
			continue
		}

		resolved := ValidatedLine{
			ProductID: product.ID,
			Name:      product.Name,
			SKU:       product.SKU,
			ImageURL:  product.ImageURL,
			UnitPrice: product.PriceCents,
			Quantity:  line.Quantity,
			Tracked:   product.TrackInventory,
		}
		stockOwner := product.ID

		if line.VariantID != nil && *line.VariantID != "" {
			vid, err := parseUUID(*line.VariantID)
			if err != nil {
				out.Errors = append(out.Errors, reject(line, CodeNotFound, "variant not found"))
				continue
			}
			variant, err := v.Catalog.VariantForSale(ctx, vid)
			if err != nil {
				if catalog.IsNotFound(err) {
					out.Errors = append(out.Errors, reject(line, CodeNotFound, "variant not found"))
					continue
				}
				return ValidatedCart{}, fmt.Errorf("cart: load variant: %w", err)
			}
			if variant.ProductID.Bytes != product.ID.Bytes {
				out.Errors = append(out.Errors, reject(line, CodeNotFound, "variant does not belong to product"))
				continue
			}
			resolved.VariantID = variant.ID
			resolved.SKU = variant.SKU
			if variant.Name != "" {
				resolved.Name = product.Name + " / " + variant.Name
			}
			if variant.PriceCents.Valid {
				resolved.UnitPrice = variant.PriceCents.Int64
			}
			stockOwner = variant.ID
		}

		if resolved.Tracked {
			stock, found, err := v.Catalog.StockOnHand(ctx, stockOwner)
			if err != nil {
				return ValidatedCart{}, fmt.Errorf("cart: load stock: %w", err)
			}
			if !found {
				stock = 0
			}
			resolved.AvailableStock = stock
			if line.Quantity > stock {
				out.Errors = append(out.Errors, reject(line, CodeInsufficientStock,
					fmt.Sprintf("requested %d, only %d available", line.Quantity, stock)))
				continue
			}
		}

		resolved.Subtotal = resolved.UnitPrice * pricing.Money(resolved.Quantity)
		out.Lines = append(out.Lines, resolved)
		out.Subtotal += resolved.Subtotal
	}
	return out, nil
}

func reject(line Line, code, message string) LineError {
	return LineError{ProductID: line.ProductID, VariantID: line.VariantID, Code: code, Message: message}
}

func parseUUID(s string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}
