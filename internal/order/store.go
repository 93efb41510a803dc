// Package order is the read surface over committed orders. Creation lives in
// the checkout package; everything here goes through the tenant gate, so a
// tenant can only ever page through its own orders.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/storelane/backoffice/internal/gate"
)

// Row is one order as read back from storage.
type Row struct {
	ID            pgtype.UUID
	TenantID      pgtype.UUID
	OrderNumber   int64
	CustomerID    pgtype.UUID
	Status        string
	PaymentStatus string
	SubtotalCents int64
	TaxCents      int64
	ShippingCents int64
	DiscountCents int64
	TotalCents    int64
	CreatedAt     time.Time
}

// ItemRow is one stored line item with its denormalized product snapshot.
type ItemRow struct {
	ID             pgtype.UUID
	ProductID      pgtype.UUID
	VariantID      pgtype.UUID
	ProductName    string
	SKU            string
	UnitPriceCents int64
	Quantity       int32
	SubtotalCents  int64
}

var orderColumns = []string{
	"id", "tenant_id", "order_number", "customer_id", "status", "payment_status",
	"subtotal_cents", "tax_cents", "shipping_cents", "discount_cents", "total_cents",
	"created_at",
}

var itemColumns = []string{
	"id", "product_id", "variant_id", "product_name", "sku",
	"unit_price_cents", "quantity", "subtotal_cents",
}

// ListFilter narrows a listing. Zero values mean no constraint.
type ListFilter struct {
	Status     string
	CustomerID pgtype.UUID
}

// Store reads orders through the gate.
type Store struct {
	G *gate.Gate
}

// List pages the tenant's orders, newest first.
func (s Store) List(ctx context.Context, f ListFilter, limit, offset int32) ([]Row, error) {
	filter := gate.Filter{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.CustomerID.Valid {
		filter["customer_id"] = f.CustomerID
	}
	rows, err := s.G.Select(ctx, gate.KindOrders, orderColumns, filter, gate.ListOpts{
		OrderBy: "created_at",
		Desc:    true,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, fmt.Errorf("order: list: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// Get loads one order by id.
func (s Store) Get(ctx context.Context, id pgtype.UUID) (Row, error) {
	row, err := s.G.SelectRow(ctx, gate.KindOrders, orderColumns, gate.Filter{"id": id})
	if err != nil {
		return Row{}, fmt.Errorf("order: get: %w", err)
	}
	var out Row
	if err := scanOrder(row, &out); err != nil {
		return Row{}, err
	}
	return out, nil
}

// Items loads the line items for one order.
func (s Store) Items(ctx context.Context, orderID pgtype.UUID) ([]ItemRow, error) {
	rows, err := s.G.Select(ctx, gate.KindOrderItems, itemColumns, gate.Filter{"order_id": orderID})
	if err != nil {
		return nil, fmt.Errorf("order: items: %w", err)
	}
	defer rows.Close()

	var out []ItemRow
	for rows.Next() {
		var item ItemRow
		if err := rows.Scan(
			&item.ID, &item.ProductID, &item.VariantID, &item.ProductName, &item.SKU,
			&item.UnitPriceCents, &item.Quantity, &item.SubtotalCents,
		); err != nil {
			return nil, fmt.Errorf("order: scan item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanRows(rows pgx.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var r Row
		if err := scanOrder(rows, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row, out *Row) error {
	if err := row.Scan(
		&out.ID, &out.TenantID, &out.OrderNumber, &out.CustomerID, &out.Status, &out.PaymentStatus,
		&out.SubtotalCents, &out.TaxCents, &out.ShippingCents, &out.DiscountCents, &out.TotalCents,
		&out.CreatedAt,
	); err != nil {
		return fmt.Errorf("order: scan: %w", err)
	}
	return nil
}

// NewAdminStore returns a store whose reads span every tenant, for the
// back-office support surface. The privilege reason lands in logs.
func NewAdminStore(g *gate.Gate, reason string) (Store, error) {
	elevated, err := g.Elevated(gate.Privilege{CrossTenant: true, Reason: reason})
	if err != nil {
		return Store{}, err
	}
	return Store{G: elevated}, nil
}
