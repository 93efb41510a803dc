package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storelane/backoffice/internal/cart"
	"github.com/storelane/backoffice/internal/catalog"
	"github.com/storelane/backoffice/internal/gate"
)

// TxStore is the storage surface the fulfillment transaction runs against.
// The pgx implementation binds every operation to one transaction-scoped
// gate; tests substitute fakes.
type TxStore interface {
	Catalog() cart.CatalogStore
	NextOrderNumber(ctx context.Context) (int64, error)
	InsertAddress(ctx context.Context, a AddressInput, kind string) (pgtype.UUID, error)
	InsertOrder(ctx context.Context, row OrderRow) error
	InsertOrderItem(ctx context.Context, row ItemRow) error
	DecrementStock(ctx context.Context, ownerID pgtype.UUID, qty int32) error
}

// TxRunner executes fn inside one atomic unit of work. fn's effects become
// visible only if InTx returns nil.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s TxStore) error) error
}

// Address kinds persisted with each order.
const (
	AddressKindShipping = "SHIPPING"
	AddressKindBilling  = "BILLING"
)

// OrderRow is the persisted order aggregate root.
type OrderRow struct {
	ID                pgtype.UUID
	OrderNumber       int64
	CustomerID        pgtype.UUID
	Status            string
	PaymentStatus     string
	ShippingAddressID pgtype.UUID
	BillingAddressID  pgtype.UUID
	SubtotalCents     int64
	TaxCents          int64
	ShippingCents     int64
	DiscountCents     int64
	TotalCents        int64
	ShippingMethod    string
	DiscountCode      pgtype.Text
	Note              pgtype.Text
	CreatedAt         time.Time
}

// ItemRow denormalizes product identity and price at purchase time so later
// catalog edits cannot alter historical orders.
type ItemRow struct {
	ID             pgtype.UUID
	OrderID        pgtype.UUID
	ProductID      pgtype.UUID
	VariantID      pgtype.UUID
	ProductName    string
	SKU            string
	UnitPriceCents int64
	Quantity       int32
	SubtotalCents  int64
}

// PgxRunner runs fulfillment transactions on a pgx pool with a bounded
// timeout. The transaction holds row locks for its duration, so the timeout
// caps how long a stuck checkout can block others.
type PgxRunner struct {
	Pool    *pgxpool.Pool
	Gate    *gate.Gate
	Timeout time.Duration
}

// InTx begins a transaction, hands fn a store bound to it, and commits only
// when fn succeeds. Any error (including timeout) rolls everything back.
func (r PgxRunner) InTx(ctx context.Context, fn func(ctx context.Context, s TxStore) error) error {
	if r.Pool == nil || r.Gate == nil {
		return errors.New("checkout: runner not configured")
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, pgxStore{g: r.Gate.WithTx(tx)}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgxStore struct {
	g *gate.Gate
}

func (s pgxStore) Catalog() cart.CatalogStore {
	return catalog.Store{G: s.g}
}

// NextOrderNumber reserves the next per-tenant number via an atomic counter
// upsert. Concurrent checkouts for the same tenant serialize on the counter
// row, so no two transactions can observe the same value.
func (s pgxStore) NextOrderNumber(ctx context.Context) (int64, error) {
	tid, err := gate.TenantUUID(ctx)
	if err != nil {
		return 0, err
	}
	const stmt = `INSERT INTO order_counters (tenant_id, next_number) VALUES ($1, 1)
ON CONFLICT (tenant_id) DO UPDATE SET next_number = order_counters.next_number + 1
RETURNING next_number`
	row, err := s.g.QueryRowRaw(ctx, gate.KindOrderCounters, stmt, tid)
	if err != nil {
		return 0, err
	}
	var number int64
	if err := row.Scan(&number); err != nil {
		return 0, err
	}
	return number, nil
}

func (s pgxStore) InsertAddress(ctx context.Context, a AddressInput, kind string) (pgtype.UUID, error) {
	id := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	err := s.g.Insert(ctx, gate.KindAddresses, gate.Values{
		"id":          id,
		"kind":        kind,
		"name":        a.Name,
		"line1":       a.Line1,
		"line2":       nullText(a.Line2),
		"city":        a.City,
		"region":      a.Region,
		"postal_code": a.PostalCode,
		"country":     a.Country,
	})
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("checkout: insert %s address: %w", kind, err)
	}
	return id, nil
}

func (s pgxStore) InsertOrder(ctx context.Context, row OrderRow) error {
	return s.g.Insert(ctx, gate.KindOrders, gate.Values{
		"id":                  row.ID,
		"order_number":        row.OrderNumber,
		"customer_id":         row.CustomerID,
		"status":              row.Status,
		"payment_status":      row.PaymentStatus,
		"shipping_address_id": row.ShippingAddressID,
		"billing_address_id":  row.BillingAddressID,
		"subtotal_cents":      row.SubtotalCents,
		"tax_cents":           row.TaxCents,
		"shipping_cents":      row.ShippingCents,
		"discount_cents":      row.DiscountCents,
		"total_cents":         row.TotalCents,
		"shipping_method":     row.ShippingMethod,
		"discount_code":       row.DiscountCode,
		"note":                row.Note,
	})
}

func (s pgxStore) InsertOrderItem(ctx context.Context, row ItemRow) error {
	return s.g.Insert(ctx, gate.KindOrderItems, gate.Values{
		"id":               row.ID,
		"order_id":         row.OrderID,
		"product_id":       row.ProductID,
		"variant_id":       row.VariantID,
		"product_name":     row.ProductName,
		"sku":              row.SKU,
		"unit_price_cents": row.UnitPriceCents,
		"quantity":         row.Quantity,
		"subtotal_cents":   row.SubtotalCents,
	})
}

// DecrementStock applies the guarded decrement. Zero rows affected means the
// remaining stock cannot cover the quantity; the CHECK constraint on the
// table is the final backstop.
func (s pgxStore) DecrementStock(ctx context.Context, ownerID pgtype.UUID, qty int32) error {
	affected, err := s.g.Update(ctx, gate.KindInventory,
		gate.Values{"quantity_on_hand": gate.Raw("quantity_on_hand - ?", qty)},
		gate.Filter{"owner_id": ownerID, "quantity_on_hand": gate.Gte(qty)},
	)
	if err != nil {
		return err
	}
	if affected == 0 {
		return &InsufficientStockError{OwnerID: uuid.UUID(ownerID.Bytes).String()}
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique violation,
// optionally on a specific constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func nullText(v *string) pgtype.Text {
	if v == nil || *v == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *v, Valid: true}
}
