// Package checkout turns a validated cart into a durable order. The whole
// fulfillment runs inside one transaction: addresses, the order row, its
// denormalized line items, the guarded inventory decrements, and the
// per-tenant order number all commit together or not at all.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/audit"
	"github.com/storelane/backoffice/internal/cart"
	"github.com/storelane/backoffice/internal/events"
	"github.com/storelane/backoffice/internal/gate"
	"github.com/storelane/backoffice/internal/obs"
	"github.com/storelane/backoffice/internal/pricing"
	"github.com/storelane/backoffice/internal/tenant"
)

// AddressInput captures a shipping or billing destination for one order.
// Addresses are created fresh per order; there is no address reuse here.
type AddressInput struct {
	Name       string  `json:"name" validate:"required"`
	Line1      string  `json:"line1" validate:"required"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city" validate:"required"`
	Region     string  `json:"region"`
	PostalCode string  `json:"postalCode" validate:"required"`
	Country    string  `json:"country" validate:"required"`
}

// Input bundles everything a checkout needs. Shipping cost and discount are
// already-resolved amounts: quoting happens before the transaction starts.
type Input struct {
	CustomerID      *string       `json:"customerId,omitempty" validate:"omitempty,uuid"`
	Lines           []cart.Line   `json:"lines" validate:"required,min=1,dive"`
	ShippingAddress AddressInput  `json:"shippingAddress" validate:"required"`
	BillingAddress  *AddressInput `json:"billingAddress,omitempty"`
	ShippingMethod  string        `json:"shippingMethod"`
	ShippingCents   pricing.Money `json:"shippingCents" validate:"gte=0"`
	DiscountCents   pricing.Money `json:"discountCents" validate:"gte=0"`
	DiscountCode    *string       `json:"discountCode,omitempty"`
	Note            *string       `json:"note,omitempty"`
}

// OrderItem is a created line item in API-friendly form.
type OrderItem struct {
	ProductID   string        `json:"productId"`
	VariantID   *string       `json:"variantId,omitempty"`
	ProductName string        `json:"productName"`
	SKU         string        `json:"sku"`
	UnitPrice   pricing.Money `json:"unitPriceCents"`
	Quantity    int32         `json:"quantity"`
	Subtotal    pricing.Money `json:"subtotalCents"`
}

// Order is the created aggregate returned to the caller.
type Order struct {
	ID                string        `json:"id"`
	OrderNumber       int64         `json:"orderNumber"`
	Status            string        `json:"status"`
	PaymentStatus     string        `json:"paymentStatus"`
	CustomerID        *string       `json:"customerId,omitempty"`
	ShippingAddressID string        `json:"shippingAddressId"`
	BillingAddressID  string        `json:"billingAddressId"`
	Subtotal          pricing.Money `json:"subtotalCents"`
	Tax               pricing.Money `json:"taxCents"`
	Shipping          pricing.Money `json:"shippingCents"`
	Discount          pricing.Money `json:"discountCents"`
	Total             pricing.Money `json:"totalCents"`
	CreatedAt         time.Time     `json:"createdAt"`
	Items             []OrderItem   `json:"items"`
}

// Order lifecycle values stamped at creation.
const (
	StatusPendingPayment = "PENDING_PAYMENT"
	PaymentStatusUnpaid  = "UNPAID"
)

// Service orchestrates order fulfillment.
type Service struct {
	Runner  TxRunner
	Catalog cart.CatalogStore
	Tax     pricing.TaxQuoter
	Audit   audit.Service
	Events  *events.Bus
	Logger  zerolog.Logger
	// NumberRetries bounds transparent retries on order-number collisions.
	NumberRetries int
}

// CreateOrder executes the fulfillment transaction and, on success, emits the
// audit entry and domain event as post-commit best-effort side effects. meta
// carries request metadata (actor, IP, user agent) for the audit trail.
func (s *Service) CreateOrder(ctx context.Context, in Input, meta audit.Entry) (Order, error) {
	if s == nil || s.Runner == nil {
		return Order{}, errors.New("checkout: service not configured")
	}
	tenantID, ok := tenant.From(ctx)
	if !ok {
		// wiring defect, not user error: fail closed and make noise
		s.Logger.Error().Msg("checkout attempted without tenant context")
		return Order{}, gate.ErrTenantMissing
	}

	// Advisory pre-check so obviously broken carts never open a transaction.
	// The authoritative validation re-runs inside the transaction below.
	if s.Catalog != nil {
		pre, err := cart.Validator{Catalog: s.Catalog}.Validate(ctx, in.Lines)
		if err != nil {
			return Order{}, err
		}
		if !pre.Valid() {
			return Order{}, &CartInvalidError{Errors: pre.Errors}
		}
	}

	attempts := s.NumberRetries
	if attempts <= 0 {
		attempts = 3
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		order, err := s.createOnce(ctx, in)
		if err == nil {
			s.afterCommit(ctx, tenantID, order, meta)
			return order, nil
		}
		if IsUniqueViolation(err, "") || errors.Is(err, ErrOrderNumberConflict) {
			obs.IncOrderNumberConflict()
			s.Logger.Warn().Int("attempt", attempt+1).Err(err).Msg("order number conflict, retrying")
			lastErr = err
			continue
		}
		var stockErr *InsufficientStockError
		if errors.As(err, &stockErr) {
			obs.IncInsufficientStock()
		}
		return Order{}, err
	}
	return Order{}, fmt.Errorf("%w: retries exhausted: %v", ErrOrderNumberConflict, lastErr)
}

func (s *Service) createOnce(ctx context.Context, in Input) (Order, error) {
	var result Order
	err := s.Runner.InTx(ctx, func(ctx context.Context, store TxStore) error {
		// Never trust validation performed outside this transaction: stock
		// can change between cart view and submit.
		validated, err := cart.Validator{Catalog: store.Catalog()}.Validate(ctx, in.Lines)
		if err != nil {
			return err
		}
		if !validated.Valid() {
			return &CartInvalidError{Errors: validated.Errors}
		}

		var tax pricing.Money
		if s.Tax != nil {
			tax = s.Tax.QuoteTax(in.ShippingAddress.Region, validated.Subtotal)
		}
		items := make([]pricing.Item, 0, len(validated.Lines))
		for _, line := range validated.Lines {
			items = append(items, pricing.Item{Qty: line.Quantity, UnitPrice: line.UnitPrice})
		}
		summary := pricing.Compute(items, in.DiscountCents, tax, in.ShippingCents)

		number, err := store.NextOrderNumber(ctx)
		if err != nil {
			return err
		}

		shippingID, err := store.InsertAddress(ctx, in.ShippingAddress, AddressKindShipping)
		if err != nil {
			return err
		}
		billingID := shippingID
		if in.BillingAddress != nil {
			billingID, err = store.InsertAddress(ctx, *in.BillingAddress, AddressKindBilling)
			if err != nil {
				return err
			}
		}

		row := OrderRow{
			ID:                pgtype.UUID{Bytes: uuid.New(), Valid: true},
			OrderNumber:       number,
			CustomerID:        nullUUID(in.CustomerID),
			Status:            StatusPendingPayment,
			PaymentStatus:     PaymentStatusUnpaid,
			ShippingAddressID: shippingID,
			BillingAddressID:  billingID,
			SubtotalCents:     summary.Subtotal,
			TaxCents:          summary.Tax,
			ShippingCents:     summary.Shipping,
			DiscountCents:     summary.Discount,
			TotalCents:        summary.Total,
			ShippingMethod:    in.ShippingMethod,
			DiscountCode:      nullText(in.DiscountCode),
			Note:              nullText(in.Note),
			CreatedAt:         time.Now().UTC(),
		}
		if err := store.InsertOrder(ctx, row); err != nil {
			return err
		}

		for _, line := range validated.Lines {
			item := ItemRow{
				ID:             pgtype.UUID{Bytes: uuid.New(), Valid: true},
				OrderID:        row.ID,
				ProductID:      line.ProductID,
				VariantID:      line.VariantID,
				ProductName:    line.Name,
				SKU:            line.SKU,
				UnitPriceCents: line.UnitPrice,
				Quantity:       line.Quantity,
				SubtotalCents:  line.Subtotal,
			}
			if err := store.InsertOrderItem(ctx, item); err != nil {
				return err
			}
			if line.Tracked {
				owner := line.ProductID
				if line.VariantID.Valid {
					owner = line.VariantID
				}
				// atomically re-checks stock, closing the race window between
				// validation and commit
				if err := store.DecrementStock(ctx, owner, line.Quantity); err != nil {
					return err
				}
			}
		}

		result = buildOrder(row, in.CustomerID, validated.Lines)
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return result, nil
}

func (s *Service) afterCommit(ctx context.Context, tenantID string, order Order, meta audit.Entry) {
	obs.IncOrderCreated()

	meta.TenantID = &tenantID
	meta.Action = "order.create"
	meta.EntityType = "order"
	meta.EntityID = order.ID
	meta.Changes = map[string]any{
		"orderNumber": order.OrderNumber,
		"totalCents":  order.Total,
		"items":       len(order.Items),
	}
	s.Audit.Record(ctx, meta)

	if s.Events != nil {
		aggregate, err := parsePgUUID(order.ID)
		if err == nil {
			err = s.Events.Emit(ctx, events.TopicOrderCreated, aggregate, map[string]any{
				"orderId":     order.ID,
				"orderNumber": order.OrderNumber,
				"totalCents":  order.Total,
			})
		}
		if err != nil {
			s.Logger.Error().Err(err).Str("order_id", order.ID).Msg("emit order.created failed")
		}
	}
}

func buildOrder(row OrderRow, customerID *string, lines []cart.ValidatedLine) Order {
	out := Order{
		ID:                uuid.UUID(row.ID.Bytes).String(),
		OrderNumber:       row.OrderNumber,
		Status:            row.Status,
		PaymentStatus:     row.PaymentStatus,
		CustomerID:        customerID,
		ShippingAddressID: uuid.UUID(row.ShippingAddressID.Bytes).String(),
		BillingAddressID:  uuid.UUID(row.BillingAddressID.Bytes).String(),
		Subtotal:          row.SubtotalCents,
		Tax:               row.TaxCents,
		Shipping:          row.ShippingCents,
		Discount:          row.DiscountCents,
		Total:             row.TotalCents,
		CreatedAt:         row.CreatedAt,
		Items:             make([]OrderItem, 0, len(lines)),
	}
	for _, line := range lines {
		item := OrderItem{
			ProductID:   uuid.UUID(line.ProductID.Bytes).String(),
			ProductName: line.Name,
			SKU:         line.SKU,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			Subtotal:    line.Subtotal,
		}
		if line.VariantID.Valid {
			v := uuid.UUID(line.VariantID.Bytes).String()
			item.VariantID = &v
		}
		out.Items = append(out.Items, item)
	}
	return out
}

func nullUUID(v *string) pgtype.UUID {
	if v == nil {
		return pgtype.UUID{}
	}
	parsed, err := uuid.Parse(*v)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func parsePgUUID(v string) (pgtype.UUID, error) {
	parsed, err := uuid.Parse(v)
	if err != nil {
		return pgtype.UUID{}, err
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}
