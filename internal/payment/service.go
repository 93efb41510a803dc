// Package payment records settlements against orders. It does not talk to
// payment providers; an upstream gateway confirms the charge and this service
// persists the outcome.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/audit"
	"github.com/storelane/backoffice/internal/events"
	"github.com/storelane/backoffice/internal/gate"
	"github.com/storelane/backoffice/internal/pricing"
)

// ErrAlreadySettled is returned when the order is not awaiting payment.
var ErrAlreadySettled = errors.New("payment: order is not awaiting payment")

// ErrOrderNotFound is returned when the order does not exist for this tenant.
var ErrOrderNotFound = errors.New("payment: order not found")

// Settlement captures one confirmed charge.
type Settlement struct {
	OrderID     pgtype.UUID
	Provider    string
	Reference   string
	AmountCents pricing.Money
}

// TxRunner executes fn against a gate bound to one transaction. fn's writes
// become visible only if InTx returns nil.
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, g *gate.Gate) error) error
}

// PgxRunner runs settlement transactions on a pgx pool.
type PgxRunner struct {
	Pool *pgxpool.Pool
	Gate *gate.Gate
}

func (r PgxRunner) InTx(ctx context.Context, fn func(ctx context.Context, g *gate.Gate) error) error {
	if r.Pool == nil || r.Gate == nil {
		return errors.New("payment: runner not configured")
	}
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(ctx, r.Gate.WithTx(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Service flips orders to PAID and records the settlement row in one
// transaction. Both writes go through the gate, so a settlement can never
// touch another tenant's order.
type Service struct {
	Runner TxRunner
	Audit  audit.Service
	Events *events.Bus
	Logger zerolog.Logger
}

// Settle marks the order as paid. The conditional update makes settlement
// idempotent: a second call for the same order reports ErrAlreadySettled.
// The status flip and the settlement row commit together; if either write
// fails the order stays UNPAID.
func (s *Service) Settle(ctx context.Context, in Settlement, meta audit.Entry) error {
	if s == nil || s.Runner == nil {
		return errors.New("payment: service not configured")
	}
	if !in.OrderID.Valid {
		return ErrOrderNotFound
	}
	if in.AmountCents <= 0 {
		return fmt.Errorf("payment: amount must be positive, got %d", in.AmountCents)
	}

	err := s.Runner.InTx(ctx, func(ctx context.Context, g *gate.Gate) error {
		affected, err := g.Update(ctx, gate.KindOrders, gate.Values{
			"payment_status": "PAID",
			"status":         "PAID",
		}, gate.Filter{
			"id":             in.OrderID,
			"payment_status": "UNPAID",
		})
		if err != nil {
			return fmt.Errorf("payment: update order: %w", err)
		}
		if affected == 0 {
			// distinguish a missing order from a double settlement
			row, err := g.SelectRow(ctx, gate.KindOrders, []string{"payment_status"}, gate.Filter{"id": in.OrderID})
			if err != nil {
				return err
			}
			var status string
			if err := row.Scan(&status); err != nil {
				return ErrOrderNotFound
			}
			return ErrAlreadySettled
		}

		if err := g.Insert(ctx, gate.KindPayments, gate.Values{
			"id":           pgtype.UUID{Bytes: uuid.New(), Valid: true},
			"order_id":     in.OrderID,
			"provider":     in.Provider,
			"reference":    in.Reference,
			"amount_cents": in.AmountCents,
			"settled_at":   time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("payment: insert settlement: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	meta.Action = "order.settle"
	meta.EntityType = "order"
	meta.EntityID = uuid.UUID(in.OrderID.Bytes).String()
	meta.Changes = map[string]any{
		"provider":    in.Provider,
		"reference":   in.Reference,
		"amountCents": in.AmountCents,
	}
	s.Audit.Record(ctx, meta)

	if s.Events != nil {
		if err := s.Events.Emit(ctx, events.TopicOrderPaid, in.OrderID, map[string]any{
			"orderId":     meta.EntityID,
			"amountCents": in.AmountCents,
		}); err != nil {
			s.Logger.Error().Err(err).Str("order_id", meta.EntityID).Msg("emit order.paid failed")
		}
	}
	return nil
}
