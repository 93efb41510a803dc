package gate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/storelane/backoffice/internal/gate"
	"github.com/storelane/backoffice/internal/tenant"
)

type capturingDB struct {
	sql      string
	args     []any
	execTag  pgconn.CommandTag
	execErr  error
	queryErr error
}

func (c *capturingDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.sql = sql
	c.args = args
	return c.execTag, c.execErr
}

func (c *capturingDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.sql = sql
	c.args = args
	return nil, c.queryErr
}

func (c *capturingDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	c.sql = sql
	c.args = args
	return fakeRow{}
}

type fakeRow struct{}

func (fakeRow) Scan(...any) error { return nil }

func tenantCtx(t *testing.T) (context.Context, pgtype.UUID) {
	t.Helper()
	id := uuid.New()
	return tenant.With(context.Background(), id.String()), pgtype.UUID{Bytes: id, Valid: true}
}

func TestSelectInjectsTenantPredicate(t *testing.T) {
	db := &capturingDB{}
	g := gate.New(db)
	ctx, tid := tenantCtx(t)

	_, err := g.Select(ctx, gate.KindProducts, []string{"id", "name"}, gate.Filter{"is_published": true})
	require.NoError(t, err)
	require.Equal(t, "SELECT id, name FROM products WHERE is_published = $1 AND tenant_id = $2", db.sql)
	require.Equal(t, []any{true, tid}, db.args)
}

func TestSelectFailsClosedWithoutTenant(t *testing.T) {
	g := gate.New(&capturingDB{})
	_, err := g.Select(context.Background(), gate.KindOrders, []string{"id"}, nil)
	require.ErrorIs(t, err, gate.ErrTenantMissing)
}

func TestSelectInvalidTenantID(t *testing.T) {
	g := gate.New(&capturingDB{})
	ctx := tenant.With(context.Background(), "not-a-uuid")
	_, err := g.Select(ctx, gate.KindOrders, []string{"id"}, nil)
	require.ErrorIs(t, err, gate.ErrTenantInvalid)
}

func TestSelectPassThroughKindSkipsTenant(t *testing.T) {
	db := &capturingDB{}
	g := gate.New(db)
	_, err := g.Select(context.Background(), gate.KindAuditLogs, []string{"id"}, gate.Filter{"action": "CREATE"})
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM audit_logs WHERE action = $1", db.sql)
}

func TestSelectUnknownKind(t *testing.T) {
	g := gate.New(&capturingDB{})
	ctx, _ := tenantCtx(t)
	_, err := g.Select(ctx, gate.Kind("sessions"), []string{"id"}, nil)
	require.ErrorIs(t, err, gate.ErrUnknownKind)
}

func TestInsertStampsTenantOverridingCaller(t *testing.T) {
	db := &capturingDB{}
	g := gate.New(db)
	ctx, tid := tenantCtx(t)

	foreign := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	err := g.Insert(ctx, gate.KindAddresses, gate.Values{
		"city":      "Oslo",
		"tenant_id": foreign,
	})
	require.NoError(t, err)
	require.Equal(t, "INSERT INTO addresses (city, tenant_id) VALUES ($1, $2)", db.sql)
	require.Equal(t, []any{"Oslo", tid}, db.args)
}

func TestUpdateMergesTenantIntoFilter(t *testing.T) {
	db := &capturingDB{execTag: pgconn.NewCommandTag("UPDATE 1")}
	g := gate.New(db)
	ctx, tid := tenantCtx(t)

	rowID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	affected, err := g.Update(ctx, gate.KindOrders, gate.Values{"status": "CANCELLED"}, gate.Filter{"id": rowID})
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
	require.Equal(t, "UPDATE orders SET status = $1 WHERE id = $2 AND tenant_id = $3", db.sql)
	require.Equal(t, []any{"CANCELLED", rowID, tid}, db.args)
}

func TestConditionalDecrementExpression(t *testing.T) {
	db := &capturingDB{execTag: pgconn.NewCommandTag("UPDATE 0")}
	g := gate.New(db)
	ctx, tid := tenantCtx(t)

	owner := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	affected, err := g.Update(ctx, gate.KindInventory,
		gate.Values{"quantity_on_hand": gate.Raw("quantity_on_hand - ?", int32(2))},
		gate.Filter{"owner_id": owner, "quantity_on_hand": gate.Gte(int32(2))},
	)
	require.NoError(t, err)
	require.Zero(t, affected)
	require.Equal(t,
		"UPDATE inventory SET quantity_on_hand = quantity_on_hand - $1 WHERE owner_id = $2 AND quantity_on_hand >= $3 AND tenant_id = $4",
		db.sql)
	require.Equal(t, []any{int32(2), owner, int32(2), tid}, db.args)
}

func TestDeleteScopedAndNeverUnfiltered(t *testing.T) {
	db := &capturingDB{execTag: pgconn.NewCommandTag("DELETE 1")}
	g := gate.New(db)
	ctx, tid := tenantCtx(t)

	rowID := pgtype.UUID{Bytes: uuid.New(), Valid: true}
	_, err := g.Delete(ctx, gate.KindCustomers, gate.Filter{"id": rowID})
	require.NoError(t, err)
	require.Equal(t, "DELETE FROM customers WHERE id = $1 AND tenant_id = $2", db.sql)
	require.Equal(t, []any{rowID, tid}, db.args)

	_, err = g.Delete(context.Background(), gate.KindAuditLogs, nil)
	require.Error(t, err)
}

func TestElevatedReadBypass(t *testing.T) {
	db := &capturingDB{}
	g := gate.New(db)

	_, err := g.Elevated(gate.Privilege{})
	require.ErrorIs(t, err, gate.ErrPrivilege)
	_, err = g.Elevated(gate.Privilege{CrossTenant: true})
	require.ErrorIs(t, err, gate.ErrPrivilege)

	admin, err := g.Elevated(gate.Privilege{CrossTenant: true, Reason: "support dashboard"})
	require.NoError(t, err)

	// reads cross tenants without a bound tenant
	_, err = admin.Select(context.Background(), gate.KindOrders, []string{"id", "tenant_id"}, nil)
	require.NoError(t, err)
	require.Equal(t, "SELECT id, tenant_id FROM orders", db.sql)

	// writes stay scoped even on the elevated gate
	_, err = admin.Update(context.Background(), gate.KindOrders, gate.Values{"status": "PAID"}, nil)
	require.ErrorIs(t, err, gate.ErrTenantMissing)
}

func TestFilterNullAndComparisons(t *testing.T) {
	db := &capturingDB{}
	g := gate.New(db)
	ctx, _ := tenantCtx(t)

	_, err := g.Select(ctx, gate.KindProducts, []string{"id"}, gate.Filter{
		"deleted_at":  nil,
		"price_cents": gate.Lte(int64(5000)),
	})
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM products WHERE deleted_at IS NULL AND price_cents <= $1 AND tenant_id = $2", db.sql)
}

func TestInvalidIdentifierRejected(t *testing.T) {
	g := gate.New(&capturingDB{})
	ctx, _ := tenantCtx(t)
	_, err := g.Select(ctx, gate.KindProducts, []string{"id; DROP TABLE products"}, nil)
	require.Error(t, err)
	require.False(t, errors.Is(err, gate.ErrTenantMissing))
}

func TestListOpts(t *testing.T) {
	db := &capturingDB{}
	g := gate.New(db)
	ctx, _ := tenantCtx(t)

	_, err := g.Select(ctx, gate.KindOrders, []string{"id"}, nil, gate.ListOpts{
		OrderBy: "created_at", Desc: true, Limit: 20, Offset: 40,
	})
	require.NoError(t, err)
	require.Equal(t, "SELECT id FROM orders WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3", db.sql)
}
