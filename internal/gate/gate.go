// Package gate is the single chokepoint between the application and the
// shared multi-tenant tables. Every create/read/update/delete against a
// tenant-owned entity kind passes through it; the gate reads the active
// tenant from the request context and merges the tenant predicate into the
// statement, so handler code never threads tenant identifiers by hand and can
// never forget one. When no tenant is bound the operation fails closed before
// any SQL is issued.
package gate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/storelane/backoffice/internal/tenant"
)

var (
	// ErrTenantMissing indicates a tenant-owned operation was attempted with
	// no tenant bound to the context. This is a wiring defect, not user error.
	ErrTenantMissing = errors.New("gate: tenant context missing")
	// ErrTenantInvalid indicates the bound tenant identifier could not be parsed.
	ErrTenantInvalid = errors.New("gate: tenant identifier invalid")
	// ErrUnknownKind indicates the entity kind is not on the gate's allow-list.
	ErrUnknownKind = errors.New("gate: unknown entity kind")
	// ErrPrivilege indicates an elevated gate was requested without an
	// explicit cross-tenant privilege.
	ErrPrivilege = errors.New("gate: cross-tenant privilege required")
)

// DBTX is the execution surface the gate runs on. Both *pgxpool.Pool and
// pgx.Tx satisfy it, so the same gate code serves pooled reads and
// transactional writes.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Gate scopes data access to the tenant carried by the operation context.
type Gate struct {
	db       DBTX
	elevated bool
}

// New constructs a gate over the provided execution surface.
func New(db DBTX) *Gate {
	return &Gate{db: db}
}

// WithTx rebinds the gate to a transaction. Scoping behaviour is unchanged.
func (g *Gate) WithTx(tx DBTX) *Gate {
	return &Gate{db: tx, elevated: g.elevated}
}

// Privilege authorises a cross-tenant read bypass. Callers must set
// CrossTenant explicitly and name a reason; the gate never infers elevation.
type Privilege struct {
	CrossTenant bool
	Reason      string
}

// Elevated returns a gate whose reads skip tenant injection. Writes remain
// scoped: there is no cross-tenant mutation path through the gate.
func (g *Gate) Elevated(p Privilege) (*Gate, error) {
	if !p.CrossTenant || strings.TrimSpace(p.Reason) == "" {
		return nil, ErrPrivilege
	}
	return &Gate{db: g.db, elevated: true}, nil
}

// ListOpts orders and pages a Select.
type ListOpts struct {
	OrderBy string
	Desc    bool
	Limit   int32
	Offset  int32
}

// Select reads columns of rows matching the filter, with the tenant predicate
// merged in for tenant-owned kinds.
func (g *Gate) Select(ctx context.Context, kind Kind, columns []string, f Filter, opts ...ListOpts) (pgx.Rows, error) {
	stmt, args, err := g.buildSelect(ctx, kind, columns, f, opts...)
	if err != nil {
		return nil, err
	}
	return g.db.Query(ctx, stmt, args...)
}

// SelectRow reads a single row matching the filter.
func (g *Gate) SelectRow(ctx context.Context, kind Kind, columns []string, f Filter) (pgx.Row, error) {
	stmt, args, err := g.buildSelect(ctx, kind, columns, f)
	if err != nil {
		return nil, err
	}
	return g.db.QueryRow(ctx, stmt, args...), nil
}

// Insert writes one row. For tenant-owned kinds the active tenant is stamped
// onto the row, overwriting any caller-supplied tenant_id.
func (g *Gate) Insert(ctx context.Context, kind Kind, v Values) error {
	stmt, args, err := g.buildInsert(ctx, kind, v, nil)
	if err != nil {
		return err
	}
	_, err = g.db.Exec(ctx, stmt, args...)
	return err
}

// InsertReturning writes one row and returns the requested columns.
func (g *Gate) InsertReturning(ctx context.Context, kind Kind, v Values, returning []string) (pgx.Row, error) {
	stmt, args, err := g.buildInsert(ctx, kind, v, returning)
	if err != nil {
		return nil, err
	}
	return g.db.QueryRow(ctx, stmt, args...), nil
}

// Update mutates rows matching the filter and reports how many were touched.
// The tenant predicate is merged into the filter so a caller can never reach
// another tenant's rows, even with a guessed primary key.
func (g *Gate) Update(ctx context.Context, kind Kind, set Values, f Filter) (int64, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	f, err := g.scopeFilter(ctx, spec, f)
	if err != nil {
		return 0, err
	}
	if len(set) == 0 {
		return 0, errors.New("gate: update requires at least one column")
	}

	var b builder
	b.write("UPDATE " + spec.table + " SET ")
	for i, key := range sortedKeys(set) {
		if err := validIdent(key); err != nil {
			return 0, err
		}
		if i > 0 {
			b.write(", ")
		}
		switch v := set[key].(type) {
		case Expr:
			fragment, err := b.bindExpr(v)
			if err != nil {
				return 0, err
			}
			b.write(key + " = " + fragment)
		default:
			b.write(key + " = " + b.bind(v))
		}
	}
	if err := b.writeWhere(f); err != nil {
		return 0, err
	}
	tag, err := g.db.Exec(ctx, b.sql.String(), b.args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Delete removes rows matching the filter, scoped to the active tenant.
func (g *Gate) Delete(ctx context.Context, kind Kind, f Filter) (int64, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	f, err := g.scopeFilter(ctx, spec, f)
	if err != nil {
		return 0, err
	}
	if len(f) == 0 {
		return 0, errors.New("gate: refusing unfiltered delete")
	}
	var b builder
	b.write("DELETE FROM " + spec.table)
	if err := b.writeWhere(f); err != nil {
		return 0, err
	}
	tag, err := g.db.Exec(ctx, b.sql.String(), b.args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Exec runs a statement the structured operations cannot express, such as the
// order-counter upsert. The kind must still be on the allow-list and the
// statement is the caller's responsibility to keep tenant-scoped; TenantUUID
// provides the value to bind.
func (g *Gate) Exec(ctx context.Context, kind Kind, sql string, args ...any) (pgconn.CommandTag, error) {
	if _, ok := kindSpecs[kind]; !ok {
		return pgconn.CommandTag{}, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return g.db.Exec(ctx, sql, args...)
}

// QueryRowRaw mirrors Exec for single-row statements.
func (g *Gate) QueryRowRaw(ctx context.Context, kind Kind, sql string, args ...any) (pgx.Row, error) {
	if _, ok := kindSpecs[kind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return g.db.QueryRow(ctx, sql, args...), nil
}

// TenantUUID resolves the active tenant as a pgtype.UUID, failing closed when
// absent or malformed.
func TenantUUID(ctx context.Context) (pgtype.UUID, error) {
	tenantID, ok := tenant.From(ctx)
	if !ok {
		return pgtype.UUID{}, ErrTenantMissing
	}
	parsed, err := uuid.Parse(tenantID)
	if err != nil {
		return pgtype.UUID{}, fmt.Errorf("%w: %v", ErrTenantInvalid, err)
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}, nil
}

func (g *Gate) buildSelect(ctx context.Context, kind Kind, columns []string, f Filter, opts ...ListOpts) (string, []any, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if len(columns) == 0 {
		return "", nil, errors.New("gate: select requires columns")
	}
	for _, col := range columns {
		if err := validIdent(col); err != nil {
			return "", nil, err
		}
	}
	if spec.tenantOwned && !g.elevated {
		tid, err := TenantUUID(ctx)
		if err != nil {
			return "", nil, err
		}
		f = mergeTenant(f, tid)
	}

	var b builder
	b.write("SELECT " + strings.Join(columns, ", ") + " FROM " + spec.table)
	if err := b.writeWhere(f); err != nil {
		return "", nil, err
	}
	if len(opts) > 0 {
		o := opts[0]
		if o.OrderBy != "" {
			if err := validIdent(o.OrderBy); err != nil {
				return "", nil, err
			}
			b.write(" ORDER BY " + o.OrderBy)
			if o.Desc {
				b.write(" DESC")
			}
		}
		if o.Limit > 0 {
			b.write(" LIMIT " + b.bind(o.Limit))
		}
		if o.Offset > 0 {
			b.write(" OFFSET " + b.bind(o.Offset))
		}
	}
	return b.sql.String(), b.args, nil
}

func (g *Gate) buildInsert(ctx context.Context, kind Kind, v Values, returning []string) (string, []any, error) {
	spec, ok := kindSpecs[kind]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if len(v) == 0 {
		return "", nil, errors.New("gate: insert requires values")
	}
	if spec.tenantOwned {
		tid, err := TenantUUID(ctx)
		if err != nil {
			return "", nil, err
		}
		stamped := make(Values, len(v)+1)
		for k, val := range v {
			stamped[k] = val
		}
		stamped["tenant_id"] = tid
		v = stamped
	}

	var b builder
	cols := sortedKeys(v)
	placeholders := make([]string, 0, len(cols))
	for _, col := range cols {
		if err := validIdent(col); err != nil {
			return "", nil, err
		}
		placeholders = append(placeholders, b.bind(v[col]))
	}
	b.write("INSERT INTO " + spec.table + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(placeholders, ", ") + ")")
	if len(returning) > 0 {
		for _, col := range returning {
			if err := validIdent(col); err != nil {
				return "", nil, err
			}
		}
		b.write(" RETURNING " + strings.Join(returning, ", "))
	}
	return b.sql.String(), b.args, nil
}

// writes always require the tenant, elevated or not
func (g *Gate) scopeFilter(ctx context.Context, spec kindSpec, f Filter) (Filter, error) {
	if !spec.tenantOwned {
		return f, nil
	}
	tid, err := TenantUUID(ctx)
	if err != nil {
		return nil, err
	}
	return mergeTenant(f, tid), nil
}

func mergeTenant(f Filter, tid pgtype.UUID) Filter {
	merged := make(Filter, len(f)+1)
	for k, v := range f {
		merged[k] = v
	}
	merged["tenant_id"] = tid
	return merged
}
