package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/storelane/backoffice/internal/gate"
)

// GateStore persists audit entries through the data gate. audit_logs is a
// pass-through kind: entries may describe system actions with no tenant, so
// the tenant column is stamped here from the entry itself, not from context.
type GateStore struct {
	G *gate.Gate
}

// InsertAuditLog writes one append-only row.
func (s GateStore) InsertAuditLog(ctx context.Context, e Entry) error {
	vals := gate.Values{
		"id":          pgtype.UUID{Bytes: uuid.New(), Valid: true},
		"tenant_id":   toNullUUID(e.TenantID),
		"actor_id":    toNullText(e.ActorID),
		"action":      e.Action,
		"entity_type": e.EntityType,
		"entity_id":   toNullText(&e.EntityID),
		"changes":     MarshalChanges(e.Changes),
		"ip":          toNullText(&e.IP),
		"user_agent":  toNullText(&e.UserAgent),
		"request_id":  toNullText(&e.RequestID),
	}
	return s.G.Insert(ctx, gate.KindAuditLogs, vals)
}

func toNullUUID(value *string) pgtype.UUID {
	if value == nil {
		return pgtype.UUID{}
	}
	parsed, err := uuid.Parse(*value)
	if err != nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func toNullText(value *string) pgtype.Text {
	if value == nil || *value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *value, Valid: true}
}
