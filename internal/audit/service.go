// Package audit appends structured entries for every mutating operation.
// Recording is strictly best-effort: a failed insert is logged and swallowed,
// never allowed to fail or roll back the operation it describes.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/obs"
)

// Entry is one append-only audit record.
type Entry struct {
	TenantID   *string
	ActorID    *string
	Action     string
	EntityType string
	EntityID   string
	Changes    any
	IP         string
	UserAgent  string
	RequestID  string
}

// Store defines the persistence operation required for auditing.
type Store interface {
	InsertAuditLog(ctx context.Context, e Entry) error
}

// Service persists audit entries for critical application flows.
type Service struct {
	Store        Store
	Logger       zerolog.Logger
	Enabled      bool
	SamplingRate float64
}

// Record appends the entry. It returns nil on every business path: storage
// failures are logged at error level and swallowed so the caller's primary
// operation is never disturbed.
func (s Service) Record(ctx context.Context, e Entry) {
	if !s.Enabled {
		return
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 {
		if rand.Float64() > s.SamplingRate {
			return
		}
	}
	if err := s.record(ctx, e); err != nil {
		obs.IncAuditFailure()
		s.Logger.Error().Err(err).
			Str("action", e.Action).
			Str("entity_type", e.EntityType).
			Str("entity_id", e.EntityID).
			Msg("audit record failed")
	}
}

func (s Service) record(ctx context.Context, e Entry) error {
	if s.Store == nil {
		return errors.New("audit: store not configured")
	}
	e.Action = strings.TrimSpace(e.Action)
	if e.Action == "" {
		return errors.New("audit: action is required")
	}
	if strings.TrimSpace(e.EntityType) == "" {
		e.EntityType = "unknown"
	}
	return s.Store.InsertAuditLog(ctx, e)
}

// DeriveAction maps an HTTP verb to the canonical audit action, used when a
// route does not supply one explicitly.
func DeriveAction(method string) string {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case http.MethodPost:
		return "CREATE"
	case http.MethodPut, http.MethodPatch:
		return "UPDATE"
	case http.MethodDelete:
		return "DELETE"
	default:
		return strings.ToUpper(strings.TrimSpace(method))
	}
}

// MarshalChanges renders the changes payload as JSONB-ready bytes. A nil or
// unmarshalable payload yields nil so recording can proceed without it.
func MarshalChanges(changes any) []byte {
	if changes == nil {
		return nil
	}
	if raw, ok := changes.([]byte); ok {
		return raw
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return nil
	}
	return data
}
