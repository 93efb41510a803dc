package audit_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/audit"
	"github.com/storelane/backoffice/internal/common"
	"github.com/storelane/backoffice/internal/tenant"
)

type stubStore struct {
	entries []audit.Entry
	err     error
}

func (s *stubStore) InsertAuditLog(_ context.Context, e audit.Entry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

func TestRecordPersistsEntry(t *testing.T) {
	store := &stubStore{}
	svc := audit.Service{Store: store, Enabled: true, Logger: zerolog.Nop()}
	svc.Record(context.Background(), audit.Entry{Action: "order.create", EntityType: "order", EntityID: "o1"})
	if len(store.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.entries))
	}
	if store.entries[0].Action != "order.create" {
		t.Fatalf("unexpected action %q", store.entries[0].Action)
	}
}

func TestRecordDisabledIsNoop(t *testing.T) {
	store := &stubStore{}
	svc := audit.Service{Store: store, Enabled: false, Logger: zerolog.Nop()}
	svc.Record(context.Background(), audit.Entry{Action: "x"})
	if len(store.entries) != 0 {
		t.Fatal("disabled recorder must not write")
	}
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	svc := audit.Service{Store: store, Enabled: true, Logger: zerolog.Nop()}
	// must not panic and must not propagate
	svc.Record(context.Background(), audit.Entry{Action: "order.create"})
}

func TestDeriveAction(t *testing.T) {
	cases := map[string]string{
		http.MethodPost:   "CREATE",
		http.MethodPut:    "UPDATE",
		http.MethodPatch:  "UPDATE",
		http.MethodDelete: "DELETE",
		http.MethodGet:    "GET",
	}
	for method, want := range cases {
		if got := audit.DeriveAction(method); got != want {
			t.Fatalf("DeriveAction(%s) = %s, want %s", method, got, want)
		}
	}
}

func TestFromRequestCapturesMetadata(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("User-Agent", "storefront/2.1")
	ctx := tenant.With(req.Context(), "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d")
	ctx = common.WithUserID(ctx, "u-17")
	req = req.WithContext(ctx)

	e := audit.FromRequest(req)
	if e.TenantID == nil || *e.TenantID != "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d" {
		t.Fatalf("tenant not captured: %+v", e)
	}
	if e.ActorID == nil || *e.ActorID != "u-17" {
		t.Fatalf("actor not captured: %+v", e)
	}
	if e.IP != "203.0.113.9" {
		t.Fatalf("ip = %q", e.IP)
	}
	if e.UserAgent != "storefront/2.1" {
		t.Fatalf("user agent = %q", e.UserAgent)
	}
}
