package audit_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/storelane/backoffice/internal/audit"
	"github.com/storelane/backoffice/internal/tenant"
)

func TestHTTPRecorderRecordsAfterHandler(t *testing.T) {
	store := &stubStore{}
	rec := audit.HTTPRecorder{Service: audit.Service{Store: store, Enabled: true, Logger: zerolog.Nop()}}

	handler := rec.Middleware(audit.HTTPConfig{
		Action:     "admin.orders.list",
		EntityType: "order",
		MetadataFunc: func(r *http.Request, status int) map[string]any {
			return map[string]any{"query": r.URL.RawQuery, "status": status}
		},
	})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/orders?status=PAID", nil)
	req = req.WithContext(tenant.With(req.Context(), "acme"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.entries))
	}
	e := store.entries[0]
	if e.Action != "admin.orders.list" || e.EntityType != "order" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	changes, ok := e.Changes.(map[string]any)
	if !ok {
		t.Fatalf("unexpected changes type: %T", e.Changes)
	}
	if changes["status"] != http.StatusOK {
		t.Fatalf("status not captured: %+v", changes)
	}
	if changes["query"] != "status=PAID" {
		t.Fatalf("query not captured: %+v", changes)
	}
}

func TestHTTPRecorderDisabledIsPassthrough(t *testing.T) {
	store := &stubStore{}
	rec := audit.HTTPRecorder{Service: audit.Service{Store: store, Enabled: false, Logger: zerolog.Nop()}}

	handled := false
	handler := rec.Middleware(audit.HTTPConfig{Action: "admin.orders.list"})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			handled = true
			w.WriteHeader(http.StatusOK)
		}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/orders", nil))
	if !handled {
		t.Fatal("handler must still run when auditing is disabled")
	}
	if len(store.entries) != 0 {
		t.Fatal("disabled recorder must not write")
	}
}

func TestHTTPRecorderDefaultsActionFromMethod(t *testing.T) {
	store := &stubStore{}
	rec := audit.HTTPRecorder{Service: audit.Service{Store: store, Enabled: true, Logger: zerolog.Nop()}}

	handler := rec.Middleware(audit.HTTPConfig{EntityType: "order"})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusCreated)
		}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/orders", nil))
	if len(store.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.entries))
	}
	if store.entries[0].Action != "CREATE" {
		t.Fatalf("expected derived action CREATE, got %q", store.entries[0].Action)
	}
}
