package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/storelane/backoffice/internal/common"
	"github.com/storelane/backoffice/internal/tenant"
)

// HTTPRecorder records audit entries for mutating routes after they have been
// handled. Recording never interferes with the response.
type HTTPRecorder struct {
	Service Service
}

// HTTPConfig customises how the audit entry is produced for a route.
type HTTPConfig struct {
	Action        string
	EntityType    string
	EntityIDParam string
	MetadataFunc  func(*http.Request, int) map[string]any
}

// Middleware returns a chi-compatible middleware that records audit entries.
func (rec HTTPRecorder) Middleware(cfg HTTPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !rec.Service.Enabled {
				next.ServeHTTP(w, req)
				return
			}

			recorder := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, req)

			entry := FromRequest(req)
			entry.Action = cfg.Action
			if entry.Action == "" {
				entry.Action = DeriveAction(req.Method)
			}
			entry.EntityType = cfg.EntityType
			if cfg.EntityIDParam != "" {
				entry.EntityID = chi.URLParam(req, cfg.EntityIDParam)
			}
			if cfg.MetadataFunc != nil {
				entry.Changes = cfg.MetadataFunc(req, recorder.Status())
			}
			rec.Service.Record(req.Context(), entry)
		})
	}
}

// FromRequest builds an entry skeleton from request metadata: tenant, actor,
// client IP, user agent, and correlation id.
func FromRequest(req *http.Request) Entry {
	var e Entry
	if req == nil {
		return e
	}
	if tid, ok := tenant.From(req.Context()); ok {
		e.TenantID = &tid
	}
	if actor, ok := common.UserID(req.Context()); ok && actor != "" {
		e.ActorID = &actor
	}
	e.IP = common.ClientIP(req)
	e.UserAgent = req.Header.Get("User-Agent")
	e.RequestID = chimw.GetReqID(req.Context())
	return e
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}
