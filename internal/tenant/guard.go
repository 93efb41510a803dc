package tenant

import "net/http"

// RequireTenant rejects requests whose context carries no tenant identifier.
// Routes that touch tenant-owned tables mount this so a misconfigured
// deployment fails closed at the boundary instead of deep in a query.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := From(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"code":"TENANT_REQUIRED","message":"tenant is required"}}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
