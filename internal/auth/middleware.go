package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/storelane/backoffice/internal/common"
	"github.com/storelane/backoffice/internal/tenant"
)

var errNoToken = errors.New("auth: token missing")

// errTenantMismatch means a tenant-pinned token was used against a different
// tenant's surface.
var errTenantMismatch = errors.New("auth: token tenant does not match request tenant")

// Middleware attaches verified identity to request contexts. It runs after
// tenant resolution so tenant-pinned tokens can be checked against the
// resolved tenant.
type Middleware struct {
	Verifier Verifier
}

// Authenticate attaches the user identifier when a valid token is present and
// lets anonymous requests through untouched.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			if errors.Is(err, errTenantMismatch) {
				common.JSONError(w, http.StatusForbidden, "TENANT_MISMATCH", "token is not valid for this tenant", nil)
				return
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects requests that do not carry a valid token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			if errors.Is(err, errTenantMismatch) {
				common.JSONError(w, http.StatusForbidden, "TENANT_MISMATCH", "token is not valid for this tenant", nil)
				return
			}
			var appErr *common.AppError
			if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
				common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	token := extractBearer(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	claims, err := m.Verifier.ParseAccessToken(token)
	if err != nil {
		return r.Context(), err
	}
	if claims.TenantID != "" {
		if resolved, ok := tenant.From(r.Context()); ok && resolved != claims.TenantID {
			return r.Context(), errTenantMismatch
		}
	}
	return common.WithUserID(r.Context(), claims.UserID), nil
}

func extractBearer(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
