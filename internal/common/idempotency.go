package common

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/storelane/backoffice/internal/tenant"
)

// Idem guards write endpoints with an Idempotency-Key header backed by Redis.
// Checkout and settlement mount it so a retried POST cannot create a second
// order or settle twice.
type Idem struct {
	R   *redis.Client
	TTL time.Duration
}

// hashKey hides raw client-supplied keys from the keyspace. The tenant id is
// folded into the hash so one tenant's key can never shadow another's.
func hashKey(tenantID, key string) string {
	sum := sha256.Sum256([]byte(tenant.PrefixKey(tenantID, key)))
	return "idem:" + hex.EncodeToString(sum[:])
}

// Middleware rejects a repeated Idempotency-Key with 409 for the TTL window.
// Requests without the header pass through untouched.
func (i Idem) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Idempotency-Key")
		if header == "" || i.R == nil {
			next.ServeHTTP(w, r)
			return
		}
		tenantID, _ := tenant.From(r.Context())
		key := hashKey(tenantID, header)
		ok, err := i.R.SetNX(r.Context(), key, "locked", i.TTL).Result()
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store error", map[string]any{"error": err.Error()})
			return
		}
		if !ok {
			JSONError(w, http.StatusConflict, "IDEMPOTENT_REPLAY", "duplicate request", nil)
			return
		}
		defer func() {
			// refresh expiry even if the handler panics
			_ = i.R.Expire(context.Background(), key, i.TTL).Err()
		}()
		next.ServeHTTP(w, r)
	})
}
