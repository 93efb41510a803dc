package ratelimit

import (
	"net/http"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// NewGlobal builds the per-client limiter applied in front of the whole API.
// The formatted rate uses the limiter syntax, e.g. "120-M" for 120 requests
// per minute. The finer per-tenant limits on hot routes use Limiter instead.
func NewGlobal(rdb *redis.Client, formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{
		Prefix: "rl:global",
	})
	if err != nil {
		return nil, err
	}
	return limiter.New(store, rate), nil
}

// GlobalMiddleware adapts a ulule limiter into chi-compatible middleware.
func GlobalMiddleware(l *limiter.Limiter) func(http.Handler) http.Handler {
	mw := limiterstdlib.NewMiddleware(l)
	return mw.Handler
}
