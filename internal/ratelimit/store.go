package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// Limiter counts requests per key in fixed windows kept in a ulule/limiter
// store.
type Limiter struct {
	Store limiter.Store
}

// NewRedisLimiter builds a Limiter whose counters live in Redis.
func NewRedisLimiter(client *redis.Client, prefix string) (Limiter, error) {
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return Limiter{}, err
	}
	return Limiter{Store: store}, nil
}

// NewMemoryLimiter builds a process-local Limiter.
func NewMemoryLimiter(prefix string) Limiter {
	return Limiter{Store: memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: prefix, CleanUpInterval: time.Minute})}
}

// Allow registers a request for key and reports whether it is within limit
// per window.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (allowed bool, remaining int, reset time.Time, err error) {
	if l.Store == nil || limit <= 0 || window <= 0 {
		return true, limit, time.Now().Add(window), nil
	}
	lctx, err := limiter.New(l.Store, limiter.Rate{Period: window, Limit: int64(limit)}).Get(ctx, key)
	if err != nil {
		return false, 0, time.Now().Add(window), err
	}
	return !lctx.Reached, int(lctx.Remaining), time.Unix(lctx.Reset, 0), nil
}

// ParseRate converts the "<limit>-<period>" notation (e.g. 120-M) to a window
// and maximum.
func ParseRate(formatted string) (time.Duration, int, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return 0, 0, err
	}
	return rate.Period, int(rate.Limit), nil
}

// ByClientIP keys requests by the caller's address. It relies on chi's
// RealIP middleware having resolved proxy headers into RemoteAddr.
func ByClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return "ip:" + addr
}
