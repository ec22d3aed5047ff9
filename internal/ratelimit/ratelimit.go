// Package ratelimit implements a fixed-window request limiter on Redis.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/projectplus/apiserver/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/hlog"
)

// Limiter counts hits per key in fixed windows. It fails open: when Redis is
// unreachable the request is allowed and the error is logged.
type Limiter struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
}

func New(rdb redis.Cmdable, limit int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{rdb: rdb, limit: limit, window: window}
}

// Allow records a hit for resource and id and reports whether it is within
// the limit.
func (l *Limiter) Allow(ctx context.Context, resource, id string) (bool, error) {
	if l.rdb == nil {
		return true, errors.New("ratelimit: redis client is nil")
	}
	if l.limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if count == 1 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			return true, err
		}
	}
	return count <= int64(l.limit), nil
}

// Middleware limits requests per client IP under the given resource name.
func (l *Limiter) Middleware(resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := l.Allow(r.Context(), resource, clientIP(r))
			if err != nil {
				hlog.FromRequest(r).Warn().Err(err).Str("resource", resource).Msg("rate limit check failed")
			}
			if !allowed {
				metrics.RateLimited.WithLabelValues(resource).Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "too many requests, try again later"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
