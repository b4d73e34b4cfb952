package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
)

// RateLimiter limits requests per client address
type RateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	logger   *slog.Logger
	rejected metric.Int64Counter
}

// visitor represents a single client's rate limiter
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter. rejected may be nil.
func NewRateLimiter(requestsPerSecond float64, burst int, logger *slog.Logger, rejected metric.Int64Counter) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(requestsPerSecond),
		burst:    burst,
		logger:   logger,
		rejected: rejected,
	}
}

// getVisitor retrieves or creates the limiter for a client
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[key]
	if !exists {
		limiter := rate.NewLimiter(rl.limit, rl.burst)
		rl.visitors[key] = &visitor{
			limiter:  limiter,
			lastSeen: time.Now(),
		}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

// Cleanup removes visitors not seen for maxIdle every interval until ctx is
// done.
func (rl *RateLimiter) Cleanup(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evict(maxIdle)
		}
	}
}

func (rl *RateLimiter) evict(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, v := range rl.visitors {
		if time.Since(v.lastSeen) > maxIdle {
			delete(rl.visitors, key)
		}
	}
}

func (rl *RateLimiter) len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// clientKey drops the port so every connection from one host shares a
// limiter.
func clientKey(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

// RateLimitMiddleware rejects requests over the limit with 429
func (rl *RateLimiter) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r.RemoteAddr)

		if !rl.getVisitor(key).Allow() {
			rl.logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("ip", key),
				slog.String("path", r.URL.Path))
			if rl.rejected != nil {
				rl.rejected.Add(r.Context(), 1, metric.WithAttributes(attribute.String("path", r.URL.Path)))
			}
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.burst))

		next.ServeHTTP(w, r)
	})
}
