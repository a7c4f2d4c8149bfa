// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// limiterCache lazily creates a rate limiter per key.
type limiterCache[K comparable] struct {
	mu       sync.Mutex
	limiters map[K]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newLimiterCache[K comparable](rps float64, burst int) *limiterCache[K] {
	return &limiterCache[K]{
		limiters: make(map[K]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (c *limiterCache[K]) get(key K) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	limiter, ok := c.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(c.rps, c.burst)
		c.limiters[key] = limiter
	}
	return limiter
}

// clearIfExceeds drops all limiters once the map grows past max. Crude, but
// bounds memory without a background sweeper.
func (c *limiterCache[K]) clearIfExceeds(max int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.limiters) <= max {
		return false
	}
	c.limiters = make(map[K]*rate.Limiter)
	return true
}

// LoginRateLimiter applies per-IP rate limiting to credential endpoints,
// slowing brute-force and enumeration attempts. Account lockout is handled
// separately by the credential store.
type LoginRateLimiter struct {
	limiters *limiterCache[string]
}

// NewLoginRateLimiter creates a limiter allowing roughly one request per
// two seconds per IP, with a small burst.
func NewLoginRateLimiter() *LoginRateLimiter {
	return &LoginRateLimiter{
		limiters: newLimiterCache[string](0.5, 5),
	}
}

// Middleware returns HTTP middleware enforcing the per-IP limit on POSTs.
func (l *LoginRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			if !l.limiters.get(ip).Allow() {
				slog.Warn("login rate limit exceeded", "ip", ip)
				WriteAPIError(w, http.StatusTooManyRequests, "rate_limited",
					"Too many attempts. Please try again later.")
				return
			}

			if l.limiters.clearIfExceeds(10000) {
				slog.Info("cleared login rate limiters due to size")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP extracts the client IP from the request, honoring common
// reverse-proxy headers.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		// X-Forwarded-For can contain multiple IPs; take the first one
		first, _, _ := strings.Cut(ip, ",")
		return strings.TrimSpace(first)
	}
	return r.RemoteAddr
}
