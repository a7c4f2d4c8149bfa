// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Timeout attaches a deadline to the request context. Handlers and their
// database calls observe the deadline through ctx; if one returns without
// writing anything after the deadline passed, the client gets a 503.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			dw := &deadlineWriter{ResponseWriter: w}
			next.ServeHTTP(dw, r.WithContext(ctx))

			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !dw.wrote {
				WriteAPIError(w, http.StatusServiceUnavailable, "timeout", "Request timed out.")
			}
		})
	}
}

// deadlineWriter records whether the handler produced any response.
type deadlineWriter struct {
	http.ResponseWriter
	wrote bool
}

func (dw *deadlineWriter) WriteHeader(code int) {
	dw.wrote = true
	dw.ResponseWriter.WriteHeader(code)
}

func (dw *deadlineWriter) Write(b []byte) (int, error) {
	dw.wrote = true
	return dw.ResponseWriter.Write(b)
}
