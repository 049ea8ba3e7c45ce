// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package middleware wraps the store client's http.RoundTripper with
// the cross-cutting request concerns: identifying headers, request
// correlation ids, per-request logging, and metrics. Retry and timeout
// handling deliberately live elsewhere (pkg/retry and pkg/context) so
// each request passes through exactly one retry loop.
package middleware

import (
	"net/http"
	"time"

	"github.com/NREL/torc/pkg/logging"
	"github.com/NREL/torc/pkg/metrics"
)

// Middleware wraps an http.RoundTripper.
type Middleware func(http.RoundTripper) http.RoundTripper

// Chain composes middlewares so the first listed is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// WithHeaders sets fixed headers on every request.
func WithHeaders(headers map[string]string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			req = req.Clone(req.Context())
			for key, value := range headers {
				req.Header.Set(key, value)
			}
			return next.RoundTrip(req)
		})
	}
}

// WithUserAgent identifies the torc client to the store.
func WithUserAgent(userAgent string) Middleware {
	return WithHeaders(map[string]string{"User-Agent": userAgent})
}

// RequestIDHeader carries the client-generated correlation id; the
// store echoes it into its own logs so one submission can be traced
// across orchestrator, server, and worker.
const RequestIDHeader = "X-Request-ID"

// WithRequestID stamps every request with a fresh correlation id.
func WithRequestID(generator func() string) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			req = req.Clone(req.Context())
			req.Header.Set(RequestIDHeader, generator())
			return next.RoundTrip(req)
		})
	}
}

// WithLogging emits one debug line per request and one debug/error line
// per outcome, carrying the correlation id when present.
func WithLogging(logger logging.Logger) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			l := logger.With(
				"method", req.Method,
				"path", req.URL.Path,
				"request_id", req.Header.Get(RequestIDHeader),
			)
			l.Debug("store request")

			start := time.Now()
			resp, err := next.RoundTrip(req)
			elapsed := time.Since(start)

			if err != nil {
				l.Error("store request failed", "error", err, "duration_ms", elapsed.Milliseconds())
				return nil, err
			}
			l.Debug("store response", "status", resp.StatusCode, "duration_ms", elapsed.Milliseconds())
			return resp, nil
		})
	}
}

// WithMetrics records the request lifecycle into a collector. The
// store client records at its operation layer instead, so this exists
// for callers that assemble their own transport (the worker's local
// API client in tests).
func WithMetrics(collector metrics.Collector) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			collector.RecordRequest(req.Method, req.URL.Path)
			start := time.Now()
			resp, err := next.RoundTrip(req)
			if err != nil {
				collector.RecordError(req.Method, req.URL.Path, err)
				return nil, err
			}
			collector.RecordResponse(req.Method, req.URL.Path, resp.StatusCode, time.Since(start))
			return resp, nil
		})
	}
}
