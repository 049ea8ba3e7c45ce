// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package retry defines the retry policies the Torc store client
// applies to its HTTP requests, and the backoff strategies other
// components (the SSE watcher's reconnect loop) share. The core never
// retries at the engine level; everything here sits strictly
// below the store interfaces.
package retry

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// Policy decides whether and when one store request is retried.
type Policy interface {
	// ShouldRetry reports whether the attempt-th try (0-based) should
	// be repeated given the response or transport error it produced.
	ShouldRetry(ctx context.Context, resp *http.Response, err error, attempt int) bool

	// WaitTime returns how long to wait before the given attempt.
	WaitTime(attempt int) time.Duration

	// MaxRetries is the retry budget after the initial request.
	MaxRetries() int
}

// retryableStatus reports whether a store response status is worth
// retrying: throttling and transient server/gateway failures. Client
// errors (4xx) always surface immediately, since for the store API they
// mean a validation or ownership problem a retry cannot fix.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// HTTPExponentialBackoff retries transport errors and retryable
// statuses with exponentially growing, jittered waits.
type HTTPExponentialBackoff struct {
	maxRetries    int
	minWaitTime   time.Duration
	maxWaitTime   time.Duration
	backoffFactor float64
	jitter        bool
}

// NewHTTPExponentialBackoff returns the default policy the store
// client installs when the caller does not override it: three retries
// between one and thirty seconds.
func NewHTTPExponentialBackoff() *HTTPExponentialBackoff {
	return &HTTPExponentialBackoff{
		maxRetries:    3,
		minWaitTime:   1 * time.Second,
		maxWaitTime:   30 * time.Second,
		backoffFactor: 2.0,
		jitter:        true,
	}
}

// WithMaxRetries sets the retry budget.
func (e *HTTPExponentialBackoff) WithMaxRetries(maxRetries int) *HTTPExponentialBackoff {
	e.maxRetries = maxRetries
	return e
}

// WithMinWaitTime sets the first wait.
func (e *HTTPExponentialBackoff) WithMinWaitTime(minWaitTime time.Duration) *HTTPExponentialBackoff {
	e.minWaitTime = minWaitTime
	return e
}

// WithMaxWaitTime caps the wait.
func (e *HTTPExponentialBackoff) WithMaxWaitTime(maxWaitTime time.Duration) *HTTPExponentialBackoff {
	e.maxWaitTime = maxWaitTime
	return e
}

// WithBackoffFactor sets the growth factor between waits.
func (e *HTTPExponentialBackoff) WithBackoffFactor(backoffFactor float64) *HTTPExponentialBackoff {
	e.backoffFactor = backoffFactor
	return e
}

// WithJitter toggles the 0 to +10% randomisation that keeps a fleet of
// workers from hammering the store in lockstep after an outage.
func (e *HTTPExponentialBackoff) WithJitter(jitter bool) *HTTPExponentialBackoff {
	e.jitter = jitter
	return e
}

func (e *HTTPExponentialBackoff) ShouldRetry(ctx context.Context, resp *http.Response, err error, attempt int) bool {
	if attempt >= e.maxRetries || ctx.Err() != nil {
		return false
	}
	if err != nil {
		return true
	}
	return resp != nil && retryableStatus(resp.StatusCode)
}

func (e *HTTPExponentialBackoff) WaitTime(attempt int) time.Duration {
	if attempt <= 0 {
		return e.minWaitTime
	}
	wait := time.Duration(float64(e.minWaitTime) * math.Pow(e.backoffFactor, float64(attempt-1)))
	if wait > e.maxWaitTime {
		wait = e.maxWaitTime
	}
	if e.jitter {
		wait += time.Duration(rand.Float64() * float64(wait) * 0.1)
	}
	return wait
}

func (e *HTTPExponentialBackoff) MaxRetries() int {
	return e.maxRetries
}

// NoRetry fails on the first error. Used where the error policy
// forbids hidden
// retries outright, e.g. the watch command's store client.
type NoRetry struct{}

// NewNoRetry returns the never-retry policy.
func NewNoRetry() *NoRetry {
	return &NoRetry{}
}

func (n *NoRetry) ShouldRetry(context.Context, *http.Response, error, int) bool { return false }
func (n *NoRetry) WaitTime(int) time.Duration                                   { return 0 }
func (n *NoRetry) MaxRetries() int                                              { return 0 }
