// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPExponentialBackoffDefaults(t *testing.T) {
	policy := NewHTTPExponentialBackoff()
	assert.Equal(t, 3, policy.MaxRetries())
	assert.Equal(t, time.Second, policy.WaitTime(0))
}

func TestShouldRetryStatusCodes(t *testing.T) {
	policy := NewHTTPExponentialBackoff().WithMaxRetries(3)
	ctx := context.Background()

	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"throttled", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"unavailable", http.StatusServiceUnavailable, true},
		{"gateway timeout", http.StatusGatewayTimeout, true},
		{"ok", http.StatusOK, false},
		{"not found", http.StatusNotFound, false},
		{"conflict", http.StatusConflict, false},
		{"validation failure", http.StatusUnprocessableEntity, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status}
			assert.Equal(t, tt.want, policy.ShouldRetry(ctx, resp, nil, 0))
		})
	}
}

func TestShouldRetryTransportError(t *testing.T) {
	policy := NewHTTPExponentialBackoff().WithMaxRetries(2)
	ctx := context.Background()

	assert.True(t, policy.ShouldRetry(ctx, nil, errors.New("connection refused"), 0))
	assert.True(t, policy.ShouldRetry(ctx, nil, errors.New("connection refused"), 1))
	// budget exhausted
	assert.False(t, policy.ShouldRetry(ctx, nil, errors.New("connection refused"), 2))
}

func TestShouldRetryStopsOnCanceledContext(t *testing.T) {
	policy := NewHTTPExponentialBackoff()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, policy.ShouldRetry(ctx, nil, errors.New("boom"), 0))
}

func TestWaitTimeGrowsAndCaps(t *testing.T) {
	policy := NewHTTPExponentialBackoff().
		WithMinWaitTime(100 * time.Millisecond).
		WithMaxWaitTime(400 * time.Millisecond).
		WithBackoffFactor(2.0).
		WithJitter(false)

	assert.Equal(t, 100*time.Millisecond, policy.WaitTime(1))
	assert.Equal(t, 200*time.Millisecond, policy.WaitTime(2))
	assert.Equal(t, 400*time.Millisecond, policy.WaitTime(3))
	assert.Equal(t, 400*time.Millisecond, policy.WaitTime(10))
}

func TestWaitTimeJitterStaysBounded(t *testing.T) {
	policy := NewHTTPExponentialBackoff().
		WithMinWaitTime(100 * time.Millisecond).
		WithMaxWaitTime(time.Second).
		WithJitter(true)

	for i := 0; i < 50; i++ {
		w := policy.WaitTime(1)
		assert.GreaterOrEqual(t, w, 100*time.Millisecond)
		assert.LessOrEqual(t, w, 110*time.Millisecond)
	}
}

func TestNoRetry(t *testing.T) {
	policy := NewNoRetry()
	assert.False(t, policy.ShouldRetry(context.Background(), &http.Response{StatusCode: 503}, nil, 0))
	assert.Zero(t, policy.WaitTime(5))
	assert.Zero(t, policy.MaxRetries())
}

func TestPolicyInterface(t *testing.T) {
	var _ Policy = &HTTPExponentialBackoff{}
	var _ Policy = &NoRetry{}
}

func TestLinearBackoffDelays(t *testing.T) {
	b := &LinearBackoff{Step: 2 * time.Second, Cap: 5 * time.Second}

	d, ok := b.NextDelay(0)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, d)

	d, _ = b.NextDelay(2)
	assert.Equal(t, 4*time.Second, d)

	// capped, never gives up
	d, ok = b.NextDelay(100)
	require.True(t, ok)
	assert.Equal(t, 5*time.Second, d)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), &LinearBackoff{Step: time.Millisecond, Cap: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Do(ctx, NewLinearBackoff(), func() error { return errors.New("always") })
	assert.ErrorIs(t, err, context.Canceled)
}
