// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDRoundTrips(t *testing.T) {
	ctx := context.Background()
	ctx = WithWorkflowID(ctx, 42)
	ctx = WithJobID(ctx, 7)
	ctx = WithRunID(ctx, 3)
	ctx = WithWorkerID(ctx, "node1:100")

	wid, ok := WorkflowID(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(42), wid)

	jid, ok := JobID(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), jid)

	rid, ok := RunID(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(3), rid)

	worker, ok := WorkerID(ctx)
	require.True(t, ok)
	assert.Equal(t, "node1:100", worker)
}

func TestIDsAbsentByDefault(t *testing.T) {
	ctx := context.Background()
	_, ok := WorkflowID(ctx)
	assert.False(t, ok)
	_, ok = WorkerID(ctx)
	assert.False(t, ok)
}

func TestWithTimeoutPerOperationClass(t *testing.T) {
	cfg := &TimeoutConfig{
		Read:  time.Second,
		Write: 2 * time.Second,
		List:  3 * time.Second,
		Claim: 500 * time.Millisecond,
		Watch: 0,
	}

	for _, tt := range []struct {
		op   OperationType
		want time.Duration
	}{
		{OpRead, time.Second},
		{OpWrite, 2 * time.Second},
		{OpList, 3 * time.Second},
		{OpClaim, 500 * time.Millisecond},
	} {
		ctx, cancel := WithTimeout(context.Background(), tt.op, cfg)
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		remaining := time.Until(deadline)
		assert.Greater(t, remaining, tt.want-200*time.Millisecond)
		assert.LessOrEqual(t, remaining, tt.want)
		cancel()
	}
}

func TestWithTimeoutWatchHasNoDeadline(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), OpWatch, nil)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)
}

func TestEnsureTimeoutKeepsExistingDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	want, _ := parent.Deadline()

	ctx, cancel2 := EnsureTimeout(parent, time.Hour)
	defer cancel2()
	got, ok := ctx.Deadline()
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestEnsureTimeoutAddsDefault(t *testing.T) {
	ctx, cancel := EnsureTimeout(context.Background(), 0)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.True(t, ok)
}

func TestIsContextError(t *testing.T) {
	assert.True(t, IsContextError(context.Canceled))
	assert.True(t, IsContextError(context.DeadlineExceeded))
	assert.False(t, IsContextError(nil))
	assert.False(t, IsContextError(assert.AnError))
}
