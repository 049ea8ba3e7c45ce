// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsLifecycle(t *testing.T) {
	c := NewInMemoryCollector()

	c.RecordRequest("GET", "/workflows/1")
	c.RecordResponse("GET", "/workflows/1", 200, 10*time.Millisecond)
	c.RecordRequest("POST", "/workflows")
	c.RecordResponse("POST", "/workflows", 201, 30*time.Millisecond)
	c.RecordRequest("GET", "/workflows/1")
	c.RecordError("GET", "/workflows/1", errors.New("connection reset"))

	s := c.GetStats()
	assert.Equal(t, int64(3), s.TotalRequests)
	assert.Equal(t, int64(2), s.TotalResponses)
	assert.Equal(t, int64(1), s.TotalErrors)
	assert.Equal(t, int64(2), s.RequestsByOperation["GET /workflows/1"])
	assert.Equal(t, int64(1), s.ResponsesByStatus[201])
	assert.Equal(t, int64(1), s.ErrorsByOperation["GET /workflows/1"])
}

func TestLatencyAggregation(t *testing.T) {
	c := NewInMemoryCollector()
	c.RecordResponse("GET", "/jobs/1", 200, 10*time.Millisecond)
	c.RecordResponse("GET", "/jobs/1", 200, 30*time.Millisecond)

	s := c.GetStats()
	lat, ok := s.LatencyByOperation["GET /jobs/1"]
	require.True(t, ok)
	assert.Equal(t, int64(2), lat.Count)
	assert.Equal(t, 10*time.Millisecond, lat.Min)
	assert.Equal(t, 30*time.Millisecond, lat.Max)
	assert.Equal(t, 20*time.Millisecond, lat.Avg)
}

func TestReset(t *testing.T) {
	c := NewInMemoryCollector()
	c.RecordRequest("GET", "/ping")
	c.Reset()
	s := c.GetStats()
	assert.Zero(t, s.TotalRequests)
	assert.Empty(t, s.RequestsByOperation)
}

func TestConcurrentRecording(t *testing.T) {
	c := NewInMemoryCollector()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c.RecordRequest("GET", "/jobs")
				c.RecordResponse("GET", "/jobs", 200, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	s := c.GetStats()
	assert.Equal(t, int64(1000), s.TotalRequests)
	assert.Equal(t, int64(1000), s.TotalResponses)
}

func TestNoOpCollectorImplementsInterface(t *testing.T) {
	var _ Collector = NoOpCollector{}
	var _ Collector = (*InMemoryCollector)(nil)
}
