// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package metrics counts what the Torc store client does: requests per
// store operation, response statuses, latencies, and transport errors.
// Callers can poll GetStats to report client health.
package metrics

import (
	"sync"
	"time"
)

// Collector receives one callback per store request lifecycle step.
type Collector interface {
	RecordRequest(method, path string)
	RecordResponse(method, path string, statusCode int, duration time.Duration)
	RecordError(method, path string, err error)
}

// DurationStats aggregates request latencies for one operation.
type DurationStats struct {
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Stats is a snapshot of everything the collector has seen.
type Stats struct {
	TotalRequests  int64
	TotalResponses int64
	TotalErrors    int64

	RequestsByOperation map[string]int64
	ResponsesByStatus   map[int]int64
	ErrorsByOperation   map[string]int64
	LatencyByOperation  map[string]DurationStats

	StartTime time.Time
	Duration  time.Duration
}

// InMemoryCollector is the default, mutex-guarded collector.
type InMemoryCollector struct {
	mu sync.Mutex

	totalRequests  int64
	totalResponses int64
	totalErrors    int64

	requestsByOp  map[string]int64
	statusCounts  map[int]int64
	errorsByOp    map[string]int64
	latenciesByOp map[string]*DurationStats

	startTime time.Time
}

// NewInMemoryCollector returns an empty collector.
func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		requestsByOp:  make(map[string]int64),
		statusCounts:  make(map[int]int64),
		errorsByOp:    make(map[string]int64),
		latenciesByOp: make(map[string]*DurationStats),
		startTime:     time.Now(),
	}
}

func opKey(method, path string) string { return method + " " + path }

func (c *InMemoryCollector) RecordRequest(method, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.requestsByOp[opKey(method, path)]++
}

func (c *InMemoryCollector) RecordResponse(method, path string, statusCode int, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalResponses++
	c.statusCounts[statusCode]++

	key := opKey(method, path)
	d := c.latenciesByOp[key]
	if d == nil {
		d = &DurationStats{Min: duration, Max: duration}
		c.latenciesByOp[key] = d
	}
	d.Count++
	d.Total += duration
	if duration < d.Min {
		d.Min = duration
	}
	if duration > d.Max {
		d.Max = duration
	}
}

func (c *InMemoryCollector) RecordError(method, path string, _ error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalErrors++
	c.errorsByOp[opKey(method, path)]++
}

// GetStats returns a consistent snapshot.
func (c *InMemoryCollector) GetStats() *Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &Stats{
		TotalRequests:       c.totalRequests,
		TotalResponses:      c.totalResponses,
		TotalErrors:         c.totalErrors,
		RequestsByOperation: make(map[string]int64, len(c.requestsByOp)),
		ResponsesByStatus:   make(map[int]int64, len(c.statusCounts)),
		ErrorsByOperation:   make(map[string]int64, len(c.errorsByOp)),
		LatencyByOperation:  make(map[string]DurationStats, len(c.latenciesByOp)),
		StartTime:           c.startTime,
		Duration:            time.Since(c.startTime),
	}
	for k, v := range c.requestsByOp {
		s.RequestsByOperation[k] = v
	}
	for k, v := range c.statusCounts {
		s.ResponsesByStatus[k] = v
	}
	for k, v := range c.errorsByOp {
		s.ErrorsByOperation[k] = v
	}
	for k, d := range c.latenciesByOp {
		out := *d
		if d.Count > 0 {
			out.Avg = time.Duration(int64(d.Total) / d.Count)
		}
		s.LatencyByOperation[k] = out
	}
	return s
}

// Reset clears all counters.
func (c *InMemoryCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests, c.totalResponses, c.totalErrors = 0, 0, 0
	c.requestsByOp = make(map[string]int64)
	c.statusCounts = make(map[int]int64)
	c.errorsByOp = make(map[string]int64)
	c.latenciesByOp = make(map[string]*DurationStats)
	c.startTime = time.Now()
}

// NoOpCollector discards everything; the default when metrics are off.
type NoOpCollector struct{}

func (NoOpCollector) RecordRequest(string, string)                             {}
func (NoOpCollector) RecordResponse(string, string, int, time.Duration)        {}
func (NoOpCollector) RecordError(string, string, error)                        {}
