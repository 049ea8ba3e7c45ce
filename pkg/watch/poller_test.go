// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package watch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockJobLister struct {
	mu   sync.RWMutex
	jobs []model.Job
	err  error
}

func (m *mockJobLister) List(ctx context.Context, workflowID int64) ([]model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	jobs := make([]model.Job, len(m.jobs))
	copy(jobs, m.jobs)
	return jobs, nil
}

func (m *mockJobLister) setJobs(jobs []model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs = jobs
}

func collectJobEvents(t *testing.T, ch <-chan watch.JobEvent, want int, timeout time.Duration) []watch.JobEvent {
	t.Helper()
	var events []watch.JobEvent
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, e)
			if len(events) >= want {
				return events
			}
		case <-deadline:
			return events
		}
	}
}

func TestJobPoller_Watch_DetectsStatusChangeAndNewJob(t *testing.T) {
	lister := &mockJobLister{
		jobs: []model.Job{
			{ID: 1, Status: model.JobRunning},
			{ID: 2, Status: model.JobPending},
		},
	}

	poller := watch.NewJobPoller(lister.List).WithPollInterval(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventChan := poller.Watch(ctx, 1)
	time.Sleep(30 * time.Millisecond)

	lister.setJobs([]model.Job{
		{ID: 1, Status: model.JobDone},
		{ID: 2, Status: model.JobRunning},
		{ID: 3, Status: model.JobPending},
	})

	events := collectJobEvents(t, eventChan, 3, 300*time.Millisecond)
	require.GreaterOrEqual(t, len(events), 3)

	var statusChanges, newJobs int
	for _, e := range events {
		switch e.EventType {
		case "job_status_change":
			statusChanges++
		case "job_new":
			newJobs++
		}
	}
	assert.Equal(t, 2, statusChanges)
	assert.Equal(t, 1, newJobs)
}

func TestJobPoller_Watch_EmitsJobRemoved(t *testing.T) {
	lister := &mockJobLister{jobs: []model.Job{{ID: 1, Status: model.JobRunning}}}
	poller := watch.NewJobPoller(lister.List).WithPollInterval(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventChan := poller.Watch(ctx, 1)
	time.Sleep(30 * time.Millisecond)

	lister.setJobs(nil)

	events := collectJobEvents(t, eventChan, 1, 300*time.Millisecond)
	require.Len(t, events, 1)
	assert.Equal(t, "job_removed", events[0].EventType)
	assert.Equal(t, int64(1), events[0].JobID)
}

func TestJobPoller_Watch_ErrorsAreSwallowed(t *testing.T) {
	lister := &mockJobLister{err: errors.New("store unavailable")}
	poller := watch.NewJobPoller(lister.List).WithPollInterval(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventChan := poller.Watch(ctx, 1)

	select {
	case _, ok := <-eventChan:
		if ok {
			t.Fatal("expected no events while the lister errors")
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJobPoller_Watch_ClosesOnContextCancel(t *testing.T) {
	lister := &mockJobLister{jobs: []model.Job{{ID: 1, Status: model.JobRunning}}}
	poller := watch.NewJobPoller(lister.List).WithPollInterval(1 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	eventChan := poller.Watch(ctx, 1)
	cancel()

	select {
	case _, ok := <-eventChan:
		assert.False(t, ok)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("channel did not close after context cancellation")
	}
}

func TestComputeNodePoller_Watch_DetectsStatusChange(t *testing.T) {
	id := int64(42)
	nodes := []model.ComputeNode{{ID: 1, ScheduledComputeNodeID: &id, Active: true}}
	var mu sync.Mutex
	listFunc := func(ctx context.Context, workflowID int64) ([]model.ComputeNode, error) {
		mu.Lock()
		defer mu.Unlock()
		out := make([]model.ComputeNode, len(nodes))
		copy(out, nodes)
		return out, nil
	}

	poller := watch.NewComputeNodePoller(listFunc).WithPollInterval(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eventChan := poller.Watch(ctx, 1)
	time.Sleep(30 * time.Millisecond)

	mu.Lock()
	nodes = []model.ComputeNode{{ID: 1, ScheduledComputeNodeID: &id, Active: false}}
	mu.Unlock()

	select {
	case e := <-eventChan:
		assert.Equal(t, "node_status_change", e.EventType)
		assert.Equal(t, model.ScheduledRunning, e.Previous)
		assert.Equal(t, model.ScheduledEnded, e.New)
	case <-time.After(300 * time.Millisecond):
		t.Fatal("timed out waiting for compute node status change event")
	}
}
