// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package watch provides polling-based watch implementations over the
// Torc store's plain REST surface, used as the fallback when a caller
// cannot or does not want to hold open the SSE stream.
package watch

import (
	"context"
	"sync"
	"time"

	"github.com/NREL/torc/model"
)

// DefaultPollInterval is the default polling interval for watch operations.
const DefaultPollInterval = 5 * time.Second

// JobEvent reports a job status transition observed between two polls.
type JobEvent struct {
	EventType      string // "job_new", "job_status_change", "job_removed"
	JobID          int64
	PreviousStatus model.JobStatus
	NewStatus      model.JobStatus
	EventTime      time.Time
	Job            *model.Job
}

// JobPoller implements job-status watching by repeatedly listing a
// workflow's jobs and diffing against the previously observed state.
type JobPoller struct {
	listFunc     func(ctx context.Context, workflowID int64) ([]model.Job, error)
	pollInterval time.Duration
	bufferSize   int
	mu           sync.RWMutex
	jobStatus    map[int64]model.JobStatus
}

// NewJobPoller creates a new job poller backed by listFunc.
func NewJobPoller(listFunc func(ctx context.Context, workflowID int64) ([]model.Job, error)) *JobPoller {
	return &JobPoller{
		listFunc:     listFunc,
		pollInterval: DefaultPollInterval,
		bufferSize:   100,
		jobStatus:    make(map[int64]model.JobStatus),
	}
}

// WithPollInterval sets a custom poll interval.
func (p *JobPoller) WithPollInterval(interval time.Duration) *JobPoller {
	p.pollInterval = interval
	return p
}

// WithBufferSize sets a custom buffer size for the event channel.
func (p *JobPoller) WithBufferSize(size int) *JobPoller {
	p.bufferSize = size
	return p
}

// Watch starts watching workflowID's jobs for status changes, emitting
// events on the returned channel until ctx is cancelled.
func (p *JobPoller) Watch(ctx context.Context, workflowID int64) <-chan JobEvent {
	eventChan := make(chan JobEvent, p.bufferSize)
	go p.pollLoop(ctx, workflowID, eventChan)
	return eventChan
}

func (p *JobPoller) pollLoop(ctx context.Context, workflowID int64, eventChan chan<- JobEvent) {
	defer close(eventChan)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.performPoll(ctx, workflowID, eventChan, true)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.performPoll(ctx, workflowID, eventChan, false)
		}
	}
}

func (p *JobPoller) performPoll(ctx context.Context, workflowID int64, eventChan chan<- JobEvent, isInitial bool) {
	jobs, err := p.listFunc(ctx, workflowID)
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[int64]bool, len(jobs))

	for i := range jobs {
		job := jobs[i]
		seen[job.ID] = true

		previous, exists := p.jobStatus[job.ID]
		if !exists {
			p.jobStatus[job.ID] = job.Status
			if !isInitial {
				jobCopy := job
				eventChan <- JobEvent{
					EventType: "job_new",
					JobID:     job.ID,
					NewStatus: job.Status,
					EventTime: time.Now(),
					Job:       &jobCopy,
				}
			}
			continue
		}

		if previous != job.Status {
			p.jobStatus[job.ID] = job.Status
			jobCopy := job
			eventChan <- JobEvent{
				EventType:      "job_status_change",
				JobID:          job.ID,
				PreviousStatus: previous,
				NewStatus:      job.Status,
				EventTime:      time.Now(),
				Job:            &jobCopy,
			}
		}
	}

	for jobID, previous := range p.jobStatus {
		if !seen[jobID] {
			delete(p.jobStatus, jobID)
			eventChan <- JobEvent{
				EventType:      "job_removed",
				JobID:          jobID,
				PreviousStatus: previous,
				EventTime:      time.Now(),
			}
		}
	}
}

// ComputeNodeEvent reports a compute node lifecycle transition.
type ComputeNodeEvent struct {
	EventType string // "node_registered", "node_status_change", "node_gone"
	NodeID    int64
	Previous  model.ScheduledComputeNodeStatus
	New       model.ScheduledComputeNodeStatus
	EventTime time.Time
	Node      *model.ComputeNode
}

// ComputeNodePoller watches a workflow's active compute nodes the same
// way JobPoller watches jobs, used to surface heartbeat loss as a
// "node_gone" event when a node drops out of the active set.
type ComputeNodePoller struct {
	listFunc     func(ctx context.Context, workflowID int64) ([]model.ComputeNode, error)
	pollInterval time.Duration
	bufferSize   int
	mu           sync.RWMutex
	nodeStatus   map[int64]model.ScheduledComputeNodeStatus
}

// NewComputeNodePoller creates a new compute node poller backed by listFunc.
func NewComputeNodePoller(listFunc func(ctx context.Context, workflowID int64) ([]model.ComputeNode, error)) *ComputeNodePoller {
	return &ComputeNodePoller{
		listFunc:     listFunc,
		pollInterval: DefaultPollInterval,
		bufferSize:   100,
		nodeStatus:   make(map[int64]model.ScheduledComputeNodeStatus),
	}
}

// WithPollInterval sets a custom poll interval.
func (p *ComputeNodePoller) WithPollInterval(interval time.Duration) *ComputeNodePoller {
	p.pollInterval = interval
	return p
}

// Watch starts watching workflowID's compute nodes until ctx is cancelled.
func (p *ComputeNodePoller) Watch(ctx context.Context, workflowID int64) <-chan ComputeNodeEvent {
	eventChan := make(chan ComputeNodeEvent, p.bufferSize)
	go p.pollLoop(ctx, workflowID, eventChan)
	return eventChan
}

func (p *ComputeNodePoller) pollLoop(ctx context.Context, workflowID int64, eventChan chan<- ComputeNodeEvent) {
	defer close(eventChan)

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	p.performPoll(ctx, workflowID, eventChan, true)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.performPoll(ctx, workflowID, eventChan, false)
		}
	}
}

func (p *ComputeNodePoller) performPoll(ctx context.Context, workflowID int64, eventChan chan<- ComputeNodeEvent, isInitial bool) {
	nodes, err := p.listFunc(ctx, workflowID)
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[int64]bool, len(nodes))
	statusOf := func(n model.ComputeNode) model.ScheduledComputeNodeStatus {
		if n.Active {
			return model.ScheduledRunning
		}
		return model.ScheduledEnded
	}

	for i := range nodes {
		node := nodes[i]
		if node.ScheduledComputeNodeID == nil {
			continue
		}
		id := *node.ScheduledComputeNodeID
		seen[id] = true
		status := statusOf(node)

		previous, exists := p.nodeStatus[id]
		if !exists {
			p.nodeStatus[id] = status
			if !isInitial {
				nodeCopy := node
				eventChan <- ComputeNodeEvent{
					EventType: "node_registered",
					NodeID:    id,
					New:       status,
					EventTime: time.Now(),
					Node:      &nodeCopy,
				}
			}
			continue
		}

		if previous != status {
			p.nodeStatus[id] = status
			nodeCopy := node
			eventChan <- ComputeNodeEvent{
				EventType: "node_status_change",
				NodeID:    id,
				Previous:  previous,
				New:       status,
				EventTime: time.Now(),
				Node:      &nodeCopy,
			}
		}
	}

	for id, previous := range p.nodeStatus {
		if !seen[id] {
			delete(p.nodeStatus, id)
			eventChan <- ComputeNodeEvent{
				EventType: "node_gone",
				NodeID:    id,
				Previous:  previous,
				EventTime: time.Now(),
			}
		}
	}
}
