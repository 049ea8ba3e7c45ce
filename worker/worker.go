// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package worker implements the local worker loop the run_local flow
// hands control to: it registers itself as a ComputeNode,
// repeatedly claims Ready jobs through the store's atomic claim
// primitive, executes their commands, records Results, applies the
// status transitions (including failure-handler retries), unblocks
// downstream jobs, and fires on_job_complete actions. A workflow-level
// cancel flag is observed on every poll.
package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/NREL/torc/action"
	"github.com/NREL/torc/model"
	torcctx "github.com/NREL/torc/pkg/context"
	"github.com/NREL/torc/pkg/logging"
	"github.com/NREL/torc/status"
	"github.com/NREL/torc/store"
)

// DefaultPollInterval is how often the worker polls for claimable jobs
// when the caller does not override it.
const DefaultPollInterval = 2 * time.Second

// ExecResult is what an Executor observed about one job run.
type ExecResult struct {
	ReturnCode      int
	Elapsed         time.Duration
	PeakMemoryBytes float64
	AvgMemoryBytes  float64
	PeakCPUPercent  float64
	AvgCPUPercent   float64
}

// Executor runs one claimed job's command to completion. Implementations
// must not retry; retry policy belongs to the job's FailureHandler.
type Executor interface {
	Run(ctx context.Context, job *model.Job) (ExecResult, error)
}

// Config tunes one worker instance.
type Config struct {
	// WorkerID identifies this worker in claim calls; defaults to
	// hostname:pid.
	WorkerID string
	// PollInterval is the claim-poll period.
	PollInterval time.Duration
	// Resources is the footprint registered on the ComputeNode row.
	Resources model.ComputeNodeResources
	// HealthAddr, when non-empty, serves the worker's local health and
	// status endpoint (see api.go).
	HealthAddr string
	// ExecuteAction runs a claimed WorkflowAction's payload (e.g.
	// schedule_nodes through the Slurm allocation manager). Nil means
	// claimed actions are consumed with a log line only, which is the
	// right behavior for a purely local run.
	ExecuteAction func(ctx context.Context, a *model.WorkflowAction) error
}

// Worker drains ready jobs from one workflow.
type Worker struct {
	store   store.Store
	status  *status.Engine
	actions *action.Engine
	exec    Executor
	log     logging.Logger
	cfg     Config

	mu         sync.Mutex
	nodeID     int64
	processed  int
	lastClaim  time.Time
	workflowID int64
}

// New builds a worker. A nil executor defaults to ShellExecutor; a nil
// logger discards output.
func New(st store.Store, exec Executor, log logging.Logger, cfg Config) *Worker {
	if exec == nil {
		exec = &ShellExecutor{}
	}
	if log == nil {
		log = logging.NoOpLogger{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.WorkerID == "" {
		host, _ := os.Hostname()
		cfg.WorkerID = fmt.Sprintf("%s:%d", host, os.Getpid())
	}
	return &Worker{
		store:   st,
		status:  status.NewEngine(st, nil),
		actions: action.NewEngine(st),
		exec:    exec,
		log:     log.With("worker_id", cfg.WorkerID),
		cfg:     cfg,
	}
}

// Run registers the worker and processes jobs until the workflow is
// complete, canceled, or ctx is done. The claim poll and the optional
// resource-telemetry sampler run as periodic tasks on one scheduler.
func (w *Worker) Run(ctx context.Context, workflowID int64) error {
	ctx = torcctx.WithWorkerID(torcctx.WithWorkflowID(ctx, workflowID), w.cfg.WorkerID)
	w.log = w.log.WithContext(ctx)

	w.mu.Lock()
	w.workflowID = workflowID
	w.mu.Unlock()

	wf, err := w.store.Workflows().Get(ctx, workflowID)
	if err != nil {
		return err
	}

	host, _ := os.Hostname()
	nodeID, err := w.store.ComputeNodes().Create(ctx, workflowID, &model.ComputeNode{
		Hostname:  host,
		PID:       os.Getpid(),
		StartTime: store.Now(),
		Resources: w.cfg.Resources,
		Active:    true,
	})
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.nodeID = nodeID
	w.mu.Unlock()

	if w.cfg.HealthAddr != "" {
		stop := w.serveAPI(w.cfg.HealthAddr)
		defer stop()
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	defer func() { _ = sched.Shutdown() }()

	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	_, err = sched.NewJob(gocron.DurationJob(w.cfg.PollInterval),
		gocron.NewTask(func() {
			stop, err := w.pollOnce(ctx, workflowID)
			if err != nil || stop {
				finish(err)
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()))
	if err != nil {
		return err
	}

	if wf.Monitor != nil && wf.Monitor.PeriodSeconds > 0 {
		_, err = sched.NewJob(gocron.DurationJob(time.Duration(wf.Monitor.PeriodSeconds)*time.Second),
			gocron.NewTask(func() { w.sampleTelemetry(ctx, workflowID) }))
		if err != nil {
			return err
		}
	}

	sched.Start()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return err
}

// pollOnce claims and runs at most one job. stop is true when the
// workflow has no more work for this worker.
func (w *Worker) pollOnce(ctx context.Context, workflowID int64) (stop bool, err error) {
	wf, err := w.store.Workflows().Get(ctx, workflowID)
	if err != nil {
		return false, err
	}
	if wf.Canceled {
		w.log.Info("workflow canceled, stopping")
		return true, nil
	}

	job, ok, err := w.store.Jobs().ClaimNextReady(ctx, workflowID, w.cfg.WorkerID)
	if err != nil {
		return false, err
	}
	if !ok {
		complete, err := w.store.Workflows().IsComplete(ctx, workflowID)
		if err != nil {
			return false, err
		}
		return complete, nil
	}

	w.mu.Lock()
	w.lastClaim = store.Now()
	w.mu.Unlock()

	if err := w.runJob(ctx, job); err != nil {
		return false, err
	}

	w.mu.Lock()
	w.processed++
	w.mu.Unlock()
	return false, nil
}

func (w *Worker) runJob(ctx context.Context, job *model.Job) error {
	w.log.Info("starting job", "job", job.Name, "job_id", job.ID)
	job.Status = model.JobRunning
	if err := w.store.Jobs().Update(ctx, job); err != nil {
		return err
	}

	res, err := w.exec.Run(ctx, job)
	if err != nil {
		return err
	}

	result := model.Result{
		JobID:                job.ID,
		WorkflowID:           job.WorkflowID,
		RunID:                job.RunID,
		ReturnCode:           res.ReturnCode,
		CompletedAt:          store.Now(),
		ExecutionTimeMinutes: res.Elapsed.Minutes(),
		PeakMemoryBytes:      res.PeakMemoryBytes,
		AvgMemoryBytes:       res.AvgMemoryBytes,
		PeakCPUPercent:       res.PeakCPUPercent,
		AvgCPUPercent:        res.AvgCPUPercent,
	}
	if res.ReturnCode == 0 {
		result.Status = model.JobDone
	} else {
		result.Status = model.JobTerminated
	}
	if err := w.store.Jobs().Complete(ctx, job.ID, &result); err != nil {
		return err
	}
	if err := w.status.ApplyResult(ctx, job, result); err != nil {
		return err
	}
	w.log.Info("job finished", "job", job.Name, "return_code", res.ReturnCode, "status", job.Status)

	if job.Status == model.JobUninitialized {
		// failure-handler retry: dependencies were satisfied when the
		// job first ran, so it can rejoin the ready pool directly
		job.Status = model.JobReady
		if err := w.store.Jobs().Update(ctx, job); err != nil {
			return err
		}
	}

	if job.Status == model.JobDone {
		if _, err := w.status.UnblockReady(ctx, job.WorkflowID); err != nil {
			return err
		}
		err := w.actions.DispatchTriggers(ctx, job.WorkflowID, model.TriggerOnJobComplete, job.ID, w.executeAction)
		if err != nil {
			return err
		}
	}
	if job.Status == model.JobTerminated && job.CancelOnBlockingFailure {
		if err := w.cancelBlocked(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) executeAction(ctx context.Context, a *model.WorkflowAction) error {
	if w.cfg.ExecuteAction == nil {
		w.log.Info("claimed workflow action has no executor, skipping payload",
			"action_id", a.ID, "action_type", a.ActionType)
		return nil
	}
	return w.cfg.ExecuteAction(ctx, a)
}

// cancelBlocked cancels every job downstream of a failed blocker whose
// cancel_on_blocking_failure flag is set.
func (w *Worker) cancelBlocked(ctx context.Context, failed *model.Job) error {
	deps, err := w.store.Dependencies().ListJobDependencies(ctx, failed.WorkflowID)
	if err != nil {
		return err
	}
	queue := []int64{failed.ID}
	canceled := map[int64]bool{}
	for len(queue) > 0 {
		blocker := queue[0]
		queue = queue[1:]
		for _, d := range deps {
			if d.BlockerJobID != blocker || canceled[d.BlockedJobID] {
				continue
			}
			if err := w.store.Jobs().Cancel(ctx, d.BlockedJobID); err != nil {
				return err
			}
			canceled[d.BlockedJobID] = true
			queue = append(queue, d.BlockedJobID)
		}
	}
	return nil
}

// sampleTelemetry records one resource-usage event for this node.
func (w *Worker) sampleTelemetry(ctx context.Context, workflowID int64) {
	w.mu.Lock()
	nodeID := w.nodeID
	processed := w.processed
	w.mu.Unlock()

	data := []byte(fmt.Sprintf(
		`{"category":"resource_monitor","compute_node_id":%d,"jobs_processed":%d}`,
		nodeID, processed))
	_, err := w.store.Events().Create(ctx, workflowID, &model.Event{
		TimestampMillis: store.Now().UnixMilli(),
		Category:        "resource_monitor",
		Severity:        model.SeverityDebug,
		Data:            data,
	})
	if err != nil {
		w.log.Warn("telemetry sample failed", "error", err)
	}
}
