// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package slurmalloc implements the Slurm allocation manager:
// rendering submission scripts from a workflow's Scheduler rows,
// submitting them through the Slurm command interface, recording
// ScheduledComputeNode rows and scheduler events, and cancelling
// non-terminal allocations.
package slurmalloc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/NREL/torc/model"
	torcerrors "github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/pkg/logging"
	"github.com/NREL/torc/store"
)

// Interface abstracts the Slurm shell-outs so tests never need a real
// scheduler. Submit returns the external Slurm job id.
type Interface interface {
	Submit(ctx context.Context, scriptPath string) (jobID string, err error)
	Cancel(ctx context.Context, jobID string) error
}

// AllocationHandle identifies one submitted allocation.
type AllocationHandle struct {
	ScheduledNodeID int64
	SlurmJobID      string
	// ScriptPath is empty unless Options.KeepSubmissionScripts retained
	// the rendered script on disk.
	ScriptPath string
}

// Options controls one Schedule call.
type Options struct {
	// KeepSubmissionScripts retains rendered scripts after successful
	// submission; by default they are removed on every exit path.
	KeepSubmissionScripts bool
	// StartServer launches the Torc server on the allocation's head
	// node before the worker, for clusters whose compute nodes cannot
	// reach an external store.
	StartServer bool
	// ScriptDir is where rendered scripts are written; empty means the
	// OS temp dir.
	ScriptDir string
	// WorkerCommand overrides the compute-worker bootstrap line.
	WorkerCommand string
}

// Manager schedules and cancels Slurm allocations for workflows.
type Manager struct {
	store store.Store
	slurm Interface
	log   logging.Logger
}

// NewManager builds a Manager over st and the given Slurm interface.
func NewManager(st store.Store, slurm Interface, log logging.Logger) *Manager {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Manager{store: st, slurm: slurm, log: log}
}

// Schedule submits count allocations for the given scheduler config
//: mode NxOne issues one submission per allocation so each
// starts as soon as one node frees up; mode OneXN issues a single
// submission asking for all nodes at once. Each successful submission
// is recorded as a ScheduledComputeNode row plus a scheduler event.
func (m *Manager) Schedule(ctx context.Context, workflowID, schedulerID int64, count int, mode model.AllocationMode, opts Options) ([]AllocationHandle, error) {
	if count < 1 {
		return nil, fmt.Errorf("allocation count must be >= 1, got %d", count)
	}
	sched, err := m.store.Schedulers().Get(ctx, schedulerID)
	if err != nil {
		return nil, err
	}

	submissions := count
	nodesPer := sched.Nodes
	if mode == model.AllocationOneXN {
		submissions = 1
		nodesPer = sched.Nodes * count
	}

	var handles []AllocationHandle
	for i := 0; i < submissions; i++ {
		handle, err := m.submitOne(ctx, workflowID, sched, nodesPer, opts)
		if err != nil {
			return handles, err
		}
		handles = append(handles, handle)
	}
	return handles, nil
}

func (m *Manager) submitOne(ctx context.Context, workflowID int64, sched *model.Scheduler, nodes int, opts Options) (AllocationHandle, error) {
	dir := opts.ScriptDir
	if dir == "" {
		dir = os.TempDir()
	}
	scriptPath := filepath.Join(dir, fmt.Sprintf("torc_submit_%s_%s.sh", sched.Name, uuid.NewString()))

	script := RenderScript(sched, nodes, workflowID, opts)
	if err := os.WriteFile(scriptPath, []byte(script), 0o700); err != nil {
		return AllocationHandle{}, torcerrors.TransportFailure("slurm.write_script", err)
	}
	keep := opts.KeepSubmissionScripts
	defer func() {
		if !keep {
			_ = os.Remove(scriptPath)
		}
	}()

	jobID, err := m.slurm.Submit(ctx, scriptPath)
	if err != nil {
		return AllocationHandle{}, err
	}
	m.log.Info("submitted slurm allocation", "scheduler", sched.Name, "slurm_job_id", jobID, "nodes", nodes)

	nodeID, err := m.store.ScheduledComputeNodes().Create(ctx, workflowID, &model.ScheduledComputeNode{
		SchedulerConfigID:   sched.ID,
		ExternalSchedulerID: jobID,
		SchedulerType:       model.SchedulerSlurm,
		Status:              model.ScheduledPending,
	})
	if err != nil {
		return AllocationHandle{}, err
	}

	data, _ := json.Marshal(map[string]interface{}{
		"category":  "scheduler",
		"message":   "scheduled slurm allocation",
		"scheduler": sched.Name,
		"slurm_job_id": jobID,
		"nodes":     nodes,
	})
	_, err = m.store.Events().Create(ctx, workflowID, &model.Event{
		TimestampMillis: store.Now().UnixMilli(),
		Category:        "scheduler",
		Severity:        model.SeverityInfo,
		Data:            data,
	})
	if err != nil {
		return AllocationHandle{}, err
	}

	h := AllocationHandle{ScheduledNodeID: nodeID, SlurmJobID: jobID}
	if keep {
		h.ScriptPath = scriptPath
	}
	return h, nil
}

// CancelWorkflow cancels every non-terminal allocation of workflowID,
// continuing past individual failures and returning the aggregate.
func (m *Manager) CancelWorkflow(ctx context.Context, workflowID int64) error {
	nodes, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.ScheduledComputeNode], error) {
		return m.store.ScheduledComputeNodes().List(ctx, workflowID, store.ScheduledComputeNodeListFilter{}, store.ListOptions{Offset: offset, Limit: limit})
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, n := range nodes {
		if n.Status == model.ScheduledEnded {
			continue
		}
		if err := m.slurm.Cancel(ctx, n.ExternalSchedulerID); err != nil {
			errs = append(errs, fmt.Errorf("allocation %s: %w", n.ExternalSchedulerID, err))
			continue
		}
		n.Status = model.ScheduledEnded
		if err := m.store.ScheduledComputeNodes().Update(ctx, &n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RenderScript renders the sbatch submission script for one allocation:
// the directive block from the scheduler row, then the optional
// head-node server launch, then the compute-worker bootstrap.
func RenderScript(sched *model.Scheduler, nodes int, workflowID int64, opts Options) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "#SBATCH --job-name=torc_%s\n", sched.Name)
	fmt.Fprintf(&b, "#SBATCH --account=%s\n", sched.Account)
	fmt.Fprintf(&b, "#SBATCH --nodes=%d\n", nodes)
	fmt.Fprintf(&b, "#SBATCH --time=%s\n", sched.Walltime)
	if sched.Partition != "" {
		fmt.Fprintf(&b, "#SBATCH --partition=%s\n", sched.Partition)
	}
	if sched.QOS != "" {
		fmt.Fprintf(&b, "#SBATCH --qos=%s\n", sched.QOS)
	}
	if sched.Memory != "" {
		fmt.Fprintf(&b, "#SBATCH --mem=%s\n", sched.Memory)
	}
	if sched.Gres != "" {
		fmt.Fprintf(&b, "#SBATCH --gres=%s\n", sched.Gres)
	}
	if sched.Tmp != "" {
		fmt.Fprintf(&b, "#SBATCH --tmp=%s\n", sched.Tmp)
	}
	if sched.Extra != "" {
		fmt.Fprintf(&b, "#SBATCH %s\n", sched.Extra)
	}
	b.WriteString("\n")

	if opts.StartServer {
		b.WriteString("torc server start --detach\n")
	}
	worker := opts.WorkerCommand
	if worker == "" {
		worker = fmt.Sprintf("torc worker run --workflow-id %d", workflowID)
	}
	fmt.Fprintf(&b, "srun %s\n", worker)
	return b.String()
}
