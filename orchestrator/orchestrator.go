// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator implements the client-side submission
// orchestrator: the end-to-end flows that compose the spec
// parser, parameter expander, reference resolver, validator,
// materialiser, status engine, action engine, and Slurm allocation
// manager into create / submit / run-local / watch / cancel /
// reinitialise / reset / delete operations.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/NREL/torc/action"
	"github.com/NREL/torc/expand"
	"github.com/NREL/torc/materialize"
	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/config"
	"github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/pkg/logging"
	"github.com/NREL/torc/resolve"
	"github.com/NREL/torc/slurmalloc"
	"github.com/NREL/torc/spec"
	"github.com/NREL/torc/status"
	"github.com/NREL/torc/store"
	"github.com/NREL/torc/validate"
	"github.com/NREL/torc/worker"
)

// Orchestrator drives end-to-end workflow operations against one store.
type Orchestrator struct {
	store   store.Store
	log     logging.Logger
	status  *status.Engine
	actions *action.Engine
	slurm   *slurmalloc.Manager
}

// New builds an orchestrator. slurm may be nil for deployments that
// never touch an HPC scheduler (purely local runs); flows that need it
// then fail with a structured error instead of a panic.
func New(st store.Store, slurm *slurmalloc.Manager, log logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Orchestrator{
		store:   st,
		log:     log,
		status:  status.NewEngine(st, nil),
		actions: action.NewEngine(st),
		slurm:   slurm,
	}
}

// compile runs the creation pipeline front half: parse -> expand ->
// resolve -> validate.
func compile(specPath string, opts config.WorkflowOptions) (*resolve.ResolvedSpec, error) {
	ws, err := spec.Parse(specPath)
	if err != nil {
		return nil, err
	}
	return compileSpec(ws, opts)
}

func compileSpec(ws *spec.WorkflowSpec, opts config.WorkflowOptions) (*resolve.ResolvedSpec, error) {
	expanded, err := expand.Expand(ws)
	if err != nil {
		return nil, err
	}
	rs, err := resolve.ResolveAll(expanded)
	if err != nil {
		return nil, err
	}
	if err := validate.Validate(rs, validate.Options{SkipChecks: opts.SkipChecks}); err != nil {
		return nil, err
	}
	return rs, nil
}

// Create runs the full creation pipeline: parse -> expand -> resolve -> validate ->
// materialise, returning the new workflow id.
func (o *Orchestrator) Create(ctx context.Context, specPath, user string, opts config.WorkflowOptions) (int64, error) {
	rs, err := compile(specPath, opts)
	if err != nil {
		return 0, err
	}
	if user != "" {
		rs.User = user
	}
	id, err := materialize.Materialize(ctx, o.store, rs, rs.User, opts)
	if err != nil {
		return 0, err
	}
	if !opts.DryRun {
		o.log.Info("created workflow", "workflow_id", id, "name", rs.Name, "jobs", len(rs.Jobs))
	}
	return id, nil
}

// Submit verifies the workflow has at least one
// on_workflow_start schedule_nodes action, initialise it if needed,
// then fire the start event so pending actions schedule their
// allocations.
func (o *Orchestrator) Submit(ctx context.Context, workflowID int64, force bool) error {
	actions, err := o.store.Workflows().GetActions(ctx, workflowID)
	if err != nil {
		return err
	}
	hasStart := false
	for _, a := range actions {
		if a.TriggerType == model.TriggerOnWorkflowStart && a.ActionType == model.ActionScheduleNodes {
			hasStart = true
			break
		}
	}
	if !hasStart {
		return errors.ValidationFailure([]string{
			"workflow has no on_workflow_start schedule_nodes action; nothing would ever be scheduled",
		})
	}

	uninitialized, err := o.store.Workflows().IsUninitialized(ctx, workflowID)
	if err != nil {
		return err
	}
	if uninitialized {
		if err := o.status.Initialise(ctx, workflowID, force); err != nil {
			return err
		}
	}

	return o.actions.DispatchTriggers(ctx, workflowID, model.TriggerOnWorkflowStart, 0, o.executeAction)
}

// executeAction runs a claimed action's payload. Only schedule_nodes
// exists today.
func (o *Orchestrator) executeAction(ctx context.Context, a *model.WorkflowAction) error {
	if a.ActionType != model.ActionScheduleNodes {
		return fmt.Errorf("unsupported action type %q", a.ActionType)
	}
	if o.slurm == nil {
		return errors.ValidationFailure([]string{"schedule_nodes action claimed but no slurm interface is configured"})
	}
	schedID, err := o.schedulerIDByName(ctx, a.WorkflowID, a.SchedulerName)
	if err != nil {
		return err
	}
	mode := a.AllocationMode
	if mode == "" {
		mode = model.AllocationNxOne
	}
	_, err = o.slurm.Schedule(ctx, a.WorkflowID, schedID, a.NumAllocations, mode, slurmalloc.Options{})
	return err
}

func (o *Orchestrator) schedulerIDByName(ctx context.Context, workflowID int64, name string) (int64, error) {
	scheds, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Scheduler], error) {
		return o.store.Schedulers().List(ctx, workflowID, store.ListOptions{Offset: offset, Limit: limit})
	})
	if err != nil {
		return 0, err
	}
	for _, s := range scheds {
		if s.Name == name {
			return s.ID, nil
		}
	}
	return 0, errors.UnresolvedReference("scheduler", name, "workflow_action")
}

// RunLocal initialises the workflow (if needed) then hands control
// to the local worker loop until the workflow completes.
func (o *Orchestrator) RunLocal(ctx context.Context, workflowID int64, force bool, cfg worker.Config) error {
	uninitialized, err := o.store.Workflows().IsUninitialized(ctx, workflowID)
	if err != nil {
		return err
	}
	if uninitialized {
		if err := o.status.Initialise(ctx, workflowID, force); err != nil {
			return err
		}
	}
	if cfg.ExecuteAction == nil && o.slurm != nil {
		cfg.ExecuteAction = o.executeAction
	}
	w := worker.New(o.store, nil, o.log, cfg)
	return w.Run(ctx, workflowID)
}

// Cancel flips the workflow's canceled flag, then
// instruct the Slurm interface to cancel every non-terminal allocation.
// Workers observe the flag on their next poll.
func (o *Orchestrator) Cancel(ctx context.Context, workflowID int64) error {
	if err := o.store.Workflows().Cancel(ctx, workflowID); err != nil {
		return err
	}
	if o.slurm == nil {
		return nil
	}
	return o.slurm.CancelWorkflow(ctx, workflowID)
}

// Reinitialise re-runs readiness computation. With dryRun it returns the
// check_initialisation report without mutating anything.
func (o *Orchestrator) Reinitialise(ctx context.Context, workflowID int64, force, dryRun bool) (*status.InitialisationReport, error) {
	if dryRun {
		return o.status.CheckInitialisation(ctx, workflowID)
	}
	if err := o.status.Reinitialise(ctx, workflowID, force); err != nil {
		return nil, err
	}
	return nil, nil
}

// ResetStatus reverts job statuses through the status engine.
func (o *Orchestrator) ResetStatus(ctx context.Context, workflowID int64, failedOnly, force bool) error {
	return o.status.ResetStatus(ctx, workflowID, failedOnly, force)
}

// Delete removes a workflow; only the owner may delete without force.
func (o *Orchestrator) Delete(ctx context.Context, workflowID int64, caller string, force bool) error {
	w, err := o.store.Workflows().Get(ctx, workflowID)
	if err != nil {
		return err
	}
	if !force && w.Owner != caller {
		return errors.UnauthorisedDelete(w.Owner, caller)
	}
	return o.store.Workflows().Delete(ctx, workflowID)
}
