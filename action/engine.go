// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package action implements the action/trigger engine: tracking
// each WorkflowAction's trigger_count against its required_triggers
// threshold and claiming pending actions for execution at most once via
// the store's atomic ClaimPending primitive.
package action

import (
	"context"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/store"
)

// Engine evaluates and claims WorkflowActions for one workflow.
type Engine struct {
	Store store.Store
}

// NewEngine builds an action Engine over st.
func NewEngine(st store.Store) *Engine {
	return &Engine{Store: st}
}

// RecordTrigger increments actionID's trigger_count by one, as required
// exactly once per matching trigger event. It returns the
// action's post-increment state so the caller can decide whether to
// attempt a claim.
func (e *Engine) RecordTrigger(ctx context.Context, actionID int64) (*model.WorkflowAction, error) {
	return e.Store.Actions().IncrementTriggerCount(ctx, actionID)
}

// TryClaim attempts the atomic claim-and-execute precondition for
// actionID: if trigger_count >= required_triggers and the action is not
// yet executed, it is marked executed and returned with ok=true; the
// core must call this instead of a read-then-write pair so concurrent
// claimers race safely at the store.
func (e *Engine) TryClaim(ctx context.Context, actionID int64) (action *model.WorkflowAction, ok bool, err error) {
	return e.Store.Actions().ClaimPending(ctx, actionID)
}

// DispatchTriggers records a trigger on every action of the workflow
// that matches triggerType, then attempts to claim (and, via the
// execute callback, run) each one that becomes pending. It is the
// driving loop the orchestrator and worker call on every trigger
// event. jobID identifies the job the event concerns (the completing
// job for on_job_complete); 0 for workflow-level events. An action
// with a job-id restriction set only counts events for jobs in that
// set, matching how the execution plan builder attaches its
// allocations.
func (e *Engine) DispatchTriggers(ctx context.Context, workflowID int64, triggerType model.TriggerType, jobID int64, execute func(context.Context, *model.WorkflowAction) error) error {
	all, err := e.Store.Workflows().GetActions(ctx, workflowID)
	if err != nil {
		return err
	}

	for _, a := range all {
		if a.TriggerType != triggerType || a.Executed {
			continue
		}
		if jobID != 0 && len(a.JobIDs) > 0 && !containsID(a.JobIDs, jobID) {
			continue
		}
		updated, err := e.RecordTrigger(ctx, a.ID)
		if err != nil {
			return err
		}
		if updated.DisplayStatus() != model.ActionPending {
			continue
		}
		claimed, ok, err := e.TryClaim(ctx, a.ID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if execute != nil {
			if err := execute(ctx, claimed); err != nil {
				return err
			}
		}
	}
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Status classifies actionID for display: Waiting, Pending, or
// Executed.
func (e *Engine) Status(ctx context.Context, actionID int64) (model.ActionStatus, error) {
	a, err := e.Store.Actions().Get(ctx, actionID)
	if err != nil {
		return "", err
	}
	return a.DisplayStatus(), nil
}
