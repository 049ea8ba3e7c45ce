// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package plan implements the execution plan builder: a DAG of
// trigger-events (workflow_start, job_complete, dependency_satisfied)
// with edges expressing which events unlock which, and per-event
// scheduler allocations derived from matching WorkflowActions. The plan
// can be built from a resolved spec before materialisation or from a
// materialised workflow in the store; both produce the same shape for
// the same graph.
package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/resolve"
	"github.com/NREL/torc/store"
)

// EventType identifies a trigger-event node kind.
type EventType string

const (
	EventWorkflowStart       EventType = "workflow_start"
	EventJobComplete         EventType = "job_complete"
	EventDependencySatisfied EventType = "dependency_satisfied"
)

// SchedulerAllocation records the allocations a matching WorkflowAction
// schedules when its event fires, plus the jobs whose readiness the
// event produces.
type SchedulerAllocation struct {
	Scheduler         string              `json:"scheduler"`
	SchedulerType     model.SchedulerType `json:"scheduler_type"`
	NumAllocations    int                 `json:"num_allocations"`
	JobsBecomingReady []string            `json:"jobs_becoming_ready"`
}

// Event is one node of the plan DAG.
type Event struct {
	ID                   string                `json:"id"`
	Type                 EventType             `json:"type"`
	Job                  string                `json:"job,omitempty"`
	Unlocks              []string              `json:"unlocks,omitempty"`
	SchedulerAllocations []SchedulerAllocation `json:"scheduler_allocations,omitempty"`
}

// ExecutionPlan is the full event DAG for one workflow.
type ExecutionPlan struct {
	WorkflowName string  `json:"workflow_name"`
	Events       []Event `json:"events"`
}

func eventID(t EventType, job string) string {
	if job == "" {
		return string(t)
	}
	return string(t) + ":" + job
}

// graphInput is the format-independent graph both Build entry points
// reduce to before the shared construction step.
type graphInput struct {
	workflowName string
	jobNames     []string
	blockersOf   map[string][]string // job -> blocker jobs
	actions      []actionInput
}

type actionInput struct {
	trigger        model.TriggerType
	actionType     model.ActionType
	scheduler      string
	numAllocations int
	jobNames       []string // empty = no restriction
}

// Build constructs the plan from a resolved spec, before anything has
// been materialised.
func Build(rs *resolve.ResolvedSpec) *ExecutionPlan {
	in := graphInput{
		workflowName: rs.Name,
		blockersOf:   make(map[string][]string),
	}
	for _, j := range rs.Jobs {
		in.jobNames = append(in.jobNames, j.Name)
	}
	for _, e := range rs.JobDependencies {
		in.blockersOf[e.Blocked] = append(in.blockersOf[e.Blocked], e.Blocker)
	}
	for _, a := range rs.WorkflowActions {
		in.actions = append(in.actions, actionInput{
			trigger:        model.TriggerType(a.TriggerType),
			actionType:     model.ActionType(a.ActionType),
			scheduler:      a.Scheduler,
			numAllocations: a.NumAllocations,
			jobNames:       a.JobNames,
		})
	}
	return build(in)
}

// BuildFromWorkflow constructs the plan from a materialised workflow by
// reading its jobs, dependency edges, and actions back from the store.
func BuildFromWorkflow(ctx context.Context, st store.Store, workflowID int64) (*ExecutionPlan, error) {
	w, err := st.Workflows().Get(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	jobs, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Job], error) {
		return st.Jobs().List(ctx, workflowID, store.JobListFilter{}, store.ListOptions{Offset: offset, Limit: limit})
	})
	if err != nil {
		return nil, err
	}
	nameByID := make(map[int64]string, len(jobs))
	in := graphInput{
		workflowName: w.Name,
		blockersOf:   make(map[string][]string),
	}
	for _, j := range jobs {
		nameByID[j.ID] = j.Name
		in.jobNames = append(in.jobNames, j.Name)
	}

	deps, err := st.Dependencies().ListJobDependencies(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	for _, d := range deps {
		blocked := nameByID[d.BlockedJobID]
		blocker := nameByID[d.BlockerJobID]
		in.blockersOf[blocked] = append(in.blockersOf[blocked], blocker)
	}

	actions, err := st.Workflows().GetActions(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	for _, a := range actions {
		ai := actionInput{
			trigger:        a.TriggerType,
			actionType:     a.ActionType,
			scheduler:      a.SchedulerName,
			numAllocations: a.NumAllocations,
		}
		for _, jid := range a.JobIDs {
			ai.jobNames = append(ai.jobNames, nameByID[jid])
		}
		in.actions = append(in.actions, ai)
	}

	return build(in), nil
}

func build(in graphInput) *ExecutionPlan {
	sort.Strings(in.jobNames)
	for _, blockers := range in.blockersOf {
		sort.Strings(blockers)
	}

	// Root jobs become ready the moment the workflow starts; everything
	// else waits on its dependency_satisfied event.
	var rootJobs []string
	for _, name := range in.jobNames {
		if len(in.blockersOf[name]) == 0 {
			rootJobs = append(rootJobs, name)
		}
	}

	start := Event{
		ID:   eventID(EventWorkflowStart, ""),
		Type: EventWorkflowStart,
	}
	for _, name := range rootJobs {
		start.Unlocks = append(start.Unlocks, eventID(EventJobComplete, name))
	}
	start.SchedulerAllocations = allocationsFor(in.actions, model.TriggerOnWorkflowStart, "", rootJobs)

	events := []Event{start}

	for _, name := range in.jobNames {
		blockers := in.blockersOf[name]
		if len(blockers) > 0 {
			ds := Event{
				ID:      eventID(EventDependencySatisfied, name),
				Type:    EventDependencySatisfied,
				Job:     name,
				Unlocks: []string{eventID(EventJobComplete, name)},
			}
			ds.SchedulerAllocations = allocationsFor(in.actions, model.TriggerOnDependencySatisfied, name, []string{name})
			events = append(events, ds)
		}

		jc := Event{
			ID:   eventID(EventJobComplete, name),
			Type: EventJobComplete,
			Job:  name,
		}
		// job_complete(A) unlocks dependency_satisfied(B) for every
		// edge A -> B in the job graph.
		for _, other := range in.jobNames {
			for _, b := range in.blockersOf[other] {
				if b == name {
					jc.Unlocks = append(jc.Unlocks, eventID(EventDependencySatisfied, other))
				}
			}
		}
		jc.SchedulerAllocations = allocationsFor(in.actions, model.TriggerOnJobComplete, name, nil)
		events = append(events, jc)
	}

	return &ExecutionPlan{WorkflowName: in.workflowName, Events: events}
}

// allocationsFor collects the scheduler allocations produced when an
// event of the given trigger fires for job (empty for workflow_start),
// honoring each action's optional job restriction list.
func allocationsFor(actions []actionInput, trigger model.TriggerType, job string, becomingReady []string) []SchedulerAllocation {
	var out []SchedulerAllocation
	for _, a := range actions {
		if a.trigger != trigger || a.actionType != model.ActionScheduleNodes {
			continue
		}
		if job != "" && len(a.jobNames) > 0 && !contains(a.jobNames, job) {
			continue
		}
		out = append(out, SchedulerAllocation{
			Scheduler:         a.scheduler,
			SchedulerType:     model.SchedulerSlurm,
			NumAllocations:    a.numAllocations,
			JobsBecomingReady: becomingReady,
		})
	}
	return out
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

// indexByID returns the plan's events keyed by id.
func (p *ExecutionPlan) indexByID() map[string]*Event {
	idx := make(map[string]*Event, len(p.Events))
	for i := range p.Events {
		idx[p.Events[i].ID] = &p.Events[i]
	}
	return idx
}

// RootEvents returns the events with in-degree zero.
func (p *ExecutionPlan) RootEvents() []Event {
	unlocked := map[string]bool{}
	for _, e := range p.Events {
		for _, u := range e.Unlocks {
			unlocked[u] = true
		}
	}
	var roots []Event
	for _, e := range p.Events {
		if !unlocked[e.ID] {
			roots = append(roots, e)
		}
	}
	return roots
}

// LeafEvents returns the events with out-degree zero.
func (p *ExecutionPlan) LeafEvents() []Event {
	var leaves []Event
	for _, e := range p.Events {
		if len(e.Unlocks) == 0 {
			leaves = append(leaves, e)
		}
	}
	return leaves
}

// String renders the plan as an indented tree rooted at each in-degree
// zero event, one line per event with its allocations.
func (p *ExecutionPlan) String() string {
	idx := p.indexByID()
	var b strings.Builder
	fmt.Fprintf(&b, "execution plan for workflow %q\n", p.WorkflowName)

	var render func(id string, depth int, seen map[string]bool)
	render = func(id string, depth int, seen map[string]bool) {
		e, ok := idx[id]
		if !ok {
			return
		}
		fmt.Fprintf(&b, "%s%s", strings.Repeat("  ", depth), e.ID)
		for _, alloc := range e.SchedulerAllocations {
			fmt.Fprintf(&b, " [schedule %d x %s", alloc.NumAllocations, alloc.Scheduler)
			if len(alloc.JobsBecomingReady) > 0 {
				fmt.Fprintf(&b, " -> ready: %s", strings.Join(alloc.JobsBecomingReady, ", "))
			}
			b.WriteString("]")
		}
		b.WriteString("\n")
		if seen[id] {
			return
		}
		seen[id] = true
		for _, u := range e.Unlocks {
			render(u, depth+1, seen)
		}
	}

	seen := map[string]bool{}
	for _, root := range p.RootEvents() {
		render(root.ID, 0, seen)
	}
	return b.String()
}
