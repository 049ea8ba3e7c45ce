// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package validate implements the validator: structural checks
// over a resolved workflow spec, run in a fixed order
// and short-circuiting on the first failing category for the strict
// create path. CollectIssues runs every check to completion instead,
// for the --dry-run ValidationReport.
package validate

import (
	"fmt"
	"sort"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/resolve"
	"github.com/NREL/torc/spec"
)

// Options mirrors the subset of the workflow-creation options
// relevant to validation.
type Options struct {
	SkipChecks bool
}

// Validate runs every check in order and returns the first
// violation encountered as a structured error, or nil if
// the resolved spec is structurally sound.
func Validate(rs *resolve.ResolvedSpec, opts Options) error {
	if err := checkUniqueNames(rs); err != nil {
		return err
	}
	if err := checkSchedulerAndResourceReferences(rs); err != nil {
		return err
	}
	if err := checkAcyclic(rs); err != nil {
		return err
	}
	if err := checkWorkflowActions(rs, opts); err != nil {
		return err
	}
	return nil
}

// CollectIssues runs every check without stopping at the first failure
// and returns the accumulated error/warning messages, used to build the
// ValidationReport for --dry-run.
func CollectIssues(rs *resolve.ResolvedSpec, opts Options) (errs []string, warnings []string) {
	checks := []func() error{
		func() error { return checkUniqueNames(rs) },
		func() error { return checkSchedulerAndResourceReferences(rs) },
		func() error { return checkAcyclic(rs) },
		func() error { return checkWorkflowActions(rs, opts) },
	}
	for _, check := range checks {
		if err := check(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs, warnings
}

// checkUniqueNames: names must be unique per
// kind per workflow.
func checkUniqueNames(rs *resolve.ResolvedSpec) error {
	if err := uniqueNames("job", jobNames(rs.Jobs)); err != nil {
		return err
	}
	if err := uniqueNames("file", fileSpecNames(rs.Files)); err != nil {
		return err
	}
	if err := uniqueNames("user_data", userDataSpecNames(rs.UserData)); err != nil {
		return err
	}
	if err := uniqueNames("resource_requirements", resourceNames(rs.ResourceRequirements)); err != nil {
		return err
	}
	if err := uniqueNames("scheduler", schedulerNames(rs.SlurmSchedulers)); err != nil {
		return err
	}
	if err := uniqueNames("failure_handler", failureHandlerNames(rs.FailureHandlers)); err != nil {
		return err
	}
	return nil
}

func uniqueNames(kind string, names []string) error {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return errors.DuplicateName(kind, n)
		}
		seen[n] = true
	}
	return nil
}

// checkSchedulerAndResourceReferences: every
// scheduler/resource-requirements name a job references must exist.
func checkSchedulerAndResourceReferences(rs *resolve.ResolvedSpec) error {
	resourceSet := nameSet(resourceNames(rs.ResourceRequirements))
	schedulerSet := nameSet(schedulerNames(rs.SlurmSchedulers))
	handlerSet := nameSet(failureHandlerNames(rs.FailureHandlers))

	for _, j := range rs.Jobs {
		if j.ResourceRequirements != "" && !resourceSet[j.ResourceRequirements] {
			return errors.UnresolvedReference("resource_requirements", j.ResourceRequirements, j.Name)
		}
		if j.Scheduler != "" && !schedulerSet[j.Scheduler] {
			return errors.UnresolvedReference("scheduler", j.Scheduler, j.Name)
		}
		if j.FailureHandler != "" && !handlerSet[j.FailureHandler] {
			return errors.UnresolvedReference("failure_handler", j.FailureHandler, j.Name)
		}
	}
	return nil
}

// checkAcyclic: the combined explicit +
// implicit dependency graph must be acyclic. On failure, reports every
// job Kahn's algorithm could not order, sorted by name: the jobs on a
// cycle plus any jobs downstream of one. No single cycle is isolated.
func checkAcyclic(rs *resolve.ResolvedSpec) error {
	inDegree := make(map[string]int)
	adj := make(map[string][]string)
	for _, j := range rs.Jobs {
		inDegree[j.Name] += 0
	}
	for _, e := range rs.JobDependencies {
		adj[e.Blocker] = append(adj[e.Blocker], e.Blocked)
		inDegree[e.Blocked]++
	}

	var queue []string
	for name, d := range inDegree {
		if d == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		next := append([]string{}, adj[n]...)
		sort.Strings(next)
		for _, m := range next {
			inDegree[m]--
			if inDegree[m] == 0 {
				queue = append(queue, m)
				sort.Strings(queue)
			}
		}
	}

	if visited == len(inDegree) {
		return nil
	}

	var remaining []string
	for name, d := range inDegree {
		if d > 0 {
			remaining = append(remaining, name)
		}
	}
	sort.Strings(remaining)
	return errors.Cycle("job", remaining)
}

// checkWorkflowActions: a recognised trigger/action
// pair, a schedule_nodes action's scheduler must exist and have
// num_allocations >= 1, and (unless skip_checks) that scheduler must
// declare at least one node.
func checkWorkflowActions(rs *resolve.ResolvedSpec, opts Options) error {
	schedulerByName := make(map[string]*model.Scheduler)
	for i := range rs.SlurmSchedulers {
		s := rs.SlurmSchedulers[i]
		schedulerByName[s.Name] = &model.Scheduler{Name: s.Name, Nodes: s.Nodes}
	}

	for _, a := range rs.WorkflowActions {
		if !recognisedTriggerAction(a.TriggerType, a.ActionType) {
			return fmt.Errorf("workflow action has unrecognised trigger/action pair %q/%q", a.TriggerType, a.ActionType)
		}
		if a.ActionType != string(model.ActionScheduleNodes) {
			continue
		}
		sc, ok := schedulerByName[a.Scheduler]
		if !ok {
			return errors.UnresolvedReference("scheduler", a.Scheduler, "workflow_action")
		}
		if a.NumAllocations < 1 {
			return fmt.Errorf("schedule_nodes action for scheduler %q requires num_allocations >= 1", a.Scheduler)
		}
		if !opts.SkipChecks && sc.Nodes < 1 {
			return fmt.Errorf("schedule_nodes action targets scheduler %q which declares zero nodes", a.Scheduler)
		}
	}
	return nil
}

func recognisedTriggerAction(trigger, action string) bool {
	switch model.TriggerType(trigger) {
	case model.TriggerOnWorkflowStart, model.TriggerOnJobComplete, model.TriggerOnDependencySatisfied:
	default:
		return false
	}
	switch model.ActionType(action) {
	case model.ActionScheduleNodes:
	default:
		return false
	}
	return true
}

func jobNames(jobs []resolve.ResolvedJob) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.Name
	}
	return out
}

func fileSpecNames(files []spec.FileSpec) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func userDataSpecNames(uds []spec.UserDataSpec) []string {
	out := make([]string, len(uds))
	for i, u := range uds {
		out[i] = u.Name
	}
	return out
}

func resourceNames(rs []spec.ResourceRequirementsSpec) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func schedulerNames(scs []spec.SchedulerSpec) []string {
	out := make([]string, len(scs))
	for i, s := range scs {
		out[i] = s.Name
	}
	return out
}

func failureHandlerNames(hs []spec.FailureHandlerSpec) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Name
	}
	return out
}

func nameSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
