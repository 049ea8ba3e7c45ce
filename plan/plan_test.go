// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NREL/torc/internal/testutil"
	"github.com/NREL/torc/materialize"
	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/config"
	"github.com/NREL/torc/resolve"
	"github.com/NREL/torc/spec"
)

func diamondSpec(t *testing.T) *resolve.ResolvedSpec {
	t.Helper()
	ws := &spec.WorkflowSpec{
		Name: "diamond",
		Jobs: []spec.JobSpec{
			{Name: "prep", Command: "true"},
			{Name: "left", Command: "true", DependsOn: spec.RefList{Exact: []string{"prep"}}},
			{Name: "right", Command: "true", DependsOn: spec.RefList{Exact: []string{"prep"}}},
			{Name: "merge", Command: "true", DependsOn: spec.RefList{Exact: []string{"left", "right"}}},
		},
		SlurmSchedulers: []spec.SchedulerSpec{{Name: "bigmem", Account: "acct", Nodes: 2, Walltime: "01:00:00", Partition: "standard"}},
		WorkflowActions: []spec.WorkflowActionSpec{{
			TriggerType: "on_workflow_start", ActionType: "schedule_nodes",
			RequiredTriggers: 1, Scheduler: "bigmem", NumAllocations: 2,
		}},
	}
	rs, err := resolve.ResolveAll(ws)
	require.NoError(t, err)
	return rs
}

func TestBuildDiamond(t *testing.T) {
	p := Build(diamondSpec(t))

	byID := map[string]Event{}
	for _, e := range p.Events {
		byID[e.ID] = e
	}

	start := byID["workflow_start"]
	assert.Equal(t, []string{"job_complete:prep"}, start.Unlocks)
	require.Len(t, start.SchedulerAllocations, 1)
	assert.Equal(t, "bigmem", start.SchedulerAllocations[0].Scheduler)
	assert.Equal(t, 2, start.SchedulerAllocations[0].NumAllocations)
	assert.Equal(t, []string{"prep"}, start.SchedulerAllocations[0].JobsBecomingReady)

	prep := byID["job_complete:prep"]
	assert.ElementsMatch(t, []string{"dependency_satisfied:left", "dependency_satisfied:right"}, prep.Unlocks)

	merge := byID["dependency_satisfied:merge"]
	assert.Equal(t, []string{"job_complete:merge"}, merge.Unlocks)
	assert.Empty(t, merge.SchedulerAllocations)

	// every job_complete for a blocked job is unlocked only via its
	// dependency_satisfied event
	left := byID["job_complete:left"]
	assert.Equal(t, []string{"dependency_satisfied:merge"}, left.Unlocks)
}

func TestRootAndLeafEvents(t *testing.T) {
	p := Build(diamondSpec(t))

	roots := p.RootEvents()
	require.Len(t, roots, 1)
	assert.Equal(t, "workflow_start", roots[0].ID)

	var leafIDs []string
	for _, e := range p.LeafEvents() {
		leafIDs = append(leafIDs, e.ID)
	}
	assert.Equal(t, []string{"job_complete:merge"}, leafIDs)
}

func TestStringRendersTree(t *testing.T) {
	out := Build(diamondSpec(t)).String()
	assert.Contains(t, out, `execution plan for workflow "diamond"`)
	assert.Contains(t, out, "workflow_start [schedule 2 x bigmem -> ready: prep]")
	assert.Contains(t, out, "job_complete:merge")
}

func TestBuildFromWorkflowMatchesBuild(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	rs := diamondSpec(t)

	id, err := materialize.Materialize(ctx, st, rs, "tester", config.DefaultWorkflowOptions())
	require.NoError(t, err)

	fromStore, err := BuildFromWorkflow(ctx, st, id)
	require.NoError(t, err)
	fromSpec := Build(rs)

	require.Len(t, fromStore.Events, len(fromSpec.Events))
	for i := range fromSpec.Events {
		assert.Equal(t, fromSpec.Events[i].ID, fromStore.Events[i].ID)
		assert.Equal(t, fromSpec.Events[i].Unlocks, fromStore.Events[i].Unlocks)
	}
}

func TestJobCompleteAllocationRestrictedToNamedJobs(t *testing.T) {
	ws := &spec.WorkflowSpec{
		Name: "restricted",
		Jobs: []spec.JobSpec{
			{Name: "a", Command: "true"},
			{Name: "b", Command: "true"},
		},
		SlurmSchedulers: []spec.SchedulerSpec{{Name: "std", Account: "acct", Nodes: 1, Walltime: "01:00:00", Partition: "p"}},
		WorkflowActions: []spec.WorkflowActionSpec{{
			TriggerType: "on_job_complete", ActionType: "schedule_nodes",
			RequiredTriggers: 1, JobNames: []string{"a"}, Scheduler: "std", NumAllocations: 1,
		}},
	}
	rs, err := resolve.ResolveAll(ws)
	require.NoError(t, err)

	p := Build(rs)
	byID := map[string]Event{}
	for _, e := range p.Events {
		byID[e.ID] = e
	}
	assert.Len(t, byID["job_complete:a"].SchedulerAllocations, 1)
	assert.Empty(t, byID["job_complete:b"].SchedulerAllocations)
	assert.Equal(t, model.SchedulerSlurm, byID["job_complete:a"].SchedulerAllocations[0].SchedulerType)
}
