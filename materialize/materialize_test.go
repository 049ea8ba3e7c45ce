// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package materialize

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NREL/torc/internal/testutil"
	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/config"
	"github.com/NREL/torc/resolve"
	"github.com/NREL/torc/spec"
	"github.com/NREL/torc/store"
)

func testSpec() *spec.WorkflowSpec {
	return &spec.WorkflowSpec{
		Name:        "pipeline",
		User:        "alice",
		Description: "a small test workflow",
		Files:       []spec.FileSpec{{Name: "out.txt", Path: "/tmp/out.txt"}},
		UserData:    []spec.UserDataSpec{{Name: "config", Data: map[string]interface{}{"k": "v"}}},
		ResourceRequirements: []spec.ResourceRequirementsSpec{
			{Name: "small", NumCPUs: 1, Memory: "1gb"},
		},
		SlurmSchedulers: []spec.SchedulerSpec{
			{Name: "debug", Account: "acct", Nodes: 1, Walltime: "00:10:00"},
		},
		FailureHandlers: []spec.FailureHandlerSpec{
			{Name: "retry_once", MaxRetries: 1},
		},
		Jobs: []spec.JobSpec{
			{Name: "produce", Command: "produce", OutputFiles: spec.RefList{Exact: []string{"out.txt"}}, ResourceRequirements: "small", FailureHandler: "retry_once"},
			{Name: "consume", Command: "consume", InputFiles: spec.RefList{Exact: []string{"out.txt"}}, Scheduler: "debug"},
		},
		WorkflowActions: []spec.WorkflowActionSpec{
			{TriggerType: "on_workflow_start", ActionType: "schedule_nodes", RequiredTriggers: 1, Scheduler: "debug", NumAllocations: 1, JobNames: []string{"consume"}},
		},
	}
}

func TestMaterialize_FullWorkflow(t *testing.T) {
	rs, err := resolve.ResolveAll(testSpec())
	require.NoError(t, err)

	st := testutil.NewFakeStore()
	ctx := context.Background()

	id, err := Materialize(ctx, st, rs, "alice", config.DefaultWorkflowOptions())
	require.NoError(t, err)
	assert.NotZero(t, id)

	w, err := st.Workflows().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "pipeline", w.Name)
	assert.Equal(t, "alice", w.Owner)
	require.NotNil(t, w.Monitor)
	assert.Equal(t, model.MonitorSummary, w.Monitor.Granularity)

	jobs, err := st.Jobs().List(ctx, id, store.JobListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, jobs.Items, 2)

	var produce, consume model.Job
	for _, j := range jobs.Items {
		switch j.Name {
		case "produce":
			produce = j
		case "consume":
			consume = j
		}
	}
	assert.Equal(t, "small", produce.ResourceRequirementsName)
	assert.Equal(t, "retry_once", produce.FailureHandlerName)
	assert.Equal(t, "debug", consume.SchedulerName)
	assert.Equal(t, model.JobUninitialized, produce.Status)

	deps, err := st.Dependencies().ListJobDependencies(ctx, id)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, produce.ID, deps[0].BlockerJobID)
	assert.Equal(t, consume.ID, deps[0].BlockedJobID)

	files, err := st.Dependencies().ListJobFileRelationships(ctx, id)
	require.NoError(t, err)
	assert.Len(t, files, 2) // produce: producer, consume: consumer

	actions, err := st.Workflows().GetActions(ctx, id)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, []int64{consume.ID}, actions[0].JobIDs)
	assert.Equal(t, model.AllocationNxOne, actions[0].AllocationMode)
}

func TestMaterialize_DryRunWritesNothing(t *testing.T) {
	rs, err := resolve.ResolveAll(testSpec())
	require.NoError(t, err)

	st := testutil.NewFakeStore()
	ctx := context.Background()

	opts := config.DefaultWorkflowOptions()
	opts.DryRun = true

	id, err := Materialize(ctx, st, rs, "alice", opts)
	require.NoError(t, err)
	assert.Zero(t, id)

	list, err := st.Workflows().List(ctx, "", store.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

// failingJobStore wraps a real JobStore but fails every Create, used to
// exercise the rollback-by-delete-workflow path.
type failingJobStore struct {
	store.JobStore
}

func (failingJobStore) Create(context.Context, int64, []model.Job) ([]int64, error) {
	return nil, assert.AnError
}

type rollbackStore struct {
	store.Store
}

func (s rollbackStore) Jobs() store.JobStore { return failingJobStore{s.Store.Jobs()} }

func TestMaterialize_RollsBackOnFailure(t *testing.T) {
	rs, err := resolve.ResolveAll(testSpec())
	require.NoError(t, err)

	base := testutil.NewFakeStore()
	st := rollbackStore{Store: base}
	ctx := context.Background()

	_, err = Materialize(ctx, st, rs, "alice", config.DefaultWorkflowOptions())
	require.Error(t, err)

	list, listErr := base.Workflows().List(ctx, "", store.ListOptions{})
	require.NoError(t, listErr)
	assert.Empty(t, list.Items, "workflow must be rolled back after a materialise step fails")
}
