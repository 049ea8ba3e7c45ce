// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NREL/torc/internal/testutil"
	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/config"
	"github.com/NREL/torc/resolve"
	"github.com/NREL/torc/spec"
	"github.com/NREL/torc/store"

	"github.com/NREL/torc/materialize"
)

// fakeFileChecker lets tests declare which paths exist without touching
// a real filesystem.
type fakeFileChecker struct {
	existing map[string]time.Time
}

func newFakeFileChecker() *fakeFileChecker {
	return &fakeFileChecker{existing: map[string]time.Time{}}
}

func (c *fakeFileChecker) touch(path string, mtime time.Time) {
	c.existing[path] = mtime
}

func (c *fakeFileChecker) Stat(path string) (bool, time.Time, error) {
	mtime, ok := c.existing[path]
	if !ok {
		return false, time.Time{}, nil
	}
	return true, mtime, nil
}

func buildWorkflow(t *testing.T, st store.Store, ws *spec.WorkflowSpec) int64 {
	t.Helper()
	rs, err := resolve.ResolveAll(ws)
	require.NoError(t, err)
	id, err := materialize.Materialize(context.Background(), st, rs, "alice", config.DefaultWorkflowOptions())
	require.NoError(t, err)
	return id
}

func TestEngine_InitialiseMinimal(t *testing.T) {
	ws := &spec.WorkflowSpec{
		Name: "w",
		Jobs: []spec.JobSpec{{Name: "a", Command: "echo hi"}},
	}
	st := testutil.NewFakeStore()
	workflowID := buildWorkflow(t, st, ws)

	eng := NewEngine(st, newFakeFileChecker())
	require.NoError(t, eng.Initialise(context.Background(), workflowID, false))

	jobs, err := st.Jobs().List(context.Background(), workflowID, store.JobListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, jobs.Items, 1)
	assert.Equal(t, model.JobReady, jobs.Items[0].Status)
}

func TestEngine_InitialiseMissingInputFails(t *testing.T) {
	ws := &spec.WorkflowSpec{
		Name:  "w",
		Files: []spec.FileSpec{{Name: "in.txt", Path: "/tmp/does-not-exist.txt"}},
		Jobs: []spec.JobSpec{
			{Name: "a", Command: "consume", InputFiles: spec.RefList{Exact: []string{"in.txt"}}},
		},
	}
	st := testutil.NewFakeStore()
	workflowID := buildWorkflow(t, st, ws)

	eng := NewEngine(st, newFakeFileChecker())
	err := eng.Initialise(context.Background(), workflowID, false)
	require.Error(t, err)
}

func TestEngine_InitialiseForceIgnoresMissingInput(t *testing.T) {
	ws := &spec.WorkflowSpec{
		Name:  "w",
		Files: []spec.FileSpec{{Name: "in.txt", Path: "/tmp/does-not-exist.txt"}},
		Jobs: []spec.JobSpec{
			{Name: "a", Command: "consume", InputFiles: spec.RefList{Exact: []string{"in.txt"}}},
		},
	}
	st := testutil.NewFakeStore()
	workflowID := buildWorkflow(t, st, ws)

	eng := NewEngine(st, newFakeFileChecker())
	require.NoError(t, eng.Initialise(context.Background(), workflowID, true))

	jobs, err := st.Jobs().List(context.Background(), workflowID, store.JobListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, model.JobReady, jobs.Items[0].Status)
}

func TestEngine_BlockedUntilDependencyDone(t *testing.T) {
	ws := &spec.WorkflowSpec{
		Name: "w",
		Jobs: []spec.JobSpec{
			{Name: "a", Command: "x"},
			{Name: "b", Command: "y", DependsOn: spec.RefList{Exact: []string{"a"}}},
		},
	}
	st := testutil.NewFakeStore()
	workflowID := buildWorkflow(t, st, ws)

	eng := NewEngine(st, newFakeFileChecker())
	require.NoError(t, eng.Initialise(context.Background(), workflowID, false))

	jobs, err := st.Jobs().List(context.Background(), workflowID, store.JobListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	statuses := map[string]model.JobStatus{}
	for _, j := range jobs.Items {
		statuses[j.Name] = j.Status
	}
	assert.Equal(t, model.JobReady, statuses["a"])
	assert.Equal(t, model.JobBlocked, statuses["b"])
}

func TestEngine_ResetStatusRejectsActiveWithoutForce(t *testing.T) {
	ws := &spec.WorkflowSpec{
		Name: "w",
		Jobs: []spec.JobSpec{{Name: "a", Command: "x"}},
	}
	st := testutil.NewFakeStore()
	workflowID := buildWorkflow(t, st, ws)

	eng := NewEngine(st, newFakeFileChecker())
	require.NoError(t, eng.Initialise(context.Background(), workflowID, false))

	jobs, err := st.Jobs().List(context.Background(), workflowID, store.JobListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	job := jobs.Items[0]
	job.Status = model.JobRunning
	require.NoError(t, st.Jobs().Update(context.Background(), &job))

	err = eng.ResetStatus(context.Background(), workflowID, false, false)
	require.Error(t, err)

	require.NoError(t, eng.ResetStatus(context.Background(), workflowID, false, true))
}

func TestEngine_ApplyResultRetriesPerFailureHandler(t *testing.T) {
	ws := &spec.WorkflowSpec{
		Name:            "w",
		FailureHandlers: []spec.FailureHandlerSpec{{Name: "retry", MaxRetries: 1}},
		Jobs: []spec.JobSpec{
			{Name: "a", Command: "x", FailureHandler: "retry"},
		},
	}
	st := testutil.NewFakeStore()
	workflowID := buildWorkflow(t, st, ws)

	eng := NewEngine(st, newFakeFileChecker())
	require.NoError(t, eng.Initialise(context.Background(), workflowID, false))

	jobs, err := st.Jobs().List(context.Background(), workflowID, store.JobListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	job := jobs.Items[0]

	require.NoError(t, eng.ApplyResult(context.Background(), &job, model.Result{ReturnCode: 1}))
	assert.Equal(t, model.JobUninitialized, job.Status)
	assert.Equal(t, 1, job.RetryCount)

	require.NoError(t, eng.ApplyResult(context.Background(), &job, model.Result{ReturnCode: 1}))
	assert.Equal(t, model.JobTerminated, job.Status)
}

func TestEngine_ReinitialiseRerunsJobWithFreshInput(t *testing.T) {
	ws := &spec.WorkflowSpec{
		Name:  "w",
		Files: []spec.FileSpec{{Name: "in.txt", Path: "/data/in.txt"}},
		Jobs: []spec.JobSpec{
			{Name: "j", Command: "consume", InputFiles: spec.RefList{Exact: []string{"in.txt"}}},
			{Name: "other", Command: "x"},
		},
	}
	st := testutil.NewFakeStore()
	workflowID := buildWorkflow(t, st, ws)
	ctx := context.Background()

	checker := newFakeFileChecker()
	completedAt := time.Now().Add(-time.Hour)
	checker.touch("/data/in.txt", completedAt.Add(-time.Minute))

	eng := NewEngine(st, checker)
	require.NoError(t, eng.Initialise(ctx, workflowID, false))

	jobs, err := st.Jobs().List(ctx, workflowID, store.JobListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	byName := map[string]model.Job{}
	for _, j := range jobs.Items {
		byName[j.Name] = j
	}

	for _, name := range []string{"j", "other"} {
		job := byName[name]
		require.NoError(t, st.Jobs().Complete(ctx, job.ID, &model.Result{
			ReturnCode: 0, CompletedAt: completedAt, Status: model.JobDone,
		}))
		job.Status = model.JobDone
		require.NoError(t, st.Jobs().Update(ctx, &job))
	}

	// nothing changed yet: reinitialise leaves both jobs Done
	require.NoError(t, eng.Reinitialise(ctx, workflowID, false))
	statuses, err := st.Workflows().GetStatus(ctx, workflowID)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.Equal(t, model.JobDone, s)
	}

	// touch j's input newer than its completion: only j re-runs
	checker.touch("/data/in.txt", completedAt.Add(time.Minute))
	require.NoError(t, eng.Reinitialise(ctx, workflowID, false))

	jobs, err = st.Jobs().List(ctx, workflowID, store.JobListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	for _, j := range jobs.Items {
		switch j.Name {
		case "j":
			assert.Equal(t, model.JobReady, j.Status)
		case "other":
			assert.Equal(t, model.JobDone, j.Status)
		}
	}
}

func TestEngine_UnblockReady(t *testing.T) {
	ws := &spec.WorkflowSpec{
		Name: "w",
		Jobs: []spec.JobSpec{
			{Name: "a", Command: "x"},
			{Name: "b", Command: "y", DependsOn: spec.RefList{Exact: []string{"a"}}},
		},
	}
	st := testutil.NewFakeStore()
	workflowID := buildWorkflow(t, st, ws)
	ctx := context.Background()

	eng := NewEngine(st, newFakeFileChecker())
	require.NoError(t, eng.Initialise(ctx, workflowID, false))

	// nothing unblocks while a is not Done
	unblocked, err := eng.UnblockReady(ctx, workflowID)
	require.NoError(t, err)
	assert.Empty(t, unblocked)

	jobs, err := st.Jobs().List(ctx, workflowID, store.JobListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	for _, j := range jobs.Items {
		if j.Name == "a" {
			j.Status = model.JobDone
			require.NoError(t, st.Jobs().Update(ctx, &j))
		}
	}

	unblocked, err = eng.UnblockReady(ctx, workflowID)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, unblocked)
}

func TestEngine_ReinitialiseRerunsJobWithChangedUserData(t *testing.T) {
	ws := &spec.WorkflowSpec{
		Name:     "w",
		UserData: []spec.UserDataSpec{{Name: "params", Data: map[string]interface{}{"k": 1}}},
		Jobs: []spec.JobSpec{
			{Name: "j", Command: "consume", InputUserData: spec.RefList{Exact: []string{"params"}}},
			{Name: "other", Command: "x"},
		},
	}
	st := testutil.NewFakeStore()
	workflowID := buildWorkflow(t, st, ws)
	ctx := context.Background()

	eng := NewEngine(st, newFakeFileChecker())
	require.NoError(t, eng.Initialise(ctx, workflowID, false))

	jobs, err := st.Jobs().List(ctx, workflowID, store.JobListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	for _, j := range jobs.Items {
		require.NoError(t, st.Jobs().Complete(ctx, j.ID, &model.Result{
			ReturnCode: 0, CompletedAt: time.Now(), Status: model.JobDone,
		}))
		j.Status = model.JobDone
		require.NoError(t, st.Jobs().Update(ctx, &j))
	}

	// user data untouched since completion: both jobs stay Done
	require.NoError(t, eng.Reinitialise(ctx, workflowID, false))
	statuses, err := st.Workflows().GetStatus(ctx, workflowID)
	require.NoError(t, err)
	for _, s := range statuses {
		assert.Equal(t, model.JobDone, s)
	}

	// rewrite the consumed user data: the store stamps UpdatedAt and
	// only the consuming job re-runs
	uds, err := st.UserData().List(ctx, workflowID, store.UserDataListFilter{Name: "params"}, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, uds.Items, 1)
	ud := uds.Items[0]
	ud.Data = []byte(`{"k":2}`)
	require.NoError(t, st.UserData().Update(ctx, &ud))

	require.NoError(t, eng.Reinitialise(ctx, workflowID, false))
	jobs, err = st.Jobs().List(ctx, workflowID, store.JobListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	for _, j := range jobs.Items {
		switch j.Name {
		case "j":
			assert.Equal(t, model.JobReady, j.Status)
		case "other":
			assert.Equal(t, model.JobDone, j.Status)
		}
	}
}
