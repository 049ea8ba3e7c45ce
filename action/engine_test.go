// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package action

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NREL/torc/internal/testutil"
	"github.com/NREL/torc/model"
)

func setupWorkflow(t *testing.T, st *testutil.FakeStore) (workflowID int64, jobIDs []int64) {
	t.Helper()
	ctx := context.Background()
	wid, err := st.Workflows().Create(ctx, &model.Workflow{Name: "w", Owner: "u"})
	require.NoError(t, err)
	ids, err := st.Jobs().Create(ctx, wid, []model.Job{
		{Name: "a", Command: "true", Status: model.JobReady},
		{Name: "b", Command: "true", Status: model.JobReady},
		{Name: "c", Command: "true", Status: model.JobReady},
	})
	require.NoError(t, err)
	return wid, ids
}

func createAction(t *testing.T, st *testutil.FakeStore, workflowID int64, a model.WorkflowAction) int64 {
	t.Helper()
	id, err := st.Actions().Create(context.Background(), workflowID, &a)
	require.NoError(t, err)
	return id
}

func TestDispatchTriggersCountsMatchingEvents(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	wid, jobs := setupWorkflow(t, st)
	actionID := createAction(t, st, wid, model.WorkflowAction{
		TriggerType: model.TriggerOnJobComplete, ActionType: model.ActionScheduleNodes,
		RequiredTriggers: 3, SchedulerName: "std", NumAllocations: 1,
	})
	eng := NewEngine(st)

	var executed []int64
	execute := func(_ context.Context, a *model.WorkflowAction) error {
		executed = append(executed, a.ID)
		return nil
	}

	for i, jid := range jobs {
		require.NoError(t, eng.DispatchTriggers(ctx, wid, model.TriggerOnJobComplete, jid, execute))
		a, err := st.Actions().Get(ctx, actionID)
		require.NoError(t, err)
		assert.Equal(t, i+1, a.TriggerCount)
	}

	a, err := st.Actions().Get(ctx, actionID)
	require.NoError(t, err)
	assert.True(t, a.Executed)
	assert.Equal(t, []int64{actionID}, executed)
}

func TestDispatchTriggersHonorsJobRestriction(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	wid, jobs := setupWorkflow(t, st)
	// restricted to jobs a and b only
	actionID := createAction(t, st, wid, model.WorkflowAction{
		TriggerType: model.TriggerOnJobComplete, ActionType: model.ActionScheduleNodes,
		RequiredTriggers: 2, JobIDs: []int64{jobs[0], jobs[1]},
		SchedulerName: "std", NumAllocations: 1,
	})
	eng := NewEngine(st)

	// c completing must not advance the counter
	require.NoError(t, eng.DispatchTriggers(ctx, wid, model.TriggerOnJobComplete, jobs[2], nil))
	a, err := st.Actions().Get(ctx, actionID)
	require.NoError(t, err)
	assert.Zero(t, a.TriggerCount)
	assert.False(t, a.Executed)

	require.NoError(t, eng.DispatchTriggers(ctx, wid, model.TriggerOnJobComplete, jobs[0], nil))
	require.NoError(t, eng.DispatchTriggers(ctx, wid, model.TriggerOnJobComplete, jobs[1], nil))

	a, err = st.Actions().Get(ctx, actionID)
	require.NoError(t, err)
	assert.Equal(t, 2, a.TriggerCount)
	assert.True(t, a.Executed)
}

func TestDispatchTriggersWorkflowStartIgnoresRestriction(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	wid, jobs := setupWorkflow(t, st)
	// a start action may carry job ids (the jobs its allocations will
	// run); that list does not gate the workflow-level trigger
	actionID := createAction(t, st, wid, model.WorkflowAction{
		TriggerType: model.TriggerOnWorkflowStart, ActionType: model.ActionScheduleNodes,
		RequiredTriggers: 1, JobIDs: []int64{jobs[1]},
		SchedulerName: "std", NumAllocations: 1,
	})
	eng := NewEngine(st)

	require.NoError(t, eng.DispatchTriggers(ctx, wid, model.TriggerOnWorkflowStart, 0, nil))
	a, err := st.Actions().Get(ctx, actionID)
	require.NoError(t, err)
	assert.True(t, a.Executed)
}

func TestDispatchTriggersSkipsOtherTriggerTypes(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	wid, jobs := setupWorkflow(t, st)
	actionID := createAction(t, st, wid, model.WorkflowAction{
		TriggerType: model.TriggerOnWorkflowStart, ActionType: model.ActionScheduleNodes,
		RequiredTriggers: 1, SchedulerName: "std", NumAllocations: 1,
	})
	eng := NewEngine(st)

	require.NoError(t, eng.DispatchTriggers(ctx, wid, model.TriggerOnJobComplete, jobs[0], nil))
	a, err := st.Actions().Get(ctx, actionID)
	require.NoError(t, err)
	assert.Zero(t, a.TriggerCount)
}

func TestTryClaimAtMostOnceUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	wid, _ := setupWorkflow(t, st)
	actionID := createAction(t, st, wid, model.WorkflowAction{
		TriggerType: model.TriggerOnWorkflowStart, ActionType: model.ActionScheduleNodes,
		RequiredTriggers: 1, TriggerCount: 1, SchedulerName: "std", NumAllocations: 1,
	})
	eng := NewEngine(st)

	var mu sync.Mutex
	var wins int
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := eng.TryClaim(ctx, actionID)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestStatusClassification(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	wid, _ := setupWorkflow(t, st)
	actionID := createAction(t, st, wid, model.WorkflowAction{
		TriggerType: model.TriggerOnWorkflowStart, ActionType: model.ActionScheduleNodes,
		RequiredTriggers: 2, SchedulerName: "std", NumAllocations: 1,
	})
	eng := NewEngine(st)

	s, err := eng.Status(ctx, actionID)
	require.NoError(t, err)
	assert.Equal(t, model.ActionWaiting, s)

	_, err = eng.RecordTrigger(ctx, actionID)
	require.NoError(t, err)
	_, err = eng.RecordTrigger(ctx, actionID)
	require.NoError(t, err)

	s, err = eng.Status(ctx, actionID)
	require.NoError(t, err)
	assert.Equal(t, model.ActionPending, s)

	_, ok, err := eng.TryClaim(ctx, actionID)
	require.NoError(t, err)
	require.True(t, ok)

	s, err = eng.Status(ctx, actionID)
	require.NoError(t, err)
	assert.Equal(t, model.ActionExecuted, s)
}
