// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package slurmalloc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NREL/torc/internal/testutil"
	"github.com/NREL/torc/model"
	"github.com/NREL/torc/store"
)

// fakeSlurm records submissions and hands out sequential job ids.
type fakeSlurm struct {
	submitted  []string // script contents at submission time
	canceled   []string
	nextJobID  int
	submitErr  error
	cancelErrs map[string]error
}

func (f *fakeSlurm) Submit(_ context.Context, scriptPath string) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return "", err
	}
	f.submitted = append(f.submitted, string(data))
	f.nextJobID++
	return fmt.Sprintf("%d", 1000+f.nextJobID), nil
}

func (f *fakeSlurm) Cancel(_ context.Context, jobID string) error {
	if err := f.cancelErrs[jobID]; err != nil {
		return err
	}
	f.canceled = append(f.canceled, jobID)
	return nil
}

func setupScheduler(t *testing.T, st *testutil.FakeStore) (workflowID, schedulerID int64) {
	t.Helper()
	ctx := context.Background()
	wid, err := st.Workflows().Create(ctx, &model.Workflow{Name: "w", Owner: "u"})
	require.NoError(t, err)
	sid, err := st.Schedulers().Create(ctx, wid, &model.Scheduler{
		Name: "gpu", Account: "proj", Nodes: 2, Walltime: "04:00:00",
		Partition: "gpu", Gres: "gpu:2", Memory: "64G",
	})
	require.NoError(t, err)
	return wid, sid
}

func TestScheduleNxOneSubmitsPerAllocation(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	wid, sid := setupScheduler(t, st)
	slurm := &fakeSlurm{}
	m := NewManager(st, slurm, nil)

	handles, err := m.Schedule(ctx, wid, sid, 3, model.AllocationNxOne, Options{ScriptDir: t.TempDir()})
	require.NoError(t, err)
	require.Len(t, handles, 3)
	require.Len(t, slurm.submitted, 3)

	// each NxOne submission asks for the scheduler's own node count
	assert.Contains(t, slurm.submitted[0], "#SBATCH --nodes=2")
	assert.Contains(t, slurm.submitted[0], "#SBATCH --account=proj")
	assert.Contains(t, slurm.submitted[0], "#SBATCH --gres=gpu:2")

	nodes, err := st.ScheduledComputeNodes().List(ctx, wid, store.ScheduledComputeNodeListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, nodes.Items, 3)
	for _, n := range nodes.Items {
		assert.Equal(t, model.ScheduledPending, n.Status)
		assert.Equal(t, sid, n.SchedulerConfigID)
		assert.Equal(t, model.SchedulerSlurm, n.SchedulerType)
	}

	events, err := st.Events().List(ctx, wid, store.EventListFilter{Category: "scheduler"}, store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, events.Items, 3)
}

func TestScheduleOneXNSubmitsOnce(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	wid, sid := setupScheduler(t, st)
	slurm := &fakeSlurm{}
	m := NewManager(st, slurm, nil)

	handles, err := m.Schedule(ctx, wid, sid, 3, model.AllocationOneXN, Options{ScriptDir: t.TempDir()})
	require.NoError(t, err)
	require.Len(t, handles, 1)
	require.Len(t, slurm.submitted, 1)
	assert.Contains(t, slurm.submitted[0], "#SBATCH --nodes=6")
}

func TestScriptsRemovedUnlessKept(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	wid, sid := setupScheduler(t, st)
	m := NewManager(st, &fakeSlurm{}, nil)
	dir := t.TempDir()

	handles, err := m.Schedule(ctx, wid, sid, 1, model.AllocationNxOne, Options{ScriptDir: dir})
	require.NoError(t, err)
	assert.Empty(t, handles[0].ScriptPath)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	handles, err = m.Schedule(ctx, wid, sid, 1, model.AllocationNxOne, Options{ScriptDir: dir, KeepSubmissionScripts: true})
	require.NoError(t, err)
	require.NotEmpty(t, handles[0].ScriptPath)
	_, err = os.Stat(handles[0].ScriptPath)
	assert.NoError(t, err)
}

func TestScriptRemovedOnSubmitFailure(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	wid, sid := setupScheduler(t, st)
	m := NewManager(st, &fakeSlurm{submitErr: errors.New("sbatch: queue closed")}, nil)
	dir := t.TempDir()

	_, err := m.Schedule(ctx, wid, sid, 1, model.AllocationNxOne, Options{ScriptDir: dir})
	require.Error(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCancelWorkflowAggregatesErrors(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	wid, sid := setupScheduler(t, st)
	slurm := &fakeSlurm{cancelErrs: map[string]error{"1002": errors.New("already gone")}}
	m := NewManager(st, slurm, nil)

	_, err := m.Schedule(ctx, wid, sid, 3, model.AllocationNxOne, Options{ScriptDir: t.TempDir()})
	require.NoError(t, err)

	err = m.CancelWorkflow(ctx, wid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1002")
	// the other two were still cancelled
	assert.ElementsMatch(t, []string{"1001", "1003"}, slurm.canceled)
}

func TestRenderScriptDirectives(t *testing.T) {
	sched := &model.Scheduler{
		Name: "std", Account: "acct", Nodes: 1, Walltime: "01:30:00",
		Partition: "standard", QOS: "high", Tmp: "100G", Extra: "--exclusive",
	}
	script := RenderScript(sched, 1, 42, Options{StartServer: true})
	assert.Contains(t, script, "#!/bin/bash")
	assert.Contains(t, script, "#SBATCH --time=01:30:00")
	assert.Contains(t, script, "#SBATCH --qos=high")
	assert.Contains(t, script, "#SBATCH --tmp=100G")
	assert.Contains(t, script, "#SBATCH --exclusive")
	assert.Contains(t, script, "torc server start --detach")
	assert.Contains(t, script, "srun torc worker run --workflow-id 42")
}
