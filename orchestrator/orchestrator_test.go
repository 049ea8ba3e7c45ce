// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NREL/torc/internal/testutil"
	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/config"
	torcerrors "github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/slurmalloc"
	"github.com/NREL/torc/store"
	"github.com/NREL/torc/worker"
)

// fakeSlurm hands out sequential allocation ids.
type fakeSlurm struct {
	submitted int
	canceled  []string
}

func (f *fakeSlurm) Submit(_ context.Context, _ string) (string, error) {
	f.submitted++
	return fmt.Sprintf("%d", 5000+f.submitted), nil
}

func (f *fakeSlurm) Cancel(_ context.Context, jobID string) error {
	f.canceled = append(f.canceled, jobID)
	return nil
}

func writeSpec(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func newOrchestrator(st store.Store, slurm slurmalloc.Interface) (*Orchestrator, *slurmalloc.Manager) {
	var mgr *slurmalloc.Manager
	if slurm != nil {
		mgr = slurmalloc.NewManager(st, slurm, nil)
	}
	return New(st, mgr, nil), mgr
}

const minimalSpec = `{"name": "w", "user": "u", "jobs": [{"name": "a", "command": "echo hi"}]}`

const scheduledSpec = `{
	"name": "hpcflow",
	"user": "u",
	"jobs": [
		{"name": "a", "command": "true", "scheduler": "std"},
		{"name": "b", "command": "true", "depends_on": ["a"], "scheduler": "std"}
	],
	"slurm_schedulers": [
		{"name": "std", "account": "proj", "nodes": 1, "walltime": "01:00:00", "partition": "standard"}
	],
	"workflow_actions": [
		{"trigger_type": "on_workflow_start", "action_type": "schedule_nodes",
		 "required_triggers": 1, "scheduler": "std", "num_allocations": 2}
	]
}`

func TestCreateMinimalAndRunLocal(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	o, _ := newOrchestrator(st, nil)

	id, err := o.Create(ctx, writeSpec(t, minimalSpec), "u", config.DefaultWorkflowOptions())
	require.NoError(t, err)
	require.NotZero(t, id)

	ctxRun, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	err = o.RunLocal(ctxRun, id, false, worker.Config{PollInterval: 5 * time.Millisecond})
	require.NoError(t, err)

	statuses, err := st.Workflows().GetStatus(ctx, id)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	for _, s := range statuses {
		assert.Equal(t, model.JobDone, s)
	}
}

func TestCreateDryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	o, _ := newOrchestrator(st, nil)

	opts := config.DefaultWorkflowOptions()
	opts.DryRun = true
	id, err := o.Create(ctx, writeSpec(t, minimalSpec), "u", opts)
	require.NoError(t, err)
	assert.Zero(t, id)

	list, err := st.Workflows().List(ctx, "", store.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
}

func TestSubmitWithoutScheduleNodesFails(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	o, _ := newOrchestrator(st, &fakeSlurm{})

	id, err := o.Create(ctx, writeSpec(t, minimalSpec), "u", config.DefaultWorkflowOptions())
	require.NoError(t, err)

	err = o.Submit(ctx, id, false)
	var vf *torcerrors.ValidationFailureErr
	require.ErrorAs(t, err, &vf)
	assert.Contains(t, vf.Messages[0], "schedule_nodes")

	// workflow state unchanged: still uninitialized
	uninit, err := st.Workflows().IsUninitialized(ctx, id)
	require.NoError(t, err)
	assert.True(t, uninit)
}

func TestSubmitSchedulesAllocations(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	slurm := &fakeSlurm{}
	o, _ := newOrchestrator(st, slurm)

	id, err := o.Create(ctx, writeSpec(t, scheduledSpec), "u", config.DefaultWorkflowOptions())
	require.NoError(t, err)

	require.NoError(t, o.Submit(ctx, id, false))
	assert.Equal(t, 2, slurm.submitted)

	nodes, err := st.ScheduledComputeNodes().List(ctx, id, store.ScheduledComputeNodeListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, nodes.Items, 2)

	// the start action was claimed exactly once; a second submit finds
	// it executed and schedules nothing more
	require.NoError(t, o.Submit(ctx, id, false))
	assert.Equal(t, 2, slurm.submitted)

	// jobs were initialised: a Ready, b Blocked
	jobs, err := st.Jobs().List(ctx, id, store.JobListFilter{}, store.ListOptions{})
	require.NoError(t, err)
	byName := map[string]model.JobStatus{}
	for _, j := range jobs.Items {
		byName[j.Name] = j.Status
	}
	assert.Equal(t, model.JobReady, byName["a"])
	assert.Equal(t, model.JobBlocked, byName["b"])
}

func TestCancelCancelsAllocations(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	slurm := &fakeSlurm{}
	o, _ := newOrchestrator(st, slurm)

	id, err := o.Create(ctx, writeSpec(t, scheduledSpec), "u", config.DefaultWorkflowOptions())
	require.NoError(t, err)
	require.NoError(t, o.Submit(ctx, id, false))

	require.NoError(t, o.Cancel(ctx, id))

	w, err := st.Workflows().Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, w.Canceled)
	assert.Len(t, slurm.canceled, 2)
}

func TestDeleteRequiresOwner(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	o, _ := newOrchestrator(st, nil)

	id, err := o.Create(ctx, writeSpec(t, minimalSpec), "owner", config.DefaultWorkflowOptions())
	require.NoError(t, err)

	err = o.Delete(ctx, id, "intruder", false)
	var ud *torcerrors.UnauthorisedDeleteErr
	require.ErrorAs(t, err, &ud)
	assert.Equal(t, "owner", ud.Owner)

	require.NoError(t, o.Delete(ctx, id, "intruder", true))
	_, err = st.Workflows().Get(ctx, id)
	assert.Error(t, err)
}

func TestValidateSpecReport(t *testing.T) {
	path := writeSpec(t, `{
		"name": "v",
		"jobs": [
			{"name": "tmpl_${i}", "command": "run ${i}", "use_parameters": true,
			 "parameters": {"i": ["1", "2", "3"]}, "parameter_mode": "product"}
		]
	}`)
	report, err := ValidateSpec(path, false)
	require.NoError(t, err)
	assert.True(t, report.Valid())
	assert.Equal(t, 1, report.Summary.JobCountBeforeExpansion)
	assert.Equal(t, 3, report.Summary.JobCountAfterExpansion)
	assert.False(t, report.Summary.HasScheduleNodesAction)
	assert.NotEmpty(t, report.Warnings)
}

func TestValidateSpecReportsCycle(t *testing.T) {
	path := writeSpec(t, `{
		"name": "cyclic",
		"jobs": [
			{"name": "a", "command": "true", "depends_on": ["b"]},
			{"name": "b", "command": "true", "depends_on": ["a"]}
		]
	}`)
	report, err := ValidateSpec(path, false)
	require.NoError(t, err)
	assert.False(t, report.Valid())
	assert.Contains(t, report.Errors[0], "cycle")
}

func TestCreateWithSchedulersSynthesizes(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeStore()
	o, _ := newOrchestrator(st, &fakeSlurm{})

	path := writeSpec(t, `{
		"name": "synth",
		"jobs": [
			{"name": "cpu_job", "command": "true", "resource_requirements": "small"},
			{"name": "gpu_job", "command": "true", "resource_requirements": "accel"}
		],
		"resource_requirements": [
			{"name": "small", "num_cpus": 4, "memory": "8G", "runtime": "P0DT1H"},
			{"name": "accel", "num_cpus": 16, "num_gpus": 2, "memory": "64G"}
		]
	}`)

	profile, ok := LookupProfile("kestrel")
	require.True(t, ok)
	id, err := o.CreateWithSchedulers(ctx, path, "u", SchedulerSynthesisOptions{
		Account: "proj", Profile: profile, AllocationMode: model.AllocationNxOne,
	}, config.DefaultWorkflowOptions())
	require.NoError(t, err)

	scheds, err := st.Schedulers().List(ctx, id, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, scheds.Items, 2)
	byName := map[string]model.Scheduler{}
	for _, s := range scheds.Items {
		byName[s.Name] = s
	}
	assert.Equal(t, "gpu-h100", byName["synth_accel"].Partition)
	assert.Equal(t, "gpu:2", byName["synth_accel"].Gres)
	assert.Equal(t, "short", byName["synth_small"].Partition)

	actions, err := st.Workflows().GetActions(ctx, id)
	require.NoError(t, err)
	assert.Len(t, actions, 2)
}

func TestWatchObservesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	st := testutil.NewFakeStore()
	o, _ := newOrchestrator(st, nil)

	id, err := o.Create(ctx, writeSpec(t, minimalSpec), "u", config.DefaultWorkflowOptions())
	require.NoError(t, err)

	got := make(chan model.Event, 1)
	go func() {
		_ = o.Watch(ctx, id, WatchOptions{OnEvent: func(e model.Event) { got <- e }})
	}()

	// give the stream a moment to register before publishing
	time.Sleep(20 * time.Millisecond)
	_, err = st.Events().Create(ctx, id, &model.Event{
		TimestampMillis: time.Now().UnixMilli(),
		Category:        "workflow",
		Severity:        model.SeverityInfo,
		Data:            []byte(`{"category":"workflow","message":"started"}`),
	})
	require.NoError(t, err)

	select {
	case ev := <-got:
		assert.Equal(t, "workflow", ev.Category)
	case <-time.After(5 * time.Second):
		t.Fatal("no event observed")
	}
}
