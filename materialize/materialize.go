// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package materialize implements the materialiser: it takes a
// validated resolve.ResolvedSpec and writes it to the store as a new
// Workflow, in a fixed creation order so that every
// row a later step references (a job's resource_requirements_name, a
// workflow_action's job_ids) already exists by the time it is written.
// Any failure rolls the whole workflow back by deleting it; the core
// never leaves a partially materialised workflow behind.
package materialize

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/config"
	"github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/resolve"
	"github.com/NREL/torc/spec"
	"github.com/NREL/torc/store"
	"github.com/NREL/torc/validate"
)

// jobBatchSize is the maximum number of Job rows sent to the store in a
// single Create call.
const jobBatchSize = 1000

// Materialize writes rs to st as a new workflow owned by owner,
// following the ordered-creation protocol above, and returns the new
// workflow's id. When opts.DryRun is set, it runs the structural
// validation CollectIssues would also run but writes nothing and
// returns id 0.
func Materialize(ctx context.Context, st store.Store, rs *resolve.ResolvedSpec, owner string, opts config.WorkflowOptions) (int64, error) {
	if opts.DryRun {
		if err := validate.Validate(rs, validate.Options{SkipChecks: opts.SkipChecks}); err != nil {
			return 0, err
		}
		return 0, nil
	}

	w := &model.Workflow{
		Name:        rs.Name,
		Owner:       owner,
		Description: rs.Description,
	}
	if opts.EnableResourceMonitoring {
		w.Monitor = &model.ResourceMonitorConfig{
			Granularity:   model.ResourceMonitorGranularity(opts.ResourceMonitorGranularity),
			PeriodSeconds: opts.ResourceMonitorPeriodSeconds,
		}
	}

	workflowID, err := st.Workflows().Create(ctx, w)
	if err != nil {
		return 0, errors.MaterialiseError("create_workflow", err)
	}

	if err := materializeBody(ctx, st, workflowID, rs); err != nil {
		_ = st.Workflows().Delete(ctx, workflowID)
		return 0, err
	}

	return workflowID, nil
}

func materializeBody(ctx context.Context, st store.Store, workflowID int64, rs *resolve.ResolvedSpec) error {
	// Resource requirements, schedulers and failure handlers are referenced
	// by name (model.Job.ResourceRequirementsName etc.), not by id, so
	// their materialised rows need no id map threaded further down the
	// pipeline; only their existence matters.
	if _, err := materializeResources(ctx, st, workflowID, rs.ResourceRequirements); err != nil {
		return errors.MaterialiseError("resource_requirements", err)
	}
	if _, err := materializeSchedulers(ctx, st, workflowID, rs.SlurmSchedulers); err != nil {
		return errors.MaterialiseError("schedulers", err)
	}
	if _, err := materializeFailureHandlers(ctx, st, workflowID, rs.FailureHandlers); err != nil {
		return errors.MaterialiseError("failure_handlers", err)
	}

	userDataIDs, err := materializeUserData(ctx, st, workflowID, rs.UserData)
	if err != nil {
		return errors.MaterialiseError("user_data", err)
	}

	fileIDs, err := materializeFiles(ctx, st, workflowID, rs.Files)
	if err != nil {
		return errors.MaterialiseError("files", err)
	}

	jobIDs, err := materializeJobs(ctx, st, workflowID, rs.Jobs)
	if err != nil {
		return errors.MaterialiseError("jobs", err)
	}

	if err := materializeEdges(ctx, st, workflowID, rs, jobIDs, fileIDs, userDataIDs); err != nil {
		return errors.MaterialiseError("relationships", err)
	}

	if err := materializeActions(ctx, st, workflowID, rs.WorkflowActions, jobIDs); err != nil {
		return errors.MaterialiseError("workflow_actions", err)
	}

	return nil
}

func materializeResources(ctx context.Context, st store.Store, workflowID int64, specs []spec.ResourceRequirementsSpec) (map[string]int64, error) {
	ids := make(map[string]int64, len(specs))
	for _, r := range specs {
		row := &model.ResourceRequirements{
			Name:     r.Name,
			NumCPUs:  r.NumCPUs,
			NumGPUs:  r.NumGPUs,
			NumNodes: r.NumNodes,
			Memory:   r.Memory,
			Runtime:  r.Runtime,
		}
		id, err := st.ResourceRequirements().Create(ctx, workflowID, row)
		if err != nil {
			return nil, err
		}
		ids[r.Name] = id
	}
	return ids, nil
}

func materializeSchedulers(ctx context.Context, st store.Store, workflowID int64, specs []spec.SchedulerSpec) (map[string]int64, error) {
	ids := make(map[string]int64, len(specs))
	for _, sc := range specs {
		row := &model.Scheduler{
			Name:      sc.Name,
			Account:   sc.Account,
			Nodes:     sc.Nodes,
			Walltime:  sc.Walltime,
			Partition: sc.Partition,
			QOS:       sc.QOS,
			Memory:    sc.Memory,
			Gres:      sc.Gres,
			Tmp:       sc.Tmp,
			Extra:     sc.Extra,
		}
		id, err := st.Schedulers().Create(ctx, workflowID, row)
		if err != nil {
			return nil, err
		}
		ids[sc.Name] = id
	}
	return ids, nil
}

func materializeFailureHandlers(ctx context.Context, st store.Store, workflowID int64, specs []spec.FailureHandlerSpec) (map[string]int64, error) {
	ids := make(map[string]int64, len(specs))
	for _, h := range specs {
		row := &model.FailureHandler{
			Name:               h.Name,
			MaxRetries:         h.MaxRetries,
			RetryOnReturnCodes: h.RetryOnReturnCodes,
		}
		id, err := st.FailureHandlers().Create(ctx, workflowID, row)
		if err != nil {
			return nil, err
		}
		ids[h.Name] = id
	}
	return ids, nil
}

func materializeUserData(ctx context.Context, st store.Store, workflowID int64, specs []spec.UserDataSpec) (map[string]int64, error) {
	ids := make(map[string]int64, len(specs))
	for _, u := range specs {
		raw, err := json.Marshal(u.Data)
		if err != nil {
			return nil, err
		}
		row := &model.UserData{
			Name:        u.Name,
			Data:        raw,
			IsEphemeral: u.IsEphemeral,
		}
		id, err := st.UserData().Create(ctx, workflowID, row)
		if err != nil {
			return nil, err
		}
		ids[u.Name] = id
	}
	return ids, nil
}

func materializeFiles(ctx context.Context, st store.Store, workflowID int64, specs []spec.FileSpec) (map[string]int64, error) {
	ids := make(map[string]int64, len(specs))
	for _, f := range specs {
		row := &model.File{
			Name: f.Name,
			Path: f.Path,
		}
		id, err := st.Files().Create(ctx, workflowID, row)
		if err != nil {
			return nil, err
		}
		ids[f.Name] = id
	}
	return ids, nil
}

func materializeJobs(ctx context.Context, st store.Store, workflowID int64, jobs []resolve.ResolvedJob) (map[string]int64, error) {
	ids := make(map[string]int64, len(jobs))

	for start := 0; start < len(jobs); start += jobBatchSize {
		end := start + jobBatchSize
		if end > len(jobs) {
			end = len(jobs)
		}
		batch := make([]model.Job, 0, end-start)
		for _, rj := range jobs[start:end] {
			batch = append(batch, model.Job{
				Name:                     rj.Name,
				Command:                  rj.Command,
				InvocationScript:         rj.InvocationScript,
				CancelOnBlockingFailure:  rj.CancelOnBlockingFailure,
				SupportsTermination:      rj.SupportsTermination,
				ResourceRequirementsName: rj.ResourceRequirements,
				SchedulerName:            rj.Scheduler,
				FailureHandlerName:       rj.FailureHandler,
				Status:                   model.JobUninitialized,
			})
		}
		batchIDs, err := st.Jobs().Create(ctx, workflowID, batch)
		if err != nil {
			return nil, err
		}
		for i, id := range batchIDs {
			ids[jobs[start+i].Name] = id
		}
	}

	return ids, nil
}

// materializeEdges writes the relationship rows in the resolver's
// deterministic lexicographic order:
// dependencies first, then job-file edges, then job-user-data edges.
func materializeEdges(ctx context.Context, st store.Store, workflowID int64, rs *resolve.ResolvedSpec, jobIDs, fileIDs, userDataIDs map[string]int64) error {
	deps := st.Dependencies()

	for _, e := range rs.JobDependencies {
		err := deps.CreateJobDependency(ctx, model.JobDependency{
			WorkflowID:   workflowID,
			BlockerJobID: jobIDs[e.Blocker],
			BlockedJobID: jobIDs[e.Blocked],
		})
		if err != nil {
			return err
		}
	}
	for _, e := range rs.JobFiles {
		err := deps.CreateJobFileRelationship(ctx, model.JobFile{
			WorkflowID: workflowID,
			JobID:      jobIDs[e.Job],
			FileID:     fileIDs[e.File],
			Role:       e.Role,
		})
		if err != nil {
			return err
		}
	}
	for _, e := range rs.JobUserData {
		err := deps.CreateJobUserDataRelationship(ctx, model.JobUserData{
			WorkflowID: workflowID,
			JobID:      jobIDs[e.Job],
			UserDataID: userDataIDs[e.UserData],
			Role:       e.Role,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func materializeActions(ctx context.Context, st store.Store, workflowID int64, actions []resolve.ResolvedWorkflowAction, jobIDs map[string]int64) error {
	for _, a := range actions {
		jids := make([]int64, 0, len(a.JobNames))
		for _, jn := range a.JobNames {
			jids = append(jids, jobIDs[jn])
		}
		sort.Slice(jids, func(i, j int) bool { return jids[i] < jids[j] })

		mode := model.AllocationMode(a.AllocationMode)
		if mode == "" {
			mode = model.AllocationNxOne
		}

		row := &model.WorkflowAction{
			TriggerType:      model.TriggerType(a.TriggerType),
			ActionType:       model.ActionType(a.ActionType),
			RequiredTriggers: a.RequiredTriggers,
			JobIDs:           jids,
			SchedulerName:    a.Scheduler,
			NumAllocations:   a.NumAllocations,
			AllocationMode:   mode,
		}
		if _, err := st.Actions().Create(ctx, workflowID, row); err != nil {
			return err
		}
	}
	return nil
}
