// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"context"
	"regexp"
	"sort"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/store"
)

// --- Jobs ---

type fakeJobs FakeStore

func (f *fakeJobs) Create(_ context.Context, workflowID int64, jobs []model.Job) ([]int64, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, len(jobs))
	for i := range jobs {
		id := s.allocID()
		j := jobs[i]
		j.ID = id
		j.WorkflowID = workflowID
		if j.Status == "" {
			j.Status = model.JobUninitialized
		}
		s.jobs[id] = &j
		ids[i] = id
	}
	return ids, nil
}

func (f *fakeJobs) Get(_ context.Context, id int64) (*model.Job, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.FromHTTPStatus("jobs.get", 404, "job not found")
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobs) List(_ context.Context, workflowID int64, filter store.JobListFilter, opts store.ListOptions) (store.ListResult[model.Job], error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Job
	for _, j := range s.jobs {
		if j.WorkflowID != workflowID {
			continue
		}
		if filter.HasStatus && j.Status != filter.Status {
			continue
		}
		if filter.HasUpstreamJobID {
			blocked := false
			for _, d := range s.jobDeps {
				if d.BlockerJobID == filter.UpstreamJobID && d.BlockedJobID == j.ID {
					blocked = true
					break
				}
			}
			if !blocked {
				continue
			}
		}
		if filter.HasNeedsFileID {
			needs := false
			for _, jf := range s.jobFiles {
				if jf.FileID == filter.NeedsFileID && jf.JobID == j.ID && jf.Role == model.JobFileConsumer {
					needs = true
					break
				}
			}
			if !needs {
				continue
			}
		}
		all = append(all, *j)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, opts), nil
}

func (f *fakeJobs) Update(_ context.Context, j *model.Job) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; !ok {
		return errors.FromHTTPStatus("jobs.update", 404, "job not found")
	}
	cp := *j
	s.jobs[j.ID] = &cp
	return nil
}

func (f *fakeJobs) Delete(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (f *fakeJobs) Cancel(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return errors.FromHTTPStatus("jobs.cancel", 404, "job not found")
	}
	j.Status = model.JobCanceled
	return nil
}

func (f *fakeJobs) Terminate(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return errors.FromHTTPStatus("jobs.terminate", 404, "job not found")
	}
	j.Status = model.JobTerminated
	return nil
}

func (f *fakeJobs) Retry(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return errors.FromHTTPStatus("jobs.retry", 404, "job not found")
	}
	j.Status = model.JobUninitialized
	j.RetryCount++
	return nil
}

func (f *fakeJobs) ClaimNextReady(_ context.Context, workflowID int64, _ string) (*model.Job, bool, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for id, j := range s.jobs {
		if j.WorkflowID == workflowID && j.Status == model.JobReady {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, false, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	j := s.jobs[ids[0]]
	j.Status = model.JobSubmitting
	cp := *j
	return &cp, true, nil
}

func (f *fakeJobs) Complete(_ context.Context, jobID int64, result *model.Result) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return errors.FromHTTPStatus("jobs.complete", 404, "job not found")
	}
	id := s.allocID()
	cp := *result
	cp.ID = id
	cp.JobID = jobID
	cp.WorkflowID = j.WorkflowID
	cp.RunID = j.RunID
	s.results[id] = &cp
	return nil
}

// --- Files ---

type fakeFiles FakeStore

func (f *fakeFiles) Create(_ context.Context, workflowID int64, file *model.File) (int64, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	cp := *file
	cp.ID = id
	cp.WorkflowID = workflowID
	s.files[id] = &cp
	return id, nil
}

func (f *fakeFiles) Get(_ context.Context, id int64) (*model.File, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	file, ok := s.files[id]
	if !ok {
		return nil, errors.FromHTTPStatus("files.get", 404, "file not found")
	}
	cp := *file
	return &cp, nil
}

func (f *fakeFiles) List(_ context.Context, workflowID int64, filter store.FileListFilter, opts store.ListOptions) (store.ListResult[model.File], error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.File
	for _, file := range s.files {
		if file.WorkflowID != workflowID {
			continue
		}
		if filter.Name != "" && file.Name != filter.Name {
			continue
		}
		if filter.HasProducedByJobID {
			produced := false
			for _, jf := range s.jobFiles {
				if jf.FileID == file.ID && jf.JobID == filter.ProducedByJobID && jf.Role == model.JobFileProducer {
					produced = true
					break
				}
			}
			if !produced {
				continue
			}
		}
		all = append(all, *file)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginate(all, opts), nil
}

func (f *fakeFiles) Update(_ context.Context, file *model.File) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[file.ID]; !ok {
		return errors.FromHTTPStatus("files.update", 404, "file not found")
	}
	cp := *file
	s.files[file.ID] = &cp
	return nil
}

func (f *fakeFiles) Delete(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, id)
	return nil
}

func (f *fakeFiles) ListRequiredExisting(_ context.Context, workflowID int64) ([]model.File, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	produced := make(map[int64]bool)
	for _, jf := range s.jobFiles {
		if jf.Role == model.JobFileProducer {
			produced[jf.FileID] = true
		}
	}
	var out []model.File
	for _, file := range s.files {
		if file.WorkflowID == workflowID && !produced[file.ID] {
			out = append(out, *file)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- UserData ---

type fakeUserData FakeStore

func (f *fakeUserData) Create(_ context.Context, workflowID int64, ud *model.UserData) (int64, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	cp := *ud
	cp.ID = id
	cp.WorkflowID = workflowID
	now := store.Now()
	cp.UpdatedAt = &now
	s.userData[id] = &cp
	return id, nil
}

func (f *fakeUserData) Get(_ context.Context, id int64) (*model.UserData, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	ud, ok := s.userData[id]
	if !ok {
		return nil, errors.FromHTTPStatus("user_data.get", 404, "user data not found")
	}
	cp := *ud
	return &cp, nil
}

func (f *fakeUserData) List(_ context.Context, workflowID int64, filter store.UserDataListFilter, opts store.ListOptions) (store.ListResult[model.UserData], error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.UserData
	for _, ud := range s.userData {
		if ud.WorkflowID != workflowID {
			continue
		}
		if filter.Name != "" && ud.Name != filter.Name {
			continue
		}
		if filter.HasEphemeral && ud.IsEphemeral != filter.Ephemeral {
			continue
		}
		all = append(all, *ud)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginate(all, opts), nil
}

func (f *fakeUserData) Update(_ context.Context, ud *model.UserData) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.userData[ud.ID]; !ok {
		return errors.FromHTTPStatus("user_data.update", 404, "user data not found")
	}
	cp := *ud
	now := store.Now()
	cp.UpdatedAt = &now
	s.userData[ud.ID] = &cp
	return nil
}

func (f *fakeUserData) Delete(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.userData, id)
	return nil
}

func (f *fakeUserData) DeleteAll(_ context.Context, workflowID int64, ephemeralOnly bool) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ud := range s.userData {
		if ud.WorkflowID != workflowID {
			continue
		}
		if ephemeralOnly && !ud.IsEphemeral {
			continue
		}
		delete(s.userData, id)
	}
	return nil
}

func (f *fakeUserData) ListMissing(_ context.Context, workflowID int64) ([]model.UserData, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	produced := make(map[int64]bool)
	for _, ju := range s.jobUD {
		if ju.Role == model.JobUserDataProducer {
			produced[ju.UserDataID] = true
		}
	}
	var out []model.UserData
	for _, ud := range s.userData {
		if ud.WorkflowID == workflowID && len(ud.Data) == 0 && !produced[ud.ID] {
			out = append(out, *ud)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- ResourceRequirements ---

type fakeResources FakeStore

func (f *fakeResources) Create(_ context.Context, workflowID int64, r *model.ResourceRequirements) (int64, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	cp := *r
	cp.ID = id
	cp.WorkflowID = workflowID
	s.resources[id] = &cp
	return id, nil
}

func (f *fakeResources) Get(_ context.Context, id int64) (*model.ResourceRequirements, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[id]
	if !ok {
		return nil, errors.FromHTTPStatus("resource_requirements.get", 404, "resource requirements not found")
	}
	cp := *r
	return &cp, nil
}

func (f *fakeResources) List(_ context.Context, workflowID int64, opts store.ListOptions) (store.ListResult[model.ResourceRequirements], error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.ResourceRequirements
	for _, r := range s.resources {
		if r.WorkflowID == workflowID {
			all = append(all, *r)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginate(all, opts), nil
}

func (f *fakeResources) Update(_ context.Context, r *model.ResourceRequirements) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[r.ID]; !ok {
		return errors.FromHTTPStatus("resource_requirements.update", 404, "not found")
	}
	cp := *r
	s.resources[r.ID] = &cp
	return nil
}

func (f *fakeResources) Delete(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resources, id)
	return nil
}

// --- Schedulers ---

type fakeSchedulers FakeStore

func (f *fakeSchedulers) Create(_ context.Context, workflowID int64, sc *model.Scheduler) (int64, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	cp := *sc
	cp.ID = id
	cp.WorkflowID = workflowID
	s.schedulers[id] = &cp
	return id, nil
}

func (f *fakeSchedulers) Get(_ context.Context, id int64) (*model.Scheduler, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedulers[id]
	if !ok {
		return nil, errors.FromHTTPStatus("schedulers.get", 404, "scheduler not found")
	}
	cp := *sc
	return &cp, nil
}

func (f *fakeSchedulers) List(_ context.Context, workflowID int64, opts store.ListOptions) (store.ListResult[model.Scheduler], error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Scheduler
	for _, sc := range s.schedulers {
		if sc.WorkflowID == workflowID {
			all = append(all, *sc)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginate(all, opts), nil
}

func (f *fakeSchedulers) Update(_ context.Context, sc *model.Scheduler) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedulers[sc.ID]; !ok {
		return errors.FromHTTPStatus("schedulers.update", 404, "not found")
	}
	cp := *sc
	s.schedulers[sc.ID] = &cp
	return nil
}

func (f *fakeSchedulers) Delete(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.schedulers, id)
	return nil
}

// --- FailureHandlers ---

type fakeFailureHandlers FakeStore

func (f *fakeFailureHandlers) Create(_ context.Context, workflowID int64, fh *model.FailureHandler) (int64, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	cp := *fh
	cp.ID = id
	cp.WorkflowID = workflowID
	s.failureHandlers[id] = &cp
	return id, nil
}

func (f *fakeFailureHandlers) Get(_ context.Context, id int64) (*model.FailureHandler, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	fh, ok := s.failureHandlers[id]
	if !ok {
		return nil, errors.FromHTTPStatus("failure_handlers.get", 404, "not found")
	}
	cp := *fh
	return &cp, nil
}

func (f *fakeFailureHandlers) List(_ context.Context, workflowID int64, opts store.ListOptions) (store.ListResult[model.FailureHandler], error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.FailureHandler
	for _, fh := range s.failureHandlers {
		if fh.WorkflowID == workflowID {
			all = append(all, *fh)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return paginate(all, opts), nil
}

func (f *fakeFailureHandlers) Delete(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failureHandlers, id)
	return nil
}

// --- ScheduledComputeNodes ---

type fakeScheduledNodes FakeStore

func (f *fakeScheduledNodes) Create(_ context.Context, workflowID int64, n *model.ScheduledComputeNode) (int64, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	cp := *n
	cp.ID = id
	cp.WorkflowID = workflowID
	s.scheduledNodes[id] = &cp
	return id, nil
}

func (f *fakeScheduledNodes) List(_ context.Context, workflowID int64, filter store.ScheduledComputeNodeListFilter, opts store.ListOptions) (store.ListResult[model.ScheduledComputeNode], error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.ScheduledComputeNode
	for _, n := range s.scheduledNodes {
		if n.WorkflowID != workflowID {
			continue
		}
		if filter.HasSchedulerConfigID && n.SchedulerConfigID != filter.SchedulerConfigID {
			continue
		}
		if filter.HasStatus && n.Status != filter.Status {
			continue
		}
		all = append(all, *n)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, opts), nil
}

func (f *fakeScheduledNodes) Update(_ context.Context, n *model.ScheduledComputeNode) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scheduledNodes[n.ID]; !ok {
		return errors.FromHTTPStatus("scheduled_compute_nodes.update", 404, "not found")
	}
	cp := *n
	s.scheduledNodes[n.ID] = &cp
	return nil
}

// --- ComputeNodes ---

type fakeComputeNodes FakeStore

func (f *fakeComputeNodes) Create(_ context.Context, workflowID int64, n *model.ComputeNode) (int64, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	cp := *n
	cp.ID = id
	cp.WorkflowID = workflowID
	s.computeNodes[id] = &cp
	return id, nil
}

func (f *fakeComputeNodes) Get(_ context.Context, id int64) (*model.ComputeNode, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.computeNodes[id]
	if !ok {
		return nil, errors.FromHTTPStatus("compute_nodes.get", 404, "not found")
	}
	cp := *n
	return &cp, nil
}

func (f *fakeComputeNodes) List(_ context.Context, workflowID int64, opts store.ListOptions) (store.ListResult[model.ComputeNode], error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.ComputeNode
	for _, n := range s.computeNodes {
		if n.WorkflowID == workflowID {
			all = append(all, *n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, opts), nil
}

// --- Results ---

type fakeResults FakeStore

func (f *fakeResults) Get(_ context.Context, id int64) (*model.Result, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return nil, errors.FromHTTPStatus("results.get", 404, "not found")
	}
	cp := *r
	return &cp, nil
}

func (f *fakeResults) List(_ context.Context, workflowID int64, filter store.ResultListFilter, opts store.ListOptions) (store.ListResult[model.Result], error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Result
	for _, r := range s.results {
		if r.WorkflowID != workflowID {
			continue
		}
		if filter.HasJobID && r.JobID != filter.JobID {
			continue
		}
		if filter.HasReturnCode && r.ReturnCode != filter.ReturnCode {
			continue
		}
		all = append(all, *r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, opts), nil
}

func (f *fakeResults) Delete(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, id)
	return nil
}

// --- Events ---

type fakeEvents FakeStore

func (f *fakeEvents) Create(_ context.Context, workflowID int64, e *model.Event) (int64, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	id := s.allocID()
	cp := *e
	cp.ID = id
	cp.WorkflowID = workflowID
	s.events[id] = &cp
	streams := append([]chan model.Event{}, s.streams...)
	s.mu.Unlock()
	for _, ch := range streams {
		select {
		case ch <- cp:
		default:
		}
	}
	return id, nil
}

func (f *fakeEvents) GetLatest(_ context.Context, workflowID int64) (*model.Event, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.Event
	for _, e := range s.events {
		if e.WorkflowID != workflowID {
			continue
		}
		if latest == nil || e.TimestampMillis > latest.TimestampMillis {
			latest = e
		}
	}
	if latest == nil {
		return nil, errors.FromHTTPStatus("events.get_latest", 404, "no events")
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeEvents) List(_ context.Context, workflowID int64, filter store.EventListFilter, opts store.ListOptions) (store.ListResult[model.Event], error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Event
	for _, e := range s.events {
		if e.WorkflowID != workflowID {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if filter.HasAfterTimestamp && e.TimestampMillis <= filter.AfterTimestamp {
			continue
		}
		all = append(all, *e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].TimestampMillis < all[j].TimestampMillis })
	return paginate(all, opts), nil
}

func (f *fakeEvents) Delete(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
	return nil
}

func (f *fakeEvents) Stream(ctx context.Context, workflowID int64, minSeverity model.Severity) (<-chan model.Event, error) {
	s := (*FakeStore)(f)
	raw := make(chan model.Event, 64)
	filtered := make(chan model.Event, 64)
	s.mu.Lock()
	s.streams = append(s.streams, raw)
	s.mu.Unlock()
	go func() {
		defer close(filtered)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-raw:
				if !ok {
					return
				}
				if e.WorkflowID != workflowID || !e.Severity.AtLeast(minSeverity) {
					continue
				}
				select {
				case filtered <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return filtered, nil
}

// --- Dependencies ---

type fakeDependencies FakeStore

func (f *fakeDependencies) ListJobDependencies(_ context.Context, workflowID int64) ([]model.JobDependency, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.JobDependency
	for _, d := range s.jobDeps {
		if d.WorkflowID == workflowID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDependencies) ListJobFileRelationships(_ context.Context, workflowID int64) ([]model.JobFile, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.JobFile
	for _, jf := range s.jobFiles {
		if jf.WorkflowID == workflowID {
			out = append(out, jf)
		}
	}
	return out, nil
}

func (f *fakeDependencies) ListJobUserDataRelationships(_ context.Context, workflowID int64) ([]model.JobUserData, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.JobUserData
	for _, ju := range s.jobUD {
		if ju.WorkflowID == workflowID {
			out = append(out, ju)
		}
	}
	return out, nil
}

func (f *fakeDependencies) CreateJobDependency(_ context.Context, d model.JobDependency) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobDeps = append(s.jobDeps, d)
	return nil
}

func (f *fakeDependencies) CreateJobFileRelationship(_ context.Context, jf model.JobFile) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if jf.Role == model.JobFileProducer {
		for _, existing := range s.jobFiles {
			if existing.FileID == jf.FileID && existing.Role == model.JobFileProducer && existing.JobID != jf.JobID {
				return errors.FromHTTPStatus("dependencies.create_job_file", 409, "file already has a producer")
			}
		}
	}
	s.jobFiles = append(s.jobFiles, jf)
	return nil
}

func (f *fakeDependencies) CreateJobUserDataRelationship(_ context.Context, ju model.JobUserData) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ju.Role == model.JobUserDataProducer {
		for _, existing := range s.jobUD {
			if existing.UserDataID == ju.UserDataID && existing.Role == model.JobUserDataProducer && existing.JobID != ju.JobID {
				return errors.FromHTTPStatus("dependencies.create_job_user_data", 409, "user data already has a producer")
			}
		}
	}
	s.jobUD = append(s.jobUD, ju)
	return nil
}

// --- Actions ---

type fakeActions FakeStore

func (f *fakeActions) Create(_ context.Context, workflowID int64, a *model.WorkflowAction) (int64, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	cp := *a
	cp.ID = id
	cp.WorkflowID = workflowID
	s.actions[id] = &cp
	return id, nil
}

func (f *fakeActions) Get(_ context.Context, id int64) (*model.WorkflowAction, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok {
		return nil, errors.FromHTTPStatus("actions.get", 404, "not found")
	}
	cp := *a
	return &cp, nil
}

func (f *fakeActions) List(_ context.Context, workflowID int64, opts store.ListOptions) (store.ListResult[model.WorkflowAction], error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.WorkflowAction
	for _, a := range s.actions {
		if a.WorkflowID == workflowID {
			all = append(all, *a)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, opts), nil
}

func (f *fakeActions) Update(_ context.Context, a *model.WorkflowAction) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.actions[a.ID]; !ok {
		return errors.FromHTTPStatus("actions.update", 404, "not found")
	}
	cp := *a
	s.actions[a.ID] = &cp
	return nil
}

func (f *fakeActions) Delete(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.actions, id)
	return nil
}

func (f *fakeActions) IncrementTriggerCount(_ context.Context, id int64) (*model.WorkflowAction, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok {
		return nil, errors.FromHTTPStatus("actions.increment_trigger_count", 404, "not found")
	}
	a.TriggerCount++
	cp := *a
	return &cp, nil
}

func (f *fakeActions) ClaimPending(_ context.Context, id int64) (*model.WorkflowAction, bool, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.actions[id]
	if !ok {
		return nil, false, errors.FromHTTPStatus("actions.claim_pending", 404, "not found")
	}
	if a.Executed || a.TriggerCount < a.RequiredTriggers {
		return nil, false, nil
	}
	a.Executed = true
	now := store.Now()
	a.ExecutedAt = &now
	cp := *a
	return &cp, true, nil
}

// --- Health ---

type fakeHealth FakeStore

func (f *fakeHealth) Ping(_ context.Context) error { return nil }

func (f *fakeHealth) Version(_ context.Context) (string, string, error) {
	return "dev", "dev", nil
}

// compilePattern compiles pattern with the same anchored-whole-name
// regex semantics the resolver uses. It is unexported and nothing in
// this package calls it.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}
