// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides an in-memory fake implementing store.Store so
// the compiler, status/action engines, execution-plan builder and
// submission orchestrator can be exercised in tests without a running
// Torc server.
package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/store"
)

// FakeStore is a single-process, mutex-guarded implementation of
// store.Store backed by plain Go maps. It is not a performance stand-in;
// it exists purely to give the core something real to read and write to
// in tests, including the two atomic primitives the real store
// must expose.
type FakeStore struct {
	mu sync.Mutex

	nextID int64

	workflows map[int64]*model.Workflow
	jobs      map[int64]*model.Job
	files     map[int64]*model.File
	userData  map[int64]*model.UserData
	resources map[int64]*model.ResourceRequirements
	schedulers map[int64]*model.Scheduler
	failureHandlers map[int64]*model.FailureHandler
	scheduledNodes map[int64]*model.ScheduledComputeNode
	computeNodes map[int64]*model.ComputeNode
	results   map[int64]*model.Result
	events    map[int64]*model.Event
	actions   map[int64]*model.WorkflowAction

	jobDeps  []model.JobDependency
	jobFiles []model.JobFile
	jobUD    []model.JobUserData

	streams []chan model.Event
}

// NewFakeStore creates an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		workflows: make(map[int64]*model.Workflow),
		jobs:      make(map[int64]*model.Job),
		files:     make(map[int64]*model.File),
		userData:  make(map[int64]*model.UserData),
		resources: make(map[int64]*model.ResourceRequirements),
		schedulers: make(map[int64]*model.Scheduler),
		failureHandlers: make(map[int64]*model.FailureHandler),
		scheduledNodes: make(map[int64]*model.ScheduledComputeNode),
		computeNodes: make(map[int64]*model.ComputeNode),
		results:   make(map[int64]*model.Result),
		events:    make(map[int64]*model.Event),
		actions:   make(map[int64]*model.WorkflowAction),
	}
}

func (s *FakeStore) allocID() int64 {
	s.nextID++
	return s.nextID
}

// --- store.Store ---

func (s *FakeStore) Workflows() store.WorkflowStore { return (*fakeWorkflows)(s) }
func (s *FakeStore) Jobs() store.JobStore           { return (*fakeJobs)(s) }
func (s *FakeStore) Files() store.FileStore         { return (*fakeFiles)(s) }
func (s *FakeStore) UserData() store.UserDataStore  { return (*fakeUserData)(s) }
func (s *FakeStore) ResourceRequirements() store.ResourceRequirementsStore {
	return (*fakeResources)(s)
}
func (s *FakeStore) Schedulers() store.SchedulerStore { return (*fakeSchedulers)(s) }
func (s *FakeStore) FailureHandlers() store.FailureHandlerStore {
	return (*fakeFailureHandlers)(s)
}
func (s *FakeStore) ScheduledComputeNodes() store.ScheduledComputeNodeStore {
	return (*fakeScheduledNodes)(s)
}
func (s *FakeStore) ComputeNodes() store.ComputeNodeStore { return (*fakeComputeNodes)(s) }
func (s *FakeStore) Results() store.ResultStore           { return (*fakeResults)(s) }
func (s *FakeStore) Events() store.EventStore             { return (*fakeEvents)(s) }
func (s *FakeStore) Dependencies() store.DependencyViewStore {
	return (*fakeDependencies)(s)
}
func (s *FakeStore) Actions() store.ActionStore { return (*fakeActions)(s) }
func (s *FakeStore) Health() store.HealthStore  { return (*fakeHealth)(s) }

// --- Workflows ---

type fakeWorkflows FakeStore

func (f *fakeWorkflows) Create(_ context.Context, w *model.Workflow) (int64, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocID()
	w.ID = id
	cp := *w
	s.workflows[id] = &cp
	return id, nil
}

func (f *fakeWorkflows) Get(_ context.Context, id int64) (*model.Workflow, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, errors.FromHTTPStatus("workflows.get", 404, "workflow not found")
	}
	cp := *w
	return &cp, nil
}

func (f *fakeWorkflows) Update(_ context.Context, w *model.Workflow) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[w.ID]; !ok {
		return errors.FromHTTPStatus("workflows.update", 404, "workflow not found")
	}
	cp := *w
	s.workflows[w.ID] = &cp
	return nil
}

func (f *fakeWorkflows) List(_ context.Context, owner string, opts store.ListOptions) (store.ListResult[model.Workflow], error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []model.Workflow
	for _, w := range s.workflows {
		if owner == "" || w.Owner == owner {
			all = append(all, *w)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return paginate(all, opts), nil
}

func (f *fakeWorkflows) Delete(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workflows, id)
	for jid, j := range s.jobs {
		if j.WorkflowID == id {
			delete(s.jobs, jid)
		}
	}
	for fid, file := range s.files {
		if file.WorkflowID == id {
			delete(s.files, fid)
		}
	}
	for uid, ud := range s.userData {
		if ud.WorkflowID == id {
			delete(s.userData, uid)
		}
	}
	for rid, r := range s.resources {
		if r.WorkflowID == id {
			delete(s.resources, rid)
		}
	}
	for scid, sc := range s.schedulers {
		if sc.WorkflowID == id {
			delete(s.schedulers, scid)
		}
	}
	for fhid, fh := range s.failureHandlers {
		if fh.WorkflowID == id {
			delete(s.failureHandlers, fhid)
		}
	}
	for aid, a := range s.actions {
		if a.WorkflowID == id {
			delete(s.actions, aid)
		}
	}
	kept := s.jobDeps[:0]
	for _, d := range s.jobDeps {
		if d.WorkflowID != id {
			kept = append(kept, d)
		}
	}
	s.jobDeps = kept
	keptF := s.jobFiles[:0]
	for _, jf := range s.jobFiles {
		if jf.WorkflowID != id {
			keptF = append(keptF, jf)
		}
	}
	s.jobFiles = keptF
	keptU := s.jobUD[:0]
	for _, ju := range s.jobUD {
		if ju.WorkflowID != id {
			keptU = append(keptU, ju)
		}
	}
	s.jobUD = keptU
	return nil
}

func (f *fakeWorkflows) Cancel(_ context.Context, id int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workflows[id]
	if !ok {
		return errors.FromHTTPStatus("workflows.cancel", 404, "workflow not found")
	}
	w.Canceled = true
	return nil
}

func (f *fakeWorkflows) IsComplete(_ context.Context, id int64) (bool, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.WorkflowID != id {
			continue
		}
		if !j.Status.IsTerminal() {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeWorkflows) IsUninitialized(_ context.Context, id int64) (bool, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.WorkflowID != id {
			continue
		}
		if j.Status != model.JobUninitialized {
			return false, nil
		}
	}
	return true, nil
}

func (f *fakeWorkflows) GetStatus(_ context.Context, id int64) (map[int64]model.JobStatus, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]model.JobStatus)
	for _, j := range s.jobs {
		if j.WorkflowID == id {
			out[j.ID] = j.Status
		}
	}
	return out, nil
}

func (f *fakeWorkflows) UpdateStatus(_ context.Context, _ int64, jobID int64, status model.JobStatus) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return errors.FromHTTPStatus("workflows.update_status", 404, "job not found")
	}
	j.Status = status
	return nil
}

func (f *fakeWorkflows) ResetStatus(_ context.Context, id int64, failedOnly bool) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.WorkflowID != id {
			continue
		}
		if failedOnly && j.Status != model.JobTerminated && j.Status != model.JobCanceled {
			continue
		}
		j.Status = model.JobUninitialized
		j.RetryCount = 0
	}
	return nil
}

func (f *fakeWorkflows) ResetJobStatus(_ context.Context, _ int64, jobID int64) error {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return errors.FromHTTPStatus("workflows.reset_job_status", 404, "job not found")
	}
	j.Status = model.JobUninitialized
	return nil
}

func (f *fakeWorkflows) GetActions(_ context.Context, id int64) ([]model.WorkflowAction, error) {
	s := (*FakeStore)(f)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WorkflowAction
	for _, a := range s.actions {
		if a.WorkflowID == id {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func paginate[T any](all []T, opts store.ListOptions) store.ListResult[T] {
	total := len(all)
	offset := opts.Offset
	limit := opts.Limit
	if limit <= 0 {
		limit = total
	}
	if opts.ReverseSort {
		reversed := make([]T, total)
		for i, v := range all {
			reversed[total-1-i] = v
		}
		all = reversed
	}
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	items := append([]T{}, all[offset:end]...)
	return store.ListResult[T]{Items: items, HasMore: end < total, TotalCount: total}
}
