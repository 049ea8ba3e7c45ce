// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/store"
)

// --- Workflows ---

type workflowClient struct{ c *Client }

func (w *workflowClient) Create(ctx context.Context, wf *model.Workflow) (int64, error) {
	var resp idResponse
	if err := w.c.do(ctx, http.MethodPost, "/workflows", nil, wf, &resp); err != nil {
		return 0, err
	}
	wf.ID = resp.ID
	return resp.ID, nil
}

func (w *workflowClient) Get(ctx context.Context, id int64) (*model.Workflow, error) {
	var wf model.Workflow
	if err := w.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d", id), nil, nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (w *workflowClient) Update(ctx context.Context, wf *model.Workflow) error {
	return w.c.do(ctx, http.MethodPut, fmt.Sprintf("/workflows/%d", wf.ID), nil, wf, nil)
}

func (w *workflowClient) List(ctx context.Context, owner string, opts store.ListOptions) (store.ListResult[model.Workflow], error) {
	q := listQuery(opts)
	if owner != "" {
		q.Set("owner", owner)
	}
	var env listEnvelope[model.Workflow]
	if err := w.c.do(ctx, http.MethodGet, "/workflows", q, nil, &env); err != nil {
		return store.ListResult[model.Workflow]{}, err
	}
	return env.toResult(), nil
}

func (w *workflowClient) Delete(ctx context.Context, id int64) error {
	return w.c.do(ctx, http.MethodDelete, fmt.Sprintf("/workflows/%d", id), nil, nil, nil)
}

func (w *workflowClient) Cancel(ctx context.Context, id int64) error {
	return w.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/cancel", id), nil, nil, nil)
}

func (w *workflowClient) IsComplete(ctx context.Context, id int64) (bool, error) {
	var resp struct {
		IsComplete bool `json:"is_complete"`
	}
	err := w.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/is_complete", id), nil, nil, &resp)
	return resp.IsComplete, err
}

func (w *workflowClient) IsUninitialized(ctx context.Context, id int64) (bool, error) {
	var resp struct {
		IsUninitialized bool `json:"is_uninitialized"`
	}
	err := w.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/is_uninitialized", id), nil, nil, &resp)
	return resp.IsUninitialized, err
}

func (w *workflowClient) GetStatus(ctx context.Context, id int64) (map[int64]model.JobStatus, error) {
	var resp struct {
		Statuses map[string]model.JobStatus `json:"statuses"`
	}
	if err := w.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/status", id), nil, nil, &resp); err != nil {
		return nil, err
	}
	out := make(map[int64]model.JobStatus, len(resp.Statuses))
	for k, v := range resp.Statuses {
		jobID, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[jobID] = v
	}
	return out, nil
}

func (w *workflowClient) UpdateStatus(ctx context.Context, id, jobID int64, status model.JobStatus) error {
	body := map[string]model.JobStatus{"status": status}
	return w.c.do(ctx, http.MethodPut, fmt.Sprintf("/workflows/%d/jobs/%d/status", id, jobID), nil, body, nil)
}

func (w *workflowClient) ResetStatus(ctx context.Context, id int64, failedOnly bool) error {
	q := url.Values{}
	if failedOnly {
		q.Set("failed_only", "true")
	}
	return w.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/reset_status", id), q, nil, nil)
}

func (w *workflowClient) ResetJobStatus(ctx context.Context, id, jobID int64) error {
	return w.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/jobs/%d/reset_status", id, jobID), nil, nil, nil)
}

func (w *workflowClient) GetActions(ctx context.Context, id int64) ([]model.WorkflowAction, error) {
	var resp struct {
		Actions []model.WorkflowAction `json:"actions"`
	}
	err := w.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/actions", id), nil, nil, &resp)
	return resp.Actions, err
}

// --- Jobs ---

type jobClient struct{ c *Client }

func (j *jobClient) Create(ctx context.Context, workflowID int64, jobs []model.Job) ([]int64, error) {
	body := map[string]interface{}{"jobs": jobs}
	var resp struct {
		IDs []int64 `json:"ids"`
	}
	err := j.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/jobs", workflowID), nil, body, &resp)
	return resp.IDs, err
}

func (j *jobClient) Get(ctx context.Context, id int64) (*model.Job, error) {
	var job model.Job
	if err := j.c.do(ctx, http.MethodGet, fmt.Sprintf("/jobs/%d", id), nil, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (j *jobClient) List(ctx context.Context, workflowID int64, filter store.JobListFilter, opts store.ListOptions) (store.ListResult[model.Job], error) {
	q := listQuery(opts)
	if filter.HasStatus {
		q.Set("status", string(filter.Status))
	}
	if filter.HasNeedsFileID {
		q.Set("needs_file_id", strconv.FormatInt(filter.NeedsFileID, 10))
	}
	if filter.HasUpstreamJobID {
		q.Set("upstream_job_id", strconv.FormatInt(filter.UpstreamJobID, 10))
	}
	if filter.HasActiveComputeNodeID {
		q.Set("active_compute_node_id", strconv.FormatInt(filter.ActiveComputeNodeID, 10))
	}
	if filter.IncludeRelationships {
		q.Set("include_relationships", "true")
	}
	var env listEnvelope[model.Job]
	if err := j.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/jobs", workflowID), q, nil, &env); err != nil {
		return store.ListResult[model.Job]{}, err
	}
	return env.toResult(), nil
}

func (j *jobClient) Update(ctx context.Context, job *model.Job) error {
	return j.c.do(ctx, http.MethodPut, fmt.Sprintf("/jobs/%d", job.ID), nil, job, nil)
}

func (j *jobClient) Delete(ctx context.Context, id int64) error {
	return j.c.do(ctx, http.MethodDelete, fmt.Sprintf("/jobs/%d", id), nil, nil, nil)
}

func (j *jobClient) Cancel(ctx context.Context, id int64) error {
	return j.c.do(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/cancel", id), nil, nil, nil)
}

func (j *jobClient) Terminate(ctx context.Context, id int64) error {
	return j.c.do(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/terminate", id), nil, nil, nil)
}

func (j *jobClient) Retry(ctx context.Context, id int64) error {
	return j.c.do(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/retry", id), nil, nil, nil)
}

func (j *jobClient) ClaimNextReady(ctx context.Context, workflowID int64, workerID string) (*model.Job, bool, error) {
	body := map[string]string{"worker_id": workerID}
	var resp struct {
		Claimed bool       `json:"claimed"`
		Job     *model.Job `json:"job,omitempty"`
	}
	err := j.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/jobs/claim_next_ready", workflowID), nil, body, &resp)
	if err != nil {
		return nil, false, err
	}
	return resp.Job, resp.Claimed, nil
}

func (j *jobClient) Complete(ctx context.Context, jobID int64, result *model.Result) error {
	return j.c.do(ctx, http.MethodPost, fmt.Sprintf("/jobs/%d/complete", jobID), nil, result, nil)
}

// --- Files ---

type fileClient struct{ c *Client }

func (f *fileClient) Create(ctx context.Context, workflowID int64, file *model.File) (int64, error) {
	var resp idResponse
	if err := f.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/files", workflowID), nil, file, &resp); err != nil {
		return 0, err
	}
	file.ID = resp.ID
	return resp.ID, nil
}

func (f *fileClient) Get(ctx context.Context, id int64) (*model.File, error) {
	var file model.File
	if err := f.c.do(ctx, http.MethodGet, fmt.Sprintf("/files/%d", id), nil, nil, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func (f *fileClient) List(ctx context.Context, workflowID int64, filter store.FileListFilter, opts store.ListOptions) (store.ListResult[model.File], error) {
	q := listQuery(opts)
	if filter.HasProducedByJobID {
		q.Set("produced_by_job_id", strconv.FormatInt(filter.ProducedByJobID, 10))
	}
	if filter.Name != "" {
		q.Set("name", filter.Name)
	}
	if filter.Path != "" {
		q.Set("path", filter.Path)
	}
	if filter.HasIsOutput {
		q.Set("is_output", strconv.FormatBool(filter.IsOutput))
	}
	var env listEnvelope[model.File]
	if err := f.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/files", workflowID), q, nil, &env); err != nil {
		return store.ListResult[model.File]{}, err
	}
	return env.toResult(), nil
}

func (f *fileClient) Update(ctx context.Context, file *model.File) error {
	return f.c.do(ctx, http.MethodPut, fmt.Sprintf("/files/%d", file.ID), nil, file, nil)
}

func (f *fileClient) Delete(ctx context.Context, id int64) error {
	return f.c.do(ctx, http.MethodDelete, fmt.Sprintf("/files/%d", id), nil, nil, nil)
}

func (f *fileClient) ListRequiredExisting(ctx context.Context, workflowID int64) ([]model.File, error) {
	var resp struct {
		Files []model.File `json:"files"`
	}
	err := f.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/files/required_existing", workflowID), nil, nil, &resp)
	return resp.Files, err
}

// --- UserData ---

type userDataClient struct{ c *Client }

func (u *userDataClient) Create(ctx context.Context, workflowID int64, ud *model.UserData) (int64, error) {
	var resp idResponse
	if err := u.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/user_data", workflowID), nil, ud, &resp); err != nil {
		return 0, err
	}
	ud.ID = resp.ID
	return resp.ID, nil
}

func (u *userDataClient) Get(ctx context.Context, id int64) (*model.UserData, error) {
	var ud model.UserData
	if err := u.c.do(ctx, http.MethodGet, fmt.Sprintf("/user_data/%d", id), nil, nil, &ud); err != nil {
		return nil, err
	}
	return &ud, nil
}

func (u *userDataClient) List(ctx context.Context, workflowID int64, filter store.UserDataListFilter, opts store.ListOptions) (store.ListResult[model.UserData], error) {
	q := listQuery(opts)
	if filter.HasConsumerJobID {
		q.Set("consumer_job_id", strconv.FormatInt(filter.ConsumerJobID, 10))
	}
	if filter.HasProducerJobID {
		q.Set("producer_job_id", strconv.FormatInt(filter.ProducerJobID, 10))
	}
	if filter.Name != "" {
		q.Set("name", filter.Name)
	}
	if filter.HasEphemeral {
		q.Set("is_ephemeral", strconv.FormatBool(filter.Ephemeral))
	}
	var env listEnvelope[model.UserData]
	if err := u.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/user_data", workflowID), q, nil, &env); err != nil {
		return store.ListResult[model.UserData]{}, err
	}
	return env.toResult(), nil
}

func (u *userDataClient) Update(ctx context.Context, ud *model.UserData) error {
	return u.c.do(ctx, http.MethodPut, fmt.Sprintf("/user_data/%d", ud.ID), nil, ud, nil)
}

func (u *userDataClient) Delete(ctx context.Context, id int64) error {
	return u.c.do(ctx, http.MethodDelete, fmt.Sprintf("/user_data/%d", id), nil, nil, nil)
}

func (u *userDataClient) DeleteAll(ctx context.Context, workflowID int64, ephemeralOnly bool) error {
	q := url.Values{}
	if ephemeralOnly {
		q.Set("ephemeral_only", "true")
	}
	return u.c.do(ctx, http.MethodDelete, fmt.Sprintf("/workflows/%d/user_data", workflowID), q, nil, nil)
}

func (u *userDataClient) ListMissing(ctx context.Context, workflowID int64) ([]model.UserData, error) {
	var resp struct {
		UserData []model.UserData `json:"user_data"`
	}
	err := u.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/user_data/missing", workflowID), nil, nil, &resp)
	return resp.UserData, err
}

// --- ResourceRequirements ---

type resourceClient struct{ c *Client }

func (r *resourceClient) Create(ctx context.Context, workflowID int64, rr *model.ResourceRequirements) (int64, error) {
	var resp idResponse
	if err := r.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/resource_requirements", workflowID), nil, rr, &resp); err != nil {
		return 0, err
	}
	rr.ID = resp.ID
	return resp.ID, nil
}

func (r *resourceClient) Get(ctx context.Context, id int64) (*model.ResourceRequirements, error) {
	var rr model.ResourceRequirements
	if err := r.c.do(ctx, http.MethodGet, fmt.Sprintf("/resource_requirements/%d", id), nil, nil, &rr); err != nil {
		return nil, err
	}
	return &rr, nil
}

func (r *resourceClient) List(ctx context.Context, workflowID int64, opts store.ListOptions) (store.ListResult[model.ResourceRequirements], error) {
	var env listEnvelope[model.ResourceRequirements]
	if err := r.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/resource_requirements", workflowID), listQuery(opts), nil, &env); err != nil {
		return store.ListResult[model.ResourceRequirements]{}, err
	}
	return env.toResult(), nil
}

func (r *resourceClient) Update(ctx context.Context, rr *model.ResourceRequirements) error {
	return r.c.do(ctx, http.MethodPut, fmt.Sprintf("/resource_requirements/%d", rr.ID), nil, rr, nil)
}

func (r *resourceClient) Delete(ctx context.Context, id int64) error {
	return r.c.do(ctx, http.MethodDelete, fmt.Sprintf("/resource_requirements/%d", id), nil, nil, nil)
}

// --- Schedulers ---

type schedulerClient struct{ c *Client }

func (s *schedulerClient) Create(ctx context.Context, workflowID int64, sc *model.Scheduler) (int64, error) {
	var resp idResponse
	if err := s.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/slurm_schedulers", workflowID), nil, sc, &resp); err != nil {
		return 0, err
	}
	sc.ID = resp.ID
	return resp.ID, nil
}

func (s *schedulerClient) Get(ctx context.Context, id int64) (*model.Scheduler, error) {
	var sc model.Scheduler
	if err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/slurm_schedulers/%d", id), nil, nil, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *schedulerClient) List(ctx context.Context, workflowID int64, opts store.ListOptions) (store.ListResult[model.Scheduler], error) {
	var env listEnvelope[model.Scheduler]
	if err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/slurm_schedulers", workflowID), listQuery(opts), nil, &env); err != nil {
		return store.ListResult[model.Scheduler]{}, err
	}
	return env.toResult(), nil
}

func (s *schedulerClient) Update(ctx context.Context, sc *model.Scheduler) error {
	return s.c.do(ctx, http.MethodPut, fmt.Sprintf("/slurm_schedulers/%d", sc.ID), nil, sc, nil)
}

func (s *schedulerClient) Delete(ctx context.Context, id int64) error {
	return s.c.do(ctx, http.MethodDelete, fmt.Sprintf("/slurm_schedulers/%d", id), nil, nil, nil)
}

// --- FailureHandlers ---

type failureHandlerClient struct{ c *Client }

func (f *failureHandlerClient) Create(ctx context.Context, workflowID int64, fh *model.FailureHandler) (int64, error) {
	var resp idResponse
	if err := f.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/failure_handlers", workflowID), nil, fh, &resp); err != nil {
		return 0, err
	}
	fh.ID = resp.ID
	return resp.ID, nil
}

func (f *failureHandlerClient) Get(ctx context.Context, id int64) (*model.FailureHandler, error) {
	var fh model.FailureHandler
	if err := f.c.do(ctx, http.MethodGet, fmt.Sprintf("/failure_handlers/%d", id), nil, nil, &fh); err != nil {
		return nil, err
	}
	return &fh, nil
}

func (f *failureHandlerClient) List(ctx context.Context, workflowID int64, opts store.ListOptions) (store.ListResult[model.FailureHandler], error) {
	var env listEnvelope[model.FailureHandler]
	if err := f.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/failure_handlers", workflowID), listQuery(opts), nil, &env); err != nil {
		return store.ListResult[model.FailureHandler]{}, err
	}
	return env.toResult(), nil
}

func (f *failureHandlerClient) Delete(ctx context.Context, id int64) error {
	return f.c.do(ctx, http.MethodDelete, fmt.Sprintf("/failure_handlers/%d", id), nil, nil, nil)
}

// --- ScheduledComputeNodes ---

type scheduledNodeClient struct{ c *Client }

func (s *scheduledNodeClient) Create(ctx context.Context, workflowID int64, n *model.ScheduledComputeNode) (int64, error) {
	var resp idResponse
	if err := s.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/scheduled_compute_nodes", workflowID), nil, n, &resp); err != nil {
		return 0, err
	}
	n.ID = resp.ID
	return resp.ID, nil
}

func (s *scheduledNodeClient) List(ctx context.Context, workflowID int64, filter store.ScheduledComputeNodeListFilter, opts store.ListOptions) (store.ListResult[model.ScheduledComputeNode], error) {
	q := listQuery(opts)
	if filter.HasSchedulerID {
		q.Set("scheduler_id", strconv.FormatInt(filter.SchedulerID, 10))
	}
	if filter.HasSchedulerConfigID {
		q.Set("scheduler_config_id", strconv.FormatInt(filter.SchedulerConfigID, 10))
	}
	if filter.HasStatus {
		q.Set("status", string(filter.Status))
	}
	var env listEnvelope[model.ScheduledComputeNode]
	if err := s.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/scheduled_compute_nodes", workflowID), q, nil, &env); err != nil {
		return store.ListResult[model.ScheduledComputeNode]{}, err
	}
	return env.toResult(), nil
}

func (s *scheduledNodeClient) Update(ctx context.Context, n *model.ScheduledComputeNode) error {
	return s.c.do(ctx, http.MethodPut, fmt.Sprintf("/scheduled_compute_nodes/%d", n.ID), nil, n, nil)
}

// --- ComputeNodes ---

type computeNodeClient struct{ c *Client }

func (cn *computeNodeClient) Create(ctx context.Context, workflowID int64, n *model.ComputeNode) (int64, error) {
	var resp idResponse
	if err := cn.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/compute_nodes", workflowID), nil, n, &resp); err != nil {
		return 0, err
	}
	n.ID = resp.ID
	return resp.ID, nil
}

func (cn *computeNodeClient) Get(ctx context.Context, id int64) (*model.ComputeNode, error) {
	var n model.ComputeNode
	if err := cn.c.do(ctx, http.MethodGet, fmt.Sprintf("/compute_nodes/%d", id), nil, nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

func (cn *computeNodeClient) List(ctx context.Context, workflowID int64, opts store.ListOptions) (store.ListResult[model.ComputeNode], error) {
	var env listEnvelope[model.ComputeNode]
	if err := cn.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/compute_nodes", workflowID), listQuery(opts), nil, &env); err != nil {
		return store.ListResult[model.ComputeNode]{}, err
	}
	return env.toResult(), nil
}

// --- Results ---

type resultClient struct{ c *Client }

func (r *resultClient) Get(ctx context.Context, id int64) (*model.Result, error) {
	var res model.Result
	if err := r.c.do(ctx, http.MethodGet, fmt.Sprintf("/results/%d", id), nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *resultClient) List(ctx context.Context, workflowID int64, filter store.ResultListFilter, opts store.ListOptions) (store.ListResult[model.Result], error) {
	q := listQuery(opts)
	if filter.HasJobID {
		q.Set("job_id", strconv.FormatInt(filter.JobID, 10))
	}
	if filter.HasRunID {
		q.Set("run_id", strconv.FormatInt(filter.RunID, 10))
	}
	if filter.HasReturnCode {
		q.Set("return_code", strconv.Itoa(filter.ReturnCode))
	}
	if filter.HasStatus {
		q.Set("status", string(filter.Status))
	}
	if filter.HasComputeNodeID {
		q.Set("compute_node_id", strconv.FormatInt(filter.ComputeNodeID, 10))
	}
	if filter.AllRuns {
		q.Set("all_runs", "true")
	}
	var env listEnvelope[model.Result]
	if err := r.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/results", workflowID), q, nil, &env); err != nil {
		return store.ListResult[model.Result]{}, err
	}
	return env.toResult(), nil
}

func (r *resultClient) Delete(ctx context.Context, id int64) error {
	return r.c.do(ctx, http.MethodDelete, fmt.Sprintf("/results/%d", id), nil, nil, nil)
}

// --- Events ---

type eventClient struct{ c *Client }

func (e *eventClient) Create(ctx context.Context, workflowID int64, ev *model.Event) (int64, error) {
	var resp idResponse
	if err := e.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/events", workflowID), nil, ev, &resp); err != nil {
		return 0, err
	}
	ev.ID = resp.ID
	return resp.ID, nil
}

func (e *eventClient) GetLatest(ctx context.Context, workflowID int64) (*model.Event, error) {
	var ev model.Event
	if err := e.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/events/latest", workflowID), nil, nil, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (e *eventClient) List(ctx context.Context, workflowID int64, filter store.EventListFilter, opts store.ListOptions) (store.ListResult[model.Event], error) {
	q := listQuery(opts)
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.HasAfterTimestamp {
		q.Set("after_timestamp", strconv.FormatInt(filter.AfterTimestamp, 10))
	}
	var env listEnvelope[model.Event]
	if err := e.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/events", workflowID), q, nil, &env); err != nil {
		return store.ListResult[model.Event]{}, err
	}
	return env.toResult(), nil
}

func (e *eventClient) Delete(ctx context.Context, id int64) error {
	return e.c.do(ctx, http.MethodDelete, fmt.Sprintf("/events/%d", id), nil, nil, nil)
}

func (e *eventClient) Stream(ctx context.Context, workflowID int64, minSeverity model.Severity) (<-chan model.Event, error) {
	return e.c.sse.Stream(ctx, workflowID, minSeverity), nil
}

// --- Dependencies ---

type dependencyClient struct{ c *Client }

func (d *dependencyClient) CreateJobDependency(ctx context.Context, dep model.JobDependency) error {
	return d.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/job_dependencies", dep.WorkflowID), nil, dep, nil)
}

func (d *dependencyClient) CreateJobFileRelationship(ctx context.Context, jf model.JobFile) error {
	return d.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/job_file_relationships", jf.WorkflowID), nil, jf, nil)
}

func (d *dependencyClient) CreateJobUserDataRelationship(ctx context.Context, ju model.JobUserData) error {
	return d.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/job_user_data_relationships", ju.WorkflowID), nil, ju, nil)
}

func (d *dependencyClient) ListJobDependencies(ctx context.Context, workflowID int64) ([]model.JobDependency, error) {
	var resp struct {
		Dependencies []model.JobDependency `json:"dependencies"`
	}
	err := d.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/job_dependencies", workflowID), nil, nil, &resp)
	return resp.Dependencies, err
}

func (d *dependencyClient) ListJobFileRelationships(ctx context.Context, workflowID int64) ([]model.JobFile, error) {
	var resp struct {
		Relationships []model.JobFile `json:"relationships"`
	}
	err := d.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/job_file_relationships", workflowID), nil, nil, &resp)
	return resp.Relationships, err
}

func (d *dependencyClient) ListJobUserDataRelationships(ctx context.Context, workflowID int64) ([]model.JobUserData, error) {
	var resp struct {
		Relationships []model.JobUserData `json:"relationships"`
	}
	err := d.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/job_user_data_relationships", workflowID), nil, nil, &resp)
	return resp.Relationships, err
}

// --- Actions ---

type actionClient struct{ c *Client }

func (a *actionClient) Create(ctx context.Context, workflowID int64, act *model.WorkflowAction) (int64, error) {
	var resp idResponse
	if err := a.c.do(ctx, http.MethodPost, fmt.Sprintf("/workflows/%d/actions", workflowID), nil, act, &resp); err != nil {
		return 0, err
	}
	act.ID = resp.ID
	return resp.ID, nil
}

func (a *actionClient) Get(ctx context.Context, id int64) (*model.WorkflowAction, error) {
	var act model.WorkflowAction
	if err := a.c.do(ctx, http.MethodGet, fmt.Sprintf("/actions/%d", id), nil, nil, &act); err != nil {
		return nil, err
	}
	return &act, nil
}

func (a *actionClient) List(ctx context.Context, workflowID int64, opts store.ListOptions) (store.ListResult[model.WorkflowAction], error) {
	var env listEnvelope[model.WorkflowAction]
	if err := a.c.do(ctx, http.MethodGet, fmt.Sprintf("/workflows/%d/actions/list", workflowID), listQuery(opts), nil, &env); err != nil {
		return store.ListResult[model.WorkflowAction]{}, err
	}
	return env.toResult(), nil
}

func (a *actionClient) Update(ctx context.Context, act *model.WorkflowAction) error {
	return a.c.do(ctx, http.MethodPut, fmt.Sprintf("/actions/%d", act.ID), nil, act, nil)
}

func (a *actionClient) Delete(ctx context.Context, id int64) error {
	return a.c.do(ctx, http.MethodDelete, fmt.Sprintf("/actions/%d", id), nil, nil, nil)
}

func (a *actionClient) IncrementTriggerCount(ctx context.Context, id int64) (*model.WorkflowAction, error) {
	var act model.WorkflowAction
	if err := a.c.do(ctx, http.MethodPost, fmt.Sprintf("/actions/%d/increment_trigger", id), nil, nil, &act); err != nil {
		return nil, err
	}
	return &act, nil
}

func (a *actionClient) ClaimPending(ctx context.Context, id int64) (*model.WorkflowAction, bool, error) {
	var resp struct {
		Claimed bool                  `json:"claimed"`
		Action  *model.WorkflowAction `json:"action,omitempty"`
	}
	if err := a.c.do(ctx, http.MethodPost, fmt.Sprintf("/actions/%d/claim", id), nil, nil, &resp); err != nil {
		return nil, false, err
	}
	return resp.Action, resp.Claimed, nil
}

// --- Health ---

type healthClient struct{ c *Client }

func (h *healthClient) Ping(ctx context.Context) error {
	return h.c.do(ctx, http.MethodGet, "/ping", nil, nil, nil)
}

func (h *healthClient) Version(ctx context.Context) (string, string, error) {
	var resp struct {
		Version string `json:"version"`
	}
	if err := h.c.do(ctx, http.MethodGet, "/version", nil, nil, &resp); err != nil {
		return "", "", err
	}
	return ClientVersion, resp.Version, nil
}

// ClientVersion is this client's protocol version, compared against the
// server's by the CLI at startup.
const ClientVersion = "1.0.0"
