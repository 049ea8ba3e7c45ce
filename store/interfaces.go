// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package store defines the interfaces the Torc core consumes against the
// external persistence store: plain CRUD plus the handful of atomic
// compound operations (job claim, action claim) that the core relies on
// instead of emulating them with a read-then-write pair. Every engine package in this module (status,
// action, materialize, orchestrator, slurmalloc) depends only on these
// interfaces, never on a concrete HTTP client, so they can be driven in
// tests by the in-memory fake in internal/testutil.
package store

import (
	"context"
	"time"

	"github.com/NREL/torc/model"
)

// ListOptions is the common offset/limit/sort contract every list
// endpoint accepts.
type ListOptions struct {
	Offset     int
	Limit      int
	SortBy     string
	ReverseSort bool
}

// ListResult is the common paginated response envelope. HasMore=false
// implies all items matching the query have been returned; callers
// advance Offset by len(Items), not by Limit.
type ListResult[T any] struct {
	Items      []T
	HasMore    bool
	TotalCount int
}

// WorkflowStore exposes the server's Workflow operations.
type WorkflowStore interface {
	Create(ctx context.Context, w *model.Workflow) (int64, error)
	Get(ctx context.Context, id int64) (*model.Workflow, error)
	Update(ctx context.Context, w *model.Workflow) error
	List(ctx context.Context, owner string, opts ListOptions) (ListResult[model.Workflow], error)
	Delete(ctx context.Context, id int64) error
	Cancel(ctx context.Context, id int64) error
	IsComplete(ctx context.Context, id int64) (bool, error)
	IsUninitialized(ctx context.Context, id int64) (bool, error)
	GetStatus(ctx context.Context, id int64) (map[int64]model.JobStatus, error)
	UpdateStatus(ctx context.Context, id int64, jobID int64, status model.JobStatus) error
	ResetStatus(ctx context.Context, id int64, failedOnly bool) error
	ResetJobStatus(ctx context.Context, id int64, jobID int64) error
	GetActions(ctx context.Context, id int64) ([]model.WorkflowAction, error)
}

// JobListFilter narrows a Job.List call.
type JobListFilter struct {
	Status              model.JobStatus
	HasStatus           bool
	NeedsFileID         int64
	HasNeedsFileID      bool
	UpstreamJobID       int64
	HasUpstreamJobID    bool
	ActiveComputeNodeID int64
	HasActiveComputeNodeID bool
	IncludeRelationships bool
}

// JobStore exposes the server's Job operations, including the atomic
// claim primitive ("the core never performs a read-then-write
// pair to change job status").
type JobStore interface {
	Create(ctx context.Context, workflowID int64, jobs []model.Job) ([]int64, error)
	Get(ctx context.Context, id int64) (*model.Job, error)
	List(ctx context.Context, workflowID int64, filter JobListFilter, opts ListOptions) (ListResult[model.Job], error)
	Update(ctx context.Context, j *model.Job) error
	Delete(ctx context.Context, id int64) error
	Cancel(ctx context.Context, id int64) error
	Terminate(ctx context.Context, id int64) error
	Retry(ctx context.Context, id int64) error

	// ClaimNextReady atomically selects one Ready job for workflowID,
	// assigning it to workerID and moving it to Submitting in a single
	// store RPC. ok is false when no job is currently claimable.
	ClaimNextReady(ctx context.Context, workflowID int64, workerID string) (job *model.Job, ok bool, err error)

	// Complete records a job run's Result row in a single RPC. Status
	// transitions stay with the caller (status.Engine.ApplyResult), so
	// a retrying job keeps its full result history.
	Complete(ctx context.Context, jobID int64, result *model.Result) error
}

// FileListFilter narrows a File.List call.
type FileListFilter struct {
	ProducedByJobID    int64
	HasProducedByJobID bool
	Name               string
	Path               string
	IsOutput           bool
	HasIsOutput        bool
}

// FileStore exposes the server's File operations.
type FileStore interface {
	Create(ctx context.Context, workflowID int64, f *model.File) (int64, error)
	Get(ctx context.Context, id int64) (*model.File, error)
	List(ctx context.Context, workflowID int64, filter FileListFilter, opts ListOptions) (ListResult[model.File], error)
	Update(ctx context.Context, f *model.File) error
	Delete(ctx context.Context, id int64) error
	// ListRequiredExisting lists the files a freshly-initialised workflow
	// requires to already exist on disk (jobs' declared input files that
	// no job in the workflow produces).
	ListRequiredExisting(ctx context.Context, workflowID int64) ([]model.File, error)
}

// UserDataListFilter narrows a UserData.List call.
type UserDataListFilter struct {
	ConsumerJobID    int64
	HasConsumerJobID bool
	ProducerJobID    int64
	HasProducerJobID bool
	Name             string
	Ephemeral        bool
	HasEphemeral     bool
}

// UserDataStore exposes the server's UserData operations.
type UserDataStore interface {
	Create(ctx context.Context, workflowID int64, ud *model.UserData) (int64, error)
	Get(ctx context.Context, id int64) (*model.UserData, error)
	List(ctx context.Context, workflowID int64, filter UserDataListFilter, opts ListOptions) (ListResult[model.UserData], error)
	Update(ctx context.Context, ud *model.UserData) error
	Delete(ctx context.Context, id int64) error
	DeleteAll(ctx context.Context, workflowID int64, ephemeralOnly bool) error
	ListMissing(ctx context.Context, workflowID int64) ([]model.UserData, error)
}

// ResourceRequirementsStore exposes the server's ResourceRequirements
// operations.
type ResourceRequirementsStore interface {
	Create(ctx context.Context, workflowID int64, r *model.ResourceRequirements) (int64, error)
	Get(ctx context.Context, id int64) (*model.ResourceRequirements, error)
	List(ctx context.Context, workflowID int64, opts ListOptions) (ListResult[model.ResourceRequirements], error)
	Update(ctx context.Context, r *model.ResourceRequirements) error
	Delete(ctx context.Context, id int64) error
}

// SchedulerStore exposes the server's Slurm scheduler operations.
type SchedulerStore interface {
	Create(ctx context.Context, workflowID int64, s *model.Scheduler) (int64, error)
	Get(ctx context.Context, id int64) (*model.Scheduler, error)
	List(ctx context.Context, workflowID int64, opts ListOptions) (ListResult[model.Scheduler], error)
	Update(ctx context.Context, s *model.Scheduler) error
	Delete(ctx context.Context, id int64) error
}

// FailureHandlerStore exposes the server's FailureHandler operations,
// modelled on the same list shape as every other entity.
type FailureHandlerStore interface {
	Create(ctx context.Context, workflowID int64, f *model.FailureHandler) (int64, error)
	Get(ctx context.Context, id int64) (*model.FailureHandler, error)
	List(ctx context.Context, workflowID int64, opts ListOptions) (ListResult[model.FailureHandler], error)
	Delete(ctx context.Context, id int64) error
}

// ScheduledComputeNodeListFilter narrows a ScheduledComputeNode.List call.
type ScheduledComputeNodeListFilter struct {
	SchedulerID          int64
	HasSchedulerID       bool
	SchedulerConfigID    int64
	HasSchedulerConfigID bool
	Status               model.ScheduledComputeNodeStatus
	HasStatus            bool
}

// ScheduledComputeNodeStore exposes the server's ScheduledComputeNode
// operations.
type ScheduledComputeNodeStore interface {
	Create(ctx context.Context, workflowID int64, n *model.ScheduledComputeNode) (int64, error)
	List(ctx context.Context, workflowID int64, filter ScheduledComputeNodeListFilter, opts ListOptions) (ListResult[model.ScheduledComputeNode], error)
	Update(ctx context.Context, n *model.ScheduledComputeNode) error
}

// ComputeNodeStore exposes the server's ComputeNode operations.
type ComputeNodeStore interface {
	Create(ctx context.Context, workflowID int64, n *model.ComputeNode) (int64, error)
	Get(ctx context.Context, id int64) (*model.ComputeNode, error)
	List(ctx context.Context, workflowID int64, opts ListOptions) (ListResult[model.ComputeNode], error)
}

// ResultListFilter narrows a Result.List call.
type ResultListFilter struct {
	JobID           int64
	HasJobID        bool
	RunID           int64
	HasRunID        bool
	ReturnCode      int
	HasReturnCode   bool
	Status          model.JobStatus
	HasStatus       bool
	ComputeNodeID   int64
	HasComputeNodeID bool
	AllRuns         bool
}

// ResultStore exposes the server's Result operations.
type ResultStore interface {
	Get(ctx context.Context, id int64) (*model.Result, error)
	List(ctx context.Context, workflowID int64, filter ResultListFilter, opts ListOptions) (ListResult[model.Result], error)
	Delete(ctx context.Context, id int64) error
}

// EventListFilter narrows an Event.List call.
type EventListFilter struct {
	Category        string
	AfterTimestamp  int64
	HasAfterTimestamp bool
}

// EventStore exposes the server's Event operations, including the SSE
// stream.
type EventStore interface {
	Create(ctx context.Context, workflowID int64, e *model.Event) (int64, error)
	GetLatest(ctx context.Context, workflowID int64) (*model.Event, error)
	List(ctx context.Context, workflowID int64, filter EventListFilter, opts ListOptions) (ListResult[model.Event], error)
	Delete(ctx context.Context, id int64) error
	// Stream opens an SSE connection filtered by minimum severity and
	// delivers events on the returned channel in server timestamp
	// order; the channel is closed when ctx is canceled or the stream
	// ends.
	Stream(ctx context.Context, workflowID int64, minSeverity model.Severity) (<-chan model.Event, error)
}

// DependencyViewStore exposes the relationship views plus the
// edge-creation calls the materialiser issues after job creation. The
// store enforces producer uniqueness (I3) on the create side.
type DependencyViewStore interface {
	CreateJobDependency(ctx context.Context, d model.JobDependency) error
	CreateJobFileRelationship(ctx context.Context, jf model.JobFile) error
	CreateJobUserDataRelationship(ctx context.Context, ju model.JobUserData) error
	ListJobDependencies(ctx context.Context, workflowID int64) ([]model.JobDependency, error)
	ListJobFileRelationships(ctx context.Context, workflowID int64) ([]model.JobFile, error)
	ListJobUserDataRelationships(ctx context.Context, workflowID int64) ([]model.JobUserData, error)
}

// ActionStore exposes the WorkflowAction operations, including the
// atomic claim-and-mark-executed primitive.
type ActionStore interface {
	Create(ctx context.Context, workflowID int64, a *model.WorkflowAction) (int64, error)
	Get(ctx context.Context, id int64) (*model.WorkflowAction, error)
	List(ctx context.Context, workflowID int64, opts ListOptions) (ListResult[model.WorkflowAction], error)
	Update(ctx context.Context, a *model.WorkflowAction) error
	Delete(ctx context.Context, id int64) error
	// IncrementTriggerCount atomically adds one to the action's counter.
	IncrementTriggerCount(ctx context.Context, id int64) (*model.WorkflowAction, error)
	// ClaimPending atomically executes "if action is pending (count >=
	// required and not yet executed), mark executed and return it;
	// else return ok=false" in one RPC. The core must never emulate
	// this with get-then-update.
	ClaimPending(ctx context.Context, id int64) (action *model.WorkflowAction, ok bool, err error)
}

// HealthStore exposes the store's health/version endpoints.
type HealthStore interface {
	Ping(ctx context.Context) error
	Version(ctx context.Context) (clientVersion, serverVersion string, err error)
}

// Store aggregates every sub-store the core depends on, so engines
// take one dependency instead of a dozen.
type Store interface {
	Workflows() WorkflowStore
	Jobs() JobStore
	Files() FileStore
	UserData() UserDataStore
	ResourceRequirements() ResourceRequirementsStore
	Schedulers() SchedulerStore
	FailureHandlers() FailureHandlerStore
	ScheduledComputeNodes() ScheduledComputeNodeStore
	ComputeNodes() ComputeNodeStore
	Results() ResultStore
	Events() EventStore
	Dependencies() DependencyViewStore
	Actions() ActionStore
	Health() HealthStore
}

// Now is overridable in tests that need deterministic timestamps;
// production code always calls time.Now directly through this var so a
// single seam exists for the rare test that must freeze time.
var Now = time.Now
