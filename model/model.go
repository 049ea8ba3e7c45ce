// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package model defines the persistent entity model the Torc store
// exposes: Workflow,
// Job, ResourceRequirements, Scheduler, File, UserData, WorkflowAction,
// ScheduledComputeNode, ComputeNode, Result, Event, and the relationship
// edges between jobs/files/user-data. Every other core package operates
// on these types once a workflow has been materialised.
package model

import (
	"encoding/json"
	"time"
)

// JobStatus is a state in the job lifecycle state machine.
type JobStatus string

const (
	JobUninitialized JobStatus = "uninitialized"
	JobBlocked       JobStatus = "blocked"
	JobReady         JobStatus = "ready"
	JobSubmitting    JobStatus = "submitting"
	JobPending       JobStatus = "pending"
	JobRunning       JobStatus = "running"
	JobDone          JobStatus = "done"
	JobTerminated    JobStatus = "terminated"
	JobCanceled      JobStatus = "canceled"
	JobDisabled      JobStatus = "disabled"
)

// IsTerminal reports whether a job in this status will never transition
// again without an explicit operator action (retry/reset).
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobDone, JobTerminated, JobCanceled, JobDisabled:
		return true
	default:
		return false
	}
}

// IsActive reports whether a job in this status currently occupies a
// worker slot; reset_status refuses to run without force while any
// job is active.
func (s JobStatus) IsActive() bool {
	switch s {
	case JobSubmitting, JobPending, JobRunning:
		return true
	default:
		return false
	}
}

// SchedulerType identifies the HPC scheduler backend a Scheduler config
// targets. Slurm is the only one this specification implements; the type
// exists so the store/wire format does not need to change to add one.
type SchedulerType string

const (
	SchedulerSlurm SchedulerType = "slurm"
)

// TriggerType identifies a trigger event kind a WorkflowAction counts.
type TriggerType string

const (
	TriggerOnWorkflowStart      TriggerType = "on_workflow_start"
	TriggerOnJobComplete        TriggerType = "on_job_complete"
	TriggerOnDependencySatisfied TriggerType = "on_dependency_satisfied"
)

// ActionType identifies the side effect a WorkflowAction performs once
// claimed.
type ActionType string

const (
	ActionScheduleNodes ActionType = "schedule_nodes"
)

// ActionStatus is the display classification for a WorkflowAction.
type ActionStatus string

const (
	ActionWaiting  ActionStatus = "waiting"
	ActionPending  ActionStatus = "pending"
	ActionExecuted ActionStatus = "executed"
)

// AllocationMode is how a batch of node allocations is submitted to the
// scheduler.
type AllocationMode string

const (
	AllocationNxOne AllocationMode = "nx1"
	AllocationOneXN AllocationMode = "1xn"
)

// ScheduledComputeNodeStatus is the lifecycle of an HPC allocation.
type ScheduledComputeNodeStatus string

const (
	ScheduledPending ScheduledComputeNodeStatus = "pending"
	ScheduledRunning ScheduledComputeNodeStatus = "running"
	ScheduledEnded   ScheduledComputeNodeStatus = "ended"
)

// Severity is an Event's severity level, used by the SSE stream filter.
type Severity string

const (
	SeverityDebug Severity = "debug"
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

var severityRank = map[Severity]int{
	SeverityDebug: 0,
	SeverityInfo:  1,
	SeverityWarn:  2,
	SeverityError: 3,
}

// AtLeast reports whether s is at least as severe as min.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// ResourceMonitorGranularity controls how much resource telemetry a
// workflow's compute nodes sample.
type ResourceMonitorGranularity string

const (
	MonitorSummary  ResourceMonitorGranularity = "summary"
	MonitorDetailed ResourceMonitorGranularity = "detailed"
)

// ResourceMonitorConfig is a Workflow's optional telemetry configuration.
type ResourceMonitorConfig struct {
	Granularity  ResourceMonitorGranularity `json:"granularity"`
	PeriodSeconds int                       `json:"period_seconds"`
}

// Workflow is the top-level container entity.
type Workflow struct {
	ID          int64                  `json:"id"`
	Name        string                 `json:"name"`
	Owner       string                 `json:"owner"`
	Description string                 `json:"description,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	Archived    bool                   `json:"archived"`
	Canceled    bool                   `json:"canceled"`
	RunID       int64                  `json:"run_id"`
	Monitor     *ResourceMonitorConfig `json:"resource_monitor,omitempty"`
}

// FailureHandler is a named retry policy a job may reference.
type FailureHandler struct {
	ID                  int64   `json:"id"`
	WorkflowID          int64   `json:"workflow_id"`
	Name                string  `json:"name"`
	MaxRetries          int     `json:"max_retries"`
	RetryOnReturnCodes  []int   `json:"retry_on_return_codes,omitempty"`
}

// AllowsRetry reports whether a FailureHandler permits retrying a job
// that exited with returnCode. A nil handler never permits retry.
func (f *FailureHandler) AllowsRetry(returnCode int, attemptsSoFar int) bool {
	if f == nil {
		return false
	}
	if attemptsSoFar >= f.MaxRetries {
		return false
	}
	if len(f.RetryOnReturnCodes) == 0 {
		return true
	}
	for _, rc := range f.RetryOnReturnCodes {
		if rc == returnCode {
			return true
		}
	}
	return false
}

// Job is a unit of execution.
type Job struct {
	ID                        int64     `json:"id"`
	WorkflowID                int64     `json:"workflow_id"`
	Name                      string    `json:"name"`
	Command                   string    `json:"command"`
	InvocationScript          string    `json:"invocation_script,omitempty"`
	CancelOnBlockingFailure   bool      `json:"cancel_on_blocking_failure"`
	SupportsTermination       bool      `json:"supports_termination"`
	ResourceRequirementsName  string    `json:"resource_requirements_name,omitempty"`
	SchedulerName             string    `json:"scheduler_name,omitempty"`
	FailureHandlerName        string    `json:"failure_handler_name,omitempty"`
	Status                    JobStatus `json:"status"`
	RunID                     int64     `json:"run_id"`
	RetryCount                int       `json:"retry_count"`
}

// ResourceRequirements is a named resource profile.
type ResourceRequirements struct {
	ID         int64  `json:"id"`
	WorkflowID int64  `json:"workflow_id"`
	Name       string `json:"name"`
	NumCPUs    int    `json:"num_cpus"`
	NumGPUs    int    `json:"num_gpus"`
	NumNodes   int    `json:"num_nodes"`
	Memory     string `json:"memory"`
	Runtime    string `json:"runtime"` // ISO-8601 duration
}

// Scheduler is a named Slurm allocation profile.
type Scheduler struct {
	ID         int64  `json:"id"`
	WorkflowID int64  `json:"workflow_id"`
	Name       string `json:"name"`
	Account    string `json:"account"`
	Nodes      int    `json:"nodes"`
	Walltime   string `json:"walltime"`
	Partition  string `json:"partition"`
	QOS        string `json:"qos,omitempty"`
	Memory     string `json:"memory,omitempty"`
	Gres       string `json:"gres,omitempty"`
	Tmp        string `json:"tmp,omitempty"`
	Extra      string `json:"extra,omitempty"`
}

// File is a named filesystem artifact.
type File struct {
	ID         int64      `json:"id"`
	WorkflowID int64      `json:"workflow_id"`
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	Mtime      *time.Time `json:"mtime,omitempty"`
}

// UserData is a named JSON blob.
type UserData struct {
	ID          int64           `json:"id"`
	WorkflowID  int64           `json:"workflow_id"`
	Name        string          `json:"name"`
	Data        json.RawMessage `json:"data"`
	IsEphemeral bool            `json:"is_ephemeral"`
	// UpdatedAt is set by the store on every create and update; the
	// readiness engine compares it against a job's completion time to
	// decide whether consumed user-data changed since the job ran.
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// WorkflowAction is a trigger -> action rule bound to a workflow.
type WorkflowAction struct {
	ID               int64       `json:"id"`
	WorkflowID       int64       `json:"workflow_id"`
	TriggerType      TriggerType `json:"trigger_type"`
	ActionType       ActionType  `json:"action_type"`
	TriggerCount     int         `json:"trigger_count"`
	RequiredTriggers int         `json:"required_triggers"`
	JobIDs           []int64     `json:"job_ids,omitempty"`
	Executed         bool        `json:"executed"`
	ExecutedAt       *time.Time  `json:"executed_at,omitempty"`

	// Action parameters
	SchedulerName   string `json:"scheduler_name,omitempty"`
	NumAllocations  int    `json:"num_allocations,omitempty"`
	AllocationMode  AllocationMode `json:"allocation_mode,omitempty"`
}

// DisplayStatus classifies this action for display.
func (a *WorkflowAction) DisplayStatus() ActionStatus {
	if a.Executed {
		return ActionExecuted
	}
	if a.TriggerCount >= a.RequiredTriggers {
		return ActionPending
	}
	return ActionWaiting
}

// ScheduledComputeNode is bookkeeping for an HPC allocation.
type ScheduledComputeNode struct {
	ID               int64                      `json:"id"`
	WorkflowID       int64                      `json:"workflow_id"`
	SchedulerConfigID int64                     `json:"scheduler_config_id"`
	ExternalSchedulerID string                  `json:"external_scheduler_id"`
	SchedulerType    SchedulerType              `json:"scheduler_type"`
	Status           ScheduledComputeNodeStatus `json:"status"`
}

// ComputeNodeResources is the resource footprint a live worker reserved.
type ComputeNodeResources struct {
	CPUs   int   `json:"cpus"`
	Memory int64 `json:"memory"`
	GPUs   int   `json:"gpus"`
	Nodes  int   `json:"nodes"`
}

// ComputeNode is a live worker registration.
type ComputeNode struct {
	ID                     int64                `json:"id"`
	WorkflowID             int64                `json:"workflow_id"`
	Hostname               string               `json:"hostname"`
	PID                    int                  `json:"pid"`
	StartTime              time.Time            `json:"start_time"`
	Resources              ComputeNodeResources `json:"resources"`
	SchedulerType          SchedulerType        `json:"scheduler_type,omitempty"`
	ScheduledComputeNodeID *int64               `json:"scheduled_compute_node_id,omitempty"`
	Active                 bool                 `json:"active"`
	DurationSeconds        int64                `json:"duration_seconds"`
}

// Result is a per-run job outcome.
type Result struct {
	ID              int64     `json:"id"`
	JobID           int64     `json:"job_id"`
	WorkflowID      int64     `json:"workflow_id"`
	RunID           int64     `json:"run_id"`
	ReturnCode      int       `json:"return_code"`
	CompletedAt     time.Time `json:"completed_at"`
	ExecutionTimeMinutes float64 `json:"execution_time_minutes"`
	PeakMemoryBytes float64   `json:"peak_memory_bytes"`
	AvgMemoryBytes  float64   `json:"avg_memory_bytes"`
	PeakCPUPercent  float64   `json:"peak_cpu_percent"`
	AvgCPUPercent   float64   `json:"avg_cpu_percent"`
	Status          JobStatus `json:"status"`
}

// Event is an immutable log record.
type Event struct {
	ID         int64           `json:"id"`
	WorkflowID int64           `json:"workflow_id"`
	TimestampMillis int64      `json:"timestamp"`
	Category   string          `json:"category"`
	Severity   Severity        `json:"severity"`
	Data       json.RawMessage `json:"data"`
}

// JobDependency is a blocker -> blocked edge.
type JobDependency struct {
	WorkflowID int64 `json:"workflow_id"`
	BlockerJobID int64 `json:"blocker_job_id"`
	BlockedJobID int64 `json:"blocked_job_id"`
}

// JobFileRole distinguishes a JobFile edge's direction.
type JobFileRole string

const (
	JobFileProducer JobFileRole = "producer"
	JobFileConsumer JobFileRole = "consumer"
)

// JobFile is a producer/consumer edge between a job and a file.
type JobFile struct {
	WorkflowID int64       `json:"workflow_id"`
	JobID      int64       `json:"job_id"`
	FileID     int64       `json:"file_id"`
	Role       JobFileRole `json:"role"`
}

// JobUserDataRole distinguishes a JobUserData edge's direction.
type JobUserDataRole string

const (
	JobUserDataProducer JobUserDataRole = "producer"
	JobUserDataConsumer JobUserDataRole = "consumer"
)

// JobUserData is a producer/consumer edge between a job and a user-data
// blob.
type JobUserData struct {
	WorkflowID int64           `json:"workflow_id"`
	JobID      int64           `json:"job_id"`
	UserDataID int64           `json:"user_data_id"`
	Role       JobUserDataRole `json:"role"`
}
