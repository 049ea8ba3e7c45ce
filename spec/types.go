// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package spec decodes declarative workflow documents (JSON, JSON5, YAML,
// KDL) into a single in-memory WorkflowSpec value, independent of
// surface format. Downstream packages (expand, resolve, validate,
// materialize) only ever see this format-independent model.
package spec

// ParameterMode selects how a job/file template's parameter lists are
// combined into concrete entities.
type ParameterMode string

const (
	ParameterModeProduct ParameterMode = "product"
	ParameterModeZip     ParameterMode = "zip"
)

// RefList carries both exact names and regex name-patterns referencing
// entities of one kind.
type RefList struct {
	// Exact holds nil when the field was entirely absent from the
	// document and a non-nil empty slice when it was present but empty;
	// every decoder and EncodeJSON preserve both shapes. EncodeKDL writes
	// no reference lists at all.
	Exact    []string
	Regexes  []string
}

// IsSet reports whether the field was present in the source document at
// all (nil vs empty-but-present).
func (r RefList) IsSet() bool {
	return r.Exact != nil || r.Regexes != nil
}

// JobSpec is one job entry in a WorkflowSpec, possibly templated.
type JobSpec struct {
	Name                    string
	Command                 string
	InvocationScript        string
	CancelOnBlockingFailure bool
	SupportsTermination     bool
	ResourceRequirements    string
	Scheduler               string
	FailureHandler          string

	DependsOn     RefList
	InputFiles    RefList
	OutputFiles   RefList
	InputUserData RefList
	OutputUserData RefList

	// Parameters, when UseParameters is true, map a placeholder name to
	// the list of concrete values the expander binds it to.
	Parameters    map[string][]string
	ParameterMode ParameterMode
	UseParameters bool
}

// FileSpec is a named filesystem artifact declared up front (as opposed
// to one created as a job's output at runtime).
type FileSpec struct {
	Name string
	Path string

	Parameters    map[string][]string
	ParameterMode ParameterMode
	UseParameters bool
}

// UserDataSpec is a named JSON blob.
type UserDataSpec struct {
	Name        string
	Data        interface{}
	IsEphemeral bool
}

// ResourceRequirementsSpec is a named resource profile.
type ResourceRequirementsSpec struct {
	Name     string
	NumCPUs  int
	NumGPUs  int
	NumNodes int
	Memory   string
	Runtime  string
}

// FailureHandlerSpec is a named retry policy a job may reference by
// name.
type FailureHandlerSpec struct {
	Name               string
	MaxRetries         int
	RetryOnReturnCodes []int
}

// SchedulerSpec is a named Slurm scheduler profile.
type SchedulerSpec struct {
	Name      string
	Account   string
	Nodes     int
	Walltime  string
	Partition string
	QOS       string
	Memory    string
	Gres      string
	Tmp       string
	Extra     string
}

// WorkflowActionSpec is a trigger -> action rule.
type WorkflowActionSpec struct {
	TriggerType      string
	ActionType       string
	RequiredTriggers int
	JobNames         []string

	Scheduler      string
	NumAllocations int
	AllocationMode string
}

// WorkflowSpec is the complete, format-independent in-memory model of a
// declarative workflow document.
type WorkflowSpec struct {
	Name        string
	User        string
	Description string

	Jobs                  []JobSpec
	Files                 []FileSpec
	UserData              []UserDataSpec
	ResourceRequirements  []ResourceRequirementsSpec
	SlurmSchedulers       []SchedulerSpec
	FailureHandlers       []FailureHandlerSpec
	WorkflowActions       []WorkflowActionSpec

	// SourceFormat records which decoder produced this value, used only
	// for diagnostics (round-trip tests serialize back to this format).
	SourceFormat Format
}
