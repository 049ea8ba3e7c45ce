// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"fmt"
	"strings"
)

// ParseErr reports that a workflow spec document could not be decoded.
type ParseErr struct {
	*TorcError
	Path string `json:"path,omitempty"`
	Line int    `json:"line,omitempty"`
}

// ParseError builds the structured parse error. line is
// 0 when the underlying decoder did not report a line number.
func ParseError(path string, line int, message string, cause error) *ParseErr {
	msg := fmt.Sprintf("failed to parse workflow spec %q", path)
	if line > 0 {
		msg = fmt.Sprintf("%s at line %d", msg, line)
	}
	e := newTorcErrorWithCause(ErrorCodeParse, msg, cause)
	e.Details = message
	return &ParseErr{TorcError: e, Path: path, Line: line}
}

// ParameterShapeMismatchErr reports a zip-mode parameter expansion whose
// value lists are not all the same length.
type ParameterShapeMismatchErr struct {
	*TorcError
	Job  string `json:"job"`
	Mode string `json:"mode"`
	Key  string `json:"key"`
}

func ParameterShapeMismatch(job, mode, key string) *ParameterShapeMismatchErr {
	e := newTorcError(ErrorCodeParameterShapeMismatch, fmt.Sprintf(
		"job %q: parameter %q has a different length than its siblings under zip mode", job, key))
	return &ParameterShapeMismatchErr{TorcError: e, Job: job, Mode: mode, Key: key}
}

// DuplicateNameErr reports that two entities of the same kind
// share a name within a workflow.
type DuplicateNameErr struct {
	*TorcError
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func DuplicateName(kind, name string) *DuplicateNameErr {
	e := newTorcError(ErrorCodeDuplicateName, fmt.Sprintf("duplicate %s name %q", kind, name))
	return &DuplicateNameErr{TorcError: e, Kind: kind, Name: name}
}

// DuplicateExpandedNameErr reports that parameter expansion produced two
// concrete jobs/files with the same substituted name.
type DuplicateExpandedNameErr struct {
	*TorcError
	JobTemplate string            `json:"job_template"`
	Bound       map[string]string `json:"bound"`
}

func DuplicateExpandedName(jobTemplate string, bound map[string]string) *DuplicateExpandedNameErr {
	e := newTorcError(ErrorCodeDuplicateExpandedName, fmt.Sprintf(
		"template %q expanded to a name already produced by another binding", jobTemplate))
	return &DuplicateExpandedNameErr{TorcError: e, JobTemplate: jobTemplate, Bound: bound}
}

// UnresolvedReferenceErr reports a named reference that does
// not resolve to exactly one entity of the expected kind.
type UnresolvedReferenceErr struct {
	*TorcError
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	InJob string `json:"in_job"`
}

func UnresolvedReference(kind, name, inJob string) *UnresolvedReferenceErr {
	e := newTorcError(ErrorCodeUnresolvedReference, fmt.Sprintf(
		"job %q references unknown %s %q", inJob, kind, name))
	return &UnresolvedReferenceErr{TorcError: e, Kind: kind, Name: name, InJob: inJob}
}

// AmbiguousReferenceErr reports a name that matched more than one entity.
type AmbiguousReferenceErr struct {
	*TorcError
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func AmbiguousReference(kind, name string) *AmbiguousReferenceErr {
	e := newTorcError(ErrorCodeAmbiguousReference, fmt.Sprintf(
		"%s name %q matches more than one entity", kind, name))
	return &AmbiguousReferenceErr{TorcError: e, Kind: kind, Name: name}
}

// CycleErr reports a cycle in the combined dependency graph.
type CycleErr struct {
	*TorcError
	Kind         string   `json:"kind"`
	Participants []string `json:"participants"`
}

func Cycle(kind string, participants []string) *CycleErr {
	e := newTorcError(ErrorCodeCycle, fmt.Sprintf(
		"%s dependency graph has a cycle: %s", kind, strings.Join(participants, " -> ")))
	return &CycleErr{TorcError: e, Kind: kind, Participants: participants}
}

// MultipleProducersErr reports that more than one job
// produces the same file or user-data entity.
type MultipleProducersErr struct {
	*TorcError
	ArtifactKind string   `json:"artifact_kind"`
	Name         string   `json:"name"`
	Producers    []string `json:"producers"`
}

func MultipleProducers(artifactKind, name string, producers []string) *MultipleProducersErr {
	e := newTorcError(ErrorCodeMultipleProducers, fmt.Sprintf(
		"%s %q has more than one producer: %s", artifactKind, name, strings.Join(producers, ", ")))
	return &MultipleProducersErr{TorcError: e, ArtifactKind: artifactKind, Name: name, Producers: producers}
}

// ValidationFailureErr aggregates validator messages for --dry-run and for
// validate_spec's ValidationReport.
type ValidationFailureErr struct {
	*TorcError
	Messages []string `json:"messages"`
}

func ValidationFailure(messages []string) *ValidationFailureErr {
	e := newTorcError(ErrorCodeValidationFailure, fmt.Sprintf(
		"workflow spec failed validation with %d error(s)", len(messages)))
	e.Details = strings.Join(messages, "; ")
	return &ValidationFailureErr{TorcError: e, Messages: messages}
}

// MaterialiseErr reports that a materialisation step failed; by the time
// this error is constructed the workflow id has already been rolled back.
type MaterialiseErr struct {
	*TorcError
	Step string `json:"step"`
}

func MaterialiseError(step string, cause error) *MaterialiseErr {
	e := newTorcErrorWithCause(ErrorCodeMaterialise, fmt.Sprintf(
		"materialise step %q failed, workflow rolled back", step), cause)
	return &MaterialiseErr{TorcError: e, Step: step}
}

// MissingInputsErr reports initialise() called without force while input
// files are absent.
type MissingInputsErr struct {
	*TorcError
	Files []string `json:"files"`
}

func MissingInputs(files []string) *MissingInputsErr {
	e := newTorcError(ErrorCodeMissingInputs, fmt.Sprintf(
		"%d required input file(s) are missing", len(files)))
	e.Details = strings.Join(files, ", ")
	return &MissingInputsErr{TorcError: e, Files: files}
}

// ActiveJobsErr reports reset_status() called without force while jobs
// are Running or Pending.
type ActiveJobsErr struct {
	*TorcError
	JobIDs []int64 `json:"job_ids"`
}

func ActiveJobs(jobIDs []int64) *ActiveJobsErr {
	e := newTorcError(ErrorCodeActiveJobs, fmt.Sprintf(
		"%d job(s) are still active", len(jobIDs)))
	return &ActiveJobsErr{TorcError: e, JobIDs: jobIDs}
}

// UnauthorisedDeleteErr reports a delete attempted by someone other than
// the workflow owner, without --force.
type UnauthorisedDeleteErr struct {
	*TorcError
	Owner  string `json:"owner"`
	Caller string `json:"caller"`
}

func UnauthorisedDelete(owner, caller string) *UnauthorisedDeleteErr {
	e := newTorcError(ErrorCodeUnauthorisedDelete, fmt.Sprintf(
		"workflow is owned by %q, not %q", owner, caller))
	return &UnauthorisedDeleteErr{TorcError: e, Owner: owner, Caller: caller}
}

// TransportFailureErr wraps a transport/timeout/protocol error from the
// store client. Never retried by the core itself.
type TransportFailureErr struct {
	*TorcError
	Operation string `json:"operation"`
}

func TransportFailure(operation string, cause error) *TransportFailureErr {
	e := newTorcErrorWithCause(ErrorCodeTransportFailure, fmt.Sprintf(
		"store operation %q failed", operation), cause)
	return &TransportFailureErr{TorcError: e, Operation: operation}
}

// VersionMismatchErr is surfaced but non-fatal: client and server
// protocol versions differ.
type VersionMismatchErr struct {
	*TorcError
	ClientVersion string `json:"client_version"`
	ServerVersion string `json:"server_version"`
	Severity      string `json:"severity"`
}

func VersionMismatch(clientVersion, serverVersion, severity string) *VersionMismatchErr {
	e := newTorcError(ErrorCodeVersionMismatch, fmt.Sprintf(
		"client version %s does not match server version %s", clientVersion, serverVersion))
	return &VersionMismatchErr{TorcError: e, ClientVersion: clientVersion, ServerVersion: serverVersion, Severity: severity}
}

// FromHTTPStatus classifies a raw store HTTP error response when the
// store did not itself return a structured body.
func FromHTTPStatus(operation string, statusCode int, body string) *TorcError {
	code := mapHTTPStatusToErrorCode(statusCode)
	e := newTorcError(code, fmt.Sprintf("store operation %q returned HTTP %d", operation, statusCode))
	e.Details = body
	return e
}
