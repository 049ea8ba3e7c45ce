// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package status implements the status and readiness engine: the
// job lifecycle state machine, initialise/reinitialise/reset_status, and
// applying a job's terminal Result (consulting its FailureHandler for
// the Terminated -> Uninitialized retry transition).
package status

import (
	"context"
	"os"
	"sort"
	"time"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/store"
)

// FileChecker abstracts stat'ing an input/output file on the shared
// filesystem jobs read and write, so tests can fake file presence and
// mtimes without touching a real disk.
type FileChecker interface {
	Stat(path string) (exists bool, mtime time.Time, err error)
}

// OSFileChecker stats the local filesystem.
type OSFileChecker struct{}

func (OSFileChecker) Stat(path string) (bool, time.Time, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, time.Time{}, nil
	}
	if err != nil {
		return false, time.Time{}, err
	}
	return true, info.ModTime(), nil
}

// Engine drives job-status transitions for one workflow against a store.
type Engine struct {
	Store store.Store
	Files FileChecker
}

// NewEngine builds an Engine with the given store and file checker. A
// nil checker defaults to OSFileChecker.
func NewEngine(s store.Store, checker FileChecker) *Engine {
	if checker == nil {
		checker = OSFileChecker{}
	}
	return &Engine{Store: s, Files: checker}
}

// InitialisationReport is check_initialisation()'s dry-run result.
type InitialisationReport struct {
	Safe                bool
	MissingInputFiles   []string
	ExistingOutputFiles []string
}

// Initialise clears ephemeral user-data and
// moves every Uninitialized job to Ready or Blocked, failing with
// MissingInputs first unless force is set.
func (e *Engine) Initialise(ctx context.Context, workflowID int64, force bool) error {
	missing, err := e.missingInputs(ctx, workflowID)
	if err != nil {
		return err
	}
	if len(missing) > 0 && !force {
		return errors.MissingInputs(missing)
	}

	if err := e.Store.UserData().DeleteAll(ctx, workflowID, true); err != nil {
		return err
	}

	return e.recomputeReadiness(ctx, workflowID)
}

// Reinitialise: in addition to Initialise,
// flips any Done job back to Uninitialized when one of its input files
// now has an mtime newer than the job's last completion time, or any
// of its consumed user-data was updated after it completed (the store
// stamps UserData.UpdatedAt on every write).
func (e *Engine) Reinitialise(ctx context.Context, workflowID int64, force bool) error {
	jobs, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Job], error) {
		return e.Store.Jobs().List(ctx, workflowID, store.JobListFilter{}, store.ListOptions{Offset: offset, Limit: limit})
	})
	if err != nil {
		return err
	}

	inputFiles, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.File], error) {
		return e.Store.Files().List(ctx, workflowID, store.FileListFilter{}, store.ListOptions{Offset: offset, Limit: limit})
	})
	if err != nil {
		return err
	}
	fileByID := make(map[int64]model.File, len(inputFiles))
	for _, f := range inputFiles {
		fileByID[f.ID] = f
	}

	relationships, err := e.Store.Dependencies().ListJobFileRelationships(ctx, workflowID)
	if err != nil {
		return err
	}
	consumedFiles := make(map[int64][]int64) // job id -> consumed file ids
	for _, rel := range relationships {
		if rel.Role == model.JobFileConsumer {
			consumedFiles[rel.JobID] = append(consumedFiles[rel.JobID], rel.FileID)
		}
	}

	userData, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.UserData], error) {
		return e.Store.UserData().List(ctx, workflowID, store.UserDataListFilter{}, store.ListOptions{Offset: offset, Limit: limit})
	})
	if err != nil {
		return err
	}
	userDataByID := make(map[int64]model.UserData, len(userData))
	for _, ud := range userData {
		userDataByID[ud.ID] = ud
	}

	udRelationships, err := e.Store.Dependencies().ListJobUserDataRelationships(ctx, workflowID)
	if err != nil {
		return err
	}
	consumedUD := make(map[int64][]int64) // job id -> consumed user-data ids
	for _, rel := range udRelationships {
		if rel.Role == model.JobUserDataConsumer {
			consumedUD[rel.JobID] = append(consumedUD[rel.JobID], rel.UserDataID)
		}
	}

	for _, j := range jobs {
		if j.Status != model.JobDone {
			continue
		}
		completedAt, ok, err := e.latestCompletion(ctx, workflowID, j.ID)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		stale := false
		for _, fid := range consumedFiles[j.ID] {
			f, ok := fileByID[fid]
			if !ok {
				continue
			}
			exists, mtime, err := e.Files.Stat(f.Path)
			if err != nil {
				return err
			}
			if exists && mtime.After(completedAt) {
				stale = true
				break
			}
		}
		if !stale {
			for _, udID := range consumedUD[j.ID] {
				ud, ok := userDataByID[udID]
				if !ok || ud.UpdatedAt == nil {
					continue
				}
				if ud.UpdatedAt.After(completedAt) {
					stale = true
					break
				}
			}
		}
		if stale {
			j.Status = model.JobUninitialized
			j.RetryCount = 0
			if err := e.Store.Jobs().Update(ctx, &j); err != nil {
				return err
			}
		}
	}

	return e.Initialise(ctx, workflowID, force)
}

func (e *Engine) latestCompletion(ctx context.Context, workflowID, jobID int64) (time.Time, bool, error) {
	results, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Result], error) {
		return e.Store.Results().List(ctx, workflowID, store.ResultListFilter{JobID: jobID, HasJobID: true, AllRuns: true}, store.ListOptions{Offset: offset, Limit: limit})
	})
	if err != nil {
		return time.Time{}, false, err
	}
	if len(results) == 0 {
		return time.Time{}, false, nil
	}
	latest := results[0].CompletedAt
	for _, r := range results[1:] {
		if r.CompletedAt.After(latest) {
			latest = r.CompletedAt
		}
	}
	return latest, true, nil
}

// CheckInitialisation is check_initialisation(): initialise(dry-run).
func (e *Engine) CheckInitialisation(ctx context.Context, workflowID int64) (*InitialisationReport, error) {
	missing, err := e.missingInputs(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	produced, err := e.Store.Dependencies().ListJobFileRelationships(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	var existingOutputs []string
	seen := map[int64]bool{}
	for _, rel := range produced {
		if rel.Role != model.JobFileProducer || seen[rel.FileID] {
			continue
		}
		seen[rel.FileID] = true
		f, err := e.Store.Files().Get(ctx, rel.FileID)
		if err != nil {
			continue
		}
		exists, _, err := e.Files.Stat(f.Path)
		if err != nil {
			return nil, err
		}
		if exists {
			existingOutputs = append(existingOutputs, f.Name)
		}
	}
	sort.Strings(existingOutputs)

	return &InitialisationReport{
		Safe:                len(missing) == 0,
		MissingInputFiles:   missing,
		ExistingOutputFiles: existingOutputs,
	}, nil
}

// ResetStatus reverts job statuses to Uninitialized: every job, or
// only Terminated/Canceled ones when failedOnly is set.
func (e *Engine) ResetStatus(ctx context.Context, workflowID int64, failedOnly, force bool) error {
	if !force {
		jobs, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Job], error) {
			return e.Store.Jobs().List(ctx, workflowID, store.JobListFilter{}, store.ListOptions{Offset: offset, Limit: limit})
		})
		if err != nil {
			return err
		}
		var active []int64
		for _, j := range jobs {
			if j.Status.IsActive() {
				active = append(active, j.ID)
			}
		}
		if len(active) > 0 {
			return errors.ActiveJobs(active)
		}
	}
	return e.Store.Workflows().ResetStatus(ctx, workflowID, failedOnly)
}

// ApplyResult drives the Terminated -> Uninitialized retry
// transition: given a job's freshly observed terminal result, decides
// Done, Terminated, or (if the job's FailureHandler permits) a retry
// back to Uninitialized.
func (e *Engine) ApplyResult(ctx context.Context, job *model.Job, result model.Result) error {
	if result.ReturnCode == 0 {
		job.Status = model.JobDone
		return e.Store.Jobs().Update(ctx, job)
	}

	handler, err := e.failureHandlerByName(ctx, job.WorkflowID, job.FailureHandlerName)
	if err != nil {
		return err
	}
	if handler.AllowsRetry(result.ReturnCode, job.RetryCount) {
		job.RetryCount++
		job.Status = model.JobUninitialized
		return e.Store.Jobs().Update(ctx, job)
	}

	job.Status = model.JobTerminated
	return e.Store.Jobs().Update(ctx, job)
}

func (e *Engine) failureHandlerByName(ctx context.Context, workflowID int64, name string) (*model.FailureHandler, error) {
	if name == "" {
		return nil, nil
	}
	handlers, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.FailureHandler], error) {
		return e.Store.FailureHandlers().List(ctx, workflowID, store.ListOptions{Offset: offset, Limit: limit})
	})
	if err != nil {
		return nil, err
	}
	for i := range handlers {
		if handlers[i].Name == name {
			return &handlers[i], nil
		}
	}
	return nil, nil
}

// missingInputs returns the names of required-existing files that are
// not present on disk, plus any user-data the store reports as missing.
func (e *Engine) missingInputs(ctx context.Context, workflowID int64) ([]string, error) {
	required, err := e.Store.Files().ListRequiredExisting(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, f := range required {
		exists, _, err := e.Files.Stat(f.Path)
		if err != nil {
			return nil, err
		}
		if !exists {
			missing = append(missing, f.Name)
		}
	}

	missingUD, err := e.Store.UserData().ListMissing(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	for _, u := range missingUD {
		missing = append(missing, u.Name)
	}

	sort.Strings(missing)
	return missing, nil
}

// UnblockReady is the Blocked -> Ready transition:
// any Blocked job whose blockers have all reached Done becomes Ready.
// Workers call this after every job completion so downstream jobs open
// up without a full re-initialise. Returns the names of jobs unblocked.
func (e *Engine) UnblockReady(ctx context.Context, workflowID int64) ([]string, error) {
	jobs, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Job], error) {
		return e.Store.Jobs().List(ctx, workflowID, store.JobListFilter{}, store.ListOptions{Offset: offset, Limit: limit})
	})
	if err != nil {
		return nil, err
	}
	statusByID := make(map[int64]model.JobStatus, len(jobs))
	for _, j := range jobs {
		statusByID[j.ID] = j.Status
	}

	deps, err := e.Store.Dependencies().ListJobDependencies(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	blockersOf := make(map[int64][]int64)
	for _, d := range deps {
		blockersOf[d.BlockedJobID] = append(blockersOf[d.BlockedJobID], d.BlockerJobID)
	}

	var unblocked []string
	for _, j := range jobs {
		if j.Status != model.JobBlocked {
			continue
		}
		ready := true
		for _, blockerID := range blockersOf[j.ID] {
			if statusByID[blockerID] != model.JobDone {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		j.Status = model.JobReady
		if err := e.Store.Jobs().Update(ctx, &j); err != nil {
			return nil, err
		}
		unblocked = append(unblocked, j.Name)
	}
	sort.Strings(unblocked)
	return unblocked, nil
}

// recomputeReadiness moves every Uninitialized job to Ready (no
// unsatisfied blockers) or Blocked (at least one). Blockers already encode the implicit file/user-data
// producer edges the resolver added, so checking JobDependency alone is
// sufficient once required-existing inputs have cleared missingInputs.
func (e *Engine) recomputeReadiness(ctx context.Context, workflowID int64) error {
	jobs, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Job], error) {
		return e.Store.Jobs().List(ctx, workflowID, store.JobListFilter{}, store.ListOptions{Offset: offset, Limit: limit})
	})
	if err != nil {
		return err
	}
	statusByID := make(map[int64]model.JobStatus, len(jobs))
	for _, j := range jobs {
		statusByID[j.ID] = j.Status
	}

	deps, err := e.Store.Dependencies().ListJobDependencies(ctx, workflowID)
	if err != nil {
		return err
	}
	blockersOf := make(map[int64][]int64)
	for _, d := range deps {
		blockersOf[d.BlockedJobID] = append(blockersOf[d.BlockedJobID], d.BlockerJobID)
	}

	for _, j := range jobs {
		if j.Status != model.JobUninitialized {
			continue
		}
		ready := true
		for _, blockerID := range blockersOf[j.ID] {
			if statusByID[blockerID] != model.JobDone {
				ready = false
				break
			}
		}
		if ready {
			j.Status = model.JobReady
		} else {
			j.Status = model.JobBlocked
		}
		if err := e.Store.Jobs().Update(ctx, &j); err != nil {
			return err
		}
	}
	return nil
}
