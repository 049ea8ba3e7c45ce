// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package resolve implements the reference resolver: for every
// job, resolves exact names and regex name-patterns against the
// workflow's universe of files/user-data/jobs, computes the implicit
// dependency closure (a job consuming another job's output file or
// user-data gains an implicit JobDependency edge), and emits the edges
// in deterministic lexicographic order so materialised rows and
// execution-plan nodes are reproducible across runs.
package resolve

import (
	"regexp"
	"sort"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/spec"
)

// ResolvedJob is a JobSpec with every reference list resolved to a
// deduplicated, lexicographically sorted slice of concrete names.
type ResolvedJob struct {
	spec.JobSpec

	DependsOn     []string
	InputFiles    []string
	OutputFiles   []string
	InputUserData []string
	OutputUserData []string
}

// EdgeKind distinguishes why an edge exists, for diagnostics only; both
// explicit and implicit edges are materialised identically.
type EdgeKind string

const (
	EdgeExplicit EdgeKind = "explicit"
	EdgeImplicit EdgeKind = "implicit"
)

// JobDependencyEdge is a blocker->blocked pair by name.
type JobDependencyEdge struct {
	Blocker string
	Blocked string
	Kind    EdgeKind
}

// JobFileEdge is a job<->file producer/consumer edge by name.
type JobFileEdge struct {
	Job  string
	File string
	Role model.JobFileRole
}

// JobUserDataEdge is a job<->user-data producer/consumer edge by name.
type JobUserDataEdge struct {
	Job      string
	UserData string
	Role     model.JobUserDataRole
}

// ResolvedWorkflowAction is a WorkflowActionSpec whose job-name
// restriction list, if any, is validated to resolve (no regex support
// for action job lists; only job reference lists carry patterns).
type ResolvedWorkflowAction struct {
	spec.WorkflowActionSpec
}

// ResolvedSpec is the output of the resolver: a WorkflowSpec where every
// reference has been turned into a concrete, deterministically ordered
// edge list ready for validation and materialisation.
type ResolvedSpec struct {
	Name        string
	User        string
	Description string

	Jobs                 []ResolvedJob
	Files                []spec.FileSpec
	UserData             []spec.UserDataSpec
	ResourceRequirements []spec.ResourceRequirementsSpec
	SlurmSchedulers      []spec.SchedulerSpec
	FailureHandlers      []spec.FailureHandlerSpec
	WorkflowActions      []ResolvedWorkflowAction

	JobDependencies []JobDependencyEdge
	JobFiles        []JobFileEdge
	JobUserData     []JobUserDataEdge
}

// ResolveAll resolves every reference in an expanded WorkflowSpec.
func ResolveAll(ws *spec.WorkflowSpec) (*ResolvedSpec, error) {
	jobNames := nameSet(jobNameList(ws.Jobs))
	fileNames := nameSet(fileNameList(ws.Files))
	userDataNames := nameSet(userDataNameList(ws.UserData))

	out := &ResolvedSpec{
		Name:                 ws.Name,
		User:                 ws.User,
		Description:          ws.Description,
		Files:                ws.Files,
		UserData:             ws.UserData,
		ResourceRequirements: ws.ResourceRequirements,
		SlurmSchedulers:      ws.SlurmSchedulers,
		FailureHandlers:      ws.FailureHandlers,
	}

	resolvedJobs := make([]ResolvedJob, 0, len(ws.Jobs))
	fileProducers := map[string]string{}   // file name -> producer job name
	udProducers := map[string]string{}     // user-data name -> producer job name

	for _, j := range ws.Jobs {
		rj := ResolvedJob{JobSpec: j}

		deps, err := resolveRefList(j.DependsOn, "job", j.Name, jobNames)
		if err != nil {
			return nil, err
		}
		rj.DependsOn = deps

		in, err := resolveRefList(j.InputFiles, "file", j.Name, fileNames)
		if err != nil {
			return nil, err
		}
		rj.InputFiles = in

		outF, err := resolveRefList(j.OutputFiles, "file", j.Name, fileNames)
		if err != nil {
			return nil, err
		}
		rj.OutputFiles = outF
		for _, fn := range outF {
			if prior, ok := fileProducers[fn]; ok && prior != j.Name {
				return nil, errors.MultipleProducers("file", fn, []string{prior, j.Name})
			}
			fileProducers[fn] = j.Name
		}

		inUD, err := resolveRefList(j.InputUserData, "user_data", j.Name, userDataNames)
		if err != nil {
			return nil, err
		}
		rj.InputUserData = inUD

		outUD, err := resolveRefList(j.OutputUserData, "user_data", j.Name, userDataNames)
		if err != nil {
			return nil, err
		}
		rj.OutputUserData = outUD
		for _, udn := range outUD {
			if prior, ok := udProducers[udn]; ok && prior != j.Name {
				return nil, errors.MultipleProducers("user_data", udn, []string{prior, j.Name})
			}
			udProducers[udn] = j.Name
		}

		resolvedJobs = append(resolvedJobs, rj)
	}
	out.Jobs = resolvedJobs

	for _, a := range ws.WorkflowActions {
		for _, jn := range a.JobNames {
			if !jobNames[jn] {
				return nil, errors.UnresolvedReference("job", jn, "workflow_action")
			}
		}
		out.WorkflowActions = append(out.WorkflowActions, ResolvedWorkflowAction{WorkflowActionSpec: a})
	}

	// Build edges: explicit depends_on, then implicit file/user-data
	// producer->consumer closure, then sort deterministically.
	edgeSet := map[[2]string]EdgeKind{}
	for _, rj := range out.Jobs {
		for _, blocker := range rj.DependsOn {
			key := [2]string{blocker, rj.Name}
			if _, ok := edgeSet[key]; !ok {
				edgeSet[key] = EdgeExplicit
			}
		}
	}
	for _, rj := range out.Jobs {
		for _, fn := range rj.InputFiles {
			if producer, ok := fileProducers[fn]; ok && producer != rj.Name {
				key := [2]string{producer, rj.Name}
				if _, ok := edgeSet[key]; !ok {
					edgeSet[key] = EdgeImplicit
				}
			}
			out.JobFiles = append(out.JobFiles, JobFileEdge{Job: rj.Name, File: fn, Role: model.JobFileConsumer})
		}
		for _, fn := range rj.OutputFiles {
			out.JobFiles = append(out.JobFiles, JobFileEdge{Job: rj.Name, File: fn, Role: model.JobFileProducer})
		}
		for _, udn := range rj.InputUserData {
			if producer, ok := udProducers[udn]; ok && producer != rj.Name {
				key := [2]string{producer, rj.Name}
				if _, ok := edgeSet[key]; !ok {
					edgeSet[key] = EdgeImplicit
				}
			}
			out.JobUserData = append(out.JobUserData, JobUserDataEdge{Job: rj.Name, UserData: udn, Role: model.JobUserDataConsumer})
		}
		for _, udn := range rj.OutputUserData {
			out.JobUserData = append(out.JobUserData, JobUserDataEdge{Job: rj.Name, UserData: udn, Role: model.JobUserDataProducer})
		}
	}

	for key, kind := range edgeSet {
		out.JobDependencies = append(out.JobDependencies, JobDependencyEdge{Blocker: key[0], Blocked: key[1], Kind: kind})
	}
	sort.Slice(out.JobDependencies, func(i, j int) bool {
		a, b := out.JobDependencies[i], out.JobDependencies[j]
		if a.Blocker != b.Blocker {
			return a.Blocker < b.Blocker
		}
		return a.Blocked < b.Blocked
	})
	sort.Slice(out.JobFiles, func(i, j int) bool {
		a, b := out.JobFiles[i], out.JobFiles[j]
		if a.Job != b.Job {
			return a.Job < b.Job
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Role < b.Role
	})
	sort.Slice(out.JobUserData, func(i, j int) bool {
		a, b := out.JobUserData[i], out.JobUserData[j]
		if a.Job != b.Job {
			return a.Job < b.Job
		}
		if a.UserData != b.UserData {
			return a.UserData < b.UserData
		}
		return a.Role < b.Role
	})

	return out, nil
}

// resolveRefList resolves one RefList's exact names and regex patterns
// against universe, returning the deduplicated, sorted union.
func resolveRefList(r spec.RefList, kind, jobName string, universe map[string]bool) ([]string, error) {
	result := map[string]bool{}

	for _, name := range r.Exact {
		if !universe[name] {
			return nil, errors.UnresolvedReference(kind, name, jobName)
		}
		result[name] = true
	}

	for _, pattern := range r.Regexes {
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return nil, errors.UnresolvedReference(kind, pattern, jobName)
		}
		for name := range universe {
			if re.MatchString(name) {
				result[name] = true
			}
		}
	}

	out := make([]string, 0, len(result))
	for name := range result {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func jobNameList(jobs []spec.JobSpec) []string {
	names := make([]string, len(jobs))
	for i, j := range jobs {
		names[i] = j.Name
	}
	return names
}

func fileNameList(files []spec.FileSpec) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}

func userDataNameList(uds []spec.UserDataSpec) []string {
	names := make([]string, len(uds))
	for i, u := range uds {
		names[i] = u.Name
	}
	return names
}

func nameSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
