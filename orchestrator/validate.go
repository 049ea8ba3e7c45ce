// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"github.com/NREL/torc/expand"
	"github.com/NREL/torc/model"
	"github.com/NREL/torc/resolve"
	"github.com/NREL/torc/spec"
	"github.com/NREL/torc/validate"
)

// ValidateSpec is the validate command's dry run over the whole creation
// pipeline that never touches the store. It accumulates every problem
// (schema violations, parse errors, expansion failures, semantic
// check failures) instead of stopping at the first, and reports the
// before/after expansion counts.
func ValidateSpec(path string, skipChecks bool) (*spec.ValidationReport, error) {
	report := &spec.ValidationReport{}

	data, schemaErrs, err := spec.ReadForValidation(path)
	if err != nil {
		return nil, err
	}
	report.Errors = append(report.Errors, schemaErrs...)

	ws, err := spec.ParseBytes(data, path)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, nil
	}

	report.Summary.JobCountBeforeExpansion = len(ws.Jobs)
	report.Summary.FileCountBeforeExpansion = len(ws.Files)
	report.Summary.UserDataCount = len(ws.UserData)
	report.Summary.ActionCount = len(ws.WorkflowActions)
	report.Summary.SchedulerCount = len(ws.SlurmSchedulers)
	for _, a := range ws.WorkflowActions {
		if a.ActionType == string(model.ActionScheduleNodes) {
			report.Summary.HasScheduleNodesAction = true
		}
	}
	if !report.Summary.HasScheduleNodesAction {
		report.Warnings = append(report.Warnings,
			"spec has no schedule_nodes action; the workflow can only run via run-local or externally started workers")
	}

	expanded, err := expand.Expand(ws)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, nil
	}
	report.Summary.JobCountAfterExpansion = len(expanded.Jobs)
	report.Summary.FileCountAfterExpansion = len(expanded.Files)

	rs, err := resolve.ResolveAll(expanded)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report, nil
	}

	errs, warnings := validate.CollectIssues(rs, validate.Options{SkipChecks: skipChecks})
	report.Errors = append(report.Errors, errs...)
	report.Warnings = append(report.Warnings, warnings...)
	return report, nil
}
