// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package expand implements the parameter expander: a pure
// function over spec.WorkflowSpec values that turns templated job/file
// entries into concrete entities via cartesian (product) or
// positional (zip) parameter combination, substituting ${key}
// placeholders into every string field of the template.
package expand

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/spec"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)\}`)

// Expand returns a new WorkflowSpec with every parameterised job and
// file entry replaced by its concrete expansions. It never mutates the
// input.
func Expand(ws *spec.WorkflowSpec) (*spec.WorkflowSpec, error) {
	out := *ws

	jobs := make([]spec.JobSpec, 0, len(ws.Jobs))
	seenJobNames := make(map[string]string) // expanded name -> template name
	for _, j := range ws.Jobs {
		if !j.UseParameters || len(j.Parameters) == 0 {
			if err := claimName(seenJobNames, j.Name, j.Name); err != nil {
				return nil, err
			}
			jobs = append(jobs, j)
			continue
		}
		bindings, err := bindingsFor(j.Name, j.Parameters, j.ParameterMode)
		if err != nil {
			return nil, err
		}
		for _, binding := range bindings {
			ej := substituteJob(j, binding)
			if err := claimName(seenJobNames, ej.Name, j.Name); err != nil {
				return nil, err
			}
			jobs = append(jobs, ej)
		}
	}
	out.Jobs = jobs

	files := make([]spec.FileSpec, 0, len(ws.Files))
	seenFileNames := make(map[string]string)
	for _, fl := range ws.Files {
		if !fl.UseParameters || len(fl.Parameters) == 0 {
			if err := claimName(seenFileNames, fl.Name, fl.Name); err != nil {
				return nil, err
			}
			files = append(files, fl)
			continue
		}
		bindings, err := bindingsFor(fl.Name, fl.Parameters, fl.ParameterMode)
		if err != nil {
			return nil, err
		}
		for _, binding := range bindings {
			ef := substituteFile(fl, binding)
			if err := claimName(seenFileNames, ef.Name, fl.Name); err != nil {
				return nil, err
			}
			files = append(files, ef)
		}
	}
	out.Files = files

	return &out, nil
}

func claimName(seen map[string]string, name, template string) error {
	if prior, ok := seen[name]; ok {
		return errors.DuplicateExpandedName(template, map[string]string{"name": name, "collides_with_template": prior})
	}
	seen[name] = template
	return nil
}

// bindingsFor computes the ordered list of key->value tuples a
// template's parameter map expands to.
func bindingsFor(templateName string, params map[string][]string, mode spec.ParameterMode) ([]map[string]string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	switch mode {
	case spec.ParameterModeZip, "":
		n := -1
		for _, k := range keys {
			if n == -1 {
				n = len(params[k])
			} else if len(params[k]) != n {
				return nil, errors.ParameterShapeMismatch(templateName, string(spec.ParameterModeZip), k)
			}
		}
		bindings := make([]map[string]string, n)
		for i := 0; i < n; i++ {
			b := make(map[string]string, len(keys))
			for _, k := range keys {
				b[k] = params[k][i]
			}
			bindings[i] = b
		}
		return bindings, nil

	case spec.ParameterModeProduct:
		return cartesianProduct(keys, params), nil

	default:
		return nil, fmt.Errorf("unknown parameter mode %q", mode)
	}
}

func cartesianProduct(keys []string, params map[string][]string) []map[string]string {
	bindings := []map[string]string{{}}
	for _, k := range keys {
		var next []map[string]string
		for _, existing := range bindings {
			for _, v := range params[k] {
				b := make(map[string]string, len(existing)+1)
				for ek, ev := range existing {
					b[ek] = ev
				}
				b[k] = v
				next = append(next, b)
			}
		}
		bindings = next
	}
	return bindings
}

func substitute(s string, binding map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		if v, ok := binding[key]; ok {
			return v
		}
		return match
	})
}

func substituteRefList(r spec.RefList, binding map[string]string) spec.RefList {
	if !r.IsSet() {
		return r
	}
	out := spec.RefList{}
	if r.Exact != nil {
		out.Exact = make([]string, len(r.Exact))
		for i, v := range r.Exact {
			out.Exact[i] = substitute(v, binding)
		}
	}
	if r.Regexes != nil {
		out.Regexes = make([]string, len(r.Regexes))
		for i, v := range r.Regexes {
			out.Regexes[i] = substitute(v, binding)
		}
	}
	return out
}

func substituteJob(j spec.JobSpec, binding map[string]string) spec.JobSpec {
	out := j
	out.Name = substitute(j.Name, binding)
	out.Command = substitute(j.Command, binding)
	out.InvocationScript = substitute(j.InvocationScript, binding)
	out.ResourceRequirements = substitute(j.ResourceRequirements, binding)
	out.Scheduler = substitute(j.Scheduler, binding)
	out.FailureHandler = substitute(j.FailureHandler, binding)
	out.DependsOn = substituteRefList(j.DependsOn, binding)
	out.InputFiles = substituteRefList(j.InputFiles, binding)
	out.OutputFiles = substituteRefList(j.OutputFiles, binding)
	out.InputUserData = substituteRefList(j.InputUserData, binding)
	out.OutputUserData = substituteRefList(j.OutputUserData, binding)
	out.UseParameters = false
	out.Parameters = nil
	return out
}

func substituteFile(fl spec.FileSpec, binding map[string]string) spec.FileSpec {
	out := fl
	out.Name = substitute(fl.Name, binding)
	out.Path = substitute(fl.Path, binding)
	out.UseParameters = false
	out.Parameters = nil
	return out
}
