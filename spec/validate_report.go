// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package spec

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	json5 "github.com/titanous/json5"
)

// ValidationSummary is the count block of a ValidationReport.
type ValidationSummary struct {
	JobCountBeforeExpansion  int  `json:"job_count_before_expansion"`
	JobCountAfterExpansion   int  `json:"job_count_after_expansion"`
	FileCountBeforeExpansion int  `json:"file_count_before_expansion"`
	FileCountAfterExpansion  int  `json:"file_count_after_expansion"`
	UserDataCount            int  `json:"user_data_count"`
	ActionCount              int  `json:"action_count"`
	SchedulerCount           int  `json:"scheduler_count"`
	HasScheduleNodesAction   bool `json:"has_schedule_nodes_action"`
}

// ValidationReport is validate_spec's structured dry-run result:
// every problem found, not just the first, plus the expansion summary.
type ValidationReport struct {
	Errors   []string          `json:"errors"`
	Warnings []string          `json:"warnings"`
	Summary  ValidationSummary `json:"summary"`
}

// Valid reports whether the document passed every check.
func (r *ValidationReport) Valid() bool { return len(r.Errors) == 0 }

var compiledSchema = jsonschema.MustCompileString("workflow_spec.schema.json", workflowSpecSchema)

// SchemaCheck validates the raw document bytes against the workflow
// spec JSON Schema and returns one message per violation. KDL documents
// skip the schema pass (the schema describes the JSON object shape;
// the KDL decoder enforces structure on its own) and return nil.
func SchemaCheck(data []byte, path string) []string {
	var doc interface{}
	switch formatFromExtension(path) {
	case FormatJSON:
		if err := json.Unmarshal(data, &doc); err != nil {
			return []string{fmt.Sprintf("schema: %v", err)}
		}
	case FormatJSON5:
		if err := json5.Unmarshal(data, &doc); err != nil {
			return []string{fmt.Sprintf("schema: %v", err)}
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return []string{fmt.Sprintf("schema: %v", err)}
		}
		doc = normalizeYAML(doc)
	case FormatKDL:
		return nil
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return []string{fmt.Sprintf("schema: %v", err)}
			}
			doc = normalizeYAML(doc)
		}
	}

	err := compiledSchema.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}

	var msgs []string
	for _, unit := range ve.BasicOutput().Errors {
		if unit.Error == "" || strings.HasPrefix(unit.Error, "doesn't validate with") {
			continue
		}
		loc := unit.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		msgs = append(msgs, fmt.Sprintf("schema: %s: %s", loc, unit.Error))
	}
	if len(msgs) == 0 {
		msgs = []string{fmt.Sprintf("schema: %v", ve)}
	}
	return msgs
}

// normalizeYAML rewrites yaml.v3's map[string]interface{} trees into
// JSON-compatible values the schema validator accepts (yaml may decode
// non-string keys, which JSON cannot represent).
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprintf("%v", k)] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

// ReadForValidation reads path and runs the schema pass, returning the
// raw bytes so the caller can continue into Parse without re-reading.
func ReadForValidation(path string) ([]byte, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return data, SchemaCheck(data, path), nil
}
