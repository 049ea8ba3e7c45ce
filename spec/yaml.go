// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package spec

import (
	"bytes"
	"fmt"

	yaml "gopkg.in/yaml.v3"

	torcerrors "github.com/NREL/torc/pkg/errors"
)

func decodeYAML(data []byte, path string) (*WorkflowSpec, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, torcerrors.ParseError(path, 0, fmt.Sprintf("decoding yaml: %v", err), err)
	}
	if doc.Name == "" || len(doc.Jobs) == 0 {
		return nil, torcerrors.ParseError(path, 0, "yaml document missing name or jobs", nil)
	}
	return doc.toWorkflowSpec(FormatYAML), nil
}

// EncodeYAML serializes a WorkflowSpec back to YAML.
func EncodeYAML(ws *WorkflowSpec) ([]byte, error) {
	return yaml.Marshal(ws.toDocument())
}
