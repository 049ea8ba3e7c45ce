// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package spec

import (
	"bytes"
	"encoding/json"
	"fmt"

	torcerrors "github.com/NREL/torc/pkg/errors"
)

func decodeJSON(data []byte, path string) (*WorkflowSpec, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, torcerrors.ParseError(path, lineFromJSONError(err), fmt.Sprintf("decoding json: %v", err), err)
	}
	return doc.toWorkflowSpec(FormatJSON), nil
}

// EncodeJSON serializes a WorkflowSpec back to indented JSON, used by
// the round-trip test.
func EncodeJSON(ws *WorkflowSpec) ([]byte, error) {
	return json.MarshalIndent(ws.toDocument(), "", "  ")
}

func lineFromJSONError(err error) int {
	if se, ok := err.(*json.SyntaxError); ok {
		return int(se.Offset)
	}
	return 0
}
