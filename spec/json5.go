// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package spec

import (
	"fmt"

	json5 "github.com/titanous/json5"

	torcerrors "github.com/NREL/torc/pkg/errors"
)

func decodeJSON5(data []byte, path string) (*WorkflowSpec, error) {
	var doc document
	if err := json5.Unmarshal(data, &doc); err != nil {
		return nil, torcerrors.ParseError(path, 0, fmt.Sprintf("decoding json5: %v", err), err)
	}
	if doc.Name == "" || len(doc.Jobs) == 0 {
		return nil, torcerrors.ParseError(path, 0, "json5 document missing name or jobs", nil)
	}
	return doc.toWorkflowSpec(FormatJSON5), nil
}
