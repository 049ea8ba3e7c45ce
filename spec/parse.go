// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	torcerrors "github.com/NREL/torc/pkg/errors"
)

// Parse reads a declarative workflow document from path and decodes it
// into a WorkflowSpec. The format is chosen by file extension;
// unrecognised extensions fall back to trying JSON, then JSON5, then
// YAML, returning the first decoder that succeeds.
func Parse(path string) (*WorkflowSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, torcerrors.ParseError(path, 0, fmt.Sprintf("reading file: %v", err), err)
	}
	return ParseBytes(data, path)
}

// ParseBytes decodes raw bytes using the format implied by path's
// extension (or the JSON -> JSON5 -> YAML fallback chain when
// the extension is unrecognised or absent).
func ParseBytes(data []byte, path string) (*WorkflowSpec, error) {
	switch format := formatFromExtension(path); format {
	case FormatJSON:
		return decodeJSON(data, path)
	case FormatJSON5:
		return decodeJSON5(data, path)
	case FormatYAML:
		return decodeYAML(data, path)
	case FormatKDL:
		return decodeKDL(data, path)
	default:
		return parseWithFallback(data, path)
	}
}

func formatFromExtension(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".json5":
		return FormatJSON5
	case ".yaml", ".yml":
		return FormatYAML
	case ".kdl":
		return FormatKDL
	default:
		return ""
	}
}

// parseWithFallback tries each text-based decoder in turn, returning
// the first one that decodes cleanly. Decoders are ordered from most
// to least strict so a well-formed JSON document is never accidentally
// parsed as looser JSON5 or YAML.
func parseWithFallback(data []byte, path string) (*WorkflowSpec, error) {
	var errs []string

	if ws, err := decodeJSON(data, path); err == nil {
		return ws, nil
	} else {
		errs = append(errs, "json: "+err.Error())
	}

	if ws, err := decodeJSON5(data, path); err == nil {
		return ws, nil
	} else {
		errs = append(errs, "json5: "+err.Error())
	}

	if ws, err := decodeYAML(data, path); err == nil {
		return ws, nil
	} else {
		errs = append(errs, "yaml: "+err.Error())
	}

	return nil, torcerrors.ParseError(path, 0,
		fmt.Sprintf("no decoder accepted the document: %s", strings.Join(errs, "; ")), nil)
}
