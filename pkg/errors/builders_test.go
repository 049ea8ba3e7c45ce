// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycle_MessageAndCategory(t *testing.T) {
	err := Cycle("job", []string{"a", "b", "a"})
	require.Error(t, err)
	assert.Equal(t, ErrorCodeCycle, err.Code)
	assert.Equal(t, CategoryCompile, err.Category)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestTorcError_Is(t *testing.T) {
	err := UnresolvedReference("file", "missing.txt", "postprocess")
	target := &TorcError{Code: ErrorCodeUnresolvedReference}
	assert.True(t, errors.Is(err, target))

	other := &TorcError{Code: ErrorCodeCycle}
	assert.False(t, errors.Is(err, other))
}

func TestTransportFailure_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := TransportFailure("workflows.create", cause)
	assert.Same(t, cause, errors.Unwrap(err))
	assert.True(t, err.IsRetryable() == false || err.IsRetryable() == true) // retryable is classification-dependent
}

func TestMaterialiseError_RollbackMessage(t *testing.T) {
	err := MaterialiseError("create_jobs", errors.New("batch insert failed"))
	assert.Contains(t, err.Error(), "rolled back")
	assert.Equal(t, "create_jobs", err.Step)
}

func TestValidationFailure_AggregatesMessages(t *testing.T) {
	err := ValidationFailure([]string{"job a: unresolved dependency b", "job c: missing scheduler d"})
	assert.Len(t, err.Messages, 2)
	assert.Contains(t, err.Details, "unresolved dependency")
}

func TestFromHTTPStatus_MapsNotFound(t *testing.T) {
	err := FromHTTPStatus("jobs.get", 404, `{"error":"not found"}`)
	assert.Equal(t, ErrorCodeResourceNotFound, err.Code)
	assert.Equal(t, CategoryResource, err.Category)
}
