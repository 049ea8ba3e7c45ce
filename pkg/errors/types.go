// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package errors implements the structured error taxonomy the Torc core
// uses to report failures from every layer (spec parsing, expansion,
// resolution, validation, materialisation, status/action engines, the
// submission orchestrator and the store client) without ever swallowing
// the originating cause.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ErrorCode enumerates every structured error kind the core can return.
type ErrorCode string

const (
	// Spec parsing and compilation
	ErrorCodeParse                 ErrorCode = "PARSE_ERROR"
	ErrorCodeParameterShapeMismatch ErrorCode = "PARAMETER_SHAPE_MISMATCH"
	ErrorCodeDuplicateName          ErrorCode = "DUPLICATE_NAME"
	ErrorCodeDuplicateExpandedName   ErrorCode = "DUPLICATE_EXPANDED_NAME"
	ErrorCodeUnresolvedReference     ErrorCode = "UNRESOLVED_REFERENCE"
	ErrorCodeAmbiguousReference      ErrorCode = "AMBIGUOUS_REFERENCE"
	ErrorCodeCycle                   ErrorCode = "CYCLE"
	ErrorCodeMultipleProducers       ErrorCode = "MULTIPLE_PRODUCERS"
	ErrorCodeValidationFailure       ErrorCode = "VALIDATION_FAILURE"

	// Materialisation
	ErrorCodeMaterialise ErrorCode = "MATERIALISE_ERROR"

	// Status / readiness engine
	ErrorCodeMissingInputs ErrorCode = "MISSING_INPUTS"
	ErrorCodeActiveJobs    ErrorCode = "ACTIVE_JOBS"

	// Orchestrator / authorisation
	ErrorCodeUnauthorisedDelete ErrorCode = "UNAUTHORISED_DELETE"

	// Transport against the external store
	ErrorCodeTransportFailure ErrorCode = "TRANSPORT_FAILURE"
	ErrorCodeVersionMismatch  ErrorCode = "VERSION_MISMATCH"

	// Generic HTTP/store classification, used when a store RPC fails for
	// a reason the core did not itself detect.
	ErrorCodeNetworkTimeout     ErrorCode = "NETWORK_TIMEOUT"
	ErrorCodeConnectionRefused  ErrorCode = "CONNECTION_REFUSED"
	ErrorCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrorCodePermissionDenied   ErrorCode = "PERMISSION_DENIED"
	ErrorCodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	ErrorCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrorCodeResourceNotFound   ErrorCode = "RESOURCE_NOT_FOUND"
	ErrorCodeConflict           ErrorCode = "CONFLICT"
	ErrorCodeRateLimited        ErrorCode = "RATE_LIMITED"
	ErrorCodeServerInternal     ErrorCode = "SERVER_INTERNAL"
	ErrorCodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	ErrorCodeContextCanceled    ErrorCode = "CONTEXT_CANCELED"
	ErrorCodeDeadlineExceeded   ErrorCode = "DEADLINE_EXCEEDED"
	ErrorCodeUnknown            ErrorCode = "UNKNOWN"
)

// ErrorCategory groups related error codes for caller-side handling.
type ErrorCategory string

const (
	CategoryCompile       ErrorCategory = "COMPILE"
	CategoryMaterialise   ErrorCategory = "MATERIALISE"
	CategoryReadiness     ErrorCategory = "READINESS"
	CategoryAuthorisation ErrorCategory = "AUTHORISATION"
	CategoryNetwork       ErrorCategory = "NETWORK"
	CategoryAuth          ErrorCategory = "AUTHENTICATION"
	CategoryResource      ErrorCategory = "RESOURCE"
	CategoryServer        ErrorCategory = "SERVER"
	CategoryContext       ErrorCategory = "CONTEXT"
	CategoryUnknown       ErrorCategory = "UNKNOWN"
)

// TorcError is the structured error every core layer returns.
type TorcError struct {
	Code      ErrorCode     `json:"code"`
	Category  ErrorCategory `json:"category"`
	Message   string        `json:"message"`
	Details   string        `json:"details,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Retryable bool          `json:"retryable"`
	Cause     error         `json:"-"`
}

func (e *TorcError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *TorcError) Unwrap() error { return e.Cause }

// Is reports whether target is a TorcError with the same code, so callers
// can write errors.Is(err, &errors.TorcError{Code: errors.ErrorCodeCycle}).
func (e *TorcError) Is(target error) bool {
	if t, ok := target.(*TorcError); ok {
		return e.Code == t.Code
	}
	return false
}

func (e *TorcError) IsRetryable() bool { return e.Retryable }

func (e *TorcError) IsTemporary() bool {
	return e.Category == CategoryNetwork ||
		e.Code == ErrorCodeServerInternal ||
		e.Code == ErrorCodeStoreUnavailable ||
		e.Code == ErrorCodeRateLimited
}

func newTorcError(code ErrorCode, message string) *TorcError {
	return &TorcError{
		Code:      code,
		Category:  categoryFor(code),
		Message:   message,
		Timestamp: time.Now(),
		Retryable: isRetryable(code),
	}
}

func newTorcErrorWithCause(code ErrorCode, message string, cause error) *TorcError {
	e := newTorcError(code, message)
	e.Cause = cause
	return e
}

func categoryFor(code ErrorCode) ErrorCategory {
	switch code {
	case ErrorCodeParse, ErrorCodeParameterShapeMismatch, ErrorCodeDuplicateName,
		ErrorCodeDuplicateExpandedName, ErrorCodeUnresolvedReference,
		ErrorCodeAmbiguousReference, ErrorCodeCycle, ErrorCodeMultipleProducers,
		ErrorCodeValidationFailure:
		return CategoryCompile
	case ErrorCodeMaterialise:
		return CategoryMaterialise
	case ErrorCodeMissingInputs, ErrorCodeActiveJobs:
		return CategoryReadiness
	case ErrorCodeUnauthorisedDelete:
		return CategoryAuthorisation
	case ErrorCodeNetworkTimeout, ErrorCodeConnectionRefused:
		return CategoryNetwork
	case ErrorCodeInvalidCredentials, ErrorCodeUnauthorized, ErrorCodePermissionDenied:
		return CategoryAuth
	case ErrorCodeResourceNotFound, ErrorCodeConflict, ErrorCodeRateLimited:
		return CategoryResource
	case ErrorCodeServerInternal, ErrorCodeStoreUnavailable, ErrorCodeTransportFailure, ErrorCodeVersionMismatch:
		return CategoryServer
	case ErrorCodeContextCanceled, ErrorCodeDeadlineExceeded:
		return CategoryContext
	default:
		return CategoryUnknown
	}
}

func isRetryable(code ErrorCode) bool {
	switch code {
	case ErrorCodeNetworkTimeout, ErrorCodeConnectionRefused, ErrorCodeServerInternal,
		ErrorCodeStoreUnavailable, ErrorCodeRateLimited:
		return true
	default:
		return false
	}
}

// mapHTTPStatusToErrorCode classifies a raw store HTTP response when the
// store did not return a structured TorcError body itself.
func mapHTTPStatusToErrorCode(statusCode int) ErrorCode {
	switch statusCode {
	case http.StatusBadRequest:
		return ErrorCodeInvalidRequest
	case http.StatusUnauthorized:
		return ErrorCodeUnauthorized
	case http.StatusForbidden:
		return ErrorCodePermissionDenied
	case http.StatusNotFound:
		return ErrorCodeResourceNotFound
	case http.StatusConflict:
		return ErrorCodeConflict
	case http.StatusTooManyRequests:
		return ErrorCodeRateLimited
	case http.StatusInternalServerError:
		return ErrorCodeServerInternal
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ErrorCodeStoreUnavailable
	default:
		return ErrorCodeUnknown
	}
}
