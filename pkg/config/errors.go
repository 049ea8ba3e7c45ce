// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

// Validation errors for the store client configuration.
var (
	ErrMissingBaseURL    = errors.New("torc server URL is required (set TORC_SERVER_URL or --url)")
	ErrInvalidTimeout    = errors.New("request timeout must be positive")
	ErrInvalidMaxRetries = errors.New("max retries must not be negative")
)
