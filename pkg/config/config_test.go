// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefault(t *testing.T) {
	config := NewDefault()
	require.NotNil(t, config)

	assert.False(t, config.Debug)
	assert.False(t, config.InsecureSkipVerify)
	assert.Equal(t, "torc-client/1.0", config.UserAgent)
	assert.Equal(t, "v1", config.APIVersion)

	assert.Greater(t, config.Timeout, time.Duration(0))
	assert.Positive(t, config.MaxRetries)
	assert.Greater(t, config.RetryWaitMin, time.Duration(0))
	assert.Greater(t, config.RetryWaitMax, time.Duration(0))
}

func TestConfigLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		expected func(*Config)
	}{
		{
			name:    "base URL from environment",
			envVars: map[string]string{"TORC_SERVER_URL": "https://torc.example.com"},
			expected: func(config *Config) {
				assert.Equal(t, "https://torc.example.com", config.BaseURL)
			},
		},
		{
			name:    "timeout from environment",
			envVars: map[string]string{"TORC_TIMEOUT": "60s"},
			expected: func(config *Config) {
				assert.Equal(t, 60*time.Second, config.Timeout)
			},
		},
		{
			name:    "user agent from environment",
			envVars: map[string]string{"TORC_USER_AGENT": "custom-client/2.0"},
			expected: func(config *Config) {
				assert.Equal(t, "custom-client/2.0", config.UserAgent)
			},
		},
		{
			name:    "max retries from environment",
			envVars: map[string]string{"TORC_MAX_RETRIES": "5"},
			expected: func(config *Config) {
				assert.Equal(t, 5, config.MaxRetries)
			},
		},
		{
			name:    "API version from environment",
			envVars: map[string]string{"TORC_API_VERSION": "v2"},
			expected: func(config *Config) {
				assert.Equal(t, "v2", config.APIVersion)
			},
		},
		{
			name:    "debug from environment",
			envVars: map[string]string{"TORC_DEBUG": "true"},
			expected: func(config *Config) {
				assert.True(t, config.Debug)
			},
		},
		{
			name:    "insecure skip verify from environment",
			envVars: map[string]string{"TORC_INSECURE_SKIP_VERIFY": "true"},
			expected: func(config *Config) {
				assert.True(t, config.InsecureSkipVerify)
			},
		},
		{
			name: "all environment variables",
			envVars: map[string]string{
				"TORC_SERVER_URL":           "https://torc.example.com",
				"TORC_TIMEOUT":              "120s",
				"TORC_USER_AGENT":           "test-client/1.0",
				"TORC_MAX_RETRIES":          "10",
				"TORC_API_VERSION":          "v2",
				"TORC_DEBUG":                "true",
				"TORC_INSECURE_SKIP_VERIFY": "true",
			},
			expected: func(config *Config) {
				assert.Equal(t, "https://torc.example.com", config.BaseURL)
				assert.Equal(t, "test-client/1.0", config.UserAgent)
				assert.Equal(t, 10, config.MaxRetries)
				assert.Equal(t, "v2", config.APIVersion)
				assert.True(t, config.Debug)
				assert.True(t, config.InsecureSkipVerify)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			config := NewDefault()
			config.Load()

			require.NotNil(t, config)
			tt.expected(config)
		})
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
		expectedErr error
	}{
		{
			name:   "valid config",
			config: &Config{BaseURL: "https://example.com", Timeout: 30 * time.Second, MaxRetries: 3},
		},
		{
			name:        "missing base URL",
			config:      &Config{Timeout: 30 * time.Second, MaxRetries: 3},
			expectError: true,
			expectedErr: ErrMissingBaseURL,
		},
		{
			name:        "empty base URL",
			config:      &Config{BaseURL: "", Timeout: 30 * time.Second, MaxRetries: 3},
			expectError: true,
			expectedErr: ErrMissingBaseURL,
		},
		{
			name:        "invalid timeout",
			config:      &Config{BaseURL: "https://example.com", Timeout: -1 * time.Second, MaxRetries: 3},
			expectError: true,
			expectedErr: ErrInvalidTimeout,
		},
		{
			name:        "invalid max retries",
			config:      &Config{BaseURL: "https://example.com", Timeout: 30 * time.Second, MaxRetries: -1},
			expectError: true,
			expectedErr: ErrInvalidMaxRetries,
		},
		{
			name:        "zero timeout",
			config:      &Config{BaseURL: "https://example.com", Timeout: 0, MaxRetries: 3},
			expectError: true,
			expectedErr: ErrInvalidTimeout,
		},
		{
			name:   "zero max retries is valid",
			config: &Config{BaseURL: "https://example.com", Timeout: 30 * time.Second, MaxRetries: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if tt.expectError {
				assert.Error(t, err)
				if tt.expectedErr != nil {
					assert.Equal(t, tt.expectedErr, err)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigMutation(t *testing.T) {
	config := NewDefault()

	config.BaseURL = "https://example.com"
	assert.Equal(t, "https://example.com", config.BaseURL)

	config.Timeout = 60 * time.Second
	assert.Equal(t, 60*time.Second, config.Timeout)

	config.MaxRetries = 5
	assert.Equal(t, 5, config.MaxRetries)

	config.Debug = true
	assert.True(t, config.Debug)

	config.InsecureSkipVerify = true
	assert.True(t, config.InsecureSkipVerify)

	config.UserAgent = "test-client/1.0"
	assert.Equal(t, "test-client/1.0", config.UserAgent)

	config.APIVersion = "v2"
	assert.Equal(t, "v2", config.APIVersion)
}

func TestConfigDefaults(t *testing.T) {
	config := NewDefault()

	assert.Equal(t, "http://localhost:8080", config.BaseURL)
	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, "torc-client/1.0", config.UserAgent)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, "v1", config.APIVersion)
	assert.False(t, config.Debug)
	assert.False(t, config.InsecureSkipVerify)
}
