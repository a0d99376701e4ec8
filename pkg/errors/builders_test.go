// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapExecError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		stderr   string
		expected ErrorCode
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "existing ClusterError",
			err:      New(ErrorCodeSocketTimeout, "timeout"),
			expected: ErrorCodeSocketTimeout,
		},
		{
			name:     "exec.Error - binary not found",
			err:      &exec.Error{Name: "sbatch", Err: errors.New("executable file not found in $PATH")},
			expected: ErrorCodeControllerUnreachable,
		},
		{
			name:     "regular error",
			err:      fmt.Errorf("unknown failure"),
			expected: ErrorCodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WrapExecError(tt.err, tt.stderr)

			if tt.err == nil {
				assert.Nil(t, result)
				return
			}
			if !assert.NotNil(t, result) {
				return
			}
			assert.Equal(t, tt.expected, result.Code)
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"retryable ClusterError", New(ErrorCodeSocketTimeout, "timeout"), true},
		{"non-retryable ClusterError", New(ErrorCodeRejected, "bad partition"), false},
		{"plain error", fmt.Errorf("connection timeout"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.retryable {
				t.Errorf("IsRetryableError() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorCode
	}{
		{"ClusterError", New(ErrorCodeSocketTimeout, "timeout"), ErrorCodeSocketTimeout},
		{"regular error", fmt.Errorf("regular error"), ErrorCodeUnknown},
		{"nil error", nil, ErrorCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestClassifyStderr(t *testing.T) {
	tests := []struct {
		name     string
		stderr   string
		expected ErrorCode
	}{
		{"socket timeout", "sbatch: error: Socket timed out on send/recv operation", ErrorCodeSocketTimeout},
		{"controller unreachable", "sbatch: error: Unable to contact slurm controller", ErrorCodeControllerUnreachable},
		{"slurmdbd down", "sacct: error: slurmdbd: Connection refused", ErrorCodeControllerUnreachable},
		{"invalid partition", "sbatch: error: invalid partition specified", ErrorCodeRejected},
		{"invalid account", "sbatch: error: Invalid Account or Account/Partition combination specified", ErrorCodeRejected},
		{"empty", "", ErrorCodeMalformedOutput},
		{"unrecognized", "some unrelated message", ErrorCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyStderr(tt.stderr))
		})
	}
}

func TestParseSubmittedJobID(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		expectedID uint32
		expectedOK bool
	}{
		{"typical output", "Submitted batch job 1234567\n", 1234567, true},
		{"no match", "sbatch: error: something went wrong", 0, false},
		{"empty", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ParseSubmittedJobID(tt.output)
			assert.Equal(t, tt.expectedOK, ok)
			assert.Equal(t, tt.expectedID, id)
		})
	}
}
