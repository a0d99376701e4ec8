// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	stderrors "errors"
	"os/exec"
)

// WrapExecError converts a failed sbatch/sacct/scancel invocation into a
// structured ClusterError. stderr is the captured standard error of the
// invocation, if any was collected; it is classified via ClassifyStderr.
func WrapExecError(err error, stderr string) *ClusterError {
	if err == nil {
		return nil
	}

	var clusterErr *ClusterError
	if stderrors.As(err, &clusterErr) {
		return clusterErr
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return NewWithCause(ClassifyStderr(stderr), "cluster tool exited with an error", err)
	}

	var execErr *exec.Error
	if stderrors.As(err, &execErr) {
		return NewWithCause(ErrorCodeControllerUnreachable, "cluster tool could not be started", err)
	}

	if stderr != "" {
		return NewWithCause(ClassifyStderr(stderr), "cluster tool exited with an error", err)
	}

	return NewWithCause(ErrorCodeUnknown, err.Error(), err)
}

// IsRetryableError reports whether err, wrapped or not, should be retried.
func IsRetryableError(err error) bool {
	var clusterErr *ClusterError
	if stderrors.As(err, &clusterErr) {
		return clusterErr.IsRetryable()
	}
	return false
}

// GetErrorCode extracts the ErrorCode from any error, defaulting to
// ErrorCodeUnknown when err is not a *ClusterError.
func GetErrorCode(err error) ErrorCode {
	var clusterErr *ClusterError
	if stderrors.As(err, &clusterErr) {
		return clusterErr.Code
	}
	return ErrorCodeUnknown
}
