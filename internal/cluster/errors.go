// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package cluster

import clustererrors "github.com/jontk/slurm-metascheduler/pkg/errors"

// SubmissionFailure is returned by Adapter.Submit when a job could not be
// created. A transient socket-timeout failure must cause the core to put
// the commands back on the backlog and continue; any other failure is
// fatal (§4.C).
type SubmissionFailure struct {
	*clustererrors.ClusterError
}

// NewSubmissionFailure wraps a classified cluster error as a SubmissionFailure.
func NewSubmissionFailure(err *clustererrors.ClusterError) *SubmissionFailure {
	return &SubmissionFailure{ClusterError: err}
}

// Transient reports whether this submission failure should be retried
// rather than treated as fatal. Submission transience is narrower than
// the general Retryable classification: per §7, only a socket timeout
// talking to the controller is transient on submit -- any other sbatch
// failure, including malformed output, is fatal.
func (f *SubmissionFailure) Transient() bool {
	return f != nil && f.Code == clustererrors.ErrorCodeSocketTimeout
}

// TransientFailure is returned by Adapter.QueryState when the cluster
// tooling itself failed (not the job) — the job is left in place for the
// next poll.
type TransientFailure struct {
	*clustererrors.ClusterError
}

// NewTransientFailure wraps a classified cluster error as a TransientFailure.
func NewTransientFailure(err *clustererrors.ClusterError) *TransientFailure {
	return &TransientFailure{ClusterError: err}
}
