// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package cluster

import "context"

// ResourceHints carries the per-job resource requests the Submission Loop
// derives from the operational options: a memory request already scaled
// by pack size, and an optional wall-clock limit.
type ResourceHints struct {
	// MemoryKB is the total job memory request in kilobytes. Zero means
	// no memory hint is passed through.
	MemoryKB uint64

	// TimeoutMinutes is the job's wall-clock limit. Zero means unset.
	TimeoutMinutes int

	// OutputPattern is the per-job stdout/stderr path pattern, e.g.
	// "/out/slurm-%j.out".
	OutputPattern string
}

// Adapter is the Cluster Adapter boundary (§4.C): the core's sole means of
// submitting, polling and cancelling jobs on the underlying batch
// scheduler. Implementations encapsulate the cluster's CLI or API; the
// core treats this interface as opaque.
type Adapter interface {
	// Submit packs commands into a single cluster job on the given
	// partition/account/QoS and returns its job ID. A *SubmissionFailure
	// with Transient()==true means the caller should re-queue commands
	// and continue; any other error is fatal.
	Submit(ctx context.Context, partition, account, qos string, commands []string, hints ResourceHints) (jobID uint32, err error)

	// QueryState returns the job's current state tag, and its accounted
	// CPU time in seconds when the state is COMPLETED. A *TransientFailure
	// means the caller should leave the job in place and retry next poll.
	QueryState(ctx context.Context, jobID uint32) (tag JobStateTag, cpuSeconds float64, err error)

	// Cancel best-effort cancels a job; it silently tolerates the job
	// already being gone.
	Cancel(ctx context.Context, jobID uint32) error
}
