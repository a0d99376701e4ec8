// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle implements the Lifecycle Supervisor (§4.F): once per
// poll interval it classifies every live Job's cluster state and applies
// the per-class policy (re-route, retry, record, ignore, warn).
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jontk/slurm-metascheduler/internal/cluster"
	"github.com/jontk/slurm-metascheduler/internal/queuetable"
	"github.com/jontk/slurm-metascheduler/internal/registry"
	"github.com/jontk/slurm-metascheduler/pkg/logging"
	"github.com/jontk/slurm-metascheduler/pkg/metrics"
)

// ErrRetryLimitExceeded is returned by Tick when a Command's total attempts
// across all queues exceeded the configured retry bound. By the time it is
// returned, every live Job has already been cancelled.
var ErrRetryLimitExceeded = errors.New("command exceeded retry limit")

// Supervisor polls live Jobs and applies the per-state policy.
type Supervisor struct {
	adapter    cluster.Adapter
	reg        *registry.Registry
	retryLimit int
	logger     logging.Logger
	metrics    metrics.Collector
}

// New constructs a Lifecycle Supervisor. retryLimit is the maximum total
// attempts (summed across queues) a Command may accumulate before the run
// is declared fatal.
func New(adapter cluster.Adapter, reg *registry.Registry, retryLimit int, logger logging.Logger, collector metrics.Collector) *Supervisor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Supervisor{adapter: adapter, reg: reg, retryLimit: retryLimit, logger: logger, metrics: collector}
}

// Tick classifies every currently-live Job and applies its state's policy.
// sortedQueues must be this tick's Router-ordered queue list; re-routing
// walks it to find a faster home for a still-Pending Job.
func (s *Supervisor) Tick(ctx context.Context, sortedQueues []*queuetable.Queue, now time.Time) error {
	start := time.Now()
	defer logging.LogDuration(s.logger, start, "supervisor_tick")

	for _, job := range s.reg.LiveJobs() {
		if err := s.classify(ctx, job, sortedQueues, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) classify(ctx context.Context, job *registry.Job, sortedQueues []*queuetable.Queue, now time.Time) error {
	opLogger := logging.LogOperation(s.logger, "classify_job", "job_id", job.ID, "partition", job.Queue.Partition)

	tag, cpuSeconds, err := s.adapter.QueryState(ctx, job.ID)
	if err != nil {
		var tf *cluster.TransientFailure
		if errors.As(err, &tf) {
			opLogger.Warn("sacct failed to determine job state, will retry next poll", "error", err)
			return nil
		}
		logging.LogError(opLogger, err, "query_job_state")
		return nil
	}

	switch cluster.Classify(tag) {
	case cluster.ClassPending:
		s.reroute(ctx, job, sortedQueues)
	case cluster.ClassRunning:
		// leave alone
	case cluster.ClassFailed:
		return s.handleFailed(ctx, job, tag)
	case cluster.ClassPreempted:
		s.handlePreempted(job)
	case cluster.ClassSucceeded:
		s.handleSucceeded(job, cpuSeconds, now)
	default:
		opLogger.Warn("job is in an unrecognized state", "state", tag)
	}
	return nil
}

// reroute implements the opportunistic re-routing walk: find the first
// queue, earlier than the Job's own in Router order, with spare effective
// capacity, and move the Job's Commands there.
func (s *Supervisor) reroute(ctx context.Context, job *registry.Job, sortedQueues []*queuetable.Queue) {
	preclaimedSlots := float64(s.reg.BacklogLen())

	for _, q := range sortedQueues {
		if q == job.Queue {
			return
		}

		effectiveLoad := float64(q.CurrentLoad()) + preclaimedSlots/float64(q.CommandsPerJob)
		if effectiveLoad < q.IdealJobs() {
			if err := s.adapter.Cancel(ctx, job.ID); err != nil {
				s.logger.Warn("failed to cancel job for re-route", "job_id", job.ID, "error", err)
				return
			}
			s.reg.RemoveJob(job.ID)
			job.Queue.DecrementLoad()
			s.reg.ReinsertAtHead(job.Commands)
			s.metrics.RecordReroute(job.Queue.Partition, q.Partition)
			return
		}

		jobsForQueue := math.Ceil(q.IdealJobs() - float64(q.CurrentLoad()))
		preclaimedSlots -= jobsForQueue * float64(q.CommandsPerJob)
		preclaimedSlots = math.Max(preclaimedSlots, 0)
	}
}

func (s *Supervisor) handleFailed(ctx context.Context, job *registry.Job, tag cluster.JobStateTag) error {
	s.logger.Warn("job failed", "job_id", job.ID, "state", tag, "commands", len(job.Commands))

	for _, cmd := range job.Commands {
		cmd.RecordFailure(job.Queue.Partition)
		s.metrics.RecordRetry(job.Queue.Partition)
		if cmd.TotalTries() > s.retryLimit {
			limitErr := fmt.Errorf("%w: %s", ErrRetryLimitExceeded, cmd.Line)
			logging.LogError(s.logger, limitErr, "retry_limit_check", "total_tries", cmd.TotalTries(), "cancelling_all_live", true)
			s.cancelAllLive(ctx)
			return limitErr
		}
	}

	s.reg.RemoveJob(job.ID)
	job.Queue.DecrementLoad()
	s.reg.Reinsert(job.Commands)
	return nil
}

func (s *Supervisor) handlePreempted(job *registry.Job) {
	s.logger.Warn("job preempted, commands will run again", "job_id", job.ID, "commands", len(job.Commands))
	s.reg.RemoveJob(job.ID)
	job.Queue.DecrementLoad()
	s.reg.Reinsert(job.Commands)
}

func (s *Supervisor) handleSucceeded(job *registry.Job, cpuSeconds float64, now time.Time) {
	// Slurm multiplies the job's CPU time by the node's core count, so
	// dividing by the pack size estimates each individual command's share.
	commandTime := time.Duration(cpuSeconds / float64(job.Queue.CommandsPerJob) * float64(time.Second))

	for range job.Commands {
		s.metrics.RecordCompletion(job.Queue.Partition, commandTime)
	}
	job.Queue.RecordCompletions(len(job.Commands), now)
	s.reg.RemoveJob(job.ID)
	job.Queue.DecrementLoad()
}

// cancelAllLive best-effort cancels every currently-live Job, used both on
// a fatal retry-limit breach and on external shutdown.
func (s *Supervisor) cancelAllLive(ctx context.Context) {
	for _, job := range s.reg.LiveJobs() {
		if err := s.adapter.Cancel(ctx, job.ID); err != nil {
			s.logger.Warn("failed to cancel job during shutdown", "job_id", job.ID, "error", err)
		}
		s.reg.RemoveJob(job.ID)
	}
}

// CancelAllLive is the exported form, used by the coordinator on an
// external interrupt signal.
func (s *Supervisor) CancelAllLive(ctx context.Context) {
	s.cancelAllLive(ctx)
}
