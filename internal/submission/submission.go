// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package submission draws eligible Commands from the backlog, packs them
// per queue and asks the Cluster Adapter to submit them, one queue at a
// time in Router order.
package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/jontk/slurm-metascheduler/internal/cluster"
	"github.com/jontk/slurm-metascheduler/internal/queuetable"
	"github.com/jontk/slurm-metascheduler/internal/registry"
	"github.com/jontk/slurm-metascheduler/pkg/config"
	"github.com/jontk/slurm-metascheduler/pkg/logging"
	"github.com/jontk/slurm-metascheduler/pkg/metrics"
)

// Loop runs the Submission Loop over every queue in the order given.
type Loop struct {
	adapter cluster.Adapter
	reg     *registry.Registry
	opts    *config.Options
	logger  logging.Logger
	metrics metrics.Collector
}

// New constructs a Submission Loop.
func New(adapter cluster.Adapter, reg *registry.Registry, opts *config.Options, logger logging.Logger, collector metrics.Collector) *Loop {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Loop{adapter: adapter, reg: reg, opts: opts, logger: logger, metrics: collector}
}

// Run draws and submits commands for every queue in order. It returns an
// error only when a submission failure is fatal (non-transient); the
// caller is expected to cancel all live jobs and exit non-zero in that
// case.
func (l *Loop) Run(ctx context.Context, queues []*queuetable.Queue) error {
	for _, q := range queues {
		if err := l.fillQueue(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) fillQueue(ctx context.Context, q *queuetable.Queue) error {
	needCommands := (q.IdealJobs() - float64(q.CurrentLoad())) * float64(q.CommandsPerJob)
	if needCommands <= 0 {
		return nil
	}

	extracted := l.reg.TakeEligibleFor(q, int(needCommands))
	if len(extracted) == 0 {
		return nil
	}

	for start := 0; start < len(extracted); start += q.CommandsPerJob {
		end := start + q.CommandsPerJob
		if end > len(extracted) {
			end = len(extracted)
		}
		pack := extracted[start:end]
		if err := l.submitPack(ctx, q, pack); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) submitPack(ctx context.Context, q *queuetable.Queue, pack []*registry.Command) error {
	lines := make([]string, len(pack))
	for i, cmd := range pack {
		lines[i] = cmd.Line
	}

	hints := cluster.ResourceHints{
		MemoryKB:       cluster.ScaleMemoryHint(l.opts.MemoryGB, q.CommandsPerJob),
		TimeoutMinutes: int(l.opts.JobTimeout.Minutes()),
		OutputPattern:  l.opts.OutputDir + "/slurm-%j.out",
	}

	jobID, err := l.adapter.Submit(ctx, q.Partition, q.Account, q.QoS, lines, hints)
	if err != nil {
		var sf *cluster.SubmissionFailure
		if errors.As(err, &sf) && sf.Transient() {
			l.logger.Warn("submission failed transiently, re-queuing pack", "partition", q.Partition, "count", len(pack), "error", err)
			l.reg.Reinsert(pack)
			l.metrics.RecordRetry(q.Partition)
			return nil
		}
		return fmt.Errorf("fatal submission failure on queue %s: %w", q.Partition, err)
	}

	l.reg.AddJob(&registry.Job{ID: jobID, Commands: pack, Queue: q})
	q.IncrementLoad()
	l.metrics.RecordSubmission(q.Partition)
	l.logger.Info("submitted job", "partition", q.Partition, "job_id", jobID, "commands", len(pack))
	return nil
}
