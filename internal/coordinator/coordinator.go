// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package coordinator owns the Queue Table, the Command & Job Registry and
// the operational Options, and drives the main control loop: Router →
// Submission → optional report → sleep → Supervisor (§5).
package coordinator

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/jontk/slurm-metascheduler/internal/cluster"
	"github.com/jontk/slurm-metascheduler/internal/lifecycle"
	"github.com/jontk/slurm-metascheduler/internal/queuetable"
	"github.com/jontk/slurm-metascheduler/internal/registry"
	"github.com/jontk/slurm-metascheduler/internal/report"
	"github.com/jontk/slurm-metascheduler/internal/router"
	"github.com/jontk/slurm-metascheduler/internal/submission"
	"github.com/jontk/slurm-metascheduler/pkg/config"
	"github.com/jontk/slurm-metascheduler/pkg/logging"
	"github.com/jontk/slurm-metascheduler/pkg/metrics"
)

// Coordinator is the process-wide owner of mutable scheduler state: the
// queue list, backlog and live-job set live here as fields rather than as
// globals.
type Coordinator struct {
	table      *queuetable.Table
	reg        *registry.Registry
	opts       *config.Options
	submission *submission.Loop
	supervisor *lifecycle.Supervisor
	reporter   *report.Reporter
	logger     logging.Logger
	runID      string
}

// New constructs a Coordinator from its static configuration. commandLines
// is the initial backlog, read from stdin by the caller; each Command is
// seeded with a zeroed attempt counter for every configured queue.
func New(queues []config.QueueConfig, commandLines []string, opts *config.Options, adapter cluster.Adapter, logger logging.Logger, collector metrics.Collector) *Coordinator {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	partitions := make([]string, len(queues))
	tqueues := make([]*queuetable.Queue, len(queues))
	for i, qc := range queues {
		partitions[i] = qc.Partition
		tqueues[i] = queuetable.New(qc.Partition, qc.Account, qc.CommandsPerJob, qc.MaxJobs, qc.QoS)
	}
	table := queuetable.NewTable(tqueues)

	reg := registry.New()
	commands := make([]*registry.Command, len(commandLines))
	for i, line := range commandLines {
		commands[i] = registry.NewCommand(line, partitions)
	}
	reg.AppendCommands(commands)

	return &Coordinator{
		table:      table,
		reg:        reg,
		opts:       opts,
		submission: submission.New(adapter, reg, opts, logger, collector),
		supervisor: lifecycle.New(adapter, reg, opts.RetryLimit, logger, collector),
		reporter:   report.New(table, reg, collector, logger, opts.MonitorInterval, len(commandLines), time.Now()),
		logger:     logger,
		runID:      runID,
	}
}

// Reporter exposes the Status Reporter, e.g. for wiring the optional HTTP
// status server.
func (c *Coordinator) Reporter() *report.Reporter {
	return c.reporter
}

// Run drives the main control loop until the backlog and live-job set are
// both empty, a fatal retry-limit breach occurs, or ctx is cancelled (an
// interrupt signal). It returns a non-nil error only on a condition that
// should produce a non-zero exit code.
func (c *Coordinator) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.reporter.StartBanner(time.Now())

	tick := 0
	for !c.done() {
		tickLogger := logging.LogTick(c.logger, tick, "backlog", c.reg.BacklogLen(), "live_jobs", c.reg.LiveJobCount())

		if ctx.Err() != nil {
			tickLogger.Warn("interrupted, cancelling all live jobs")
			c.supervisor.CancelAllLive(context.Background())
			c.reporter.Termination(time.Now())
			return ctx.Err()
		}

		sorted := router.Route(c.table, c.reg, time.Now())

		if err := c.submission.Run(ctx, sorted); err != nil {
			logging.LogError(tickLogger, err, "submission_run", "cancelling_all_live", true)
			c.supervisor.CancelAllLive(context.Background())
			c.reporter.Termination(time.Now())
			return err
		}

		c.reporter.MaybeReport(time.Now())

		select {
		case <-ctx.Done():
			continue
		case <-time.After(c.opts.PollInterval):
		}

		if err := c.supervisor.Tick(ctx, sorted, time.Now()); err != nil {
			if errors.Is(err, lifecycle.ErrRetryLimitExceeded) {
				logging.LogError(tickLogger, err, "retry_limit_exceeded")
			}
			c.reporter.Termination(time.Now())
			return err
		}

		tick++
	}

	c.reporter.FinalSummary(time.Now())
	return nil
}

func (c *Coordinator) done() bool {
	return c.reg.BacklogLen() == 0 && c.reg.LiveJobCount() == 0
}

// RunID returns the UUID generated for this coordinator's run, used to
// correlate log lines across a single invocation.
func (c *Coordinator) RunID() string {
	return c.runID
}
