// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package report implements the Status Reporter (§4.G): periodic
// load/progress lines and a final completion summary.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jontk/slurm-metascheduler/internal/queuetable"
	"github.com/jontk/slurm-metascheduler/internal/registry"
	"github.com/jontk/slurm-metascheduler/pkg/logging"
	"github.com/jontk/slurm-metascheduler/pkg/metrics"
)

// Reporter emits periodic load/progress lines and a final summary. A
// negative monitor interval disables all output; zero reports every tick.
type Reporter struct {
	table         *queuetable.Table
	reg           *registry.Registry
	metrics       metrics.Collector
	logger        logging.Logger
	printer       *message.Printer
	interval      time.Duration
	totalCommands int
	startedAt     time.Time
	lastReported  time.Time
}

// New constructs a Reporter. totalCommands is the backlog size at startup,
// the denominator for the progress percentage.
func New(table *queuetable.Table, reg *registry.Registry, collector metrics.Collector, logger logging.Logger, interval time.Duration, totalCommands int, startedAt time.Time) *Reporter {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return &Reporter{
		table:         table,
		reg:           reg,
		metrics:       collector,
		logger:        logger,
		printer:       message.NewPrinter(language.English),
		interval:      interval,
		totalCommands: totalCommands,
		startedAt:     startedAt,
	}
}

// Enabled reports whether periodic reporting is turned on.
func (r *Reporter) Enabled() bool {
	return r.interval >= 0
}

// MaybeReport emits the load and progress lines if the configured
// reporting interval has elapsed since the last report. Suppressed
// entirely when reporting is disabled.
func (r *Reporter) MaybeReport(now time.Time) {
	if !r.Enabled() {
		return
	}
	if r.interval > 0 && !r.lastReported.IsZero() && now.Sub(r.lastReported) < r.interval {
		return
	}

	r.logger.Info(r.loadLine(now))
	r.logger.Info(r.progressLine())
	r.lastReported = now
}

func (r *Reporter) loadLine(now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Current / ideal loads:", now.Format(time.ANSIC))
	for _, q := range r.table.ListAll() {
		fmt.Fprintf(&b, " %s: %d/%d", q.Partition, q.CurrentLoad(), int(math.Ceil(q.IdealJobs())))
	}
	return b.String()
}

func (r *Reporter) progressLine() string {
	finished := r.totalCommands - r.reg.TotalUnfinished()
	if finished < 0 {
		finished = 0
	}
	percent := 0
	if r.totalCommands > 0 {
		percent = int(math.Floor(100 * float64(finished) / float64(r.totalCommands)))
	}
	return r.printer.Sprintf("[%s] Finished %d of %d commands (%d%%)", time.Now().Format(time.ANSIC), finished, r.totalCommands, percent)
}

// StartBanner emits the startup line, when reporting is enabled.
func (r *Reporter) StartBanner(now time.Time) {
	if !r.Enabled() {
		return
	}
	r.logger.Info(r.printer.Sprintf("[%s] Slurm metascheduler started on %d commands", now.Format(time.ANSIC), r.totalCommands))
}

// FinalSummary emits the completion summary (min/max/mean/total
// per-Command CPU time) and wall-clock elapsed, when reporting is enabled.
func (r *Reporter) FinalSummary(now time.Time) {
	if !r.Enabled() {
		return
	}

	stats := r.metrics.GetStats()
	r.logger.Info(r.printer.Sprintf("[%s] Slurm metascheduler finished %d commands successfully", now.Format(time.ANSIC), stats.TotalCompletions))

	if stats.TotalCompletions > 0 {
		cpu := stats.CPUTimeStats
		r.logger.Info(fmt.Sprintf("[%s] Min: %s Max: %s Mean: %s Total: %s",
			now.Format(time.ANSIC),
			formatDuration(cpu.Min),
			formatDuration(cpu.Max),
			formatDuration(cpu.Average),
			formatDuration(cpu.Total),
		))
	}

	r.logger.Info(fmt.Sprintf("[%s] Wall-clock time: %s", now.Format(time.ANSIC), formatDuration(now.Sub(r.startedAt))))
}

// Termination emits the abort line on a fatal/interrupted shutdown, when
// reporting is enabled.
func (r *Reporter) Termination(now time.Time) {
	if !r.Enabled() {
		return
	}
	r.logger.Info(fmt.Sprintf("[%s] Slurm metascheduler aborted", now.Format(time.ANSIC)))
}

// formatDuration renders a duration as a compact "1d2h3m4s" string,
// omitting leading zero units the way the original benchmark formatter
// does (seconds are always printed, even when zero).
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalSeconds := int64(math.Round(d.Seconds()))

	days := totalSeconds / (24 * 60 * 60)
	totalSeconds %= 24 * 60 * 60
	hours := totalSeconds / (60 * 60)
	totalSeconds %= 60 * 60
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60

	var b strings.Builder
	if days > 0 {
		fmt.Fprintf(&b, "%dd", days)
	}
	if days > 0 || hours > 0 {
		fmt.Fprintf(&b, "%dh", hours)
	}
	if days > 0 || hours > 0 || minutes > 0 {
		fmt.Fprintf(&b, "%dm", minutes)
	}
	fmt.Fprintf(&b, "%ds", seconds)
	return b.String()
}
