// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package cluster

import (
	"bytes"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	cctx "github.com/jontk/slurm-metascheduler/pkg/context"
	clustererrors "github.com/jontk/slurm-metascheduler/pkg/errors"
	"github.com/jontk/slurm-metascheduler/pkg/logging"
	"github.com/jontk/slurm-metascheduler/pkg/retry"
)

// runner abstracts process execution so tests can substitute a fake
// sbatch/sacct/scancel without touching the real binaries.
type runner interface {
	run(ctx context.Context, stdin string, name string, args ...string) (stdout string, stderr string, err error)
}

type execRunner struct{}

func (execRunner) run(ctx context.Context, stdin string, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// SlurmCLI is the CLI-shaped Cluster Adapter implementation: it shells out
// to sbatch/sacct/scancel, exactly as the original tool did. Failed sbatch
// invocations are retried per pkg/retry before the failure is surfaced to
// the core; sacct and scancel are invoked once per call.
type SlurmCLI struct {
	run     runner
	logger  logging.Logger
	retry   retry.Policy
	timeout *cctx.TimeoutConfig
}

// NewSlurmCLI constructs a SlurmCLI adapter.
func NewSlurmCLI(logger logging.Logger, retryPolicy retry.Policy, timeout *cctx.TimeoutConfig) *SlurmCLI {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if retryPolicy == nil {
		retryPolicy = retry.NewExecExponentialBackoff()
	}
	return &SlurmCLI{run: execRunner{}, logger: logger, retry: retryPolicy, timeout: timeout}
}

// Submit packs commands into one job with `-n 1 --no-requeue` (Module
// Addition 3), wrapping them in a generated script that runs each command
// via GNU parallel, exactly as the original did.
func (s *SlurmCLI) Submit(ctx context.Context, partition, account, qos string, commands []string, hints ResourceHints) (uint32, error) {
	args := []string{"-A", account, "-p", partition}
	if hints.MemoryKB > 0 {
		args = append(args, "--mem", strconv.FormatUint(hints.MemoryKB, 10)+"K")
	}
	if hints.TimeoutMinutes > 0 {
		args = append(args, "-t", strconv.Itoa(hints.TimeoutMinutes))
	}
	if qos != "" {
		args = append(args, "--qos", qos)
	}
	if hints.OutputPattern != "" {
		args = append(args, "-o", hints.OutputPattern, "-e", hints.OutputPattern)
	}
	args = append(args, "-n", "1", "--no-requeue")

	script := buildParallelScript(commands)

	var jobID uint32
	attempt := 0
	for {
		submitCtx, cancel := cctx.WithTimeout(ctx, cctx.OpSubmit, s.timeout)
		stdout, stderr, err := s.run.run(submitCtx, script, "sbatch", args...)
		cancel()

		if err == nil {
			id, ok := clustererrors.ParseSubmittedJobID(stdout)
			if !ok {
				return 0, NewSubmissionFailure(clustererrors.New(clustererrors.ErrorCodeMalformedOutput, "sbatch produced no job ID: "+stdout))
			}
			jobID = id
			break
		}

		clusterErr := clustererrors.WrapExecError(err, stderr)
		if !s.retry.ShouldRetry(ctx, clusterErr, attempt) {
			return 0, NewSubmissionFailure(clusterErr)
		}

		wait := s.retry.WaitTime(attempt)
		s.logger.Warn("sbatch submission failed, retrying", "attempt", attempt, "wait", wait, "error", clusterErr.Error())
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return 0, NewSubmissionFailure(clusterErr)
		}
		attempt++
	}

	return jobID, nil
}

// QueryState invokes sacct to determine a job's state, and when it has
// completed, its accounted CPU time.
func (s *SlurmCLI) QueryState(ctx context.Context, jobID uint32) (JobStateTag, float64, error) {
	queryCtx, cancel := cctx.WithTimeout(ctx, cctx.OpQuery, s.timeout)
	defer cancel()

	jobIDStr := strconv.FormatUint(uint64(jobID), 10)
	stdout, stderr, err := s.run.run(queryCtx, "", "sacct", "-j", jobIDStr, "--noheader", "-o", "State%20")
	if err != nil {
		return "", 0, NewTransientFailure(clustererrors.WrapExecError(err, stderr))
	}

	tag := parseStateField(stdout)
	if tag == "" {
		return "", 0, NewTransientFailure(clustererrors.New(clustererrors.ErrorCodeMalformedOutput, "sacct produced no state: "+stdout))
	}

	if Classify(tag) != ClassSucceeded {
		return tag, 0, nil
	}

	cpuStdout, cpuStderr, err := s.run.run(queryCtx, "", "sacct", "-j", jobIDStr, "--noheader", "-o", "CPUTimeRAW%20")
	if err != nil {
		return "", 0, NewTransientFailure(clustererrors.WrapExecError(err, cpuStderr))
	}

	cpuSeconds, ok := parseCPUTimeField(cpuStdout)
	if !ok {
		return "", 0, NewTransientFailure(clustererrors.New(clustererrors.ErrorCodeMalformedOutput, "sacct produced no CPU time: "+cpuStdout))
	}

	return tag, cpuSeconds, nil
}

// Cancel best-effort cancels a job via scancel, tolerating "already gone".
func (s *SlurmCLI) Cancel(ctx context.Context, jobID uint32) error {
	cancelCtx, cancel := cctx.WithTimeout(ctx, cctx.OpCancel, s.timeout)
	defer cancel()

	jobIDStr := strconv.FormatUint(uint64(jobID), 10)
	_, _, err := s.run.run(cancelCtx, "", "scancel", jobIDStr)
	if err != nil {
		s.logger.Warn("scancel failed, assuming job already gone", "job_id", jobIDStr, "error", err.Error())
	}
	return nil
}

// buildParallelScript wraps commands in a batch script that runs each line
// via GNU parallel, so a single sbatch submission executes the whole pack
// sequentially on one node.
func buildParallelScript(commands []string) string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("parallel << 'EOF_COMMANDS'\n")
	for _, c := range commands {
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString("EOF_COMMANDS\n")
	return b.String()
}

// parseStateField extracts the first whitespace-delimited token from
// sacct's State%20 column output.
func parseStateField(output string) JobStateTag {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return ""
	}
	return JobStateTag(fields[0])
}

// parseCPUTimeField extracts the first whitespace-delimited integer token
// from sacct's CPUTimeRAW%20 column output.
func parseCPUTimeField(output string) (float64, bool) {
	fields := strings.Fields(output)
	if len(fields) == 0 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return seconds, true
}
