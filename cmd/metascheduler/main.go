// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jontk/slurm-metascheduler/internal/cluster"
	"github.com/jontk/slurm-metascheduler/internal/coordinator"
	"github.com/jontk/slurm-metascheduler/internal/report"
	"github.com/jontk/slurm-metascheduler/pkg/config"
	"github.com/jontk/slurm-metascheduler/pkg/logging"
	"github.com/jontk/slurm-metascheduler/pkg/metrics"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = ""
	Commit    = ""
)

var (
	pollSeconds    float64
	monitorSeconds float64
	retryLimit     int
	memoryGB       float64
	timeoutMinutes int
	outputDir      string
	httpStatusAddr string
	debug          bool

	rootCmd = &cobra.Command{
		Use:     "metascheduler <queues.yaml>",
		Short:   "Meta-scheduler for packing many short commands into Slurm jobs",
		Long:    `Reads commands from stdin, packs them into Slurm jobs across a set of configured queues, and adaptively routes retries toward faster/less-contested queues.`,
		Version: Version,
		Args:    cobra.ExactArgs(1),
		RunE:    run,
	}
)

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime)

	rootCmd.Flags().Float64Var(&pollSeconds, "poll", 60, "interval in seconds between supervisor ticks")
	rootCmd.Flags().Float64Var(&monitorSeconds, "monitor", 3600, "minimum interval in seconds between status reports; -1 disables, 0 reports every tick")
	rootCmd.Flags().IntVar(&retryLimit, "retry", 0, "maximum total retries per command across all queues before fatal")
	rootCmd.Flags().Float64Var(&memoryGB, "memory", 0, "per-command memory hint in gigabytes")
	rootCmd.Flags().IntVar(&timeoutMinutes, "timeout", 0, "optional per-job wall-clock limit in minutes")
	rootCmd.Flags().StringVar(&outputDir, "out", ".", "directory where the cluster places per-job stdout/stderr")
	rootCmd.Flags().StringVar(&httpStatusAddr, "http-status", "", "optional address to serve a JSON/websocket status endpoint on, e.g. :8080")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	queues, err := config.LoadQueues(args[0])
	if err != nil {
		return fmt.Errorf("loading queue configuration: %w", err)
	}

	opts := config.NewDefaultOptions()
	opts.PollInterval = time.Duration(pollSeconds * float64(time.Second))
	opts.MonitorInterval = time.Duration(monitorSeconds * float64(time.Second))
	opts.RetryLimit = retryLimit
	opts.MemoryGB = memoryGB
	opts.JobTimeout = time.Duration(timeoutMinutes) * time.Minute
	opts.OutputDir = outputDir

	if err := opts.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}

	commands, err := readCommands(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading commands from stdin: %w", err)
	}

	logConfig := logging.DefaultConfig()
	logConfig.Version = Version
	if debug {
		logConfig.Level = slog.LevelDebug
	}
	logger := logging.NewLogger(logConfig)

	collector := metrics.NewInMemoryCollector()
	adapter := cluster.NewSlurmCLI(logger, nil, nil)

	coord := coordinator.New(queues, commands, opts, adapter, logger, collector)

	if httpStatusAddr != "" {
		server := report.NewServer(coord.Reporter(), logger, opts.PollInterval)
		go func() {
			if err := http.ListenAndServe(httpStatusAddr, server); err != nil {
				logger.Error("status server stopped", "error", err)
			}
		}()
	}

	if err := coord.Run(cmd.Context()); err != nil {
		return err
	}
	return nil
}

func readCommands(f *os.File) ([]string, error) {
	scanner := bufio.NewScanner(f)
	var commands []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		commands = append(commands, line)
	}
	return commands, scanner.Err()
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
