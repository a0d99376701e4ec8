// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package config loads and validates the meta-scheduler's queue records and
// operational options.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// QueueConfig is one queue record as recognized by the configuration file.
type QueueConfig struct {
	Partition      string `yaml:"partition"`
	Account        string `yaml:"account"`
	CommandsPerJob int    `yaml:"commands_per_job"`
	MaxJobs        int    `yaml:"max_jobs"`
	QoS            string `yaml:"qos"`
}

// Validate enforces the per-record invariants: partition and account are
// required, and commands_per_job must be at least 1.
func (q *QueueConfig) Validate() error {
	if q.Partition == "" {
		return ErrMissingPartition
	}
	if q.Account == "" {
		return ErrMissingAccount
	}
	if q.CommandsPerJob < 1 {
		return ErrInvalidCommandsPerJob
	}
	return nil
}

// queueFile is the on-disk shape of the YAML queue configuration file.
type queueFile struct {
	Queues []QueueConfig `yaml:"queues"`
}

// LoadQueues reads queue records from a YAML file, applies defaults
// (max_jobs=1) and validates every record.
func LoadQueues(path string) ([]QueueConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading queue config %q: %w", path, err)
	}

	var file queueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing queue config %q: %w", path, err)
	}

	if len(file.Queues) == 0 {
		return nil, ErrNoQueues
	}

	for i := range file.Queues {
		if file.Queues[i].MaxJobs == 0 {
			file.Queues[i].MaxJobs = 1
		}
		if err := file.Queues[i].Validate(); err != nil {
			return nil, fmt.Errorf("queue %q: %w", file.Queues[i].Partition, err)
		}
	}

	return file.Queues, nil
}

// Options holds the operational options the CLI surface accepts, per the
// operational-options table (poll/monitor/retry/memory/timeout/output dir).
type Options struct {
	// PollInterval is the interval between Lifecycle Supervisor ticks.
	PollInterval time.Duration

	// MonitorInterval is the minimum interval between status reports.
	// A negative value disables reporting; zero reports every tick.
	MonitorInterval time.Duration

	// RetryLimit is the maximum total retries per Command across all
	// queues before the run is declared fatal.
	RetryLimit int

	// MemoryGB is the per-Command memory hint in gigabytes. Zero means
	// unset: no memory hint is passed to the Cluster Adapter.
	MemoryGB float64

	// JobTimeout is an optional per-Job wall-clock limit. Zero means unset.
	JobTimeout time.Duration

	// OutputDir is the directory where the cluster places per-Job
	// stdout/stderr.
	OutputDir string
}

// NewDefaultOptions returns the operational defaults from §6.
func NewDefaultOptions() *Options {
	return &Options{
		PollInterval:    60 * time.Second,
		MonitorInterval: 3600 * time.Second,
		RetryLimit:      0,
		MemoryGB:        0,
		JobTimeout:      0,
		OutputDir:       ".",
	}
}

// Validate checks the configured output directory exists, mirroring the
// original's assert(isdir(args.out)) startup check.
func (o *Options) Validate() error {
	if o.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}

	info, err := os.Stat(o.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOutputDirNotFound, o.OutputDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrOutputDirNotFound, o.OutputDir)
	}

	return nil
}

// ReportingEnabled reports whether periodic status reporting is enabled,
// per the monitor-seconds `-1` disables / `0` reports-every-tick convention.
func (o *Options) ReportingEnabled() bool {
	return o.MonitorInterval >= 0
}
