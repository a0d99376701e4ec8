// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package config

import "errors"

var (
	// ErrMissingPartition is returned when a queue record has no partition.
	ErrMissingPartition = errors.New("partition is required")

	// ErrMissingAccount is returned when a queue record has no account.
	ErrMissingAccount = errors.New("account is required")

	// ErrInvalidCommandsPerJob is returned when commands_per_job is less than 1.
	ErrInvalidCommandsPerJob = errors.New("commands_per_job must be at least 1")

	// ErrNoQueues is returned when a queue configuration file defines no queues.
	ErrNoQueues = errors.New("configuration defines no queues")

	// ErrInvalidPollInterval is returned when the poll interval is not positive.
	ErrInvalidPollInterval = errors.New("poll interval must be greater than 0")

	// ErrOutputDirNotFound is returned when the configured output directory
	// does not exist or is not a directory.
	ErrOutputDirNotFound = errors.New("output directory not found")
)
