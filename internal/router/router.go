// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package router computes, on demand, the ideal job-load distribution
// across queues: a score-weighted initial allocation corrected by a
// capacity/eligibility spill pass.
package router

import (
	"math"
	"time"

	"github.com/jontk/slurm-metascheduler/internal/queuetable"
	"github.com/jontk/slurm-metascheduler/internal/registry"
)

// Route recomputes every queue's score and ideal job load in place, then
// returns the queues sorted by score descending (ties broken by
// configuration order).
func Route(table *queuetable.Table, reg *registry.Registry, now time.Time) []*queuetable.Queue {
	queues := table.ListAll()

	scoreTotal := 0
	for _, q := range queues {
		recent := q.PruneCompletions(now)
		score := 1 + recent
		q.SetScore(score)
		scoreTotal += score
	}

	total := reg.TotalUnfinished()
	for _, q := range queues {
		ideal := float64(total) * float64(q.Score()) / float64(scoreTotal) / float64(q.CommandsPerJob)
		q.SetIdealJobs(ideal)
	}

	spill(queues, reg, total)

	return table.SortedByScore()
}

// spill processes queues in configuration order, capping each queue's
// ideal job load to what it can actually take (max_jobs, and the number
// of currently-eligible commands), then redistributes the excess to later
// queues in proportion to their already-allocated command load (§4.D).
func spill(queues []*queuetable.Queue, reg *registry.Registry, total int) {
	commandsForOthers := float64(total)

	for i, q := range queues {
		compatible := reg.CompatibleCommands(q.Partition)
		compatibleJobs := float64(compatible) / float64(q.CommandsPerJob)

		ideal := q.IdealJobs()
		capped := math.Min(ideal, math.Min(float64(q.MaxJobs), compatibleJobs))
		excess := ideal - capped
		q.SetIdealJobs(capped)

		commandsForOthers -= capped * float64(q.CommandsPerJob)

		if excess > 0 && commandsForOthers > 0 {
			excessCommands := excess * float64(q.CommandsPerJob)
			for _, other := range queues[i+1:] {
				idealCommandLoad := other.IdealJobs() * float64(other.CommandsPerJob)
				addedJobs := excessCommands * idealCommandLoad / commandsForOthers / float64(other.CommandsPerJob)
				other.SetIdealJobs(other.IdealJobs() + addedJobs)
			}
		}
	}
}
