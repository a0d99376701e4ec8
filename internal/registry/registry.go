// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package registry owns the pending command backlog and the set of live
// jobs, and tracks per-command attempt history per queue. It is the sole
// owner of Commands and Jobs; Queues are referenced, not owned.
package registry

import (
	"sync"

	"github.com/jontk/slurm-metascheduler/internal/queuetable"
)

// Command is an opaque shell line plus a per-queue attempt counter.
type Command struct {
	Line  string
	tries map[string]int
}

// NewCommand constructs a Command with a zeroed attempt counter for every
// known partition.
func NewCommand(line string, partitions []string) *Command {
	tries := make(map[string]int, len(partitions))
	for _, p := range partitions {
		tries[p] = 0
	}
	return &Command{Line: line, tries: tries}
}

// Tries returns the attempt count for the given partition.
func (c *Command) Tries(partition string) int {
	return c.tries[partition]
}

// minTries returns the minimum attempt count across all known queues.
func (c *Command) minTries() int {
	min := 0
	first := true
	for _, n := range c.tries {
		if first || n < min {
			min = n
			first = false
		}
	}
	return min
}

// EligibleFor reports whether this Command may be placed on the given
// partition: its attempt count there must not exceed the minimum attempt
// count across all queues.
func (c *Command) EligibleFor(partition string) bool {
	return c.tries[partition] <= c.minTries()
}

// TotalTries returns the sum of attempt counts across all queues.
func (c *Command) TotalTries() int {
	total := 0
	for _, n := range c.tries {
		total += n
	}
	return total
}

// RecordFailure increments the attempt counter for the given partition.
func (c *Command) RecordFailure(partition string) {
	c.tries[partition]++
}

// Job is a stable cluster-assigned identifier carrying an ordered,
// non-empty collection of Commands submitted together to one Queue.
type Job struct {
	ID       uint32
	Commands []*Command
	Queue    *queuetable.Queue
}

// Registry owns the backlog and the live-job set.
type Registry struct {
	mu       sync.Mutex
	backlog  []*Command
	liveJobs map[uint32]*Job
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		liveJobs: make(map[uint32]*Job),
	}
}

// AppendCommands appends newly read commands to the tail of the backlog,
// preserving input order.
func (r *Registry) AppendCommands(commands []*Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backlog = append(r.backlog, commands...)
}

// BacklogLen returns the current backlog size.
func (r *Registry) BacklogLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.backlog)
}

// TakeEligibleFor removes and returns up to maxCount Commands from the
// backlog, in order, that are eligible for the given queue. Ineligible
// Commands are left in place.
func (r *Registry) TakeEligibleFor(queue *queuetable.Queue, maxCount int) []*Command {
	r.mu.Lock()
	defer r.mu.Unlock()

	if maxCount <= 0 {
		return nil
	}

	taken := make([]*Command, 0, maxCount)
	remaining := r.backlog[:0]
	for _, cmd := range r.backlog {
		if len(taken) < maxCount && cmd.EligibleFor(queue.Partition) {
			taken = append(taken, cmd)
		} else {
			remaining = append(remaining, cmd)
		}
	}
	r.backlog = remaining
	return taken
}

// Reinsert appends Commands back to the tail of the backlog, e.g. after a
// retryable job failure or preemption.
func (r *Registry) Reinsert(commands []*Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backlog = append(r.backlog, commands...)
}

// ReinsertAtHead prepends Commands to the backlog head, used when
// re-routing a still-pending Job so its Commands are the first ones
// considered by the next Submission Loop pass.
func (r *Registry) ReinsertAtHead(commands []*Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backlog = append(commands, r.backlog...)
}

// AddJob registers a newly submitted Job as live.
func (r *Registry) AddJob(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liveJobs[job.ID] = job
}

// RemoveJob removes a Job from the live set.
func (r *Registry) RemoveJob(jobID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.liveJobs, jobID)
}

// LiveJobs returns a stable snapshot of the currently live Jobs, safe to
// range over even if the Supervisor mutates the Registry mid-iteration.
func (r *Registry) LiveJobs() []*Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobs := make([]*Job, 0, len(r.liveJobs))
	for _, job := range r.liveJobs {
		jobs = append(jobs, job)
	}
	return jobs
}

// LiveJobCount returns the number of currently live Jobs.
func (r *Registry) LiveJobCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.liveJobs)
}

// TotalUnfinished returns the total number of Commands either in the
// backlog or assigned to a live Job.
func (r *Registry) TotalUnfinished() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := len(r.backlog)
	for _, job := range r.liveJobs {
		total += len(job.Commands)
	}
	return total
}

// CompatibleCommands counts Commands, across the backlog and every live
// Job, currently eligible for the given partition.
func (r *Registry) CompatibleCommands(partition string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, cmd := range r.backlog {
		if cmd.EligibleFor(partition) {
			count++
		}
	}
	for _, job := range r.liveJobs {
		for _, cmd := range job.Commands {
			if cmd.EligibleFor(partition) {
				count++
			}
		}
	}
	return count
}
