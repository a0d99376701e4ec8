// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package queuetable holds per-queue static configuration and the dynamic
// state (load, recent completions, derived score and ideal load) the
// Router reads and writes every tick.
package queuetable

import (
	"sort"
	"sync"
	"time"
)

// Queue is one cluster partition the meta-scheduler can submit to.
type Queue struct {
	// Static configuration, fixed at startup.
	Partition      string
	Account        string
	CommandsPerJob int
	MaxJobs        int
	QoS            string

	mu sync.Mutex

	// Dynamic state, mutated by the Router and Lifecycle Supervisor.
	currentLoad int
	completions []time.Time

	// Derived fields, recomputed by the Router each tick.
	score     int
	idealJobs float64
}

// New constructs a Queue from its static configuration. MaxJobs defaults
// to 1 when zero, and CommandsPerJob is clamped to at least 1.
func New(partition, account string, commandsPerJob, maxJobs int, qos string) *Queue {
	if maxJobs <= 0 {
		maxJobs = 1
	}
	if commandsPerJob < 1 {
		commandsPerJob = 1
	}
	return &Queue{
		Partition:      partition,
		Account:        account,
		CommandsPerJob: commandsPerJob,
		MaxJobs:        maxJobs,
		QoS:            qos,
	}
}

// CurrentLoad returns the number of jobs currently live on this queue.
func (q *Queue) CurrentLoad() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentLoad
}

// IncrementLoad increases the current job load by one, on successful submission.
func (q *Queue) IncrementLoad() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.currentLoad++
}

// DecrementLoad decreases the current job load by one, floored at zero.
func (q *Queue) DecrementLoad() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.currentLoad > 0 {
		q.currentLoad--
	}
}

// RecordCompletions appends n completion timestamps, one per Command that
// just finished in a Job on this queue.
func (q *Queue) RecordCompletions(n int, at time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := 0; i < n; i++ {
		q.completions = append(q.completions, at)
	}
}

// PruneCompletions drops completion timestamps older than now-24h and
// returns the number that remain.
func (q *Queue) PruneCompletions(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := now.Add(-24 * time.Hour)
	i := 0
	for i < len(q.completions) && q.completions[i].Before(cutoff) {
		i++
	}
	q.completions = q.completions[i:]
	return len(q.completions)
}

// Score returns the last score computed by PruneCompletions-then-score.
func (q *Queue) Score() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.score
}

// SetScore records the derived score for this tick.
func (q *Queue) SetScore(score int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.score = score
}

// IdealJobs returns the last ideal job load computed by the Router.
func (q *Queue) IdealJobs() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.idealJobs
}

// SetIdealJobs records the derived ideal job load for this tick.
func (q *Queue) SetIdealJobs(ideal float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.idealJobs = ideal
}

// Table holds the full set of configured queues in their configuration
// order, which doubles as the tie-break order for the Router.
type Table struct {
	queues []*Queue
	byName map[string]*Queue
}

// NewTable constructs a Table from queues in configuration order.
func NewTable(queues []*Queue) *Table {
	byName := make(map[string]*Queue, len(queues))
	for _, q := range queues {
		byName[q.Partition] = q
	}
	return &Table{queues: queues, byName: byName}
}

// ListAll returns every queue in configuration order.
func (t *Table) ListAll() []*Queue {
	return t.queues
}

// LookupByID returns the queue with the given partition name, or nil.
func (t *Table) LookupByID(partition string) *Queue {
	return t.byName[partition]
}

// SortedByScore returns queues sorted by score descending, ties broken by
// configuration order (Go's sort.SliceStable preserves the input order
// for equal elements).
func (t *Table) SortedByScore() []*Queue {
	sorted := make([]*Queue, len(t.queues))
	copy(sorted, t.queues)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score() > sorted[j].Score()
	})
	return sorted
}
