// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jontk/slurm-metascheduler/internal/queuetable"
	"github.com/jontk/slurm-metascheduler/internal/registry"
)

func backlogOf(n int, partitions ...string) []*registry.Command {
	cmds := make([]*registry.Command, n)
	for i := range cmds {
		cmds[i] = registry.NewCommand("cmd", partitions)
	}
	return cmds
}

func TestRoute_PackAndSubmitScoring(t *testing.T) {
	q0 := queuetable.New("q0", "acct", 4, 1, "")
	q1 := queuetable.New("q1", "acct", 2, 1, "")
	table := queuetable.NewTable([]*queuetable.Queue{q0, q1})

	reg := registry.New()
	reg.AppendCommands(backlogOf(6, "q0", "q1"))

	Route(table, reg, time.Now())

	assert.InDelta(t, 0.75, q0.IdealJobs(), 1e-9)
	assert.InDelta(t, 1.0, q1.IdealJobs(), 1e-9)
}

func TestRoute_SpillOnCapacity(t *testing.T) {
	qa := queuetable.New("a", "acct", 1, 1, "")
	qb := queuetable.New("b", "acct", 1, 10, "")
	table := queuetable.NewTable([]*queuetable.Queue{qa, qb})

	reg := registry.New()
	reg.AppendCommands(backlogOf(10, "a", "b"))

	Route(table, reg, time.Now())

	assert.InDelta(t, 1.0, qa.IdealJobs(), 1e-9)
	assert.InDelta(t, 9.0, qb.IdealJobs(), 1e-9)
}

func TestRoute_EligibilitySpill(t *testing.T) {
	qa := queuetable.New("a", "acct", 1, 10, "")
	qb := queuetable.New("b", "acct", 1, 10, "")
	table := queuetable.NewTable([]*queuetable.Queue{qa, qb})

	reg := registry.New()
	x := registry.NewCommand("x", []string{"a", "b"})
	x.RecordFailure("a")
	reg.AppendCommands([]*registry.Command{x})

	require.True(t, x.EligibleFor("b"))
	require.False(t, x.EligibleFor("a"))

	sorted := Route(table, reg, time.Now())
	require.Len(t, sorted, 2)

	// a's ideal load must be zero: x is the only command and it is
	// ineligible for a, so a has zero compatible commands regardless of score.
	assert.Zero(t, qa.IdealJobs())
}

func TestRoute_ScoreOrdering(t *testing.T) {
	qa := queuetable.New("a", "acct", 1, 10, "")
	qb := queuetable.New("b", "acct", 1, 10, "")
	table := queuetable.NewTable([]*queuetable.Queue{qa, qb})

	qb.RecordCompletions(5, time.Now())

	reg := registry.New()
	reg.AppendCommands(backlogOf(10, "a", "b"))

	sorted := Route(table, reg, time.Now())
	require.Len(t, sorted, 2)
	assert.Equal(t, "b", sorted[0].Partition)
	assert.Equal(t, "a", sorted[1].Partition)
}

func TestRoute_TieBreakByConfigOrder(t *testing.T) {
	qa := queuetable.New("a", "acct", 1, 10, "")
	qb := queuetable.New("b", "acct", 1, 10, "")
	table := queuetable.NewTable([]*queuetable.Queue{qa, qb})

	reg := registry.New()
	reg.AppendCommands(backlogOf(4, "a", "b"))

	sorted := Route(table, reg, time.Now())
	require.Len(t, sorted, 2)
	assert.Equal(t, "a", sorted[0].Partition)
	assert.Equal(t, "b", sorted[1].Partition)
}

func TestRoute_ConservationLaw(t *testing.T) {
	qa := queuetable.New("a", "acct", 3, 2, "")
	qb := queuetable.New("b", "acct", 5, 1, "")
	qc := queuetable.New("c", "acct", 2, 4, "")
	table := queuetable.NewTable([]*queuetable.Queue{qa, qb, qc})

	reg := registry.New()
	reg.AppendCommands(backlogOf(37, "a", "b", "c"))

	Route(table, reg, time.Now())

	allocated := qa.IdealJobs()*float64(qa.CommandsPerJob) +
		qb.IdealJobs()*float64(qb.CommandsPerJob) +
		qc.IdealJobs()*float64(qc.CommandsPerJob)

	assert.LessOrEqual(t, allocated, float64(reg.TotalUnfinished())+1e-9)
}

func TestRoute_ScoreMonotonicityWithoutCompletions(t *testing.T) {
	qa := queuetable.New("a", "acct", 1, 10, "")
	table := queuetable.NewTable([]*queuetable.Queue{qa})
	reg := registry.New()
	reg.AppendCommands(backlogOf(5, "a"))

	Route(table, reg, time.Now())
	first := qa.Score()

	Route(table, reg, time.Now())
	second := qa.Score()

	assert.LessOrEqual(t, second, first)
}
