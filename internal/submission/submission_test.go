// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package submission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jontk/slurm-metascheduler/internal/cluster"
	"github.com/jontk/slurm-metascheduler/internal/queuetable"
	"github.com/jontk/slurm-metascheduler/internal/registry"
	"github.com/jontk/slurm-metascheduler/pkg/config"
	clustererrors "github.com/jontk/slurm-metascheduler/pkg/errors"
)

func testOptions() *config.Options {
	opts := config.NewDefaultOptions()
	opts.OutputDir = "/tmp"
	return opts
}

type fakeAdapter struct {
	submitCalls []fakeSubmitCall
	results     []fakeSubmitResult
	nextID      uint32
}

type fakeSubmitCall struct {
	partition string
	commands  []string
}

type fakeSubmitResult struct {
	jobID uint32
	err   error
}

func (f *fakeAdapter) Submit(_ context.Context, partition, _, _ string, commands []string, _ cluster.ResourceHints) (uint32, error) {
	f.submitCalls = append(f.submitCalls, fakeSubmitCall{partition: partition, commands: commands})
	if len(f.results) > 0 {
		r := f.results[0]
		f.results = f.results[1:]
		return r.jobID, r.err
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeAdapter) QueryState(context.Context, uint32) (cluster.JobStateTag, float64, error) {
	return cluster.StatePending, 0, nil
}

func (f *fakeAdapter) Cancel(context.Context, uint32) error { return nil }

func backlogCommands(n int, partitions ...string) []*registry.Command {
	cmds := make([]*registry.Command, n)
	for i := range cmds {
		cmds[i] = registry.NewCommand("cmd", partitions)
	}
	return cmds
}

func TestLoop_PackAndSubmit(t *testing.T) {
	q0 := queuetable.New("q0", "acct", 4, 1, "")
	q1 := queuetable.New("q1", "acct", 2, 1, "")
	q0.SetIdealJobs(0.75)
	q1.SetIdealJobs(1.0)

	reg := registry.New()
	reg.AppendCommands(backlogCommands(6, "q0", "q1"))

	adapter := &fakeAdapter{}
	loop := New(adapter, reg, testOptions(), nil, nil)

	err := loop.Run(context.Background(), []*queuetable.Queue{q0, q1})
	require.NoError(t, err)

	// q0: need_commands = 0.75*4 = 3 -> one short pack of 3.
	// q1: need_commands = 1.0*2 = 2 -> one full pack of 2.
	require.Len(t, adapter.submitCalls, 2)
	assert.Equal(t, "q0", adapter.submitCalls[0].partition)
	assert.Len(t, adapter.submitCalls[0].commands, 3)
	assert.Equal(t, "q1", adapter.submitCalls[1].partition)
	assert.Len(t, adapter.submitCalls[1].commands, 2)

	assert.Equal(t, 1, q0.CurrentLoad())
	assert.Equal(t, 1, q1.CurrentLoad())
	assert.Equal(t, 2, reg.LiveJobCount())
	assert.Equal(t, 1, reg.BacklogLen())
}

func TestLoop_NoNeedWhenAtIdeal(t *testing.T) {
	q := queuetable.New("q0", "acct", 1, 1, "")
	q.SetIdealJobs(0)

	reg := registry.New()
	reg.AppendCommands(backlogCommands(3, "q0"))

	adapter := &fakeAdapter{}
	loop := New(adapter, reg, testOptions(), nil, nil)

	require.NoError(t, loop.Run(context.Background(), []*queuetable.Queue{q}))
	assert.Empty(t, adapter.submitCalls)
	assert.Equal(t, 3, reg.BacklogLen())
}

func TestLoop_TransientFailureReQueues(t *testing.T) {
	q := queuetable.New("q0", "acct", 1, 5, "")
	q.SetIdealJobs(3)

	reg := registry.New()
	reg.AppendCommands(backlogCommands(3, "q0"))

	transient := cluster.NewSubmissionFailure(clustererrors.New(clustererrors.ErrorCodeSocketTimeout, "timed out"))
	adapter := &fakeAdapter{results: []fakeSubmitResult{
		{err: transient},
		{jobID: 1},
		{jobID: 2},
	}}
	loop := New(adapter, reg, testOptions(), nil, nil)

	require.NoError(t, loop.Run(context.Background(), []*queuetable.Queue{q}))

	// The first pack failed transiently and was re-queued; the other two
	// packs, already extracted in this same pass, still submit. The
	// re-queued pack waits for the next tick's extraction.
	assert.Equal(t, 2, q.CurrentLoad())
	assert.Equal(t, 1, reg.BacklogLen())
}

func TestLoop_FatalFailureSurfaces(t *testing.T) {
	q := queuetable.New("q0", "acct", 1, 1, "")
	q.SetIdealJobs(1)

	reg := registry.New()
	reg.AppendCommands(backlogCommands(1, "q0"))

	fatal := cluster.NewSubmissionFailure(clustererrors.New(clustererrors.ErrorCodeRejected, "bad partition"))
	adapter := &fakeAdapter{results: []fakeSubmitResult{{err: fatal}}}
	loop := New(adapter, reg, testOptions(), nil, nil)

	err := loop.Run(context.Background(), []*queuetable.Queue{q})
	require.Error(t, err)
	assert.Equal(t, 0, q.CurrentLoad())
}

func TestLoop_EligibilityRespected(t *testing.T) {
	qa := queuetable.New("a", "acct", 1, 10, "")
	qa.SetIdealJobs(5)

	reg := registry.New()
	x := registry.NewCommand("x", []string{"a", "b"})
	x.RecordFailure("a")
	reg.AppendCommands([]*registry.Command{x})

	adapter := &fakeAdapter{}
	loop := New(adapter, reg, testOptions(), nil, nil)

	require.NoError(t, loop.Run(context.Background(), []*queuetable.Queue{qa}))
	assert.Empty(t, adapter.submitCalls)
	assert.Equal(t, 1, reg.BacklogLen())
}
