// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jontk/slurm-metascheduler/internal/queuetable"
	"github.com/jontk/slurm-metascheduler/internal/registry"
)

func TestServer_HandleStatus(t *testing.T) {
	q := queuetable.New("gpu", "acct", 2, 3, "")
	q.IncrementLoad()
	q.SetIdealJobs(1.2)
	q.SetScore(4)
	table := queuetable.NewTable([]*queuetable.Queue{q})
	reg := registry.New()
	reg.AppendCommands(backlogOf(3))

	reporter := New(table, reg, nil, nil, 0, 10, time.Now())
	server := NewServer(reporter, nil, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snapshot StatusSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))

	require.Len(t, snapshot.Queues, 1)
	assert.Equal(t, "gpu", snapshot.Queues[0].Partition)
	assert.Equal(t, 1, snapshot.Queues[0].CurrentLoad)
	assert.Equal(t, 2, snapshot.Queues[0].IdealJobs)
	assert.Equal(t, 4, snapshot.Queues[0].Score)
	assert.Equal(t, 10, snapshot.TotalCommands)
	assert.Equal(t, 7, snapshot.FinishedCommands)
}

func TestServer_UnknownRouteNotFound(t *testing.T) {
	table := queuetable.NewTable(nil)
	reg := registry.New()
	reporter := New(table, reg, nil, nil, 0, 0, time.Now())
	server := NewServer(reporter, nil, time.Second)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
