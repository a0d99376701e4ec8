// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/jontk/slurm-metascheduler/internal/queuetable"
	"github.com/jontk/slurm-metascheduler/pkg/logging"
)

// QueueSnapshot is one queue's status as served over HTTP.
type QueueSnapshot struct {
	Partition   string `json:"partition"`
	CurrentLoad int    `json:"current_load"`
	IdealJobs   int    `json:"ideal_jobs"`
	Score       int    `json:"score"`
}

// StatusSnapshot is the JSON body served by GET /status and pushed over
// the /status/ws websocket.
type StatusSnapshot struct {
	Queues           []QueueSnapshot `json:"queues"`
	FinishedCommands int             `json:"finished_commands"`
	TotalCommands    int             `json:"total_commands"`
	LiveJobs         int             `json:"live_jobs"`
	GeneratedAt      time.Time       `json:"generated_at"`
}

// Snapshot builds the current StatusSnapshot from the Reporter's wired
// Queue Table and Registry.
func (r *Reporter) Snapshot() StatusSnapshot {
	queues := make([]QueueSnapshot, 0, len(r.table.ListAll()))
	for _, q := range r.table.ListAll() {
		queues = append(queues, QueueSnapshot{
			Partition:   q.Partition,
			CurrentLoad: q.CurrentLoad(),
			IdealJobs:   int(math.Ceil(q.IdealJobs())),
			Score:       q.Score(),
		})
	}

	finished := r.totalCommands - r.reg.TotalUnfinished()
	if finished < 0 {
		finished = 0
	}

	return StatusSnapshot{
		Queues:           queues,
		FinishedCommands: finished,
		TotalCommands:    r.totalCommands,
		LiveJobs:         r.reg.LiveJobCount(),
		GeneratedAt:      time.Now(),
	}
}

// Server is the optional HTTP monitoring surface: GET /status returns a
// JSON snapshot, GET /status/ws pushes one every push interval.
type Server struct {
	reporter     *Reporter
	logger       logging.Logger
	pushInterval time.Duration
	router       *mux.Router
	upgrader     websocket.Upgrader
}

// NewServer constructs the status HTTP server, wiring its routes.
func NewServer(reporter *Reporter, logger logging.Logger, pushInterval time.Duration) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	s := &Server{
		reporter:     reporter,
		logger:       logger,
		pushInterval: pushInterval,
		router:       mux.NewRouter().StrictSlash(false),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/status/ws", s.handleStatusWS).Methods(http.MethodGet)
	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.reporter.Snapshot()); err != nil {
		s.logger.Warn("failed to encode status snapshot", "error", err)
	}
}

func (s *Server) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("status websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(s.pushInterval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(s.reporter.Snapshot()); err != nil {
				return
			}
		}
	}
}
