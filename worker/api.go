// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// apiStatus is the payload of the worker's local /status endpoint,
// polled by operators to see what a node is doing
// without going through the store.
type apiStatus struct {
	WorkerID      string    `json:"worker_id"`
	WorkflowID    int64     `json:"workflow_id"`
	ComputeNodeID int64     `json:"compute_node_id"`
	JobsProcessed int       `json:"jobs_processed"`
	LastClaim     time.Time `json:"last_claim,omitempty"`
}

// serveAPI starts the worker's local health/status HTTP listener and
// returns a function that shuts it down.
func (w *Worker) serveAPI(addr string) func() {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/status", func(rw http.ResponseWriter, _ *http.Request) {
		w.mu.Lock()
		st := apiStatus{
			WorkerID:      w.cfg.WorkerID,
			WorkflowID:    w.workflowID,
			ComputeNodeID: w.nodeID,
			JobsProcessed: w.processed,
			LastClaim:     w.lastClaim,
		}
		w.mu.Unlock()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(st)
	}).Methods(http.MethodGet)

	srv := &http.Server{Addr: addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			w.log.Warn("worker api listener failed", "error", err)
		}
	}()
	return func() { _ = srv.Close() }
}
