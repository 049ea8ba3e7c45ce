// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/auth"
	"github.com/NREL/torc/pkg/config"
	torcerrors "github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/pkg/metrics"
	"github.com/NREL/torc/pkg/retry"
	"github.com/NREL/torc/store"
)

// newTestServer wires a minimal in-memory store server covering the
// endpoints the tests exercise.
func newTestServer(t *testing.T) (*httptest.Server, *serverState) {
	t.Helper()
	state := &serverState{workflows: map[int64]*model.Workflow{}}
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	api.HandleFunc("/version", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"version": "1.0.0"})
	}).Methods(http.MethodGet)

	api.HandleFunc("/workflows", func(w http.ResponseWriter, r *http.Request) {
		var wf model.Workflow
		require.NoError(t, json.NewDecoder(r.Body).Decode(&wf))
		state.lastAuth = r.Header.Get("Authorization")
		state.nextID++
		wf.ID = state.nextID
		state.workflows[wf.ID] = &wf
		_ = json.NewEncoder(w).Encode(map[string]int64{"id": wf.ID})
	}).Methods(http.MethodPost)

	api.HandleFunc("/workflows/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		wf, ok := state.workflows[id]
		if !ok {
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(wf)
	}).Methods(http.MethodGet)

	api.HandleFunc("/workflows/{id}/jobs", func(w http.ResponseWriter, r *http.Request) {
		// two pages of jobs: offset 0 -> [a], offset 1 -> [b]
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		jobs := []model.Job{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}}
		end := offset + 1
		if end > len(jobs) {
			end = len(jobs)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items": jobs[offset:end], "has_more": end < len(jobs), "total_count": len(jobs),
		})
	}).Methods(http.MethodGet)

	api.HandleFunc("/workflows/{id}/jobs/claim_next_ready", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			WorkerID string `json:"worker_id"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		state.claimedBy = body.WorkerID
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"claimed": true,
			"job":     model.Job{ID: 1, Name: "a", Status: model.JobSubmitting},
		})
	}).Methods(http.MethodPost)

	api.HandleFunc("/actions/{id}/claim", func(w http.ResponseWriter, r *http.Request) {
		state.claims++
		if state.claims > 1 {
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"claimed": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"claimed": true,
			"action":  model.WorkflowAction{ID: 3, Executed: true},
		})
	}).Methods(http.MethodPost)

	api.HandleFunc("/flaky", func(w http.ResponseWriter, _ *http.Request) {
		state.flakyHits++
		if state.flakyHits < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, state
}

type serverState struct {
	nextID    int64
	workflows map[int64]*model.Workflow
	lastAuth  string
	claimedBy string
	claims    int
	flakyHits int
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	cfg := config.NewDefault()
	cfg.BaseURL = baseURL
	c, err := New(append([]Option{WithConfig(cfg)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCreateAndGetWorkflow(t *testing.T) {
	srv, state := newTestServer(t)
	c := newTestClient(t, srv.URL, WithAuth(auth.NewTokenAuth("sekret")))
	ctx := context.Background()

	id, err := c.Workflows().Create(ctx, &model.Workflow{Name: "w", Owner: "u"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, "Bearer sekret", state.lastAuth)

	wf, err := c.Workflows().Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "w", wf.Name)
}

func TestGetMissingWorkflowMapsError(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(t, srv.URL)

	_, err := c.Workflows().Get(context.Background(), 999)
	var te *torcerrors.TorcError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Error(), "404")
}

func TestJobListPaginationContract(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	jobs, err := store.Iterate(ctx, 1, func(ctx context.Context, offset, limit int) (store.ListResult[model.Job], error) {
		return c.Jobs().List(ctx, 1, store.JobListFilter{}, store.ListOptions{Offset: offset, Limit: limit})
	})
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Name)
	assert.Equal(t, "b", jobs[1].Name)
}

func TestClaimNextReadySendsWorkerID(t *testing.T) {
	srv, state := newTestServer(t)
	c := newTestClient(t, srv.URL)

	job, ok, err := c.Jobs().ClaimNextReady(context.Background(), 1, "node-7:123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", job.Name)
	assert.Equal(t, "node-7:123", state.claimedBy)
}

func TestClaimPendingAtMostOnce(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	act, ok, err := c.Actions().ClaimPending(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, act.Executed)

	_, ok, err = c.Actions().ClaimPending(ctx, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetryOnServerBusy(t *testing.T) {
	srv, state := newTestServer(t)
	collector := metrics.NewInMemoryCollector()
	c := newTestClient(t, srv.URL,
		WithRetryPolicy(retry.NewHTTPExponentialBackoff().WithMaxRetries(3).WithMinWaitTime(0).WithMaxWaitTime(0)),
		WithMetrics(collector),
	)

	err := c.do(context.Background(), http.MethodGet, "/flaky", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, state.flakyHits)

	stats := collector.GetStats()
	assert.NotZero(t, stats.TotalRequests)
}

func TestVersion(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(t, srv.URL)

	clientV, serverV, err := c.Health().Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ClientVersion, clientV)
	assert.Equal(t, "1.0.0", serverV)
}

func TestPing(t *testing.T) {
	srv, _ := newTestServer(t)
	c := newTestClient(t, srv.URL)
	require.NoError(t, c.Health().Ping(context.Background()))
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.NewDefault()
	cfg.BaseURL = ""
	_, err := New(WithConfig(cfg))
	require.Error(t, err)
}

func ExampleNew() {
	c, err := New()
	if err != nil {
		fmt.Println(err)
		return
	}
	defer c.Close()
}
