// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package streaming

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/auth"
	"github.com/NREL/torc/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEClient_Stream_DecodesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: {\"id\":1,\"workflow_id\":7,\"category\":\"job\"}\n\n")
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewSSEClient(srv.URL, auth.NewNoAuth(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	events := client.Stream(ctx, 7, model.SeverityInfo)

	select {
	case evt := <-events:
		assert.EqualValues(t, 1, evt.ID)
		assert.EqualValues(t, 7, evt.WorkflowID)
		assert.Equal(t, "job", evt.Category)
	case <-time.After(400 * time.Millisecond):
		t.Fatal("timed out waiting for sse event")
	}
}

func TestSSEClient_Stream_ClosesOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := NewSSEClient(srv.URL, auth.NewNoAuth(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	events := client.Stream(ctx, 1, model.SeverityInfo)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("stream channel did not close after cancellation")
	}
}

func TestSSEClient_Stream_ReconnectsAfterServerCloses(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		fmt.Fprintf(w, "data: {\"id\":%d,\"workflow_id\":1,\"category\":\"job\"}\n\n", hits)
		flusher.Flush()
	}))
	defer srv.Close()

	client := NewSSEClient(srv.URL, auth.NewNoAuth(), nil)
	client.backoff = &retry.LinearBackoff{Step: 10 * time.Millisecond, Cap: 20 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	events := client.Stream(ctx, 1, model.SeverityInfo)
	var count int
	for range events {
		count++
		if count >= 2 {
			break
		}
	}
	require.GreaterOrEqual(t, count, 2)
}
