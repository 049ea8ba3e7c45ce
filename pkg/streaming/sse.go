// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package streaming provides client-side event streaming over the
// store's Server-Sent Events endpoint, falling back to a websocket
// transport for clusters whose outbound proxy buffers
// text/event-stream responses.
package streaming

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/auth"
	"github.com/NREL/torc/pkg/logging"
	"github.com/NREL/torc/pkg/retry"
)

// SSEClient consumes a workflow's event stream from the store's
// Server-Sent Events endpoint, reconnecting with the watcher's linear
// backoff policy. A reconnect requests the stream with only the optional
// level filter; no last-seen timestamp is sent.
type SSEClient struct {
	baseURL    string
	httpClient *http.Client
	auth       auth.Provider
	logger     logging.Logger
	backoff    retry.BackoffStrategy
}

// NewSSEClient creates a client against the store's base URL.
func NewSSEClient(baseURL string, authProvider auth.Provider, logger logging.Logger) *SSEClient {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &SSEClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 0},
		auth:       authProvider,
		logger:     logger,
		backoff:    retry.NewLinearBackoff(),
	}
}

// Stream opens (and transparently reconnects) an SSE connection for
// workflowID's events at or above minSeverity, decoding each "data:"
// frame as a model.Event and publishing it on the returned channel.
// The channel closes when ctx is cancelled.
func (c *SSEClient) Stream(ctx context.Context, workflowID int64, minSeverity model.Severity) <-chan model.Event {
	out := make(chan model.Event, 64)
	go c.run(ctx, workflowID, minSeverity, out)
	return out
}

func (c *SSEClient) run(ctx context.Context, workflowID int64, minSeverity model.Severity, out chan<- model.Event) {
	defer close(out)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.connectAndRead(ctx, workflowID, minSeverity, out)
		if ctx.Err() != nil {
			return
		}
		attempt++
		c.logger.Warn("sse stream disconnected, reconnecting", "error", err, "attempt", attempt)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay(attempt)):
		}
	}
}

func (c *SSEClient) reconnectDelay(attempt int) time.Duration {
	d, _ := c.backoff.NextDelay(attempt)
	return d
}

func (c *SSEClient) connectAndRead(ctx context.Context, workflowID int64, minSeverity model.Severity, out chan<- model.Event) error {
	url := fmt.Sprintf("%s/api/v1/workflows/%d/events/stream", c.baseURL, workflowID)
	if minSeverity != "" {
		url += "?level=" + string(minSeverity)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.auth != nil {
		if err := c.auth.Authenticate(ctx, req); err != nil {
			return err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sse endpoint returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var dataLines []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(dataLines) == 0 {
				continue
			}
			payload := strings.Join(dataLines, "\n")
			dataLines = dataLines[:0]
			var evt model.Event
			if err := json.Unmarshal([]byte(payload), &evt); err != nil {
				c.logger.Warn("sse payload decode failed", "error", err)
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				return ctx.Err()
			}
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive, ignore
		}
	}
	return scanner.Err()
}
