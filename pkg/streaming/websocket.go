// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package streaming

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/auth"
	"github.com/NREL/torc/pkg/logging"
	"github.com/NREL/torc/pkg/retry"
)

// WebSocketClient is the fallback transport for watch used when
// an outbound proxy buffers or drops text/event-stream responses. It
// mirrors SSEClient's reconnect behavior over a plain JSON-message
// websocket frame instead of SSE's text framing.
type WebSocketClient struct {
	baseURL string
	auth    auth.Provider
	logger  logging.Logger
	backoff retry.BackoffStrategy
	dialer  *gorillaws.Dialer
}

// NewWebSocketClient creates a websocket-based watch client against
// the store's base URL (http(s):// is translated to ws(s)://).
func NewWebSocketClient(baseURL string, authProvider auth.Provider, logger logging.Logger) *WebSocketClient {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &WebSocketClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    authProvider,
		logger:  logger,
		backoff: retry.NewLinearBackoff(),
		dialer:  gorillaws.DefaultDialer,
	}
}

// Stream opens (and transparently reconnects) a websocket connection
// for workflowID's events, decoding each text frame as a model.Event.
func (c *WebSocketClient) Stream(ctx context.Context, workflowID int64) <-chan model.Event {
	out := make(chan model.Event, 64)
	go c.run(ctx, workflowID, out)
	return out
}

func (c *WebSocketClient) reconnectDelay(attempt int) time.Duration {
	d, _ := c.backoff.NextDelay(attempt)
	return d
}

func (c *WebSocketClient) run(ctx context.Context, workflowID int64, out chan<- model.Event) {
	defer close(out)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		err := c.connectAndRead(ctx, workflowID, out)
		if ctx.Err() != nil {
			return
		}
		attempt++
		c.logger.Warn("websocket stream disconnected, reconnecting", "error", err, "attempt", attempt)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectDelay(attempt)):
		}
	}
}

func (c *WebSocketClient) connectAndRead(ctx context.Context, workflowID int64, out chan<- model.Event) error {
	url := c.wsURL(workflowID)

	header := make(http.Header)
	if c.auth != nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if err := c.auth.Authenticate(ctx, req); err != nil {
			return err
		}
		header = req.Header
	}

	conn, resp, err := c.dialer.DialContext(ctx, url, header)
	if err != nil {
		return err
	}
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		var evt model.Event
		if err := conn.ReadJSON(&evt); err != nil {
			return err
		}
		select {
		case out <- evt:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *WebSocketClient) wsURL(workflowID int64) string {
	url := c.baseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return fmt.Sprintf("%s/api/v1/workflows/%d/events/ws", url, workflowID)
}
