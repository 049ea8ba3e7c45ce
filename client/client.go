// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package client is the HTTP implementation of store.Store: a REST
// client for the Torc server's JSON API. It layers the shared
// infrastructure packages — config, auth, retry, connection pooling,
// round-tripper middleware, metrics — under one Client value, and every
// engine package consumes it through the store interfaces only.
package client

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/NREL/torc/pkg/auth"
	"github.com/NREL/torc/pkg/config"
	torcerrors "github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/pkg/logging"
	"github.com/NREL/torc/pkg/metrics"
	"github.com/NREL/torc/pkg/middleware"
	"github.com/NREL/torc/pkg/pool"
	"github.com/NREL/torc/pkg/retry"
	"github.com/NREL/torc/pkg/streaming"
	"github.com/NREL/torc/store"
)

// Client talks to one Torc server. It implements store.Store.
type Client struct {
	cfg        *config.Config
	base       *url.URL
	httpClient *http.Client
	auth       auth.Provider
	retry      retry.Policy
	log        logging.Logger
	metrics    metrics.Collector
	pool       *pool.HTTPClientPool
	sse        *streaming.SSEClient
}

// Option configures a Client.
type Option func(*Client)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(c *Client) { c.cfg = cfg }
}

// WithAuth sets the authentication provider.
func WithAuth(p auth.Provider) Option {
	return func(c *Client) { c.auth = p }
}

// WithRetryPolicy replaces the default retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient bypasses the connection pool with a caller-supplied
// http.Client (mainly for tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New builds a Client from options. The zero configuration talks to
// TORC_SERVER_URL with no auth, exponential-backoff retries, and no-op
// logging/metrics.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		cfg:     config.NewDefault(),
		auth:    auth.NewNoAuth(),
		log:     logging.NoOpLogger{},
		metrics: metrics.NoOpCollector{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimRight(c.cfg.BaseURL, "/"))
	if err != nil {
		return nil, torcerrors.TransportFailure("client.parse_base_url", err)
	}
	c.base = base

	if c.retry == nil {
		c.retry = retry.NewHTTPExponentialBackoff().
			WithMaxRetries(c.cfg.MaxRetries).
			WithMinWaitTime(c.cfg.RetryWaitMin).
			WithMaxWaitTime(c.cfg.RetryWaitMax)
	}

	if c.httpClient == nil {
		c.pool = pool.NewHTTPClientPool(pool.DefaultPoolConfig(), c.log)
		pooled := c.pool.GetClient(base.Host)
		transport := pooled.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		chain := middleware.Chain(
			middleware.WithUserAgent(c.cfg.UserAgent),
			middleware.WithRequestID(uuid.NewString),
			middleware.WithLogging(c.log),
		)
		c.httpClient = &http.Client{
			Transport: chain(transport),
			Timeout:   c.cfg.Timeout,
		}
	}

	c.sse = streaming.NewSSEClient(c.cfg.BaseURL, c.auth, c.log)
	return c, nil
}

// Close releases pooled connections.
func (c *Client) Close() error {
	if c.pool != nil {
		return c.pool.Close()
	}
	return nil
}

// Metrics exposes the collector for callers that want to report client
// statistics.
func (c *Client) Metrics() metrics.Collector { return c.metrics }

// --- store.Store ---

func (c *Client) Workflows() store.WorkflowStore               { return &workflowClient{c} }
func (c *Client) Jobs() store.JobStore                         { return &jobClient{c} }
func (c *Client) Files() store.FileStore                       { return &fileClient{c} }
func (c *Client) UserData() store.UserDataStore                { return &userDataClient{c} }
func (c *Client) ResourceRequirements() store.ResourceRequirementsStore {
	return &resourceClient{c}
}
func (c *Client) Schedulers() store.SchedulerStore             { return &schedulerClient{c} }
func (c *Client) FailureHandlers() store.FailureHandlerStore   { return &failureHandlerClient{c} }
func (c *Client) ScheduledComputeNodes() store.ScheduledComputeNodeStore {
	return &scheduledNodeClient{c}
}
func (c *Client) ComputeNodes() store.ComputeNodeStore         { return &computeNodeClient{c} }
func (c *Client) Results() store.ResultStore                   { return &resultClient{c} }
func (c *Client) Events() store.EventStore                     { return &eventClient{c} }
func (c *Client) Dependencies() store.DependencyViewStore      { return &dependencyClient{c} }
func (c *Client) Actions() store.ActionStore                   { return &actionClient{c} }
func (c *Client) Health() store.HealthStore                    { return &healthClient{c} }

var _ store.Store = (*Client)(nil)
