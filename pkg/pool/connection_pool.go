// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

// Package pool shares tuned HTTP transports between the store clients
// a single process creates. A torc process usually talks to exactly one
// store, but a worker on an HPC allocation may also talk to a head-node
// server, and the CLI's watch command holds a second long-lived
// connection for the event stream; pooling per endpoint keeps each on
// its own keep-alive connections.
package pool

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/NREL/torc/pkg/logging"
)

// PoolConfig tunes the shared transport.
type PoolConfig struct {
	// MaxIdleConnsPerHost is sized for a worker that polls the store
	// every couple of seconds: one warm connection is enough, a few
	// spares cover claim bursts.
	MaxIdleConnsPerHost int
	// MaxConnsPerHost caps concurrent connections so a large worker
	// fleet cannot open unbounded sockets against the store.
	MaxConnsPerHost int
	// IdleConnTimeout should exceed the worker poll interval or every
	// poll pays a reconnect.
	IdleConnTimeout time.Duration
	// TLSHandshakeTimeout bounds the handshake.
	TLSHandshakeTimeout time.Duration
	// InsecureSkipVerify disables certificate verification, for store
	// deployments with self-signed certs inside a cluster.
	InsecureSkipVerify bool
}

// DefaultPoolConfig returns the transport tuning the store client uses
// unless overridden.
func DefaultPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConnsPerHost: 4,
		MaxConnsPerHost:     32,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}

// HTTPClientPool hands out one pooled http.Client per endpoint.
type HTTPClientPool struct {
	mu      sync.Mutex
	clients map[string]*pooledClient
	config  *PoolConfig
	logger  logging.Logger
}

type pooledClient struct {
	client   *http.Client
	created  time.Time
	lastUsed time.Time
	useCount int64
}

// NewHTTPClientPool creates an empty pool.
func NewHTTPClientPool(config *PoolConfig, logger logging.Logger) *HTTPClientPool {
	if config == nil {
		config = DefaultPoolConfig()
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &HTTPClientPool{
		clients: make(map[string]*pooledClient),
		config:  config,
		logger:  logger,
	}
}

// GetClient returns the endpoint's shared client, creating it on first
// use.
func (p *HTTPClientPool) GetClient(endpoint string) *http.Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pc, ok := p.clients[endpoint]; ok {
		pc.lastUsed = time.Now()
		pc.useCount++
		return pc.client
	}

	client := p.newClient()
	p.clients[endpoint] = &pooledClient{
		client:   client,
		created:  time.Now(),
		lastUsed: time.Now(),
		useCount: 1,
	}
	p.logger.Debug("created pooled http client", "endpoint", endpoint)
	return client
}

func (p *HTTPClientPool) newClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConnsPerHost: p.config.MaxIdleConnsPerHost,
		MaxConnsPerHost:     p.config.MaxConnsPerHost,
		IdleConnTimeout:     p.config.IdleConnTimeout,
		TLSHandshakeTimeout: p.config.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: p.config.InsecureSkipVerify,
		},
	}
	// timeouts come from the request context, not the client
	return &http.Client{Transport: transport}
}

// ClientStats describes one pooled client's usage.
type ClientStats struct {
	Created  time.Time
	LastUsed time.Time
	UseCount int64
}

// Stats snapshots the pool.
func (p *HTTPClientPool) Stats() map[string]ClientStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]ClientStats, len(p.clients))
	for endpoint, pc := range p.clients {
		out[endpoint] = ClientStats{Created: pc.created, LastUsed: pc.lastUsed, UseCount: pc.useCount}
	}
	return out
}

// CleanupIdleClients drops clients unused for maxIdleTime, closing
// their idle connections, and reports how many were removed.
func (p *HTTPClientPool) CleanupIdleClients(maxIdleTime time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-maxIdleTime)
	for endpoint, pc := range p.clients {
		if pc.lastUsed.Before(cutoff) {
			if transport, ok := pc.client.Transport.(*http.Transport); ok {
				transport.CloseIdleConnections()
			}
			delete(p.clients, endpoint)
			removed++
		}
	}
	return removed
}

// Close drops every client and closes its idle connections.
func (p *HTTPClientPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for endpoint, pc := range p.clients {
		if transport, ok := pc.client.Transport.(*http.Transport); ok {
			transport.CloseIdleConnections()
		}
		delete(p.clients, endpoint)
	}
	return nil
}
