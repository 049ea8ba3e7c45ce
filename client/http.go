// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	torcctx "github.com/NREL/torc/pkg/context"
	torcerrors "github.com/NREL/torc/pkg/errors"
	"github.com/NREL/torc/store"
)

const apiPrefix = "/api/v1"

// do issues one JSON request against the store, retrying per the
// client's policy on transport errors and retryable status codes, and
// decoding a 2xx body into result (when non-nil). 4xx/5xx responses
// map to the structured error taxonomy via FromHTTPStatus.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return torcerrors.TransportFailure(opName(method, path), err)
		}
	}

	ctx, cancelTimeout := torcctx.EnsureTimeout(ctx, c.cfg.Timeout)
	defer cancelTimeout()

	u := *c.base
	u.Path = u.Path + apiPrefix + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	fullURL := u.String()
	op := opName(method, path)

	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries(); attempt++ {
		var reqBody io.Reader
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
		if err != nil {
			return torcerrors.TransportFailure(op, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.auth != nil {
			if err := c.auth.Authenticate(ctx, req); err != nil {
				return torcerrors.TransportFailure(op, err)
			}
		}

		c.metrics.RecordRequest(method, path)
		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.metrics.RecordError(method, path, err)
			lastErr = err
			if c.retry.ShouldRetry(ctx, nil, err, attempt) {
				c.sleep(ctx, attempt)
				continue
			}
			return torcerrors.TransportFailure(op, err)
		}

		c.metrics.RecordResponse(method, path, resp.StatusCode, time.Since(start))

		if c.retry.ShouldRetry(ctx, resp, nil, attempt) {
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			c.sleep(ctx, attempt)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return torcerrors.TransportFailure(op, err)
		}

		if resp.StatusCode >= 400 {
			return torcerrors.FromHTTPStatus(op, resp.StatusCode, string(respBody))
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return torcerrors.TransportFailure(op, err)
			}
		}
		return nil
	}

	return torcerrors.TransportFailure(op, fmt.Errorf("retries exhausted: %w", lastErr))
}

func (c *Client) sleep(ctx context.Context, attempt int) {
	select {
	case <-ctx.Done():
	case <-time.After(c.retry.WaitTime(attempt)):
	}
}

func opName(method, path string) string {
	return method + " " + path
}

// listEnvelope is the common list response shape.
type listEnvelope[T any] struct {
	Items      []T  `json:"items"`
	HasMore    bool `json:"has_more"`
	TotalCount int  `json:"total_count"`
}

func (e listEnvelope[T]) toResult() store.ListResult[T] {
	return store.ListResult[T]{Items: e.Items, HasMore: e.HasMore, TotalCount: e.TotalCount}
}

// listQuery encodes the common pagination options.
func listQuery(opts store.ListOptions) url.Values {
	q := url.Values{}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.SortBy != "" {
		q.Set("sort_by", opts.SortBy)
	}
	if opts.ReverseSort {
		q.Set("reverse_sort", "true")
	}
	return q
}

// idResponse is the envelope create endpoints return.
type idResponse struct {
	ID int64 `json:"id"`
}
