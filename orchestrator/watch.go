// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/store"
)

// WatchOptions controls the watch flow.
type WatchOptions struct {
	// MinSeverity filters the event stream server-side.
	MinSeverity model.Severity
	// AutoRecover re-readies Terminated jobs whose failure handler
	// still permits a retry. Application-level recovery only; transport
	// errors always end the watch.
	AutoRecover bool
	// OnEvent is invoked for every event observed, in timestamp order.
	OnEvent func(model.Event)
}

// Watch tails the workflow's event stream until ctx is
// canceled or the stream ends. The store client is responsible for SSE
// reconnection with linear backoff; by the time events reach this
// loop they are already ordered.
func (o *Orchestrator) Watch(ctx context.Context, workflowID int64, opts WatchOptions) error {
	minSev := opts.MinSeverity
	if minSev == "" {
		minSev = model.SeverityInfo
	}
	events, err := o.store.Events().Stream(ctx, workflowID, minSev)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if opts.OnEvent != nil {
				opts.OnEvent(ev)
			}
			if opts.AutoRecover && isJobFailureEvent(ev) {
				if err := o.recoverTerminated(ctx, workflowID); err != nil {
					return err
				}
			}
		}
	}
}

func isJobFailureEvent(ev model.Event) bool {
	if ev.Category != "job_status" {
		return false
	}
	var body struct {
		Status model.JobStatus `json:"status"`
	}
	if err := json.Unmarshal(ev.Data, &body); err != nil {
		return false
	}
	return body.Status == model.JobTerminated
}

// recoverTerminated retries every Terminated job whose failure handler
// still has attempts left.
func (o *Orchestrator) recoverTerminated(ctx context.Context, workflowID int64) error {
	jobs, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Job], error) {
		return o.store.Jobs().List(ctx, workflowID, store.JobListFilter{Status: model.JobTerminated, HasStatus: true}, store.ListOptions{Offset: offset, Limit: limit})
	})
	if err != nil {
		return err
	}
	for _, j := range jobs {
		handler, err := o.failureHandler(ctx, workflowID, j.FailureHandlerName)
		if err != nil {
			return err
		}
		if !handler.AllowsRetry(lastReturnCode(ctx, o.store, &j), j.RetryCount) {
			continue
		}
		if err := o.store.Jobs().Retry(ctx, j.ID); err != nil {
			return err
		}
		o.log.Info("re-readied terminated job", "job", j.Name, "retries", j.RetryCount+1)
	}
	_, err = o.status.UnblockReady(ctx, workflowID)
	if err != nil {
		return err
	}
	return o.status.Initialise(ctx, workflowID, true)
}

func (o *Orchestrator) failureHandler(ctx context.Context, workflowID int64, name string) (*model.FailureHandler, error) {
	if name == "" {
		return nil, nil
	}
	handlers, err := store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.FailureHandler], error) {
		return o.store.FailureHandlers().List(ctx, workflowID, store.ListOptions{Offset: offset, Limit: limit})
	})
	if err != nil {
		return nil, err
	}
	for i := range handlers {
		if handlers[i].Name == name {
			return &handlers[i], nil
		}
	}
	return nil, nil
}

// lastReturnCode fetches the newest result's return code for a job; 1
// when no result exists so "retry on any non-zero" handlers still fire.
func lastReturnCode(ctx context.Context, st store.Store, j *model.Job) int {
	results, err := st.Results().List(ctx, j.WorkflowID, store.ResultListFilter{JobID: j.ID, HasJobID: true, AllRuns: true}, store.ListOptions{})
	if err != nil || len(results.Items) == 0 {
		return 1
	}
	latest := results.Items[0]
	for _, r := range results.Items[1:] {
		if r.CompletedAt.After(latest.CompletedAt) {
			latest = r
		}
	}
	return latest.ReturnCode
}
