// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NREL/torc/client"
	"github.com/NREL/torc/model"
	"github.com/NREL/torc/orchestrator"
	"github.com/NREL/torc/pkg/auth"
	"github.com/NREL/torc/pkg/retry"
	"github.com/NREL/torc/pkg/streaming"
	"github.com/NREL/torc/pkg/watch"
	"github.com/NREL/torc/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch WORKFLOW_ID",
	Short: "Tail a workflow's events",
	Long: `Tail a workflow's events over the server's SSE stream, reconnecting
with linear backoff. With --poll the events are derived by diffing job
statuses over plain list calls instead, for servers (or proxies) that
cannot hold an SSE connection open.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseWorkflowID(args[0])
		if err != nil {
			return err
		}

		// transport errors must surface, not retry, so
		// the watch client runs with retries disabled
		c, err := newClient(client.WithRetryPolicy(retry.NewNoRetry()))
		if err != nil {
			return err
		}
		defer c.Close()

		usePoll, _ := cmd.Flags().GetBool("poll")
		if usePoll {
			return watchByPolling(cmd.Context(), c, id)
		}
		if useWS, _ := cmd.Flags().GetBool("websocket"); useWS {
			return watchByWebsocket(cmd.Context(), id)
		}

		level, _ := cmd.Flags().GetString("level")
		autoRecover, _ := cmd.Flags().GetBool("auto-recover")
		o := orchestrator.New(c, nil, newLogger())
		return o.Watch(cmd.Context(), id, orchestrator.WatchOptions{
			MinSeverity: model.Severity(level),
			AutoRecover: autoRecover,
			OnEvent:     printEvent,
		})
	},
}

func printEvent(e model.Event) {
	if jsonOutput() {
		_ = printJSON(e)
		return
	}
	fmt.Printf("%d [%s] %s %s\n", e.TimestampMillis, e.Severity, e.Category, string(e.Data))
}

// watchByWebsocket streams events over the websocket fallback
// transport, for clusters whose outbound proxy buffers SSE responses.
func watchByWebsocket(ctx context.Context, workflowID int64) error {
	profile := loadProfile()
	baseURL := flagURL
	if baseURL == "" {
		baseURL = profile.URL
	}
	ws := streaming.NewWebSocketClient(baseURL, auth.FromEnv(), newLogger())
	for ev := range ws.Stream(ctx, workflowID) {
		printEvent(ev)
	}
	return ctx.Err()
}

// watchByPolling diffs job statuses over the plain list endpoint.
func watchByPolling(ctx context.Context, c *client.Client, workflowID int64) error {
	poller := watch.NewJobPoller(func(ctx context.Context, workflowID int64) ([]model.Job, error) {
		return store.Iterate(ctx, store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Job], error) {
			return c.Jobs().List(ctx, workflowID, store.JobListFilter{}, store.ListOptions{Offset: offset, Limit: limit})
		})
	})
	for ev := range poller.Watch(ctx, workflowID) {
		if jsonOutput() {
			_ = printJSON(ev)
			continue
		}
		fmt.Printf("%s job=%d %s -> %s\n", ev.EventType, ev.JobID, ev.PreviousStatus, ev.NewStatus)
	}
	return ctx.Err()
}

func init() {
	watchCmd.Flags().String("level", "info", "Minimum event severity: debug, info, warn, error")
	watchCmd.Flags().Bool("auto-recover", false, "Re-ready terminated jobs whose failure handler permits retry")
	watchCmd.Flags().Bool("poll", false, "Poll job statuses instead of streaming events")
	watchCmd.Flags().Bool("websocket", false, "Stream over websocket instead of SSE")
}
