// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/store"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect a workflow's event log",
}

var eventsListCmd = &cobra.Command{
	Use:   "list WORKFLOW_ID",
	Short: "List events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseWorkflowID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		filter := store.EventListFilter{}
		filter.Category, _ = cmd.Flags().GetString("category")
		if after, _ := cmd.Flags().GetInt64("after"); after > 0 {
			filter.AfterTimestamp = after
			filter.HasAfterTimestamp = true
		}

		events, err := store.Iterate(cmd.Context(), store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Event], error) {
			return c.Events().List(ctx, id, filter, store.ListOptions{Offset: offset, Limit: limit})
		})
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(events)
		}
		for _, e := range events {
			printEvent(e)
		}
		return nil
	},
}

var eventsLatestCmd = &cobra.Command{
	Use:   "latest WORKFLOW_ID",
	Short: "Show the newest event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseWorkflowID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		e, err := c.Events().GetLatest(cmd.Context(), id)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(e)
		}
		printEvent(*e)
		return nil
	},
}

func init() {
	eventsListCmd.Flags().String("category", "", "Filter by category")
	eventsListCmd.Flags().Int64("after", 0, "Only events after this timestamp (millis)")

	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsLatestCmd)
}
