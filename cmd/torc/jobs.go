// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/store"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and manage jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list WORKFLOW_ID",
	Short: "List a workflow's jobs",
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

		filter := store.JobListFilter{}
		if status, _ := cmd.Flags().GetString("status"); status != "" {
			filter.Status = model.JobStatus(status)
			filter.HasStatus = true
		}

		jobs, err := store.Iterate(cmd.Context(), store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Job], error) {
			return c.Jobs().List(ctx, id, filter, store.ListOptions{Offset: offset, Limit: limit})
		})
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(jobs)
		}
		fmt.Printf("%-8s %-28s %-14s %-20s\n", "ID", "NAME", "STATUS", "SCHEDULER")
		fmt.Println(strings.Repeat("-", 72))
		for _, j := range jobs {
			fmt.Printf("%-8d %-28s %-14s %-20s\n", j.ID, j.Name, j.Status, j.SchedulerName)
		}
		fmt.Printf("\nTotal: %d jobs\n", len(jobs))
		return nil
	},
}

var jobsGetCmd = &cobra.Command{
	Use:   "get JOB_ID",
	Short: "Show one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job id %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		j, err := c.Jobs().Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(j)
		}
		fmt.Printf("ID:       %d\n", j.ID)
		fmt.Printf("Name:     %s\n", j.Name)
		fmt.Printf("Command:  %s\n", j.Command)
		fmt.Printf("Status:   %s\n", j.Status)
		if j.ResourceRequirementsName != "" {
			fmt.Printf("Resources: %s\n", j.ResourceRequirementsName)
		}
		if j.SchedulerName != "" {
			fmt.Printf("Scheduler: %s\n", j.SchedulerName)
		}
		if j.FailureHandlerName != "" {
			fmt.Printf("Failure handler: %s (retries used: %d)\n", j.FailureHandlerName, j.RetryCount)
		}
		return nil
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel JOB_ID",
	Short: "Cancel one job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid job id %q", args[0])
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Jobs().Cancel(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Canceled job %d\n", id)
		return nil
	},
}

var jobsResultsCmd = &cobra.Command{
	Use:   "results WORKFLOW_ID",
	Short: "List job results",
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

		allRuns, _ := cmd.Flags().GetBool("all-runs")
		results, err := store.Iterate(cmd.Context(), store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Result], error) {
			return c.Results().List(ctx, id, store.ResultListFilter{AllRuns: allRuns}, store.ListOptions{Offset: offset, Limit: limit})
		})
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(results)
		}
		fmt.Printf("%-8s %-8s %-6s %-10s %-12s %-14s\n", "JOB", "RUN", "RC", "STATUS", "MINUTES", "PEAK MEM (MB)")
		fmt.Println(strings.Repeat("-", 62))
		for _, r := range results {
			fmt.Printf("%-8d %-8d %-6d %-10s %-12.2f %-14.1f\n",
				r.JobID, r.RunID, r.ReturnCode, r.Status, r.ExecutionTimeMinutes, r.PeakMemoryBytes/1e6)
		}
		return nil
	},
}

func init() {
	jobsListCmd.Flags().String("status", "", "Filter by status")
	jobsResultsCmd.Flags().Bool("all-runs", false, "Include results from earlier runs")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsGetCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsResultsCmd)
}
