// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/NREL/torc/client"
	"github.com/NREL/torc/model"
	"github.com/NREL/torc/orchestrator"
	"github.com/NREL/torc/pkg/config"
	"github.com/NREL/torc/plan"
	"github.com/NREL/torc/slurmalloc"
	"github.com/NREL/torc/store"
)

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "Create, submit, and manage workflows",
}

func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

func parseWorkflowID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid workflow id %q", arg)
	}
	return id, nil
}

// newOrchestrator builds the orchestrator with a Slurm-backed
// allocation manager over the CLI's store client.
func newOrchestrator() (*orchestrator.Orchestrator, *client.Client, error) {
	c, err := newClient()
	if err != nil {
		return nil, nil, err
	}
	log := newLogger()
	mgr := slurmalloc.NewManager(c, &slurmalloc.CommandInterface{}, log)
	return orchestrator.New(c, mgr, log), c, nil
}

func workflowOptionsFromFlags(cmd *cobra.Command) config.WorkflowOptions {
	opts := config.DefaultWorkflowOptions()
	if v, _ := cmd.Flags().GetBool("no-resource-monitoring"); v {
		opts.EnableResourceMonitoring = false
	}
	if v, _ := cmd.Flags().GetBool("skip-checks"); v {
		opts.SkipChecks = true
	}
	if v, _ := cmd.Flags().GetBool("dry-run"); v {
		opts.DryRun = true
	}
	return opts
}

var workflowsCreateCmd = &cobra.Command{
	Use:   "create SPEC_FILE",
	Short: "Create a workflow from a spec document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, c, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer c.Close()

		u, _ := cmd.Flags().GetString("user")
		if u == "" {
			u = currentUser()
		}
		opts := workflowOptionsFromFlags(cmd)
		id, err := o.Create(cmd.Context(), args[0], u, opts)
		if err != nil {
			return err
		}
		if opts.DryRun {
			fmt.Println("dry run: workflow spec is valid, nothing created")
			return nil
		}
		if jsonOutput() {
			return printJSON(map[string]int64{"workflow_id": id})
		}
		fmt.Printf("Created workflow %d\n", id)
		return nil
	},
}

var workflowsValidateCmd = &cobra.Command{
	Use:   "validate SPEC_FILE",
	Short: "Validate a spec document without creating anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		skip, _ := cmd.Flags().GetBool("skip-checks")
		report, err := orchestrator.ValidateSpec(args[0], skip)
		if err != nil {
			return err
		}
		if jsonOutput() {
			if err := printJSON(report); err != nil {
				return err
			}
		} else {
			for _, e := range report.Errors {
				fmt.Printf("error: %s\n", e)
			}
			for _, w := range report.Warnings {
				fmt.Printf("warning: %s\n", w)
			}
			s := report.Summary
			fmt.Printf("jobs: %d (%d after expansion), files: %d (%d after expansion)\n",
				s.JobCountBeforeExpansion, s.JobCountAfterExpansion,
				s.FileCountBeforeExpansion, s.FileCountAfterExpansion)
			fmt.Printf("user data: %d, actions: %d, schedulers: %d, schedule_nodes: %v\n",
				s.UserDataCount, s.ActionCount, s.SchedulerCount, s.HasScheduleNodesAction)
		}
		if !report.Valid() {
			return fmt.Errorf("spec failed validation with %d error(s)", len(report.Errors))
		}
		return nil
	},
}

var workflowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		defer c.Close()

		owner, _ := cmd.Flags().GetString("user")
		workflows, err := store.Iterate(cmd.Context(), store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Workflow], error) {
			return c.Workflows().List(ctx, owner, store.ListOptions{Offset: offset, Limit: limit})
		})
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(workflows)
		}
		fmt.Printf("%-8s %-24s %-12s %-10s %-10s\n", "ID", "NAME", "OWNER", "ARCHIVED", "CANCELED")
		fmt.Println(strings.Repeat("-", 70))
		for _, w := range workflows {
			fmt.Printf("%-8d %-24s %-12s %-10v %-10v\n", w.ID, w.Name, w.Owner, w.Archived, w.Canceled)
		}
		fmt.Printf("\nTotal: %d workflows\n", len(workflows))
		return nil
	},
}

var workflowsGetCmd = &cobra.Command{
	Use:   "get WORKFLOW_ID",
	Short: "Show one workflow",
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

		w, err := c.Workflows().Get(cmd.Context(), id)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(w)
		}
		fmt.Printf("ID:          %d\n", w.ID)
		fmt.Printf("Name:        %s\n", w.Name)
		fmt.Printf("Owner:       %s\n", w.Owner)
		if w.Description != "" {
			fmt.Printf("Description: %s\n", w.Description)
		}
		fmt.Printf("Created:     %s\n", w.CreatedAt)
		fmt.Printf("Canceled:    %v\n", w.Canceled)
		if w.Monitor != nil {
			fmt.Printf("Monitoring:  %s every %ds\n", w.Monitor.Granularity, w.Monitor.PeriodSeconds)
		}
		return nil
	},
}

var workflowsSubmitCmd = &cobra.Command{
	Use:   "submit WORKFLOW_ID",
	Short: "Initialise the workflow and fire its start actions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseWorkflowID(args[0])
		if err != nil {
			return err
		}
		o, c, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer c.Close()

		force, _ := cmd.Flags().GetBool("force")
		if err := o.Submit(cmd.Context(), id, force); err != nil {
			return err
		}
		fmt.Printf("Submitted workflow %d\n", id)
		return nil
	},
}

var workflowsCancelCmd = &cobra.Command{
	Use:   "cancel WORKFLOW_ID",
	Short: "Cancel the workflow and its scheduler allocations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseWorkflowID(args[0])
		if err != nil {
			return err
		}
		o, c, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer c.Close()

		if err := o.Cancel(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Canceled workflow %d\n", id)
		return nil
	},
}

var workflowsReinitCmd = &cobra.Command{
	Use:   "reinitialize WORKFLOW_ID",
	Short: "Recompute readiness, re-running jobs whose inputs changed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseWorkflowID(args[0])
		if err != nil {
			return err
		}
		o, c, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer c.Close()

		force, _ := cmd.Flags().GetBool("force")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		report, err := o.Reinitialise(cmd.Context(), id, force, dryRun)
		if err != nil {
			return err
		}
		if dryRun {
			if jsonOutput() {
				return printJSON(report)
			}
			fmt.Printf("Safe:                  %v\n", report.Safe)
			fmt.Printf("Missing input files:   %s\n", strings.Join(report.MissingInputFiles, ", "))
			fmt.Printf("Existing output files: %s\n", strings.Join(report.ExistingOutputFiles, ", "))
			return nil
		}
		fmt.Printf("Reinitialized workflow %d\n", id)
		return nil
	},
}

var workflowsResetCmd = &cobra.Command{
	Use:   "reset-status WORKFLOW_ID",
	Short: "Reset job statuses to uninitialized",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseWorkflowID(args[0])
		if err != nil {
			return err
		}
		o, c, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer c.Close()

		failedOnly, _ := cmd.Flags().GetBool("failed-only")
		force, _ := cmd.Flags().GetBool("force")
		if err := o.ResetStatus(cmd.Context(), id, failedOnly, force); err != nil {
			return err
		}
		fmt.Printf("Reset status for workflow %d\n", id)
		return nil
	},
}

var workflowsDeleteCmd = &cobra.Command{
	Use:   "delete WORKFLOW_ID",
	Short: "Delete a workflow and everything under it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseWorkflowID(args[0])
		if err != nil {
			return err
		}
		o, c, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer c.Close()

		force, _ := cmd.Flags().GetBool("force")
		noPrompts, _ := cmd.Flags().GetBool("no-prompts")
		if !noPrompts && !force {
			fmt.Printf("Delete workflow %d and all of its jobs, files, and results? [y/N] ", id)
			var answer string
			_, _ = fmt.Scanln(&answer)
			if !strings.HasPrefix(strings.ToLower(answer), "y") {
				fmt.Println("aborted")
				return nil
			}
		}
		if err := o.Delete(cmd.Context(), id, currentUser(), force); err != nil {
			return err
		}
		fmt.Printf("Deleted workflow %d\n", id)
		return nil
	},
}

var workflowsPlanCmd = &cobra.Command{
	Use:   "plan WORKFLOW_ID",
	Short: "Show the workflow's execution plan",
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

		p, err := plan.BuildFromWorkflow(cmd.Context(), c, id)
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(p)
		}
		fmt.Print(p.String())
		return nil
	},
}

var workflowsStatusCmd = &cobra.Command{
	Use:   "status WORKFLOW_ID",
	Short: "Show per-job statuses",
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

		jobs, err := store.Iterate(cmd.Context(), store.DefaultPageSize, func(ctx context.Context, offset, limit int) (store.ListResult[model.Job], error) {
			return c.Jobs().List(ctx, id, store.JobListFilter{}, store.ListOptions{Offset: offset, Limit: limit})
		})
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(jobs)
		}
		counts := map[model.JobStatus]int{}
		for _, j := range jobs {
			counts[j.Status]++
		}
		fmt.Printf("%-8s %-28s %-14s\n", "ID", "NAME", "STATUS")
		fmt.Println(strings.Repeat("-", 52))
		for _, j := range jobs {
			fmt.Printf("%-8d %-28s %-14s\n", j.ID, j.Name, j.Status)
		}
		fmt.Println()
		for status, n := range counts {
			fmt.Printf("%s: %d  ", status, n)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	workflowsCreateCmd.Flags().String("user", "", "Workflow owner (default: current user)")
	workflowsCreateCmd.Flags().Bool("dry-run", false, "Validate and stop before creating anything")
	workflowsCreateCmd.Flags().Bool("skip-checks", false, "Skip optional validation checks")
	workflowsCreateCmd.Flags().Bool("no-resource-monitoring", false, "Disable resource telemetry sampling")

	workflowsValidateCmd.Flags().Bool("skip-checks", false, "Skip optional validation checks")

	workflowsListCmd.Flags().String("user", "", "Filter by owner")

	workflowsSubmitCmd.Flags().Bool("force", false, "Initialise even when input files are missing")

	workflowsReinitCmd.Flags().Bool("force", false, "Ignore missing input files")
	workflowsReinitCmd.Flags().Bool("dry-run", false, "Report what would change without mutating")

	workflowsResetCmd.Flags().Bool("failed-only", false, "Only reset terminated/canceled jobs")
	workflowsResetCmd.Flags().Bool("force", false, "Reset even while jobs are active")

	workflowsDeleteCmd.Flags().Bool("force", false, "Delete even when not the owner")
	workflowsDeleteCmd.Flags().Bool("no-prompts", false, "Skip the confirmation prompt")

	workflowsCmd.AddCommand(workflowsCreateCmd)
	workflowsCmd.AddCommand(workflowsValidateCmd)
	workflowsCmd.AddCommand(workflowsListCmd)
	workflowsCmd.AddCommand(workflowsGetCmd)
	workflowsCmd.AddCommand(workflowsSubmitCmd)
	workflowsCmd.AddCommand(workflowsCancelCmd)
	workflowsCmd.AddCommand(workflowsReinitCmd)
	workflowsCmd.AddCommand(workflowsResetCmd)
	workflowsCmd.AddCommand(workflowsDeleteCmd)
	workflowsCmd.AddCommand(workflowsPlanCmd)
	workflowsCmd.AddCommand(workflowsStatusCmd)
}
