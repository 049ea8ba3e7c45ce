// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/worker"
)

var runCmd = &cobra.Command{
	Use:   "run WORKFLOW_ID",
	Short: "Run the workflow's ready jobs on this machine until done",
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
		pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
		healthAddr, _ := cmd.Flags().GetString("health-addr")
		cpus, _ := cmd.Flags().GetInt("cpus")

		cfg := worker.Config{
			PollInterval: pollInterval,
			HealthAddr:   healthAddr,
			Resources:    model.ComputeNodeResources{CPUs: cpus, Nodes: 1},
		}
		if err := o.RunLocal(cmd.Context(), id, force, cfg); err != nil {
			return err
		}
		fmt.Printf("Workflow %d finished\n", id)
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("force", false, "Initialise even when input files are missing")
	runCmd.Flags().Duration("poll-interval", 2*time.Second, "How often to poll for claimable jobs")
	runCmd.Flags().String("health-addr", "", "Serve the worker health/status endpoint on this address (e.g. :8090)")
	runCmd.Flags().Int("cpus", 1, "CPUs to register for this worker")
}
