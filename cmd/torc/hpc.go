// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/orchestrator"
)

var hpcCmd = &cobra.Command{
	Use:   "hpc",
	Short: "HPC profiles and scheduler-aware workflow creation",
}

var hpcCreateCmd = &cobra.Command{
	Use:   "create SPEC_FILE",
	Short: "Create a workflow, synthesizing Slurm schedulers from an HPC profile",
	Long: `Create a workflow like "workflows create", additionally synthesizing one
Slurm scheduler and one on_workflow_start schedule_nodes action per
distinct job resource class, with partitions chosen from the HPC
profile.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		account, _ := cmd.Flags().GetString("account")
		if account == "" {
			return fmt.Errorf("--account is required")
		}
		profileName, _ := cmd.Flags().GetString("profile")
		profile, ok := orchestrator.LookupProfile(profileName)
		if !ok {
			return fmt.Errorf("unknown HPC profile %q", profileName)
		}
		mode := model.AllocationNxOne
		if m, _ := cmd.Flags().GetString("mode"); m == string(model.AllocationOneXN) {
			mode = model.AllocationOneXN
		}
		nodes, _ := cmd.Flags().GetInt("nodes-per-allocation")
		allocs, _ := cmd.Flags().GetInt("max-allocations")

		o, c, err := newOrchestrator()
		if err != nil {
			return err
		}
		defer c.Close()

		u, _ := cmd.Flags().GetString("user")
		if u == "" {
			u = currentUser()
		}
		id, err := o.CreateWithSchedulers(cmd.Context(), args[0], u, orchestrator.SchedulerSynthesisOptions{
			Account:            account,
			Profile:            profile,
			AllocationMode:     mode,
			NodesPerAllocation: nodes,
			MaxAllocations:     allocs,
		}, workflowOptionsFromFlags(cmd))
		if err != nil {
			return err
		}
		if jsonOutput() {
			return printJSON(map[string]int64{"workflow_id": id})
		}
		fmt.Printf("Created workflow %d with synthesized schedulers\n", id)
		return nil
	},
}

var hpcProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List known HPC profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range []string{"kestrel"} {
			p, _ := orchestrator.LookupProfile(name)
			if jsonOutput() {
				if err := printJSON(p); err != nil {
					return err
				}
				continue
			}
			fmt.Printf("%s (%s)\n", p.Name, p.DisplayName)
			for _, part := range p.Partitions {
				fmt.Printf("  %-12s cpus=%-4d gpus=%-2d mem=%-6s max_walltime=%s\n",
					part.Name, part.CPUsPerNode, part.GPUsPerNode, part.MemoryPerNode, part.MaxWalltime)
			}
		}
		return nil
	},
}

func init() {
	hpcCreateCmd.Flags().String("account", "", "HPC allocation account to charge")
	hpcCreateCmd.Flags().String("profile", "kestrel", "HPC system profile")
	hpcCreateCmd.Flags().String("mode", string(model.AllocationNxOne), "Allocation mode: nx1 or 1xn")
	hpcCreateCmd.Flags().Int("nodes-per-allocation", 1, "Nodes requested per allocation")
	hpcCreateCmd.Flags().Int("max-allocations", 1, "Allocations per schedule_nodes action")
	hpcCreateCmd.Flags().String("user", "", "Workflow owner (default: current user)")
	hpcCreateCmd.Flags().Bool("dry-run", false, "Validate and stop before creating anything")
	hpcCreateCmd.Flags().Bool("skip-checks", false, "Skip optional validation checks")
	hpcCreateCmd.Flags().Bool("no-resource-monitoring", false, "Disable resource telemetry sampling")

	hpcCmd.AddCommand(hpcCreateCmd)
	hpcCmd.AddCommand(hpcProfilesCmd)
}
