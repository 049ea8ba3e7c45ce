// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/NREL/torc/materialize"
	"github.com/NREL/torc/model"
	"github.com/NREL/torc/pkg/config"
	"github.com/NREL/torc/spec"
)

// HPCPartition describes one partition of an HPC system profile.
type HPCPartition struct {
	Name        string `yaml:"name"`
	MaxWalltime string `yaml:"max_walltime"`
	CPUsPerNode int    `yaml:"cpus_per_node"`
	GPUsPerNode int    `yaml:"gpus_per_node"`
	MemoryPerNode string `yaml:"memory_per_node"`
}

// HPCProfile is a named HPC system description used by
// create-with-schedulers to synthesize scheduler configs without the
// user writing them by hand.
type HPCProfile struct {
	Name           string         `yaml:"name"`
	DisplayName    string         `yaml:"display_name"`
	DefaultAccount string         `yaml:"default_account"`
	Partitions     []HPCPartition `yaml:"partitions"`
}

// builtinProfiles are the only profiles LookupProfile knows; no profiles
// are loaded from a config file.
var builtinProfiles = map[string]HPCProfile{
	"kestrel": {
		Name:        "kestrel",
		DisplayName: "NREL Kestrel",
		Partitions: []HPCPartition{
			{Name: "short", MaxWalltime: "04:00:00", CPUsPerNode: 104, MemoryPerNode: "240G"},
			{Name: "standard", MaxWalltime: "48:00:00", CPUsPerNode: 104, MemoryPerNode: "240G"},
			{Name: "bigmem", MaxWalltime: "48:00:00", CPUsPerNode: 104, MemoryPerNode: "2000G"},
			{Name: "gpu-h100", MaxWalltime: "48:00:00", CPUsPerNode: 128, GPUsPerNode: 4, MemoryPerNode: "360G"},
		},
	},
}

// LookupProfile returns a builtin profile by name.
func LookupProfile(name string) (HPCProfile, bool) {
	p, ok := builtinProfiles[name]
	return p, ok
}

// SchedulerSynthesisOptions tunes CreateWithSchedulers.
type SchedulerSynthesisOptions struct {
	Account        string
	Profile        HPCProfile
	AllocationMode model.AllocationMode
	// NodesPerAllocation is the node count each synthesized scheduler
	// requests; 0 means 1.
	NodesPerAllocation int
	// MaxAllocations caps the allocations each schedule_nodes action
	// requests; 0 means one allocation per distinct resource class.
	MaxAllocations int
}

// CreateWithSchedulers is Create plus scheduler synthesis: before
// materialising, synthesize one Scheduler plus one on_workflow_start
// schedule_nodes action per distinct job resource class, choosing each
// class's partition from the HPC profile.
func (o *Orchestrator) CreateWithSchedulers(ctx context.Context, specPath, user string, synth SchedulerSynthesisOptions, opts config.WorkflowOptions) (int64, error) {
	ws, err := spec.Parse(specPath)
	if err != nil {
		return 0, err
	}

	if err := synthesizeSchedulers(ws, synth); err != nil {
		return 0, err
	}

	rs, err := compileSpec(ws, opts)
	if err != nil {
		return 0, err
	}
	if user != "" {
		rs.User = user
	}
	return materialize.Materialize(ctx, o.store, rs, rs.User, opts)
}

// synthesizeSchedulers mutates ws in place, adding a scheduler and a
// schedule_nodes action for every resource class jobs actually use.
func synthesizeSchedulers(ws *spec.WorkflowSpec, synth SchedulerSynthesisOptions) error {
	resourcesByName := make(map[string]spec.ResourceRequirementsSpec, len(ws.ResourceRequirements))
	for _, r := range ws.ResourceRequirements {
		resourcesByName[r.Name] = r
	}

	// distinct resource classes in use, "" meaning no requirements
	classes := map[string][]int{} // class -> job indexes
	for i, j := range ws.Jobs {
		classes[j.ResourceRequirements] = append(classes[j.ResourceRequirements], i)
	}
	classNames := make([]string, 0, len(classes))
	for c := range classes {
		classNames = append(classNames, c)
	}
	sort.Strings(classNames)

	nodes := synth.NodesPerAllocation
	if nodes <= 0 {
		nodes = 1
	}

	for _, class := range classNames {
		var req spec.ResourceRequirementsSpec
		if class != "" {
			r, ok := resourcesByName[class]
			if !ok {
				return fmt.Errorf("jobs reference resource requirements %q which the spec does not define", class)
			}
			req = r
		}

		part, err := choosePartition(synth.Profile, req)
		if err != nil {
			return err
		}

		schedName := "synth_" + part.Name
		if class != "" {
			schedName = "synth_" + class
		}

		walltime := req.Runtime
		if walltime == "" {
			walltime = part.MaxWalltime
		}
		sched := spec.SchedulerSpec{
			Name:      schedName,
			Account:   synth.Account,
			Nodes:     nodes,
			Walltime:  walltime,
			Partition: part.Name,
			Memory:    req.Memory,
		}
		if req.NumGPUs > 0 {
			sched.Gres = "gpu:" + strconv.Itoa(req.NumGPUs)
		}
		ws.SlurmSchedulers = append(ws.SlurmSchedulers, sched)

		for _, idx := range classes[class] {
			ws.Jobs[idx].Scheduler = schedName
		}

		allocations := synth.MaxAllocations
		if allocations <= 0 {
			allocations = 1
		}
		ws.WorkflowActions = append(ws.WorkflowActions, spec.WorkflowActionSpec{
			TriggerType:      string(model.TriggerOnWorkflowStart),
			ActionType:       string(model.ActionScheduleNodes),
			RequiredTriggers: 1,
			Scheduler:        schedName,
			NumAllocations:   allocations,
			AllocationMode:   string(synth.AllocationMode),
		})
	}
	return nil
}

// choosePartition picks the profile partition that fits a resource
// class: the first partition with enough GPUs, CPUs, and (crudely, by
// string-prefix magnitude) memory.
func choosePartition(p HPCProfile, req spec.ResourceRequirementsSpec) (HPCPartition, error) {
	for _, part := range p.Partitions {
		if req.NumGPUs > 0 && part.GPUsPerNode < req.NumGPUs {
			continue
		}
		if req.NumGPUs == 0 && part.GPUsPerNode > 0 {
			// keep CPU work off GPU partitions
			continue
		}
		if req.NumCPUs > 0 && part.CPUsPerNode < req.NumCPUs {
			continue
		}
		if !memoryFits(part.MemoryPerNode, req.Memory) {
			continue
		}
		return part, nil
	}
	return HPCPartition{}, fmt.Errorf("profile %q has no partition fitting resource class (cpus=%d gpus=%d mem=%q)",
		p.Name, req.NumCPUs, req.NumGPUs, req.Memory)
}

// memoryFits compares size strings like "64G"/"240G". Unparseable or
// empty requests always fit; the store re-validates at claim time.
func memoryFits(nodeMem, reqMem string) bool {
	n, okN := parseMemGB(nodeMem)
	r, okR := parseMemGB(reqMem)
	if !okN || !okR {
		return true
	}
	return n >= r
}

func parseMemGB(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, false
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "T"):
		mult, s = 1024, strings.TrimSuffix(s, "T")
	case strings.HasSuffix(s, "G"):
		mult, s = 1, strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "M"):
		mult, s = 1.0/1024, strings.TrimSuffix(s, "M")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * mult, true
}
