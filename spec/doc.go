// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package spec

// Format identifies a workflow spec surface encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSON5 Format = "json5"
	FormatYAML  Format = "yaml"
	FormatKDL   Format = "kdl"
)

// document is the wire shape every JSON/JSON5/YAML decoder fills in
// before it is converted to the format-independent WorkflowSpec. Using
// one struct for all three text-based formats keeps the exact/regex
// field names and the "present but empty" vs "absent" distinction
// identical across decoders; only the tags differ in which the decoder
// actually reads.
type document struct {
	Name        string `json:"name" yaml:"name"`
	User        string `json:"user,omitempty" yaml:"user,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Jobs                 []jobDoc                 `json:"jobs" yaml:"jobs"`
	Files                *[]fileDoc                `json:"files,omitempty" yaml:"files,omitempty"`
	UserData             *[]userDataDoc            `json:"user_data,omitempty" yaml:"user_data,omitempty"`
	ResourceRequirements *[]resourceRequirementsDoc `json:"resource_requirements,omitempty" yaml:"resource_requirements,omitempty"`
	SlurmSchedulers      *[]schedulerDoc            `json:"slurm_schedulers,omitempty" yaml:"slurm_schedulers,omitempty"`
	FailureHandlers      *[]failureHandlerDoc       `json:"failure_handlers,omitempty" yaml:"failure_handlers,omitempty"`
	WorkflowActions      *[]workflowActionDoc       `json:"workflow_actions,omitempty" yaml:"workflow_actions,omitempty"`
}

type jobDoc struct {
	Name                    string `json:"name" yaml:"name"`
	Command                 string `json:"command" yaml:"command"`
	InvocationScript        string `json:"invocation_script,omitempty" yaml:"invocation_script,omitempty"`
	CancelOnBlockingFailure bool   `json:"cancel_on_blocking_failure,omitempty" yaml:"cancel_on_blocking_failure,omitempty"`
	SupportsTermination     bool   `json:"supports_termination,omitempty" yaml:"supports_termination,omitempty"`
	ResourceRequirements    string `json:"resource_requirements,omitempty" yaml:"resource_requirements,omitempty"`
	Scheduler               string `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`
	FailureHandler          string `json:"failure_handler,omitempty" yaml:"failure_handler,omitempty"`

	DependsOn     *[]string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	DependsOnRegexes *[]string `json:"depends_on_regexes,omitempty" yaml:"depends_on_regexes,omitempty"`
	InputFiles    *[]string `json:"input_files,omitempty" yaml:"input_files,omitempty"`
	InputFilesRegexes *[]string `json:"input_files_regexes,omitempty" yaml:"input_files_regexes,omitempty"`
	OutputFiles   *[]string `json:"output_files,omitempty" yaml:"output_files,omitempty"`
	OutputFilesRegexes *[]string `json:"output_files_regexes,omitempty" yaml:"output_files_regexes,omitempty"`
	InputUserData *[]string `json:"input_user_data,omitempty" yaml:"input_user_data,omitempty"`
	InputUserDataRegexes *[]string `json:"input_user_data_regexes,omitempty" yaml:"input_user_data_regexes,omitempty"`
	OutputUserData *[]string `json:"output_user_data,omitempty" yaml:"output_user_data,omitempty"`
	OutputUserDataRegexes *[]string `json:"output_user_data_regexes,omitempty" yaml:"output_user_data_regexes,omitempty"`

	Parameters    map[string][]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	ParameterMode string              `json:"parameter_mode,omitempty" yaml:"parameter_mode,omitempty"`
	UseParameters bool                `json:"use_parameters,omitempty" yaml:"use_parameters,omitempty"`
}

type fileDoc struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`

	Parameters    map[string][]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	ParameterMode string              `json:"parameter_mode,omitempty" yaml:"parameter_mode,omitempty"`
	UseParameters bool                `json:"use_parameters,omitempty" yaml:"use_parameters,omitempty"`
}

type userDataDoc struct {
	Name        string      `json:"name" yaml:"name"`
	Data        interface{} `json:"data" yaml:"data"`
	IsEphemeral bool        `json:"is_ephemeral,omitempty" yaml:"is_ephemeral,omitempty"`
}

type resourceRequirementsDoc struct {
	Name     string `json:"name" yaml:"name"`
	NumCPUs  int    `json:"num_cpus,omitempty" yaml:"num_cpus,omitempty"`
	NumGPUs  int    `json:"num_gpus,omitempty" yaml:"num_gpus,omitempty"`
	NumNodes int    `json:"num_nodes,omitempty" yaml:"num_nodes,omitempty"`
	Memory   string `json:"memory,omitempty" yaml:"memory,omitempty"`
	Runtime  string `json:"runtime,omitempty" yaml:"runtime,omitempty"`
}

type schedulerDoc struct {
	Name      string `json:"name" yaml:"name"`
	Account   string `json:"account,omitempty" yaml:"account,omitempty"`
	Nodes     int    `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Walltime  string `json:"walltime,omitempty" yaml:"walltime,omitempty"`
	Partition string `json:"partition,omitempty" yaml:"partition,omitempty"`
	QOS       string `json:"qos,omitempty" yaml:"qos,omitempty"`
	Memory    string `json:"memory,omitempty" yaml:"memory,omitempty"`
	Gres      string `json:"gres,omitempty" yaml:"gres,omitempty"`
	Tmp       string `json:"tmp,omitempty" yaml:"tmp,omitempty"`
	Extra     string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

type failureHandlerDoc struct {
	Name               string `json:"name" yaml:"name"`
	MaxRetries         int    `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RetryOnReturnCodes []int  `json:"retry_on_return_codes,omitempty" yaml:"retry_on_return_codes,omitempty"`
}

type workflowActionDoc struct {
	TriggerType      string   `json:"trigger_type" yaml:"trigger_type"`
	ActionType       string   `json:"action_type" yaml:"action_type"`
	RequiredTriggers int      `json:"required_triggers,omitempty" yaml:"required_triggers,omitempty"`
	JobNames         []string `json:"job_names,omitempty" yaml:"job_names,omitempty"`

	Scheduler      string `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`
	NumAllocations int    `json:"num_allocations,omitempty" yaml:"num_allocations,omitempty"`
	AllocationMode string `json:"allocation_mode,omitempty" yaml:"allocation_mode,omitempty"`
}

func refList(exact, regexes *[]string) RefList {
	r := RefList{}
	if exact != nil {
		r.Exact = *exact
	}
	if regexes != nil {
		r.Regexes = *regexes
	}
	return r
}

// toWorkflowSpec converts the decoded wire document into the
// format-independent model, the single place every decoder funnels
// through so downstream packages never see format-specific shapes.
func (d *document) toWorkflowSpec(format Format) *WorkflowSpec {
	ws := &WorkflowSpec{
		Name:         d.Name,
		User:         d.User,
		Description:  d.Description,
		SourceFormat: format,
	}

	for _, j := range d.Jobs {
		ws.Jobs = append(ws.Jobs, JobSpec{
			Name:                    j.Name,
			Command:                 j.Command,
			InvocationScript:        j.InvocationScript,
			CancelOnBlockingFailure: j.CancelOnBlockingFailure,
			SupportsTermination:     j.SupportsTermination,
			ResourceRequirements:    j.ResourceRequirements,
			Scheduler:               j.Scheduler,
			FailureHandler:          j.FailureHandler,
			DependsOn:               refList(j.DependsOn, j.DependsOnRegexes),
			InputFiles:              refList(j.InputFiles, j.InputFilesRegexes),
			OutputFiles:             refList(j.OutputFiles, j.OutputFilesRegexes),
			InputUserData:           refList(j.InputUserData, j.InputUserDataRegexes),
			OutputUserData:          refList(j.OutputUserData, j.OutputUserDataRegexes),
			Parameters:              j.Parameters,
			ParameterMode:           parameterMode(j.ParameterMode),
			UseParameters:           j.UseParameters,
		})
	}

	if d.Files != nil {
		for _, f := range *d.Files {
			ws.Files = append(ws.Files, FileSpec{
				Name:          f.Name,
				Path:          f.Path,
				Parameters:    f.Parameters,
				ParameterMode: parameterMode(f.ParameterMode),
				UseParameters: f.UseParameters,
			})
		}
	}
	if d.UserData != nil {
		for _, u := range *d.UserData {
			ws.UserData = append(ws.UserData, UserDataSpec{
				Name:        u.Name,
				Data:        u.Data,
				IsEphemeral: u.IsEphemeral,
			})
		}
	}
	if d.ResourceRequirements != nil {
		for _, r := range *d.ResourceRequirements {
			ws.ResourceRequirements = append(ws.ResourceRequirements, ResourceRequirementsSpec{
				Name: r.Name, NumCPUs: r.NumCPUs, NumGPUs: r.NumGPUs,
				NumNodes: r.NumNodes, Memory: r.Memory, Runtime: r.Runtime,
			})
		}
	}
	if d.SlurmSchedulers != nil {
		for _, s := range *d.SlurmSchedulers {
			ws.SlurmSchedulers = append(ws.SlurmSchedulers, SchedulerSpec{
				Name: s.Name, Account: s.Account, Nodes: s.Nodes, Walltime: s.Walltime,
				Partition: s.Partition, QOS: s.QOS, Memory: s.Memory, Gres: s.Gres,
				Tmp: s.Tmp, Extra: s.Extra,
			})
		}
	}
	if d.FailureHandlers != nil {
		for _, h := range *d.FailureHandlers {
			ws.FailureHandlers = append(ws.FailureHandlers, FailureHandlerSpec{
				Name: h.Name, MaxRetries: h.MaxRetries, RetryOnReturnCodes: h.RetryOnReturnCodes,
			})
		}
	}
	if d.WorkflowActions != nil {
		for _, a := range *d.WorkflowActions {
			ws.WorkflowActions = append(ws.WorkflowActions, WorkflowActionSpec{
				TriggerType: a.TriggerType, ActionType: a.ActionType,
				RequiredTriggers: a.RequiredTriggers, JobNames: a.JobNames,
				Scheduler: a.Scheduler, NumAllocations: a.NumAllocations,
				AllocationMode: a.AllocationMode,
			})
		}
	}
	return ws
}

func parameterMode(s string) ParameterMode {
	if s == string(ParameterModeZip) {
		return ParameterModeZip
	}
	return ParameterModeProduct
}

// toDocument converts a WorkflowSpec back into the wire shape, used by
// EncodeJSON and EncodeYAML.
func (ws *WorkflowSpec) toDocument() *document {
	d := &document{Name: ws.Name, User: ws.User, Description: ws.Description}

	for _, j := range ws.Jobs {
		jd := jobDoc{
			Name: j.Name, Command: j.Command, InvocationScript: j.InvocationScript,
			CancelOnBlockingFailure: j.CancelOnBlockingFailure,
			SupportsTermination:     j.SupportsTermination,
			ResourceRequirements:    j.ResourceRequirements,
			Scheduler:               j.Scheduler,
			FailureHandler:          j.FailureHandler,
			Parameters:              j.Parameters,
			ParameterMode:           string(j.ParameterMode),
			UseParameters:           j.UseParameters,
		}
		if j.DependsOn.IsSet() {
			jd.DependsOn = &j.DependsOn.Exact
			jd.DependsOnRegexes = &j.DependsOn.Regexes
		}
		if j.InputFiles.IsSet() {
			jd.InputFiles = &j.InputFiles.Exact
			jd.InputFilesRegexes = &j.InputFiles.Regexes
		}
		if j.OutputFiles.IsSet() {
			jd.OutputFiles = &j.OutputFiles.Exact
			jd.OutputFilesRegexes = &j.OutputFiles.Regexes
		}
		if j.InputUserData.IsSet() {
			jd.InputUserData = &j.InputUserData.Exact
			jd.InputUserDataRegexes = &j.InputUserData.Regexes
		}
		if j.OutputUserData.IsSet() {
			jd.OutputUserData = &j.OutputUserData.Exact
			jd.OutputUserDataRegexes = &j.OutputUserData.Regexes
		}
		d.Jobs = append(d.Jobs, jd)
	}

	if ws.Files != nil {
		files := make([]fileDoc, 0, len(ws.Files))
		for _, f := range ws.Files {
			files = append(files, fileDoc{
				Name: f.Name, Path: f.Path, Parameters: f.Parameters,
				ParameterMode: string(f.ParameterMode), UseParameters: f.UseParameters,
			})
		}
		d.Files = &files
	}
	if ws.UserData != nil {
		ud := make([]userDataDoc, 0, len(ws.UserData))
		for _, u := range ws.UserData {
			ud = append(ud, userDataDoc{Name: u.Name, Data: u.Data, IsEphemeral: u.IsEphemeral})
		}
		d.UserData = &ud
	}
	if ws.ResourceRequirements != nil {
		rr := make([]resourceRequirementsDoc, 0, len(ws.ResourceRequirements))
		for _, r := range ws.ResourceRequirements {
			rr = append(rr, resourceRequirementsDoc{
				Name: r.Name, NumCPUs: r.NumCPUs, NumGPUs: r.NumGPUs,
				NumNodes: r.NumNodes, Memory: r.Memory, Runtime: r.Runtime,
			})
		}
		d.ResourceRequirements = &rr
	}
	if ws.SlurmSchedulers != nil {
		sc := make([]schedulerDoc, 0, len(ws.SlurmSchedulers))
		for _, s := range ws.SlurmSchedulers {
			sc = append(sc, schedulerDoc{
				Name: s.Name, Account: s.Account, Nodes: s.Nodes, Walltime: s.Walltime,
				Partition: s.Partition, QOS: s.QOS, Memory: s.Memory, Gres: s.Gres,
				Tmp: s.Tmp, Extra: s.Extra,
			})
		}
		d.SlurmSchedulers = &sc
	}
	if ws.FailureHandlers != nil {
		fh := make([]failureHandlerDoc, 0, len(ws.FailureHandlers))
		for _, h := range ws.FailureHandlers {
			fh = append(fh, failureHandlerDoc{Name: h.Name, MaxRetries: h.MaxRetries, RetryOnReturnCodes: h.RetryOnReturnCodes})
		}
		d.FailureHandlers = &fh
	}
	if ws.WorkflowActions != nil {
		wa := make([]workflowActionDoc, 0, len(ws.WorkflowActions))
		for _, a := range ws.WorkflowActions {
			wa = append(wa, workflowActionDoc{
				TriggerType: a.TriggerType, ActionType: a.ActionType,
				RequiredTriggers: a.RequiredTriggers, JobNames: a.JobNames,
				Scheduler: a.Scheduler, NumAllocations: a.NumAllocations,
				AllocationMode: a.AllocationMode,
			})
		}
		d.WorkflowActions = &wa
	}
	return d
}
