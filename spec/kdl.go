// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package spec

import (
	"bytes"
	"fmt"
	"strconv"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	torcerrors "github.com/NREL/torc/pkg/errors"
)

// decodeKDL turns a KDL document into a WorkflowSpec. The top-level
// node is named "workflow"; its children are "job", "file",
// "user_data", "resource_requirements", "slurm_scheduler" and
// "workflow_action" nodes, each carrying scalar properties plus
// "depends_on"/"input_files"/... child nodes for reference lists.
func decodeKDL(data []byte, path string) (*WorkflowSpec, error) {
	doc, err := kdl.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, torcerrors.ParseError(path, 0, fmt.Sprintf("decoding kdl: %v", err), err)
	}

	root := firstNode(doc, "workflow")
	if root == nil {
		return nil, torcerrors.ParseError(path, 0, "kdl document has no top-level \"workflow\" node", nil)
	}

	d := &document{
		Name:        firstArgString(root),
		User:        propString(root, "user"),
		Description: propString(root, "description"),
	}

	if root.Children == nil {
		return nil, torcerrors.ParseError(path, 0, "workflow node has no children", nil)
	}

	for _, n := range root.Children.Nodes {
		switch n.Name.Value {
		case "job":
			d.Jobs = append(d.Jobs, kdlJob(n))
		case "file":
			f := kdlFile(n)
			appendFile(d, f)
		case "user_data":
			u := kdlUserData(n)
			appendUserData(d, u)
		case "resource_requirements":
			r := kdlResourceRequirements(n)
			appendResourceRequirements(d, r)
		case "slurm_scheduler":
			s := kdlScheduler(n)
			appendScheduler(d, s)
		case "failure_handler":
			h := kdlFailureHandler(n)
			appendFailureHandler(d, h)
		case "workflow_action":
			a := kdlWorkflowAction(n)
			appendWorkflowAction(d, a)
		}
	}

	if d.Name == "" || len(d.Jobs) == 0 {
		return nil, torcerrors.ParseError(path, 0, "kdl workflow missing name or jobs", nil)
	}
	return d.toWorkflowSpec(FormatKDL), nil
}

func kdlJob(n *document.Node) jobDoc {
	j := jobDoc{
		Name:                 firstArgString(n),
		Command:              propString(n, "command"),
		InvocationScript:     propString(n, "invocation_script"),
		ResourceRequirements: propString(n, "resource_requirements"),
		Scheduler:            propString(n, "scheduler"),
		FailureHandler:       propString(n, "failure_handler"),
		ParameterMode:        propString(n, "parameter_mode"),
	}
	j.CancelOnBlockingFailure = propBool(n, "cancel_on_blocking_failure")
	j.SupportsTermination = propBool(n, "supports_termination")
	j.UseParameters = propBool(n, "use_parameters")

	if n.Children == nil {
		return j
	}
	for _, c := range n.Children.Nodes {
		switch c.Name.Value {
		case "command":
			if j.Command == "" {
				j.Command = firstArgString(c)
			}
		case "depends_on":
			vals := childArgs(c)
			j.DependsOn = &vals
		case "depends_on_regexes":
			vals := childArgs(c)
			j.DependsOnRegexes = &vals
		case "input_files":
			vals := childArgs(c)
			j.InputFiles = &vals
		case "input_files_regexes":
			vals := childArgs(c)
			j.InputFilesRegexes = &vals
		case "output_files":
			vals := childArgs(c)
			j.OutputFiles = &vals
		case "output_files_regexes":
			vals := childArgs(c)
			j.OutputFilesRegexes = &vals
		case "input_user_data":
			vals := childArgs(c)
			j.InputUserData = &vals
		case "input_user_data_regexes":
			vals := childArgs(c)
			j.InputUserDataRegexes = &vals
		case "output_user_data":
			vals := childArgs(c)
			j.OutputUserData = &vals
		case "output_user_data_regexes":
			vals := childArgs(c)
			j.OutputUserDataRegexes = &vals
		case "parameters":
			j.Parameters = kdlParameters(c)
		}
	}
	return j
}

func kdlParameters(n *document.Node) map[string][]string {
	if n.Children == nil {
		return nil
	}
	params := make(map[string][]string, len(n.Children.Nodes))
	for _, c := range n.Children.Nodes {
		params[c.Name.Value] = childArgs(c)
	}
	return params
}

func kdlFile(n *document.Node) fileDoc {
	f := fileDoc{
		Name:          firstArgString(n),
		Path:          propString(n, "path"),
		ParameterMode: propString(n, "parameter_mode"),
		UseParameters: propBool(n, "use_parameters"),
	}
	if n.Children != nil {
		for _, c := range n.Children.Nodes {
			if c.Name.Value == "parameters" {
				f.Parameters = kdlParameters(c)
			}
		}
	}
	return f
}

func kdlUserData(n *document.Node) userDataDoc {
	return userDataDoc{
		Name:        firstArgString(n),
		Data:        propString(n, "data"),
		IsEphemeral: propBool(n, "is_ephemeral"),
	}
}

func kdlResourceRequirements(n *document.Node) resourceRequirementsDoc {
	return resourceRequirementsDoc{
		Name:     firstArgString(n),
		NumCPUs:  propInt(n, "num_cpus"),
		NumGPUs:  propInt(n, "num_gpus"),
		NumNodes: propInt(n, "num_nodes"),
		Memory:   propString(n, "memory"),
		Runtime:  propString(n, "runtime"),
	}
}

func kdlScheduler(n *document.Node) schedulerDoc {
	return schedulerDoc{
		Name:      firstArgString(n),
		Account:   propString(n, "account"),
		Nodes:     propInt(n, "nodes"),
		Walltime:  propString(n, "walltime"),
		Partition: propString(n, "partition"),
		QOS:       propString(n, "qos"),
		Memory:    propString(n, "memory"),
		Gres:      propString(n, "gres"),
		Tmp:       propString(n, "tmp"),
		Extra:     propString(n, "extra"),
	}
}

func kdlFailureHandler(n *document.Node) failureHandlerDoc {
	h := failureHandlerDoc{
		Name:       firstArgString(n),
		MaxRetries: propInt(n, "max_retries"),
	}
	if n.Children != nil {
		for _, c := range n.Children.Nodes {
			if c.Name.Value == "retry_on_return_codes" {
				for _, s := range childArgs(c) {
					if i, err := strconv.Atoi(s); err == nil {
						h.RetryOnReturnCodes = append(h.RetryOnReturnCodes, i)
					}
				}
			}
		}
	}
	return h
}

func kdlWorkflowAction(n *document.Node) workflowActionDoc {
	a := workflowActionDoc{
		TriggerType:      propString(n, "trigger_type"),
		ActionType:       propString(n, "action_type"),
		RequiredTriggers: propInt(n, "required_triggers"),
		Scheduler:        propString(n, "scheduler"),
		NumAllocations:   propInt(n, "num_allocations"),
		AllocationMode:   propString(n, "allocation_mode"),
	}
	if n.Children != nil {
		for _, c := range n.Children.Nodes {
			if c.Name.Value == "job_names" {
				a.JobNames = childArgs(c)
			}
		}
	}
	return a
}

func appendFile(d *document, f fileDoc) {
	if d.Files == nil {
		d.Files = &[]fileDoc{}
	}
	*d.Files = append(*d.Files, f)
}

func appendUserData(d *document, u userDataDoc) {
	if d.UserData == nil {
		d.UserData = &[]userDataDoc{}
	}
	*d.UserData = append(*d.UserData, u)
}

func appendResourceRequirements(d *document, r resourceRequirementsDoc) {
	if d.ResourceRequirements == nil {
		d.ResourceRequirements = &[]resourceRequirementsDoc{}
	}
	*d.ResourceRequirements = append(*d.ResourceRequirements, r)
}

func appendScheduler(d *document, s schedulerDoc) {
	if d.SlurmSchedulers == nil {
		d.SlurmSchedulers = &[]schedulerDoc{}
	}
	*d.SlurmSchedulers = append(*d.SlurmSchedulers, s)
}

func appendFailureHandler(d *document, h failureHandlerDoc) {
	if d.FailureHandlers == nil {
		d.FailureHandlers = &[]failureHandlerDoc{}
	}
	*d.FailureHandlers = append(*d.FailureHandlers, h)
}

func appendWorkflowAction(d *document, a workflowActionDoc) {
	if d.WorkflowActions == nil {
		d.WorkflowActions = &[]workflowActionDoc{}
	}
	*d.WorkflowActions = append(*d.WorkflowActions, a)
}

func firstNode(doc *document.Document, name string) *document.Node {
	for _, n := range doc.Nodes {
		if n.Name.Value == name {
			return n
		}
	}
	return nil
}

func firstArgString(n *document.Node) string {
	if len(n.Arguments) == 0 {
		return ""
	}
	return valueString(n.Arguments[0].Value)
}

func childArgs(n *document.Node) []string {
	vals := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		vals = append(vals, valueString(a.Value))
	}
	return vals
}

func propString(n *document.Node, key string) string {
	if n.Properties == nil {
		return ""
	}
	if v, ok := n.Properties[key]; ok {
		return valueString(v.Value)
	}
	return ""
}

func propInt(n *document.Node, key string) int {
	s := propString(n, key)
	if s == "" {
		return 0
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

func propBool(n *document.Node, key string) bool {
	if n.Properties == nil {
		return false
	}
	if v, ok := n.Properties[key]; ok {
		if b, ok := v.Value.(bool); ok {
			return b
		}
		return valueString(v.Value) == "true"
	}
	return false
}

func valueString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// EncodeKDL serializes a WorkflowSpec back to a minimal KDL document: the
// workflow name, user and description, and each job's name and command.
// No other field is written, reference lists included, so decoding the
// output does not reproduce a fuller spec; node ordering and comments of
// the original document are not preserved either.
func EncodeKDL(ws *WorkflowSpec) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "workflow %q", ws.Name)
	if ws.User != "" {
		fmt.Fprintf(&buf, " user=%q", ws.User)
	}
	if ws.Description != "" {
		fmt.Fprintf(&buf, " description=%q", ws.Description)
	}
	buf.WriteString(" {\n")
	for _, j := range ws.Jobs {
		fmt.Fprintf(&buf, "    job %q {\n        command %q\n    }\n", j.Name, j.Command)
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}
