// SPDX-FileCopyrightText: 2025 NREL
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/NREL/torc/model"
	"github.com/NREL/torc/store"
)

// ShellExecutor runs a job's command through the shell, optionally
// wrapped by the job's invocation script.
type ShellExecutor struct {
	// Shell defaults to /bin/sh.
	Shell string
	// Dir is the working directory for job processes.
	Dir string
}

func (e *ShellExecutor) Run(ctx context.Context, job *model.Job) (ExecResult, error) {
	shell := e.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	command := job.Command
	if job.InvocationScript != "" {
		command = job.InvocationScript + " " + job.Command
	}

	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = e.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	start := store.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	res := ExecResult{Elapsed: elapsed}
	if err == nil {
		return res, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		res.ReturnCode = exitErr.ExitCode()
		return res, nil
	}
	// command never started (bad shell, bad dir); surface as a run
	// failure rather than a job result
	return res, err
}
