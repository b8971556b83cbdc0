// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

const (
	// DefaultExecTimeout bounds a single exec_cmd invocation.
	DefaultExecTimeout = 30 * time.Second

	// MaxOutputSize caps stdout and stderr separately.
	MaxOutputSize = 30000

	// waitDelay is how long a killed command may hold its output pipes open
	// (for example through a background child) before they are closed.
	waitDelay = 2 * time.Second
)

// ExecCmdArgs are the arguments of exec_cmd.
type ExecCmdArgs struct {
	Cmd string `json:"cmd"`
}

// ExecCmdTool returns the exec_cmd tool with the given timeout.
func ExecCmdTool(timeout time.Duration, workDir string) *Tool {
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	return newTool("exec_cmd",
		fmt.Sprintf("Run a shell command and return stdout, stderr and the exit code. Commands are killed after %s.", formatDuration(timeout)),
		RiskCritical,
		Schema{Parameters: []Parameter{
			{Name: "cmd", Type: "string", Required: true, Description: "Shell command line to execute"},
		}},
		func(ctx context.Context, args ExecCmdArgs) Result {
			return execCmd(ctx, args, timeout, workDir)
		},
	)
}

func execCmd(ctx context.Context, args ExecCmdArgs, timeout time.Duration, workDir string) Result {
	if args.Cmd == "" {
		return Failure("cmd must not be empty")
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(cmdCtx, "cmd", "/C", args.Cmd)
	} else {
		cmd = exec.CommandContext(cmdCtx, "bash", "-c", args.Cmd)
	}
	if workDir != "" {
		cmd.Dir = workDir
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	out, outTruncated := capOutput(stdout.String())
	errOut, errTruncated := capOutput(stderr.String())
	data := map[string]interface{}{
		"stdout": out,
		"stderr": errOut,
	}

	// A deadline hit means timeout even when Run reports a kill signal.
	switch {
	case err != nil && errors.Is(cmdCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result := FailureWithData("command timed out after "+formatDuration(timeout), data)
		result.Truncated = outTruncated || errTruncated
		return result
	case err != nil && ctx.Err() != nil:
		result := FailureWithData("command cancelled", data)
		result.Truncated = outTruncated || errTruncated
		return result
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Could not start the shell at all.
			return FailureWithData("failed to run command: "+err.Error(), data)
		}
		data["exit_code"] = exitErr.ExitCode()
	} else {
		data["exit_code"] = 0
	}

	result := Success(data)
	result.Truncated = outTruncated || errTruncated
	return result
}

func capOutput(s string) (string, bool) {
	if len(s) <= MaxOutputSize {
		return s, false
	}
	cut := MaxOutputSize
	// Back up to a rune boundary.
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// formatDuration formats a duration without trailing zero units ("30s", "1m30s").
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.String()
	}
	d = d.Round(time.Second)
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}
