package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"time"
)

// ShellTool executes a command through the environment's shell ($SHELL on
// POSIX, %COMSPEC% on Windows), inheriting the process's working directory
// (§4.1). When Sandbox is set, execution is delegated to it instead (the
// framework's Docker-backed sandboxing technique, FORGE_SHELL_SANDBOX=docker,
// generalized from code/subprocess.go's Python-subprocess sandbox — §11).
type ShellTool struct {
	Timeout time.Duration
	Sandbox func(ctx context.Context, command string, timeout time.Duration) (string, error)
}

func NewShellTool() *ShellTool { return &ShellTool{Timeout: 20 * time.Second} }

func (t *ShellTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "shell",
		Description: "Execute a command in the environment's shell, inheriting the current working directory. Returns combined stdout+stderr.",
		Schema:      jsonSchema(`"command":{"type":"string"}`, "command"),
	}
}

func shellInvocation() (shell string, flag string) {
	if runtime.GOOS == "windows" {
		if c := os.Getenv("COMSPEC"); c != "" {
			return c, "/C"
		}
		return "cmd.exe", "/C"
	}
	if s := os.Getenv("SHELL"); s != "" {
		return s, "-c"
	}
	return "/bin/sh", "-c"
}

func (t *ShellTool) Call(ctx context.Context, input json.RawMessage) (string, error) {
	var p struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(input, &p); err != nil {
		return "", &ToolExecutionError{Tool: "shell", Cause: err}
	}
	if p.Command == "" {
		return "", &ToolExecutionError{Tool: "shell", Cause: fmt.Errorf("command is required")}
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	if t.Sandbox != nil {
		return t.Sandbox(ctx, p.Command, timeout)
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	shell, flag := shellInvocation()
	cmd := exec.CommandContext(cmdCtx, shell, flag, p.Command)
	if wd, err := os.Getwd(); err == nil {
		cmd.Dir = wd
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n--- stderr ---\n"
		}
		output += stderr.String()
	}
	if cmdCtx.Err() == context.DeadlineExceeded {
		return "", &ToolExecutionError{Tool: "shell", Cause: fmt.Errorf("command timed out after %s: %s", timeout, output)}
	}
	if err != nil {
		return "", &ToolExecutionError{Tool: "shell", Cause: fmt.Errorf("%w: %s", err, output)}
	}
	if output == "" {
		output = "(no output)"
	}
	return output, nil
}
