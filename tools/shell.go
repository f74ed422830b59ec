package tools

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/hoidn/sexpflow/sexpr"
	"github.com/hoidn/sexpflow/taskerr"
)

// denylist and metacharacters mirror
// original_source/src/handler/command_executor.py's _is_potentially_unsafe
// exactly, per spec.md §6's shell-tool executor contract.
var shellDenylist = map[string]bool{
	"rm": true, "mv": true, "cp": true, "chmod": true, "chown": true, "sudo": true, "su": true,
}

var shellMetacharacters = []string{">", "<", "|", ";", "&&", "||"}

const defaultShellOutputCap = 1024 * 1024 // 1 MB, spec.md §6

// DefaultAllowedCommands is a ready-made allowlist, carried over from
// _examples/kadirpekel-hector/tools/command.go's CommandToolsConfig default.
// Nothing applies it automatically: the config package's default leaves
// AllowedCommands empty.
var DefaultAllowedCommands = []string{
	"cat", "head", "tail", "ls", "find", "grep", "wc", "pwd",
	"git", "npm", "go", "curl", "wget", "echo", "date",
}

// ShellConfig configures the shell tool's sandboxing, grounded on
// _examples/kadirpekel-hector/tools/command.go's CommandToolsConfig.
// AllowedCommands, when non-empty, is an allowlist: only commands named in
// it may run, checked in addition to (not instead of) shellDenylist and
// shellMetacharacters. An empty AllowedCommands means "no allowlist" —
// only the denylist and metacharacter checks apply, matching the config
// package's zero-value default.
type ShellConfig struct {
	WorkingDirectory string
	Timeout          time.Duration
	OutputCap        int
	AllowedCommands  []string
}

// NewShellTool builds the "execute_command" tool spec and executor. The
// executor never runs the command through a shell (no "sh -c") — args are
// split on whitespace and exec'd directly, so the metacharacter denylist
// below is a defense-in-depth check rather than the only line against
// injection, unlike the teacher's `sh -c` invocation.
func NewShellTool(cfg ShellConfig) (Spec, Executor) {
	if cfg.WorkingDirectory == "" {
		cfg.WorkingDirectory = "."
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.OutputCap == 0 {
		cfg.OutputCap = defaultShellOutputCap
	}

	spec := Spec{
		Name:        "execute_command",
		Description: "Execute a shell command, subject to a command denylist and metacharacter rejection",
		Parameters: []Parameter{
			{Name: "command", Type: "string", Description: "Command and arguments, split on whitespace", Required: true},
			{Name: "working_dir", Type: "string", Description: "Working directory override"},
		},
	}

	executor := func(args map[string]any) (sexpr.TaskResult, error) {
		command, _ := args["command"].(string)
		if command == "" {
			err := taskerr.ToolExecution("execute_command", "command parameter is required")
			return toolFailure(err), err
		}
		workingDir, _ := args["working_dir"].(string)
		if workingDir == "" {
			workingDir = cfg.WorkingDirectory
		}

		fields := strings.Fields(command)
		if len(fields) == 0 {
			err := taskerr.ToolExecution("execute_command", "command parameter is empty")
			return toolFailure(err), err
		}
		if err := validateShellCommand(fields, cfg.AllowedCommands); err != nil {
			return toolFailure(err), err
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
		cmd.Dir = workingDir
		output, runErr := cmd.CombinedOutput()

		out := string(output)
		if len(out) > cfg.OutputCap {
			out = out[:cfg.OutputCap]
		}

		if ctx.Err() == context.DeadlineExceeded {
			err := taskerr.TaskFailure("execute_command", taskerr.ReasonExecutionTimeout, "command timed out after %s", cfg.Timeout)
			return sexpr.TaskResult{
				Status:  sexpr.StatusFailed,
				Content: out,
				Notes:   map[string]any{"error": err.ToDict()},
			}, nil
		}

		exitCode := 0
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}

		status := sexpr.StatusComplete
		if runErr != nil {
			status = sexpr.StatusFailed
		}
		return sexpr.TaskResult{
			Status:  status,
			Content: out,
			Notes: map[string]any{
				"exit_code": exitCode,
				"command":   command,
			},
		}, nil
	}

	return spec, executor
}

func validateShellCommand(fields []string, allowed []string) *taskerr.Error {
	if shellDenylist[fields[0]] {
		return taskerr.ToolExecution("execute_command", "command not allowed: %s", fields[0])
	}
	if len(allowed) > 0 {
		ok := false
		for _, a := range allowed {
			if a == fields[0] {
				ok = true
				break
			}
		}
		if !ok {
			return taskerr.ToolExecution("execute_command", "command not in allowlist: %s", fields[0])
		}
	}
	for _, arg := range fields {
		for _, ch := range shellMetacharacters {
			if strings.Contains(arg, ch) {
				return taskerr.ToolExecution("execute_command", "command contains disallowed metacharacter: %s", ch)
			}
		}
	}
	return nil
}

func toolFailure(err *taskerr.Error) sexpr.TaskResult {
	return sexpr.TaskResult{
		Status:  sexpr.StatusFailed,
		Content: err.Message,
		Notes:   map[string]any{"error": err.ToDict()},
	}
}
