package builtin

import (
	"fmt"
	"strings"

	"github.com/hopper-project/core/pkg/sandbox"
)

// ExecCommandTool runs a process directly, with no shell interposed. The
// raw command is tokenized by sandbox.Tokenize, which rejects shell
// metacharacters outright rather than trying to neutralize them; the
// resulting argv is what actually gets spawned.
type ExecCommandTool struct {
	workDirAware
	Sandbox *sandbox.Sandbox
}

func (t *ExecCommandTool) Name() string { return "run_command" }

func (t *ExecCommandTool) Description() string {
	return "Run a command directly (no shell). Pipes, redirects, globs, and subshells are not supported; " +
		"pass a single program and its arguments."
}

func (t *ExecCommandTool) Parameters() ParameterSchema {
	return ParameterSchema{
		Type: "object",
		Properties: map[string]PropertySchema{
			"command": {Type: "string", Description: "The program and arguments to run, e.g. \"go test ./...\""},
		},
		Required: []string{"command"},
	}
}

func (t *ExecCommandTool) sandbox() *sandbox.Sandbox {
	if t.Sandbox != nil {
		return t.Sandbox
	}
	return sandbox.NewWithDefaults()
}

func (t *ExecCommandTool) Execute(params map[string]any) (*Result, error) {
	raw, _ := params["command"].(string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return &Result{Success: false, Error: "command cannot be empty"}, nil
	}

	argv, err := sandbox.Tokenize(raw)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}

	sb := t.sandbox()
	if err := sb.Validate(argv); err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}

	ctx, cancel := t.execContext()
	defer cancel()

	res := sb.Execute(ctx, argv)

	data := map[string]any{
		"exit_code": res.ExitCode,
		"stdout":    res.Stdout,
		"stderr":    res.Stderr,
		"duration":  res.Duration.String(),
		"killed":    res.Killed,
	}

	if res.Error != nil {
		return &Result{Success: false, Error: res.Error.Error(), Data: data}, nil
	}
	if res.ExitCode != 0 {
		return &Result{Success: false, Error: fmt.Sprintf("command exited with code %d", res.ExitCode), Data: data}, nil
	}

	return &Result{Success: true, Data: data}, nil
}
