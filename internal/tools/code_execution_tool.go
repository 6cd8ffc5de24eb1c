// In file: internal/tools/code_execution_tool.go
package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dileep-u-k/tool-router/internal/sandbox"
)

// Interpreter is how a language's code is fed to a host executable over stdin.
type Interpreter struct {
	Command string
	Args    []string
}

// DefaultInterpreters maps the accepted language names onto stdin-reading interpreters.
func DefaultInterpreters() map[string]Interpreter {
	python := Interpreter{Command: "python3", Args: []string{"-"}}
	node := Interpreter{Command: "node", Args: []string{"-"}}
	return map[string]Interpreter{
		"python":     python,
		"python3":    python,
		"bash":       {Command: "bash", Args: []string{"-s"}},
		"sh":         {Command: "sh", Args: []string{"-s"}},
		"shell":      {Command: "sh", Args: []string{"-s"}},
		"javascript": node,
		"js":         node,
		"node":       node,
	}
}

// CodeExecutionTool runs a snippet in a separate, resource-limited process.
// Model-supplied code is never evaluated inside the gateway.
type CodeExecutionTool struct {
	sandbox      sandbox.Sandbox
	interpreters map[string]Interpreter
}

var _ Action = (*CodeExecutionTool)(nil)

// NewCodeExecutionTool creates the tool. A nil interpreter map uses DefaultInterpreters.
func NewCodeExecutionTool(sb sandbox.Sandbox, interpreters map[string]Interpreter) *CodeExecutionTool {
	if interpreters == nil {
		interpreters = DefaultInterpreters()
	}
	return &CodeExecutionTool{sandbox: sb, interpreters: interpreters}
}

func (t *CodeExecutionTool) Name() string { return CodeExecutionToolName }

func (t *CodeExecutionTool) Execute(ctx context.Context, args Args) (string, error) {
	language := strings.ToLower(strings.TrimSpace(args.String("language")))
	interp, ok := t.interpreters[language]
	if !ok {
		return "", fmt.Errorf("code execution not supported for language: %s", args.String("language"))
	}

	res, err := t.sandbox.Execute(ctx, sandbox.ExecuteRequest{
		Command: interp.Command,
		Args:    interp.Args,
		Stdin:   []byte(args.String("code")),
	})
	if err != nil {
		if errors.Is(err, sandbox.ErrExecutionTimeout) {
			return "", fmt.Errorf("%s code exceeded its time limit: %w", language, err)
		}
		return "", fmt.Errorf("%s code could not be executed: %w", language, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%s code exited with status %d: %s", language, res.ExitCode, strings.TrimSpace(string(res.Stderr)))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s code executed successfully in %s.", language, res.Duration.Round(time.Millisecond))
	if out := strings.TrimSpace(string(res.Stdout)); out != "" {
		sb.WriteString("\nOutput:\n")
		sb.WriteString(out)
	}
	if res.Truncated {
		sb.WriteString("\n... [output truncated]")
	}
	return sb.String(), nil
}
