// In file: internal/tools/executor.go
package tools

import "context"

// Action is the standard interface for the body of one catalog tool.
//
// Exactly one Action is registered per catalog name. Actions only ever receive arguments that
// have already passed Catalog.Validate, so they can read them through the typed Args accessors
// without re-checking presence or type.
type Action interface {
	// Name returns the catalog name this action implements.
	Name() string

	// Execute runs the action synchronously and returns a human-readable summary.
	// It must honour ctx for any blocking work it does.
	Execute(ctx context.Context, args Args) (string, error)
}

// ExecutionResult is the terminal value of one dispatch cycle.
type ExecutionResult struct {
	Success   bool      `json:"success"`
	Output    string    `json:"output"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}
