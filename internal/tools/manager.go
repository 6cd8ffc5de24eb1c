// In file: internal/tools/manager.go
package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog/log"
)

// Executor holds the typed registry of actions, one per catalog tool.
type Executor struct {
	catalog       *Catalog
	actions       map[string]Action
	actionTimeout time.Duration
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithActionTimeout bounds every action with a deadline. Zero leaves actions unbounded,
// relying on each action's own limits.
func WithActionTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.actionTimeout = d }
}

// NewExecutor registers actions against the catalog. Every catalog tool needs exactly one
// action, and every action must name a catalog tool.
func NewExecutor(catalog *Catalog, actions []Action, opts ...ExecutorOption) (*Executor, error) {
	e := &Executor{
		catalog: catalog,
		actions: make(map[string]Action, len(actions)),
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, a := range actions {
		name := a.Name()
		if !catalog.Has(name) {
			return nil, fmt.Errorf("action %q does not match any catalog tool", name)
		}
		if _, dup := e.actions[name]; dup {
			return nil, fmt.Errorf("action %q registered more than once", name)
		}
		e.actions[name] = a
	}
	for _, name := range catalog.Names() {
		if _, ok := e.actions[name]; !ok {
			return nil, fmt.Errorf("catalog tool %q has no action", name)
		}
	}

	log.Info().Int("actions", len(e.actions)).Str("catalog_version", catalog.Version()).Msg("Tool executor initialized")
	return e, nil
}

// Execute runs the action registered under name exactly once.
//
// A returned error or a panic inside the action becomes an ActionFault result; neither escapes
// this boundary.
func (e *Executor) Execute(ctx context.Context, name string, args Args) (result ExecutionResult) {
	action, ok := e.actions[name]
	if !ok {
		return ExecutionResult{
			Success:   false,
			Output:    fmt.Sprintf("Error: Unknown tool '%s'", name),
			ErrorKind: KindUnknownTool,
		}
	}

	if e.actionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.actionTimeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("tool", name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Tool action panicked")
			result = ExecutionResult{
				Success:   false,
				Output:    fmt.Sprintf("Error executing tool '%s': internal fault: %v", name, r),
				ErrorKind: KindActionFault,
			}
		}
	}()

	output, err := action.Execute(ctx, args)
	logger := log.With().Str("tool", name).Dur("duration", time.Since(start)).Logger()
	if err != nil {
		logger.Warn().Err(err).Msg("Tool action failed")
		return ExecutionResult{
			Success:   false,
			Output:    fmt.Sprintf("Error executing tool '%s': %v", name, err),
			ErrorKind: KindActionFault,
		}
	}
	logger.Debug().Msg("Tool action completed")
	return ExecutionResult{Success: true, Output: output}
}
