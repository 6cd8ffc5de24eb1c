// In file: internal/dispatch/router.go
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dileep-u-k/tool-router/internal/api"
	"github.com/dileep-u-k/tool-router/internal/llm"
	"github.com/dileep-u-k/tool-router/internal/tools"
)

// DefaultSystemPrompt is the instruction placed before the user's input.
const DefaultSystemPrompt = "Analyze the user's input and determine the best function tool to use based on the context provided."

const defaultGatewayTimeout = 30 * time.Second

// Gateway is the provider-facing side of a cycle. *llm.Gateway implements it.
type Gateway interface {
	SelectTool(ctx context.Context, transcript []llm.Message, catalog *tools.Catalog) (*llm.Selection, error)
	Confirm(ctx context.Context, transcript []llm.Message, decision llm.ToolCallDecision, definition tools.Tool, provider string) (*llm.ConfirmedDecision, error)
}

// Executor runs a validated call. *tools.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, name string, args tools.Args) tools.ExecutionResult
}

// Config controls every cycle a Router runs.
type Config struct {
	SystemPrompt string
	// SelectTimeout and ConfirmTimeout bound each gateway call. Zero means 30s.
	SelectTimeout  time.Duration
	ConfirmTimeout time.Duration
	// RequireTool makes a prose answer from the selection provider a NoToolSelected error.
	RequireTool bool
}

// Request is one user request.
type Request struct {
	Input string
	// RequireTool overrides Config.RequireTool when set.
	RequireTool *bool
}

// PhaseTrace records one phase of a cycle.
type PhaseTrace struct {
	Phase    State
	Provider string
	Latency  time.Duration
	Usage    api.Usage
	Err      string
}

// Outcome describes a finished cycle, successful or not.
type Outcome struct {
	CycleID     string
	State       State
	Tool        string
	SelectedBy  string
	ConfirmedBy string
	// Result is set only when a tool ran.
	Result *tools.ExecutionResult
	// Answer is the model's prose reply when it selected no tool.
	Answer   string
	Usage    api.Usage
	Duration time.Duration
	Trace    []PhaseTrace
}

// Router runs dispatch cycles. It holds no per-request state and is safe for concurrent use.
type Router struct {
	catalog  *tools.Catalog
	binding  *Binding
	gateway  Gateway
	executor Executor
	cfg      Config
}

// NewRouter wires the router's collaborators.
func NewRouter(catalog *tools.Catalog, binding *Binding, gateway Gateway, executor Executor, cfg Config) (*Router, error) {
	if catalog == nil || binding == nil || gateway == nil || executor == nil {
		return nil, errors.New("router requires a catalog, binding, gateway and executor")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.SelectTimeout <= 0 {
		cfg.SelectTimeout = defaultGatewayTimeout
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultGatewayTimeout
	}
	return &Router{catalog: catalog, binding: binding, gateway: gateway, executor: executor, cfg: cfg}, nil
}

// Catalog returns the catalog the router validates against.
func (r *Router) Catalog() *tools.Catalog { return r.catalog }

// Binding returns the router's provider binding.
func (r *Router) Binding() *Binding { return r.binding }

// cycle is the mutable state of one Dispatch call.
type cycle struct {
	out    *Outcome
	logger zerolog.Logger
	start  time.Time
}

func (c *cycle) enter(next State) {
	if !CanTransition(c.out.State, next) {
		// A bad edge is a router bug; keep going but make it loud.
		c.logger.Error().Str("from", string(c.out.State)).Str("to", string(next)).Msg("Illegal state transition")
	}
	c.logger.Debug().Str("from", string(c.out.State)).Str("to", string(next)).Msg("State transition")
	c.out.State = next
}

func (c *cycle) trace(phase State, provider string, started time.Time, usage api.Usage, err error) {
	t := PhaseTrace{Phase: phase, Provider: provider, Latency: time.Since(started), Usage: usage}
	if err != nil {
		t.Err = err.Error()
	}
	c.out.Trace = append(c.out.Trace, t)
	c.out.Usage.Add(usage)
}

func (c *cycle) fail(kind Kind, tool string, err error) (*Outcome, error) {
	derr := &Error{Kind: kind, Phase: c.out.State, Tool: tool, Err: err}
	c.out.State = StateError
	c.out.Duration = time.Since(c.start)
	c.logger.Warn().
		Str("kind", string(kind)).
		Str("phase", string(derr.Phase)).
		Str("tool", tool).
		Err(err).
		Dur("duration", c.out.Duration).
		Msg("Dispatch cycle failed")
	return c.out, derr
}

func (c *cycle) done() (*Outcome, error) {
	c.enter(StateDone)
	c.out.Duration = time.Since(c.start)
	ev := c.logger.Info().Str("tool", c.out.Tool).Dur("duration", c.out.Duration)
	if c.out.Result != nil {
		ev = ev.Bool("success", c.out.Result.Success)
	}
	ev.Msg("Dispatch cycle completed")
	return c.out, nil
}

// Dispatch runs one full cycle for req.
//
// On failure the returned Outcome is in the Error state and the error is a *Error naming the
// failing phase. The executor is invoked at most once, and never before validation succeeds.
func (r *Router) Dispatch(ctx context.Context, req Request) (*Outcome, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate cycle id: %w", err)
	}
	logger := log.With().Str("cycle_id", id).Logger()
	ctx = logger.WithContext(ctx)

	c := &cycle{
		out:    &Outcome{CycleID: id, State: StateIdle},
		logger: logger,
		start:  time.Now(),
	}

	requireTool := r.cfg.RequireTool
	if req.RequireTool != nil {
		requireTool = *req.RequireTool
	}
	if err := ctx.Err(); err != nil {
		return c.fail(KindCanceled, "", err)
	}

	transcript := []llm.Message{
		{Role: llm.RoleSystem, Content: r.cfg.SystemPrompt},
		{Role: llm.RoleUser, Content: req.Input},
	}

	// Selecting
	c.enter(StateSelecting)
	started := time.Now()
	sel, err := callWithTimeout(ctx, r.cfg.SelectTimeout, func(callCtx context.Context) (*llm.Selection, error) {
		return r.gateway.SelectTool(callCtx, transcript, r.catalog)
	})
	if err == nil && sel == nil {
		err = fmt.Errorf("%w: selection", errEmptyGatewayResult)
	}
	if err != nil {
		c.trace(StateSelecting, failedProvider(err), started, api.Usage{}, err)
		return c.fail(gatewayKind(ctx, err), "", err)
	}
	c.out.SelectedBy = sel.Provider
	c.trace(StateSelecting, sel.Provider, started, sel.Usage, nil)

	if sel.Decision == nil {
		if requireTool {
			return c.fail(KindNoToolSelected, "", ErrNoToolSelected)
		}
		c.out.Answer = sel.Answer
		return c.done()
	}

	// Routed
	decision := *sel.Decision
	tool := decision.ToolName
	c.out.Tool = tool
	c.enter(StateRouted)
	c.logger.Debug().Str("tool", tool).Str("provider", sel.Provider).Msg("Tool selected")

	rawArguments := decision.RawArguments
	if r.catalog.Has(tool) {
		provider, ok := r.binding.Resolve(tool)
		if !ok {
			return c.fail(KindUnroutableTool, tool, ErrUnroutable)
		}
		if err := ctx.Err(); err != nil {
			return c.fail(KindCanceled, tool, err)
		}

		// Confirming
		c.enter(StateConfirming)
		def, _ := r.catalog.Lookup(tool)
		started = time.Now()
		confirmed, err := callWithTimeout(ctx, r.cfg.ConfirmTimeout, func(callCtx context.Context) (*llm.ConfirmedDecision, error) {
			return r.gateway.Confirm(callCtx, transcript, decision, def, provider)
		})
		if err == nil && confirmed == nil {
			err = fmt.Errorf("%w: confirmation", errEmptyGatewayResult)
		}
		if err != nil {
			c.trace(StateConfirming, provider, started, api.Usage{}, err)
			return c.fail(gatewayKind(ctx, err), tool, err)
		}
		c.out.ConfirmedBy = confirmed.Provider
		c.trace(StateConfirming, confirmed.Provider, started, confirmed.Usage, nil)
		rawArguments = confirmed.Decision.RawArguments
	}
	// A name outside the catalog has no definition to confirm against; it fails validation.

	// Validating
	if err := ctx.Err(); err != nil {
		return c.fail(KindCanceled, tool, err)
	}
	c.enter(StateValidating)
	args, err := r.catalog.Validate(tool, rawArguments)
	if err != nil {
		kind := KindValidationError
		if errors.Is(err, tools.ErrUnknownTool) {
			kind = KindUnknownTool
		}
		return c.fail(kind, tool, err)
	}

	// Executing
	if err := ctx.Err(); err != nil {
		return c.fail(KindCanceled, tool, err)
	}
	c.enter(StateExecuting)
	started = time.Now()
	result := r.executor.Execute(ctx, tool, args)
	var execErr error
	if !result.Success {
		execErr = errors.New(string(result.ErrorKind))
	}
	c.trace(StateExecuting, "", started, api.Usage{}, execErr)
	c.out.Result = &result
	return c.done()
}

// errEmptyGatewayResult marks a gateway call that returned neither a result nor an error.
var errEmptyGatewayResult = errors.New("gateway returned no result")

// errGatewayDeadline marks a gateway call abandoned because its own deadline passed.
var errGatewayDeadline = errors.New("gateway call exceeded its deadline")

// callWithTimeout runs fn under a deadline in its own goroutine, so a provider that ignores its
// context still cannot hold the cycle past the deadline.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{val: v, err: err}
	}()

	var zero T
	select {
	case res := <-done:
		if res.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w after %s: %w", errGatewayDeadline, timeout, res.err)
		}
		return res.val, res.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, fmt.Errorf("%w after %s", errGatewayDeadline, timeout)
	}
}

// failedProvider names the provider behind a gateway error, if the gateway reported one.
func failedProvider(err error) string {
	var gerr *llm.GatewayError
	if errors.As(err, &gerr) {
		return gerr.Provider
	}
	return ""
}

// gatewayKind maps a failed gateway call onto a dispatch error kind.
func gatewayKind(ctx context.Context, err error) Kind {
	switch {
	case ctx.Err() != nil:
		return KindCanceled
	case errors.Is(err, errGatewayDeadline):
		return KindGatewayTimeout
	default:
		return KindGatewayError
	}
}
