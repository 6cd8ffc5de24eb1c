// In file: internal/llm/gateway.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/dileep-u-k/tool-router/internal/api"
	"github.com/dileep-u-k/tool-router/internal/tools"
)

// Phase names the gateway call that failed.
type Phase string

const (
	PhaseSelect  Phase = "select"
	PhaseConfirm Phase = "confirm"
)

// GatewayReason classifies a GatewayError.
type GatewayReason string

const (
	// ProviderFailure covers transport errors and API errors returned by the SDK.
	ProviderFailure GatewayReason = "ProviderFailure"
	// MalformedResponse means the provider answered but the tool call could not be used.
	MalformedResponse GatewayReason = "MalformedResponse"
	// MissingToolCall means a forced tool call came back without one.
	MissingToolCall GatewayReason = "MissingToolCall"
	// ToolMismatch means the confirming provider called a different tool.
	ToolMismatch GatewayReason = "ToolMismatch"
	// UnknownProvider means no client is registered under the requested name.
	UnknownProvider GatewayReason = "UnknownProvider"
)

// GatewayError reports a failed selection or confirmation call.
type GatewayError struct {
	Provider string
	Phase    Phase
	Reason   GatewayReason
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s call to provider %q failed (%s): %v", e.Phase, e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s call to provider %q failed (%s)", e.Phase, e.Provider, e.Reason)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// ToolCallDecision is a model's choice of one tool plus its unvalidated JSON arguments.
type ToolCallDecision struct {
	ID           string `json:"id,omitempty"`
	ToolName     string `json:"tool_name"`
	RawArguments string `json:"raw_arguments"`
}

// Selection is the outcome of the selection phase: a decision, or a plain answer when the model
// chose not to call any tool.
type Selection struct {
	Provider string
	Decision *ToolCallDecision
	Answer   string
	Usage    api.Usage
}

// ConfirmedDecision is the decision as re-issued by the authoritative provider.
// Its arguments replace the selecting provider's.
type ConfirmedDecision struct {
	Provider string
	Decision ToolCallDecision
	Usage    api.Usage
}

// Gateway is the uniform front over every configured provider client.
// It is read-only after construction and safe for concurrent use.
type Gateway struct {
	clients   map[string]LLMClient
	selection string
	config    GenerationConfig
}

// GatewayOption customizes a Gateway.
type GatewayOption func(*Gateway)

// WithGenerationConfig sets the base generation parameters for selection and confirmation.
func WithGenerationConfig(cfg GenerationConfig) GatewayOption {
	return func(g *Gateway) { g.config = cfg }
}

// NewGateway registers clients by name. selection must name one of them.
func NewGateway(selection string, clients []LLMClient, opts ...GatewayOption) (*Gateway, error) {
	g := &Gateway{clients: make(map[string]LLMClient, len(clients)), selection: selection}
	for _, opt := range opts {
		opt(g)
	}
	for _, c := range clients {
		name := c.Name()
		if name == "" {
			return nil, errors.New("provider client has an empty name")
		}
		if _, dup := g.clients[name]; dup {
			return nil, fmt.Errorf("provider %q registered more than once", name)
		}
		g.clients[name] = c
	}
	if _, ok := g.clients[selection]; !ok {
		return nil, fmt.Errorf("selection provider %q is not configured", selection)
	}
	return g, nil
}

// SelectionProvider returns the name of the provider that performs selection.
func (g *Gateway) SelectionProvider() string { return g.selection }

// Has reports whether a provider is registered under name.
func (g *Gateway) Has(name string) bool {
	_, ok := g.clients[name]
	return ok
}

// Providers returns the registered provider names, sorted.
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.clients))
	for name := range g.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Client returns the client registered under name.
func (g *Gateway) Client(name string) (LLMClient, error) {
	return g.lookup(name, "")
}

func (g *Gateway) lookup(name string, phase Phase) (LLMClient, error) {
	c, ok := g.clients[name]
	if !ok {
		return nil, &GatewayError{
			Provider: name, Phase: phase, Reason: UnknownProvider,
			Err: fmt.Errorf("provider %q is not configured", name),
		}
	}
	return c, nil
}

// SelectTool asks the selection provider to choose one tool from the full catalog.
// The model may also answer in prose, which yields a Selection without a Decision.
func (g *Gateway) SelectTool(ctx context.Context, transcript []Message, catalog *tools.Catalog) (*Selection, error) {
	client, err := g.lookup(g.selection, PhaseSelect)
	if err != nil {
		return nil, err
	}

	cfg := g.config
	cfg.ToolChoice = ToolChoice{}
	res, err := client.Generate(ctx, transcript, &cfg, catalog.Definitions())
	if err != nil {
		return nil, &GatewayError{Provider: g.selection, Phase: PhaseSelect, Reason: ProviderFailure, Err: err}
	}

	sel := &Selection{Provider: g.selection, Usage: res.Usage}
	if len(res.ToolCalls) == 0 {
		sel.Answer = res.Content
		return sel, nil
	}
	if len(res.ToolCalls) > 1 {
		log.Ctx(ctx).Warn().
			Str("provider", g.selection).
			Int("tool_calls", len(res.ToolCalls)).
			Msg("Model returned several tool calls; using the first")
	}

	decision, err := decisionFrom(res.ToolCalls[0])
	if err != nil {
		return nil, &GatewayError{Provider: g.selection, Phase: PhaseSelect, Reason: MalformedResponse, Err: err}
	}
	sel.Decision = decision
	return sel, nil
}

// Confirm re-issues the decision to the authoritative provider, offering only the selected tool
// and forcing the model to call it.
func (g *Gateway) Confirm(ctx context.Context, transcript []Message, decision ToolCallDecision, definition tools.Tool, provider string) (*ConfirmedDecision, error) {
	client, err := g.lookup(provider, PhaseConfirm)
	if err != nil {
		return nil, err
	}
	if definition.Function.Name != decision.ToolName {
		return nil, &GatewayError{
			Provider: provider, Phase: PhaseConfirm, Reason: ToolMismatch,
			Err: fmt.Errorf("definition %q does not match decision %q", definition.Function.Name, decision.ToolName),
		}
	}

	cfg := g.config
	cfg.ToolChoice = ToolChoice{Force: decision.ToolName}
	res, err := client.Generate(ctx, transcript, &cfg, []tools.Tool{definition})
	if err != nil {
		return nil, &GatewayError{Provider: provider, Phase: PhaseConfirm, Reason: ProviderFailure, Err: err}
	}
	if len(res.ToolCalls) == 0 {
		return nil, &GatewayError{
			Provider: provider, Phase: PhaseConfirm, Reason: MissingToolCall,
			Err: fmt.Errorf("expected a call to %s", decision.ToolName),
		}
	}

	confirmed, err := decisionFrom(res.ToolCalls[0])
	if err != nil {
		return nil, &GatewayError{Provider: provider, Phase: PhaseConfirm, Reason: MalformedResponse, Err: err}
	}
	if confirmed.ToolName != decision.ToolName {
		return nil, &GatewayError{
			Provider: provider, Phase: PhaseConfirm, Reason: ToolMismatch,
			Err: fmt.Errorf("expected %s, got %s", decision.ToolName, confirmed.ToolName),
		}
	}
	return &ConfirmedDecision{Provider: provider, Decision: *confirmed, Usage: res.Usage}, nil
}

// GenerateText runs an unconstrained completion on the named provider. It backs the text
// generation tool.
func (g *Gateway) GenerateText(ctx context.Context, provider, prompt string, maxTokens int) (string, error) {
	client, err := g.Client(provider)
	if err != nil {
		return "", err
	}
	res, err := client.Generate(ctx, []Message{{Role: RoleUser, Content: prompt}}, &GenerationConfig{MaxTokens: maxTokens}, nil)
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// TextGenerator binds GenerateText to one provider so it satisfies tools.TextGenerator.
func (g *Gateway) TextGenerator(provider string) tools.TextGenerator {
	return textGenerator{gateway: g, provider: provider}
}

type textGenerator struct {
	gateway  *Gateway
	provider string
}

func (t textGenerator) GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error) {
	return t.gateway.GenerateText(ctx, t.provider, prompt, maxTokens)
}

func decisionFrom(tc *tools.ToolCall) (*ToolCallDecision, error) {
	if tc == nil || tc.Function.Name == "" {
		return nil, errors.New("tool call has no function name")
	}
	if !isJSONObject(tc.Function.Arguments) {
		return nil, fmt.Errorf("arguments for %s are not a JSON object", tc.Function.Name)
	}
	return &ToolCallDecision{
		ID:           tc.ID,
		ToolName:     tc.Function.Name,
		RawArguments: tc.Function.Arguments,
	}, nil
}
