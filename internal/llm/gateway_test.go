package llm

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/tool-router/internal/api"
	"github.com/dileep-u-k/tool-router/internal/tools"
)

// fakeClient records every call and replays a canned result.
type fakeClient struct {
	name   string
	result *GenerationResult
	err    error

	mu      sync.Mutex
	configs []GenerationConfig
	offered [][]tools.Tool
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Generate(_ context.Context, _ []Message, cfg *GenerationConfig, available []tools.Tool) (*GenerationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, *cfg)
	f.offered = append(f.offered, available)
	return f.result, f.err
}

func call(name, args string) *tools.ToolCall {
	return &tools.ToolCall{ID: "call_" + name, Type: tools.ToolTypeFunction, Function: tools.ToolCallFunction{Name: name, Arguments: args}}
}

var transcript = []Message{
	{Role: RoleSystem, Content: "Pick a tool."},
	{Role: RoleUser, Content: "Extract the emails."},
}

func newTestGateway(t *testing.T, clients ...LLMClient) *Gateway {
	t.Helper()
	g, err := NewGateway(clients[0].Name(), clients)
	require.NoError(t, err)
	return g
}

func TestNewGateway_Validation(t *testing.T) {
	_, err := NewGateway("openai", []LLMClient{&fakeClient{name: "anthropic"}})
	assert.ErrorContains(t, err, "selection provider")

	_, err = NewGateway("a", []LLMClient{&fakeClient{name: "a"}, &fakeClient{name: "a"}})
	assert.ErrorContains(t, err, "more than once")

	g, err := NewGateway("b", []LLMClient{&fakeClient{name: "b"}, &fakeClient{name: "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, g.Providers())
	assert.True(t, g.Has("a"))
	assert.Equal(t, "b", g.SelectionProvider())
}

func TestSelectTool_Decision(t *testing.T) {
	fc := &fakeClient{name: "openai", result: &GenerationResult{
		ToolCalls: []*tools.ToolCall{call(tools.DataExtractionToolName, `{"data":"x","pattern":"y"}`)},
		Usage:     api.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	g := newTestGateway(t, fc)

	sel, err := g.SelectTool(context.Background(), transcript, tools.DefaultCatalog())
	require.NoError(t, err)
	require.NotNil(t, sel.Decision)
	assert.Equal(t, tools.DataExtractionToolName, sel.Decision.ToolName)
	assert.Equal(t, `{"data":"x","pattern":"y"}`, sel.Decision.RawArguments)
	assert.Equal(t, 15, sel.Usage.TotalTokens)

	require.Len(t, fc.offered, 1)
	assert.Len(t, fc.offered[0], 7)
	assert.Empty(t, fc.configs[0].ToolChoice.Force)
}

func TestSelectTool_PlainAnswer(t *testing.T) {
	fc := &fakeClient{name: "openai", result: &GenerationResult{Content: "I can't help with that."}}
	g := newTestGateway(t, fc)

	sel, err := g.SelectTool(context.Background(), transcript, tools.DefaultCatalog())
	require.NoError(t, err)
	assert.Nil(t, sel.Decision)
	assert.Equal(t, "I can't help with that.", sel.Answer)
}

func TestSelectTool_UsesFirstOfSeveralCalls(t *testing.T) {
	fc := &fakeClient{name: "openai", result: &GenerationResult{ToolCalls: []*tools.ToolCall{
		call(tools.APICallToolName, `{}`),
		call(tools.DataExtractionToolName, `{}`),
	}}}

	sel, err := newTestGateway(t, fc).SelectTool(context.Background(), transcript, tools.DefaultCatalog())
	require.NoError(t, err)
	assert.Equal(t, tools.APICallToolName, sel.Decision.ToolName)
}

func TestSelectTool_Failures(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
		reason GatewayReason
	}{
		{"transport", &fakeClient{name: "openai", err: errors.New("connection reset")}, ProviderFailure},
		{"array arguments", &fakeClient{name: "openai", result: &GenerationResult{ToolCalls: []*tools.ToolCall{call("X", `[1]`)}}}, MalformedResponse},
		{"invalid json", &fakeClient{name: "openai", result: &GenerationResult{ToolCalls: []*tools.ToolCall{call("X", `{"a":`)}}}, MalformedResponse},
		{"nameless call", &fakeClient{name: "openai", result: &GenerationResult{ToolCalls: []*tools.ToolCall{call("", `{}`)}}}, MalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestGateway(t, tt.client).SelectTool(context.Background(), transcript, tools.DefaultCatalog())

			var gerr *GatewayError
			require.True(t, errors.As(err, &gerr))
			assert.Equal(t, tt.reason, gerr.Reason)
			assert.Equal(t, PhaseSelect, gerr.Phase)
			assert.Equal(t, "openai", gerr.Provider)
		})
	}
}

func TestConfirm_ForcesSelectedToolOnly(t *testing.T) {
	selector := &fakeClient{name: "openai"}
	confirmer := &fakeClient{name: "anthropic", result: &GenerationResult{
		ToolCalls: []*tools.ToolCall{call(tools.CodeExecutionToolName, `{"language":"sh","code":"echo 2"}`)},
	}}
	g := newTestGateway(t, selector, confirmer)
	def, err := tools.DefaultCatalog().Lookup(tools.CodeExecutionToolName)
	require.NoError(t, err)

	decision := ToolCallDecision{ToolName: tools.CodeExecutionToolName, RawArguments: `{"language":"sh","code":"echo 1"}`}
	confirmed, err := g.Confirm(context.Background(), transcript, decision, def, "anthropic")
	require.NoError(t, err)

	assert.Equal(t, "anthropic", confirmed.Provider)
	assert.Equal(t, `{"language":"sh","code":"echo 2"}`, confirmed.Decision.RawArguments)
	require.Len(t, confirmer.offered, 1)
	require.Len(t, confirmer.offered[0], 1)
	assert.Equal(t, tools.CodeExecutionToolName, confirmer.offered[0][0].Function.Name)
	assert.Equal(t, tools.CodeExecutionToolName, confirmer.configs[0].ToolChoice.Force)
	assert.Empty(t, selector.configs)
}

func TestConfirm_Failures(t *testing.T) {
	def, err := tools.DefaultCatalog().Lookup(tools.APICallToolName)
	require.NoError(t, err)
	decision := ToolCallDecision{ToolName: tools.APICallToolName, RawArguments: `{}`}

	tests := []struct {
		name     string
		result   *GenerationResult
		err      error
		provider string
		reason   GatewayReason
	}{
		{"no tool call", &GenerationResult{Content: "Sure!"}, nil, "anthropic", MissingToolCall},
		{"other tool", &GenerationResult{ToolCalls: []*tools.ToolCall{call(tools.DataExtractionToolName, `{}`)}}, nil, "anthropic", ToolMismatch},
		{"malformed", &GenerationResult{ToolCalls: []*tools.ToolCall{call(tools.APICallToolName, `"x"`)}}, nil, "anthropic", MalformedResponse},
		{"provider error", nil, errors.New("529 overloaded"), "anthropic", ProviderFailure},
		{"unknown provider", nil, nil, "mistral", UnknownProvider},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGateway(t, &fakeClient{name: "openai"}, &fakeClient{name: "anthropic", result: tt.result, err: tt.err})

			_, err := g.Confirm(context.Background(), transcript, decision, def, tt.provider)

			var gerr *GatewayError
			require.True(t, errors.As(err, &gerr), "got %v", err)
			assert.Equal(t, tt.reason, gerr.Reason)
			assert.Equal(t, PhaseConfirm, gerr.Phase)
			assert.Equal(t, tt.provider, gerr.Provider)
		})
	}
}

func TestConfirm_DefinitionMustMatchDecision(t *testing.T) {
	confirmer := &fakeClient{name: "anthropic"}
	g := newTestGateway(t, &fakeClient{name: "openai"}, confirmer)
	def, err := tools.DefaultCatalog().Lookup(tools.DataExtractionToolName)
	require.NoError(t, err)

	decision := ToolCallDecision{ToolName: tools.APICallToolName, RawArguments: `{}`}
	_, err = g.Confirm(context.Background(), transcript, decision, def, "anthropic")

	var gerr *GatewayError
	require.True(t, errors.As(err, &gerr), "got %v", err)
	assert.Equal(t, ToolMismatch, gerr.Reason)
	assert.Equal(t, PhaseConfirm, gerr.Phase)
	assert.Equal(t, "anthropic", gerr.Provider)
	assert.Empty(t, confirmer.configs, "no request is sent for a mismatched definition")
}

func TestGateway_TextGenerator(t *testing.T) {
	fc := &fakeClient{name: "openai", result: &GenerationResult{Content: "a haiku"}}
	g := newTestGateway(t, fc)

	out, err := g.TextGenerator("openai").GenerateText(context.Background(), "write a haiku", 42)
	require.NoError(t, err)
	assert.Equal(t, "a haiku", out)
	assert.Equal(t, 42, fc.configs[0].MaxTokens)
	assert.Empty(t, fc.offered[0])

	_, err = g.TextGenerator("missing").GenerateText(context.Background(), "x", 1)
	var gerr *GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, UnknownProvider, gerr.Reason)
}

func TestIsJSONObject(t *testing.T) {
	assert.True(t, isJSONObject(""))
	assert.True(t, isJSONObject(`{}`))
	assert.True(t, isJSONObject(` {"a":1} `))
	assert.False(t, isJSONObject(`null`))
	assert.False(t, isJSONObject(`[]`))
	assert.False(t, isJSONObject(`"str"`))
	assert.False(t, isJSONObject(`{"a":1`))
}
