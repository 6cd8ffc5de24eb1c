package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/tool-router/internal/api"
	"github.com/dileep-u-k/tool-router/internal/llm"
	"github.com/dileep-u-k/tool-router/internal/tools"
)

// scriptedClient is an llm.LLMClient that always calls one tool with fixed arguments.
type scriptedClient struct {
	name string
	tool string
	args string
}

func (s *scriptedClient) Name() string { return s.name }

func (s *scriptedClient) Generate(_ context.Context, _ []llm.Message, _ *llm.GenerationConfig, offered []tools.Tool) (*llm.GenerationResult, error) {
	for _, t := range offered {
		if t.Function.Name == s.tool {
			return &llm.GenerationResult{
				ToolCalls: []*tools.ToolCall{{
					ID:       "call_" + s.name,
					Type:     tools.ToolTypeFunction,
					Function: tools.ToolCallFunction{Name: s.tool, Arguments: s.args},
				}},
				Usage: api.Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
			}, nil
		}
	}
	return nil, errors.New("scripted tool was not offered")
}

type unusedAction struct{ name string }

func (u unusedAction) Name() string { return u.name }

func (u unusedAction) Execute(context.Context, tools.Args) (string, error) {
	return "", errors.New(u.name + " should not run")
}

func TestDispatch_EmailExtractionEndToEnd(t *testing.T) {
	const input = "Extract all email addresses from the following text: 'Contact us at info@example.com or support@sample.org.'"
	args := `{"data":"Contact us at info@example.com or support@sample.org.","pattern":"[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\\.[a-zA-Z]{2,}"}`

	catalog := tools.DefaultCatalog()
	gateway, err := llm.NewGateway("openai", []llm.LLMClient{
		&scriptedClient{name: "openai", tool: tools.DataExtractionToolName, args: args},
		&scriptedClient{name: "anthropic", tool: tools.DataExtractionToolName, args: args},
	})
	require.NoError(t, err)

	actions := []tools.Action{tools.NewDataExtractionTool()}
	for _, name := range catalog.Names() {
		if name != tools.DataExtractionToolName {
			actions = append(actions, unusedAction{name: name})
		}
	}
	executor, err := tools.NewExecutor(catalog, actions)
	require.NoError(t, err)

	binding, err := NewBinding(map[string]string{tools.DataExtractionToolName: "anthropic"}, nil, catalog, gateway)
	require.NoError(t, err)
	router, err := NewRouter(catalog, binding, gateway, executor, Config{RequireTool: true})
	require.NoError(t, err)

	out, err := router.Dispatch(context.Background(), Request{Input: input})
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, tools.DataExtractionToolName, out.Tool)
	assert.Equal(t, "openai", out.SelectedBy)
	assert.Equal(t, "anthropic", out.ConfirmedBy)
	require.NotNil(t, out.Result)
	assert.True(t, out.Result.Success)
	assert.Contains(t, out.Result.Output, "info@example.com")
	assert.Contains(t, out.Result.Output, "support@sample.org")
	assert.Equal(t, 240, out.Usage.TotalTokens)
}
