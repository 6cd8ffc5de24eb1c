package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/tool-router/internal/tools"
)

// captureServer replies with body and hands every decoded request payload to the test.
func captureServer(t *testing.T, body string) (*httptest.Server, <-chan map[string]any) {
	t.Helper()
	requests := make(chan map[string]any, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(raw, &payload)
		requests <- payload
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func testProvider(name, baseURL string) ProviderConfig {
	return ProviderConfig{
		Name:    name,
		Model:   "test-model",
		APIKey:  "test-key",
		BaseURL: baseURL + "/",
		Timeout: 5 * time.Second,
	}
}

func TestNewClient_Kinds(t *testing.T) {
	c, err := NewClient(ProviderConfig{Name: "primary", Kind: "openai", Model: "gpt-4o-mini", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "primary", c.Name())
	assert.IsType(t, &OpenAIClient{}, c)

	c, err = NewClient(ProviderConfig{Name: "anthropic", Model: "claude-3-5-haiku-latest", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicClient{}, c)

	_, err = NewClient(ProviderConfig{Name: "mistral", Model: "m", APIKey: "k"})
	assert.ErrorContains(t, err, "unsupported kind")

	_, err = NewClient(ProviderConfig{Name: "openai", Model: "m"})
	assert.ErrorContains(t, err, "API key cannot be empty")
}

func TestOpenAIClient_ForcedToolCall(t *testing.T) {
	srv, requests := captureServer(t, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "test-model",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": null,
				"tool_calls": [{
					"id": "call_1",
					"type": "function",
					"function": {"name": "DataExtractionTool", "arguments": "{\"data\":\"a\",\"pattern\":\"b\"}"}
				}]
			}
		}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
	}`)

	client, err := NewOpenAIClient(testProvider("openai", srv.URL))
	require.NoError(t, err)
	def, err := tools.DefaultCatalog().Lookup(tools.DataExtractionToolName)
	require.NoError(t, err)

	res, err := client.Generate(context.Background(), transcript,
		&GenerationConfig{ToolChoice: ToolChoice{Force: tools.DataExtractionToolName}}, []tools.Tool{def})
	require.NoError(t, err)

	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "DataExtractionTool", res.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"data":"a","pattern":"b"}`, res.ToolCalls[0].Function.Arguments)
	assert.Equal(t, 20, res.Usage.TotalTokens)

	payload := <-requests
	assert.Equal(t, "test-model", payload["model"])
	choice, ok := payload["tool_choice"].(map[string]any)
	require.True(t, ok, "tool_choice should be an object when forcing, got %v", payload["tool_choice"])
	assert.Equal(t, "DataExtractionTool", choice["function"].(map[string]any)["name"])
	assert.Len(t, payload["tools"], 1)
	assert.Len(t, payload["messages"], 2)
}

func TestOpenAIClient_AutoChoiceAndPlainAnswer(t *testing.T) {
	srv, requests := captureServer(t, `{
		"id": "chatcmpl-2", "object": "chat.completion", "created": 1, "model": "test-model",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Hello!"}}],
		"usage": {"prompt_tokens": 3, "completion_tokens": 1, "total_tokens": 4}
	}`)

	client, err := NewOpenAIClient(testProvider("openai", srv.URL))
	require.NoError(t, err)

	res, err := client.Generate(context.Background(), transcript, &GenerationConfig{}, tools.DefaultCatalog().Definitions())
	require.NoError(t, err)
	assert.Equal(t, "Hello!", res.Content)
	assert.Empty(t, res.ToolCalls)

	payload := <-requests
	assert.Equal(t, "auto", payload["tool_choice"])
	assert.Len(t, payload["tools"], 7)
}

func TestAnthropicClient_ForcedToolCall(t *testing.T) {
	srv, requests := captureServer(t, `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "test-model",
		"stop_reason": "tool_use",
		"content": [
			{"type": "text", "text": "Calling the tool."},
			{"type": "tool_use", "id": "toolu_1", "name": "APICallTool", "input": {"url": "https://example.com", "method": "GET"}}
		],
		"usage": {"input_tokens": 30, "output_tokens": 9}
	}`)

	client, err := NewAnthropicClient(testProvider("anthropic", srv.URL))
	require.NoError(t, err)
	def, err := tools.DefaultCatalog().Lookup(tools.APICallToolName)
	require.NoError(t, err)

	res, err := client.Generate(context.Background(), transcript,
		&GenerationConfig{ToolChoice: ToolChoice{Force: tools.APICallToolName}}, []tools.Tool{def})
	require.NoError(t, err)

	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "toolu_1", res.ToolCalls[0].ID)
	assert.JSONEq(t, `{"url":"https://example.com","method":"GET"}`, res.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "Calling the tool.", res.Content)
	assert.Equal(t, 39, res.Usage.TotalTokens)

	payload := <-requests
	choice := payload["tool_choice"].(map[string]any)
	assert.Equal(t, "tool", choice["type"])
	assert.Equal(t, "APICallTool", choice["name"])
	assert.Len(t, payload["messages"], 1, "system prompt travels outside the message list")
	assert.NotEmpty(t, payload["system"])
}

func TestConvertSchema(t *testing.T) {
	def, err := tools.DefaultCatalog().Lookup(tools.FileManagementToolName)
	require.NoError(t, err)

	s := convertSchema(def.Function.Parameters)
	assert.Equal(t, []string{"filePath", "operation"}, s.Required)
	assert.Equal(t, []string{"read", "write", "move", "delete"}, s.Properties["operation"].Enum)
}

func TestToGeminiContentHistory(t *testing.T) {
	history, last := toGeminiContentHistory([]Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "second"},
	})
	assert.Equal(t, "second", last)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
}
