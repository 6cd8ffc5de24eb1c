// In file: internal/llm/openai_client.go
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/dileep-u-k/tool-router/internal/api"
	"github.com/dileep-u-k/tool-router/internal/tools"
)

// OpenAIClient is the client for interacting with OpenAI chat models.
// Retries and per-request timeouts are delegated to the SDK.
type OpenAIClient struct {
	cfg    ProviderConfig
	client openai.Client
}

// Statically verify that OpenAIClient implements the LLMClient interface.
var _ LLMClient = (*OpenAIClient)(nil)

// NewOpenAIClient creates a new, configured client for the OpenAI API.
func NewOpenAIClient(cfg ProviderConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key cannot be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("OpenAI model cannot be empty")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.timeout()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIClient{cfg: cfg, client: openai.NewClient(opts...)}, nil
}

func (c *OpenAIClient) Name() string { return c.cfg.Name }

// Generate performs a standard, blocking request to the OpenAI API.
func (c *OpenAIClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	params, err := c.buildParams(messages, config, availableTools)
	if err != nil {
		return nil, fmt.Errorf("failed to build openai request: %w", err)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai API call failed: %w", err)
	}
	return parseOpenAIResponse(resp)
}

// buildParams converts our generic structures into the SDK's request parameters.
func (c *OpenAIClient) buildParams(messages []Message, config *GenerationConfig, availableTools []tools.Tool) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.cfg.model(config)),
		Messages:  toOpenAIMessages(messages),
		MaxTokens: openai.Int(int64(c.cfg.maxTokens(config))),
	}
	if config != nil && config.Temperature != nil {
		params.Temperature = openai.Float(float64(*config.Temperature))
	}

	if len(availableTools) == 0 {
		return params, nil
	}
	toolParams, err := toOpenAITools(availableTools)
	if err != nil {
		return params, err
	}
	params.Tools = toolParams

	if config != nil && config.ToolChoice.Force != "" {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: config.ToolChoice.Force},
			},
		}
	} else {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String("auto")}
	}
	return params, nil
}

// toOpenAIMessages converts our transcript to the OpenAI message union.
func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}

// toOpenAITools converts catalog definitions to OpenAI function tools.
func toOpenAITools(availableTools []tools.Tool) ([]openai.ChatCompletionToolParam, error) {
	out := make([]openai.ChatCompletionToolParam, 0, len(availableTools))
	for _, tool := range availableTools {
		schema, err := schemaToMap(tool.Function.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool.Function.Name, err)
		}
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Function.Name,
				Description: openai.String(tool.Function.Description),
				Parameters:  openai.FunctionParameters(schema),
			},
		})
	}
	return out, nil
}

// parseOpenAIResponse converts a completion into our internal GenerationResult.
// Arguments are passed through as the raw JSON string; the gateway checks their shape.
func parseOpenAIResponse(resp *openai.ChatCompletion) (*GenerationResult, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, errors.New("no choices returned from OpenAI")
	}

	choice := resp.Choices[0]
	result := &GenerationResult{
		Content: choice.Message.Content,
		Usage: api.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, &tools.ToolCall{
			ID:   tc.ID,
			Type: tools.ToolTypeFunction,
			Function: tools.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return result, nil
}
