// In file: internal/llm/anthropic_client.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dileep-u-k/tool-router/internal/api"
	"github.com/dileep-u-k/tool-router/internal/tools"
)

// AnthropicClient is the client for interacting with Anthropic's Claude models.
type AnthropicClient struct {
	cfg    ProviderConfig
	client anthropic.Client
}

// Statically verify that AnthropicClient implements the LLMClient interface.
var _ LLMClient = (*AnthropicClient)(nil)

// NewAnthropicClient creates a new, configured client for the Anthropic Messages API.
func NewAnthropicClient(cfg ProviderConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key cannot be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic model cannot be empty")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
		option.WithRequestTimeout(cfg.timeout()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicClient{cfg: cfg, client: anthropic.NewClient(opts...)}, nil
}

func (c *AnthropicClient) Name() string { return c.cfg.Name }

// Generate performs a standard, blocking request to the Anthropic API.
func (c *AnthropicClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	params, err := c.buildParams(messages, config, availableTools)
	if err != nil {
		return nil, fmt.Errorf("failed to build anthropic request: %w", err)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic API call failed: %w", err)
	}
	return parseAnthropicResponse(resp)
}

// buildParams converts our generic structures into the SDK's request parameters.
// Anthropic takes system prompts outside the message list.
func (c *AnthropicClient) buildParams(messages []Message, config *GenerationConfig, availableTools []tools.Tool) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.cfg.model(config)),
		MaxTokens: int64(c.cfg.maxTokens(config)),
	}
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	if config != nil && config.Temperature != nil {
		params.Temperature = anthropic.Float(float64(*config.Temperature))
	}

	if len(availableTools) == 0 {
		return params, nil
	}
	for _, tool := range availableTools {
		schema, err := schemaToMap(tool.Function.Parameters)
		if err != nil {
			return params, fmt.Errorf("tool %s: %w", tool.Function.Name, err)
		}
		toolParam := anthropic.ToolParam{
			Name:        tool.Function.Name,
			Description: anthropic.String(tool.Function.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
				Required:   tool.Function.Parameters.Required,
			},
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}

	if config != nil && config.ToolChoice.Force != "" {
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: config.ToolChoice.Force},
		}
	} else {
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAuto: &anthropic.ToolChoiceAutoParam{}}
	}
	return params, nil
}

// parseAnthropicResponse converts a Messages API reply into our internal GenerationResult.
func parseAnthropicResponse(resp *anthropic.Message) (*GenerationResult, error) {
	if resp == nil {
		return nil, errors.New("no message returned from Anthropic")
	}

	var content strings.Builder
	result := &GenerationResult{
		Usage: api.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			content.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			result.ToolCalls = append(result.ToolCalls, &tools.ToolCall{
				ID:   b.ID,
				Type: tools.ToolTypeFunction,
				Function: tools.ToolCallFunction{
					Name:      b.Name,
					Arguments: b.JSON.Input.Raw(),
				},
			})
		}
	}
	result.Content = strings.TrimSpace(content.String())
	return result, nil
}
