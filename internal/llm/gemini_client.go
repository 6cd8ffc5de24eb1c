// In file: internal/llm/gemini_client.go
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/dileep-u-k/tool-router/internal/api"
	"github.com/dileep-u-k/tool-router/internal/tools"
)

// GeminiClient is the client for interacting with Google's Gemini models.
// A GenerativeModel is built per call because its settings are mutable and cycles run concurrently.
type GeminiClient struct {
	cfg    ProviderConfig
	client *genai.Client
}

var _ LLMClient = (*GeminiClient)(nil)

func NewGeminiClient(cfg ProviderConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("gemini model cannot be empty")
	}
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{cfg: cfg, client: client}, nil
}

func (c *GeminiClient) Name() string { return c.cfg.Name }

// Close releases the underlying gRPC connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// Generate performs a standard, blocking request to the Gemini API.
func (c *GeminiClient) Generate(
	ctx context.Context,
	messages []Message,
	config *GenerationConfig,
	availableTools []tools.Tool,
) (*GenerationResult, error) {
	if len(messages) == 0 {
		return nil, errors.New("gemini requires at least one message")
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout())
	defer cancel()

	model := c.configureModel(messages, config, availableTools)
	chat := model.StartChat()
	history, last := toGeminiContentHistory(messages)
	chat.History = history

	resp, err := chat.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	return parseGeminiResponse(resp)
}

// configureModel creates a model for one call and applies settings with the SDK's setters.
func (c *GeminiClient) configureModel(messages []Message, config *GenerationConfig, availableTools []tools.Tool) *genai.GenerativeModel {
	model := c.client.GenerativeModel(c.cfg.model(config))
	model.SetMaxOutputTokens(int32(c.cfg.maxTokens(config)))
	if config != nil && config.Temperature != nil {
		model.SetTemperature(*config.Temperature)
	}

	var system []string
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = append(system, msg.Content)
		}
	}
	if len(system) > 0 {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(strings.Join(system, "\n\n"))}}
	}

	if len(availableTools) == 0 {
		return model
	}
	model.Tools = toGeminiTools(availableTools)
	if config != nil && config.ToolChoice.Force != "" {
		model.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingAny,
				AllowedFunctionNames: []string{config.ToolChoice.Force},
			},
		}
	} else {
		model.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: genai.FunctionCallingAuto},
		}
	}
	return model
}

// toGeminiTools converts catalog definitions to a single Gemini tool with many declarations.
func toGeminiTools(toolsToConvert []tools.Tool) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(toolsToConvert))
	for _, t := range toolsToConvert {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  convertSchema(t.Function.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// convertSchema converts our JSONSchema to the Gemini SDK's schema type.
func convertSchema(s tools.JSONSchema) *genai.Schema {
	out := &genai.Schema{
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	switch s.Type {
	case tools.TypeObject:
		out.Type = genai.TypeObject
	case tools.TypeString:
		out.Type = genai.TypeString
	case tools.TypeNumber:
		out.Type = genai.TypeNumber
	case tools.TypeInteger:
		out.Type = genai.TypeInteger
	case tools.TypeBoolean:
		out.Type = genai.TypeBoolean
	case tools.TypeArray:
		out.Type = genai.TypeArray
		out.Items = &genai.Schema{Type: genai.TypeString}
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = convertSchema(*v)
		}
	}
	return out
}

// toGeminiContentHistory splits the transcript into chat history and the final prompt.
// System messages travel as the model's system instruction instead.
func toGeminiContentHistory(messages []Message) ([]*genai.Content, string) {
	var turns []Message
	for _, msg := range messages {
		if msg.Role != RoleSystem {
			turns = append(turns, msg)
		}
	}
	if len(turns) == 0 {
		return nil, ""
	}

	var history []*genai.Content
	for _, msg := range turns[:len(turns)-1] {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	return history, turns[len(turns)-1].Content
}

// parseGeminiResponse converts a Gemini API response into our internal GenerationResult.
func parseGeminiResponse(resp *genai.GenerateContentResponse) (*GenerationResult, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no content returned from Gemini")
	}

	var content strings.Builder
	var toolCalls []*tools.ToolCall
	for i, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			content.WriteString(string(v))
		case genai.FunctionCall:
			args, err := json.Marshal(v.Args)
			if err != nil {
				log.Warn().Err(err).Str("tool", v.Name).Msg("Could not encode Gemini function call arguments")
				args = []byte("null")
			}
			toolCalls = append(toolCalls, &tools.ToolCall{
				ID:   fmt.Sprintf("gemini-call-%d-%s", i, v.Name),
				Type: tools.ToolTypeFunction,
				Function: tools.ToolCallFunction{
					Name:      v.Name,
					Arguments: string(args),
				},
			})
		}
	}

	result := &GenerationResult{
		Content:   strings.TrimSpace(content.String()),
		ToolCalls: toolCalls,
	}
	if md := resp.UsageMetadata; md != nil {
		result.Usage = api.Usage{
			PromptTokens:     int(md.PromptTokenCount),
			CompletionTokens: int(md.CandidatesTokenCount),
			TotalTokens:      int(md.TotalTokenCount),
		}
	}
	return result, nil
}
