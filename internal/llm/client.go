// In file: internal/llm/client.go
package llm

import (
	"context"
	"time"

	"github.com/dileep-u-k/tool-router/internal/api"
	"github.com/dileep-u-k/tool-router/internal/tools"
)

// =================================================================================
// Core Data Structures
// =================================================================================

// Role represents the originator of a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ToolChoice controls whether the model may answer in prose or must call a tool.
type ToolChoice struct {
	// Force, when set, names the single tool the model must call.
	// An empty value lets the model decide (the "auto" mode).
	Force string
}

// GenerationConfig holds the parameters that control one generation call.
type GenerationConfig struct {
	// Model overrides the client's configured model for this call.
	Model string
	// Controls randomness. A pointer distinguishes 0.0 from unset.
	Temperature *float32
	// The maximum number of tokens to generate in the response.
	MaxTokens int
	// ToolChoice applies only when tools are supplied.
	ToolChoice ToolChoice
}

// GenerationResult holds the complete output from an LLM call.
type GenerationResult struct {
	// The generated text content from the model.
	Content string
	// Tool calls requested by the model, in the order the provider returned them.
	ToolCalls []*tools.ToolCall
	// Token usage statistics for the generation request.
	Usage api.Usage
}

// =================================================================================
// LLM Client Interface
// =================================================================================

// LLMClient is the universal interface that all provider clients must implement.
type LLMClient interface {
	// Name returns the provider name used in bindings, traces and errors.
	Name() string

	// Generate performs a standard, blocking request to the LLM.
	// It takes the full transcript and returns a single, complete result.
	Generate(
		ctx context.Context,
		messages []Message,
		config *GenerationConfig,
		availableTools []tools.Tool,
	) (*GenerationResult, error)
}

// ProviderConfig is everything needed to construct one provider client.
type ProviderConfig struct {
	// Name identifies the provider instance, e.g. "openai" or "anthropic-haiku".
	Name string `yaml:"name"`
	// Kind selects the SDK: "openai", "anthropic" or "gemini". Defaults to Name.
	Kind string `yaml:"kind"`
	// Model is the default model for this provider.
	Model string `yaml:"model"`
	// APIKey is never read from YAML; it comes from the environment variable named by APIKeyEnv.
	APIKey    string `yaml:"-"`
	APIKeyEnv string `yaml:"api_key_env"`
	// BaseURL points the SDK at a compatible endpoint (proxies, local test servers).
	BaseURL string `yaml:"base_url"`
	// MaxRetries is passed to the SDK's own retry policy. Zero disables retries.
	MaxRetries int `yaml:"max_retries"`
	// Timeout bounds each HTTP request the SDK makes.
	Timeout time.Duration `yaml:"timeout"`
	// MaxTokens is the completion budget for selection and confirmation calls.
	MaxTokens int `yaml:"max_tokens"`
}

// KindOrName returns Kind, falling back to Name.
func (c ProviderConfig) KindOrName() string {
	if c.Kind != "" {
		return c.Kind
	}
	return c.Name
}

func (c ProviderConfig) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

func (c ProviderConfig) maxTokens(config *GenerationConfig) int {
	if config != nil && config.MaxTokens > 0 {
		return config.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return defaultMaxTokens
}

func (c ProviderConfig) model(config *GenerationConfig) string {
	if config != nil && config.Model != "" {
		return config.Model
	}
	return c.Model
}
