// In file: internal/llm/helpers.go

// Package llm is the Provider Gateway: one client per language-model provider behind a common
// interface, the selection and confirmation calls the dispatch router makes, and the Redis-backed
// provider profiler.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dileep-u-k/tool-router/internal/tools"
)

// This file contains stateless utility functions shared by the provider clients.

// NewClient builds the SDK-backed client matching cfg's kind.
func NewClient(cfg ProviderConfig) (LLMClient, error) {
	switch strings.ToLower(cfg.KindOrName()) {
	case KindOpenAI:
		return NewOpenAIClient(cfg)
	case KindAnthropic:
		return NewAnthropicClient(cfg)
	case KindGemini:
		return NewGeminiClient(cfg)
	default:
		return nil, fmt.Errorf("provider %q has unsupported kind %q", cfg.Name, cfg.KindOrName())
	}
}

// schemaToMap renders a catalog parameter schema as the generic map the SDKs accept.
func schemaToMap(s tools.JSONSchema) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameter schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode parameter schema: %w", err)
	}
	return out, nil
}

// isJSONObject reports whether raw is a single JSON object. An empty string counts as {}.
func isJSONObject(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return false
	}
	return obj != nil
}
