// In file: internal/llm/constants.go
package llm

import "time"

// This file centralizes constants shared across the provider clients and the gateway.
const (
	defaultTimeout   = 60 * time.Second
	defaultMaxTokens = 1024
)

// Provider kinds understood by NewClient.
const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindGemini    = "gemini"
)
