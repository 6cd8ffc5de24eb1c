// In file: internal/tools/text_generation_tool.go
package tools

import (
	"context"
	"errors"
	"fmt"
)

// TextGenerator is the narrow slice of a language model the text generation action needs.
// The provider gateway supplies an adapter so this package stays free of SDK imports.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// TextGenerationTool continues a prompt using a configured language model.
type TextGenerationTool struct {
	generator TextGenerator
}

var _ Action = (*TextGenerationTool)(nil)

func NewTextGenerationTool(generator TextGenerator) *TextGenerationTool {
	return &TextGenerationTool{generator: generator}
}

func (t *TextGenerationTool) Name() string { return TextGenerationToolName }

func (t *TextGenerationTool) Execute(ctx context.Context, args Args) (string, error) {
	if t.generator == nil {
		return "", errors.New("no text generation provider is configured")
	}
	maxTokens, err := args.Int("maxTokens")
	if err != nil {
		return "", err
	}
	if maxTokens <= 0 {
		return "", fmt.Errorf("maxTokens must be positive, got %d", maxTokens)
	}

	text, err := t.generator.GenerateText(ctx, args.String("prompt"), int(maxTokens))
	if err != nil {
		return "", fmt.Errorf("text generation failed: %w", err)
	}
	return fmt.Sprintf("Generated text (max %d tokens):\n%s", maxTokens, text), nil
}
