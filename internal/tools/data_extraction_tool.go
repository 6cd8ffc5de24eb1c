// In file: internal/tools/data_extraction_tool.go
package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// maxPatternLength keeps pathological model-generated expressions out of the regexp compiler.
const maxPatternLength = 1024

// DataExtractionTool pulls every match of a regular expression out of free text.
type DataExtractionTool struct{}

var _ Action = (*DataExtractionTool)(nil)

func NewDataExtractionTool() *DataExtractionTool {
	return &DataExtractionTool{}
}

func (t *DataExtractionTool) Name() string { return DataExtractionToolName }

// Execute returns the distinct matches in order of first appearance.
func (t *DataExtractionTool) Execute(_ context.Context, args Args) (string, error) {
	pattern := args.String("pattern")
	if len(pattern) > maxPatternLength {
		return "", fmt.Errorf("pattern is longer than %d characters", maxPatternLength)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	seen := make(map[string]bool)
	var matches []string
	for _, m := range re.FindAllString(args.String("data"), -1) {
		if seen[m] {
			continue
		}
		seen[m] = true
		matches = append(matches, m)
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No data matched pattern '%s'.", pattern), nil
	}
	return fmt.Sprintf("Extracted %d match(es) using pattern '%s': %s", len(matches), pattern, strings.Join(matches, ", ")), nil
}
