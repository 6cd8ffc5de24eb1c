// In file: internal/tools/data_validation_tool.go
package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// DataValidationTool checks a data object against rules written as a JSON Schema document.
// A violation is a successful outcome that describes what failed; only unusable rules are errors.
type DataValidationTool struct{}

var _ Action = (*DataValidationTool)(nil)

func NewDataValidationTool() *DataValidationTool {
	return &DataValidationTool{}
}

func (t *DataValidationTool) Name() string { return DataValidationToolName }

func (t *DataValidationTool) Execute(_ context.Context, args Args) (string, error) {
	rules := gojsonschema.NewGoLoader(args.Object("rules"))
	data := gojsonschema.NewGoLoader(args.Object("data"))

	result, err := gojsonschema.Validate(rules, data)
	if err != nil {
		return "", fmt.Errorf("validation rules could not be applied: %w", err)
	}
	if result.Valid() {
		return "Data is valid according to the provided rules.", nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Sprintf("Data is invalid (%d violation(s)): %s", len(problems), strings.Join(problems, "; ")), nil
}
