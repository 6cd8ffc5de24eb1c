// In file: internal/tools/catalog.go
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dileep-u-k/tool-router/internal/version"
)

// Tool names of the default catalog. They are part of the model-facing contract.
const (
	APICallToolName        = "APICallTool"
	DataExtractionToolName = "DataExtractionTool"
	CodeExecutionToolName  = "CodeExecutionTool"
	DatabaseQueryToolName  = "DatabaseQueryTool"
	TextGenerationToolName = "TextGenerationTool"
	DataValidationToolName = "DataValidationTool"
	FileManagementToolName = "FileManagementTool"
)

// Tool categories, usable as ProviderBinding keys.
const (
	CategoryNetwork    = "network"
	CategoryData       = "data"
	CategoryCode       = "code"
	CategoryDatabase   = "database"
	CategoryGeneration = "generation"
	CategoryFilesystem = "filesystem"
)

// DefaultMaxTokens is the documented default of TextGenerationTool's maxTokens.
const DefaultMaxTokens int64 = 100

// Catalog is the immutable set of tool definitions exposed to the model.
// It is safe for unrestricted concurrent reads.
type Catalog struct {
	order   []string
	byName  map[string]Tool
	schemas map[string]*gojsonschema.Schema
	version string
}

// NewCatalog builds a catalog, checks every definition for internal consistency and compiles
// each parameter schema once.
func NewCatalog(defs ...Tool) (*Catalog, error) {
	c := &Catalog{
		byName:  make(map[string]Tool, len(defs)),
		schemas: make(map[string]*gojsonschema.Schema, len(defs)),
	}
	for _, def := range defs {
		name := def.Function.Name
		if name == "" {
			return nil, errors.New("tool definition has an empty name")
		}
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("tool %q is defined more than once", name)
		}
		if err := checkParameters(name, def.Function.Parameters); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(def.Function.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %q: failed to serialize parameters: %w", name, err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("tool %q: invalid parameter schema: %w", name, err)
		}
		c.byName[name] = def
		c.schemas[name] = schema
		c.order = append(c.order, name)
	}

	canonical, err := json.Marshal(c.Definitions())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize catalog: %w", err)
	}
	c.version = version.CatalogFingerprint(canonical)
	return c, nil
}

func checkParameters(tool string, params JSONSchema) error {
	if params.Type != TypeObject {
		return fmt.Errorf("tool %q: parameters must be an object schema, got %q", tool, params.Type)
	}
	for _, req := range params.Required {
		if _, ok := params.Properties[req]; !ok {
			return fmt.Errorf("tool %q: required parameter %q has no schema", tool, req)
		}
	}
	for name, p := range params.Properties {
		if p == nil {
			return fmt.Errorf("tool %q: parameter %q has a nil schema", tool, name)
		}
		switch p.Type {
		case TypeString, TypeInteger, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		default:
			return fmt.Errorf("tool %q: parameter %q has unsupported type %q", tool, name, p.Type)
		}
		if len(p.Enum) > 0 && p.Type != TypeString {
			return fmt.Errorf("tool %q: enum on non-string parameter %q", tool, name)
		}
		required := params.IsRequired(name)
		if required && p.Default != nil {
			return fmt.Errorf("tool %q: required parameter %q must not declare a default", tool, name)
		}
		if !required && p.Default == nil {
			return fmt.Errorf("tool %q: optional parameter %q needs a documented default", tool, name)
		}
	}
	return nil
}

// Lookup returns the definition registered under name.
func (c *Catalog) Lookup(name string) (Tool, error) {
	def, ok := c.byName[name]
	if !ok {
		return Tool{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return def, nil
}

// Has reports whether name resolves to a definition.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Names returns tool names in registration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Definitions returns all definitions in registration order, ready to send to a model.
func (c *Catalog) Definitions() []Tool {
	defs := make([]Tool, 0, len(c.order))
	for _, name := range c.order {
		defs = append(defs, c.byName[name])
	}
	return defs
}

// Version returns the catalog fingerprint.
func (c *Catalog) Version() string {
	return c.version
}

// Validate checks rawArguments against the compiled schema of the named tool.
//
// When several rules are broken, missing required keys are reported first, then type and enum
// violations, each in sorted parameter order, so the reported error is deterministic. Keys
// outside the schema are dropped without error: models over-generate, but the execution layer
// must never see malformed input.
func (c *Catalog) Validate(name, rawArguments string) (Args, error) {
	def, err := c.Lookup(name)
	if err != nil {
		return nil, err
	}
	fields, err := decodeObject(rawArguments)
	if err != nil {
		return nil, &ValidationError{Tool: name, Reason: MalformedArguments, Err: err}
	}
	// An explicit null is treated as an absent key.
	for k, v := range fields {
		if v == nil {
			delete(fields, k)
		}
	}

	result, err := c.schemas[name].Validate(gojsonschema.NewGoLoader(fields))
	if err != nil {
		return nil, &ValidationError{Tool: name, Reason: MalformedArguments, Err: err}
	}
	if !result.Valid() {
		return nil, firstViolation(name, result.Errors())
	}

	params := def.Function.Parameters
	args := make(Args, len(params.Properties))
	for key, schema := range params.Properties {
		v, ok := fields[key]
		if !ok {
			args[key] = cloneValue(schema.Default)
			continue
		}
		args[key] = coerce(schema.Type, v)
	}
	return args, nil
}

// firstViolation converts schema errors into the ValidationError that sorts first.
func firstViolation(tool string, resultErrors []gojsonschema.ResultError) *ValidationError {
	violations := make([]*ValidationError, 0, len(resultErrors))
	for _, re := range resultErrors {
		violations = append(violations, toValidationError(tool, re))
	}
	sort.SliceStable(violations, func(i, j int) bool {
		ri, rj := reasonRank(violations[i].Reason), reasonRank(violations[j].Reason)
		if ri != rj {
			return ri < rj
		}
		return violations[i].Param < violations[j].Param
	})
	return violations[0]
}

func toValidationError(tool string, re gojsonschema.ResultError) *ValidationError {
	details := re.Details()
	switch re.Type() {
	case "required":
		return &ValidationError{Tool: tool, Reason: MissingRequiredArgument, Param: fmt.Sprint(details["property"])}
	case "enum":
		return &ValidationError{
			Tool: tool, Reason: InvalidEnumValue, Param: re.Field(),
			Expected: fmt.Sprint(details["allowed"]), Actual: fmt.Sprint(re.Value()),
		}
	case "invalid_type":
		return &ValidationError{
			Tool: tool, Reason: TypeMismatch, Param: re.Field(),
			Expected: fmt.Sprint(details["expected"]), Actual: fmt.Sprint(details["given"]),
		}
	default:
		return &ValidationError{
			Tool: tool, Reason: TypeMismatch, Param: re.Field(),
			Expected: re.Type(), Actual: re.Description(),
		}
	}
}

func reasonRank(r ValidationReason) int {
	switch r {
	case MissingRequiredArgument:
		return 0
	case TypeMismatch:
		return 1
	default:
		return 2
	}
}

func decodeObject(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("arguments are null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("unexpected data after the arguments object")
	}
	return fields, nil
}

// coerce converts an already validated value to the Go type its schema promises.
func coerce(schemaType string, v any) any {
	v = normalizeNumbers(v)
	switch schemaType {
	case TypeInteger:
		if f, ok := v.(float64); ok {
			return int64(f)
		}
	case TypeNumber:
		if i, ok := v.(int64); ok {
			return float64(i)
		}
	}
	return v
}

// normalizeNumbers replaces json.Number inside nested values with int64 or float64.
func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = normalizeNumbers(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = normalizeNumbers(inner)
		}
		return out
	default:
		return t
	}
}

// DefaultCatalog returns the seven-tool catalog this gateway ships with.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(DefaultDefinitions()...)
	if err != nil {
		// The literals below are fixed; a failure here is a programming error.
		panic(fmt.Sprintf("default catalog is invalid: %v", err))
	}
	return c
}

// DefaultDefinitions returns the tool definitions of the default catalog in a stable order.
func DefaultDefinitions() []Tool {
	return []Tool{
		NewFunctionTool(
			APICallToolName,
			"Dynamically constructs and sends HTTP requests to external APIs.",
			CategoryNetwork,
			JSONSchema{
				Type: TypeObject,
				Properties: map[string]*JSONSchema{
					"url":    {Type: TypeString, Description: "The endpoint URL of the API to be called."},
					"method": {Type: TypeString, Enum: []string{"GET", "POST", "PUT", "DELETE"}, Description: "The HTTP method to use."},
					"headers": {
						Type: TypeObject, Description: "An object containing headers for the request.",
						Default: map[string]any{},
					},
					"body": {
						Type: TypeObject, Description: "Payload to send with POST/PUT requests.",
						Default: map[string]any{},
					},
				},
				Required: []string{"url", "method"},
			},
		),
		NewFunctionTool(
			DataExtractionToolName,
			"Extracts specific data points from structured text.",
			CategoryData,
			JSONSchema{
				Type: TypeObject,
				Properties: map[string]*JSONSchema{
					"data":    {Type: TypeString, Description: "The raw data from which to extract information."},
					"pattern": {Type: TypeString, Description: "The regex pattern or query to use for data extraction."},
				},
				Required: []string{"data", "pattern"},
			},
		),
		NewFunctionTool(
			CodeExecutionToolName,
			"Executes code snippets in specified programming languages.",
			CategoryCode,
			JSONSchema{
				Type: TypeObject,
				Properties: map[string]*JSONSchema{
					"language": {Type: TypeString, Description: "The programming language of the code."},
					"code":     {Type: TypeString, Description: "The code snippet to execute."},
				},
				Required: []string{"language", "code"},
			},
		),
		NewFunctionTool(
			DatabaseQueryToolName,
			"Executes SQL or NoSQL queries on a connected database.",
			CategoryDatabase,
			JSONSchema{
				Type: TypeObject,
				Properties: map[string]*JSONSchema{
					"query":        {Type: TypeString, Description: "The SQL or NoSQL query to execute."},
					"dbConnection": {Type: TypeObject, Description: "Connection details for the database."},
				},
				Required: []string{"query", "dbConnection"},
			},
		),
		NewFunctionTool(
			TextGenerationToolName,
			"Generates or completes text based on prompts using a language model.",
			CategoryGeneration,
			JSONSchema{
				Type: TypeObject,
				Properties: map[string]*JSONSchema{
					"prompt": {Type: TypeString, Description: "The initial text or prompt for text generation."},
					"maxTokens": {
						Type: TypeInteger, Description: "The maximum number of tokens to generate.",
						Default: DefaultMaxTokens,
					},
				},
				Required: []string{"prompt"},
			},
		),
		NewFunctionTool(
			DataValidationToolName,
			"Validates input data against predefined rules or formats.",
			CategoryData,
			JSONSchema{
				Type: TypeObject,
				Properties: map[string]*JSONSchema{
					"data":  {Type: TypeObject, Description: "The data object to validate."},
					"rules": {Type: TypeObject, Description: "Validation rules for acceptable formats and values."},
				},
				Required: []string{"data", "rules"},
			},
		),
		NewFunctionTool(
			FileManagementToolName,
			"Manages file operations like reading, writing, moving, or deleting files.",
			CategoryFilesystem,
			JSONSchema{
				Type: TypeObject,
				Properties: map[string]*JSONSchema{
					"filePath":  {Type: TypeString, Description: "Path to the file for the operation."},
					"operation": {Type: TypeString, Enum: []string{"read", "write", "move", "delete"}, Description: "The type of file operation to perform."},
					"content": {
						Type: TypeString, Description: "Content to write to a file (if applicable).",
						Default: "",
					},
				},
				Required: []string{"filePath", "operation"},
			},
		),
	}
}
