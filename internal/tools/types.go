// In file: internal/tools/types.go

// Package tools holds the Capability Catalog (the tool definitions surfaced to the language
// model), structural validation of model-generated arguments, and the Tool Executor that maps a
// validated call onto exactly one action implementation.
package tools

// ToolTypeFunction is the only tool type the catalog defines.
const ToolTypeFunction = "function"

// Parameter types understood by the catalog validator.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Tool is one catalog entry, serialized in the function-calling shape every provider accepts.
type Tool struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
	// Category groups tools for provider bindings. It is never sent to a model.
	Category string   `json:"-"`
}

// Function is the model-facing half of a Tool.
type Function struct {
	// Name is unique across the catalog.
	Name string `json:"name"`
	// Description is what the model reads to decide when to use the tool.
	Description string `json:"description"`
	// Parameters is always an object schema.
	Parameters JSONSchema `json:"parameters"`
}

// JSONSchema is the subset of JSON Schema used for tool parameters.
type JSONSchema struct {
	// Type is "object" for the top-level parameters node.
	Type string `json:"type"`
	// Description is shown to the model.
	Description string `json:"description,omitempty"`
	// Enum restricts a string parameter to a fixed set of values.
	Enum []string `json:"enum,omitempty"`
	// Default is the documented value used when an optional parameter is absent.
	Default any `json:"default,omitempty"`
	// Properties describes the parameters of an object.
	Properties map[string]*JSONSchema `json:"properties,omitempty"`
	// Required parameters have no default.
	Required []string `json:"required,omitempty"`
}

// ToolCall is a tool invocation as returned by a provider, before any validation.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction holds the name and the serialized JSON arguments of a call.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// NewFunctionTool builds a catalog entry.
func NewFunctionTool(name, description, category string, parameters JSONSchema) Tool {
	return Tool{
		Type:     ToolTypeFunction,
		Category: category,
		Function: Function{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// IsRequired reports whether the named parameter is listed as required.
func (s JSONSchema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}
