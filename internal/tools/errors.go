// In file: internal/tools/errors.go
package tools

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a catalog check or an execution failed.
type ErrorKind string

const (
	KindUnknownTool     ErrorKind = "UnknownTool"
	KindValidationError ErrorKind = "ValidationError"
	KindActionFault     ErrorKind = "ActionFault"
)

// ErrUnknownTool is returned (wrapped with the name) when a tool is not in the catalog.
var ErrUnknownTool = errors.New("unknown tool")

// ValidationReason is the specific rule a set of arguments broke.
type ValidationReason string

const (
	MissingRequiredArgument ValidationReason = "MissingRequiredArgument"
	TypeMismatch            ValidationReason = "TypeMismatch"
	InvalidEnumValue        ValidationReason = "InvalidEnumValue"
	MalformedArguments      ValidationReason = "MalformedArguments"
)

// ValidationError reports a rejected argument set. Param is empty for MalformedArguments.
type ValidationError struct {
	Tool     string
	Reason   ValidationReason
	Param    string
	Expected string
	Actual   string
	Err      error
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case MissingRequiredArgument:
		return fmt.Sprintf("%s: missing required argument %q for tool %s", e.Reason, e.Param, e.Tool)
	case TypeMismatch:
		return fmt.Sprintf("%s: argument %q of tool %s must be %s, got %s", e.Reason, e.Param, e.Tool, e.Expected, e.Actual)
	case InvalidEnumValue:
		return fmt.Sprintf("%s: argument %q of tool %s must be one of %s, got %s", e.Reason, e.Param, e.Tool, e.Expected, e.Actual)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: arguments for tool %s are not a JSON object: %v", e.Reason, e.Tool, e.Err)
		}
		return fmt.Sprintf("%s: arguments for tool %s are not a JSON object", e.Reason, e.Tool)
	}
}

func (e *ValidationError) Unwrap() error { return e.Err }
