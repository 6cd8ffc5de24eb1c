// In file: internal/dispatch/errors.go
package dispatch

import (
	"errors"
	"fmt"
)

// Kind is the specific reason a cycle ended in the Error state.
type Kind string

const (
	KindGatewayError    Kind = "GatewayError"
	KindGatewayTimeout  Kind = "GatewayTimeout"
	KindCanceled        Kind = "Canceled"
	KindNoToolSelected  Kind = "NoToolSelected"
	KindUnroutableTool  Kind = "UnroutableTool"
	KindUnknownTool     Kind = "UnknownTool"
	KindValidationError Kind = "ValidationError"
)

// ErrNoToolSelected is the cause recorded when the model answers in prose on a request that
// requires a tool.
var ErrNoToolSelected = errors.New("model answered without selecting a tool")

// ErrUnroutable is the cause recorded when no provider is bound to the selected tool.
var ErrUnroutable = errors.New("no provider is bound to the selected tool")

// Error is the terminal error of a dispatch cycle. Phase is the state that failed.
type Error struct {
	Kind  Kind
	Phase State
	Tool  string
	Err   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s in %s phase", e.Kind, e.Phase)
	if e.Tool != "" {
		msg += fmt.Sprintf(" (tool %s)", e.Tool)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a dispatch error, or false if err is not one.
func KindOf(err error) (Kind, bool) {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind, true
	}
	return "", false
}
