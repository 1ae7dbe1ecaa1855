package eval

import (
	"fmt"

	"github.com/christophcharles/colloml/internal/lexer"
	"github.com/christophcharles/colloml/pkg/value"
)

// PanicError is the error produced by a script's panic! expression; it
// unwinds to the nearest caller with the user-supplied payload.
type PanicError struct {
	Payload value.Value
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %s", e.Payload)
}

// Error is a runtime evaluation error (division by zero, index out of
// range, integer overflow, failed narrowing, no matching branch).
type Error struct {
	Module  string
	Message string
	Span    lexer.Span
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Module, e.Message, e.Span)
}
