package semantic

import (
	"fmt"

	"github.com/christophcharles/colloml/internal/lexer"
)

// Error is a semantic error with the module and span it was found in.
type Error struct {
	Module  string
	Message string
	Span    lexer.Span
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Module, e.Message, e.Span)
}

// Warning is a non-fatal diagnostic (unused local, shadowed identifier).
type Warning struct {
	Module  string
	Message string
	Span    lexer.Span
}

func (w *Warning) String() string {
	return fmt.Sprintf("%s: warning: %s %s", w.Module, w.Message, w.Span)
}
