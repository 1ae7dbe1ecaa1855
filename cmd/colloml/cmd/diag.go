package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/christophcharles/colloml/internal/lexer"
)

var (
	errHeader = color.New(color.FgRed, color.Bold)
	errCaret  = color.New(color.FgRed, color.Bold)
	dimLine   = color.New(color.Faint)
)

// printDiagnostic renders an error with its source line and a caret
// pointing at the offending column.
func printDiagnostic(filename, source string, pos lexer.Position, message string) {
	if filename != "" {
		errHeader.Fprintf(os.Stderr, "Error in %s:%d:%d\n", filename, pos.Line, pos.Column)
	} else {
		errHeader.Fprintf(os.Stderr, "Error at line %d:%d\n", pos.Line, pos.Column)
	}

	line := sourceLine(source, pos.Line)
	if line != "" {
		lineNumStr := fmt.Sprintf("%4d | ", pos.Line)
		dimLine.Fprint(os.Stderr, lineNumStr)
		fmt.Fprintln(os.Stderr, line)

		col := pos.Column
		if col < 1 {
			col = 1
		}
		fmt.Fprint(os.Stderr, strings.Repeat(" ", len(lineNumStr)+col-1))
		errCaret.Fprintln(os.Stderr, "^")
	}

	fmt.Fprintln(os.Stderr, message)
}

// sourceLine extracts a 1-indexed line from source text.
func sourceLine(source string, lineNum int) string {
	if source == "" || lineNum < 1 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if lineNum > len(lines) {
		return ""
	}
	return lines[lineNum-1]
}

// offsetToPos converts a byte span start to a line/column position.
func offsetToPos(source string, offset int) lexer.Position {
	line, col := 1, 1
	for i, ch := range source {
		if i >= offset {
			break
		}
		if ch == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return lexer.Position{Line: line, Column: col, Offset: offset}
}
