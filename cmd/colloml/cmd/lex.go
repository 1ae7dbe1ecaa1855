package cmd

import (
	"fmt"
	"os"

	"github.com/christophcharles/colloml/internal/lexer"
	"github.com/spf13/cobra"
)

var (
	lexShowPos bool
	evalExpr   string
)

var lexCmd = &cobra.Command{
	Use:   "lex [file]",
	Short: "Tokenize a CoLLoML script",
	Long: `Tokenize (lex) a CoLLoML script and print the resulting tokens.

Examples:
  # Tokenize a script file
  colloml lex rules.cml

  # Tokenize inline code
  colloml lex -e "pub let f() -> Int = 42;"

  # Show token positions
  colloml lex --show-pos rules.cml`,
	Args: cobra.MaximumNArgs(1),
	RunE: lexScript,
}

func init() {
	rootCmd.AddCommand(lexCmd)

	lexCmd.Flags().StringVarP(&evalExpr, "eval", "e", "", "tokenize inline code instead of reading from file")
	lexCmd.Flags().BoolVar(&lexShowPos, "show-pos", false, "show token positions (line:column)")
}

// readInput resolves the script text from the -e flag or a file
// argument.
func readInput(args []string) (input, filename string, err error) {
	if evalExpr != "" {
		return evalExpr, "<eval>", nil
	}
	if len(args) == 1 {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
		return string(content), args[0], nil
	}
	return "", "", fmt.Errorf("either provide a file path or use -e flag for inline code")
}

func lexScript(cmd *cobra.Command, args []string) error {
	input, filename, err := readInput(args)
	if err != nil {
		return err
	}

	l := lexer.New(input)
	for {
		tok := l.NextToken()
		if tok.Type == lexer.EOF {
			break
		}
		if lexShowPos {
			fmt.Printf("%-12s %-24q %s\n", tok.Type, tok.Literal, tok.Pos)
		} else {
			fmt.Printf("%-12s %q\n", tok.Type, tok.Literal)
		}
	}

	if errs := l.Errors(); len(errs) > 0 {
		for _, le := range errs {
			printDiagnostic(filename, input, le.Pos, le.Message)
		}
		return fmt.Errorf("%d lexical error(s)", len(errs))
	}
	return nil
}
