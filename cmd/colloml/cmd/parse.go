package cmd

import (
	"fmt"

	"github.com/christophcharles/colloml/internal/parser"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a CoLLoML script and print it back",
	Long: `Parse a CoLLoML script and pretty-print the resulting AST in
source syntax. Re-parsing the printed output yields the same tree, which
makes this command useful both for debugging the parser and for
normalising scripts.

Examples:
  colloml parse rules.cml
  colloml parse -e "pub let f(x: Int) -> Int = x + 1;"`,
	Args: cobra.MaximumNArgs(1),
	RunE: parseScript,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&evalExpr, "eval", "e", "", "parse inline code instead of reading from file")
}

func parseScript(cmd *cobra.Command, args []string) error {
	input, filename, err := readInput(args)
	if err != nil {
		return err
	}

	p := parser.New(input)
	file := p.ParseFile()
	if file == nil {
		for _, le := range p.LexErrors() {
			printDiagnostic(filename, input, le.Pos, le.Message)
		}
		for _, pe := range p.Errors() {
			printDiagnostic(filename, input, pe.Pos, pe.Message)
		}
		return fmt.Errorf("parse failed")
	}

	fmt.Print(file.String())
	return nil
}
