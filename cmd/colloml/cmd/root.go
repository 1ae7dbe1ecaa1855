// Package cmd implements the colloml command-line interface: lexing,
// parsing and typechecking CoLLoML constraint scripts outside a host
// process.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags)
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "colloml",
	Short: "CoLLoML constraint-model compiler",
	Long: `colloml compiles CoLLoML constraint and objective scripts.

CoLLoML is a typed functional mini-language for expressing
integer-linear-programming models over a host object graph. This tool
lexes, parses and typechecks scripts against a schema file so they can
be validated without running the host application.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))
}

func exitWithError(msg string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	os.Exit(1)
}
