package main

import (
	"os"

	"github.com/christophcharles/colloml/cmd/colloml/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
