package main

import (
	"fmt"
	"os"

	"branchflow/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the branchflow command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}
