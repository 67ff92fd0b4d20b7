// ./main.go
package main

import (
	"github.com/WangZhewei1027/demoprobe/cmd"
)

// main is the entry point for the demoprobe CLI application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
