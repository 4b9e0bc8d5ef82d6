// Command strata runs the JSON:API atomic operations server and its
// schema tooling.
package main

import (
	"fmt"
	"os"

	"github.com/openarc/strata/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
