// Command sdnctl-controller runs only the Controller subcommand, for
// container images that ship one binary per role instead of the combined
// sdnctl CLI.
package main

import (
	"fmt"
	"os"

	"github.com/netsdn/controlplane/internal/cli"
)

func main() {
	if err := cli.RunController(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
