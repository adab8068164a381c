// flowctl validates, debugs and versions workflow graphs from the command line.
package main

import (
	"os"

	"github.com/dshills/flowstudio-go/internal/cli"
)

func main() {
	if err := cli.Execute(os.Stdin, os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
