// Command stemtrack tracks scripts, notebooks and data files as
// content-addressed versions.
package main

import (
	"os"

	"github.com/roach88/stemtrack/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
