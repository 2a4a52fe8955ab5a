// Command pluma runs the actions of installed plugins from the command line.
package main

import (
	"os"

	"github.com/roach88/pluma/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:], os.Stdout, os.Stderr))
}
