// Command hydro-report configures, runs and plots groundwater simulations.
package main

import (
	"os"

	"github.com/banshee-data/hydro.report/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:]))
}
