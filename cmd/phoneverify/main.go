package main

import (
	"fmt"
	"os"

	"github.com/allyourbase/phoneverify/internal/cli"
	"github.com/allyourbase/phoneverify/internal/cli/ui"
)

// Set at build time via -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersion(version, commit, date)
	if err := cli.Execute(); err != nil {
		fmt.Fprint(os.Stderr, ui.FormatError(err.Error()))
		os.Exit(1)
	}
}
