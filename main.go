package main

import (
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/joescharf/intentcfg/cmd"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	undo, _ := maxprocs.Set()
	defer undo()

	cmd.Execute(version, commit, date)
}
