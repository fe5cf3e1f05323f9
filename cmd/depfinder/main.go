// Package main implements the depfinder CLI.
// It reports the imports of Python sources and notebooks and maps them to
// installable packages.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/l3aro/go-depfinder/cmd/depfinder/commands"
)

var (
	version   = "dev"
	buildTime = ""
)

func main() {
	commands.SetVersion(version, buildTime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := commands.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
