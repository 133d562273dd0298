// The main package for the courseingest executable.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/JakeFAU/course-ingest/cmd"
)

// main defers all execution to the Cobra CLI, canceling the run on SIGINT or
// SIGTERM.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.Execute(ctx)
}
