// File: cmd/remend/main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/remend/cmd"
	"github.com/xkilldash9x/remend/internal/observability"
)

func main() {
	// Listen for interrupt signals so a correction run in progress can wind
	// down through its normal timed-out path instead of being killed.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defer observability.Sync()

	cmd.Execute(ctx)
}
