package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/wolfman30/spa-availability/cmd/scanner/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	commands.ExecuteContext(ctx)
}
