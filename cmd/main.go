package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/soden46/hyperlux-flagstore/cli"
	"github.com/soden46/hyperlux-flagstore/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		logging.NewLogger(os.Stderr, logging.ParseLevel("error")).Error("command failed", "error", err)
		stop()
		os.Exit(1)
	}
}
