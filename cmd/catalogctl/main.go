package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/catalog-search/cmd/catalogctl/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := commands.NewRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}
