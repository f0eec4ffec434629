// Package main is the rupat-crawler entrypoint. It defers all execution to
// the Cobra CLI in package cmd; SIGINT and SIGTERM cancel the running command,
// which stops a crawl between requests without writing partial artifacts.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/JakeFAU/rupat-crawler/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.Execute(ctx)
}
