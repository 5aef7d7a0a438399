package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"gauntlet/internal/cli"
	"gauntlet/internal/sandbox"
)

func main() {
	sandbox.Init()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
