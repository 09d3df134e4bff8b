// Package main provides the voxtest CLI application for golden file testing
// of voxcmd grammars.
package main

import (
	"context"
	"os"
	"os/signal"

	"voxcmd/cmd/voxtest/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewApp().CreateRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
