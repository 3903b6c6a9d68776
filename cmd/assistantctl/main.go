package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	stop()

	if services != nil {
		if closeErr := services.Close(); closeErr != nil {
			fmt.Fprintln(os.Stderr, "release resources:", closeErr)
		}
		services.Logger.Sync() //nolint:errcheck
	}
	if err != nil {
		os.Exit(1)
	}
}
