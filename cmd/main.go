package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/drewfead/curzon-listings/internal/root"
)

func main() {
	ctx := context.Background()

	rootCmd, err := root.Root(ctx)
	if err != nil {
		slog.Error("failed to create root command", "error", err)
		os.Exit(137)
	}

	if err := rootCmd.Run(ctx, os.Args); err != nil {
		slog.Debug("command failed", "error", err)
		_, _ = fmt.Fprintln(os.Stderr, root.Diagnostic(err))
		os.Exit(root.ExitStatus(err))
	}
}
