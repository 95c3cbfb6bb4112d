package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"textrefine/cmd"
	"textrefine/internal/chat"
)

// exitInterrupted is the conventional status for a run stopped by SIGINT.
const exitInterrupted = 130

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		if chat.IsCanceled(err) || ctx.Err() != nil {
			fmt.Fprintln(os.Stderr, "interrupted, exiting")
			os.Exit(exitInterrupted)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
