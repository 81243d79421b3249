package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wesm/imsgexport/cmd/imsgexport/cmd"
)

const (
	exitCodeError       = 1
	exitCodeInterrupted = 130 // 128 + SIGINT
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case interrupted(ctx, err):
		// The output file is written in one step at the end, so an
		// interrupted run never leaves a partial export behind.
		fmt.Fprintln(os.Stderr, "imsgexport: interrupted, no output written")
		return exitCodeInterrupted
	default:
		return exitCodeError
	}
}

func interrupted(ctx context.Context, err error) bool {
	return errors.Is(err, context.Canceled) && ctx.Err() == context.Canceled
}
