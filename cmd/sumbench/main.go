// Command sumbench compares summaries produced by several LLM providers
// and reports which one an evaluator model rates best.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ahrav/go-sumbench/internal/domain"
)

// Exit codes.
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitError      = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	cmd := newRootCommand(a)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.teardown(shutdownCtx)

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return ExitSuccess
}

func exitCode(err error) int {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return ExitValidation
	}
	return ExitError
}
