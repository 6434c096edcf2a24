package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/a2y-d5l/go-qsync/internal/cli"
)

const (
	cmdName = "qsync-stress"

	shortDesc = "Stress the qsync lock types."
	longDesc  = `qsync-stress drives the mutex, semaphore, latch and condition types under
heavy contention and checks that they keep their guarantees.

Violations are reported per scenario and make the command exit with status 1.
`
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCmd(cmdName, shortDesc, longDesc)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, strings.TrimLeft(err.Error(), "\n"))
		stop()
		os.Exit(1)
	}
}
