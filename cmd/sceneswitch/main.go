// Command sceneswitch runs a transformation batch from the command line without a database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kiranshivaraju/sceneswitch/internal/batch"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, batch.ErrBatchExhausted):
		return 2
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}
