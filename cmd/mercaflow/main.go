// Command mercaflow runs the offline front and the item classifier.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonwraymond/mercaflow/cmd/mercaflow/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.New().Execute(ctx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mercaflow: %v\n", err)
		os.Exit(1)
	}
}
