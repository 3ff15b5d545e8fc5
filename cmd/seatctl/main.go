package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "seatctl",
		Short:         "Inspect and reconcile practice license seats",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().BoolVar(&g.localLock, "local-lock", false, "Serialize in-process only instead of through Redis")

	root.AddCommand(
		newReconcileCmd(g),
		newSummaryCmd(g),
		newMigrateCmd(g),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
