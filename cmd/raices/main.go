// Package main provides the entry point for the raices CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0-dev"
	globalTree string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "raices",
		Short:         "A family tree editor that keeps both sides of every relationship in step",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globalTree, "tree", "t", "", "Tree to operate on (defaults to the only registered tree)")

	rootCmd.AddCommand(
		newTreesCmd(),
		newPeopleCmd(),
		newAddParentCmd(),
		newAddChildCmd(),
		newAddSpouseCmd(),
		newConnectCmd(),
		newReconnectCmd(),
		newToggleCmd(),
		newGraphCmd(),
		newRepairCmd(),
		newHistoryCmd(),
		newExportCmd(),
		newImportCmd(),
		newServeCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}
