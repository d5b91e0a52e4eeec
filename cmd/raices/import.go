package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/raices-core/internal/application/handlers"
	"github.com/ersonp/raices-core/internal/domain/services"
)

type importFlags struct {
	format     string
	dryRun     bool
	onConflict string
	reconcile  bool
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import people from JSON or CSV",
		Long:  "Imports person records from a structured file. Use --reconcile to add missing mirror links afterwards.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "auto", "File format (json, csv, auto)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Validate without saving")
	cmd.Flags().StringVar(&flags.onConflict, "on-conflict", "skip", "Conflict handling (skip, overwrite)")
	cmd.Flags().BoolVar(&flags.reconcile, "reconcile", false, "Repair one-sided links after importing")

	return cmd
}

func runImport(cmd *cobra.Command, filePath string, flags importFlags) error {
	if !contains(validConflicts, flags.onConflict) {
		return fmt.Errorf("invalid --on-conflict value %q (valid: skip, overwrite)", flags.onConflict)
	}

	ctx := cmd.Context()

	return withDeps(ctx, func(d *Deps) error {
		opts := handlers.ImportOptions{
			Format:     flags.format,
			DryRun:     flags.dryRun,
			OnConflict: services.ConflictStrategy(flags.onConflict),
			CreatedBy:  d.Config.Tree.CreatedBy,
			Reconcile:  flags.reconcile,
		}

		fmt.Printf("Importing %s...\n", filePath)

		result, err := d.ImportHandler.Handle(ctx, filePath, opts)
		if err != nil {
			return fmt.Errorf("importing file: %w", err)
		}

		if len(result.Errors) > 0 {
			fmt.Printf("\nValidation errors (%d):\n", len(result.Errors))
			for _, e := range result.Errors {
				fmt.Printf("  %s\n", e.Error())
			}
		}

		fmt.Println()
		if flags.dryRun {
			fmt.Printf("Dry run: %d people would be imported", result.Imported)
		} else {
			fmt.Printf("Imported: %d people", result.Imported)
		}

		if result.Skipped > 0 {
			fmt.Printf(", %d skipped (already exist)", result.Skipped)
		}

		if len(result.Errors) > 0 {
			fmt.Printf(", %d errors", len(result.Errors))
		}

		fmt.Println()

		if result.Repair != nil {
			fmt.Println()
			displayRepair(result.Repair)
		}

		return nil
	})
}
