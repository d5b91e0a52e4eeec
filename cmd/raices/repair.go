package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/raices-core/internal/application/handlers"
	"github.com/ersonp/raices-core/internal/domain/services"
)

func newRepairCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Restore missing mirror links",
		Long: "Scans the tree for relationships recorded on only one side, mismatched spouse\n" +
			"statuses and duplicate links, and writes the fixes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
				report, err := h.Repair(cmd.Context(), dryRun)
				if err != nil {
					return err
				}
				displayRepair(report)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report fixes without saving")

	return cmd
}

func displayRepair(report *services.RepairReport) {
	if len(report.Fixes) == 0 {
		fmt.Printf("Checked %d people, no fixes needed.\n", report.Checked)
		return
	}

	verb := "Applied"
	if report.DryRun {
		verb = "Would apply"
	}
	fmt.Printf("Checked %d people. %s %d fixes:\n\n", report.Checked, verb, len(report.Fixes))

	for _, fix := range report.Fixes {
		fmt.Printf("  %-14s %-34s %-7s %s\n", fix.Action, fix.PersonID, fix.Relationship.Type, fix.Relationship.PersonID)
	}
}
