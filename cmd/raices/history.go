package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/raices-core/internal/domain/entities"
	"github.com/ersonp/raices-core/internal/domain/ports"
)

func newHistoryCmd() *cobra.Command {
	var (
		action string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "history [PERSON_ID]",
		Short: "Show the audit trail of edits",
		Long:  "Shows audit entries for a person, or the latest entries of one action type.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && action == "" {
				return fmt.Errorf("specify a person ID or --action")
			}
			ctx := cmd.Context()

			return withAuditLog(ctx, func(audit ports.AuditLog) error {
				var (
					entries []entities.AuditEntry
					err     error
				)
				if len(args) > 0 {
					entries, err = audit.FindAuditLog(ctx, args[0])
				} else {
					entries, err = audit.FindAuditLogByAction(ctx, action, limit)
				}
				if err != nil {
					return fmt.Errorf("reading audit log: %w", err)
				}

				if len(entries) == 0 {
					fmt.Println("No audit entries found.")
					return nil
				}
				displayAuditEntries(entries)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&action, "action", "a", "", "Filter by action (link.add, link.remove, link.update, repair.heal)")
	cmd.Flags().IntVarP(&limit, "limit", "l", DefaultHistoryLimit, "Maximum number of entries when filtering by action")

	return cmd
}

func displayAuditEntries(entries []entities.AuditEntry) {
	fmt.Printf("%-20s %-14s %-34s %s\n", "TIME", "ACTION", "PERSON", "DETAILS")
	for _, e := range entries {
		details := ""
		if len(e.Details) > 0 {
			data, _ := json.Marshal(e.Details)
			details = string(data)
		}
		fmt.Printf("%-20s %-14s %-34s %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.PersonID, details)
	}
}
