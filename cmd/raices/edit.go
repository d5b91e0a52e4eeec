package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/raices-core/internal/application/handlers"
	"github.com/ersonp/raices-core/internal/domain/entities"
)

func newAddParentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-parent CHILD_ID",
		Short: "Create a placeholder parent linked to a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
				p, err := h.AddParent(cmd.Context(), args[0])
				if err != nil {
					return reportEdit(err)
				}
				fmt.Printf("Added parent %s (%s) to %s\n", p.DisplayName(), p.ID, args[0])
				return nil
			})
		},
	}
}

func newAddChildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-child PARENT_ID",
		Short: "Create a placeholder child linked to a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
				p, err := h.AddChild(cmd.Context(), args[0])
				if err != nil {
					return reportEdit(err)
				}
				fmt.Printf("Added child %s (%s) to %s\n", p.DisplayName(), p.ID, args[0])
				return nil
			})
		},
	}
}

func newAddSpouseCmd() *cobra.Command {
	var side string

	cmd := &cobra.Command{
		Use:   "add-spouse PERSON_ID",
		Short: "Create a placeholder spouse linked to a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !entities.IsLateralHandle(side) {
				return fmt.Errorf("invalid --side %q (valid: left, right)", side)
			}
			return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
				p, err := h.CreateSpouseFromDrag(cmd.Context(), handlers.DragEnd{
					Source:       args[0],
					SourceHandle: side,
					OnPane:       true,
				})
				if err != nil {
					return reportEdit(err)
				}
				fmt.Printf("Added spouse %s (%s) to %s\n", p.DisplayName(), p.ID, args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&side, "side", entities.HandleRight, "Spouse port the new partner attaches to (left, right)")

	return cmd
}

func newConnectCmd() *cobra.Command {
	var spouse bool

	cmd := &cobra.Command{
		Use:   "connect SOURCE_ID TARGET_ID",
		Short: "Link two existing people",
		Long: "Links two existing people. Without --spouse SOURCE becomes a parent of TARGET.\n" +
			"With --spouse the two become current spouses.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn := handlers.Connection{
				Source:       args[0],
				Target:       args[1],
				SourceHandle: entities.HandleBottom,
				TargetHandle: entities.HandleTop,
			}
			if spouse {
				conn.SourceHandle = entities.HandleRight
				conn.TargetHandle = entities.HandleLeft
			}
			return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
				edge, err := h.Connect(cmd.Context(), conn)
				if err != nil {
					return reportEdit(err)
				}
				fmt.Printf("Connected %s\n", edge.ID)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&spouse, "spouse", "s", false, "Link as spouses instead of parent and child")

	return cmd
}

func newReconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconnect PARENT_ID CHILD_ID NEW_PARENT_ID [NEW_CHILD_ID]",
		Short: "Move a parent-child link to other people",
		Long: "Replaces the link PARENT_ID -> CHILD_ID with NEW_PARENT_ID -> NEW_CHILD_ID.\n" +
			"NEW_CHILD_ID defaults to CHILD_ID.",
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			old := entities.LineageEdge(args[0], args[1])
			conn := handlers.Connection{
				Source:       args[2],
				Target:       args[1],
				SourceHandle: entities.HandleBottom,
				TargetHandle: entities.HandleTop,
			}
			if len(args) == 4 {
				conn.Target = args[3]
			}
			return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
				edge, err := h.Reconnect(cmd.Context(), old, conn)
				if err != nil {
					return reportEdit(err)
				}
				fmt.Printf("Reconnected %s as %s\n", old.ID, edge.ID)
				return nil
			})
		},
	}
}

func newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle PERSON_ID SPOUSE_ID",
		Short: "Switch a marriage between current and former",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			edgeID := entities.SpouseEdgeID(args[0], args[1])
			return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
				status, err := h.ToggleSpouseStatus(cmd.Context(), edgeID)
				if err != nil {
					return reportEdit(err)
				}
				fmt.Printf("%s is now %s\n", edgeID, status)
				return nil
			})
		},
	}
}

// reportEdit prints the steps an interrupted edit already applied.
func reportEdit(err error) error {
	var partial *entities.PartialApplicationError
	if !errors.As(err, &partial) {
		return err
	}

	fmt.Fprintf(os.Stderr, "Edit %q stopped at %q.\n", partial.Operation, partial.Failed)
	if len(partial.Applied) > 0 {
		fmt.Fprintln(os.Stderr, "Already applied:")
		for _, step := range partial.Applied {
			fmt.Fprintf(os.Stderr, "  - %s\n", step)
		}
	}
	fmt.Fprintln(os.Stderr, "Run 'raices repair' to restore the missing mirror links.")
	return err
}
