package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/raices-core/internal/application/handlers"
)

func newGraphCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Print the tree as renderable nodes and edges",
		Long:  "Projects the stored tree into the node and edge JSON consumed by the canvas renderer.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTreeHandler(cmd.Context(), func(h *handlers.TreeHandler) error {
				g, err := h.Graph(cmd.Context())
				if err != nil {
					return err
				}

				var w io.Writer = os.Stdout
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("creating output file: %w", err)
					}
					defer f.Close()
					w = f
				}

				encoder := json.NewEncoder(w)
				encoder.SetIndent("", "  ")
				if err := encoder.Encode(g); err != nil {
					return fmt.Errorf("encoding graph: %w", err)
				}

				if output != "" {
					fmt.Printf("Wrote %d nodes and %d edges to %s\n", len(g.Nodes), len(g.Edges), output)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")

	return cmd
}
