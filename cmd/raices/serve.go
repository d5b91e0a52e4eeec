package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ersonp/raices-core/internal/infrastructure/httpapi"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tree editor API",
		Long:  "Serves the graph and edit gestures of one tree over HTTP until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				cfg := d.Config.Server
				if port != "" {
					cfg.Port = port
				}

				d.Logger.Debug("Serving tree", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
				if err := httpapi.NewServer(cfg, d.TreeHandler, d.Logger).Run(cmd.Context()); err != nil {
					return err
				}
				d.Logger.Info("Server stopped")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to listen on (default from config)")

	return cmd
}
