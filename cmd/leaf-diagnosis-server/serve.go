package main

import (
	"github.com/spf13/cobra"

	"leaf-diagnosis-server/internal/bootstrap"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP diagnosis server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return bootstrap.Run(cmd.Context(), bootstrap.Options{
			ConfigPath: configPath,
			Port:       servePort,
		})
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
