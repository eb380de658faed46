package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/app"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the monitor and its dashboard HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(app.Options{
				ConfigPath: cfgFile,
				Version:    version,
				Debug:      debugFlag,
			})
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			defer func() { _ = a.Close() }()

			return a.Run(cmd.Context())
		},
	}
}
