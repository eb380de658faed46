// Package cmd implements the sis-monitor command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var (
	cfgFile   string
	debugFlag bool

	rootCmd = &cobra.Command{
		Use:   "sis-monitor",
		Short: "Realtime monitor for the SIS provisioning pipeline",
		Long: `sis-monitor polls the student-information-system provisioning API and
serves a dashboard of import queue state, per-minute event rates, term
boundaries, and upstream status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available to config.
	_ = godotenv.Load()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug mode")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sis-monitor version %s\n", version)
		},
	})

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(statusCommand())
}
