package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/config"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/sis"
)

const statusFetchTimeout = 15 * time.Second

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print a one-shot snapshot of the import queue and upstream status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			client := sis.NewClient(cfg.API.BaseURL, cfg.API.Timeout, logger.NewNop())

			ctx, cancel := context.WithTimeout(cmd.Context(), statusFetchTimeout)
			defer cancel()

			if err := renderImports(ctx, client); err != nil {
				return err
			}
			return renderCanvasStatus(ctx, client)
		},
	}
}

func renderImports(ctx context.Context, client *sis.Client) error {
	jobs, err := client.Imports(ctx)
	if err != nil {
		return fmt.Errorf("fetch imports: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No imports queued")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Queue ID", "Type", "Priority", "Added", "Progress", "State"})
	for _, j := range jobs {
		state := ""
		if j.CanvasState != nil {
			state = *j.CanvasState
		}
		t.AppendRow(table.Row{
			j.QueueID,
			j.TypeName,
			j.Priority,
			j.AddedDate.Local().Format(time.RFC822),
			fmt.Sprintf("%d%%", j.CanvasProgress),
			state,
		})
	}
	t.Render()
	return nil
}

func renderCanvasStatus(ctx context.Context, client *sis.Client) error {
	components, err := client.CanvasStatus(ctx)
	if err != nil {
		return fmt.Errorf("fetch canvas status: %w", err)
	}
	if len(components) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Component", "Status", "State"})
	for _, c := range components {
		t.AppendRow(table.Row{c.Component, c.Status, c.State})
	}
	t.Render()
	return nil
}
