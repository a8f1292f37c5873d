package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/h0rv/ghp-dashboard/internal/config"
	"github.com/h0rv/ghp-dashboard/internal/tui"
)

func newBoardCmd() *cobra.Command {
	var (
		serverURL string
		interval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show the dashboard as a terminal Kanban board",
		Long: `Show the dashboard as a terminal Kanban board.

With --server the board reads a running 'ghp-dashboard serve' instance and
reloads as soon as it pushes an update. Without it, projects are fetched
directly from GitHub using the local configuration and token.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(configFlag)
			if err != nil {
				return err
			}
			if interval <= 0 {
				interval = settings.RefreshInterval
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var (
				source tui.Source
				events tui.EventSource
			)
			if serverURL != "" {
				remote := tui.NewRemoteSource(serverURL, settings.RequestTimeout)
				source, events = remote, remote
			} else {
				// Logs would corrupt the alternate screen.
				source = tui.LocalSource{Builder: newPipeline(settings, zap.NewNop(), nil)}
			}

			app := tui.NewAppModel(ctx, source, events, interval)
			p := tea.NewProgram(app, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("program error: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "Base URL of a running dashboard server, e.g. http://localhost:3000")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Polling interval. Defaults to the configured refresh_interval.")
	return cmd
}
