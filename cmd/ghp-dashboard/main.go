package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/h0rv/ghp-dashboard/internal/auth"
	"github.com/h0rv/ghp-dashboard/internal/config"
	"github.com/h0rv/ghp-dashboard/internal/fanout"
	"github.com/h0rv/ghp-dashboard/internal/gh"
	"github.com/h0rv/ghp-dashboard/internal/metrics"
	"github.com/h0rv/ghp-dashboard/internal/pipeline"
)

var (
	// CLI flags
	configFlag string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ghp-dashboard",
		Short: "Kanban dashboard for GitHub Projects v2",
		Long: `ghp-dashboard shows the TODO columns of several GitHub Projects v2 boards
side by side, in the browser or in the terminal.

Projects are configured with PROJECTS_CONFIG, a JSON array of
{"name","owner","repo","projectNumber","todoColumns"} objects, or with the
single-project variables GITHUB_OWNER, GITHUB_REPO and PROJECT_NUMBER.

Authentication:
  1. Environment variable: Set GITHUB_TOKEN
  2. GitHub CLI: Run 'gh auth login'

The token needs read access to projects.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "YAML settings file. DASHBOARD_* environment variables take precedence.")

	rootCmd.AddCommand(newServeCmd(), newBoardCmd(), newCheckCmd())
	return rootCmd
}

// newPipeline wires the token chain, the GitHub client and the orchestrator.
func newPipeline(settings *config.Settings, logger *zap.Logger, m *metrics.Metrics, fanoutOpts ...fanout.Option) *pipeline.Pipeline {
	opts := []fanout.Option{
		fanout.WithLimit(settings.MaxConcurrency),
		fanout.WithLogger(logger),
	}
	if m != nil {
		opts = append(opts, fanout.WithMetrics(m))
	}
	opts = append(opts, fanoutOpts...)

	newFetcher := func(token string) fanout.ProjectFetcher {
		return gh.New(token,
			gh.WithEndpoint(settings.GraphQLEndpoint),
			gh.WithTimeout(settings.RequestTimeout),
			gh.WithLogger(logger),
		)
	}

	return pipeline.New(auth.Default(), newFetcher,
		pipeline.WithOrchestrator(fanout.New(opts...)),
		pipeline.WithLogger(logger),
	)
}
