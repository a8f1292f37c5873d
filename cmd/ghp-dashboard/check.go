package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/spf13/cobra"

	"github.com/h0rv/ghp-dashboard/internal/apperr"
	"github.com/h0rv/ghp-dashboard/internal/config"
	"github.com/h0rv/ghp-dashboard/internal/domain"
	"github.com/h0rv/ghp-dashboard/internal/fanout"
	"github.com/h0rv/ghp-dashboard/internal/gh"
	"github.com/h0rv/ghp-dashboard/internal/logging"
	"github.com/h0rv/ghp-dashboard/internal/tui"
)

const reportWidth = 78

func newCheckCmd() *cobra.Command {
	var waitRateLimit bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Fetch every configured project once and report the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings(configFlag)
			if err != nil {
				return err
			}
			logger, err := logging.New("warn", "console")
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			progress := fanout.WithProgress(func(completed, total int) {
				fmt.Fprintf(os.Stderr, "\rfetched %d/%d projects", completed, total)
				if completed == total {
					fmt.Fprintln(os.Stderr)
				}
			})

			ctx := cmd.Context()
			p := newPipeline(settings, logger, nil, progress)
			dash, err := p.Build(ctx)
			if err != nil {
				return err
			}
			if limited := rateLimitError(dash); waitRateLimit && limited != nil {
				fmt.Fprintf(os.Stderr, "rate limited, waiting %s before retrying\n", apperr.RateLimitWait(limited))
				if err := gh.WaitForRateLimit(ctx, limited); err != nil {
					return err
				}
				if dash, err = p.Build(ctx); err != nil {
					return err
				}
			}

			writeReport(cmd.OutOrStdout(), dash)
			if len(dash.Errors) > 0 {
				return fmt.Errorf("%d of %d projects failed", len(dash.Errors), len(dash.Errors)+len(dash.Projects))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&waitRateLimit, "wait", false, "When a project is rate limited, wait out the window and check again once.")
	return cmd
}

// rateLimitError returns the longest rate limit reported by dash, or nil.
func rateLimitError(dash *domain.Dashboard) *apperr.Error {
	longest := 0
	for _, e := range dash.Errors {
		if e.Code == string(apperr.KindRateLimit) {
			longest = max(longest, e.RetryAfterSeconds)
		}
	}
	if longest == 0 {
		return nil
	}
	return apperr.New(apperr.KindRateLimit, "").WithRetryAfter(time.Duration(longest) * time.Second)
}

func writeReport(w io.Writer, dash *domain.Dashboard) {
	fmt.Fprintln(w, tui.TitleStyle.Render("Projects fetched at "+dash.LastFetched))

	for _, p := range dash.Projects {
		fmt.Fprintf(w, "✓ %s  %s/#%d %q\n", p.Name, p.Owner, p.ProjectNumber, p.Title)
		fmt.Fprintf(w, "  %d items, %d in %v\n", p.Stats.Total, len(p.Items), p.TodoColumns)
	}
	for _, e := range dash.Errors {
		fmt.Fprintln(w, tui.ErrorStyle.Render(fmt.Sprintf("✗ %s  %s", e.ProjectName, e.Code)))
		fmt.Fprintln(w, indent.String(wordwrap.String(e.Error, reportWidth-2), 2))
		if e.RetryAfterSeconds > 0 {
			fmt.Fprintln(w, tui.HelpStyle.Render(fmt.Sprintf("  retry after %ds", e.RetryAfterSeconds)))
		}
	}
}
