package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/plumbus-labs/plumbus/pkg/audit"
	"github.com/plumbus-labs/plumbus/pkg/config"
	"github.com/plumbus-labs/plumbus/pkg/models"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	var (
		provider string
		outcome  string
		since    string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Search the generation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openHistoryLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.HistoryQueryOpts{
				Provider: provider,
				Outcome:  models.Outcome(outcome),
				Limit:    limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			entries, err := l.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No history entries found.")
				return nil
			}

			w := newTable()
			fmt.Fprintln(w, "TIME\tREQUEST ID\tSTYLE\tPROVIDER\tOUTCOME\tLATENCY\tERROR")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%dms\t%s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					e.RequestID, e.Style, e.Provider, colorOutcome(e.Outcome), e.LatencyMs, e.Error)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "filter by provider")
	cmd.Flags().StringVar(&outcome, "outcome", "", "filter by outcome (success, cache_hit, failed, quota_skipped)")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max entries to return")

	cmd.AddCommand(newHistoryStatsCmd(configPath), newHistoryCleanupCmd(configPath))
	return cmd
}

func newHistoryStatsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show attempt counts by provider, outcome and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openHistoryLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := l.Stats(context.Background())
			if err != nil {
				return err
			}
			if len(stats) == 0 {
				fmt.Println("No history stats found.")
				return nil
			}

			w := newTable()
			fmt.Fprintln(w, "DAY\tPROVIDER\tOUTCOME\tCOUNT")
			for _, s := range stats {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.Day, s.Provider, colorOutcome(models.Outcome(s.Outcome)), s.Count)
			}
			return w.Flush()
		},
	}
}

func newHistoryCleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete history entries older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, cleanup, err := openHistoryLogger(*configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := l.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d history entries.\n", deleted)
			return nil
		},
	}
}

func openHistoryLogger(configPath string) (*audit.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	l, err := openHistory(cfg)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Close() }, nil
}

func colorOutcome(o models.Outcome) string {
	switch o {
	case models.OutcomeSuccess, models.OutcomeCacheHit:
		return success(o)
	case models.OutcomeQuotaSkipped:
		return warning(o)
	default:
		return failure(o)
	}
}
