package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/plumbus-labs/plumbus/pkg/models"
)

// newUsageCmd reads the counters of a running server.
func newUsageCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show usage counters and quota of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var u models.UsageStats
			if err := getJSON(ctx, strings.TrimRight(addr, "/")+"/v1/usage", &u); err != nil {
				return err
			}

			w := newTable()
			fmt.Fprintln(w, "METRIC\tVALUE")
			fmt.Fprintf(w, "Requests\t%d\n", u.TotalRequests)
			fmt.Fprintf(w, "Generations\t%d\n", u.SuccessfulGenerations)
			fmt.Fprintf(w, "Cache hits\t%d\n", u.CacheHits)
			fmt.Fprintf(w, "Quota used\t%d chars\n", u.CurrentMonthUsage)
			remaining := fmt.Sprintf("%d chars", u.RemainingQuota)
			if u.CurrentMonthUsage > 0 && u.RemainingQuota == 0 {
				remaining = failure(remaining)
			}
			fmt.Fprintf(w, "Quota remaining\t%s\n", remaining)
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://localhost:8080", "base URL of the plumbus server")
	return cmd
}

func getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("query server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("query server: status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
