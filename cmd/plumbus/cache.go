package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plumbus-labs/plumbus/pkg/cache/sqlite"
	"github.com/plumbus-labs/plumbus/pkg/config"
)

func newCacheCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the result cache",
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := newApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.gen.CacheStats(ctx)
			if err != nil {
				return err
			}
			w := newTable()
			fmt.Fprintf(w, "Backend:\t%s\n", a.cfg.Cache.Backend)
			fmt.Fprintf(w, "Entries:\t%d\n", stats.Entries)
			fmt.Fprintf(w, "Hits:\t%d\n", stats.Hits)
			fmt.Fprintf(w, "Misses:\t%d\n", stats.Misses)
			fmt.Fprintf(w, "Evictions:\t%d\n", stats.Evictions)
			return w.Flush()
		},
	}

	var expiredOnly bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			if expiredOnly {
				return pruneCache(ctx, *configPath)
			}

			a, err := newApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.gen.ClearCache(ctx); err != nil {
				return err
			}
			fmt.Println(success("All cache entries cleared."))
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&expiredOnly, "expired", false, "only clear expired entries (sqlite backend)")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func pruneCache(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Cache.Backend != config.CacheSQLite {
		return errors.New("--expired requires the sqlite cache backend; other backends expire entries themselves")
	}

	c, err := sqlite.New(cfg.DBPath, cfg.Cache.MaxEntries, cfg.Cache.TTL)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	n, err := c.Prune(ctx)
	if err != nil {
		return err
	}
	fmt.Println(success(fmt.Sprintf("Removed %d expired cache entries.", n)))
	return nil
}
