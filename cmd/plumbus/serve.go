package main

import (
	"context"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plumbus-labs/plumbus/pkg/server"
	"github.com/plumbus-labs/plumbus/pkg/site"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and static site",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer a.Close()

			var files fs.FS = site.Default()
			if dir := a.cfg.Server.SiteDir; dir != "" {
				files = os.DirFS(dir)
			}

			srv := server.New(server.Options{
				Config:    a.cfg,
				Generator: a.gen,
				History:   a.history,
				Metrics:   a.metrics,
				Site:      site.New(files, a.logger),
				Logger:    a.logger,
			})

			if !a.gen.Available() {
				a.logger.Warn("no provider has an API key; every image will be the fallback")
			}
			a.logger.Info("starting plumbus server",
				zap.String("listen", a.cfg.Listen),
				zap.String("version", version))
			return srv.ListenAndServe(ctx)
		},
	}
}
