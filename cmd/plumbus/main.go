package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plumbus-labs/plumbus/pkg/config"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "plumbus",
		Short:         "Plumbus: product image generation with provider fallback and caching",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(".env")
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to plumbus config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newGenerateCmd(&configPath),
		newPresetsCmd(),
		newUsageCmd(),
		newCacheCmd(&configPath),
		newHistoryCmd(&configPath),
		newFallbackCmd(),
		newMCPCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failure("error:"), err)
		os.Exit(1)
	}
}
