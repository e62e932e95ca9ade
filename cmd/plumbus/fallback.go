package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plumbus-labs/plumbus/pkg/fallback"
)

func newFallbackCmd() *cobra.Command {
	var (
		output string
		uri    bool
	)

	cmd := &cobra.Command{
		Use:   "fallback",
		Short: "Print the static fallback image",
		RunE: func(cmd *cobra.Command, args []string) error {
			if uri {
				fmt.Println(fallback.SVG())
				return nil
			}
			if output != "" {
				return os.WriteFile(output, fallback.Raw(), 0o644)
			}
			_, err := os.Stdout.Write(fallback.Raw())
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the SVG to this file")
	cmd.Flags().BoolVar(&uri, "uri", false, "print as a base64 data URI")
	return cmd
}
