package main

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/plumbus-labs/plumbus/pkg/models"
	"github.com/plumbus-labs/plumbus/pkg/prompt"
)

func newPresetsCmd() *cobra.Command {
	var showPrompt bool

	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List image presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := newTable()
			fmt.Fprintln(w, "PRESET\tSTYLE\tSIZE\tVARIANT\tCOMPONENTS")
			for _, name := range prompt.PresetNames() {
				req, _ := prompt.Preset(name)
				comps := lo.Map(req.Components, func(c models.Component, _ int) string { return string(c) })
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", name, req.Style, req.Size, req.Variant, strings.Join(comps, ","))
				if showPrompt {
					fmt.Fprintf(w, "\t%s\n", prompt.Build(req).Text)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&showPrompt, "prompt", false, "also print the rendered prompt")
	return cmd
}
