package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/plumbus-labs/plumbus/pkg/models"
	"github.com/plumbus-labs/plumbus/pkg/prompt"
)

func newGenerateCmd(configPath *string) *cobra.Command {
	var (
		preset     string
		style      string
		components []string
		width      int
		height     int
		variant    string
		output     string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one plumbus image",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.GenerationRequest{
				Style:      models.Style(style),
				Components: lo.Map(components, func(c string, _ int) models.Component { return models.Component(c) }),
				Size:       models.Size{Width: width, Height: height},
				Variant:    models.Variant(variant),
			}
			if preset != "" {
				p, ok := prompt.Preset(preset)
				if !ok {
					return fmt.Errorf("unknown preset %q (available: %s)", preset, strings.Join(prompt.PresetNames(), ", "))
				}
				req = p
			}

			ctx := context.Background()
			a, err := newApp(ctx, *configPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.gen.Generate(ctx, req)
			if err != nil {
				return err
			}

			if output != "" {
				if err := writeImage(output, res.ImageURL); err != nil {
					return err
				}
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			state := success("generated")
			if res.Cached {
				state = warning("cached")
			}
			fmt.Printf("%s by %s at %s\n", state, heading(res.ServiceName), res.GeneratedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("Prompt: %s\n", res.Prompt)
			if output != "" {
				fmt.Printf("Saved:  %s\n", output)
			} else {
				fmt.Printf("Image:  %s\n", res.ImageURL)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&preset, "preset", "p", "", "named preset (overrides the other options)")
	cmd.Flags().StringVar(&style, "style", "", "style: realistic, cartoon, technical, artistic, simple")
	cmd.Flags().StringSliceVar(&components, "component", nil, "component to show (repeatable)")
	cmd.Flags().IntVar(&width, "width", 0, "width in pixels (default 512)")
	cmd.Flags().IntVar(&height, "height", 0, "height in pixels (default 512)")
	cmd.Flags().StringVar(&variant, "variant", "", "variant: standard, deluxe, mini, vintage")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the decoded image to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}

// writeImage decodes a base64 data URI and writes the bytes to path.
func writeImage(path, url string) error {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return errors.New("image is not a data URI")
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return errors.New("image is not base64 encoded")
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}
