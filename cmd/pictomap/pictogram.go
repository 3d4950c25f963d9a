package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/pictomap/internal/pictogram"
	"github.com/at-ishikawa/pictomap/internal/poi"
)

func newPictogramCommand() *cobra.Command {
	rootCommand := cobra.Command{
		Use:   "pictogram",
		Short: "Pictogram lookups",
	}

	var name string
	var asYAML bool
	lookupCommand := &cobra.Command{
		Use:   "lookup <type>",
		Short: "Resolve the pictogram for a point of interest type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = p.Close()
			}()

			place := poi.PointOfInterest{
				Name: name,
				Type: args[0],
			}
			if place.Name == "" {
				place.Name = poi.Nameify(place.Type)
			}

			picture, err := p.Resolver.Resolve(ctx, place)
			if err != nil {
				return fmt.Errorf("resolver.Resolve > %w", err)
			}
			if asYAML {
				return yaml.NewEncoder(cmd.OutOrStdout()).Encode(picture)
			}
			return showPictogram(cmd.OutOrStdout(), place, picture)
		},
	}
	lookupCommand.Flags().StringVar(&name, "name", "", "place name used for the display text and label")
	lookupCommand.Flags().BoolVar(&asYAML, "yaml", false, "print the pictogram as YAML")

	rootCommand.AddCommand(lookupCommand)
	return &rootCommand
}

func showPictogram(w io.Writer, place poi.PointOfInterest, picture *pictogram.Pictogram) error {
	if picture == nil {
		_, err := color.New(color.FgYellow).Fprintf(w, "No pictogram found for %s\n", place.Type)
		return err
	}

	bold := color.New(color.Bold)
	rows := [][2]string{
		{"ID", picture.ID},
		{"Display text", picture.DisplayText},
		{"Label", picture.AccessibleName()},
		{"Description", picture.Description},
		{"URL", picture.URL},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		if _, err := bold.Fprintf(w, "%-13s", row[0]); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, row[1]); err != nil {
			return err
		}
	}
	return nil
}
