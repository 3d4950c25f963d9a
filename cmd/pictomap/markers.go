package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/at-ishikawa/pictomap/internal/pipeline"
	"github.com/at-ishikawa/pictomap/internal/poi"
)

type queryFlags struct {
	types  string
	none   bool
	limit  int
	width  float64
	height float64
}

func (f *queryFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.types, "types", "", "comma separated OSM keys, e.g. amenity,shop (default: configured types)")
	flags.BoolVar(&f.none, "no-types", false, "query no type at all, which yields no markers")
	flags.IntVar(&f.limit, "limit", 0, "maximum number of points of interest (default: configured limit)")
	flags.Float64Var(&f.width, "width", 0, "viewport width in pixels (default: map.width)")
	flags.Float64Var(&f.height, "height", 0, "viewport height in pixels (default: map.height)")
}

func (f *queryFlags) queryOptions() poi.QueryOptions {
	query := poi.QueryOptions{
		Types: pipeline.ParseTypes(f.types),
		Limit: f.limit,
	}
	if f.none {
		query.Types = []string{}
	}
	return query
}

func newMarkersCommand() *cobra.Command {
	var bbox string
	var query queryFlags
	format := FormatTable

	command := &cobra.Command{
		Use:   "markers",
		Short: "Fetch, resolve and order the markers within a bounding box",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bounds, err := pipeline.ParseBBox(bbox)
			if err != nil {
				return fmt.Errorf("pipeline.ParseBBox > %w", err)
			}

			ctx := cmd.Context()
			p, err := newPipeline(ctx)
			if err != nil {
				return err
			}
			defer func() {
				_ = p.Close()
			}()

			headless := p.NewSurface(query.width, query.height)
			headless.SetBounds(bounds)
			result, err := p.NewOrchestrator(headless, query.queryOptions()).Update(ctx)
			if err != nil {
				return fmt.Errorf("orchestrator.Update > %w", err)
			}
			return writeMarkers(cmd.OutOrStdout(), format, result.Markers)
		},
	}
	command.Flags().StringVar(&bbox, "bbox", "", "bounding box as south,west,north,east")
	_ = command.MarkFlagRequired("bbox")
	command.Flags().VarP(&format, "format", "o", fmt.Sprintf("output format. Possible values are %v", allFormats))
	query.register(command)
	return command
}
