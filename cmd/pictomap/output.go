package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/pictomap/internal/marker"
)

type Format string

func (f *Format) Set(val string) error {
	for _, format := range allFormats {
		if val == string(format) {
			*f = format
			return nil
		}
	}
	return fmt.Errorf("invalid format: %s", val)
}

func (f Format) String() string {
	return string(f)
}

func (f *Format) Type() string {
	return "format"
}

const (
	FormatTable   Format = "table"
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatGeoJSON Format = "geojson"
)

var (
	_          pflag.Value = (*Format)(nil)
	allFormats             = []Format{FormatTable, FormatYAML, FormatJSON, FormatGeoJSON}
)

func writeMarkers(w io.Writer, format Format, markers []*marker.Marker) error {
	switch format {
	case FormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(marker.Views(markers)); err != nil {
			return fmt.Errorf("yaml.Encode > %w", err)
		}
		return encoder.Close()

	case FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(marker.Views(markers)); err != nil {
			return fmt.Errorf("json.Encode > %w", err)
		}
		return nil

	case FormatGeoJSON:
		body, err := json.Marshal(marker.FeatureCollection(markers))
		if err != nil {
			return fmt.Errorf("json.Marshal > %w", err)
		}
		_, err = fmt.Fprintln(w, string(body))
		return err
	}

	return writeTable(w, markers)
}

func writeTable(w io.Writer, markers []*marker.Marker) error {
	if len(markers) == 0 {
		_, err := color.New(color.Faint).Fprintln(w, "No markers")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	bold := color.New(color.Bold)
	if _, err := bold.Fprintln(tw, "#\tNAME\tTYPE\tX\tY\tLABEL\tPICTOGRAM"); err != nil {
		return err
	}
	for _, view := range marker.Views(markers) {
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\t%.0f\t%.0f\t%s\t%s\n",
			view.Order+1,
			view.Name,
			view.Type,
			view.X,
			view.Y,
			view.Pictogram.AccessibleName(),
			view.Pictogram.URL,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}
