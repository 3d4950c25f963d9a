// Package pictogram defines pictograms and the resolvers that find one for a point of interest.
package pictogram

import (
	"context"

	"github.com/at-ishikawa/pictomap/internal/poi"
)

//go:generate mockgen -source=pictogram.go -destination=../mocks/pictogram/mock_resolver.go -package=mock_pictogram

// Pictogram is a symbol image with the text shown under it and the text read to
// assistive technologies.
type Pictogram struct {
	ID          string         `json:"id" yaml:"id"`
	URL         string         `json:"url" yaml:"url"`
	DisplayText string         `json:"display_text" yaml:"display_text"`
	Label       string         `json:"label,omitempty" yaml:"label,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty" yaml:"-"`
}

// AccessibleName is the label, or the display text when no label was set.
func (p Pictogram) AccessibleName() string {
	if p.Label != "" {
		return p.Label
	}
	return p.DisplayText
}

// Resolver finds the pictogram for a point of interest.
// A nil pictogram with a nil error means the backend has no match.
type Resolver interface {
	Resolve(ctx context.Context, p poi.PointOfInterest) (*Pictogram, error)
}

// TextOptions controls whether the type is spelled out in front of the name.
type TextOptions struct {
	IncludeTypeInDisplayText bool
	IncludeTypeInAriaLabel   bool
}

// Texts derives the visible caption and the accessible label for p.
func (o TextOptions) Texts(p poi.PointOfInterest) (displayText string, label string) {
	withType := poi.Nameify(p.Type) + ": " + p.Name

	displayText = p.Name
	if o.IncludeTypeInDisplayText {
		displayText = withType
	}
	label = p.Name
	if o.IncludeTypeInAriaLabel {
		label = withType
	}
	return displayText, label
}
