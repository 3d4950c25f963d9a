// Package poi defines points of interest and the sources that fetch them.
package poi

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/paulmach/orb"
)

//go:generate mockgen -source=poi.go -destination=../mocks/poi/mock_source.go -package=mock_poi

// Unknown is the name and type of a point of interest the backend did not describe.
const Unknown = "Unknown"

// PointOfInterest is a named, typed and geolocated place.
type PointOfInterest struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Type      string         `json:"type" yaml:"type"`
	Latitude  float64        `json:"latitude" yaml:"latitude"`
	Longitude float64        `json:"longitude" yaml:"longitude"`
	Address   string         `json:"address,omitempty" yaml:"address,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"-"`
}

// Point returns the location in orb's lon/lat order.
func (p PointOfInterest) Point() orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}

// QueryOptions filters a fetch.
//
// A nil Types means the source's default types, while a non-nil empty Types
// matches nothing. A zero Limit means the source's default limit.
type QueryOptions struct {
	Types    []string
	Limit    int
	Metadata map[string]any
}

// MatchesNothing reports whether the options explicitly exclude every type.
func (o QueryOptions) MatchesNothing() bool {
	return o.Types != nil && len(o.Types) == 0
}

// Source fetches the points of interest inside a bounding box.
type Source interface {
	Fetch(ctx context.Context, bounds orb.Bound, opts QueryOptions) ([]PointOfInterest, error)
}

// Nameify turns a type token like "fast_food" into "Fast Food".
func Nameify(s string) string {
	words := strings.Split(s, "_")
	for i, word := range words {
		r, size := utf8.DecodeRuneInString(word)
		if size == 0 {
			continue
		}
		words[i] = string(unicode.ToUpper(r)) + word[size:]
	}
	return strings.Join(words, " ")
}
