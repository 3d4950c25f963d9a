// Package sequence orders markers for keyboard and screen reader navigation.
package sequence

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/paulmach/orb"

	"github.com/at-ishikawa/pictomap/internal/marker"
)

const DefaultRowThreshold = 64.0

type Horizontal string

const (
	LeftToRight Horizontal = "lr"
	RightToLeft Horizontal = "rl"
)

func (h *Horizontal) String() string {
	return string(*h)
}

func (h *Horizontal) Set(v string) error {
	switch Horizontal(strings.ToLower(v)) {
	case LeftToRight, RightToLeft:
		*h = Horizontal(strings.ToLower(v))
		return nil
	}
	return fmt.Errorf("must be one of %s or %s", LeftToRight, RightToLeft)
}

func (h *Horizontal) Type() string {
	return "horizontal"
}

type Vertical string

const (
	TopToBottom Vertical = "tb"
	BottomToTop Vertical = "bt"
)

func (v *Vertical) String() string {
	return string(*v)
}

func (v *Vertical) Set(s string) error {
	switch Vertical(strings.ToLower(s)) {
	case TopToBottom, BottomToTop:
		*v = Vertical(strings.ToLower(s))
		return nil
	}
	return fmt.Errorf("must be one of %s or %s", TopToBottom, BottomToTop)
}

func (v *Vertical) Type() string {
	return "vertical"
}

// Sequencer produces the reading order of markers. The returned slice is new;
// the input is left untouched.
type Sequencer interface {
	Order(markers []*marker.Marker, projector marker.Projector) []*marker.Marker
}

// GridSequencer buckets markers into rows by their projected y and reads the rows
// like text.
type GridSequencer struct {
	Horizontal   Horizontal
	Vertical     Vertical
	RowThreshold float64
}

var _ Sequencer = GridSequencer{}

func NewGridSequencer() GridSequencer {
	return GridSequencer{
		Horizontal:   LeftToRight,
		Vertical:     TopToBottom,
		RowThreshold: DefaultRowThreshold,
	}
}

type positioned struct {
	marker *marker.Marker
	pixel  orb.Point
}

type row struct {
	y       float64
	members []positioned
}

// Order assigns each marker to the first row whose first member lies within
// RowThreshold pixels vertically, or opens a new row. Rows and the markers inside
// them are then stable-sorted by the configured directions. A marker near the
// threshold may land in a different row depending on input order.
func (s GridSequencer) Order(markers []*marker.Marker, projector marker.Projector) []*marker.Marker {
	threshold := s.RowThreshold
	if threshold <= 0 {
		threshold = DefaultRowThreshold
	}

	var rows []*row
	for _, m := range markers {
		p := positioned{marker: m, pixel: projector.Project(m.LatLng())}

		var target *row
		for _, r := range rows {
			if math.Abs(r.y-p.pixel.Y()) < threshold {
				target = r
				break
			}
		}
		if target == nil {
			target = &row{y: p.pixel.Y()}
			rows = append(rows, target)
		}
		target.members = append(target.members, p)
	}

	slices.SortStableFunc(rows, func(a, b *row) int {
		if s.Vertical == BottomToTop {
			return cmp.Compare(b.y, a.y)
		}
		return cmp.Compare(a.y, b.y)
	})

	ordered := make([]*marker.Marker, 0, len(markers))
	for _, r := range rows {
		slices.SortStableFunc(r.members, func(a, b positioned) int {
			if s.Horizontal == RightToLeft {
				return cmp.Compare(b.pixel.X(), a.pixel.X())
			}
			return cmp.Compare(a.pixel.X(), b.pixel.X())
		})
		for _, p := range r.members {
			ordered = append(ordered, p.marker)
		}
	}
	return ordered
}
