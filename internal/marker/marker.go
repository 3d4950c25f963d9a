// Package marker pairs a point of interest with its pictogram and screen anchor.
package marker

import (
	"sync"

	"github.com/paulmach/orb"

	"github.com/at-ishikawa/pictomap/internal/pictogram"
	"github.com/at-ishikawa/pictomap/internal/poi"
)

// Projector converts a lon/lat point to a pixel point on the current viewport.
type Projector interface {
	Project(lngLat orb.Point) orb.Point
}

// ProjectorFunc adapts a function to a Projector.
type ProjectorFunc func(lngLat orb.Point) orb.Point

func (f ProjectorFunc) Project(lngLat orb.Point) orb.Point {
	return f(lngLat)
}

// Marker is one POI shown with its pictogram. The POI and pictogram never change;
// the anchor is recomputed whenever the viewport does.
type Marker struct {
	POI       poi.PointOfInterest
	Pictogram pictogram.Pictogram

	mu     sync.RWMutex
	anchor orb.Point
}

func New(p poi.PointOfInterest, picture pictogram.Pictogram) *Marker {
	return &Marker{
		POI:       p,
		Pictogram: picture,
	}
}

// LatLng is the geographic position as {lon, lat}.
func (m *Marker) LatLng() orb.Point {
	return m.POI.Point()
}

// Anchor is the pixel position computed by the last Reproject.
func (m *Marker) Anchor() orb.Point {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.anchor
}

func (m *Marker) Reproject(projector Projector) orb.Point {
	anchor := projector.Project(m.LatLng())
	m.mu.Lock()
	m.anchor = anchor
	m.mu.Unlock()
	return anchor
}
