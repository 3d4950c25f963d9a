// Package surface describes the map the markers are placed on.
package surface

import (
	"github.com/paulmach/orb"

	"github.com/at-ishikawa/pictomap/internal/marker"
)

// Surface is a map viewport. Attached markers are re-projected whenever the
// viewport changes.
type Surface interface {
	marker.Projector
	Bounds() orb.Bound
	// OnViewportChange registers listener and returns a function removing it.
	OnViewportChange(listener func()) (unsubscribe func())
	Attach(m *marker.Marker)
	Detach(m *marker.Marker)
}
