package surface

import (
	"slices"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/at-ishikawa/pictomap/internal/marker"
)

// Headless is an in-memory Surface with a Web Mercator viewport of a fixed pixel size.
// It backs the CLI, the HTTP API and tests.
type Headless struct {
	mu        sync.RWMutex
	bounds    orb.Bound
	width     float64
	height    float64
	markers   []*marker.Marker
	listeners map[int]func()
	nextID    int
}

var _ Surface = (*Headless)(nil)

func NewHeadless(bounds orb.Bound, width, height float64) *Headless {
	return &Headless{
		bounds:    bounds,
		width:     width,
		height:    height,
		listeners: make(map[int]func()),
	}
}

func (h *Headless) Bounds() orb.Bound {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bounds
}

func (h *Headless) Size() (width, height float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.width, h.height
}

// Project maps lon/lat to pixels with the origin at the top left corner.
func (h *Headless) Project(lngLat orb.Point) orb.Point {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.project(lngLat)
}

func (h *Headless) project(lngLat orb.Point) orb.Point {
	topLeft := project.WGS84.ToMercator(orb.Point{h.bounds.Left(), h.bounds.Top()})
	bottomRight := project.WGS84.ToMercator(orb.Point{h.bounds.Right(), h.bounds.Bottom()})
	p := project.WGS84.ToMercator(lngLat)

	var x, y float64
	if spanX := bottomRight.X() - topLeft.X(); spanX != 0 {
		x = (p.X() - topLeft.X()) / spanX * h.width
	}
	if spanY := topLeft.Y() - bottomRight.Y(); spanY != 0 {
		y = (topLeft.Y() - p.Y()) / spanY * h.height
	}
	return orb.Point{x, y}
}

// SetBounds moves the viewport, re-projects the attached markers and notifies
// the listeners.
func (h *Headless) SetBounds(bounds orb.Bound) {
	h.mu.Lock()
	h.bounds = bounds
	h.reprojectLocked()
	listeners := h.listenersLocked()
	h.mu.Unlock()

	for _, listener := range listeners {
		listener()
	}
}

// Resize changes the pixel size without notifying listeners.
func (h *Headless) Resize(width, height float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.width, h.height = width, height
	h.reprojectLocked()
}

func (h *Headless) OnViewportChange(listener func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.listeners, id)
		})
	}
}

func (h *Headless) Attach(m *marker.Marker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if slices.Contains(h.markers, m) {
		return
	}
	m.Reproject(marker.ProjectorFunc(h.project))
	h.markers = append(h.markers, m)
}

func (h *Headless) Detach(m *marker.Marker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.markers = slices.DeleteFunc(h.markers, func(attached *marker.Marker) bool {
		return attached == m
	})
}

// Markers returns the attached markers in attachment order.
func (h *Headless) Markers() []*marker.Marker {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.markers)
}

func (h *Headless) reprojectLocked() {
	projector := marker.ProjectorFunc(h.project)
	for _, m := range h.markers {
		m.Reproject(projector)
	}
}

func (h *Headless) listenersLocked() []func() {
	ids := make([]int, 0, len(h.listeners))
	for id := range h.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	listeners := make([]func(), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, h.listeners[id])
	}
	return listeners
}
