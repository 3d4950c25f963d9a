package marker

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/at-ishikawa/pictomap/internal/pictogram"
)

// View is the serializable form of a marker at its position in the reading order.
type View struct {
	Order     int                 `json:"order" yaml:"order"`
	ID        string              `json:"id" yaml:"id"`
	Name      string              `json:"name" yaml:"name"`
	Type      string              `json:"type" yaml:"type"`
	Address   string              `json:"address,omitempty" yaml:"address,omitempty"`
	Latitude  float64             `json:"latitude" yaml:"latitude"`
	Longitude float64             `json:"longitude" yaml:"longitude"`
	X         float64             `json:"x" yaml:"x"`
	Y         float64             `json:"y" yaml:"y"`
	Pictogram pictogram.Pictogram `json:"pictogram" yaml:"pictogram"`
}

func Views(markers []*Marker) []View {
	views := make([]View, 0, len(markers))
	for i, m := range markers {
		anchor := m.Anchor()
		views = append(views, View{
			Order:     i,
			ID:        m.POI.ID,
			Name:      m.POI.Name,
			Type:      m.POI.Type,
			Address:   m.POI.Address,
			Latitude:  m.POI.Latitude,
			Longitude: m.POI.Longitude,
			X:         anchor.X(),
			Y:         anchor.Y(),
			Pictogram: m.Pictogram,
		})
	}
	return views
}

// FeatureCollection renders markers as GeoJSON points, keeping their order in the
// "order" property.
func FeatureCollection(markers []*Marker) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, m := range markers {
		f := geojson.NewFeature(orb.Point{m.POI.Longitude, m.POI.Latitude})
		f.ID = m.POI.ID
		f.Properties["order"] = i
		f.Properties["name"] = m.POI.Name
		f.Properties["type"] = m.POI.Type
		if m.POI.Address != "" {
			f.Properties["address"] = m.POI.Address
		}
		f.Properties["pictogram_id"] = m.Pictogram.ID
		f.Properties["pictogram_url"] = m.Pictogram.URL
		f.Properties["display_text"] = m.Pictogram.DisplayText
		f.Properties["label"] = m.Pictogram.AccessibleName()
		fc.Append(f)
	}
	return fc
}
