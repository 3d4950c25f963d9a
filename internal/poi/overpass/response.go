package overpass

import (
	"strconv"
	"strings"

	"github.com/at-ishikawa/pictomap/internal/poi"
)

// https://wiki.openstreetmap.org/wiki/Overpass_API/Output_Formats#JSON
type response struct {
	Version   float64   `json:"version"`
	Generator string    `json:"generator"`
	Elements  []element `json:"elements"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat,omitempty"`
	Lon    *float64          `json:"lon,omitempty"`
	Center *center           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

type center struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

// coordinates prefers the node's own position and falls back to the computed center.
func (e element) coordinates() (lat float64, lon float64, ok bool) {
	if e.Lat != nil && e.Lon != nil {
		return *e.Lat, *e.Lon, true
	}
	if e.Center != nil && e.Center.Lat != nil && e.Center.Lon != nil {
		return *e.Center.Lat, *e.Center.Lon, true
	}
	return 0, 0, false
}

func (e element) tag(keys ...string) string {
	for _, key := range keys {
		if value := e.Tags[key]; value != "" {
			return value
		}
	}
	return ""
}

func (e element) address() string {
	street := e.Tags["addr:street"]
	houseNumber := e.Tags["addr:housenumber"]
	postcode := e.Tags["addr:postcode"]
	city := e.Tags["addr:city"]

	address := strings.TrimSpace(street + " " + houseNumber + ", " + postcode + " " + city)
	if address == "," {
		return ""
	}
	return address
}

func (e element) metadata() map[string]any {
	tags := make(map[string]string, len(e.Tags))
	for k, v := range e.Tags {
		tags[k] = v
	}
	return map[string]any{
		"osm_type": e.Type,
		"osm_id":   e.ID,
		"tags":     tags,
	}
}

// ref is the OSM style "<type>/<id>" reference. Nodes, ways and relations are
// numbered independently, so the bare id is not unique within one fetch.
func (e element) ref() string {
	return e.Type + "/" + strconv.FormatInt(e.ID, 10)
}

type normalizer struct {
	deriveNames     bool
	filterOutNoName bool
}

func (n normalizer) normalize(elements []element) []poi.PointOfInterest {
	pois := make([]poi.PointOfInterest, 0, len(elements))
	for _, e := range elements {
		lat, lon, ok := e.coordinates()
		if !ok {
			continue
		}

		name := e.tag("name")
		if name == "" {
			name = poi.Unknown
		}
		poiType := e.tag("amenity", "shop")
		if poiType == "" {
			poiType = poi.Unknown
		}
		if n.deriveNames && name == poi.Unknown && poiType != poi.Unknown {
			name = poi.Nameify(poiType)
		}
		if n.filterOutNoName && name == poi.Unknown {
			continue
		}

		pois = append(pois, poi.PointOfInterest{
			ID:        e.ref(),
			Name:      name,
			Type:      poiType,
			Latitude:  lat,
			Longitude: lon,
			Address:   e.address(),
			Metadata:  e.metadata(),
		})
	}
	return pois
}
