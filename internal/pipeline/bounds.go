package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

var emptyBound = orb.Bound{}

// ParseBBox parses "south,west,north,east" in decimal degrees, the order Overpass uses.
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox %q must be south,west,north,east", s)
	}

	values := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("strconv.ParseFloat(%q) > %w", part, err)
		}
		// ParseFloat accepts NaN and Inf, which every range check below lets through.
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return orb.Bound{}, fmt.Errorf("bbox %q: %q is not a finite number", s, part)
		}
		values[i] = v
	}

	south, west, north, east := values[0], values[1], values[2], values[3]
	switch {
	case south < -90 || north > 90:
		return orb.Bound{}, fmt.Errorf("bbox %q: latitude out of range", s)
	case west < -180 || east > 180:
		return orb.Bound{}, fmt.Errorf("bbox %q: longitude out of range", s)
	case south > north || west > east:
		return orb.Bound{}, fmt.Errorf("bbox %q: south/west must not exceed north/east", s)
	}
	return orb.Bound{
		Min: orb.Point{west, south},
		Max: orb.Point{east, north},
	}, nil
}

// ParseTypes splits a comma separated list. An empty string yields nil, which
// selects the source's default types.
func ParseTypes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var types []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}
