package overpass

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// bbox formats bounds in Overpass order: south,west,north,east.
func bbox(bounds orb.Bound) string {
	return strings.Join([]string{
		formatCoordinate(bounds.Bottom()),
		formatCoordinate(bounds.Left()),
		formatCoordinate(bounds.Top()),
		formatCoordinate(bounds.Right()),
	}, ",")
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// buildQuery unions one statement per type and element kind and asks for centers so
// that ways and relations come back with a coordinate. Types are quoted since they
// may come straight from a request.
func buildQuery(bounds orb.Bound, types []string, osmTypes []string, limit int, timeoutSeconds int) string {
	box := bbox(bounds)

	var statements strings.Builder
	for _, t := range types {
		for _, osmType := range osmTypes {
			fmt.Fprintf(&statements, `%s[%s](%s);`, osmType, strconv.Quote(t), box)
		}
	}
	return fmt.Sprintf("[out:json][timeout:%d];(%s);out center %d;", timeoutSeconds, statements.String(), limit)
}
