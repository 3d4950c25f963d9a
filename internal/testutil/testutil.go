// Package testutil provides shared test helpers for config files and fake backends.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// ViennaElements is an Overpass response with two named places and one without tags.
const ViennaElements = `{
	"version": 0.6,
	"elements": [
		{"type": "node", "id": 1, "lat": 48.2052, "lon": 16.3691,
		 "tags": {"name": "Cafe Mozart", "amenity": "cafe",
		          "addr:street": "Albertinaplatz", "addr:housenumber": "2",
		          "addr:postcode": "1010", "addr:city": "Wien"}},
		{"type": "way", "id": 2, "center": {"lat": 48.2085, "lon": 16.3620},
		 "tags": {"amenity": "restaurant"}},
		{"type": "node", "id": 3, "lat": 48.207, "lon": 16.371}
	]
}`

// ViennaBBox covers ViennaElements in south,west,north,east order.
const ViennaBBox = "48.2,16.36,48.21,16.38"

// Backend is a fake HTTP backend that counts its requests.
type Backend struct {
	URL   string
	calls atomic.Int32
}

func (b *Backend) Calls() int {
	return int(b.calls.Load())
}

func newBackend(t *testing.T, handler http.HandlerFunc) *Backend {
	t.Helper()
	backend := &Backend{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backend.calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	backend.URL = server.URL
	return backend
}

// NewOverpassBackend answers every query with body.
func NewOverpassBackend(t *testing.T, body string) *Backend {
	t.Helper()
	return newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

// NewGlobalSymbolsBackend answers with one label built from the query term, or with
// no label for the terms in noMatch.
func NewGlobalSymbolsBackend(t *testing.T, noMatch ...string) *Backend {
	t.Helper()
	return newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		term := r.URL.Query().Get("query")
		for _, skipped := range noMatch {
			if term == skipped {
				_, _ = w.Write([]byte(`[]`))
				return
			}
		}
		_, _ = fmt.Fprintf(w, `[{"id": %d, "text": %q, "description": "A %s", "picto": {"image_url": "https://example.com/%s.svg"}}]`,
			len(term), term, term, term)
	})
}

// SetupTestConfig writes a config file pointing at the fake backends and a file
// cache inside tmpDir. Returns the path to the generated config file.
func SetupTestConfig(t *testing.T, tmpDir string, overpassURL string, globalSymbolsURL string) string {
	t.Helper()

	cacheDir := filepath.Join(tmpDir, "cache")
	require.NoError(t, os.MkdirAll(cacheDir, 0755))

	configContent := fmt.Sprintf(`map:
  width: 800
  height: 600
  debounce: 10ms
overpass:
  api_url: %s
  types: [amenity]
  retry_delay: 1ms
global_symbols:
  api_url: %s
cache:
  backend: file
  directory: %s
`, overpassURL, globalSymbolsURL, cacheDir)

	cfgPath := filepath.Join(tmpDir, "config.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(configContent), 0644))
	return cfgPath
}
