package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/at-ishikawa/pictomap/internal/config"
	mock_pictogram "github.com/at-ishikawa/pictomap/internal/mocks/pictogram"
	mock_poi "github.com/at-ishikawa/pictomap/internal/mocks/poi"
	"github.com/at-ishikawa/pictomap/internal/orchestrator"
	"github.com/at-ishikawa/pictomap/internal/pictogram"
	"github.com/at-ishikawa/pictomap/internal/poi"
	"github.com/at-ishikawa/pictomap/internal/sequence"
	"github.com/at-ishikawa/pictomap/internal/surface"
)

type testPipeline struct {
	source   poi.Source
	resolver pictogram.Resolver
	width    float64
	height   float64
}

func (p *testPipeline) NewSurface(width, height float64) *surface.Headless {
	p.width, p.height = width, height
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 600
	}
	return surface.NewHeadless(orb.Bound{}, width, height)
}

func (p *testPipeline) NewOrchestrator(s surface.Surface, query poi.QueryOptions, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(s, p.source, p.resolver, sequence.NewGridSequencer(), append([]orchestrator.Option{
		orchestrator.WithQueryOptions(query),
	}, opts...)...)
}

func newTestRouter(t *testing.T, source poi.Source, resolver pictogram.Resolver) (*gin.Engine, *testPipeline) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	p := &testPipeline{source: source, resolver: resolver}
	return NewRouter(config.ServerConfig{
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}, NewMarkersHandler(p)), p
}

func serve(router http.Handler, method string, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for key, value := range header {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func resolveAll(_ context.Context, p poi.PointOfInterest) (*pictogram.Pictogram, error) {
	return &pictogram.Pictogram{ID: "picto-" + p.ID, URL: "https://example.com/" + p.Type + ".svg", DisplayText: p.Name}, nil
}

func TestMarkersHandler_GetMarkers_GeoJSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mock_poi.NewMockSource(ctrl)
	resolver := mock_pictogram.NewMockResolver(ctrl)

	wantBounds := orb.Bound{Min: orb.Point{16.36, 48.2}, Max: orb.Point{16.38, 48.21}}
	source.EXPECT().Fetch(gomock.Any(), wantBounds, poi.QueryOptions{Types: []string{"amenity", "shop"}, Limit: 5}).
		Return([]poi.PointOfInterest{
			{ID: "south", Name: "South", Type: "cafe", Latitude: 48.201, Longitude: 16.37},
			{ID: "north", Name: "North", Type: "bakery", Latitude: 48.209, Longitude: 16.37},
		}, nil)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(resolveAll).Times(2)

	router, p := newTestRouter(t, source, resolver)
	rec := serve(router, http.MethodGet, "/api/v1/markers?bbox=48.2,16.36,48.21,16.38&types=amenity,shop&limit=5&width=400&height=300", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 400.0, p.width)
	assert.Equal(t, 300.0, p.height)

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	assert.Equal(t, "North", fc.Features[0].Properties["name"])
	assert.Equal(t, 0.0, fc.Features[0].Properties["order"])
	assert.Equal(t, "South", fc.Features[1].Properties["name"])
	assert.Equal(t, "https://example.com/cafe.svg", fc.Features[1].Properties["pictogram_url"])
}

func TestMarkersHandler_GetMarkers_JSON(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mock_poi.NewMockSource(ctrl)
	resolver := mock_pictogram.NewMockResolver(ctrl)

	source.EXPECT().Fetch(gomock.Any(), gomock.Any(), poi.QueryOptions{}).
		Return([]poi.PointOfInterest{{ID: "1", Name: "Cafe Mozart", Type: "cafe", Latitude: 48.205, Longitude: 16.37}}, nil)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(resolveAll)

	router, _ := newTestRouter(t, source, resolver)
	rec := serve(router, http.MethodGet, "/api/v1/markers?bbox=48.2,16.36,48.21,16.38&format=json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		CycleID string `json:"cycle_id"`
		Markers []struct {
			Order int    `json:"order"`
			Name  string `json:"name"`
			X     float64
		} `json:"markers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.CycleID)
	require.Len(t, body.Markers, 1)
	assert.Equal(t, "Cafe Mozart", body.Markers[0].Name)
	assert.InDelta(t, 400, body.Markers[0].X, 1e-6)
}

func TestMarkersHandler_GetMarkers_EmptyTypesMatchNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mock_poi.NewMockSource(ctrl)
	resolver := mock_pictogram.NewMockResolver(ctrl)
	source.EXPECT().Fetch(gomock.Any(), gomock.Any(), poi.QueryOptions{Types: []string{}}).Return([]poi.PointOfInterest{}, nil)

	router, _ := newTestRouter(t, source, resolver)
	rec := serve(router, http.MethodGet, "/api/v1/markers?bbox=48.2,16.36,48.21,16.38&types=", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
}

func TestMarkersHandler_GetMarkers_BadRequest(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{name: "missing bbox", target: "/api/v1/markers"},
		{name: "malformed bbox", target: "/api/v1/markers?bbox=1,2,3"},
		{name: "negative limit", target: "/api/v1/markers?bbox=48.2,16.36,48.21,16.38&limit=-1"},
		{name: "zero width", target: "/api/v1/markers?bbox=48.2,16.36,48.21,16.38&width=0"},
		{name: "unknown format", target: "/api/v1/markers?bbox=48.2,16.36,48.21,16.38&format=xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			router, _ := newTestRouter(t, mock_poi.NewMockSource(ctrl), mock_pictogram.NewMockResolver(ctrl))

			rec := serve(router, http.MethodGet, tt.target, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "invalid_parameter")
		})
	}
}

func TestMarkersHandler_GetMarkers_FetchError(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mock_poi.NewMockSource(ctrl)
	source.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("canceled"))

	router, _ := newTestRouter(t, source, mock_pictogram.NewMockResolver(ctrl))
	rec := serve(router, http.MethodGet, "/api/v1/markers?bbox=48.2,16.36,48.21,16.38", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}

func TestRouter_HealthAndCORS(t *testing.T) {
	ctrl := gomock.NewController(t)
	router, _ := newTestRouter(t, mock_poi.NewMockSource(ctrl), mock_pictogram.NewMockResolver(ctrl))

	rec := serve(router, http.MethodGet, "/health", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(router, http.MethodGet, "/health", map[string]string{"Origin": "http://evil.example.com"})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(router, http.MethodOptions, "/api/v1/markers", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}
