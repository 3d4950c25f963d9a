// Package server serves markers over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/at-ishikawa/pictomap/internal/marker"
	"github.com/at-ishikawa/pictomap/internal/orchestrator"
	"github.com/at-ishikawa/pictomap/internal/pipeline"
	"github.com/at-ishikawa/pictomap/internal/poi"
	"github.com/at-ishikawa/pictomap/internal/surface"
)

// Pipeline builds one surface and orchestrator per request.
type Pipeline interface {
	NewSurface(width, height float64) *surface.Headless
	NewOrchestrator(s surface.Surface, query poi.QueryOptions, opts ...orchestrator.Option) *orchestrator.Orchestrator
}

type MarkersHandler struct {
	pipeline Pipeline
}

func NewMarkersHandler(p Pipeline) *MarkersHandler {
	return &MarkersHandler{
		pipeline: p,
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_parameter",
		"message": message,
	})
}

// GetMarkers GET /api/v1/markers?bbox=south,west,north,east
//
// Optional parameters are types (comma separated, an empty value matches nothing),
// limit, width, height and format (geojson or json).
func (h *MarkersHandler) GetMarkers(c *gin.Context) {
	rawBBox := c.Query("bbox")
	if rawBBox == "" {
		badRequest(c, "bbox parameter is required (format: south,west,north,east)")
		return
	}
	bounds, err := pipeline.ParseBBox(rawBBox)
	if err != nil {
		badRequest(c, err.Error())
		return
	}

	var query poi.QueryOptions
	if rawTypes, ok := c.GetQuery("types"); ok {
		query.Types = pipeline.ParseTypes(rawTypes)
		if query.Types == nil {
			query.Types = []string{}
		}
	}
	if rawLimit := c.Query("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		query.Limit = limit
	}

	var size [2]float64
	for i, name := range []string{"width", "height"} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			badRequest(c, name+" must be a positive number")
			return
		}
		size[i] = v
	}

	format := c.DefaultQuery("format", "geojson")
	if format != "geojson" && format != "json" {
		badRequest(c, "format must be geojson or json")
		return
	}

	headless := h.pipeline.NewSurface(size[0], size[1])
	headless.SetBounds(bounds)
	result, err := h.pipeline.NewOrchestrator(headless, query).Update(c.Request.Context())
	if err != nil {
		slog.Default().Error("Failed to update markers", "bbox", rawBBox, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load markers",
		})
		return
	}

	if format == "json" {
		c.JSON(http.StatusOK, gin.H{
			"cycle_id": result.CycleID,
			"markers":  marker.Views(result.Markers),
		})
		return
	}

	body, err := json.Marshal(marker.FeatureCollection(result.Markers))
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", body)
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
