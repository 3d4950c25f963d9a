package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/pictomap/internal/marker"
	"github.com/at-ishikawa/pictomap/internal/testutil"
)

func TestNewMarkersCommand(t *testing.T) {
	cmd := newMarkersCommand()

	assert.Equal(t, "markers", cmd.Use)
	assert.NotNil(t, cmd.RunE)

	formatFlag := cmd.Flags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "table", formatFlag.DefValue)
	assert.Equal(t, "o", formatFlag.Shorthand)

	for _, name := range []string{"bbox", "types", "no-types", "limit", "width", "height"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}

func TestMarkersCommand_Table(t *testing.T) {
	env := setupTestEnv(t)

	stdout, err := execute(t, "", "markers", "--config", env.configPath, "--bbox", testutil.ViennaBBox)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Cafe Mozart")
	assert.Contains(t, stdout, "Cafe: Cafe Mozart")
	assert.Contains(t, stdout, "Restaurant: Restaurant")
	assert.Contains(t, stdout, "https://example.com/cafe.svg")
	assert.Equal(t, 1, env.overpass.Calls())
	assert.Equal(t, 2, env.globalSymbols.Calls())
}

func TestMarkersCommand_JSONInReadingOrder(t *testing.T) {
	env := setupTestEnv(t)

	stdout, err := execute(t, "", "markers", "--config", env.configPath, "--bbox", testutil.ViennaBBox, "-o", "json")
	require.NoError(t, err)

	var views []marker.View
	require.NoError(t, json.Unmarshal([]byte(stdout), &views))
	require.Len(t, views, 2)
	// The restaurant lies further north, so it starts the first row.
	assert.Equal(t, "way/2", views[0].ID)
	assert.Equal(t, "node/1", views[1].ID)
	assert.Equal(t, 0, views[0].Order)
	assert.Equal(t, 1, views[1].Order)
	assert.Less(t, views[0].Y, views[1].Y)
}

func TestMarkersCommand_NoMatchIsSkipped(t *testing.T) {
	env := setupTestEnv(t, "restaurant")

	stdout, err := execute(t, "", "markers", "--config", env.configPath, "--bbox", testutil.ViennaBBox, "-o", "json")
	require.NoError(t, err)

	var views []marker.View
	require.NoError(t, json.Unmarshal([]byte(stdout), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Cafe Mozart", views[0].Name)
}

func TestMarkersCommand_NoTypes(t *testing.T) {
	env := setupTestEnv(t)

	stdout, err := execute(t, "", "markers", "--config", env.configPath, "--bbox", testutil.ViennaBBox, "--no-types")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No markers")
	assert.Equal(t, 0, env.overpass.Calls())
	assert.Equal(t, 0, env.globalSymbols.Calls())
}

func TestMarkersCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing bbox",
			args:    []string{"markers"},
			wantErr: `required flag(s) "bbox" not set`,
		},
		{
			name:    "malformed bbox",
			args:    []string{"markers", "--bbox", "1,2,3"},
			wantErr: "pipeline.ParseBBox",
		},
		{
			name:    "unknown format",
			args:    []string{"markers", "--bbox", testutil.ViennaBBox, "-o", "csv"},
			wantErr: "invalid format: csv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnv(t)

			_, err := execute(t, "", append(tt.args, "--config", env.configPath)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, 0, env.overpass.Calls())
		})
	}
}
