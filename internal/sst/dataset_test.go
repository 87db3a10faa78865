package sst

import (
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtm0/sstmap/internal/sst/ssttest"
)

func TestOpenMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.nc")
	_, err := Open(path)
	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), path)
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sst.nc")
	ssttest.Write(t, path, ssttest.Fixture{
		Variable: "analysed_sst",
		LatName:  "latitude",
		LonName:  "longitude",
		Lat:      ssttest.Axis(30, 0.5, 4),
		Lon:      ssttest.Axis(-5, 1, 6),
		Steps:    3,
		Value: func(step, row, col int) float32 {
			return float32(100*step + 10*row + col)
		},
		Attributes: map[string]any{"units": "celsius"},
	})

	ds, err := Open(path)
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, "analysed_sst", ds.Field.Name)
	assert.Equal(t, []string{"time", "latitude", "longitude"}, ds.Field.Dims)
	assert.Equal(t, "celsius", ds.Field.Units)
	assert.Equal(t, "latitude", ds.LatName)
	assert.Equal(t, "longitude", ds.LonName)

	lat, err := ds.Axis(ds.LatName)
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 30.5, 31, 31.5}, lat)

	g, s, err := Reduce(ds.Field)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Rows)
	assert.Equal(t, 6, g.Cols)
	// Only the first time step: values 0..35.
	assert.Equal(t, 0.0, s.Min)
	assert.Equal(t, 35.0, s.Max)
}

func TestOpen2D(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sst.nc")
	ssttest.Write(t, path, ssttest.Fixture{
		Variable: "sst",
		LatName:  "lat",
		LonName:  "lon",
		Lat:      ssttest.Axis(40, 1, 3),
		Lon:      ssttest.Axis(0, 1, 3),
		Value:    func(_, _, _ int) float32 { return 18.5 },
	})

	ds, err := Open(path)
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, 2, ds.Field.Rank())
	_, s, err := Reduce(ds.Field)
	require.NoError(t, err)
	assert.Equal(t, Stats{Mean: 18.5, Min: 18.5, Max: 18.5, Median: 18.5}, s)
}

func TestPickCoordinate(t *testing.T) {
	tests := []struct {
		name   string
		coords map[string]bool
		want   string
		err    error
	}{
		{"both forms", map[string]bool{"lat": true, "latitude": true}, "lat", nil},
		{"long form only", map[string]bool{"latitude": true}, "latitude", nil},
		{"short form only", map[string]bool{"lat": true}, "lat", nil},
		{"none", map[string]bool{"time": true}, "", ErrNoCoordinate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickCoordinate(tt.coords, "lat", "latitude")
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoordinateSetAndDataVariable(t *testing.T) {
	names := []string{"time", "lat", "lon", "lat_bnds", "analysed_sst", "analysis_error", "nav_lat"}
	dims := map[string][]string{
		"time":           {"time"},
		"lat":            {"lat"},
		"lon":            {"lon"},
		"lat_bnds":       {"lat", "nv"},
		"analysed_sst":   {"time", "lat", "lon"},
		"analysis_error": {"time", "lat", "lon"},
		"nav_lat":        {"y", "x"},
	}
	coords := coordinateSet(names, dims, []string{"nav_lat", "unknown"})
	assert.Equal(t, map[string]bool{"time": true, "lat": true, "lon": true, "nav_lat": true}, coords)

	name, err := firstDataVariable(names, coords)
	require.NoError(t, err)
	assert.Equal(t, "lat_bnds", name)

	name, err = firstDataVariable(names[4:], coords)
	require.NoError(t, err)
	assert.Equal(t, "analysed_sst", name)

	_, err = firstDataVariable([]string{"time", "lat", "lon"}, coords)
	assert.ErrorIs(t, err, ErrNoDataVariable)
}
