// Package leafmap renders an SST slice as a semi-transparent overlay on a
// Leaflet basemap and writes the result as a single HTML document.
package leafmap

import (
	_ "embed"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/vg"

	"github.com/rtm0/sstmap/internal/sst"
)

var (
	// ErrAxisMismatch is returned when an axis length differs from the grid.
	ErrAxisMismatch = errors.New("coordinate axis does not match grid")
	// ErrInvalidCoordinates is returned when an axis holds non-finite values.
	ErrInvalidCoordinates = errors.New("coordinate axis has non-finite values")
)

//go:embed map.html.tmpl
var mapHTML string

var mapTmpl = template.Must(template.New("map").Parse(mapHTML))

// Options controls how the map is drawn.
type Options struct {
	Title       string
	Zoom        int
	Opacity     float64
	MaxSamples  int
	Tiles       string
	Attribution string
	ImageSize   vg.Length
	DPI         int
}

// DefaultOptions returns the options used for the SST map.
func DefaultOptions() Options {
	return Options{
		Title:       "SST",
		Zoom:        5,
		Opacity:     0.6,
		MaxSamples:  100,
		Tiles:       "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
		Attribution: `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`,
		ImageSize:   3 * vg.Inch,
		DPI:         100,
	}
}

type document struct {
	Title       string
	Center      [2]float64
	Zoom        int
	Tiles       string
	Attribution string
	Popup       string
	Image       string
	Bounds      [2][2]float64
	Opacity     float64
}

// Render draws g over a basemap centred on the mean of lat and lon, with a
// marker showing stats, and writes the HTML document to outPath.
func Render(g *sst.Grid, stats sst.Stats, lat, lon []float64, outPath string, opts Options) (string, error) {
	if len(lat) != g.Rows {
		return "", fmt.Errorf("%w: %d latitudes for %d rows", ErrAxisMismatch, len(lat), g.Rows)
	}
	if len(lon) != g.Cols {
		return "", fmt.Errorf("%w: %d longitudes for %d columns", ErrAxisMismatch, len(lon), g.Cols)
	}
	if g.Rows == 0 || g.Cols == 0 {
		return "", fmt.Errorf("%w: empty %dx%d grid", ErrAxisMismatch, g.Rows, g.Cols)
	}
	if err := checkAxis("latitude", lat); err != nil {
		return "", err
	}
	if err := checkAxis("longitude", lon); err != nil {
		return "", err
	}

	rowStep, colStep := Stride(g.Rows, opts.MaxSamples), Stride(g.Cols, opts.MaxSamples)
	small := Subsample(g, rowStep, colStep)
	latSmall, lonSmall := strideAxis(lat, rowStep), strideAxis(lon, colStep)

	png, err := rasterize(small, opts.ImageSize, opts.DPI)
	if err != nil {
		return "", err
	}
	defer os.Remove(png)
	img, err := os.ReadFile(png)
	if err != nil {
		return "", err
	}

	doc := document{
		Title:       opts.Title,
		Center:      [2]float64{stat.Mean(lat, nil), stat.Mean(lon, nil)},
		Zoom:        opts.Zoom,
		Tiles:       opts.Tiles,
		Attribution: opts.Attribution,
		Popup:       Popup(stats),
		Image:       "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
		Bounds: [2][2]float64{
			{floats.Min(latSmall), floats.Min(lonSmall)},
			{floats.Max(latSmall), floats.Max(lonSmall)},
		},
		Opacity: opts.Opacity,
	}

	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	if err := mapTmpl.Execute(f, doc); err != nil {
		f.Close()
		return "", fmt.Errorf("could not render map: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return outPath, nil
}

func checkAxis(name string, xs []float64) error {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: %s", ErrInvalidCoordinates, name)
		}
	}
	return nil
}
