package leafmap

import (
	"fmt"
	"image/color"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/rtm0/sstmap/internal/sst"
)

// heatGrid exposes a Grid to plotter.HeatMap using cell indices as
// coordinates. Row 0 is drawn at the bottom.
type heatGrid struct {
	g *sst.Grid
}

func (h heatGrid) Dims() (c, r int)   { return h.g.Cols, h.g.Rows }
func (h heatGrid) Z(c, r int) float64 { return h.g.At(r, c) }
func (h heatGrid) X(c int) float64    { return float64(c) }
func (h heatGrid) Y(r int) float64    { return float64(r) }

// rasterize draws g as a flat image without axes into a temporary PNG file
// and returns its path. The caller removes the file.
func rasterize(g *sst.Grid, size vg.Length, dpi int) (string, error) {
	cmap := moreland.SmoothBlueRed()
	cmap.SetMin(0)
	cmap.SetMax(1)

	hm := plotter.NewHeatMap(heatGrid{g}, cmap.Palette(255))
	hm.Min, hm.Max = valueRange(g)
	hm.NaN = color.Transparent

	p := plot.New()
	p.HideAxes()
	p.BackgroundColor = color.Transparent
	p.X.Padding = 0
	p.Y.Padding = 0
	p.Add(hm)

	c := vgimg.NewWith(vgimg.UseWH(size, size), vgimg.UseDPI(dpi))
	p.Draw(draw.New(c))

	f, err := os.CreateTemp("", "sstmap-*.png")
	if err != nil {
		return "", fmt.Errorf("could not create overlay image: %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("could not write overlay image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// valueRange returns the colour scale bounds. The heat map needs a non-empty
// range, so constant and all-missing grids get a unit-wide one.
func valueRange(g *sst.Grid) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	switch {
	case lo > hi:
		return 0, 1
	case lo == hi:
		return lo - 0.5, hi + 0.5
	}
	return lo, hi
}
