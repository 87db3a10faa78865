// Package ssttest writes small synthetic SST files for tests.
package ssttest

import (
	"sort"
	"testing"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
)

// Fixture describes a synthetic dataset with one data variable.
type Fixture struct {
	Variable string
	LatName  string
	LonName  string
	Lat      []float32
	Lon      []float32
	// Steps is the length of the leading time axis. Zero writes a 2-D
	// (lat, lon) variable.
	Steps int
	// Value returns the stored value of the data variable.
	Value func(step, row, col int) float32
	// Attributes are attached to the data variable.
	Attributes map[string]any
}

// Write creates a NetCDF classic file at path.
func Write(tb testing.TB, path string, fx Fixture) {
	tb.Helper()

	cw, err := cdf.OpenWriter(path)
	if err != nil {
		tb.Fatalf("open writer: %v", err)
	}
	if fx.Steps > 0 {
		times := make([]float64, fx.Steps)
		for i := range times {
			times[i] = float64(i) * 86400
		}
		addVar(tb, cw, "time", times, []string{"time"}, nil)
	}
	addVar(tb, cw, fx.LatName, fx.Lat, []string{fx.LatName}, nil)
	addVar(tb, cw, fx.LonName, fx.Lon, []string{fx.LonName}, nil)

	plane := func(step int) [][]float32 {
		rows := make([][]float32, len(fx.Lat))
		for r := range rows {
			rows[r] = make([]float32, len(fx.Lon))
			for c := range rows[r] {
				rows[r][c] = fx.Value(step, r, c)
			}
		}
		return rows
	}
	if fx.Steps > 0 {
		vals := make([][][]float32, fx.Steps)
		for s := range vals {
			vals[s] = plane(s)
		}
		addVar(tb, cw, fx.Variable, vals, []string{"time", fx.LatName, fx.LonName}, fx.Attributes)
	} else {
		addVar(tb, cw, fx.Variable, plane(0), []string{fx.LatName, fx.LonName}, fx.Attributes)
	}

	if err := cw.Close(); err != nil {
		tb.Fatalf("close writer: %v", err)
	}
}

// Axis returns n evenly spaced values starting at start.
func Axis(start, step float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = start + step*float32(i)
	}
	return out
}

func addVar(tb testing.TB, cw *cdf.CDFWriter, name string, vals any, dims []string, attrs map[string]any) {
	tb.Helper()

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m, err := util.NewOrderedMap(keys, attrs)
	if err != nil {
		tb.Fatalf("attributes of %s: %v", name, err)
	}
	if err := cw.AddVar(name, api.Variable{Values: vals, Dimensions: dims, Attributes: m}); err != nil {
		tb.Fatalf("add variable %s: %v", name, err)
	}
}
