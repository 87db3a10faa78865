package sst

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

var (
	// ErrNoDataVariable is returned when a file holds coordinates only.
	ErrNoDataVariable = errors.New("dataset has no data variable")
	// ErrNoCoordinate is returned when a latitude or longitude axis is missing.
	ErrNoCoordinate = errors.New("dataset has no such coordinate")
	// ErrUnsupportedRank is returned for fields that are neither 2-D nor 3-D.
	ErrUnsupportedRank = errors.New("unsupported field rank")
)

// Dataset is an open SST file together with its resolved data variable and
// coordinate axis names.
type Dataset struct {
	nc      api.Group
	Path    string
	Field   *Field
	LatName string
	LonName string
}

// Open opens an SST file in NetCDF format. A missing file yields an error
// wrapping fs.ErrNotExist.
func Open(filePath string) (*Dataset, error) {
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("SST file %s does not exist: %w", filePath, fs.ErrNotExist)
		}
		return nil, err
	}
	nc, err := netcdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", filePath, err)
	}
	d, err := newDataset(nc, filePath)
	if err != nil {
		nc.Close()
		return nil, err
	}
	return d, nil
}

func newDataset(nc api.Group, filePath string) (*Dataset, error) {
	names := nc.ListVariables()
	dims := make(map[string][]string, len(names))
	getters := make(map[string]api.VarGetter, len(names))
	var extra []string
	for _, name := range names {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("could not inspect variable %s: %w", name, err)
		}
		getters[name] = vg
		dims[name] = vg.Dimensions()
		if attrs := vg.Attributes(); attrs != nil {
			extra = append(extra, strings.Fields(attrString(attrs, "coordinates"))...)
		}
	}
	coords := coordinateSet(names, dims, extra)

	latName, err := pickCoordinate(coords, "lat", "latitude")
	if err != nil {
		return nil, err
	}
	lonName, err := pickCoordinate(coords, "lon", "longitude")
	if err != nil {
		return nil, err
	}
	varName, err := firstDataVariable(names, coords)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}

	return &Dataset{
		nc:      nc,
		Path:    filePath,
		Field:   newField(varName, getters[varName]),
		LatName: latName,
		LonName: lonName,
	}, nil
}

// coordinateSet returns the names of coordinate variables: 1-D variables
// indexed by a dimension of their own name, plus anything another variable
// lists in its "coordinates" attribute.
func coordinateSet(names []string, dims map[string][]string, extra []string) map[string]bool {
	coords := make(map[string]bool)
	for _, name := range names {
		if d := dims[name]; len(d) == 1 && d[0] == name {
			coords[name] = true
		}
	}
	for _, name := range extra {
		if _, ok := dims[name]; ok {
			coords[name] = true
		}
	}
	return coords
}

// pickCoordinate prefers the short name when both forms are present.
func pickCoordinate(coords map[string]bool, short, long string) (string, error) {
	switch {
	case coords[short]:
		return short, nil
	case coords[long]:
		return long, nil
	}
	return "", fmt.Errorf("%w: neither %q nor %q", ErrNoCoordinate, short, long)
}

func firstDataVariable(names []string, coords map[string]bool) (string, error) {
	for _, name := range names {
		if !coords[name] {
			return name, nil
		}
	}
	return "", ErrNoDataVariable
}

// Axis reads a 1-D coordinate variable as float64 values.
func (d *Dataset) Axis(name string) ([]float64, error) {
	vg, err := d.nc.GetVarGetter(name)
	if err != nil {
		return nil, err
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("could not read axis %s: %w", name, err)
	}
	vals, shape, err := flatten(v)
	if err != nil {
		return nil, fmt.Errorf("could not decode axis %s: %w", name, err)
	}
	if len(shape) != 1 {
		return nil, fmt.Errorf("axis %s has shape %v, want 1-D", name, shape)
	}
	var attrs attributeGetter
	if a := vg.Attributes(); a != nil {
		attrs = a
	}
	packingFrom(attrs).decode(vals)
	return vals, nil
}

// Close closes the underlying file.
func (d *Dataset) Close() {
	d.nc.Close()
}

// Summary returns the summary information about the dataset suitable for
// logging.
func (d *Dataset) Summary() []any {
	return []any{
		"path", d.Path,
		"variable", d.Field.Name,
		"dims", d.Field.Dims,
		"units", d.Field.Units,
		"lat", d.LatName,
		"lon", d.LonName,
	}
}
