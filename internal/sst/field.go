package sst

import (
	"fmt"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
)

// variable is the subset of api.VarGetter a Field reads through.
type variable interface {
	Values() (interface{}, error)
	GetSlice(begin, end int64) (interface{}, error)
	Dimensions() []string
}

// Field is the data variable of an SST dataset. Its dimensions are either
// (lat, lon) or (time, lat, lon).
type Field struct {
	Name  string
	Dims  []string
	Units string

	v    variable
	pack packing
}

func newField(name string, vg api.VarGetter) *Field {
	var attrs attributeGetter
	if a := vg.Attributes(); a != nil {
		attrs = a
	}
	return &Field{
		Name:  name,
		Dims:  vg.Dimensions(),
		Units: attrString(attrs, "units"),
		v:     vg,
		pack:  packingFrom(attrs),
	}
}

// Rank returns the number of dimensions of the field.
func (f *Field) Rank() int {
	return len(f.Dims)
}

// Slice reads the 2-D slice the statistics are computed on. For a 3-D field
// only index 0 of the leading axis is read, whatever its length.
func (f *Field) Slice() (*Grid, error) {
	var (
		raw any
		err error
	)
	switch f.Rank() {
	case 2:
		raw, err = f.v.Values()
	case 3:
		raw, err = f.v.GetSlice(0, 1)
	default:
		return nil, fmt.Errorf("%w: %s has %d dimensions %v", ErrUnsupportedRank, f.Name, f.Rank(), f.Dims)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", f.Name, err)
	}

	vals, shape, err := flatten(raw)
	if err != nil {
		return nil, fmt.Errorf("could not decode %s: %w", f.Name, err)
	}
	if f.Rank() == 3 && len(shape) == 3 {
		shape = shape[1:]
	}
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: %s sliced to shape %v", ErrUnsupportedRank, f.Name, shape)
	}
	f.pack.decode(vals)
	return &Grid{Rows: shape[0], Cols: shape[1], Values: vals}, nil
}
