package sst

import (
	"fmt"
	"reflect"
)

// flatten converts the nested slices returned by the NetCDF reader into a
// flat row-major []float64 together with the length of every dimension.
func flatten(v any) ([]float64, []int, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, nil, fmt.Errorf("no values")
	}
	if rv.Kind() != reflect.Slice {
		f, ok := toFloat(rv)
		if !ok {
			return nil, nil, fmt.Errorf("unsupported value type %s", rv.Type())
		}
		return []float64{f}, nil, nil
	}

	rank := 0
	for typ := rv.Type(); typ.Kind() == reflect.Slice; typ = typ.Elem() {
		rank++
	}
	shape := make([]int, rank)
	n := 1
	for cur, i := rv, 0; i < rank; i++ {
		shape[i] = cur.Len()
		n *= shape[i]
		if cur.Len() == 0 {
			break
		}
		cur = cur.Index(0)
	}

	out := make([]float64, 0, n)
	var walk func(reflect.Value, int) error
	walk = func(v reflect.Value, depth int) error {
		if depth < rank {
			if v.Len() != shape[depth] {
				return fmt.Errorf("ragged array at depth %d: %d != %d", depth, v.Len(), shape[depth])
			}
			for i := 0; i < v.Len(); i++ {
				if err := walk(v.Index(i), depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("unsupported element type %s", v.Type())
		}
		out = append(out, f)
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func toFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	}
	return 0, false
}

// attributeGetter is the lookup half of api.AttributeMap.
type attributeGetter interface {
	Get(key string) (val interface{}, has bool)
}

// packing holds the CF conventions attributes that describe how stored
// values map to physical ones.
type packing struct {
	fill   []float64
	scale  float64
	offset float64
}

func packingFrom(attrs attributeGetter) packing {
	p := packing{scale: 1}
	if attrs == nil {
		return p
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		p.fill = append(p.fill, attrFloats(attrs, key)...)
	}
	if v, ok := attrFloat(attrs, "scale_factor"); ok {
		p.scale = v
	}
	if v, ok := attrFloat(attrs, "add_offset"); ok {
		p.offset = v
	}
	return p
}

// decode masks fill values to NaN and unpacks the rest in place.
func (p packing) decode(vals []float64) {
	for i, v := range vals {
		if p.isFill(v) {
			vals[i] = nan
			continue
		}
		vals[i] = v*p.scale + p.offset
	}
}

func (p packing) isFill(v float64) bool {
	for _, f := range p.fill {
		if v == f {
			return true
		}
	}
	return false
}

// attrFloats returns every element of a scalar or vector attribute.
func attrFloats(attrs attributeGetter, key string) []float64 {
	raw, ok := attrs.Get(key)
	if !ok {
		return nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() != reflect.Slice {
		if f, ok := toFloat(rv); ok {
			return []float64{f}
		}
		return nil
	}
	var out []float64
	for i := 0; i < rv.Len(); i++ {
		if f, ok := toFloat(rv.Index(i)); ok {
			out = append(out, f)
		}
	}
	return out
}

func attrFloat(attrs attributeGetter, key string) (float64, bool) {
	raw, ok := attrs.Get(key)
	if !ok {
		return 0, false
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Slice {
		if rv.Len() == 0 {
			return 0, false
		}
		rv = rv.Index(0)
	}
	return toFloat(rv)
}

func attrString(attrs attributeGetter, key string) string {
	if attrs == nil {
		return ""
	}
	raw, ok := attrs.Get(key)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return s
}
