package aperture

import (
	"reflect"

	"gonum.org/v1/gonum/spatial/r2"
)

// dense is a row-major numeric array decoded from an arbitrarily nested Go
// value ([]float64, [][2]float64, [][][]float32, r2.Vec, ...).
type dense struct {
	shape []int
	data  []float64
}

func (d dense) ndim() int { return len(d.shape) }

// squeeze drops every axis of length one.
func (d dense) squeeze() dense {
	shape := make([]int, 0, len(d.shape))
	for _, n := range d.shape {
		if n != 1 {
			shape = append(shape, n)
		}
	}
	return dense{shape: shape, data: d.data}
}

var vecType = reflect.TypeOf(r2.Vec{})

// toDense converts v into a dense array. Scalars become zero-dimensional
// arrays. Ragged nesting is a value error, non-numeric leaves a type error.
func toDense(v any) (dense, error) {
	if v == nil {
		return dense{}, typeErrorf("expected a numeric array, got nil")
	}
	switch x := v.(type) {
	case []r2.Vec:
		out := dense{shape: []int{len(x), 2}, data: make([]float64, 0, 2*len(x))}
		for _, p := range x {
			out.data = append(out.data, p.X, p.Y)
		}
		return out, nil
	case r2.Vec:
		return dense{shape: []int{2}, data: []float64{x.X, x.Y}}, nil
	case []float64:
		return dense{shape: []int{len(x)}, data: append([]float64(nil), x...)}, nil
	}

	var shape []int
	var data []float64
	if err := walk(reflect.ValueOf(v), 0, &shape, &data); err != nil {
		return dense{}, err
	}
	return dense{shape: shape, data: data}, nil
}

func walk(rv reflect.Value, depth int, shape *[]int, data *[]float64) error {
	for rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return typeErrorf("nil element at depth %d", depth)
		}
		rv = rv.Elem()
	}
	if rv.Type() == vecType {
		rv = reflect.ValueOf([2]float64{rv.Field(0).Float(), rv.Field(1).Float()})
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		if depth == len(*shape) && len(*data) == 0 {
			*shape = append(*shape, n)
		} else if depth >= len(*shape) || (*shape)[depth] != n {
			return valueErrorf("ragged array: axis %d has inconsistent lengths", depth)
		}
		for i := 0; i < n; i++ {
			if err := walk(rv.Index(i), depth+1, shape, data); err != nil {
				return err
			}
		}
		return nil
	case reflect.Float32, reflect.Float64:
		if depth != len(*shape) {
			return valueErrorf("ragged array: scalar found at depth %d", depth)
		}
		*data = append(*data, rv.Float())
		return nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if depth != len(*shape) {
			return valueErrorf("ragged array: scalar found at depth %d", depth)
		}
		*data = append(*data, float64(rv.Int()))
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if depth != len(*shape) {
			return valueErrorf("ragged array: scalar found at depth %d", depth)
		}
		*data = append(*data, float64(rv.Uint()))
		return nil
	default:
		return typeErrorf("non-numeric element of kind %s", rv.Kind())
	}
}
