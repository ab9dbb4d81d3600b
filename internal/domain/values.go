package domain

import (
	"fmt"
	"reflect"
)

type number interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~float32 | ~float64
}

func valueLen(values any) (int, error) {
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice {
		return 0, fmt.Errorf("values must be a flat slice, got %T", values)
	}
	return rv.Len(), nil
}

// TakeValues gathers from a flat row-major slice with the given shape. For
// each axis d, idx[d] lists the indices to keep in output order; nil keeps
// the whole axis. The result has the same element type as values.
func TakeValues(values any, shape []int, idx [][]int) (any, error) {
	switch v := values.(type) {
	case []float32:
		return takeAny(v, shape, idx)
	case []float64:
		return takeAny(v, shape, idx)
	case []int8:
		return takeAny(v, shape, idx)
	case []int16:
		return takeAny(v, shape, idx)
	case []int32:
		return takeAny(v, shape, idx)
	case []int64:
		return takeAny(v, shape, idx)
	case []uint8:
		return takeAny(v, shape, idx)
	case []uint16:
		return takeAny(v, shape, idx)
	case []uint32:
		return takeAny(v, shape, idx)
	case []uint64:
		return takeAny(v, shape, idx)
	case []string:
		return takeAny(v, shape, idx)
	}
	return nil, fmt.Errorf("unsupported value type %T", values)
}

func takeAny[T any](src []T, shape []int, idx [][]int) (any, error) {
	out, err := take(src, shape, idx)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func take[T any](src []T, shape []int, idx [][]int) ([]T, error) {
	if len(idx) != len(shape) {
		return nil, fmt.Errorf("index lists for %d axes, shape has %d", len(idx), len(shape))
	}
	if len(src) != product(shape) {
		return nil, fmt.Errorf("%d values do not fill shape %v", len(src), shape)
	}
	if len(shape) == 0 {
		return append([]T(nil), src...), nil
	}

	outShape := make([]int, len(shape))
	for d, n := range shape {
		if idx[d] == nil {
			outShape[d] = n
			continue
		}
		for _, i := range idx[d] {
			if i < 0 || i >= n {
				return nil, fmt.Errorf("index %d out of range on axis %d (len %d)", i, d, n)
			}
		}
		outShape[d] = len(idx[d])
	}
	out := make([]T, 0, product(outShape))
	if cap(out) == 0 {
		return out, nil
	}

	stride := make([]int, len(shape))
	stride[len(shape)-1] = 1
	for d := len(shape) - 2; d >= 0; d-- {
		stride[d] = stride[d+1] * shape[d+1]
	}

	// Odometer over the outer axes; the innermost axis is copied per row.
	last := len(shape) - 1
	pos := make([]int, last)
	for {
		base := 0
		for d := 0; d < last; d++ {
			i := pos[d]
			if idx[d] != nil {
				i = idx[d][i]
			}
			base += i * stride[d]
		}
		if idx[last] == nil {
			out = append(out, src[base:base+shape[last]]...)
		} else {
			for _, i := range idx[last] {
				out = append(out, src[base+i])
			}
		}

		d := last - 1
		for ; d >= 0; d-- {
			pos[d]++
			if pos[d] < outShape[d] {
				break
			}
			pos[d] = 0
		}
		if d < 0 {
			return out, nil
		}
	}
}

// Float64s converts a numeric coordinate slice to float64. Conversion from
// every supported type is exact except for 64-bit integers beyond 2^53.
func Float64s(values any) ([]float64, error) {
	switch v := values.(type) {
	case []float64:
		return append([]float64(nil), v...), nil
	case []float32:
		return toFloat64(v), nil
	case []int8:
		return toFloat64(v), nil
	case []int16:
		return toFloat64(v), nil
	case []int32:
		return toFloat64(v), nil
	case []int64:
		return toFloat64(v), nil
	case []uint8:
		return toFloat64(v), nil
	case []uint16:
		return toFloat64(v), nil
	case []uint32:
		return toFloat64(v), nil
	case []uint64:
		return toFloat64(v), nil
	}
	return nil, fmt.Errorf("non-numeric coordinate type %T", values)
}

func toFloat64[T number](src []T) []float64 {
	out := make([]float64, len(src))
	for i, x := range src {
		out[i] = float64(x)
	}
	return out
}

// Float64sAs converts xs back to the element type of like.
func Float64sAs(like any, xs []float64) (any, error) {
	switch like.(type) {
	case []float64:
		return append([]float64(nil), xs...), nil
	case []float32:
		return fromFloat64[float32](xs), nil
	case []int8:
		return fromFloat64[int8](xs), nil
	case []int16:
		return fromFloat64[int16](xs), nil
	case []int32:
		return fromFloat64[int32](xs), nil
	case []int64:
		return fromFloat64[int64](xs), nil
	case []uint8:
		return fromFloat64[uint8](xs), nil
	case []uint16:
		return fromFloat64[uint16](xs), nil
	case []uint32:
		return fromFloat64[uint32](xs), nil
	case []uint64:
		return fromFloat64[uint64](xs), nil
	}
	return nil, fmt.Errorf("non-numeric coordinate type %T", like)
}

func fromFloat64[T number](xs []float64) []T {
	out := make([]T, len(xs))
	for i, x := range xs {
		out[i] = T(x)
	}
	return out
}
