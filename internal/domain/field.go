package domain

import (
	"fmt"
	"strings"
)

// Axis names recognised for each role, compared case-insensitively.
var (
	latitudeNames  = []string{"lat", "latitude"}
	longitudeNames = []string{"lon", "longitude"}
	timeNames      = []string{"time", "time0", "time1", "valid_time"}
)

// Dim is a named dimension and its length.
type Dim struct {
	Name string
	Len  int
}

// Attribute is a name/value pair attached to a variable or a file.
type Attribute struct {
	Name  string
	Value any
}

// Variable is an n-dimensional array stored as a flat row-major slice in its
// native element type ([]float32, []int16, ...). Scalars have no Dims and a
// single-element Values slice.
type Variable struct {
	Name   string
	Dims   []string
	Values any
	Attrs  []Attribute
}

// Field is a gridded field: dimensions, coordinate and data variables, and
// global attributes. Latitude and longitude axes always have a coordinate
// variable named after their dimension.
type Field struct {
	Dims  []Dim
	Vars  []*Variable
	Attrs []Attribute

	LatDim  string
	LonDim  string
	TimeDim string // empty when the field has no time axis
}

// NewField checks shapes and discovers the latitude, longitude and time axes.
func NewField(dims []Dim, vars []*Variable, attrs []Attribute) (*Field, error) {
	f := &Field{Dims: dims, Vars: vars, Attrs: attrs}
	for _, d := range dims {
		switch {
		case matchesAny(d.Name, latitudeNames):
			f.LatDim = d.Name
		case matchesAny(d.Name, longitudeNames):
			f.LonDim = d.Name
		case matchesAny(d.Name, timeNames):
			f.TimeDim = d.Name
		}
	}
	if f.LatDim == "" || f.LonDim == "" {
		return nil, fmt.Errorf("%w: latitude/longitude dimensions not found", ErrInvalidField)
	}
	for _, v := range vars {
		shape, err := f.Shape(v)
		if err != nil {
			return nil, err
		}
		n, err := valueLen(v.Values)
		if err != nil {
			return nil, fmt.Errorf("%w: variable %q: %w", ErrInvalidField, v.Name, err)
		}
		if want := product(shape); n != want {
			return nil, fmt.Errorf("%w: variable %q has %d values, shape %v needs %d",
				ErrInvalidField, v.Name, n, shape, want)
		}
	}
	for _, name := range []string{f.LatDim, f.LonDim} {
		v := f.Var(name)
		if v == nil || len(v.Dims) != 1 || v.Dims[0] != name {
			return nil, fmt.Errorf("%w: missing coordinate variable %q", ErrInvalidField, name)
		}
	}
	return f, nil
}

func matchesAny(name string, candidates []string) bool {
	for _, c := range candidates {
		if strings.EqualFold(name, c) {
			return true
		}
	}
	return false
}

// DimLen returns the length of the named dimension, or -1.
func (f *Field) DimLen(name string) int {
	for _, d := range f.Dims {
		if d.Name == name {
			return d.Len
		}
	}
	return -1
}

// Var returns the named variable or nil.
func (f *Field) Var(name string) *Variable {
	for _, v := range f.Vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}

// Shape resolves a variable's dimension names to lengths.
func (f *Field) Shape(v *Variable) ([]int, error) {
	shape := make([]int, len(v.Dims))
	for i, d := range v.Dims {
		n := f.DimLen(d)
		if n < 0 {
			return nil, fmt.Errorf("%w: variable %q uses undeclared dimension %q", ErrInvalidField, v.Name, d)
		}
		shape[i] = n
	}
	return shape, nil
}

// Latitudes returns the latitude labels as float64.
func (f *Field) Latitudes() ([]float64, error) {
	return Float64s(f.Var(f.LatDim).Values)
}

// Longitudes returns the longitude labels as float64.
func (f *Field) Longitudes() ([]float64, error) {
	return Float64s(f.Var(f.LonDim).Values)
}

// DataVars returns the variables that are not coordinate axes.
func (f *Field) DataVars() []*Variable {
	var out []*Variable
	for _, v := range f.Vars {
		if len(v.Dims) == 1 && v.Dims[0] == v.Name {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Selection lists, per axis, the source indices to keep in output order.
// A nil list keeps the whole axis.
type Selection struct {
	Lat []int
	Lon []int
}

// Chooser computes a Selection from a field's coordinate labels.
type Chooser func(lat, lon []float64) (Selection, error)

// AxisIndices maps a variable's dimensions to the selection's index lists.
func (f *Field) AxisIndices(dims []string, sel Selection) [][]int {
	idx := make([][]int, len(dims))
	for i, d := range dims {
		switch d {
		case f.LatDim:
			idx[i] = sel.Lat
		case f.LonDim:
			idx[i] = sel.Lon
		}
	}
	return idx
}

// Spans reports whether the variable is indexed by latitude or longitude.
func (f *Field) Spans(v *Variable) bool {
	for _, d := range v.Dims {
		if d == f.LatDim || d == f.LonDim {
			return true
		}
	}
	return false
}

// Take gathers the selected latitude and longitude indices from every
// variable. Variables on other axes are shared with f, not copied.
func (f *Field) Take(sel Selection) (*Field, error) {
	out := &Field{
		Dims:    make([]Dim, len(f.Dims)),
		Vars:    make([]*Variable, len(f.Vars)),
		Attrs:   f.Attrs,
		LatDim:  f.LatDim,
		LonDim:  f.LonDim,
		TimeDim: f.TimeDim,
	}
	for i, d := range f.Dims {
		switch {
		case d.Name == f.LatDim && sel.Lat != nil:
			d.Len = len(sel.Lat)
		case d.Name == f.LonDim && sel.Lon != nil:
			d.Len = len(sel.Lon)
		}
		out.Dims[i] = d
	}
	for i, v := range f.Vars {
		if !f.Spans(v) {
			out.Vars[i] = v
			continue
		}
		shape, err := f.Shape(v)
		if err != nil {
			return nil, err
		}
		values, err := TakeValues(v.Values, shape, f.AxisIndices(v.Dims, sel))
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
		out.Vars[i] = &Variable{Name: v.Name, Dims: v.Dims, Values: values, Attrs: v.Attrs}
	}
	return out, nil
}

// WithVar returns a shallow copy of f with the named variable replaced.
func (f *Field) WithVar(nv *Variable) *Field {
	out := *f
	out.Vars = make([]*Variable, len(f.Vars))
	for i, v := range f.Vars {
		if v.Name == nv.Name {
			out.Vars[i] = nv
			continue
		}
		out.Vars[i] = v
	}
	return &out
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}
