// Package ncfile reads and writes gridded fields as NetCDF files.
package ncfile

import (
	"fmt"
	"os"
	"reflect"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"github.com/couchcryptid/era5-etl/internal/domain"
)

// Codec reads classic and HDF5-based NetCDF files and writes classic files.
// Values, element types and attributes survive a write/read round trip.
type Codec struct{}

// NewCodec creates a Codec.
func NewCodec() *Codec {
	return &Codec{}
}

// Read loads every variable of the file at path.
func (c *Codec) Read(path string) (*domain.Field, error) {
	return c.ReadSelected(path, nil)
}

// ReadSelected loads the coordinate axes first, asks choose which latitude
// and longitude indices to keep, then reads each variable gathering only
// those points. Variables led by a non-spatial axis (time) are read one
// leading slab at a time so a global grid is never held in full. A nil
// choose keeps everything.
func (c *Codec) ReadSelected(path string, choose domain.Chooser) (*domain.Field, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	names := nc.ListVariables()
	getters := make(map[string]api.VarGetter, len(names))
	var dimOrder []string
	seen := map[string]bool{}
	for _, name := range names {
		vg, err := nc.GetVarGetter(name)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		getters[name] = vg
		for _, d := range vg.Dimensions() {
			if !seen[d] {
				seen[d] = true
				dimOrder = append(dimOrder, d)
			}
		}
	}

	// Coordinate variables fix the dimension lengths.
	lens := map[string]int{}
	var coordDims []domain.Dim
	var coordVars []*domain.Variable
	for _, name := range names {
		dims := getters[name].Dimensions()
		if len(dims) != 1 || dims[0] != name {
			continue
		}
		v, shape, err := readWhole(name, getters[name])
		if err != nil {
			return nil, err
		}
		lens[name] = shape[0]
		coordDims = append(coordDims, domain.Dim{Name: name, Len: shape[0]})
		coordVars = append(coordVars, v)
	}
	frame, err := domain.NewField(coordDims, coordVars, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var sel domain.Selection
	if choose != nil {
		lat, err := frame.Latitudes()
		if err != nil {
			return nil, err
		}
		lon, err := frame.Longitudes()
		if err != nil {
			return nil, err
		}
		if sel, err = choose(lat, lon); err != nil {
			return nil, err
		}
	}
	sub, err := frame.Take(sel)
	if err != nil {
		return nil, err
	}

	vars := make([]*domain.Variable, 0, len(names))
	for _, name := range names {
		if v := sub.Var(name); v != nil {
			vars = append(vars, v)
			continue
		}
		v, err := readVar(name, getters[name], sub, sel, lens)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}

	dims := make([]domain.Dim, len(dimOrder))
	for i, d := range dimOrder {
		n, ok := lens[d]
		if ok {
			if sl := sub.DimLen(d); sl >= 0 {
				n = sl
			}
		}
		dims[i] = domain.Dim{Name: d, Len: n}
	}
	return domain.NewField(dims, vars, attributes(nc.Attributes()))
}

func readWhole(name string, vg api.VarGetter) (*domain.Variable, []int, error) {
	raw, err := vg.Values()
	if err != nil {
		return nil, nil, fmt.Errorf("read %q: %w", name, err)
	}
	flat, shape, err := flatten(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("read %q: %w", name, err)
	}
	dims := vg.Dimensions()
	if len(shape) != len(dims) {
		return nil, nil, fmt.Errorf("read %q: %d dimensions declared, value has %d", name, len(dims), len(shape))
	}
	return &domain.Variable{Name: name, Dims: dims, Values: flat, Attrs: attributes(vg.Attributes())}, shape, nil
}

// readVar reads a non-coordinate variable, gathering sel on spatial axes.
// Lengths of axes without a coordinate variable are recorded in lens.
func readVar(name string, vg api.VarGetter, sub *domain.Field, sel domain.Selection, lens map[string]int) (*domain.Variable, error) {
	dims := vg.Dimensions()
	v := &domain.Variable{Name: name, Dims: dims, Attrs: attributes(vg.Attributes())}
	if !sub.Spans(v) {
		whole, shape, err := readWhole(name, vg)
		if err != nil {
			return nil, err
		}
		if err := recordLens(name, dims, shape, lens); err != nil {
			return nil, err
		}
		return whole, nil
	}

	idx := sub.AxisIndices(dims, sel)
	lead := dims[0]
	n, known := lens[lead]
	if len(dims) >= 2 && lead != sub.LatDim && lead != sub.LonDim && known && n > 0 {
		values, err := readSlabs(name, vg, dims, n, idx, lens)
		if err != nil {
			return nil, err
		}
		v.Values = values
		return v, nil
	}

	whole, shape, err := readWhole(name, vg)
	if err != nil {
		return nil, err
	}
	if err := recordLens(name, dims, shape, lens); err != nil {
		return nil, err
	}
	values, err := domain.TakeValues(whole.Values, shape, idx)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", name, err)
	}
	v.Values = values
	return v, nil
}

func readSlabs(name string, vg api.VarGetter, dims []string, n int, idx [][]int, lens map[string]int) (any, error) {
	var out reflect.Value
	for i := 0; i < n; i++ {
		raw, err := vg.GetSlice(int64(i), int64(i+1))
		if err != nil {
			return nil, fmt.Errorf("read %q slab %d: %w", name, i, err)
		}
		flat, shape, err := flatten(raw)
		if err != nil {
			return nil, fmt.Errorf("read %q slab %d: %w", name, i, err)
		}
		if len(shape) != len(dims) || shape[0] != 1 {
			return nil, fmt.Errorf("read %q slab %d: unexpected shape %v", name, i, shape)
		}
		taken, err := domain.TakeValues(flat, shape, idx)
		if err != nil {
			return nil, fmt.Errorf("read %q slab %d: %w", name, i, err)
		}
		tv := reflect.ValueOf(taken)
		if !out.IsValid() {
			if err := recordLens(name, dims[1:], shape[1:], lens); err != nil {
				return nil, err
			}
			out = reflect.MakeSlice(tv.Type(), 0, tv.Len()*n)
		}
		out = reflect.AppendSlice(out, tv)
	}
	return out.Interface(), nil
}

func recordLens(name string, dims []string, shape []int, lens map[string]int) error {
	for i, d := range dims {
		if n, ok := lens[d]; ok && n != shape[i] {
			return fmt.Errorf("read %q: dimension %q has length %d, expected %d", name, d, shape[i], n)
		}
		lens[d] = shape[i]
	}
	return nil
}

// Write stores f at path. The file is written under a ".part" suffix and
// renamed once complete, so path never holds a partial file.
func (c *Codec) Write(path string, f *domain.Field) error {
	part := path + ".part"
	cw, err := cdf.OpenWriter(part)
	if err != nil {
		return fmt.Errorf("create %s: %w", part, err)
	}
	if err := addAll(cw, f); err != nil {
		_ = cw.Close()
		_ = os.Remove(part)
		return err
	}
	if err := cw.Close(); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("close %s: %w", part, err)
	}
	if err := os.Rename(part, path); err != nil {
		_ = os.Remove(part)
		return fmt.Errorf("rename %s: %w", part, err)
	}
	return nil
}

func addAll(cw *cdf.CDFWriter, f *domain.Field) error {
	if len(f.Attrs) > 0 {
		am, err := attributeMap(f.Attrs)
		if err != nil {
			return fmt.Errorf("global attributes: %w", err)
		}
		if err := cw.AddGlobalAttrs(am); err != nil {
			return fmt.Errorf("global attributes: %w", err)
		}
	}
	for _, v := range f.Vars {
		shape, err := f.Shape(v)
		if err != nil {
			return err
		}
		am, err := attributeMap(v.Attrs)
		if err != nil {
			return fmt.Errorf("variable %q attributes: %w", v.Name, err)
		}
		err = cw.AddVar(v.Name, api.Variable{
			Values:     unflatten(v.Values, shape),
			Dimensions: v.Dims,
			Attributes: am,
		})
		if err != nil {
			return fmt.Errorf("add variable %q: %w", v.Name, err)
		}
	}
	return nil
}

func attributes(am api.AttributeMap) []domain.Attribute {
	if am == nil {
		return nil
	}
	keys := am.Keys()
	attrs := make([]domain.Attribute, 0, len(keys))
	for _, k := range keys {
		v, ok := am.Get(k)
		if !ok {
			continue
		}
		attrs = append(attrs, domain.Attribute{Name: k, Value: v})
	}
	return attrs
}

func attributeMap(attrs []domain.Attribute) (api.AttributeMap, error) {
	keys := make([]string, len(attrs))
	vals := make(map[string]interface{}, len(attrs))
	for i, a := range attrs {
		keys[i] = a.Name
		vals[a.Name] = a.Value
	}
	return util.NewOrderedMap(keys, vals)
}

// flatten turns the nested slices returned by the reader into one flat
// row-major slice and its shape. Scalars become a one-element slice with an
// empty shape.
func flatten(v any) (any, []int, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		s := reflect.MakeSlice(reflect.SliceOf(rv.Type()), 1, 1)
		s.Index(0).Set(rv)
		return s.Interface(), nil, nil
	}

	elem := rv.Type()
	depth := 0
	for elem.Kind() == reflect.Slice {
		depth++
		elem = elem.Elem()
	}
	shape := make([]int, depth)
	probe := rv
	for d := 0; d < depth; d++ {
		shape[d] = probe.Len()
		if d == depth-1 || probe.Len() == 0 {
			break
		}
		probe = probe.Index(0)
	}

	n := 1
	for _, s := range shape {
		n *= s
	}
	flat := reflect.MakeSlice(reflect.SliceOf(elem), 0, n)
	var walk func(v reflect.Value, d int) error
	walk = func(v reflect.Value, d int) error {
		if v.Len() != shape[d] {
			return fmt.Errorf("ragged array at depth %d", d)
		}
		if d == depth-1 {
			flat = reflect.AppendSlice(flat, v)
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := walk(v.Index(i), d+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return flat.Interface(), shape, nil
}

// unflatten rebuilds the nested slices the writer expects.
func unflatten(flat any, shape []int) any {
	rv := reflect.ValueOf(flat)
	if len(shape) == 0 {
		return rv.Index(0).Interface()
	}
	return nest(rv, shape).Interface()
}

func nest(flat reflect.Value, shape []int) reflect.Value {
	if len(shape) == 1 {
		return flat
	}
	inner := 1
	for _, s := range shape[1:] {
		inner *= s
	}
	t := flat.Type()
	for range shape[1:] {
		t = reflect.SliceOf(t)
	}
	out := reflect.MakeSlice(t, shape[0], shape[0])
	for i := 0; i < shape[0]; i++ {
		out.Index(i).Set(nest(flat.Slice(i*inner, (i+1)*inner), shape[1:]))
	}
	return out
}
