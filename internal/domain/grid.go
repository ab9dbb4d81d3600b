package domain

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// SelectRegion picks the grid points inside r, keeping native order.
// Latitude is a closed-interval filter. Each longitude label is reduced into
// [0,360) before it is tested against the region's source intervals, so
// grids labelled in either convention select the same points.
func SelectRegion(lat, lon []float64, r Region) (Selection, error) {
	sel := Selection{Lat: []int{}, Lon: []int{}}
	for i, y := range lat {
		if y >= r.MinLat && y <= r.MaxLat {
			sel.Lat = append(sel.Lat, i)
		}
	}
	intervals := r.SourceIntervals()
	for i, x := range lon {
		s := UnwrapLongitude(x)
		for _, iv := range intervals {
			if iv.Contains(s) {
				sel.Lon = append(sel.Lon, i)
				break
			}
		}
	}
	if len(sel.Lat) == 0 {
		return Selection{}, fmt.Errorf("%w: no latitude in [%g, %g]", ErrEmptySelection, r.MinLat, r.MaxLat)
	}
	if len(sel.Lon) == 0 {
		return Selection{}, fmt.Errorf("%w: no longitude in [%g, %g]", ErrEmptySelection, r.MinLon, r.MaxLon)
	}
	return sel, nil
}

// Crop restricts an in-memory field to r.
func Crop(f *Field, r Region) (*Field, error) {
	lat, err := f.Latitudes()
	if err != nil {
		return nil, err
	}
	lon, err := f.Longitudes()
	if err != nil {
		return nil, err
	}
	sel, err := SelectRegion(lat, lon, r)
	if err != nil {
		return nil, err
	}
	return f.Take(sel)
}

// RelabelLongitude folds the longitude labels into [-180,180) in their
// native element type. Point order is unchanged, so the result is usually
// no longer monotonic.
// Unsigned longitude types cannot hold negative labels and are rejected.
func RelabelLongitude(f *Field) (*Field, error) {
	lonVar := f.Var(f.LonDim)
	switch lonVar.Values.(type) {
	case []uint8, []uint16, []uint32, []uint64:
		return nil, fmt.Errorf("%w: longitude %q has unsigned type %T", ErrInvalidField, lonVar.Name, lonVar.Values)
	}
	lon, err := Float64s(lonVar.Values)
	if err != nil {
		return nil, err
	}
	for i, x := range lon {
		lon[i] = WrapLongitude(x)
	}
	values, err := Float64sAs(lonVar.Values, lon)
	if err != nil {
		return nil, err
	}
	return f.WithVar(&Variable{Name: lonVar.Name, Dims: lonVar.Dims, Values: values, Attrs: lonVar.Attrs}), nil
}

// SortSelection is a Chooser that orders both axes ascending.
func SortSelection(lat, lon []float64) (Selection, error) {
	latIdx, err := argsortUnique(lat, "latitude")
	if err != nil {
		return Selection{}, err
	}
	lonIdx, err := argsortUnique(lon, "longitude")
	if err != nil {
		return Selection{}, err
	}
	return Selection{Lat: latIdx, Lon: lonIdx}, nil
}

func argsortUnique(xs []float64, axis string) ([]int, error) {
	sorted := append([]float64(nil), xs...)
	idx := make([]int, len(xs))
	floats.Argsort(sorted, idx)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return nil, fmt.Errorf("%w: %s %g appears twice", ErrDuplicateCoordinate, axis, sorted[i])
		}
	}
	return idx, nil
}

// SortByCoordinates reorders an in-memory field so both axes ascend.
func SortByCoordinates(f *Field) (*Field, error) {
	lat, err := f.Latitudes()
	if err != nil {
		return nil, err
	}
	lon, err := f.Longitudes()
	if err != nil {
		return nil, err
	}
	sel, err := SortSelection(lat, lon)
	if err != nil {
		return nil, err
	}
	return f.Take(sel)
}

// CheckMonotonic verifies that latitude and longitude strictly increase.
func CheckMonotonic(f *Field) error {
	lat, err := f.Latitudes()
	if err != nil {
		return err
	}
	lon, err := f.Longitudes()
	if err != nil {
		return err
	}
	if i := firstNonIncreasing(lat); i > 0 {
		return fmt.Errorf("%w: latitude not strictly increasing at index %d (%g after %g)",
			ErrInvalidField, i, lat[i], lat[i-1])
	}
	if i := firstNonIncreasing(lon); i > 0 {
		return fmt.Errorf("%w: longitude not strictly increasing at index %d (%g after %g)",
			ErrInvalidField, i, lon[i], lon[i-1])
	}
	return nil
}

func firstNonIncreasing(xs []float64) int {
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return i
		}
	}
	return -1
}
