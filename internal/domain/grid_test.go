package domain_test

import (
	"math"
	"sort"
	"testing"

	"github.com/couchcryptid/era5-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// globalField builds a field laid out like the bucket copies: latitude
// descending from 90, longitude ascending from 0, time first. Each data value
// encodes its own coordinates so reordering can be checked point by point.
func globalField(t *testing.T, res float64, nt int) *domain.Field {
	t.Helper()
	nlat := int(180/res) + 1
	nlon := int(360 / res)

	lat := make([]float32, nlat)
	for i := range lat {
		lat[i] = float32(90 - float64(i)*res)
	}
	lon := make([]float32, nlon)
	for j := range lon {
		lon[j] = float32(float64(j) * res)
	}
	times := make([]int32, nt)
	data := make([]float64, 0, nt*nlat*nlon)
	for k := range times {
		times[k] = int32(k)
		for i := range lat {
			for j := range lon {
				data = append(data, encode(k, float64(lat[i]), float64(lon[j])))
			}
		}
	}

	f, err := domain.NewField(
		[]domain.Dim{{Name: "time0", Len: nt}, {Name: "lat", Len: nlat}, {Name: "lon", Len: nlon}},
		[]*domain.Variable{
			{Name: "time0", Dims: []string{"time0"}, Values: times},
			{Name: "lat", Dims: []string{"lat"}, Values: lat, Attrs: []domain.Attribute{{Name: "units", Value: "degrees_north"}}},
			{Name: "lon", Dims: []string{"lon"}, Values: lon, Attrs: []domain.Attribute{{Name: "units", Value: "degrees_east"}}},
			{Name: "sea_surface_temperature", Dims: []string{"time0", "lat", "lon"}, Values: data},
		},
		[]domain.Attribute{{Name: "source", Value: "synthetic"}},
	)
	require.NoError(t, err)
	return f
}

func encode(k int, lat, lon float64) float64 {
	return float64(k)*1e7 + lat*1e4 + lon
}

func normalize(t *testing.T, f *domain.Field) *domain.Field {
	t.Helper()
	relabeled, err := domain.RelabelLongitude(f)
	require.NoError(t, err)
	sorted, err := domain.SortByCoordinates(relabeled)
	require.NoError(t, err)
	return sorted
}

func axes(t *testing.T, f *domain.Field) ([]float64, []float64) {
	t.Helper()
	lat, err := f.Latitudes()
	require.NoError(t, err)
	lon, err := f.Longitudes()
	require.NoError(t, err)
	return lat, lon
}

func TestSelectRegion_InsideGrid(t *testing.T) {
	lat := []float64{-2, -1, 0, 1, 2, 3, 4, 5, 6}
	lon := make([]float64, 360)
	for i := range lon {
		lon[i] = float64(i)
	}

	sel, err := domain.SelectRegion(lat, lon, domain.Region{MinLat: 0, MaxLat: 4, MinLon: 10, MaxLon: 20})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3, 4, 5, 6}, sel.Lat)
	assert.Len(t, sel.Lon, 11)
	assert.Equal(t, 10, sel.Lon[0])
	assert.Equal(t, 20, sel.Lon[10])
}

func TestSelectRegion_WestOfGreenwichWithoutSeam(t *testing.T) {
	lon := make([]float64, 360)
	for i := range lon {
		lon[i] = float64(i)
	}

	sel, err := domain.SelectRegion([]float64{15}, lon, domain.Region{MinLat: 13, MaxLat: 25, MinLon: -70, MaxLon: -60})
	require.NoError(t, err)

	assert.Len(t, sel.Lon, 11)
	assert.Equal(t, 290, sel.Lon[0])
	assert.Equal(t, 300, sel.Lon[10])
}

func TestSelectRegion_EmptyAxis(t *testing.T) {
	lat := []float64{0, 1, 2}
	lon := []float64{0, 1, 2}

	_, err := domain.SelectRegion(lat, lon, domain.Region{MinLat: 10, MaxLat: 20, MinLon: 0, MaxLon: 2})
	require.ErrorIs(t, err, domain.ErrEmptySelection)
	assert.Contains(t, err.Error(), "latitude")

	_, err = domain.SelectRegion(lat, lon, domain.Region{MinLat: 0, MaxLat: 2, MinLon: 100, MaxLon: 120})
	require.ErrorIs(t, err, domain.ErrEmptySelection)
	assert.Contains(t, err.Error(), "longitude")
}

func TestSelectRegion_SignedGridMatchesUnsignedGrid(t *testing.T) {
	unsigned := make([]float64, 360)
	signed := make([]float64, 360)
	for i := range unsigned {
		unsigned[i] = float64(i)
		signed[i] = float64(i - 180)
	}
	r := domain.Region{MinLat: 0, MaxLat: 0, MinLon: -60, MaxLon: 25}

	a, err := domain.SelectRegion([]float64{0}, unsigned, r)
	require.NoError(t, err)
	b, err := domain.SelectRegion([]float64{0}, signed, r)
	require.NoError(t, err)

	assert.Len(t, a.Lon, 86)
	assert.Len(t, b.Lon, 86)
}

func TestCrop_NorthAtlanticScenario(t *testing.T) {
	f := globalField(t, 0.25, 1)
	r := domain.DefaultRegistry()
	box, err := r.Lookup("NorthAtlantic")
	require.NoError(t, err)

	cropped, err := domain.Crop(f, box)
	require.NoError(t, err)
	assert.Equal(t, 341, cropped.DimLen("lon"))
	assert.Equal(t, 121, cropped.DimLen("lat"))

	out := normalize(t, cropped)
	require.NoError(t, domain.CheckMonotonic(out))

	lat, lon := axes(t, out)
	assert.Len(t, lon, 341)
	assert.Len(t, lat, 121)
	assert.InDelta(t, -60.0, lon[0], 0)
	assert.InDelta(t, 25.0, lon[len(lon)-1], 0)
	assert.InDelta(t, 40.0, lat[0], 0)
	assert.InDelta(t, 70.0, lat[len(lat)-1], 0)
}

func TestCrop_CountMatchesBruteForce(t *testing.T) {
	f := globalField(t, 1, 1)
	lat, lon := axes(t, f)

	regions := map[string]domain.Region{
		"north sea":     {MinLat: 49, MaxLat: 62, MinLon: 10, MaxLon: 12},
		"bvi":           {MinLat: 13, MaxLat: 25, MinLon: -70, MaxLon: -60},
		"prime":         {MinLat: -5, MaxLat: 5, MinLon: -10, MaxLon: 10},
		"dateline east": {MinLat: -30, MaxLat: -20, MinLon: 170, MaxLon: 179},
		"dateline west": {MinLat: -30, MaxLat: -20, MinLon: -180, MaxLon: -170},
		"whole globe":   {MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 179},
	}
	for name, r := range regions {
		t.Run(name, func(t *testing.T) {
			wantLat, wantLon := 0, 0
			for _, y := range lat {
				if y >= r.MinLat && y <= r.MaxLat {
					wantLat++
				}
			}
			for _, x := range lon {
				if w := domain.WrapLongitude(x); w >= r.MinLon && w <= r.MaxLon {
					wantLon++
				}
			}

			cropped, err := domain.Crop(f, r)
			require.NoError(t, err)
			assert.Equal(t, wantLat, cropped.DimLen("lat"))
			assert.Equal(t, wantLon, cropped.DimLen("lon"))
		})
	}
}

func TestNormalize_SeamHasNoGapOrDuplicate(t *testing.T) {
	f := globalField(t, 0.25, 1)

	cropped, err := domain.Crop(f, domain.Region{MinLat: 0, MaxLat: 1, MinLon: -10, MaxLon: 10})
	require.NoError(t, err)
	out := normalize(t, cropped)

	_, lon := axes(t, out)
	require.Len(t, lon, 81)
	for i := range lon {
		assert.InDelta(t, -10+0.25*float64(i), lon[i], 0, "index %d", i)
	}
	zeros := 0
	for _, x := range lon {
		if x == 0 {
			zeros++
		}
	}
	assert.Equal(t, 1, zeros)
}

func TestNormalize_RoundTripPreservesValues(t *testing.T) {
	f := globalField(t, 0.5, 2)

	cropped, err := domain.Crop(f, domain.Region{MinLat: 40, MaxLat: 70, MinLon: -60, MaxLon: 25})
	require.NoError(t, err)
	out := normalize(t, cropped)

	// Unwrapping the output labels gives back the cropped coordinate set.
	_, before := axes(t, cropped)
	lat, after := axes(t, out)
	unwrapped := make([]float64, len(after))
	for i, x := range after {
		unwrapped[i] = domain.UnwrapLongitude(x)
	}
	sort.Float64s(before)
	sort.Float64s(unwrapped)
	if diff := cmp.Diff(before, unwrapped); diff != "" {
		t.Fatalf("coordinate set mismatch (-want +got):\n%s", diff)
	}

	// Every value still sits at the coordinates it encodes.
	data := out.Var("sea_surface_temperature").Values.([]float64)
	nlat, nlon := len(lat), len(after)
	require.Len(t, data, 2*nlat*nlon)
	for k := 0; k < 2; k++ {
		for i := range lat {
			for j := range after {
				got := data[(k*nlat+i)*nlon+j]
				want := encode(k, lat[i], domain.UnwrapLongitude(after[j]))
				require.InDelta(t, want, got, 0, "t=%d lat=%g lon=%g", k, lat[i], after[j])
			}
		}
	}
}

func TestRelabelLongitude_KeepsDtypeAndOrder(t *testing.T) {
	f := globalField(t, 90, 1)

	out, err := domain.RelabelLongitude(f)
	require.NoError(t, err)

	lon, ok := out.Var("lon").Values.([]float32)
	require.True(t, ok, "longitude dtype changed to %T", out.Var("lon").Values)
	assert.Equal(t, []float32{0, 90, -180, -90}, lon)
	assert.Equal(t, []float32{0, 90, 180, 270}, f.Var("lon").Values, "input must not be mutated")
	assert.Equal(t, f.Var("lon").Attrs, out.Var("lon").Attrs)
}

func TestRelabelLongitude_RejectsUnsignedLongitude(t *testing.T) {
	f, err := domain.NewField(
		[]domain.Dim{{Name: "lat", Len: 1}, {Name: "lon", Len: 2}},
		[]*domain.Variable{
			{Name: "lat", Dims: []string{"lat"}, Values: []float32{0}},
			{Name: "lon", Dims: []string{"lon"}, Values: []uint16{90, 270}},
			{Name: "sst", Dims: []string{"lat", "lon"}, Values: []float32{1, 2}},
		},
		nil,
	)
	require.NoError(t, err)

	_, err = domain.RelabelLongitude(f)
	require.ErrorIs(t, err, domain.ErrInvalidField)
	assert.Contains(t, err.Error(), "unsigned")
}

func TestCheckMonotonic(t *testing.T) {
	f := globalField(t, 90, 1)
	err := domain.CheckMonotonic(f)
	require.ErrorIs(t, err, domain.ErrInvalidField)
	assert.Contains(t, err.Error(), "latitude")

	require.NoError(t, domain.CheckMonotonic(normalize(t, f)))
}

func TestSortSelection_DuplicateLabel(t *testing.T) {
	_, err := domain.SortSelection([]float64{1, 2}, []float64{-180, 0, 180 - 360})
	require.ErrorIs(t, err, domain.ErrDuplicateCoordinate)
}

func TestSortSelection_Permutation(t *testing.T) {
	sel, err := domain.SortSelection([]float64{3, 1, 2}, []float64{10, 20, -30, -20})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, sel.Lat)
	assert.Equal(t, []int{2, 3, 0, 1}, sel.Lon)
}

func TestWrapAndUnwrapLongitude(t *testing.T) {
	cases := []struct {
		in, wrapped, unwrapped float64
	}{
		{0, 0, 0},
		{25, 25, 25},
		{179.75, 179.75, 179.75},
		{180, -180, 180},
		{300, -60, 300},
		{359.75, -0.25, 359.75},
		{-60, -60, 300},
		{-180, -180, 180},
		{360, 0, 0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.wrapped, domain.WrapLongitude(tc.in), 0, "wrap(%g)", tc.in)
		assert.InDelta(t, tc.unwrapped, domain.UnwrapLongitude(tc.in), 0, "unwrap(%g)", tc.in)
	}
	assert.False(t, math.Signbit(domain.WrapLongitude(0)))
}
