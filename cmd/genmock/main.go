// Command genmock writes a synthetic global ERA5 field in the archive's
// native layout (latitude 90..-90, longitude 0..359.75 at 0.25°) under the
// raw cache name, so the pipeline can run offline against a warmed cache.
//
// Usage:
//
//	go run ./cmd/genmock -storage-path /tmp/era5 -year 2000 -month 1
//	ERA5_MIN_YEAR=2000 ERA5_MAX_YEAR=2000 REMOVE_RAW=false \
//	  go run ./cmd/era5etl -storage-path /tmp/era5
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/couchcryptid/era5-etl/internal/adapter/ncfile"
	"github.com/couchcryptid/era5-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	storage := flag.String("storage-path", ".", "directory to write the raw cache file into")
	parameter := flag.String("parameter", "sea_surface_temperature", "ERA5 parameter name")
	year := flag.Int("year", 2000, "year of the unit")
	monthFlag := flag.Int("month", 0, "month of the unit; 0 writes all twelve")
	steps := flag.Int("steps", 2, "number of hourly time steps")
	res := flag.Float64("resolution", 0.25, "grid spacing in degrees")
	flag.Parse()

	if *steps < 1 || *res <= 0 || 360/(*res) != math.Trunc(360/(*res)) {
		flag.Usage()
		return fmt.Errorf("need -steps >= 1 and a -resolution that divides 360")
	}
	if err := os.MkdirAll(*storage, 0o755); err != nil {
		return err
	}

	months := []int{*monthFlag}
	if *monthFlag == 0 {
		months = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	}

	codec := ncfile.NewCodec()
	for _, month := range months {
		key := domain.ArchiveKey{Year: *year, Month: month, Parameter: *parameter}
		if err := key.Validate(); err != nil {
			return err
		}
		f, err := syntheticField(key, *steps, *res)
		if err != nil {
			return err
		}
		path := filepath.Join(*storage, key.CacheFileName())
		if err := codec.Write(path, f); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Printf("wrote %s (%d x %d x %d)", path, *steps, f.DimLen("lat"), f.DimLen("lon"))
	}
	return nil
}

// syntheticField builds a smooth temperature-like field: warm at the equator,
// with a longitude wave and a small drift per time step.
func syntheticField(key domain.ArchiveKey, steps int, res float64) (*domain.Field, error) {
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
	hours := make([]int32, steps)
	for k := range hours {
		hours[k] = int32(k)
	}

	data := make([]float32, 0, steps*nlat*nlon)
	for k := 0; k < steps; k++ {
		for _, y := range lat {
			base := 271.15 + 30*math.Cos(float64(y)*math.Pi/180)
			for _, x := range lon {
				wave := 2 * math.Sin(float64(x)*math.Pi/90)
				data = append(data, float32(base+wave+0.01*float64(k)))
			}
		}
	}

	return domain.NewField(
		[]domain.Dim{{Name: "time0", Len: steps}, {Name: "lat", Len: nlat}, {Name: "lon", Len: nlon}},
		[]*domain.Variable{
			{Name: "time0", Dims: []string{"time0"}, Values: hours, Attrs: []domain.Attribute{
				{Name: "units", Value: fmt.Sprintf("hours since %d-%02d-01 00:00:00", key.Year, key.Month)},
				{Name: "standard_name", Value: "time"},
			}},
			{Name: "lat", Dims: []string{"lat"}, Values: lat, Attrs: []domain.Attribute{
				{Name: "units", Value: "degrees_north"},
				{Name: "standard_name", Value: "latitude"},
			}},
			{Name: "lon", Dims: []string{"lon"}, Values: lon, Attrs: []domain.Attribute{
				{Name: "units", Value: "degrees_east"},
				{Name: "standard_name", Value: "longitude"},
			}},
			{Name: key.Parameter, Dims: []string{"time0", "lat", "lon"}, Values: data, Attrs: []domain.Attribute{
				{Name: "units", Value: "K"},
				{Name: "long_name", Value: "synthetic " + key.Parameter},
			}},
		},
		[]domain.Attribute{{Name: "source", Value: "genmock"}},
	)
}
