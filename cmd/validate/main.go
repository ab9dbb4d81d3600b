// Command validate checks produced artifacts against the raw files they were
// built from: axes strictly ascending, point counts matching the region, and
// every value identical to the raw value at the same (wrapped) coordinates.
// Raw files must still be in the cache, so run the pipeline with
// REMOVE_RAW=false first.
//
// Usage:
//
//	go run ./cmd/validate -storage-path /tmp/era5 -region NorthAtlantic \
//	  -min-year 2000 -max-year 2000
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/era5-etl/internal/adapter/ncfile"
	"github.com/couchcryptid/era5-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/era5-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type unit struct {
	key      domain.ArchiveKey
	raw      *domain.Field // cropped, native order
	artifact *domain.Field
}

func main() {
	storage := flag.String("storage-path", ".", "directory holding raw and final files")
	label := flag.String("region", "NorthAtlantic", "region label the artifacts were built for")
	parameter := flag.String("parameter", "sea_surface_temperature", "ERA5 parameter name")
	minYear := flag.Int("min-year", 2000, "first year to check")
	maxYear := flag.Int("max-year", 2000, "last year to check")
	remote := flag.String("check-remote", "", "also probe the archive bucket at this S3 endpoint (\"default\" for AWS)")
	flag.Parse()

	os.Exit(run(*storage, *label, *parameter, *minYear, *maxYear, *remote))
}

func run(storage, label, parameter string, minYear, maxYear int, remote string) int {
	fmt.Println("=== ERA5 Artifact Validation ===")
	fmt.Println()

	region, err := domain.DefaultRegistry().Lookup(label)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	codec := ncfile.NewCodec()
	keys := domain.MonthlyKeys(parameter, minYear, maxYear)
	load := &phase{name: "Load artifacts and raw files"}
	units := loadUnits(load, codec, storage, region, keys)
	if len(units) == 0 {
		fmt.Fprintf(os.Stderr, "FATAL: no artifacts found in %s for %d units\n", storage, len(keys))
		return 1
	}

	phases := []*phase{
		load,
		validateAxes(units),
		validateCounts(units),
		validateValues(units),
	}
	if remote != "" {
		phases = append(phases, validateRemote(remote, units))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Units: %d requested, %d artifacts checked\n", len(keys), len(units))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadUnits(p *phase, codec *ncfile.Codec, storage string, region domain.Region, keys []domain.ArchiveKey) []unit {
	var units []unit
	for _, key := range keys {
		artifactPath := filepath.Join(storage, key.ArtifactFileName())
		if _, err := os.Stat(artifactPath); errors.Is(err, os.ErrNotExist) {
			continue
		}
		artifact, err := codec.Read(artifactPath)
		if err != nil {
			p.errorf("%s: read artifact: %v", key, err)
			continue
		}
		raw, err := codec.ReadSelected(filepath.Join(storage, key.CacheFileName()), func(lat, lon []float64) (domain.Selection, error) {
			return domain.SelectRegion(lat, lon, region)
		})
		if err != nil {
			p.errorf("%s: read raw file: %v", key, err)
			continue
		}
		units = append(units, unit{key: key, raw: raw, artifact: artifact})
	}
	return units
}

func validateAxes(units []unit) *phase {
	p := &phase{name: "Axes strictly ascending, lon in [-180,180)"}
	for _, u := range units {
		if err := domain.CheckMonotonic(u.artifact); err != nil {
			p.errorf("%s: %v", u.key, err)
		}
		lon, err := u.artifact.Longitudes()
		if err != nil {
			p.errorf("%s: %v", u.key, err)
			continue
		}
		for _, x := range lon {
			if x < -180 || x >= 180 {
				p.errorf("%s: longitude %g outside [-180,180)", u.key, x)
				break
			}
		}
	}
	return p
}

func validateCounts(units []unit) *phase {
	p := &phase{name: "Point counts match region"}
	for _, u := range units {
		for _, dim := range []struct{ name, raw, art string }{
			{"latitude", u.raw.LatDim, u.artifact.LatDim},
			{"longitude", u.raw.LonDim, u.artifact.LonDim},
		} {
			if want, got := u.raw.DimLen(dim.raw), u.artifact.DimLen(dim.art); want != got {
				p.errorf("%s: %s count %d, want %d", u.key, dim.name, got, want)
			}
		}
	}
	return p
}

func validateValues(units []unit) *phase {
	p := &phase{name: "Values match raw at wrapped coordinates"}
	for _, u := range units {
		for _, msg := range compareUnit(u) {
			p.errorf("%s: %s", u.key, msg)
		}
	}
	return p
}

// maxMismatches caps how many mismatches are reported per variable.
const maxMismatches = 5

// compareUnit checks every data variable point by point. Only the first few
// mismatches per variable are reported.
func compareUnit(u unit) []string {
	rawLat, _ := u.raw.Latitudes()
	rawLon, _ := u.raw.Longitudes()
	artLat, _ := u.artifact.Latitudes()
	artLon, _ := u.artifact.Longitudes()

	g := gridIndex{
		artLat: artLat,
		artLon: artLon,
		rny:    len(rawLat),
		rnx:    len(rawLon),
		latIdx: indexOf(rawLat),
		lonIdx: make(map[float64]int, len(rawLon)),
	}
	for j, x := range rawLon {
		g.lonIdx[domain.UnwrapLongitude(x)] = j
	}

	var msgs []string
	for _, av := range u.artifact.DataVars() {
		if n := len(av.Dims); n < 2 || av.Dims[n-2] != u.artifact.LatDim || av.Dims[n-1] != u.artifact.LonDim {
			continue
		}
		rv := u.raw.Var(av.Name)
		if rv == nil {
			msgs = append(msgs, fmt.Sprintf("variable %q missing from raw file", av.Name))
			continue
		}
		a, errA := domain.Float64s(av.Values)
		r, errR := domain.Float64s(rv.Values)
		if errA != nil || errR != nil {
			msgs = append(msgs, fmt.Sprintf("variable %q: non-numeric values", av.Name))
			continue
		}
		msgs = append(msgs, g.compare(av.Name, a, r)...)
	}
	return msgs
}

// gridIndex maps artifact coordinates back to raw grid positions.
type gridIndex struct {
	artLat, artLon []float64
	rny, rnx       int
	latIdx         map[float64]int
	lonIdx         map[float64]int
}

// compare reports at most maxMismatches differences between the artifact
// values a and the raw values r of one variable.
func (g gridIndex) compare(name string, a, r []float64) []string {
	ny, nx := len(g.artLat), len(g.artLon)
	if ny == 0 || nx == 0 {
		return nil
	}
	var msgs []string
	steps := len(a) / (ny * nx)
	for k := 0; k < steps; k++ {
		for i, y := range g.artLat {
			ri, ok := g.latIdx[y]
			if !ok {
				msgs = append(msgs, fmt.Sprintf("latitude %g not in raw grid", y))
				if len(msgs) >= maxMismatches {
					return msgs
				}
				continue
			}
			for j, x := range g.artLon {
				rj, ok := g.lonIdx[domain.UnwrapLongitude(x)]
				if !ok {
					msgs = append(msgs, fmt.Sprintf("longitude %g not in raw grid", x))
					if len(msgs) >= maxMismatches {
						return msgs
					}
					break
				}
				got, want := a[(k*ny+i)*nx+j], r[(k*g.rny+ri)*g.rnx+rj]
				if got != want && !(math.IsNaN(got) && math.IsNaN(want)) {
					msgs = append(msgs, fmt.Sprintf("%s[%d, %g, %g] = %g, raw %g", name, k, y, x, got, want))
					if len(msgs) >= maxMismatches {
						return msgs
					}
				}
			}
		}
	}
	return msgs
}

func indexOf(xs []float64) map[float64]int {
	m := make(map[float64]int, len(xs))
	for i, x := range xs {
		m[x] = i
	}
	return m
}

func validateRemote(endpoint string, units []unit) *phase {
	p := &phase{name: "Source objects exist in archive"}
	if endpoint == "default" {
		endpoint = ""
	}
	client := objectstore.NewClient(endpoint, 30*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, u := range units {
		ok, err := client.Exists(context.Background(), u.key)
		switch {
		case err != nil:
			p.errorf("%s: %v", u.key, err)
		case !ok:
			p.errorf("%s: %s not found", u.key, client.Location(u.key))
		}
	}
	return p
}
