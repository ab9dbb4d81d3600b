package domain

import (
	"fmt"
	"math"
	"sort"
)

// Region is a bounding box in degrees with longitude in [-180,180).
type Region struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Validate checks bound ordering and ranges.
func (r Region) Validate() error {
	if r.MinLat > r.MaxLat {
		return fmt.Errorf("min_lat %g > max_lat %g", r.MinLat, r.MaxLat)
	}
	if r.MinLon > r.MaxLon {
		return fmt.Errorf("min_lon %g > max_lon %g", r.MinLon, r.MaxLon)
	}
	if r.MinLat < -90 || r.MaxLat > 90 {
		return fmt.Errorf("latitude bounds [%g, %g] outside [-90, 90]", r.MinLat, r.MaxLat)
	}
	if r.MinLon < -180 || r.MaxLon >= 180 {
		return fmt.Errorf("longitude bounds [%g, %g] outside [-180, 180)", r.MinLon, r.MaxLon)
	}
	return nil
}

// Interval is a closed range of longitudes in the [0,360) source domain.
type Interval struct {
	Lo, Hi float64
}

// Contains reports whether x lies in [Lo, Hi].
func (iv Interval) Contains(x float64) bool {
	return x >= iv.Lo && x <= iv.Hi
}

// SourceIntervals translates the longitude bounds into the source domain.
// A box that crosses the seam comes back as [lo, 360] and [0, hi].
func (r Region) SourceIntervals() []Interval {
	lo, hi := UnwrapLongitude(r.MinLon), UnwrapLongitude(r.MaxLon)
	if lo <= hi {
		return []Interval{{Lo: lo, Hi: hi}}
	}
	return []Interval{{Lo: lo, Hi: 360}, {Lo: 0, Hi: hi}}
}

// Area is the archive-service request encoding [min_lat, min_lon, max_lat, max_lon].
func (r Region) Area() [4]float64 {
	return [4]float64{r.MinLat, r.MinLon, r.MaxLat, r.MaxLon}
}

// UnwrapLongitude reduces x into [0,360).
func UnwrapLongitude(x float64) float64 {
	m := math.Mod(x, 360)
	if m < 0 {
		m += 360
	}
	return m
}

// WrapLongitude folds x into [-180,180).
func WrapLongitude(x float64) float64 {
	return UnwrapLongitude(x+180) - 180
}

// Registry maps region labels to boxes. It is read-only after construction.
type Registry struct {
	regions map[string]Region
}

// NewRegistry validates and copies the given boxes.
func NewRegistry(regions map[string]Region) (*Registry, error) {
	r := &Registry{regions: make(map[string]Region, len(regions))}
	for label, box := range regions {
		if err := box.Validate(); err != nil {
			return nil, fmt.Errorf("region %q: %w", label, err)
		}
		r.regions[label] = box
	}
	return r, nil
}

// DefaultRegistry holds the boxes used by past projects.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(map[string]Region{
		"NorthSea":      {MinLat: 49, MaxLat: 62, MinLon: 10, MaxLon: 12},
		"BVI":           {MinLat: 13, MaxLat: 25, MinLon: -70, MaxLon: -60},
		"NorthAtlantic": {MinLat: 40, MaxLat: 70, MinLon: -60, MaxLon: 25},
		"Ukraine":       {MinLat: 43, MaxLat: 53, MinLon: 20, MaxLon: 42},
	})
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the box registered under label.
func (r *Registry) Lookup(label string) (Region, error) {
	box, ok := r.regions[label]
	if !ok {
		return Region{}, fmt.Errorf("%w: %q (known: %v)", ErrUnknownRegion, label, r.Labels())
	}
	return box, nil
}

// Labels returns the registered labels in sorted order.
func (r *Registry) Labels() []string {
	labels := make([]string, 0, len(r.regions))
	for label := range r.regions {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
