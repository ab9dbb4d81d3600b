package pipeline

import (
	"fmt"

	"github.com/couchcryptid/era5-etl/internal/domain"
	"github.com/couchcryptid/era5-etl/internal/observability"
)

// Selector crops a raw file to a region while reading it, so the full
// global grid is never held in memory.
type Selector struct {
	codec   Codec
	metrics *observability.Metrics
}

func NewSelector(codec Codec, metrics *observability.Metrics) *Selector {
	return &Selector{codec: codec, metrics: metrics}
}

// Select reads the points of rawPath inside r.
func (s *Selector) Select(rawPath string, r domain.Region) (*domain.Field, error) {
	f, err := s.codec.ReadSelected(rawPath, func(lat, lon []float64) (domain.Selection, error) {
		return domain.SelectRegion(lat, lon, r)
	})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", rawPath, err)
	}
	s.metrics.SelectedPoints.WithLabelValues("lat").Set(float64(f.DimLen(f.LatDim)))
	s.metrics.SelectedPoints.WithLabelValues("lon").Set(float64(f.DimLen(f.LonDim)))
	return f, nil
}
