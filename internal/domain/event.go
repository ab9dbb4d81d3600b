package domain

import "time"

// ArtifactEvent announces a persisted artifact to downstream consumers.
type ArtifactEvent struct {
	Parameter string    `json:"parameter"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Region    string    `json:"region"`
	Bounds    Region    `json:"bounds"`
	Path      string    `json:"path"`
	LatCount  int       `json:"lat_count"`
	LonCount  int       `json:"lon_count"`
	CreatedAt time.Time `json:"created_at"`
}

// NewArtifactEvent describes the artifact written for key.
func NewArtifactEvent(key ArchiveKey, label string, bounds Region, path string, f *Field) ArtifactEvent {
	return ArtifactEvent{
		Parameter: key.Parameter,
		Year:      key.Year,
		Month:     key.Month,
		Region:    label,
		Bounds:    bounds,
		Path:      path,
		LatCount:  f.DimLen(f.LatDim),
		LonCount:  f.DimLen(f.LonDim),
		CreatedAt: clock.Now().UTC(),
	}
}
