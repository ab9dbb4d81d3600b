package pipeline

import (
	"fmt"
	"path/filepath"

	"github.com/couchcryptid/era5-etl/internal/domain"
)

// Normalizer rewrites a cropped field into [-180,180) longitude with both
// axes ascending, in two passes through a temporary file on disk.
type Normalizer struct {
	codec Codec
	dir   string
}

func NewNormalizer(codec Codec, dir string) *Normalizer {
	return &Normalizer{codec: codec, dir: dir}
}

// TempPath is the intermediate file for key.
func (n *Normalizer) TempPath(key domain.ArchiveKey) string {
	return filepath.Join(n.dir, key.TempFileName())
}

// Normalize relabels longitude, persists the unsorted result, then reads it
// back in coordinate order. The temporary file is left for the Store.
func (n *Normalizer) Normalize(f *domain.Field, key domain.ArchiveKey) (*domain.Field, string, error) {
	relabelled, err := domain.RelabelLongitude(f)
	if err != nil {
		return nil, "", err
	}

	tmp := n.TempPath(key)
	if err := n.codec.Write(tmp, relabelled); err != nil {
		return nil, "", fmt.Errorf("%w: temp artifact: %w", domain.ErrWrite, err)
	}

	sorted, err := n.codec.ReadSelected(tmp, domain.SortSelection)
	if err != nil {
		return nil, tmp, fmt.Errorf("sort %s: %w", tmp, err)
	}
	return sorted, tmp, nil
}
