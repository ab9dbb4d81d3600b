package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/era5-etl/internal/domain"
)

// Store writes final artifacts and clears the temporary file behind them.
type Store struct {
	codec  Codec
	dir    string
	logger *slog.Logger
}

func NewStore(codec Codec, dir string, logger *slog.Logger) *Store {
	return &Store{codec: codec, dir: dir, logger: logger}
}

// ArtifactPath is where the final field for key is written.
func (s *Store) ArtifactPath(key domain.ArchiveKey) string {
	return filepath.Join(s.dir, key.ArtifactFileName())
}

// Persist writes f as the artifact for key. tempPath is removed only once
// the artifact is confirmed on disk; on any failure it stays for diagnosis.
func (s *Store) Persist(f *domain.Field, key domain.ArchiveKey, tempPath string) (string, error) {
	if err := domain.CheckMonotonic(f); err != nil {
		return "", err
	}

	path := s.ArtifactPath(key)
	if err := s.codec.Write(path, f); err != nil {
		return "", fmt.Errorf("%w: artifact: %w", domain.ErrWrite, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: confirm artifact: %w", domain.ErrWrite, err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("%w: artifact %s is empty", domain.ErrWrite, path)
	}

	if tempPath != "" {
		if err := os.Remove(tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: remove temp artifact: %w", domain.ErrWrite, err)
		}
	}
	s.logger.Info("artifact written", "key", key.String(), "path", path, "bytes", info.Size())
	return path, nil
}
