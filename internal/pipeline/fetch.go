package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/era5-etl/internal/domain"
	"github.com/couchcryptid/era5-etl/internal/observability"
)

// Fetcher keeps a local cache of raw monthly files. A file under the cache
// name is only ever complete: downloads land in a .part file first.
type Fetcher struct {
	retriever Retriever
	dir       string
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewFetcher creates a Fetcher caching into dir.
func NewFetcher(r Retriever, dir string, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{retriever: r, dir: dir, logger: logger, metrics: metrics}
}

// CachePath is where the raw file for key lives.
func (f *Fetcher) CachePath(key domain.ArchiveKey) string {
	return filepath.Join(f.dir, key.CacheFileName())
}

// Fetch returns the cached raw file for key, downloading it on a miss.
func (f *Fetcher) Fetch(ctx context.Context, key domain.ArchiveKey) (string, error) {
	path := f.CachePath(key)
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		f.metrics.CacheLookups.WithLabelValues("hit").Inc()
		f.logger.Info("raw cache hit", "key", key.String(), "path", path)
		return path, nil
	}
	f.metrics.CacheLookups.WithLabelValues("miss").Inc()

	start := time.Now()
	n, err := f.download(ctx, key, path)
	if err != nil {
		return "", err
	}
	f.metrics.BytesFetched.Add(float64(n))
	f.logger.Info("raw file fetched", "key", key.String(), "bytes", n, "duration", time.Since(start))
	return path, nil
}

func (f *Fetcher) download(ctx context.Context, key domain.ArchiveKey, path string) (int64, error) {
	part := path + ".part"
	out, err := os.Create(part)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %w", domain.ErrWrite, part, err)
	}

	cw := &countingWriter{w: out}
	if err := f.retriever.Retrieve(ctx, key, cw); err != nil {
		_ = out.Close()
		_ = os.Remove(part)
		if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrRetrieval) {
			err = fmt.Errorf("%w: %s: %w", domain.ErrRetrieval, key, err)
		}
		return 0, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("%w: close %s: %w", domain.ErrWrite, part, err)
	}
	if err := os.Rename(part, path); err != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("%w: rename %s: %w", domain.ErrWrite, part, err)
	}
	return cw.n, nil
}

// Evict removes the cached raw file for key. A missing file is not an error.
func (f *Fetcher) Evict(key domain.ArchiveKey) error {
	if err := os.Remove(f.CachePath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove raw cache: %w", domain.ErrWrite, err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
