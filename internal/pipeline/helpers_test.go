package pipeline_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/couchcryptid/era5-etl/internal/domain"
	"github.com/couchcryptid/era5-etl/internal/observability"
	"github.com/couchcryptid/era5-etl/internal/pipeline"
	"github.com/stretchr/testify/require"
)

var northAtlantic = domain.Region{MinLat: 40, MaxLat: 70, MinLon: -60, MaxLon: 25}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func key(year, month int) domain.ArchiveKey {
	return domain.ArchiveKey{Year: year, Month: month, Parameter: "sea_surface_temperature"}
}

// encode gives every grid point a value that identifies its source labels.
func encode(lat, lon float64) float32 {
	return float32((lat+90)*1000 + lon)
}

// rawField is a 1° grid in the archive layout: latitude descending from
// maxLat to minLat, longitude 0..359.
func rawField(t *testing.T, minLat, maxLat int) *domain.Field {
	t.Helper()
	var lat []float32
	for y := maxLat; y >= minLat; y-- {
		lat = append(lat, float32(y))
	}
	lon := make([]float32, 360)
	for x := range lon {
		lon[x] = float32(x)
	}
	data := make([]float32, 0, len(lat)*len(lon))
	for _, y := range lat {
		for _, x := range lon {
			data = append(data, encode(float64(y), float64(x)))
		}
	}
	f, err := domain.NewField(
		[]domain.Dim{{Name: "time0", Len: 1}, {Name: "lat", Len: len(lat)}, {Name: "lon", Len: len(lon)}},
		[]*domain.Variable{
			{Name: "time0", Dims: []string{"time0"}, Values: []float64{0}},
			{Name: "lat", Dims: []string{"lat"}, Values: lat},
			{Name: "lon", Dims: []string{"lon"}, Values: lon},
			{Name: "sst", Dims: []string{"time0", "lat", "lon"}, Values: data},
		},
		nil,
	)
	require.NoError(t, err)
	return f
}

// memCodec keeps fields in memory by file name and writes a marker file so
// the stages see real paths on disk.
type memCodec struct {
	mu        sync.Mutex
	fields    map[string]*domain.Field
	writeErrs map[string]error
	events    []string
	dir       string
}

func newMemCodec(dir string) *memCodec {
	return &memCodec{fields: map[string]*domain.Field{}, writeErrs: map[string]error{}, dir: dir}
}

func (c *memCodec) putRaw(t *testing.T, k domain.ArchiveKey, f *domain.Field) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fields[k.CacheFileName()] = f
}

func (c *memCodec) Write(path string, f *domain.Field) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	name := filepath.Base(path)
	c.events = append(c.events, fmt.Sprintf("write %s (on disk: %v)", name, c.onDisk()))
	if err := c.writeErrs[name]; err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte("CDF\x01"+name), 0o600); err != nil {
		return err
	}
	c.fields[name] = f
	return nil
}

func (c *memCodec) Read(path string) (*domain.Field, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.fields[filepath.Base(path)]
	if !ok {
		return nil, fmt.Errorf("%w: no field registered for %s", domain.ErrInvalidField, path)
	}
	return f, nil
}

func (c *memCodec) ReadSelected(path string, choose domain.Chooser) (*domain.Field, error) {
	f, err := c.Read(path)
	if err != nil {
		return nil, err
	}
	lat, err := f.Latitudes()
	if err != nil {
		return nil, err
	}
	lon, err := f.Longitudes()
	if err != nil {
		return nil, err
	}
	sel, err := choose(lat, lon)
	if err != nil {
		return nil, err
	}
	return f.Take(sel)
}

func (c *memCodec) field(name string) *domain.Field {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fields[name]
}

// onDisk lists the .nc files present in the storage directory.
func (c *memCodec) onDisk() []string {
	entries, _ := os.ReadDir(c.dir)
	var names []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".nc" {
			names = append(names, e.Name())
		}
	}
	return names
}

// fakeRetriever writes a marker payload and counts calls per key.
type fakeRetriever struct {
	mu    sync.Mutex
	calls map[domain.ArchiveKey]int
	errs  map[domain.ArchiveKey]error
}

func newFakeRetriever() *fakeRetriever {
	return &fakeRetriever{calls: map[domain.ArchiveKey]int{}, errs: map[domain.ArchiveKey]error{}}
}

func (r *fakeRetriever) Retrieve(_ context.Context, k domain.ArchiveKey, w io.Writer) error {
	r.mu.Lock()
	r.calls[k]++
	err := r.errs[k]
	r.mu.Unlock()

	if err != nil {
		_, _ = w.Write([]byte("partial"))
		return err
	}
	_, werr := w.Write([]byte("CDF\x01raw " + k.String()))
	return werr
}

func (r *fakeRetriever) callCount(k domain.ArchiveKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[k]
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.ArtifactEvent
	err    error
}

func (n *fakeNotifier) Notify(_ context.Context, e domain.ArtifactEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

type harness struct {
	dir       string
	codec     *memCodec
	retriever *fakeRetriever
	notifier  *fakeNotifier
	metrics   *observability.Metrics
	pipeline  *pipeline.Pipeline
}

func newHarness(t *testing.T, region domain.Region, removeRaw bool) *harness {
	t.Helper()
	h := &harness{
		dir:       t.TempDir(),
		retriever: newFakeRetriever(),
		notifier:  &fakeNotifier{},
		metrics:   observability.NewMetricsForTesting(),
	}
	h.codec = newMemCodec(h.dir)
	h.pipeline = newPipeline(h.dir, h.retriever, h.codec, region, removeRaw, h.notifier, h.metrics)
	return h
}

func newPipeline(dir string, r pipeline.Retriever, codec pipeline.Codec, region domain.Region, removeRaw bool, n pipeline.Notifier, metrics *observability.Metrics) *pipeline.Pipeline {
	logger := discardLogger()
	return pipeline.New(
		pipeline.NewFetcher(r, dir, logger, metrics),
		pipeline.NewSelector(codec, metrics),
		pipeline.NewNormalizer(codec, dir),
		pipeline.NewStore(codec, dir, logger),
		pipeline.Options{Label: "test", Region: region, RemoveRaw: removeRaw, Notifier: n},
		logger,
		metrics,
	)
}

func (h *harness) path(name string) string {
	return filepath.Join(h.dir, name)
}

func exists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	require.ErrorIs(t, err, os.ErrNotExist)
	return false
}

func writeMarker(path string) error {
	return os.WriteFile(path, []byte("CDF\x01cached"), 0o600)
}
