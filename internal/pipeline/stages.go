package pipeline

import (
	"context"
	"io"

	"github.com/couchcryptid/era5-etl/internal/domain"
)

// Retriever streams the raw monthly file for key into w. Implementations
// wrap failures with domain.ErrNotFound or domain.ErrRetrieval.
type Retriever interface {
	Retrieve(ctx context.Context, key domain.ArchiveKey, w io.Writer) error
}

// Codec reads and writes fields in the container format.
type Codec interface {
	Read(path string) (*domain.Field, error)
	ReadSelected(path string, choose domain.Chooser) (*domain.Field, error)
	Write(path string, f *domain.Field) error
}

// Notifier announces persisted artifacts.
type Notifier interface {
	Notify(ctx context.Context, event domain.ArtifactEvent) error
}
