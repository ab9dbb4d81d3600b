// Package objectstore downloads monthly files from the public ERA5 bucket.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/couchcryptid/era5-etl/internal/domain"
)

const (
	// DefaultBucket is the public ERA5 reanalysis bucket.
	DefaultBucket = "era5-pds"

	// DefaultRegion is the bucket's AWS region.
	DefaultRegion = "us-east-1"
)

// Client implements pipeline.Retriever against the ERA5 S3 bucket.
// Requests are unsigned; the bucket is public.
type Client struct {
	s3     *s3.Client
	bucket string
	logger *slog.Logger
}

// NewClient creates a bucket client. An empty endpoint uses AWS; any other
// endpoint is addressed path-style. A zero timeout means no timeout.
func NewClient(endpoint string, timeout time.Duration, logger *slog.Logger, optFns ...func(*s3.Options)) *Client {
	opts := s3.Options{
		Region:      DefaultRegion,
		Credentials: aws.AnonymousCredentials{},
		HTTPClient:  &http.Client{Timeout: timeout},
	}
	if endpoint != "" {
		opts.BaseEndpoint = aws.String(endpoint)
		opts.UsePathStyle = true
	}
	return &Client{
		s3:     s3.New(opts, optFns...),
		bucket: DefaultBucket,
		logger: logger,
	}
}

// Location is the s3:// address of the key's object.
func (c *Client) Location(key domain.ArchiveKey) string {
	return "s3://" + c.bucket + "/" + key.ObjectKey()
}

// Retrieve streams the key's object into w.
func (c *Client) Retrieve(ctx context.Context, key domain.ArchiveKey, w io.Writer) error {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key.ObjectKey()),
	})
	if err != nil {
		return classify(key, err)
	}
	defer out.Body.Close()

	c.logger.Info("downloading object", "key", key.ObjectKey(), "size", aws.ToInt64(out.ContentLength))
	if _, err := io.Copy(w, out.Body); err != nil {
		return fmt.Errorf("%w: copy %s: %w", domain.ErrRetrieval, key.ObjectKey(), err)
	}
	return nil
}

// Exists probes the key's object with a HEAD request.
func (c *Client) Exists(ctx context.Context, key domain.ArchiveKey) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key.ObjectKey()),
	})
	if err == nil {
		return true, nil
	}
	err = classify(key, err)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// classify maps a missing object to ErrNotFound and everything else,
// access denial included, to ErrRetrieval.
func classify(key domain.ArchiveKey, err error) error {
	var (
		noKey    *types.NoSuchKey
		notFound *types.NotFound
		respErr  *awshttp.ResponseError
	)
	switch {
	case errors.As(err, &noKey), errors.As(err, &notFound):
		return fmt.Errorf("%w: %s", domain.ErrNotFound, key.ObjectKey())
	case errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, key.ObjectKey())
	case errors.As(err, &respErr):
		return fmt.Errorf("%w: %s: status %d: %w", domain.ErrRetrieval, key.ObjectKey(), respErr.HTTPStatusCode(), err)
	default:
		return fmt.Errorf("%w: %s: %w", domain.ErrRetrieval, key.ObjectKey(), err)
	}
}
