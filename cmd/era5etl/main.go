// Command era5etl fetches monthly ERA5 fields for a year range, crops them to
// a named region, normalizes longitude to [-180,180) and writes one artifact
// per month into the storage directory.
//
// Usage:
//
//	era5etl -region NorthAtlantic -parameter sea_surface_temperature \
//	  -min-year 2000 -max-year 2001 -storage-path /data/era5
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/couchcryptid/era5-etl/internal/adapter/cds"
	httpadapter "github.com/couchcryptid/era5-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/era5-etl/internal/adapter/kafka"
	"github.com/couchcryptid/era5-etl/internal/adapter/ncfile"
	"github.com/couchcryptid/era5-etl/internal/adapter/objectstore"
	"github.com/couchcryptid/era5-etl/internal/config"
	"github.com/couchcryptid/era5-etl/internal/domain"
	"github.com/couchcryptid/era5-etl/internal/observability"
	"github.com/couchcryptid/era5-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	registry := domain.DefaultRegistry()
	flag.StringVar(&cfg.Region, "region", cfg.Region, "region label: "+strings.Join(registry.Labels(), ", "))
	flag.StringVar(&cfg.Parameter, "parameter", cfg.Parameter, "ERA5 parameter name")
	flag.StringVar(&cfg.StoragePath, "storage-path", cfg.StoragePath, "directory for raw, temporary and final files")
	flag.IntVar(&cfg.MinYear, "min-year", cfg.MinYear, "first year to process")
	flag.IntVar(&cfg.MaxYear, "max-year", cfg.MaxYear, "last year to process")
	flag.StringVar(&cfg.Source, "source", cfg.Source, "archive source: s3 or cds")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	if code := run(cfg, registry, logger); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, registry *domain.Registry, logger *slog.Logger) int {
	region, err := registry.Lookup(cfg.Region)
	if err != nil {
		logger.Error("region lookup failed", "error", err)
		return 1
	}
	if err := os.MkdirAll(cfg.StoragePath, 0o755); err != nil {
		logger.Error("create storage path", "path", cfg.StoragePath, "error", err)
		return 1
	}

	metrics := observability.NewMetrics()
	retriever, err := newRetriever(cfg, region, logger)
	if err != nil {
		logger.Error("configure retriever", "error", err)
		return 1
	}

	opts := pipeline.Options{Label: cfg.Region, Region: region, RemoveRaw: cfg.RemoveRaw}
	if len(cfg.KafkaBrokers) > 0 {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		opts.Notifier = writer
		logger.Info("artifact notifications enabled", "topic", cfg.KafkaTopic)
	}

	codec := ncfile.NewCodec()
	p := pipeline.New(
		pipeline.NewFetcher(retriever, cfg.StoragePath, logger, metrics),
		pipeline.NewSelector(codec, metrics),
		pipeline.NewNormalizer(codec, cfg.StoragePath),
		pipeline.NewStore(codec, cfg.StoragePath, logger),
		opts,
		logger,
		metrics,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	keys := domain.MonthlyKeys(cfg.Parameter, cfg.MinYear, cfg.MaxYear)
	report, err := p.Run(ctx, keys)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("interrupted", "completed", len(report.Completed))
		return 130
	case err != nil:
		logger.Error("pipeline stopped", "error", err)
		return 1
	case len(report.Failed) > 0:
		return 1
	}
	return 0
}

func newRetriever(cfg *config.Config, region domain.Region, logger *slog.Logger) (pipeline.Retriever, error) {
	switch cfg.Source {
	case config.SourceS3:
		return objectstore.NewClient(cfg.S3Endpoint, cfg.FetchTimeout, logger), nil
	case config.SourceCDS:
		return cds.NewClient(cfg.CDSAPIURL, cfg.CDSAPIKey, region, cfg.CDSPollInterval, logger), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}
