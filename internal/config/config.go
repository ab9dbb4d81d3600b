package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Archive sources.
const (
	SourceS3  = "s3"
	SourceCDS = "cds"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	Region      string
	Parameter   string
	MinYear     int
	MaxYear     int
	StoragePath string
	Source      string
	RemoveRaw   bool

	S3Endpoint      string
	CDSAPIURL       string
	CDSAPIKey       string
	CDSPollInterval time.Duration
	FetchTimeout    time.Duration

	// Kafka notifications are disabled when KafkaBrokers is empty.
	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	minYear, err := parseInt("ERA5_MIN_YEAR", "1979")
	if err != nil {
		return nil, err
	}
	maxYear, err := parseInt("ERA5_MAX_YEAR", "2020")
	if err != nil {
		return nil, err
	}

	pollInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("CDS_POLL_INTERVAL", "5s"))
	if err != nil || pollInterval <= 0 {
		return nil, errors.New("invalid CDS_POLL_INTERVAL")
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "0s"))
	if err != nil || fetchTimeout < 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	removeRaw, err := strconv.ParseBool(sharedcfg.EnvOrDefault("REMOVE_RAW", "true"))
	if err != nil {
		return nil, errors.New("invalid REMOVE_RAW")
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		Region:      sharedcfg.EnvOrDefault("ERA5_REGION", "NorthAtlantic"),
		Parameter:   sharedcfg.EnvOrDefault("ERA5_PARAMETER", "sea_surface_temperature"),
		MinYear:     minYear,
		MaxYear:     maxYear,
		StoragePath: sharedcfg.EnvOrDefault("ERA5_STORAGE_PATH", "."),
		Source:      sharedcfg.EnvOrDefault("ERA5_SOURCE", SourceS3),
		RemoveRaw:   removeRaw,

		S3Endpoint:      os.Getenv("ERA5_S3_ENDPOINT"),
		CDSAPIURL:       os.Getenv("CDS_API_URL"),
		CDSAPIKey:       os.Getenv("CDS_API_KEY"),
		CDSPollInterval: pollInterval,
		FetchTimeout:    fetchTimeout,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "era5-artifacts"),

		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the cross-field rules. It runs again after flag overrides.
func (c *Config) Validate() error {
	if c.MinYear > c.MaxYear {
		return fmt.Errorf("ERA5_MIN_YEAR %d is after ERA5_MAX_YEAR %d", c.MinYear, c.MaxYear)
	}
	switch c.Source {
	case SourceS3:
	case SourceCDS:
		if c.CDSAPIKey == "" {
			return errors.New("ERA5_SOURCE is cds but CDS_API_KEY is not set")
		}
	default:
		return fmt.Errorf("unknown ERA5_SOURCE %q (want %s or %s)", c.Source, SourceS3, SourceCDS)
	}
	if c.StoragePath == "" {
		return errors.New("ERA5_STORAGE_PATH is required")
	}
	if c.Parameter == "" {
		return errors.New("ERA5_PARAMETER is required")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func parseInt(name, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(name, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}
