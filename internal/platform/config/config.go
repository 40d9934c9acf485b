// Package config loads the console configuration from AGROCONSOLE_*
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"agroconsole/internal/blob"
	"agroconsole/internal/core"
	"agroconsole/internal/infra/blob/s3"
)

// Config is the process configuration. CLI flags override individual fields
// after Load.
type Config struct {
	Storage StorageConfig `envPrefix:"STORAGE_"`
	Blob    BlobConfig    `envPrefix:"BLOB_"`

	HTTPAddr  string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER" envDefault:"agroconsole"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`

	Seed            bool          `env:"SEED" envDefault:"true"`
	ExportQueueSize int           `env:"EXPORT_QUEUE_SIZE" envDefault:"32"`
	ExportURLExpiry time.Duration `env:"EXPORT_URL_EXPIRY" envDefault:"15m"`
}

// StorageConfig selects the record store.
type StorageConfig struct {
	Driver      string `env:"DRIVER" envDefault:"memory"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"agroconsole.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`
	BoltPath    string `env:"BOLT_PATH"`
}

// BlobConfig selects the export artifact store.
type BlobConfig struct {
	Driver string `env:"DRIVER" envDefault:"memory"`
	FSRoot string `env:"FS_ROOT"`

	S3Bucket          string `env:"S3_BUCKET"`
	S3Region          string `env:"S3_REGION"`
	S3Endpoint        string `env:"S3_ENDPOINT"`
	S3Prefix          string `env:"S3_PREFIX"`
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	S3PathStyle       bool   `env:"S3_PATH_STYLE"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "AGROCONSOLE_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks driver names and the settings each driver needs.
func (c Config) Validate() error {
	switch core.StorageDriver(c.Storage.Driver) {
	case core.StorageMemory, core.StorageSQLite:
	case core.StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("postgres storage requires AGROCONSOLE_STORAGE_POSTGRES_DSN")
		}
	case core.StorageBolt:
		if c.Storage.BoltPath == "" {
			return fmt.Errorf("bolt storage requires AGROCONSOLE_STORAGE_BOLT_PATH")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch blob.Driver(c.Blob.Driver) {
	case blob.DriverMemory:
	case blob.DriverFilesystem:
		if c.Blob.FSRoot == "" {
			return fmt.Errorf("fs blob store requires AGROCONSOLE_BLOB_FS_ROOT")
		}
	case blob.DriverS3:
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("s3 blob store requires AGROCONSOLE_BLOB_S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.ExportQueueSize <= 0 {
		return fmt.Errorf("export queue size must be positive")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}

// StorageConfig converts to the core storage settings.
func (c Config) StorageConfig() core.StorageConfig {
	return core.StorageConfig{
		Driver:      core.StorageDriver(c.Storage.Driver),
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
		BoltPath:    c.Storage.BoltPath,
	}
}

// BlobConfig converts to the blob facade settings.
func (c Config) BlobConfig() blob.Config {
	return blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: s3.Config{
			Bucket:          c.Blob.S3Bucket,
			Region:          c.Blob.S3Region,
			Endpoint:        c.Blob.S3Endpoint,
			Prefix:          c.Blob.S3Prefix,
			AccessKeyID:     c.Blob.S3AccessKeyID,
			SecretAccessKey: c.Blob.S3SecretAccessKey,
			PathStyle:       c.Blob.S3PathStyle,
		},
	}
}

// AuthEnabled reports whether bearer tokens are required.
func (c Config) AuthEnabled() bool { return strings.TrimSpace(c.JWTSecret) != "" }
