// Package config loads cratecore runtime configuration from the
// environment. Every knob has a working default so a bare process starts
// with an embedded sqlite database and no external services.
package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime configuration for a cratecore deployment.
type Config struct {
	// StorageDriver selects the persistence backend: memory, sqlite, or
	// postgres.
	StorageDriver string `env:"CRATECORE_STORAGE_DRIVER" envDefault:"sqlite"`
	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `env:"CRATECORE_SQLITE_PATH" envDefault:"cratecore.db"`
	// PostgresDSN is the connection string used by the postgres driver.
	PostgresDSN string `env:"CRATECORE_POSTGRES_DSN"`

	// BlobDriver selects the archive artifact store: memory, fs, or s3.
	BlobDriver string `env:"CRATECORE_BLOB_DRIVER" envDefault:"memory"`
	// BlobFSRoot is the root directory used by the fs blob driver.
	BlobFSRoot string `env:"CRATECORE_BLOB_FS_ROOT" envDefault:"data/blobs"`

	// S3 settings for the s3 blob driver. Endpoint supports MinIO-style
	// deployments; empty means the AWS default.
	S3Bucket          string `env:"CRATECORE_S3_BUCKET"`
	S3Region          string `env:"CRATECORE_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"CRATECORE_S3_ENDPOINT"`
	S3AccessKeyID     string `env:"CRATECORE_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"CRATECORE_S3_SECRET_ACCESS_KEY"`
	S3UsePathStyle    bool   `env:"CRATECORE_S3_USE_PATH_STYLE" envDefault:"true"`

	// KafkaBrokers enables the event stream mirror when non-empty.
	KafkaBrokers []string `env:"CRATECORE_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"CRATECORE_KAFKA_TOPIC" envDefault:"cratecore.events"`
}

// Load parses configuration from the environment and validates driver names.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.StorageDriver = strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	cfg.BlobDriver = strings.ToLower(strings.TrimSpace(cfg.BlobDriver))
	switch cfg.StorageDriver {
	case "memory", "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
	switch cfg.BlobDriver {
	case "memory", "fs", "s3":
	default:
		return Config{}, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
	if cfg.StorageDriver == "postgres" && cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("postgres driver requires CRATECORE_POSTGRES_DSN")
	}
	if cfg.BlobDriver == "s3" && cfg.S3Bucket == "" {
		return Config{}, fmt.Errorf("s3 blob driver requires CRATECORE_S3_BUCKET")
	}
	cfg.KafkaBrokers = trimAll(cfg.KafkaBrokers)
	return cfg, nil
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
