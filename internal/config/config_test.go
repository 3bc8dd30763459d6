package config

import (
	"os"
	"strings"
	"testing"
)

// clearEnv unsets every CRATECORE_* variable for the test; t.Setenv first so
// the original values are restored on cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CRATECORE_STORAGE_DRIVER", "CRATECORE_SQLITE_PATH", "CRATECORE_POSTGRES_DSN",
		"CRATECORE_BLOB_DRIVER", "CRATECORE_BLOB_FS_ROOT",
		"CRATECORE_S3_BUCKET", "CRATECORE_S3_REGION", "CRATECORE_S3_ENDPOINT",
		"CRATECORE_S3_ACCESS_KEY_ID", "CRATECORE_S3_SECRET_ACCESS_KEY", "CRATECORE_S3_USE_PATH_STYLE",
		"CRATECORE_KAFKA_BROKERS", "CRATECORE_KAFKA_TOPIC",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageDriver != "sqlite" || cfg.SQLitePath != "cratecore.db" {
		t.Fatalf("unexpected storage config: %+v", cfg)
	}
	if cfg.BlobDriver != "memory" || cfg.BlobFSRoot != "data/blobs" {
		t.Fatalf("unexpected blob config: %+v", cfg)
	}
	if cfg.S3Region != "us-east-1" || !cfg.S3UsePathStyle {
		t.Fatalf("unexpected s3 defaults: %+v", cfg)
	}
	if cfg.KafkaTopic != "cratecore.events" || len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("unexpected kafka config: %+v", cfg)
	}
}

func TestLoadNormalizesDriverCase(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRATECORE_STORAGE_DRIVER", "  Memory ")
	t.Setenv("CRATECORE_BLOB_DRIVER", "FS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StorageDriver != "memory" || cfg.BlobDriver != "fs" {
		t.Fatalf("expected normalized drivers, got %+v", cfg)
	}
}

func TestLoadRejectsUnknownStorageDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRATECORE_STORAGE_DRIVER", "etcd")
	t.Setenv("CRATECORE_BLOB_DRIVER", "memory")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "storage driver") {
		t.Fatalf("expected storage driver error, got %v", err)
	}
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRATECORE_STORAGE_DRIVER", "postgres")
	t.Setenv("CRATECORE_BLOB_DRIVER", "memory")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CRATECORE_POSTGRES_DSN") {
		t.Fatalf("expected DSN requirement, got %v", err)
	}

	t.Setenv("CRATECORE_POSTGRES_DSN", "postgres://localhost/cratecore")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load with dsn: %v", err)
	}
	if cfg.PostgresDSN != "postgres://localhost/cratecore" {
		t.Fatalf("dsn not carried: %+v", cfg)
	}
}

func TestLoadS3RequiresBucket(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRATECORE_STORAGE_DRIVER", "memory")
	t.Setenv("CRATECORE_BLOB_DRIVER", "s3")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "CRATECORE_S3_BUCKET") {
		t.Fatalf("expected bucket requirement, got %v", err)
	}

	t.Setenv("CRATECORE_S3_BUCKET", "crate-archives")
	t.Setenv("CRATECORE_S3_REGION", "eu-west-1")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load with bucket: %v", err)
	}
	if cfg.S3Bucket != "crate-archives" || cfg.S3Region != "eu-west-1" {
		t.Fatalf("s3 settings not carried: %+v", cfg)
	}
}

func TestLoadTrimsBrokerList(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRATECORE_STORAGE_DRIVER", "memory")
	t.Setenv("CRATECORE_BLOB_DRIVER", "memory")
	t.Setenv("CRATECORE_KAFKA_BROKERS", " broker-a:9092 , ,broker-b:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "broker-a:9092" || cfg.KafkaBrokers[1] != "broker-b:9092" {
		t.Fatalf("unexpected brokers: %+v", cfg.KafkaBrokers)
	}
}
