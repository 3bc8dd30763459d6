package core

import (
	"fmt"

	"cratecore/internal/config"
	"cratecore/internal/infra/persistence/memory"
	"cratecore/internal/infra/persistence/postgres"
	"cratecore/internal/infra/persistence/sqlite"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a backend from the loaded configuration.
// Defaults to sqlite when unset.
func OpenPersistentStore(cfg config.Config, engine *RulesEngine) (PersistentStore, error) {
	switch StorageDriver(cfg.StorageDriver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// OpenPersistentStoreFromEnv loads configuration from the environment and
// opens the selected backend.
func OpenPersistentStoreFromEnv(engine *RulesEngine) (PersistentStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return OpenPersistentStore(cfg, engine)
}
