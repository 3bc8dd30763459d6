package core

import (
	"path/filepath"
	"testing"

	"cratecore/internal/config"
	"cratecore/internal/infra/persistence/memory"
	"cratecore/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreSelectsMemory(t *testing.T) {
	store, err := OpenPersistentStore(config.Config{StorageDriver: "memory"}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenPersistentStoreSelectsSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cratecore.db")
	store, err := OpenPersistentStore(config.Config{StorageDriver: "sqlite", SQLitePath: path}, NewDefaultRulesEngine())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected sqlite store, got %T", store)
	}
	defer s.Close()
	if s.Path() != path {
		t.Fatalf("unexpected path: %s", s.Path())
	}
}

func TestOpenPersistentStoreRejectsUnknownDriver(t *testing.T) {
	if _, err := OpenPersistentStore(config.Config{StorageDriver: "etcd"}, nil); err == nil {
		t.Fatalf("unknown driver must fail")
	}
}
