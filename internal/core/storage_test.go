package core

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenPersistentStoreDrivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cases := []StorageConfig{
		{},
		{Driver: StorageMemory},
		{Driver: StorageSQLite, SQLitePath: filepath.Join(dir, "state.db")},
		{Driver: StorageBolt, BoltPath: filepath.Join(dir, "state.bolt")},
	}
	for _, cfg := range cases {
		store, err := OpenPersistentStore(ctx, cfg, NewDefaultRulesEngine(NewSchemaIndex()))
		if err != nil {
			t.Fatalf("open %q: %v", cfg.Driver, err)
		}
		if err := store.Close(); err != nil {
			t.Fatalf("close %q: %v", cfg.Driver, err)
		}
	}
	if _, err := OpenPersistentStore(ctx, StorageConfig{Driver: "etcd"}, nil); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestOpenServiceOverBoltSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	cfg := StorageConfig{Driver: StorageBolt, BoltPath: filepath.Join(t.TempDir(), "console.bolt")}
	svc, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.InstallModule(fixtureModule{name: "fixture"}); err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := svc.LoadSeeds(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rec, _, err := svc.CreateRecord(ctx, "afp", RecordInput{Code: 3, Fields: map[string]any{"description": "PLANVITAL", "commission": 1.16}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, ok := reopened.Store().GetRecord(rec.ID)
	if !ok || got.String("description") != "PLANVITAL" {
		t.Fatalf("expected persisted record, got %+v ok=%v", got, ok)
	}
	// Seeds are idempotent across restarts.
	if _, err := reopened.InstallModule(fixtureModule{name: "fixture"}); err != nil {
		t.Fatalf("install: %v", err)
	}
	n, err := reopened.LoadSeeds(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected no new seed records, got %d err=%v", n, err)
	}
}
