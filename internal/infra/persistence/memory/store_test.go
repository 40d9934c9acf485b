package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"agroconsole/pkg/domain"
)

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindRecord("missing"); ok {
			t.Fatalf("expected missing record lookup")
		}
		created, err := tx.CreateRecord(domain.Record{Catalog: "afp", Code: 1, IsActive: true, Fields: map[string]any{"description": "CAPITAL"}})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Fatalf("expected generated ID")
		}
		view := tx.Snapshot()
		if len(view.ListRecords("afp")) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		if _, ok := view.FindByKey(domain.Key{Catalog: "afp", Code: 1}); !ok {
			t.Fatalf("expected key lookup inside transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("run transaction: %v", err)
	}
	if len(store.ListRecords("afp")) != 1 {
		t.Fatalf("expected persisted record")
	}
	snapshot := store.ExportState()
	store.ImportState(Snapshot{})
	if len(store.ListRecords("")) != 0 {
		t.Fatalf("expected cleared state")
	}
	store.ImportState(snapshot)
	if len(store.ListRecords("afp")) != 1 {
		t.Fatalf("expected restored state")
	}
	if store.RulesEngine() == nil {
		t.Fatalf("expected rules engine")
	}
	if store.NowFunc() == nil {
		t.Fatalf("expected now func")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(ctx context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock, Message: "nope"}}}, nil
}

func TestStoreRuleViolationRollsBack(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockingRule{})
	store := NewStore(engine)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateRecord(domain.Record{Catalog: "afp", Code: 9})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if len(store.ListRecords("afp")) != 0 {
		t.Fatalf("expected rollback on blocking violation")
	}
}

func TestStoreFunctionErrorRollsBack(t *testing.T) {
	store := NewStore(nil)
	boom := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateRecord(domain.Record{Catalog: "afp", Code: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(store.ListRecords("")) != 0 {
		t.Fatalf("expected no records after failed transaction")
	}
}

func TestStoreUpdateToggleDelete(t *testing.T) {
	store := NewStore(nil)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetNowFunc(func() time.Time { return fixed })
	ctx := context.Background()

	var warehouse, level domain.Record
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		warehouse, err = tx.CreateRecord(domain.Record{Catalog: "warehouses", CompanyID: 1, Code: 1, IsActive: true, Fields: map[string]any{"name": "Bodega Principal"}})
		if err != nil {
			return err
		}
		level, err = tx.CreateRecord(domain.Record{Catalog: "storage_levels", ParentID: warehouse.ID, Code: 10, IsActive: true})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !warehouse.CreatedAt.Equal(fixed) {
		t.Fatalf("expected injected clock, got %v", warehouse.CreatedAt)
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		updated, err := tx.UpdateRecord(warehouse.ID, func(r *domain.Record) error {
			r.ID = "hijack"
			r.Catalog = "other"
			r.Fields["name"] = "Bodega Central"
			return nil
		})
		if err != nil {
			return err
		}
		if updated.ID != warehouse.ID || updated.Catalog != "warehouses" {
			t.Fatalf("identity must not change: %+v", updated)
		}
		toggled, err := tx.ToggleRecord(level.ID, false)
		if err != nil {
			return err
		}
		if toggled.IsActive {
			t.Fatalf("expected inactive level")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := store.GetRecord(warehouse.ID)
	if got.String("name") != "Bodega Central" {
		t.Fatalf("expected updated name, got %q", got.String("name"))
	}

	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteRecord(warehouse.ID)
	})
	if err == nil {
		t.Fatalf("expected delete guard for referenced parent")
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := tx.DeleteRecord(level.ID); err != nil {
			return err
		}
		return tx.DeleteRecord(warehouse.ID)
	})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.ListRecords("")) != 0 {
		t.Fatalf("expected empty store")
	}
}

func TestStoreMissingRecordErrors(t *testing.T) {
	store := NewStore(nil)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.UpdateRecord("missing", func(*domain.Record) error { return nil }); err == nil {
			t.Fatalf("expected update error")
		}
		if _, err := tx.ToggleRecord("missing", true); err == nil {
			t.Fatalf("expected toggle error")
		}
		err := tx.DeleteRecord("missing")
		var nf domain.ErrNotFound
		if !errors.As(err, &nf) || nf.ID != "missing" {
			t.Fatalf("expected not found error, got %v", err)
		}
		if _, err := tx.CreateRecord(domain.Record{}); err == nil {
			t.Fatalf("expected catalog required")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func TestStoreSettingsAndChanges(t *testing.T) {
	engine := domain.NewRulesEngine()
	rec := &recordingRule{}
	engine.Register(rec)
	store := NewStore(engine)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.SaveSetting(domain.Setting{Key: "general", Values: map[string]any{"defaultCurrency": "CLP"}})
			return err
		})
		if err != nil {
			t.Fatalf("save setting: %v", err)
		}
	}
	if len(rec.actions) != 2 || rec.actions[0] != domain.ActionCreate || rec.actions[1] != domain.ActionUpdate {
		t.Fatalf("unexpected actions %v", rec.actions)
	}
	st, ok := store.GetSetting("general")
	if !ok || st.Values["defaultCurrency"] != "CLP" {
		t.Fatalf("expected saved setting, got %+v", st)
	}
	if len(store.ListSettings()) != 1 {
		t.Fatalf("expected one setting")
	}
	err := store.View(ctx, func(v domain.TransactionView) error {
		if _, ok := v.FindSetting("general"); !ok {
			t.Fatalf("expected setting in view")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

type recordingRule struct{ actions []domain.Action }

func (r *recordingRule) Name() string { return "recording" }

func (r *recordingRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	for _, c := range changes {
		r.actions = append(r.actions, c.Action)
	}
	return domain.Result{}, nil
}

func TestImportSeedIsIdempotent(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	seed := domain.Seed{
		Records: []domain.Record{
			{Base: domain.Base{ID: "unit-1"}, Catalog: "units_of_measure", Code: 1, IsActive: true, Fields: map[string]any{"name": "Unidad"}},
			{Catalog: "units_of_measure", Code: 2, IsActive: true, Fields: map[string]any{"name": "Kilo"}},
		},
		Settings: []domain.Setting{{Key: "general"}},
	}
	n, err := store.ImportSeed(ctx, seed)
	if err != nil || n != 2 {
		t.Fatalf("first import: n=%d err=%v", n, err)
	}
	n, err = store.ImportSeed(ctx, seed)
	if err != nil || n != 0 {
		t.Fatalf("second import should skip existing keys: n=%d err=%v", n, err)
	}
	if _, ok := store.GetRecord("unit-1"); !ok {
		t.Fatalf("expected seeded ID preserved")
	}
	if _, err := store.ImportSeed(ctx, domain.Seed{Records: []domain.Record{{Code: 3}}}); err == nil {
		t.Fatalf("expected error for seed record without catalog")
	}
	list := store.ListRecords("units_of_measure")
	if len(list) != 2 || list[0].Code != 1 || list[1].Code != 2 {
		t.Fatalf("expected records ordered by code, got %+v", list)
	}
}
