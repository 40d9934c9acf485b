package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"agroconsole/internal/infra/persistence/postgres/testutil"
	"agroconsole/pkg/domain"
)

func stubStore(t *testing.T) (*testutil.StubConn, func()) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	return conn, restore
}

func TestPostgresStorePersistsSnapshot(t *testing.T) {
	conn, restore := stubStore(t)
	defer restore()
	ctx := context.Background()

	store, err := NewStore(ctx, "", nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if store.DB() == nil {
		t.Fatalf("expected db handle")
	}
	if !strings.Contains(conn.Execs[0], "CREATE TABLE IF NOT EXISTS state") {
		t.Fatalf("expected state table ddl, got %v", conn.Execs)
	}
	_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateRecord(domain.Record{Catalog: "departments", CompanyID: 1, Code: 10, IsActive: true, Fields: map[string]any{"name": "Administración"}})
		return err
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}
	if !strings.Contains(string(conn.Buckets["records"]), "Administración") {
		t.Fatalf("expected records bucket to hold the department, got %s", conn.Buckets["records"])
	}
	if _, ok := conn.Buckets["settings"]; !ok {
		t.Fatalf("expected settings bucket")
	}

	reopened, err := loadSnapshot(ctx, store.DB())
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	if len(reopened.Records) != 1 || reopened.Records[0].Code != 10 {
		t.Fatalf("unexpected snapshot %+v", reopened.Records)
	}
}

func TestPostgresStoreHydratesExistingState(t *testing.T) {
	conn, restore := stubStore(t)
	defer restore()
	conn.Buckets["records"] = []byte(`[{"id":"afp-1","catalog":"afp","code":1,"fields":{"description":"CAPITAL"},"is_active":true}]`)
	conn.Buckets["settings"] = []byte(`[{"key":"general","values":{"defaultCurrency":"CLP"}}]`)

	store, err := NewStore(context.Background(), "postgres://example", nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	rec, ok := store.GetRecord("afp-1")
	if !ok || rec.String("description") != "CAPITAL" {
		t.Fatalf("expected hydrated record, got %+v", rec)
	}
	if _, ok := store.GetSetting("general"); !ok {
		t.Fatalf("expected hydrated setting")
	}
	n, err := store.ImportSeed(context.Background(), domain.Seed{Records: []domain.Record{{Catalog: "afp", Code: 2, Fields: map[string]any{"description": "CUPRUM"}}}})
	if err != nil || n != 1 {
		t.Fatalf("import seed: n=%d err=%v", n, err)
	}
	if !strings.Contains(string(conn.Buckets["records"]), "CUPRUM") {
		t.Fatalf("expected seeded record persisted")
	}
}

func TestPostgresStoreOpenFailures(t *testing.T) {
	ctx := context.Background()

	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("dial") })
	if _, err := NewStore(ctx, "", nil); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	cases := map[string]func(*testutil.StubConn){
		"ping postgres":      func(c *testutil.StubConn) { c.FailPing = true },
		"ensure state table": func(c *testutil.StubConn) { c.FailExec = true },
		"select state":       func(c *testutil.StubConn) { c.FailQuery = true },
		"decode records":     func(c *testutil.StubConn) { c.Buckets["records"] = []byte(`{`) },
	}
	for want, setup := range cases {
		conn, restore := stubStore(t)
		setup(conn)
		_, err := NewStore(ctx, "", nil)
		restore()
		if err == nil || !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q error, got %v", want, err)
		}
	}
}

func TestPostgresStorePersistFailuresSurface(t *testing.T) {
	ctx := context.Background()
	for name, setup := range map[string]func(*testutil.StubConn){
		"begin":  func(c *testutil.StubConn) { c.FailBegin = true },
		"commit": func(c *testutil.StubConn) { c.FailCommit = true },
	} {
		conn, restore := stubStore(t)
		store, err := NewStore(ctx, "", nil)
		if err != nil {
			restore()
			t.Fatalf("%s: new store: %v", name, err)
		}
		setup(conn)
		_, err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreateRecord(domain.Record{Catalog: "afp", Code: 1})
			return err
		})
		restore()
		if err == nil || !strings.Contains(err.Error(), name) {
			t.Fatalf("%s: expected persist error, got %v", name, err)
		}
		if len(conn.Buckets) != 0 {
			t.Fatalf("%s: nothing should be committed", name)
		}
	}
}
