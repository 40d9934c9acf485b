package exports

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"agroconsole/internal/core"
	"agroconsole/internal/modules"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2024, time.March, 7, 10, 30, 0, 0, time.UTC)

func newConsole(t *testing.T) *core.Service {
	t.Helper()
	svc := core.NewInMemoryService()
	if err := modules.Install(context.Background(), svc, true); err != nil {
		t.Fatalf("install modules: %v", err)
	}
	return svc
}

func waitForStatus(t *testing.T, w *Worker, id string, want ExportStatus) ExportRecord {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		current, ok := w.GetExport(id)
		if !ok {
			t.Fatalf("export %s not found", id)
		}
		if current.Status == want {
			return current
		}
		if current.Status == ExportStatusFailed || current.Status == ExportStatusSucceeded {
			t.Fatalf("export finished with %s (%s), want %s", current.Status, current.Error, want)
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s, last status %s", want, current.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
