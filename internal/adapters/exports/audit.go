package exports

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures one export lifecycle transition.
type AuditEntry struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	Target     string         `json:"target"`
	Status     ExportStatus   `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ZapAuditLogger writes audit entries to a named zap logger.
type ZapAuditLogger struct {
	logger *zap.Logger
}

// NewZapAuditLogger returns a logger named "export_audit" under parent.
func NewZapAuditLogger(parent *zap.Logger) *ZapAuditLogger {
	if parent == nil {
		parent = zap.NewNop()
	}
	return &ZapAuditLogger{logger: parent.Named("export_audit")}
}

func (l *ZapAuditLogger) Record(_ context.Context, entry AuditEntry) {
	fields := []zap.Field{
		zap.String("id", entry.ID),
		zap.String("action", entry.Action),
		zap.String("actor", entry.Actor),
		zap.String("target", entry.Target),
		zap.String("status", string(entry.Status)),
		zap.Time("occurred_at", entry.OccurredAt),
	}
	if entry.Reason != "" {
		fields = append(fields, zap.String("reason", entry.Reason))
	}
	if len(entry.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", entry.Metadata))
	}
	if entry.Status == ExportStatusFailed {
		l.logger.Warn("export audit", fields...)
		return
	}
	l.logger.Info("export audit", fields...)
}

// MemoryAuditLog captures audit entries in memory.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]AuditEntry(nil), l.entries...)
}
