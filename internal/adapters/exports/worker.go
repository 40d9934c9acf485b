package exports

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agroconsole/internal/core"
)

// ExportStatus describes the lifecycle stage of an export request.
type ExportStatus string

const (
	ExportStatusQueued    ExportStatus = "queued"
	ExportStatusRunning   ExportStatus = "running"
	ExportStatusSucceeded ExportStatus = "succeeded"
	ExportStatusFailed    ExportStatus = "failed"
)

const (
	auditAction      = "catalog_export"
	defaultQueueSize = 32
)

var (
	// ErrQueueFull is returned when the worker cannot accept more jobs.
	ErrQueueFull = errors.New("export queue full")
	// ErrWorkerStopped is returned for jobs submitted after Stop.
	ErrWorkerStopped = errors.New("export worker stopped")
)

// ExportArtifact describes a stored report file.
type ExportArtifact struct {
	ID          string         `json:"id"`
	Format      Format         `json:"format"`
	FileName    string         `json:"file_name"`
	ContentType string         `json:"content_type"`
	SizeBytes   int64          `json:"size_bytes"`
	URL         string         `json:"url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ExportInput requests the export of one catalog listing or, when Module is
// set, of every catalog of a module.
type ExportInput struct {
	Catalog     string        `json:"catalog,omitempty"`
	Module      string        `json:"module,omitempty"`
	CompanyID   int64         `json:"company_id,omitempty"`
	ParentID    string        `json:"parent_id,omitempty"`
	Search      string        `json:"q,omitempty"`
	ActiveOnly  bool          `json:"active_only,omitempty"`
	Sort        core.SortSpec `json:"sort"`
	Formats     []Format      `json:"formats"`
	RequestedBy string        `json:"requested_by,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

func (in ExportInput) target() string {
	if in.Module != "" {
		return "module:" + in.Module
	}
	return in.Catalog
}

func (in ExportInput) query() core.ListQuery {
	return core.ListQuery{
		Catalog:    in.Catalog,
		CompanyID:  in.CompanyID,
		ParentID:   in.ParentID,
		ActiveOnly: in.ActiveOnly,
		Search:     in.Search,
		Sort:       in.Sort,
	}
}

// ExportRecord tracks an export request and its artifacts.
type ExportRecord struct {
	ID          string           `json:"id"`
	Input       ExportInput      `json:"input"`
	Status      ExportStatus     `json:"status"`
	Error       string           `json:"error,omitempty"`
	Artifacts   []ExportArtifact `json:"artifacts,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

func (r ExportRecord) copy() ExportRecord {
	dup := r
	dup.Input.Formats = append([]Format(nil), r.Input.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = make([]ExportArtifact, len(r.Artifacts))
		for i, a := range r.Artifacts {
			dup.Artifacts[i] = a.copy()
		}
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		dup.CompletedAt = &at
	}
	return dup
}

// ExportScheduler queues export requests and exposes their status.
type ExportScheduler interface {
	EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error)
	GetExport(id string) (ExportRecord, bool)
}

var _ ExportScheduler = (*Worker)(nil)

// Worker renders exports asynchronously on a single goroutine.
type Worker struct {
	renderer *Renderer
	store    ObjectStore
	audit    AuditLogger
	logger   *zap.Logger
	now      func() time.Time

	queue   chan exportTask
	mu      sync.RWMutex
	jobs    map[string]*ExportRecord
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type exportTask struct {
	id    string
	input ExportInput
}

// WorkerOption customises a Worker.
type WorkerOption func(*Worker)

// WithQueueSize sets the number of jobs that may wait for the worker.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan exportTask, n)
		}
	}
}

// WithWorkerLogger sets the logger for job transitions.
func WithWorkerLogger(logger *zap.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWorkerClock overrides the clock used for job timestamps.
func WithWorkerClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWorker constructs an export worker. A nil audit logger disables audit.
func NewWorker(renderer *Renderer, store ObjectStore, audit AuditLogger, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		renderer: renderer,
		store:    store,
		audit:    audit,
		logger:   zap.NewNop(),
		now:      func() time.Time { return time.Now().UTC() },
		queue:    make(chan exportTask, defaultQueueSize),
		jobs:     make(map[string]*ExportRecord),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("exports")
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop refuses new jobs and drains the queue. When ctx ends first the job in
// flight is cancelled and jobs still queued are marked failed.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		w.cancel()
		<-done
	}
	w.cancel()
	for task := range w.queue {
		w.fail(task.id, ErrWorkerStopped.Error())
	}
	return err
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case task, ok := <-w.queue:
			if !ok {
				return
			}
			w.process(task)
		}
	}
}

// EnqueueExport validates the request and queues it.
func (w *Worker) EnqueueExport(ctx context.Context, input ExportInput) (ExportRecord, error) {
	if w.renderer == nil {
		return ExportRecord{}, fmt.Errorf("export renderer not configured")
	}
	input.Catalog = strings.TrimSpace(input.Catalog)
	input.Module = strings.TrimSpace(input.Module)
	switch {
	case input.Catalog == "" && input.Module == "":
		return ExportRecord{}, fmt.Errorf("catalog or module required")
	case input.Catalog != "" && input.Module != "":
		return ExportRecord{}, fmt.Errorf("catalog and module are exclusive")
	case input.Catalog != "":
		if _, err := w.renderer.src.Catalog(input.Catalog); err != nil {
			return ExportRecord{}, err
		}
	}

	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatPDF}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, f := range formats {
		parsed, err := ParseFormat(string(f))
		if err != nil {
			return ExportRecord{}, err
		}
		if _, dup := seen[parsed]; dup {
			continue
		}
		seen[parsed] = struct{}{}
		uniq = append(uniq, parsed)
	}
	input.Formats = uniq

	now := w.now()
	record := ExportRecord{
		ID:        uuid.NewString(),
		Input:     input,
		Status:    ExportStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ExportRecord{}, ErrWorkerStopped
	}
	select {
	case w.queue <- exportTask{id: record.ID, input: input}:
	default:
		w.mu.Unlock()
		return ExportRecord{}, ErrQueueFull
	}
	w.jobs[record.ID] = &record
	snapshot := record.copy()
	// Audited under the lock so the entry precedes the worker's "running".
	if w.audit != nil {
		w.audit.Record(ctx, w.auditEntry(input, ExportStatusQueued, nil))
	}
	w.mu.Unlock()

	w.logger.Info("export queued", zap.String("id", record.ID), zap.String("target", input.target()))
	return snapshot, nil
}

// GetExport returns a snapshot of the export record.
func (w *Worker) GetExport(id string) (ExportRecord, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return ExportRecord{}, false
	}
	return record.copy(), true
}

// Artifact returns a stored artifact of a finished job by format.
func (w *Worker) Artifact(ctx context.Context, id string, format Format) (ExportArtifact, []byte, error) {
	record, ok := w.GetExport(id)
	if !ok {
		return ExportArtifact{}, nil, fmt.Errorf("%w: export %s", ErrArtifactNotFound, id)
	}
	for _, a := range record.Artifacts {
		if a.Format == format {
			stored, payload, err := w.store.Get(ctx, a.ID)
			if err != nil {
				return ExportArtifact{}, nil, err
			}
			stored.Format, stored.FileName = a.Format, a.FileName
			return stored, payload, nil
		}
	}
	return ExportArtifact{}, nil, fmt.Errorf("%w: export %s has no %s artifact", ErrArtifactNotFound, id, format)
}

func (w *Worker) process(task exportTask) {
	w.updateStatus(task.id, ExportStatusRunning)

	var (
		files []Rendered
		err   error
	)
	if task.input.Module != "" {
		files, err = w.renderer.ExportModule(w.ctx, task.input.Module, task.input.Formats)
	} else {
		for _, format := range task.input.Formats {
			var r Rendered
			r, err = w.renderer.RenderNow(w.ctx, task.input.query(), format)
			if err != nil {
				break
			}
			files = append(files, r)
		}
	}
	if err != nil {
		w.fail(task.id, err.Error())
		return
	}

	artifacts := make([]ExportArtifact, 0, len(files))
	for _, f := range files {
		key := path.Join("exports", task.id, f.FileName)
		metadata := map[string]any{"catalog": f.Catalog, "rows": f.Rows, "file_name": f.FileName}
		var stored ExportArtifact
		if w.store != nil {
			stored, err = w.store.Put(w.ctx, key, f.Payload, f.ContentType, metadata)
			if err != nil {
				w.fail(task.id, fmt.Sprintf("store artifact failed: %v", err))
				return
			}
		} else {
			stored = ExportArtifact{ID: key, ContentType: f.ContentType, SizeBytes: int64(len(f.Payload)), Metadata: metadata, CreatedAt: w.now()}
		}
		stored.Format = f.Format
		stored.FileName = f.FileName
		artifacts = append(artifacts, stored)
	}
	w.complete(task.id, artifacts)
}

func (w *Worker) updateStatus(id string, status ExportStatus) {
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.UpdatedAt = w.now()
	}
	w.mu.Unlock()
	w.logger.Debug("export "+string(status), zap.String("id", id))
	w.record(w.ctx, id, status, nil)
}

func (w *Worker) complete(id string, artifacts []ExportArtifact) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Info("export succeeded", zap.String("id", id), zap.Int("artifacts", len(artifacts)))
	w.record(w.ctx, id, ExportStatusSucceeded, map[string]any{"artifacts": len(artifacts)})
}

func (w *Worker) fail(id, reason string) {
	now := w.now()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = ExportStatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Warn("export failed", zap.String("id", id), zap.String("error", reason))
	w.record(context.Background(), id, ExportStatusFailed, map[string]any{"error": reason})
}

func (w *Worker) record(ctx context.Context, id string, status ExportStatus, metadata map[string]any) {
	if w.audit == nil {
		return
	}
	w.mu.RLock()
	var input ExportInput
	if record, ok := w.jobs[id]; ok {
		input = record.Input
	}
	w.mu.RUnlock()
	w.audit.Record(ctx, w.auditEntry(input, status, metadata))
}

func (w *Worker) auditEntry(input ExportInput, status ExportStatus, metadata map[string]any) AuditEntry {
	return AuditEntry{
		ID:         uuid.NewString(),
		Action:     auditAction,
		Actor:      input.RequestedBy,
		Target:     input.target(),
		Status:     status,
		Reason:     input.Reason,
		Metadata:   metadata,
		OccurredAt: w.now(),
	}
}
