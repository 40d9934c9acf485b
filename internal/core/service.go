package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"agroconsole/internal/infra/persistence/memory"
	"agroconsole/pkg/domain"

	"go.uber.org/zap"
)

// Service exposes transactional catalog maintenance over a persistent store.
type Service struct {
	store   PersistentStore
	engine  *RulesEngine
	index   *SchemaIndex
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	now     func() time.Time

	mu      sync.RWMutex
	modules map[string]ModuleMetadata
	seeds   []Seed
}

type serviceOptions struct {
	logger  *zap.Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	now     func() time.Time
}

// Option configures a Service.
type Option func(*serviceOptions)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the operation tracer.
func WithTracer(t Tracer) Option {
	return func(o *serviceOptions) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithAuditRecorder sets the sink for mutating operations.
func WithAuditRecorder(a AuditRecorder) Option {
	return func(o *serviceOptions) {
		if a != nil {
			o.audit = a
		}
	}
}

// WithClock overrides the time source used for audit entries and, when the
// store supports it, record timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) {
		if now != nil {
			o.now = now
		}
	}
}

type clockSetter interface {
	SetNowFunc(func() time.Time)
}

// NewService constructs a service over store. engine must be the rules engine
// the store evaluates and index the schema index its rules read.
func NewService(store PersistentStore, index *SchemaIndex, engine *RulesEngine, opts ...Option) *Service {
	o := serviceOptions{
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		audit:   noopAudit{},
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	if index == nil {
		index = NewSchemaIndex()
	}
	if cs, ok := store.(clockSetter); ok && o.now != nil {
		cs.SetNowFunc(o.now)
	}
	return &Service{
		store:   store,
		engine:  engine,
		index:   index,
		logger:  o.logger.Named("core"),
		metrics: o.metrics,
		tracer:  o.tracer,
		audit:   o.audit,
		now:     o.now,
		modules: make(map[string]ModuleMetadata),
	}
}

// NewInMemoryService wires a schema index, the default rules and an in-memory store.
func NewInMemoryService(opts ...Option) *Service {
	index := NewSchemaIndex()
	engine := NewDefaultRulesEngine(index)
	return NewService(memory.NewStore(engine), index, engine, opts...)
}

// Open wires the default rules against the configured storage backend.
func Open(ctx context.Context, cfg StorageConfig, opts ...Option) (*Service, error) {
	index := NewSchemaIndex()
	engine := NewDefaultRulesEngine(index)
	store, err := OpenPersistentStore(ctx, cfg, engine)
	if err != nil {
		return nil, err
	}
	return NewService(store, index, engine, opts...), nil
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Schemas returns the schema index shared with the rules.
func (s *Service) Schemas() *SchemaIndex { return s.index }

// Logger returns the service logger.
func (s *Service) Logger() *zap.Logger { return s.logger }

// Close releases the store.
func (s *Service) Close() error { return s.store.Close() }

// run wraps an operation with tracing, metrics, audit and logging.
func (s *Service) run(ctx context.Context, op, catalog string, mutating bool, fn func(context.Context) (string, Result, error)) (Result, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, op)
	id, res, err := fn(ctx)
	elapsed := s.now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, elapsed)

	for _, v := range res.Filter(domain.SeverityWarn) {
		s.logger.Warn("rule warning",
			zap.String("operation", op),
			zap.String("rule", v.Rule),
			zap.String("catalog", v.Catalog),
			zap.String("record_id", v.RecordID),
			zap.String("message", v.Message))
	}
	if mutating {
		entry := AuditEntry{Operation: op, Status: AuditStatusSuccess, Catalog: catalog, EntityID: id, Duration: elapsed, At: start}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}
	if err != nil {
		s.logger.Debug("operation failed", zap.String("operation", op), zap.String("catalog", catalog), zap.Error(err))
	} else {
		s.logger.Debug("operation", zap.String("operation", op), zap.String("catalog", catalog), zap.String("id", id), zap.Duration("elapsed", elapsed))
	}
	return res, err
}

// InstallModule registers a module, wiring its catalogs into the index and
// its rules into the engine.
func (s *Service) InstallModule(m Module) (ModuleMetadata, error) {
	if m == nil {
		return ModuleMetadata{}, fmt.Errorf("module cannot be nil")
	}
	name := m.Name()
	if name == "" {
		return ModuleMetadata{}, fmt.Errorf("module name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.modules[name]; exists {
		return ModuleMetadata{}, fmt.Errorf("module %s already installed", name)
	}
	reg := NewModuleRegistry(name)
	if err := m.Register(reg); err != nil {
		return ModuleMetadata{}, fmt.Errorf("register module %s: %w", name, err)
	}
	if err := s.index.merge(reg); err != nil {
		return ModuleMetadata{}, fmt.Errorf("install module %s: %w", name, err)
	}
	if s.engine != nil {
		for _, rule := range reg.rules {
			s.engine.Register(rule)
		}
	}
	s.seeds = append(s.seeds, reg.seeds...)

	meta := ModuleMetadata{Name: name, Version: m.Version()}
	for _, c := range reg.catalogs {
		meta.Catalogs = append(meta.Catalogs, c.Key)
	}
	for _, f := range reg.forms {
		meta.Settings = append(meta.Settings, f.Key)
	}
	for _, r := range reg.reports {
		meta.Reports = append(meta.Reports, r.Key)
	}
	for _, a := range reg.areas {
		meta.Areas = append(meta.Areas, a.Key)
	}
	s.modules[name] = meta
	s.logger.Info("module installed", zap.String("module", name), zap.String("version", meta.Version), zap.Strings("catalogs", meta.Catalogs))
	return meta, nil
}

// Modules lists installed modules ordered by name.
func (s *Service) Modules() []ModuleMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ModuleMetadata, 0, len(s.modules))
	for _, m := range s.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadSeeds imports the sample data of every installed module. Records whose
// business key already exists are left untouched.
func (s *Service) LoadSeeds(ctx context.Context) (int, error) {
	s.mu.RLock()
	seeds := append([]Seed(nil), s.seeds...)
	s.mu.RUnlock()
	total := 0
	for _, seed := range seeds {
		n, err := s.store.ImportSeed(ctx, seed)
		total += n
		if err != nil {
			return total, fmt.Errorf("import seed: %w", err)
		}
	}
	s.logger.Info("seed data loaded", zap.Int("records", total))
	return total, nil
}

// Navigation returns the navigation areas in display order.
func (s *Service) Navigation() []NavigationArea { return s.index.Navigation() }

// Catalog returns the schema of a registered catalog.
func (s *Service) Catalog(key string) (CatalogSchema, error) {
	schema, ok := s.index.Catalog(key)
	if !ok {
		return CatalogSchema{}, ErrUnknownCatalog{Catalog: key}
	}
	return schema, nil
}

// Catalogs lists the registered catalog schemas.
func (s *Service) Catalogs() []CatalogSchema { return s.index.Catalogs() }

// prepareFields coerces form input. Values that fail validation are kept raw
// so the field_validation rule reports them with the rest of the transaction.
func prepareFields(specs []FieldSpec, input map[string]any) map[string]any {
	normalized, errs := domain.NormalizeFields(specs, input)
	for _, fe := range errs {
		if raw, ok := input[fe.Field]; ok {
			normalized[fe.Field] = raw
		}
	}
	return normalized
}

// CreateRecord validates and stores a new record. New records are vigente.
func (s *Service) CreateRecord(ctx context.Context, catalog string, in RecordInput) (Record, Result, error) {
	var created Record
	res, err := s.run(ctx, "create_record", catalog, true, func(ctx context.Context) (string, Result, error) {
		schema, err := s.Catalog(catalog)
		if err != nil {
			return "", Result{}, err
		}
		rec := Record{
			Catalog:  catalog,
			Code:     in.Code,
			Fields:   prepareFields(schema.Fields, in.Fields),
			IsActive: true,
		}
		if schema.CompanyScoped {
			rec.CompanyID = in.CompanyID
		}
		if schema.ParentCatalog != "" {
			rec.ParentID = in.ParentID
		}
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			created, err = tx.CreateRecord(rec)
			return err
		})
		return created.ID, res, err
	})
	return created, res, err
}

// UpdateRecord replaces the fields of a record. Code, company and parent
// cannot change.
func (s *Service) UpdateRecord(ctx context.Context, id string, in RecordInput) (Record, Result, error) {
	var updated Record
	current, found := s.store.GetRecord(id)
	res, err := s.run(ctx, "update_record", current.Catalog, true, func(ctx context.Context) (string, Result, error) {
		if !found {
			return id, Result{}, domain.ErrNotFound{Entity: domain.EntityRecord, ID: id}
		}
		schema, err := s.Catalog(current.Catalog)
		if err != nil {
			return id, Result{}, err
		}
		if in.Code != current.Code ||
			(schema.CompanyScoped && in.CompanyID != 0 && in.CompanyID != current.CompanyID) ||
			(schema.ParentCatalog != "" && in.ParentID != "" && in.ParentID != current.ParentID) {
			return id, Result{}, ErrCodeImmutable
		}
		fields := prepareFields(schema.Fields, in.Fields)
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			var err error
			updated, err = tx.UpdateRecord(id, func(r *Record) error {
				r.Fields = fields
				return nil
			})
			return err
		})
		return id, res, err
	})
	return updated, res, err
}

// ToggleVigencia flips the vigencia flag of a record.
func (s *Service) ToggleVigencia(ctx context.Context, id string) (Record, Result, error) {
	return s.setVigencia(ctx, "toggle_vigencia", id, nil)
}

// SetVigencia sets the vigencia flag explicitly. Setting the current value is
// a no-op that still succeeds.
func (s *Service) SetVigencia(ctx context.Context, id string, active bool) (Record, Result, error) {
	return s.setVigencia(ctx, "set_vigencia", id, &active)
}

func (s *Service) setVigencia(ctx context.Context, op, id string, active *bool) (Record, Result, error) {
	var out Record
	current, _ := s.store.GetRecord(id)
	res, err := s.run(ctx, op, current.Catalog, true, func(ctx context.Context) (string, Result, error) {
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			rec, ok := tx.FindRecord(id)
			if !ok {
				return domain.ErrNotFound{Entity: domain.EntityRecord, ID: id}
			}
			target := !rec.IsActive
			if active != nil {
				target = *active
			}
			if target == rec.IsActive {
				out = rec
				return nil
			}
			var err error
			out, err = tx.ToggleRecord(id, target)
			return err
		})
		return id, res, err
	})
	return out, res, err
}

// DeleteRecord removes a record from a deletable catalog. Children in
// deletable child catalogs are removed with it; any other child blocks the
// delete.
func (s *Service) DeleteRecord(ctx context.Context, id string) (Result, error) {
	current, found := s.store.GetRecord(id)
	return s.run(ctx, "delete_record", current.Catalog, true, func(ctx context.Context) (string, Result, error) {
		if !found {
			return id, Result{}, domain.ErrNotFound{Entity: domain.EntityRecord, ID: id}
		}
		schema, err := s.Catalog(current.Catalog)
		if err != nil {
			return id, Result{}, err
		}
		if !schema.Deletable {
			return id, Result{}, fmt.Errorf("%s: %w", schema.Key, ErrNotDeletable)
		}
		children := s.index.Children(schema.Key)
		res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
			view := tx.Snapshot()
			for _, child := range children {
				if child.Deletable {
					continue
				}
				for _, rec := range view.ListRecords(child.Key) {
					if rec.ParentID == id {
						return fmt.Errorf("%s %d referenced by %s %d: %w", schema.Key, current.Code, child.Key, rec.Code, ErrNotDeletable)
					}
				}
			}
			for _, child := range children {
				if !child.Deletable {
					continue
				}
				for _, rec := range view.ListRecords(child.Key) {
					if rec.ParentID != id {
						continue
					}
					if err := tx.DeleteRecord(rec.ID); err != nil {
						return err
					}
				}
			}
			return tx.DeleteRecord(id)
		})
		return id, res, err
	})
}

// GetRecord returns a record by ID.
func (s *Service) GetRecord(_ context.Context, id string) (Record, error) {
	rec, ok := s.store.GetRecord(id)
	if !ok {
		return Record{}, domain.ErrNotFound{Entity: domain.EntityRecord, ID: id}
	}
	return rec, nil
}

// ListRecords filters, searches and sorts a catalog.
func (s *Service) ListRecords(ctx context.Context, q ListQuery) ([]Record, error) {
	var out []Record
	_, err := s.run(ctx, "list_records", q.Catalog, false, func(ctx context.Context) (string, Result, error) {
		schema, err := s.Catalog(q.Catalog)
		if err != nil {
			return "", Result{}, err
		}
		for _, rec := range s.store.ListRecords(q.Catalog) {
			if q.CompanyID != 0 && rec.CompanyID != q.CompanyID {
				continue
			}
			if q.ParentID != "" && rec.ParentID != q.ParentID {
				continue
			}
			if q.ActiveOnly && !rec.IsActive {
				continue
			}
			if !MatchesSearch(schema, rec, q.Search) {
				continue
			}
			out = append(out, rec)
		}
		return "", Result{}, SortRecords(schema, out, q.Sort)
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}

// CompanyName resolves the display name of a company code.
func (s *Service) CompanyName(companyID int64) (string, bool) {
	var (
		name string
		ok   bool
	)
	_ = s.store.View(context.Background(), func(v TransactionView) error {
		var rec Record
		rec, ok = v.FindByKey(Key{Catalog: CompaniesCatalog, Code: companyID})
		name = rec.String("name")
		return nil
	})
	return name, ok
}

// IsValidation reports whether err carries blocking rule violations.
func IsValidation(err error) bool {
	var rv domain.RuleViolationError
	return errors.As(err, &rv)
}
