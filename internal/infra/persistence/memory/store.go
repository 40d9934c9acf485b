// Package memory provides an in-memory implementation of the catalog
// persistence store used for tests, ephemeral environments and as the
// transactional core of the durable snapshot stores.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"agroconsole/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Record aliases domain.Record for in-memory persistence operations.
	Record = domain.Record
	// Setting aliases domain.Setting.
	Setting = domain.Setting
	// Key aliases domain.Key.
	Key = domain.Key
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	records  map[string]Record
	settings map[string]Setting
}

// Snapshot is the serialisable form of the store state. Records are ordered by
// business key so persisted payloads are stable.
type Snapshot struct {
	Records  []Record  `json:"records"`
	Settings []Setting `json:"settings"`
}

func newMemoryState() memoryState {
	return memoryState{
		records:  make(map[string]Record),
		settings: make(map[string]Setting),
	}
}

func (s memoryState) clone() memoryState {
	cp := memoryState{
		records:  make(map[string]Record, len(s.records)),
		settings: make(map[string]Setting, len(s.settings)),
	}
	for id, r := range s.records {
		cp.records[id] = r.Clone()
	}
	for key, st := range s.settings {
		cp.settings[key] = st.Clone()
	}
	return cp
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	snap := Snapshot{
		Records:  make([]Record, 0, len(state.records)),
		Settings: make([]Setting, 0, len(state.settings)),
	}
	for _, r := range state.records {
		snap.Records = append(snap.Records, r.Clone())
	}
	for _, st := range state.settings {
		snap.Settings = append(snap.Settings, st.Clone())
	}
	sortRecords(snap.Records)
	sort.Slice(snap.Settings, func(i, j int) bool { return snap.Settings[i].Key < snap.Settings[j].Key })
	return snap
}

func memoryStateFromSnapshot(snap Snapshot) memoryState {
	state := newMemoryState()
	for _, r := range snap.Records {
		if r.ID == "" {
			continue
		}
		state.records[r.ID] = r.Clone()
	}
	for _, st := range snap.Settings {
		if st.Key == "" {
			continue
		}
		if st.Values == nil {
			st.Values = map[string]any{}
		}
		state.settings[st.Key] = st.Clone()
	}
	return state
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Catalog != b.Catalog {
			return a.Catalog < b.Catalog
		}
		if a.CompanyID != b.CompanyID {
			return a.CompanyID < b.CompanyID
		}
		if a.ParentID != b.ParentID {
			return a.ParentID < b.ParentID
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.ID < b.ID
	})
}

// Store provides an in-memory transactional store for catalog records.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the configured engine for module installation.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.nowFn = fn
	s.mu.Unlock()
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListRecords returns the records of a catalog ordered by business key. An
// empty catalog lists every record.
func (v transactionView) ListRecords(catalog string) []Record {
	return listRecords(v.state, catalog)
}

// FindRecord looks a record up by ID.
func (v transactionView) FindRecord(id string) (Record, bool) {
	r, ok := v.state.records[id]
	if !ok {
		return Record{}, false
	}
	return r.Clone(), true
}

// FindByKey looks a record up by business key.
func (v transactionView) FindByKey(key Key) (Record, bool) {
	return findByKey(v.state, key)
}

// FindSetting returns a saved settings document.
func (v transactionView) FindSetting(key string) (Setting, bool) {
	st, ok := v.state.settings[key]
	if !ok {
		return Setting{}, false
	}
	return st.Clone(), true
}

func listRecords(state *memoryState, catalog string) []Record {
	out := make([]Record, 0)
	for _, r := range state.records {
		if catalog != "" && r.Catalog != catalog {
			continue
		}
		out = append(out, r.Clone())
	}
	sortRecords(out)
	return out
}

func findByKey(state *memoryState, key Key) (Record, bool) {
	var (
		found Record
		ok    bool
	)
	for _, r := range state.records {
		if r.Key() != key {
			continue
		}
		// Deterministic pick when a transaction transiently holds duplicates.
		if !ok || r.ID < found.ID {
			found, ok = r, true
		}
	}
	if !ok {
		return Record{}, false
	}
	return found.Clone(), true
}

// RunInTransaction applies fn to a cloned state, evaluates the rules engine
// against the recorded changes and commits unless a blocking violation exists.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil && len(tx.changes) > 0 {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

// GetRecord returns a record by ID.
func (s *Store) GetRecord(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.records[id]
	if !ok {
		return Record{}, false
	}
	return r.Clone(), true
}

// ListRecords returns the records of a catalog ordered by business key.
func (s *Store) ListRecords(catalog string) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listRecords(&s.state, catalog)
}

// GetSetting returns a saved settings document.
func (s *Store) GetSetting(key string) (Setting, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.state.settings[key]
	if !ok {
		return Setting{}, false
	}
	return st.Clone(), true
}

// ListSettings returns every saved settings document ordered by key.
func (s *Store) ListSettings() []Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(memoryState{settings: s.state.settings}).Settings
}

// ImportSeed inserts trusted sample data without rule evaluation. Records whose
// ID or business key already exist are skipped, which keeps reseeding on every
// start idempotent.
func (s *Store) ImportSeed(_ context.Context, seed domain.Seed) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	inserted := 0
	for _, r := range seed.Records {
		if r.Catalog == "" {
			return inserted, fmt.Errorf("seed record %d: catalog required", r.Code)
		}
		if r.ID != "" {
			if _, exists := s.state.records[r.ID]; exists {
				continue
			}
		}
		if _, exists := findByKey(&s.state, r.Key()); exists {
			continue
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = r.CreatedAt
		}
		s.state.records[r.ID] = r.Clone()
		inserted++
	}
	for _, st := range seed.Settings {
		if _, exists := s.state.settings[st.Key]; exists {
			continue
		}
		if st.UpdatedAt.IsZero() {
			st.UpdatedAt = now
		}
		if st.Values == nil {
			st.Values = map[string]any{}
		}
		s.state.settings[st.Key] = st.Clone()
	}
	return inserted, nil
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) FindRecord(id string) (Record, bool) {
	return transactionView{state: &tx.state}.FindRecord(id)
}

func (tx *transaction) FindByKey(key Key) (Record, bool) {
	return findByKey(&tx.state, key)
}

// CreateRecord stores a new record. Business key uniqueness is left to the
// rules engine so duplicates surface as violations rather than storage errors.
func (tx *transaction) CreateRecord(r Record) (Record, error) {
	if r.Catalog == "" {
		return Record{}, fmt.Errorf("record catalog required")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if _, exists := tx.state.records[r.ID]; exists {
		return Record{}, fmt.Errorf("record %q already exists", r.ID)
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	r = r.Clone()
	tx.state.records[r.ID] = r
	after := r.Clone()
	tx.recordChange(Change{Entity: domain.EntityRecord, Catalog: r.Catalog, Action: domain.ActionCreate, After: &after})
	return r.Clone(), nil
}

// UpdateRecord mutates a record using the provided mutator function. Identity
// and creation metadata cannot be changed by the mutator.
func (tx *transaction) UpdateRecord(id string, mutator func(*Record) error) (Record, error) {
	current, ok := tx.state.records[id]
	if !ok {
		return Record{}, domain.ErrNotFound{Entity: domain.EntityRecord, ID: id}
	}
	before := current.Clone()
	next := current.Clone()
	if err := mutator(&next); err != nil {
		return Record{}, err
	}
	next.ID = id
	next.Catalog = before.Catalog
	next.CreatedAt = before.CreatedAt
	next.UpdatedAt = tx.now
	next = next.Clone()
	tx.state.records[id] = next
	after := next.Clone()
	tx.recordChange(Change{Entity: domain.EntityRecord, Catalog: next.Catalog, Action: domain.ActionUpdate, Before: &before, After: &after})
	return next.Clone(), nil
}

// ToggleRecord sets the vigencia flag of a record.
func (tx *transaction) ToggleRecord(id string, active bool) (Record, error) {
	current, ok := tx.state.records[id]
	if !ok {
		return Record{}, domain.ErrNotFound{Entity: domain.EntityRecord, ID: id}
	}
	before := current.Clone()
	current.IsActive = active
	current.UpdatedAt = tx.now
	tx.state.records[id] = current
	after := current.Clone()
	tx.recordChange(Change{Entity: domain.EntityRecord, Catalog: current.Catalog, Action: domain.ActionToggle, Before: &before, After: &after})
	return current.Clone(), nil
}

// DeleteRecord removes a record that no child record references.
func (tx *transaction) DeleteRecord(id string) error {
	current, ok := tx.state.records[id]
	if !ok {
		return domain.ErrNotFound{Entity: domain.EntityRecord, ID: id}
	}
	for _, other := range tx.state.records {
		if other.ParentID == id {
			return fmt.Errorf("record %q still referenced by %s %q", id, other.Catalog, other.ID)
		}
	}
	delete(tx.state.records, id)
	before := current.Clone()
	tx.recordChange(Change{Entity: domain.EntityRecord, Catalog: current.Catalog, Action: domain.ActionDelete, Before: &before})
	return nil
}

// SaveSetting creates or replaces a settings document.
func (tx *transaction) SaveSetting(st Setting) (Setting, error) {
	if st.Key == "" {
		return Setting{}, fmt.Errorf("setting key required")
	}
	action := domain.ActionCreate
	if _, exists := tx.state.settings[st.Key]; exists {
		action = domain.ActionUpdate
	}
	st.UpdatedAt = tx.now
	if st.Values == nil {
		st.Values = map[string]any{}
	}
	st = st.Clone()
	tx.state.settings[st.Key] = st
	saved := st.Clone()
	tx.recordChange(Change{Entity: domain.EntitySetting, Catalog: st.Key, Action: action, Setting: &saved})
	return st.Clone(), nil
}
