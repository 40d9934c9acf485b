package domain

import "context"

// Transaction exposes the operations a persistence implementation must
// support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateRecord(Record) (Record, error)
	UpdateRecord(id string, mutator func(*Record) error) (Record, error)
	// ToggleRecord sets the vigencia flag and records an ActionToggle change.
	ToggleRecord(id string, active bool) (Record, error)
	DeleteRecord(id string) error
	FindRecord(id string) (Record, bool)
	FindByKey(key Key) (Record, bool)
	SaveSetting(Setting) (Setting, error)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListRecords(catalog string) []Record
	FindRecord(id string) (Record, bool)
	FindByKey(key Key) (Record, bool)
	FindSetting(key string) (Setting, bool)
}

// Seed is trusted sample data loaded without rule evaluation.
type Seed struct {
	Records  []Record  `json:"records" yaml:"records"`
	Settings []Setting `json:"settings" yaml:"settings"`
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetRecord(id string) (Record, bool)
	ListRecords(catalog string) []Record
	GetSetting(key string) (Setting, bool)
	ListSettings() []Setting
	// ImportSeed inserts seed records whose business key is not yet present
	// and settings that have never been saved. It returns the number of
	// records inserted.
	ImportSeed(ctx context.Context, seed Seed) (int, error)
	Close() error
}
