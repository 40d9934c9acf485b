package core

import (
	"errors"
	"fmt"

	"agroconsole/pkg/domain"
)

type (
	Record          = domain.Record
	Setting         = domain.Setting
	Key             = domain.Key
	CatalogSchema   = domain.CatalogSchema
	SettingsForm    = domain.SettingsForm
	FieldSpec       = domain.FieldSpec
	Change          = domain.Change
	Violation       = domain.Violation
	Result          = domain.Result
	Rule            = domain.Rule
	RulesEngine     = domain.RulesEngine
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
	Seed            = domain.Seed
)

// CompaniesCatalog is the catalog that company-scoped records reference.
const CompaniesCatalog = "companies"

var (
	// ErrNotDeletable is returned when deleting from a catalog that only
	// supports the vigencia toggle.
	ErrNotDeletable = errors.New("catalog does not allow deletes")
	// ErrCodeImmutable is returned when an update tries to change the code,
	// company or parent of a record.
	ErrCodeImmutable = errors.New("record code is immutable")
)

// ErrUnknownCatalog reports a catalog key that no installed module registered.
type ErrUnknownCatalog struct {
	Catalog string
}

func (e ErrUnknownCatalog) Error() string {
	return fmt.Sprintf("unknown catalog %q", e.Catalog)
}

// ErrUnknownSettings reports a settings key that no installed module registered.
type ErrUnknownSettings struct {
	Key string
}

func (e ErrUnknownSettings) Error() string {
	return fmt.Sprintf("unknown settings form %q", e.Key)
}

// RecordInput is the editable part of a record as submitted by a form.
type RecordInput struct {
	Code      int64          `json:"code"`
	CompanyID int64          `json:"company_id,omitempty"`
	ParentID  string         `json:"parent_id,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// ListQuery filters and orders a catalog listing.
type ListQuery struct {
	Catalog    string
	CompanyID  int64
	ParentID   string
	ActiveOnly bool
	Search     string
	Sort       SortSpec
}
