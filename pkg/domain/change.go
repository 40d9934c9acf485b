package domain

import (
	"fmt"
	"strings"
)

// EntityType identifies the kind of document a change touches.
type EntityType string

// Persisted document kinds.
const (
	EntityRecord  EntityType = "record"
	EntitySetting EntityType = "setting"
)

// Action indicates the type of modification performed.
type Action string

// Change actions captured during a transaction.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionToggle flips the vigencia flag of a record.
	ActionToggle Action = "toggle"
)

// Change describes a mutation applied during a transaction.
type Change struct {
	Entity  EntityType
	Catalog string
	Action  Action
	Before  *Record
	After   *Record
	Setting *Setting
}

// Record returns the post-image of the change, falling back to the pre-image
// for deletes.
func (c Change) Record() (Record, bool) {
	switch {
	case c.After != nil:
		return *c.After, true
	case c.Before != nil:
		return *c.Before, true
	default:
		return Record{}, false
	}
}

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Catalog  string   `json:"catalog,omitempty"`
	RecordID string   `json:"record_id,omitempty"`
	Field    string   `json:"field,omitempty"`
	Code     string   `json:"code,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Filter returns the violations with the given severity.
func (r Result) Filter(severity Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == severity {
			out = append(out, v)
		}
	}
	return out
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	blocking := e.Result.Filter(SeverityBlock)
	if len(blocking) == 0 {
		return "transaction blocked by rules"
	}
	msgs := make([]string, 0, len(blocking))
	for _, v := range blocking {
		msgs = append(msgs, v.Message)
	}
	return fmt.Sprintf("transaction blocked by rules: %s", strings.Join(msgs, "; "))
}

// ErrNotFound is returned when a referenced document does not exist.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrDuplicateKey is returned when a record's business key is already taken.
type ErrDuplicateKey struct {
	Key Key
}

func (e ErrDuplicateKey) Error() string {
	return fmt.Sprintf("record %s already exists", e.Key)
}
