package core

import (
	"fmt"

	"procesocore/pkg/domain"
)

type (
	// ProcessRecord aliases domain.ProcessRecord for service operations.
	ProcessRecord = domain.ProcessRecord
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView.
	TransactionView = domain.TransactionView
	// PersistentStore aliases domain.PersistentStore.
	PersistentStore = domain.PersistentStore
	// EntityType aliases domain.EntityType.
	EntityType = domain.EntityType
)

// NewRulesEngine re-exports the empty engine constructor.
func NewRulesEngine() *RulesEngine { return domain.NewRulesEngine() }

// NewDefaultRulesEngine re-exports the engine carrying the built-in rules.
func NewDefaultRulesEngine() *RulesEngine { return domain.NewDefaultRulesEngine() }

// ErrNotFound is returned when an operation references a missing record.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrValidation reports a rejected input field.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e ErrValidation) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ErrStageUnreachable is returned when a stage date write targets a stage
// whose predecessor has no certified date.
type ErrStageUnreachable struct {
	ID          string
	Stage       domain.Stage
	Predecessor domain.Stage
}

func (e ErrStageUnreachable) Error() string {
	return fmt.Sprintf("stage %s of process %s is unreachable: predecessor %s has no date", e.Stage, e.ID, e.Predecessor)
}
