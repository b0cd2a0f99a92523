// Package domain defines the procurement process entity, the certification
// stage chain, and the rule evaluation primitives used by procesocore.
package domain

import (
	"github.com/shopspring/decimal"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// EntityProcess identifies a procurement process record. It is the only
// entity persisted by the system; Change records and persistence buckets
// carry it by this name.
const EntityProcess EntityType = "process"

// ProcessType enumerates the procurement categories recognised by the
// national contracting regime.
type ProcessType string

// Supported procurement categories.
const (
	TypeInfimaCuantia       ProcessType = "Ínfima Cuantía"
	TypeCatalogoElectronico ProcessType = "Catálogo Electrónico"
	TypeSubastaInversa      ProcessType = "Subasta Inversa"
	TypeContratacionDirecta ProcessType = "Contratación Directa"
	TypeLicitacion          ProcessType = "Licitación"
	TypeMenorCuantia        ProcessType = "Menor Cuantía"
	TypeRegimenEspecial     ProcessType = "Régimen Especial"
)

// ProcessTypes returns the fixed category list in display order.
func ProcessTypes() []ProcessType {
	return []ProcessType{
		TypeInfimaCuantia,
		TypeCatalogoElectronico,
		TypeSubastaInversa,
		TypeContratacionDirecta,
		TypeLicitacion,
		TypeMenorCuantia,
		TypeRegimenEspecial,
	}
}

// IsValid reports whether t is one of the fixed procurement categories.
func (t ProcessType) IsValid() bool {
	for _, known := range ProcessTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// ProcessRecord is one administrative procurement process moving through the
// certification chain. Stage date fields hold ISO calendar dates (YYYY-MM-DD)
// or the empty string when the stage is not yet certified.
type ProcessRecord struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	ProcessType ProcessType `json:"processType"`

	// Budget is the reference amount. FinalAwardedAmount is set only once the
	// award stage is certified; while absent, Budget stands in for it in
	// execution calculations.
	Budget             decimal.Decimal  `json:"budget"`
	FinalAwardedAmount *decimal.Decimal `json:"finalAwardedAmount,omitempty"`

	MarketStudyReportDate string `json:"marketStudyReportDate,omitempty"`
	ProcessStartDate      string `json:"processStartDate,omitempty"`
	PlanningCertDate      string `json:"planningCertDate,omitempty"`
	ProcurementCertDate   string `json:"procurementCertDate,omitempty"`
	FinancialCertDate     string `json:"financialCertDate,omitempty"`
	DelegateCertDate      string `json:"delegateCertDate,omitempty"`
	LegalCertDate         string `json:"legalCertDate,omitempty"`
	AwardedCertDate       string `json:"awardedCertDate,omitempty"`

	// CreatedAt is an ISO calendar date assigned once at creation.
	CreatedAt string `json:"createdAt"`
}

// Completed reports whether the process has reached the award stage.
func (p ProcessRecord) Completed() bool {
	return p.AwardedCertDate != ""
}

// AwardedAmount returns the amount counted towards certified budget: the
// final awarded amount when present, else the reference budget.
func (p ProcessRecord) AwardedAmount() decimal.Decimal {
	if p.FinalAwardedAmount != nil {
		return *p.FinalAwardedAmount
	}
	return p.Budget
}

// Clone returns a deep copy of the record.
func (p ProcessRecord) Clone() ProcessRecord {
	cp := p
	if p.FinalAwardedAmount != nil {
		amount := *p.FinalAwardedAmount
		cp.FinalAwardedAmount = &amount
	}
	return cp
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured during rule evaluation.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

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
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
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

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
