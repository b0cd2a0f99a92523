package domain

import (
	"context"
	"fmt"
)

// RuleView provides read-only access to domain entities for rule evaluation.
type RuleView interface {
	ListProcesses() []ProcessRecord
	FindProcess(id string) (ProcessRecord, bool)
}

// Rule defines an evaluation executed within a transaction boundary.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// NewDefaultRulesEngine returns an engine carrying the built-in rules.
func NewDefaultRulesEngine() *RulesEngine {
	engine := NewRulesEngine()
	engine.Register(NonNegativeBudgetRule{})
	engine.Register(StageChronologyRule{})
	return engine
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}

// NonNegativeBudgetRule blocks commits carrying a negative reference budget
// or a negative final awarded amount.
type NonNegativeBudgetRule struct{}

// Name identifies the rule in violations.
func (NonNegativeBudgetRule) Name() string { return "process_budget_non_negative" }

// Evaluate inspects created and updated processes in the change set.
func (r NonNegativeBudgetRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	var result Result
	for _, change := range changes {
		if change.Action == ActionDelete {
			continue
		}
		p, ok := change.After.(ProcessRecord)
		if !ok {
			continue
		}
		if p.Budget.IsNegative() {
			result.Violations = append(result.Violations, Violation{
				Rule:     r.Name(),
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("budget %s is negative", p.Budget),
				Entity:   EntityProcess,
				EntityID: p.ID,
			})
		}
		if p.FinalAwardedAmount != nil && p.FinalAwardedAmount.IsNegative() {
			result.Violations = append(result.Violations, Violation{
				Rule:     r.Name(),
				Severity: SeverityBlock,
				Message:  fmt.Sprintf("final awarded amount %s is negative", p.FinalAwardedAmount),
				Entity:   EntityProcess,
				EntityID: p.ID,
			})
		}
	}
	return result, nil
}

// StageChronologyRule warns when a certified stage date precedes its
// predecessor's date. It never blocks: out-of-order entry is tolerated
// throughout the system, and reachability keys on presence alone.
type StageChronologyRule struct{}

// Name identifies the rule in violations.
func (StageChronologyRule) Name() string { return "stage_chronology" }

// Evaluate flags reversed stage dates on created and updated processes.
func (r StageChronologyRule) Evaluate(_ context.Context, _ RuleView, changes []Change) (Result, error) {
	var result Result
	for _, change := range changes {
		if change.Action == ActionDelete {
			continue
		}
		p, ok := change.After.(ProcessRecord)
		if !ok {
			continue
		}
		for _, spec := range StageChain() {
			if spec.Predecessor == "" {
				continue
			}
			own := p.StageDate(spec.Stage)
			prev := p.StageDate(spec.Predecessor)
			if own == "" || prev == "" {
				continue
			}
			ownAt, okOwn := ParseDate(own)
			prevAt, okPrev := ParseDate(prev)
			if !okOwn || !okPrev {
				continue
			}
			if ownAt.Before(prevAt) {
				result.Violations = append(result.Violations, Violation{
					Rule:     r.Name(),
					Severity: SeverityWarn,
					Message:  fmt.Sprintf("stage %s dated %s before predecessor %s dated %s", spec.Stage, own, spec.Predecessor, prev),
					Entity:   EntityProcess,
					EntityID: p.ID,
				})
			}
		}
	}
	return result, nil
}
