// Package memory provides the in-memory transactional store that holds the
// authoritative process list. Durable drivers embed it and snapshot its state.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"procesocore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// ProcessRecord aliases domain.ProcessRecord for in-memory persistence operations.
	ProcessRecord = domain.ProcessRecord
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

// memoryState keys records by ID and keeps their list order separately.
// Creation prepends, so order runs newest first.
type memoryState struct {
	processes map[string]ProcessRecord
	order     []string
}

// Snapshot captures a point-in-time clone of the store state. It is the
// payload durable drivers serialize, so it carries the ordered list rather
// than the internal map.
type Snapshot struct {
	Processes []ProcessRecord `json:"processes"`
}

func newMemoryState() memoryState {
	return memoryState{processes: make(map[string]ProcessRecord)}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		processes: make(map[string]ProcessRecord, len(s.processes)),
		order:     make([]string, len(s.order)),
	}
	for id, p := range s.processes {
		out.processes[id] = p.Clone()
	}
	copy(out.order, s.order)
	return out
}

func (s memoryState) list() []ProcessRecord {
	out := make([]ProcessRecord, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.processes[id]; ok {
			out = append(out, p.Clone())
		}
	}
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	return Snapshot{Processes: state.list()}
}

func memoryStateFromSnapshot(snapshot Snapshot) memoryState {
	state := newMemoryState()
	for _, p := range snapshot.Processes {
		if _, exists := state.processes[p.ID]; exists {
			continue
		}
		state.processes[p.ID] = p.Clone()
		state.order = append(state.order, p.ID)
	}
	return state
}

func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Processes == nil {
		snapshot.Processes = []ProcessRecord{}
	}
	return snapshot
}

// Store provides an in-memory transactional store for the process list.
type Store struct {
	mu      sync.RWMutex
	state   memoryState
	engine  *RulesEngine
	todayFn func() string
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:   newMemoryState(),
		engine:  engine,
		todayFn: domain.TodayISO,
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
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
	s.state = memoryStateFromSnapshot(migrateSnapshot(snapshot))
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// TodayFunc returns the calendar date provider used to stamp new records.
func (s *Store) TodayFunc() func() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.todayFn
}

// SetTodayFunc swaps the calendar date provider. Tests use it to pin dates.
func (s *Store) SetTodayFunc(fn func() string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = domain.TodayISO
	}
	s.todayFn = fn
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	today   string
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListProcesses returns all records within the snapshot, newest first.
func (v transactionView) ListProcesses() []ProcessRecord {
	return v.state.list()
}

// FindProcess retrieves a record by ID from the snapshot.
func (v transactionView) FindProcess(id string) (ProcessRecord, bool) {
	p, ok := v.state.processes[id]
	if !ok {
		return ProcessRecord{}, false
	}
	return p.Clone(), true
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn succeeds and no registered
// rule raises a blocking violation.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		today: s.todayFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
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
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// GetProcess retrieves a record by ID from the live state.
func (s *Store) GetProcess(id string) (ProcessRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.state.processes[id]
	if !ok {
		return ProcessRecord{}, false
	}
	return p.Clone(), true
}

// ListProcesses returns all records from the live state, newest first.
func (s *Store) ListProcesses() []ProcessRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.list()
}

// ReplaceAll swaps the entire record list without change tracking or rule
// evaluation. Only startup hydration from the remote mirror goes through it.
func (s *Store) ReplaceAll(_ context.Context, records []ProcessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(Snapshot{Processes: records})
	return nil
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindProcess exposes record lookup within the transaction scope.
func (tx *transaction) FindProcess(id string) (ProcessRecord, bool) {
	p, ok := tx.state.processes[id]
	if !ok {
		return ProcessRecord{}, false
	}
	return p.Clone(), true
}

// CreateProcess stores a new record within the transaction. The record is
// prepended so lists run newest first.
func (tx *transaction) CreateProcess(p ProcessRecord) (ProcessRecord, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.processes[p.ID]; exists {
		return ProcessRecord{}, fmt.Errorf("process %q already exists", p.ID)
	}
	if p.CreatedAt == "" {
		p.CreatedAt = tx.today
	}
	tx.state.processes[p.ID] = p.Clone()
	tx.state.order = append([]string{p.ID}, tx.state.order...)
	tx.recordChange(Change{Entity: domain.EntityProcess, Action: domain.ActionCreate, After: p.Clone()})
	return p.Clone(), nil
}

// UpdateProcess mutates a record using the provided mutator function. The
// identifier and creation date are pinned across the mutation.
func (tx *transaction) UpdateProcess(id string, mutator func(*ProcessRecord) error) (ProcessRecord, error) {
	current, ok := tx.state.processes[id]
	if !ok {
		return ProcessRecord{}, fmt.Errorf("process %q not found", id)
	}
	before := current.Clone()
	if err := mutator(&current); err != nil {
		return ProcessRecord{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	tx.state.processes[id] = current.Clone()
	tx.recordChange(Change{Entity: domain.EntityProcess, Action: domain.ActionUpdate, Before: before, After: current.Clone()})
	return current.Clone(), nil
}

// DeleteProcess removes a record from the transaction state.
func (tx *transaction) DeleteProcess(id string) error {
	current, ok := tx.state.processes[id]
	if !ok {
		return fmt.Errorf("process %q not found", id)
	}
	delete(tx.state.processes, id)
	for i, ordered := range tx.state.order {
		if ordered == id {
			tx.state.order = append(tx.state.order[:i], tx.state.order[i+1:]...)
			break
		}
	}
	tx.recordChange(Change{Entity: domain.EntityProcess, Action: domain.ActionDelete, Before: current.Clone()})
	return nil
}
