package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateProcess(ProcessRecord) (ProcessRecord, error)
	UpdateProcess(id string, mutator func(*ProcessRecord) error) (ProcessRecord, error)
	DeleteProcess(id string) error
	FindProcess(id string) (ProcessRecord, bool)
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	ListProcesses() []ProcessRecord
	FindProcess(id string) (ProcessRecord, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetProcess(id string) (ProcessRecord, bool)
	ListProcesses() []ProcessRecord
	// ReplaceAll swaps the entire record list, bypassing per-record change
	// tracking. Used only for startup hydration from the remote mirror.
	ReplaceAll(ctx context.Context, records []ProcessRecord) error
}
