package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"procesocore/pkg/domain"
)

func TestStoreRunInTransactionAndSnapshots(t *testing.T) {
	store := NewStore(nil)
	store.SetTodayFunc(func() string { return "2026-03-01" })
	ctx := context.Background()
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, ok := tx.FindProcess("missing"); ok {
			t.Fatalf("expected missing process lookup")
		}
		created, err := tx.CreateProcess(domain.ProcessRecord{Name: "Compra de Insumos", ProcessType: domain.TypeInfimaCuantia})
		if err != nil {
			return err
		}
		if created.ID == "" {
			t.Fatalf("expected generated ID")
		}
		if created.CreatedAt != "2026-03-01" {
			t.Fatalf("created at = %q", created.CreatedAt)
		}
		view := tx.Snapshot()
		if len(view.ListProcesses()) != 1 {
			t.Fatalf("snapshot mismatch")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	snapshot := store.ExportState()
	if len(snapshot.Processes) != 1 {
		t.Fatalf("exported %d processes, want 1", len(snapshot.Processes))
	}

	restored := NewStore(nil)
	restored.ImportState(snapshot)
	if got := restored.ListProcesses(); len(got) != 1 || got[0].Name != "Compra de Insumos" {
		t.Fatalf("restored list = %+v", got)
	}
}

func TestStoreListsNewestFirst(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	for _, name := range []string{"first", "second", "third"} {
		if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreateProcess(domain.ProcessRecord{Name: name})
			return err
		}); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	list := store.ListProcesses()
	if len(list) != 3 {
		t.Fatalf("listed %d, want 3", len(list))
	}
	if list[0].Name != "third" || list[2].Name != "first" {
		t.Fatalf("order = %s, %s, %s, want newest first", list[0].Name, list[1].Name, list[2].Name)
	}
}

func TestStoreUpdatePinsIdentityAndCreation(t *testing.T) {
	store := NewStore(nil)
	store.SetTodayFunc(func() string { return "2026-03-01" })
	ctx := context.Background()
	var id string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		created, err := tx.CreateProcess(domain.ProcessRecord{Name: "Original"})
		id = created.ID
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateProcess(id, func(p *domain.ProcessRecord) error {
			p.ID = "hijacked"
			p.CreatedAt = "1999-01-01"
			p.Name = "Renamed"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, ok := store.GetProcess(id)
	if !ok {
		t.Fatalf("process %q lost after update", id)
	}
	if got.Name != "Renamed" || got.ID != id || got.CreatedAt != "2026-03-01" {
		t.Fatalf("updated record = %+v", got)
	}
}

func TestStoreRollsBackOnError(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	boom := errors.New("boom")
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateProcess(domain.ProcessRecord{Name: "Doomed"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if got := store.ListProcesses(); len(got) != 0 {
		t.Fatalf("state leaked %d records after failed transaction", len(got))
	}
}

func TestStoreBlockingRuleRejectsCommit(t *testing.T) {
	store := NewStore(domain.NewDefaultRulesEngine())
	ctx := context.Background()
	result, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateProcess(domain.ProcessRecord{Name: "Negative", Budget: decimal.NewFromInt(-500)})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("err = %v, want rule violation", err)
	}
	if !result.HasBlocking() {
		t.Fatalf("result = %+v, want blocking violation", result)
	}
	if got := store.ListProcesses(); len(got) != 0 {
		t.Fatalf("blocked commit still stored %d records", len(got))
	}
}

func TestStoreDeleteRemovesFromOrder(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	var ids []string
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, name := range []string{"a", "b"} {
			created, err := tx.CreateProcess(domain.ProcessRecord{Name: name})
			if err != nil {
				return err
			}
			ids = append(ids, created.ID)
		}
		return nil
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteProcess(ids[0])
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteProcess(ids[0])
	}); err == nil {
		t.Fatal("second delete of the same id must fail")
	}

	list := store.ListProcesses()
	if len(list) != 1 || list[0].ID != ids[1] {
		t.Fatalf("list after delete = %+v", list)
	}
	if len(store.ExportState().Processes) != 1 {
		t.Fatalf("snapshot retains deleted record")
	}
}

func TestStoreReplaceAllBypassesRules(t *testing.T) {
	store := NewStore(domain.NewDefaultRulesEngine())
	records := []domain.ProcessRecord{
		{ID: "r1", Name: "Remote One", Budget: decimal.NewFromInt(100), CreatedAt: "2026-01-01"},
		{ID: "r2", Name: "Remote Two", Budget: decimal.NewFromInt(200), CreatedAt: "2026-01-02"},
	}
	if err := store.ReplaceAll(context.Background(), records); err != nil {
		t.Fatalf("replace all: %v", err)
	}
	list := store.ListProcesses()
	if len(list) != 2 || list[0].ID != "r1" || list[1].ID != "r2" {
		t.Fatalf("hydrated list = %+v", list)
	}

	// Mutating the caller's slice afterwards must not reach the store.
	records[0].Name = "tampered"
	if got, _ := store.GetProcess("r1"); got.Name != "Remote One" {
		t.Fatalf("store shares memory with hydration input: %+v", got)
	}
}

func TestStoreViewIsIsolated(t *testing.T) {
	store := NewStore(nil)
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateProcess(domain.ProcessRecord{Name: "Stable"})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.View(ctx, func(view domain.TransactionView) error {
		list := view.ListProcesses()
		if len(list) != 1 {
			t.Fatalf("view listed %d", len(list))
		}
		list[0].Name = "mutated"
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if got := store.ListProcesses(); got[0].Name != "Stable" {
		t.Fatalf("view mutation leaked: %+v", got)
	}
}
