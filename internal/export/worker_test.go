package export

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"procesocore/internal/blob"
	"procesocore/internal/core"
	"procesocore/pkg/domain"
)

type captureAudit struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func (c *captureAudit) Record(_ context.Context, entry core.AuditEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

type staticSource struct {
	records []domain.ProcessRecord
}

func (s staticSource) ListProcesses(context.Context, core.ListFilter) []domain.ProcessRecord {
	return s.records
}

func fixedClock(t *testing.T, day string) core.Clock {
	t.Helper()
	parsed, err := time.Parse(domain.ISODateLayout, day)
	if err != nil {
		t.Fatalf("parse %s: %v", day, err)
	}
	return core.ClockFunc(func() time.Time { return parsed })
}

func waitForJob(t *testing.T, w *Worker, id string) Record {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		record, ok := w.Get(id)
		if !ok {
			t.Fatalf("job %s disappeared", id)
		}
		if record.Status == StatusSucceeded || record.Status == StatusFailed {
			return record
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return Record{}
}

func TestWorkerProducesArtifacts(t *testing.T) {
	store := blob.NewMemory()
	w := NewWorker(staticSource{records: fixtureRecords()}, store, WithClock(fixedClock(t, fixtureToday)))
	w.Start()
	defer func() { _ = w.Stop(context.Background()) }()

	queued, err := w.Enqueue(context.Background(), Input{
		Formats:     []Format{FormatCSV, FormatSpreadsheet, FormatDashboard},
		RequestedBy: "analista",
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if queued.Status != StatusQueued {
		t.Fatalf("status = %q, want queued", queued.Status)
	}

	done := waitForJob(t, w, queued.ID)
	if done.Status != StatusSucceeded {
		t.Fatalf("status = %q (error %q)", done.Status, done.Error)
	}
	if len(done.Artifacts) != 3 {
		t.Fatalf("got %d artifacts, want 3", len(done.Artifacts))
	}
	if done.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}

	byFormat := map[Format]Artifact{}
	for _, artifact := range done.Artifacts {
		byFormat[artifact.Format] = artifact
	}
	csvArtifact, ok := byFormat[FormatCSV]
	if !ok {
		t.Fatal("missing csv artifact")
	}
	if csvArtifact.FileName != "Seguimiento_DNAIS_2026-03-01.csv" {
		t.Fatalf("csv file name = %q", csvArtifact.FileName)
	}
	if !strings.HasPrefix(csvArtifact.Blob.Key, "exports/"+queued.ID+"/") {
		t.Fatalf("csv key = %q", csvArtifact.Blob.Key)
	}
	if csvArtifact.Blob.ContentType != "text/csv; charset=utf-8" {
		t.Fatalf("csv content type = %q", csvArtifact.Blob.ContentType)
	}

	infos, err := store.List(context.Background(), "exports/"+queued.ID+"/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("stored %d blobs, want 3", len(infos))
	}
}

func TestWorkerDefaultsFormats(t *testing.T) {
	w := NewWorker(staticSource{}, blob.NewMemory(), WithClock(fixedClock(t, fixtureToday)))
	queued, err := w.Enqueue(context.Background(), Input{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(queued.Formats) != 2 || queued.Formats[0] != FormatCSV || queued.Formats[1] != FormatSpreadsheet {
		t.Fatalf("formats = %v", queued.Formats)
	}
}

func TestWorkerRejectsUnknownFormat(t *testing.T) {
	w := NewWorker(staticSource{}, blob.NewMemory(), WithClock(fixedClock(t, fixtureToday)))
	if _, err := w.Enqueue(context.Background(), Input{Formats: []Format{"pdf"}}); err == nil {
		t.Fatal("expected unknown format error")
	}
}

func TestWorkerFailsWhenStoreRejects(t *testing.T) {
	store := blob.NewMemory()
	audit := &captureAudit{}
	w := NewWorker(staticSource{records: fixtureRecords()}, store,
		WithClock(fixedClock(t, fixtureToday)), WithAuditRecorder(audit))

	// Occupy the artifact key so the create-only Put collides.
	queued, err := w.Enqueue(context.Background(), Input{Formats: []Format{FormatCSV}})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	key := "exports/" + queued.ID + "/" + CSVFileName(fixtureToday)
	if _, err := store.Put(context.Background(), key, strings.NewReader("occupied"), blob.PutOptions{}); err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	w.Start()
	defer func() { _ = w.Stop(context.Background()) }()

	done := waitForJob(t, w, queued.ID)
	if done.Status != StatusFailed {
		t.Fatalf("status = %q, want failed", done.Status)
	}
	if done.Error == "" {
		t.Fatal("expected error message")
	}
	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.entries) != 1 || audit.entries[0].Status != core.AuditStatusError {
		t.Fatalf("audit entries = %+v", audit.entries)
	}
}

func TestWorkerListNewestFirst(t *testing.T) {
	w := NewWorker(staticSource{}, blob.NewMemory(), WithClock(fixedClock(t, fixtureToday)))
	first, err := w.Enqueue(context.Background(), Input{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	second, err := w.Enqueue(context.Background(), Input{})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	records := w.List()
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	seen := map[string]bool{records[0].ID: true, records[1].ID: true}
	if !seen[first.ID] || !seen[second.ID] {
		t.Fatalf("missing jobs in %v", records)
	}
}

func TestWorkerStopWaits(t *testing.T) {
	w := NewWorker(staticSource{}, blob.NewMemory(), WithClock(fixedClock(t, fixtureToday)))
	w.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
