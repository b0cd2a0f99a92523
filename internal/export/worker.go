package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"procesocore/internal/blob"
	"procesocore/internal/core"
	"procesocore/pkg/domain"
)

// Format identifies an export rendering.
type Format string

const (
	FormatCSV         Format = "csv"
	FormatSpreadsheet Format = "xls"
	FormatDashboard   Format = "dashboard"
)

// Status describes the lifecycle stage of an export job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact is one stored rendering of an export job.
type Artifact struct {
	Format   Format    `json:"format"`
	FileName string    `json:"fileName"`
	Blob     blob.Info `json:"blob"`
}

// Record tracks an export job and its resulting artifacts.
type Record struct {
	ID          string     `json:"id"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	RequestedBy string     `json:"requestedBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (r Record) clone() Record {
	out := r
	out.Formats = append([]Format(nil), r.Formats...)
	out.Artifacts = append([]Artifact(nil), r.Artifacts...)
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

// Input is an enqueue request.
type Input struct {
	Formats     []Format
	RequestedBy string
}

// Source supplies the records an export renders. *core.Service satisfies it.
type Source interface {
	ListProcesses(ctx context.Context, filter core.ListFilter) []domain.ProcessRecord
}

// Worker runs export jobs asynchronously, storing artifacts in a blob store.
type Worker struct {
	source Source
	store  blob.Store
	logger core.Logger
	clock  core.Clock
	audit  core.AuditRecorder

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id string
}

// Option configures the worker.
type Option func(*Worker)

// WithLogger replaces the no-op logger.
func WithLogger(l core.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock pins the worker's notion of today.
func WithClock(c core.Clock) Option {
	return func(w *Worker) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithAuditRecorder records job completion and failure.
func WithAuditRecorder(a core.AuditRecorder) Option {
	return func(w *Worker) {
		if a != nil {
			w.audit = a
		}
	}
}

// NewWorker constructs an export worker over the given source and store.
func NewWorker(source Source, store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		source: source,
		store:  store,
		logger: core.NopLogger(),
		clock:  core.ClockFunc(time.Now),
		queue:  make(chan task, 32),
		jobs:   make(map[string]*Record),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins processing queued jobs.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop halts processing and waits for the in-flight job, if any.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t.id)
		}
	}
}

// Enqueue schedules an export job and returns its queued record.
func (w *Worker) Enqueue(_ context.Context, input Input) (Record, error) {
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatCSV, FormatSpreadsheet}
	}
	seen := make(map[Format]struct{}, len(formats))
	uniq := make([]Format, 0, len(formats))
	for _, format := range formats {
		switch format {
		case FormatCSV, FormatSpreadsheet, FormatDashboard:
		default:
			return Record{}, fmt.Errorf("unknown export format %q", format)
		}
		if _, dup := seen[format]; dup {
			continue
		}
		seen[format] = struct{}{}
		uniq = append(uniq, format)
	}

	now := w.clock.Now().UTC()
	record := Record{
		ID:          uuid.NewString(),
		Formats:     uniq,
		Status:      StatusQueued,
		RequestedBy: strings.TrimSpace(input.RequestedBy),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[record.ID] = &record
	snapshot := record.clone()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: record.ID}:
	default:
		w.fail(record.ID, "export queue full")
		return Record{}, fmt.Errorf("export queue full")
	}
	return snapshot, nil
}

// Get returns a snapshot of an export job.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.clone(), true
}

// List returns snapshots of all known jobs, newest first.
func (w *Worker) List() []Record {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Record, 0, len(w.jobs))
	for _, record := range w.jobs {
		out = append(out, record.clone())
	}
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt.After(out[i].CreatedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func (w *Worker) process(id string) {
	record, ok := w.Get(id)
	if !ok {
		return
	}
	w.setStatus(id, StatusRunning, "")

	records := w.source.ListProcesses(w.ctx, core.ListFilter{})
	today := w.clock.Now().Format(domain.ISODateLayout)

	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		payload, fileName, contentType, err := render(format, records, today)
		if err != nil {
			w.fail(id, err.Error())
			return
		}
		key := fmt.Sprintf("exports/%s/%s", id, fileName)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: contentType,
			Metadata:    map[string]string{"format": string(format), "job": id},
		})
		if err != nil {
			w.fail(id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		artifacts = append(artifacts, Artifact{Format: format, FileName: fileName, Blob: info})
	}
	w.complete(id, artifacts)
}

func render(format Format, records []domain.ProcessRecord, today string) (payload []byte, fileName, contentType string, err error) {
	switch format {
	case FormatCSV:
		payload, err = RenderCSV(records, today)
		return payload, CSVFileName(today), "text/csv; charset=utf-8", err
	case FormatSpreadsheet:
		payload, err = RenderSpreadsheet(records, today)
		return payload, SpreadsheetFileName(today), "application/vnd.ms-excel", err
	case FormatDashboard:
		payload, err = RenderDashboardJSON(records, today)
		return payload, DashboardFileName(today), "application/json", err
	default:
		return nil, "", "", fmt.Errorf("unknown export format %q", format)
	}
}

func (w *Worker) setStatus(id string, status Status, message string) {
	now := w.clock.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = status
		record.Error = message
		record.UpdatedAt = now
	}
	w.mu.Unlock()
}

func (w *Worker) complete(id string, artifacts []Artifact) {
	now := w.clock.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusSucceeded
		record.Error = ""
		record.Artifacts = artifacts
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Info("export job succeeded", "job", id, "artifacts", len(artifacts))
	if w.audit != nil {
		w.audit.Record(w.ctx, core.AuditEntry{Operation: "export", EntityID: id, Status: core.AuditStatusSuccess, At: now})
	}
}

func (w *Worker) fail(id, reason string) {
	now := w.clock.Now().UTC()
	w.mu.Lock()
	if record, ok := w.jobs[id]; ok {
		record.Status = StatusFailed
		record.Error = reason
		record.UpdatedAt = now
		record.CompletedAt = &now
	}
	w.mu.Unlock()
	w.logger.Warn("export job failed", "job", id, "error", reason)
	if w.audit != nil {
		w.audit.Record(w.ctx, core.AuditEntry{Operation: "export", EntityID: id, Status: core.AuditStatusError, Error: reason, At: now})
	}
}
