// Package core exposes the transactional service operations for the
// procurement process tracker: record CRUD, stage certification with
// chain gating, dashboard aggregation, and remote mirror synchronization.
package core

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"procesocore/internal/infra/persistence/memory"
	"procesocore/internal/remote"
	"procesocore/pkg/domain"
)

const mirrorPushTimeout = 20 * time.Second

// Mirror is the remote spreadsheet surface the service pushes to and
// hydrates from. remote.Client implements it; tests substitute doubles.
type Mirror interface {
	Configured() bool
	Status() remote.Status
	Fetch(ctx context.Context) ([]domain.ProcessRecord, error)
	PushAdd(ctx context.Context, record domain.ProcessRecord) error
	PushUpdate(ctx context.Context, id, field string, value any) error
	PushDelete(ctx context.Context, id string) error
}

// Service exposes higher-level transactional operations over the process
// store. Mirror pushes are detached from the local commit: a failed push
// never rolls the commit back.
type Service struct {
	store   PersistentStore
	mirror  Mirror
	logger  Logger
	clock   Clock
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder

	// dispatch runs mirror pushes. Tests override it to run inline.
	dispatch func(func())
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		mirror:   remote.NewClient(""),
		logger:   noopLogger{},
		clock:    ClockFunc(time.Now),
		dispatch: func(fn func()) { go fn() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

func (s *Service) today() string {
	return s.clock.Now().Format(domain.ISODateLayout)
}

// instrument opens a span and returns the closure that settles metrics,
// tracing, and audit for the operation.
func (s *Service) instrument(ctx context.Context, operation, entityID string) (context.Context, func(error)) {
	started := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	return ctx, func(err error) {
		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.Observe(ctx, operation, err == nil, duration)
		}
		if span != nil {
			span.End(err)
		}
		if s.audit != nil {
			entry := AuditEntry{Operation: operation, EntityID: entityID, Status: AuditStatusSuccess, At: s.clock.Now()}
			if err != nil {
				entry.Status = AuditStatusError
				entry.Error = err.Error()
			}
			s.audit.Record(ctx, entry)
		}
		if err != nil {
			s.logger.Warn("operation failed", "operation", operation, "id", entityID, "error", err)
		}
	}
}

// mirrorPush schedules a detached push when a mirror is configured.
func (s *Service) mirrorPush(operation string, fn func(context.Context) error) {
	if s.mirror == nil || !s.mirror.Configured() {
		return
	}
	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorPushTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Warn("mirror push failed", "operation", operation, "error", err)
		}
	})
}

// CreateProcess validates and persists a new process, then mirrors the row.
func (s *Service) CreateProcess(ctx context.Context, record ProcessRecord) (created ProcessRecord, res Result, err error) {
	ctx, done := s.instrument(ctx, "create_process", record.ID)
	defer func() { done(err) }()

	if strings.TrimSpace(record.Name) == "" {
		err = ErrValidation{Field: "name", Reason: "must not be empty"}
		return
	}
	if !record.ProcessType.IsValid() {
		err = ErrValidation{Field: "processType", Reason: "unknown procurement category"}
		return
	}
	if record.CreatedAt == "" {
		record.CreatedAt = s.today()
	}
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		var txErr error
		created, txErr = tx.CreateProcess(record)
		return txErr
	})
	if err != nil {
		return
	}
	s.logger.Info("process created", "id", created.ID, "name", created.Name)
	mirrored := created.Clone()
	s.mirrorPush("add", func(ctx context.Context) error {
		return s.mirror.PushAdd(ctx, mirrored)
	})
	return
}

// SetStageDate certifies one stage of a process. The stage must be reachable:
// its predecessor's date has to be present at the time of the write.
func (s *Service) SetStageDate(ctx context.Context, id string, stage domain.Stage, date string) (updated ProcessRecord, res Result, err error) {
	ctx, done := s.instrument(ctx, "set_stage_date", id)
	defer func() { done(err) }()

	spec, ok := domain.StageSpecFor(stage)
	if !ok {
		err = ErrValidation{Field: "stage", Reason: "unknown stage"}
		return
	}
	if _, parsed := domain.ParseDate(date); !parsed {
		err = ErrValidation{Field: "date", Reason: "must be a calendar date"}
		return
	}
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		current, found := tx.FindProcess(id)
		if !found {
			return ErrNotFound{Entity: domain.EntityProcess, ID: id}
		}
		if !domain.StageReachable(current, stage) {
			return ErrStageUnreachable{ID: id, Stage: stage, Predecessor: spec.Predecessor}
		}
		var txErr error
		updated, txErr = tx.UpdateProcess(id, func(p *ProcessRecord) error {
			p.SetStageDate(stage, date)
			return nil
		})
		return txErr
	})
	if err != nil {
		return
	}
	s.mirrorPush("update", func(ctx context.Context) error {
		return s.mirror.PushUpdate(ctx, id, spec.Field, date)
	})
	return
}

// ClearStageDate removes a stage certification. Clearing applies no gating:
// the date was legitimately entered once, and clearing a mid-chain stage
// leaves successor dates in place.
func (s *Service) ClearStageDate(ctx context.Context, id string, stage domain.Stage) (updated ProcessRecord, res Result, err error) {
	ctx, done := s.instrument(ctx, "clear_stage_date", id)
	defer func() { done(err) }()

	spec, ok := domain.StageSpecFor(stage)
	if !ok {
		err = ErrValidation{Field: "stage", Reason: "unknown stage"}
		return
	}
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, found := tx.FindProcess(id); !found {
			return ErrNotFound{Entity: domain.EntityProcess, ID: id}
		}
		var txErr error
		updated, txErr = tx.UpdateProcess(id, func(p *ProcessRecord) error {
			p.SetStageDate(stage, "")
			return nil
		})
		return txErr
	})
	if err != nil {
		return
	}
	s.mirrorPush("update", func(ctx context.Context) error {
		return s.mirror.PushUpdate(ctx, id, spec.Field, "")
	})
	return
}

// SetFinalAwardedAmount records the definitive awarded amount. The award
// stage must already carry a date: the amount qualifies an adjudication, it
// does not create one.
func (s *Service) SetFinalAwardedAmount(ctx context.Context, id string, amount decimal.Decimal) (updated ProcessRecord, res Result, err error) {
	ctx, done := s.instrument(ctx, "set_final_awarded_amount", id)
	defer func() { done(err) }()

	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, found := tx.FindProcess(id); !found {
			return ErrNotFound{Entity: domain.EntityProcess, ID: id}
		}
		var txErr error
		updated, txErr = tx.UpdateProcess(id, func(p *ProcessRecord) error {
			if p.AwardedCertDate == "" {
				return ErrValidation{Field: "finalAwardedAmount", Reason: "award stage has no date"}
			}
			value := amount
			p.FinalAwardedAmount = &value
			return nil
		})
		return txErr
	})
	if err != nil {
		return
	}
	s.mirrorPush("update", func(ctx context.Context) error {
		return s.mirror.PushUpdate(ctx, id, "finalAwardedAmount", amount.InexactFloat64())
	})
	return
}

// UpdateDetailsInput carries the editable descriptive fields. Nil members are
// left unchanged.
type UpdateDetailsInput struct {
	Name        *string
	ProcessType *domain.ProcessType
	Budget      *decimal.Decimal
}

// UpdateProcessDetails edits a process's descriptive fields. The spreadsheet
// mirror has no column verbs for these fields, so detail edits stay local.
func (s *Service) UpdateProcessDetails(ctx context.Context, id string, input UpdateDetailsInput) (updated ProcessRecord, res Result, err error) {
	ctx, done := s.instrument(ctx, "update_process_details", id)
	defer func() { done(err) }()

	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		err = ErrValidation{Field: "name", Reason: "must not be empty"}
		return
	}
	if input.ProcessType != nil && !input.ProcessType.IsValid() {
		err = ErrValidation{Field: "processType", Reason: "unknown procurement category"}
		return
	}
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, found := tx.FindProcess(id); !found {
			return ErrNotFound{Entity: domain.EntityProcess, ID: id}
		}
		var txErr error
		updated, txErr = tx.UpdateProcess(id, func(p *ProcessRecord) error {
			if input.Name != nil {
				p.Name = *input.Name
			}
			if input.ProcessType != nil {
				p.ProcessType = *input.ProcessType
			}
			if input.Budget != nil {
				p.Budget = *input.Budget
			}
			return nil
		})
		return txErr
	})
	if err == nil && s.mirror != nil && s.mirror.Configured() {
		s.logger.Debug("detail edit not mirrored", "id", id)
	}
	return
}

// DeleteProcess removes a process and its mirror row.
func (s *Service) DeleteProcess(ctx context.Context, id string) (res Result, err error) {
	ctx, done := s.instrument(ctx, "delete_process", id)
	defer func() { done(err) }()

	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, found := tx.FindProcess(id); !found {
			return ErrNotFound{Entity: domain.EntityProcess, ID: id}
		}
		return tx.DeleteProcess(id)
	})
	if err != nil {
		return
	}
	s.logger.Info("process deleted", "id", id)
	s.mirrorPush("delete", func(ctx context.Context) error {
		return s.mirror.PushDelete(ctx, id)
	})
	return
}

// GetProcess retrieves one record.
func (s *Service) GetProcess(ctx context.Context, id string) (ProcessRecord, error) {
	_, done := s.instrument(ctx, "get_process", id)
	record, ok := s.store.GetProcess(id)
	if !ok {
		err := ErrNotFound{Entity: domain.EntityProcess, ID: id}
		done(err)
		return ProcessRecord{}, err
	}
	done(nil)
	return record, nil
}

// ListFilter narrows ListProcesses output. Zero values match everything.
type ListFilter struct {
	Query       string
	ProcessType domain.ProcessType
	Completed   *bool
}

// ListProcesses returns records newest first, optionally filtered.
func (s *Service) ListProcesses(ctx context.Context, filter ListFilter) []ProcessRecord {
	_, done := s.instrument(ctx, "list_processes", "")
	defer done(nil)

	records := s.store.ListProcesses()
	if filter.Query != "" {
		records = domain.FilterByName(records, filter.Query)
	}
	if filter.ProcessType != "" {
		records = domain.FilterByType(records, filter.ProcessType)
	}
	if filter.Completed != nil {
		records = domain.FilterByCompletion(records, *filter.Completed)
	}
	return records
}

// Stages evaluates the certification chain for one record.
func (s *Service) Stages(ctx context.Context, id string) ([]domain.StageStatus, error) {
	_, done := s.instrument(ctx, "stages", id)
	record, ok := s.store.GetProcess(id)
	if !ok {
		err := ErrNotFound{Entity: domain.EntityProcess, ID: id}
		done(err)
		return nil, err
	}
	done(nil)
	return domain.EvaluateStages(record, s.today()), nil
}

// Dashboard computes the aggregate metrics snapshot over the full list.
func (s *Service) Dashboard(ctx context.Context) domain.DashboardMetrics {
	_, done := s.instrument(ctx, "dashboard", "")
	defer done(nil)
	return domain.ComputeDashboard(s.store.ListProcesses(), s.today())
}

// SyncState describes the remote mirror link for status surfaces.
type SyncState struct {
	Configured bool          `json:"configured"`
	Status     remote.Status `json:"status"`
}

// SyncStatus reports the mirror link state.
func (s *Service) SyncStatus() SyncState {
	if s.mirror == nil {
		return SyncState{Status: remote.StatusDisconnected}
	}
	return SyncState{Configured: s.mirror.Configured(), Status: s.mirror.Status()}
}

// Hydrate loads the record list from the mirror into the local store. A fetch
// failure is not fatal: the local snapshot keeps serving and the mirror
// status stays disconnected.
func (s *Service) Hydrate(ctx context.Context) (err error) {
	ctx, done := s.instrument(ctx, "hydrate", "")
	defer func() { done(err) }()

	if s.mirror == nil || !s.mirror.Configured() {
		s.logger.Info("mirror not configured, serving local snapshot")
		return nil
	}
	records, fetchErr := s.mirror.Fetch(ctx)
	if fetchErr != nil {
		s.logger.Warn("mirror fetch failed, serving local snapshot", "error", fetchErr)
		return nil
	}
	if err = s.store.ReplaceAll(ctx, records); err != nil {
		return err
	}
	s.logger.Info("hydrated from mirror", "records", len(records))
	return nil
}
