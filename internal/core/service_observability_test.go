package core

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"procesocore/pkg/domain"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func TestServiceOperationsEmitObservability(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	svc := newTestService(
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
	)

	created := mustCreate(t, svc, ProcessRecord{Name: "Observada", ProcessType: domain.TypeLicitacion})
	if !audit.has("create_process", AuditStatusSuccess) {
		t.Fatalf("missing create audit entry: %+v", audit.entries)
	}
	if !metrics.has("create_process", true) {
		t.Fatalf("missing create metric: %+v", metrics.calls)
	}
	if !tracer.has("create_process", true) {
		t.Fatalf("missing create span: %+v", tracer.ended)
	}

	if _, err := svc.DeleteProcess(ctx, "missing"); err == nil {
		t.Fatal("expected delete error")
	}
	if !audit.has("delete_process", AuditStatusError) {
		t.Fatalf("missing failed delete audit entry")
	}
	if !metrics.has("delete_process", false) {
		t.Fatalf("missing failed delete metric")
	}
	if !tracer.has("delete_process", false) {
		t.Fatalf("missing failed delete span")
	}

	if _, _, err := svc.SetStageDate(ctx, created.ID, domain.StageMarketStudy, "2026-03-01"); err != nil {
		t.Fatalf("set stage: %v", err)
	}
	if !audit.has("set_stage_date", AuditStatusSuccess) {
		t.Fatalf("missing stage audit entry")
	}
}

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.Observe(context.Background(), "create_process", true, 5*time.Millisecond)
	rec.Observe(context.Background(), "create_process", false, 3*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	snap := rec.Snapshot()
	if snap.Results["create_process"]["success"] != 1 || snap.Results["create_process"]["error"] != 1 {
		t.Fatalf("results = %+v", snap.Results)
	}
	if snap.DurationsMS["create_process"] != 8 {
		t.Fatalf("durations = %+v", snap.DurationsMS)
	}
	if !strings.HasPrefix(rec.Name(), "process_service_metrics_") {
		t.Fatalf("generated name = %q", rec.Name())
	}
}

func TestJSONTracerEmitsEntries(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "dashboard")
	span.End(nil)

	entries := tracer.Entries()
	if len(entries) != 1 || entries[0].Operation != "dashboard" || entries[0].Status != "success" {
		t.Fatalf("entries = %+v", entries)
	}
	if !strings.Contains(buf.String(), `"operation":"dashboard"`) {
		t.Fatalf("encoded output = %q", buf.String())
	}
}
