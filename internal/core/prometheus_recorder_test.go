package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorderObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}

	ctx := context.Background()
	rec.Observe(ctx, "create_process", true, 120*time.Millisecond)
	rec.Observe(ctx, "create_process", true, 80*time.Millisecond)
	rec.Observe(ctx, "delete_process", false, 10*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // unnamed operations are dropped

	if got := testutil.ToFloat64(rec.results.WithLabelValues("create_process", "success")); got != 2 {
		t.Fatalf("create_process success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(rec.results.WithLabelValues("delete_process", "error")); got != 1 {
		t.Fatalf("delete_process error count = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := map[string]bool{}
	for _, fam := range families {
		seen[fam.GetName()] = true
	}
	for _, name := range []string{
		"procesocore_service_operation_duration_seconds",
		"procesocore_service_operation_results_total",
	} {
		if !seen[name] {
			t.Fatalf("registry missing %s, got %v", name, seen)
		}
	}
}

func TestPrometheusRecorderRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusMetricsRecorder(reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatal("second registration on the same registry should fail")
	}
}
