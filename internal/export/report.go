package export

import (
	"encoding/json"
	"fmt"

	"procesocore/pkg/domain"
)

// DashboardReport is the JSON artifact bundling the computed dashboard with
// the records it was derived from.
type DashboardReport struct {
	GeneratedAt string                  `json:"generatedAt"`
	Metrics     domain.DashboardMetrics `json:"metrics"`
	Processes   []domain.ProcessRecord  `json:"processes"`
}

// RenderDashboardJSON computes dashboard metrics over the records and encodes
// the report.
func RenderDashboardJSON(records []domain.ProcessRecord, today string) ([]byte, error) {
	report := DashboardReport{
		GeneratedAt: today,
		Metrics:     domain.ComputeDashboard(records, today),
		Processes:   records,
	}
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal dashboard report: %w", err)
	}
	return payload, nil
}

// DashboardFileName names the artifact after the export day.
func DashboardFileName(today string) string {
	return fmt.Sprintf("Dashboard_DNAIS_%s.json", today)
}
