package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultStaleLimit is the ranking depth of the stale-active report.
const DefaultStaleLimit = 5

// StageAverage is the mean transition time for one chained stage across the
// records that have both boundary dates. A zero SampleCount carries a zero
// average; callers never divide.
type StageAverage struct {
	Stage       Stage  `json:"stage"`
	Label       string `json:"label"`
	AverageDays int    `json:"averageDays"`
	SampleCount int    `json:"sampleCount"`
}

// StaleProcess ranks an active record by its age since creation.
type StaleProcess struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	ProcessType      ProcessType `json:"processType"`
	DaysSinceCreated int         `json:"daysSinceCreated"`
}

// CategoryShare is the budget weight of one procurement category within a set.
type CategoryShare struct {
	ProcessType ProcessType     `json:"processType"`
	Budget      decimal.Decimal `json:"budget"`
	Count       int             `json:"count"`
}

// DashboardMetrics is the aggregate snapshot backing the reporting surface.
type DashboardMetrics struct {
	TotalProcesses  int             `json:"totalProcesses"`
	TotalBudget     decimal.Decimal `json:"totalBudget"`
	CertifiedBudget decimal.Decimal `json:"certifiedBudget"`
	ExecutionRate   float64         `json:"executionRate"`
	CompletedCount  int             `json:"completedCount"`
	ActiveCount     int             `json:"activeCount"`
	StageAverages   []StageAverage  `json:"stageAverages"`
	TopStale        []StaleProcess  `json:"topStale"`
	Categories      []CategoryShare `json:"categories"`
}

// All aggregate functions below are pure and re-derive their result from the
// supplied list on every call. At the volumes involved (tens to low hundreds
// of records) that recomputation is the contract: the answer is always
// consistent with the current list, and no cache can go stale.

// TotalBudget sums the reference budgets of the set.
func TotalBudget(records []ProcessRecord) decimal.Decimal {
	total := decimal.Zero
	for _, p := range records {
		total = total.Add(p.Budget)
	}
	return total
}

// CertifiedBudget sums awarded amounts over records whose award stage is
// certified, using the reference budget when no final amount was recorded.
func CertifiedBudget(records []ProcessRecord) decimal.Decimal {
	total := decimal.Zero
	for _, p := range records {
		if p.Completed() {
			total = total.Add(p.AwardedAmount())
		}
	}
	return total
}

// ExecutionRate is certified budget as a percentage of total budget, 0 when
// the total is zero.
func ExecutionRate(records []ProcessRecord) float64 {
	total := TotalBudget(records)
	if total.IsZero() {
		return 0
	}
	rate, _ := CertifiedBudget(records).Div(total).Mul(decimal.NewFromInt(100)).Float64()
	return rate
}

// CompletedCount counts records with a certified award stage.
func CompletedCount(records []ProcessRecord) int {
	n := 0
	for _, p := range records {
		if p.Completed() {
			n++
		}
	}
	return n
}

// ActiveCount counts records still in the pipeline.
func ActiveCount(records []ProcessRecord) int {
	return len(records) - CompletedCount(records)
}

// StageAverages computes, for each of the seven chained stage transitions,
// the mean day count across records holding both boundary dates, rounded to
// the nearest whole day.
func StageAverages(records []ProcessRecord) []StageAverage {
	out := make([]StageAverage, 0, len(stageChain)-1)
	for _, spec := range stageChain {
		if spec.Predecessor == "" {
			continue
		}
		total, count := 0, 0
		for _, p := range records {
			own := p.StageDate(spec.Stage)
			prev := p.StageDate(spec.Predecessor)
			if own == "" || prev == "" {
				continue
			}
			total += DaysBetween(prev, own)
			count++
		}
		avg := StageAverage{Stage: spec.Stage, Label: spec.Label, SampleCount: count}
		if count > 0 {
			avg.AverageDays = (total + count/2) / count
		}
		out = append(out, avg)
	}
	return out
}

// TopStaleActive ranks records without an award date by days since their
// creation date (a missing creation date counts as created now, hence age 0),
// descending, keeping the first limit entries. Ties keep list order.
func TopStaleActive(records []ProcessRecord, limit int, today string) []StaleProcess {
	if limit <= 0 {
		limit = DefaultStaleLimit
	}
	stale := make([]StaleProcess, 0, len(records))
	for _, p := range records {
		if p.Completed() {
			continue
		}
		stale = append(stale, StaleProcess{
			ID:               p.ID,
			Name:             p.Name,
			ProcessType:      p.ProcessType,
			DaysSinceCreated: DaysBetween(p.CreatedAt, today),
		})
	}
	sort.SliceStable(stale, func(i, j int) bool {
		return stale[i].DaysSinceCreated > stale[j].DaysSinceCreated
	})
	if len(stale) > limit {
		stale = stale[:limit]
	}
	return stale
}

// CategoryDistribution sums budget and record count per procurement category,
// sorted by summed budget descending. Categories with no records are omitted.
func CategoryDistribution(records []ProcessRecord) []CategoryShare {
	byType := make(map[ProcessType]*CategoryShare)
	order := make([]ProcessType, 0)
	for _, p := range records {
		share, ok := byType[p.ProcessType]
		if !ok {
			share = &CategoryShare{ProcessType: p.ProcessType, Budget: decimal.Zero}
			byType[p.ProcessType] = share
			order = append(order, p.ProcessType)
		}
		share.Budget = share.Budget.Add(p.Budget)
		share.Count++
	}
	out := make([]CategoryShare, 0, len(order))
	for _, t := range order {
		out = append(out, *byType[t])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Budget.GreaterThan(out[j].Budget)
	})
	return out
}

// ComputeDashboard assembles the full aggregate snapshot for a record set.
func ComputeDashboard(records []ProcessRecord, today string) DashboardMetrics {
	return DashboardMetrics{
		TotalProcesses:  len(records),
		TotalBudget:     TotalBudget(records),
		CertifiedBudget: CertifiedBudget(records),
		ExecutionRate:   ExecutionRate(records),
		CompletedCount:  CompletedCount(records),
		ActiveCount:     ActiveCount(records),
		StageAverages:   StageAverages(records),
		TopStale:        TopStaleActive(records, DefaultStaleLimit, today),
		Categories:      CategoryDistribution(records),
	}
}

// Filter helpers. Filtering is a caller concern; the aggregates above accept
// whatever subset they are handed.

// FilterByType keeps records of one procurement category.
func FilterByType(records []ProcessRecord, t ProcessType) []ProcessRecord {
	out := make([]ProcessRecord, 0, len(records))
	for _, p := range records {
		if p.ProcessType == t {
			out = append(out, p)
		}
	}
	return out
}

// FilterByCompletion keeps completed or active records.
func FilterByCompletion(records []ProcessRecord, completed bool) []ProcessRecord {
	out := make([]ProcessRecord, 0, len(records))
	for _, p := range records {
		if p.Completed() == completed {
			out = append(out, p)
		}
	}
	return out
}

// FilterByName keeps records whose name contains the query,
// case-insensitively. An empty query keeps everything.
func FilterByName(records []ProcessRecord, query string) []ProcessRecord {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return records
	}
	out := make([]ProcessRecord, 0, len(records))
	for _, p := range records {
		if strings.Contains(strings.ToLower(p.Name), query) {
			out = append(out, p)
		}
	}
	return out
}
