package domain

// Stage identifies one step in the fixed certification chain.
type Stage string

// Certification stages in chain order. Each stage except the first is gated
// by the presence of its predecessor's date.
const (
	StageMarketStudy  Stage = "market_study"
	StageProcessStart Stage = "process_start"
	StagePlanning     Stage = "planning"
	StageProcurement  Stage = "procurement"
	StageFinancial    Stage = "financial"
	StageDelegate     Stage = "delegate"
	StageLegal        Stage = "legal"
	StageAward        Stage = "award"
)

// StageSpec describes one stage's position in the chain.
type StageSpec struct {
	Stage Stage
	// Label is the Spanish display name used by exports and reports.
	Label string
	// Field is the record's JSON field name for the stage date. The remote
	// mirror addresses columns by it.
	Field string
	// Predecessor is empty for the first stage.
	Predecessor Stage
}

var stageChain = []StageSpec{
	{Stage: StageMarketStudy, Label: "Informe Est. Mercado", Field: "marketStudyReportDate"},
	{Stage: StageProcessStart, Label: "Inicio de Proceso", Field: "processStartDate", Predecessor: StageMarketStudy},
	{Stage: StagePlanning, Label: "Planificación", Field: "planningCertDate", Predecessor: StageProcessStart},
	{Stage: StageProcurement, Label: "Compras Públicas", Field: "procurementCertDate", Predecessor: StagePlanning},
	{Stage: StageFinancial, Label: "Financiero", Field: "financialCertDate", Predecessor: StageProcurement},
	{Stage: StageDelegate, Label: "Delegado", Field: "delegateCertDate", Predecessor: StageFinancial},
	{Stage: StageLegal, Label: "Jurídico", Field: "legalCertDate", Predecessor: StageDelegate},
	{Stage: StageAward, Label: "Adjudicada", Field: "awardedCertDate", Predecessor: StageLegal},
}

// StageChain returns the ordered stage specs.
func StageChain() []StageSpec {
	out := make([]StageSpec, len(stageChain))
	copy(out, stageChain)
	return out
}

// StageSpecFor returns the spec for a stage identifier.
func StageSpecFor(stage Stage) (StageSpec, bool) {
	for _, spec := range stageChain {
		if spec.Stage == stage {
			return spec, true
		}
	}
	return StageSpec{}, false
}

// StageDate returns the record's date field for the given stage ("" when the
// stage is not certified or the stage is unknown).
func (p ProcessRecord) StageDate(stage Stage) string {
	switch stage {
	case StageMarketStudy:
		return p.MarketStudyReportDate
	case StageProcessStart:
		return p.ProcessStartDate
	case StagePlanning:
		return p.PlanningCertDate
	case StageProcurement:
		return p.ProcurementCertDate
	case StageFinancial:
		return p.FinancialCertDate
	case StageDelegate:
		return p.DelegateCertDate
	case StageLegal:
		return p.LegalCertDate
	case StageAward:
		return p.AwardedCertDate
	}
	return ""
}

// SetStageDate writes the record's date field for the given stage. It applies
// no gating: write-boundary enforcement belongs to the caller.
func (p *ProcessRecord) SetStageDate(stage Stage, date string) {
	switch stage {
	case StageMarketStudy:
		p.MarketStudyReportDate = date
	case StageProcessStart:
		p.ProcessStartDate = date
	case StagePlanning:
		p.PlanningCertDate = date
	case StageProcurement:
		p.ProcurementCertDate = date
	case StageFinancial:
		p.FinancialCertDate = date
	case StageDelegate:
		p.DelegateCertDate = date
	case StageLegal:
		p.LegalCertDate = date
	case StageAward:
		p.AwardedCertDate = date
	}
}

// Elapsed is the tagged day count attached to a stage evaluation. Known is
// false for unreachable stages, whose rendering must stay distinct from a
// zero-day count.
type Elapsed struct {
	Days  int
	Known bool
}

// StageStatus is the evaluator's verdict for one stage of one record.
type StageStatus struct {
	Stage Stage
	Label string
	// Reachable is true iff the predecessor stage's date is present. The
	// first stage is always reachable. Presence gates, not chronology.
	Reachable bool
	// Completed is true iff this stage's own date is present.
	Completed bool
	Date      string
	Elapsed   Elapsed
}

// EvaluateStage answers reachability, completion, and elapsed days for one
// stage from the record's fields alone. It is a pure query: it renders
// gating, it does not enforce it.
func EvaluateStage(p ProcessRecord, stage Stage, today string) StageStatus {
	spec, ok := StageSpecFor(stage)
	if !ok {
		return StageStatus{Stage: stage}
	}
	status := StageStatus{
		Stage: spec.Stage,
		Label: spec.Label,
		Date:  p.StageDate(spec.Stage),
	}
	status.Completed = status.Date != ""

	if spec.Predecessor == "" {
		// The market study opens the chain: no predecessor transition exists,
		// so its day count is always the sentinel.
		status.Reachable = true
		return status
	}

	prevDate := p.StageDate(spec.Predecessor)
	status.Reachable = prevDate != ""
	if !status.Reachable {
		return status
	}
	if status.Completed {
		status.Elapsed = Elapsed{Days: DaysBetween(prevDate, status.Date), Known: true}
		return status
	}
	// Reachable but pending: a live counter against today.
	status.Elapsed = Elapsed{Days: DaysBetween(prevDate, today), Known: true}
	return status
}

// EvaluateStages evaluates the full chain for a record.
func EvaluateStages(p ProcessRecord, today string) []StageStatus {
	out := make([]StageStatus, 0, len(stageChain))
	for _, spec := range stageChain {
		out = append(out, EvaluateStage(p, spec.Stage, today))
	}
	return out
}

// StageReachable reports whether a stage is open for data entry on the
// record. Used by write boundaries to gate mutations.
func StageReachable(p ProcessRecord, stage Stage) bool {
	spec, ok := StageSpecFor(stage)
	if !ok {
		return false
	}
	if spec.Predecessor == "" {
		return true
	}
	return p.StageDate(spec.Predecessor) != ""
}

// TotalElapsed is the whole-process day count: market study date (falling
// back to creation date) through award date (falling back to today). Known is
// false when no start boundary exists at all.
func TotalElapsed(p ProcessRecord, today string) Elapsed {
	start := p.MarketStudyReportDate
	if start == "" {
		start = p.CreatedAt
	}
	if start == "" {
		return Elapsed{}
	}
	end := p.AwardedCertDate
	if end == "" {
		end = today
	}
	return Elapsed{Days: DaysBetween(start, end), Known: true}
}
