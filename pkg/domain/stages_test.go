package domain

import "testing"

const fixtureToday = "2026-03-01"

func TestStageChainOrder(t *testing.T) {
	chain := StageChain()
	if len(chain) != 8 {
		t.Fatalf("chain length = %d, want 8", len(chain))
	}
	if chain[0].Stage != StageMarketStudy || chain[0].Predecessor != "" {
		t.Fatalf("chain must open with the market study and no predecessor, got %+v", chain[0])
	}
	for i := 1; i < len(chain); i++ {
		if chain[i].Predecessor != chain[i-1].Stage {
			t.Fatalf("stage %s predecessor = %s, want %s", chain[i].Stage, chain[i].Predecessor, chain[i-1].Stage)
		}
	}
	if chain[len(chain)-1].Stage != StageAward {
		t.Fatalf("chain must close with the award stage, got %s", chain[len(chain)-1].Stage)
	}
}

func TestUnreachableStageReportsSentinel(t *testing.T) {
	// No market study date: process start must be unreachable no matter what
	// else is filled in.
	p := ProcessRecord{ProcessStartDate: "2026-01-08", PlanningCertDate: "2026-01-15"}
	status := EvaluateStage(p, StageProcessStart, fixtureToday)
	if status.Reachable {
		t.Fatal("process start reachable without a market study date")
	}
	if status.Elapsed.Known {
		t.Fatalf("unreachable stage carries a day count of %d, want sentinel", status.Elapsed.Days)
	}
}

func TestCompletedStageElapsedDays(t *testing.T) {
	p := ProcessRecord{
		MarketStudyReportDate: "2026-01-01",
		ProcessStartDate:      "2026-01-08",
	}
	status := EvaluateStage(p, StageProcessStart, fixtureToday)
	if !status.Reachable || !status.Completed {
		t.Fatalf("status = %+v, want reachable and completed", status)
	}
	if !status.Elapsed.Known || status.Elapsed.Days != 7 {
		t.Fatalf("elapsed = %+v, want 7 known days", status.Elapsed)
	}
}

func TestPendingStageCountsAgainstToday(t *testing.T) {
	p := ProcessRecord{
		MarketStudyReportDate: "2026-02-01",
		ProcessStartDate:      "2026-02-10",
	}
	status := EvaluateStage(p, StagePlanning, fixtureToday)
	if !status.Reachable || status.Completed {
		t.Fatalf("status = %+v, want reachable and pending", status)
	}
	want := DaysBetween("2026-02-10", fixtureToday)
	if !status.Elapsed.Known || status.Elapsed.Days != want {
		t.Fatalf("elapsed = %+v, want %d live days", status.Elapsed, want)
	}
}

func TestMarketStudyAlwaysReachableNeverCounted(t *testing.T) {
	for _, p := range []ProcessRecord{{}, {MarketStudyReportDate: "2026-01-01"}} {
		status := EvaluateStage(p, StageMarketStudy, fixtureToday)
		if !status.Reachable {
			t.Fatal("market study must always be reachable")
		}
		if status.Elapsed.Known {
			t.Fatalf("market study carries a day count of %d, want sentinel", status.Elapsed.Days)
		}
	}
}

func TestReachabilityGatesOnPresenceNotChronology(t *testing.T) {
	// Reversed dates: planning certified before the process started. The
	// chain stays reachable and the count stays positive.
	p := ProcessRecord{
		MarketStudyReportDate: "2026-01-01",
		ProcessStartDate:      "2026-02-01",
		PlanningCertDate:      "2026-01-20",
	}
	status := EvaluateStage(p, StagePlanning, fixtureToday)
	if !status.Reachable || !status.Completed {
		t.Fatalf("status = %+v, want reachable and completed despite reversed dates", status)
	}
	if status.Elapsed.Days != 12 {
		t.Fatalf("reversed dates elapsed = %d, want 12", status.Elapsed.Days)
	}
	if !StageReachable(p, StageProcurement) {
		t.Fatal("procurement must be reachable: its predecessor date is present")
	}
}

func TestEvaluateStagesNewRecord(t *testing.T) {
	p := ProcessRecord{Name: "X", ProcessType: TypeLicitacion, CreatedAt: fixtureToday}
	statuses := EvaluateStages(p, fixtureToday)
	if len(statuses) != 8 {
		t.Fatalf("evaluated %d stages, want 8", len(statuses))
	}
	for i, status := range statuses {
		if i == 0 {
			if !status.Reachable {
				t.Fatal("fresh record: market study must be reachable")
			}
			continue
		}
		if status.Reachable {
			t.Fatalf("fresh record: stage %s must be unreachable", status.Stage)
		}
		if status.Elapsed.Known {
			t.Fatalf("fresh record: stage %s must carry the sentinel", status.Stage)
		}
	}
}

func TestStageDateRoundTrip(t *testing.T) {
	var p ProcessRecord
	for _, spec := range StageChain() {
		p.SetStageDate(spec.Stage, "2026-04-01")
		if got := p.StageDate(spec.Stage); got != "2026-04-01" {
			t.Fatalf("stage %s date = %q after set", spec.Stage, got)
		}
	}
}

func TestTotalElapsed(t *testing.T) {
	p := ProcessRecord{
		MarketStudyReportDate: "2026-01-01",
		AwardedCertDate:       "2026-02-15",
		CreatedAt:             "2025-12-01",
	}
	if got := TotalElapsed(p, fixtureToday); !got.Known || got.Days != 45 {
		t.Fatalf("total elapsed = %+v, want 45 known days", got)
	}

	// Falls back to the creation date, then to today.
	p.MarketStudyReportDate = ""
	if got := TotalElapsed(p, fixtureToday); !got.Known || got.Days != DaysBetween("2025-12-01", "2026-02-15") {
		t.Fatalf("fallback total elapsed = %+v", got)
	}
	if got := TotalElapsed(ProcessRecord{}, fixtureToday); got.Known {
		t.Fatalf("total elapsed with no boundaries = %+v, want sentinel", got)
	}
}
