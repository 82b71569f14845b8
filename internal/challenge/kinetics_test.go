package challenge

import (
	"testing"
	"time"
)

func day(t *testing.T, date string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		t.Fatalf("bad test date %q: %v", date, err)
	}
	return parsed
}

func entryAt(t *testing.T, asOf string, teams ...TeamSnapshot) HistoryEntry {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, asOf)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", asOf, err)
	}
	constants := DefaultConstants()
	return HistoryEntry{
		AsOf:      parsed,
		SavedAt:   parsed,
		Teams:     teams,
		Constants: &constants,
	}
}

func pointsTeam(name string, points float64) TeamSnapshot {
	return TeamSnapshot{Name: name, TeamPoints: &points}
}

func seriesFor(t *testing.T, all []TeamKinetics, name string) []KineticsPoint {
	t.Helper()
	for _, k := range all {
		if k.Name == name {
			return k.Series
		}
	}
	t.Fatalf("no kinetics series for team %q", name)
	return nil
}

func TestBuildDailyKinetics_GapFill(t *testing.T) {
	history := []HistoryEntry{
		entryAt(t, "2025-09-01T08:00:00Z", pointsTeam("alpha", 100)),
		entryAt(t, "2025-09-06T08:00:00Z", pointsTeam("alpha", 150)),
	}

	kinetics := BuildDailyKinetics(history, DefaultConstants(), DefaultKineticsConfig())
	series := seriesFor(t, kinetics, "alpha")

	// Five-day gap: both real entries plus four synthesised days between.
	if len(series) != 6 {
		t.Fatalf("series length = %d, want 6", len(series))
	}
	for i, point := range series {
		wantPoints := 100 + float64(i)*10
		if point.Points != wantPoints {
			t.Errorf("day %d points = %v, want %v", i, point.Points, wantPoints)
		}
		wantDate := day(t, "2025-09-01").AddDate(0, 0, i)
		if !point.Date.Equal(wantDate) {
			t.Errorf("day %d date = %v, want %v", i, point.Date, wantDate)
		}
		wantEstimated := i != 0 && i != 5
		if point.Estimated != wantEstimated {
			t.Errorf("day %d estimated = %v, want %v", i, point.Estimated, wantEstimated)
		}
	}
}

func TestBuildDailyKinetics_VelocityAndAcceleration(t *testing.T) {
	history := []HistoryEntry{
		entryAt(t, "2025-09-01T08:00:00Z", pointsTeam("alpha", 100)),
		entryAt(t, "2025-09-02T08:00:00Z", pointsTeam("alpha", 120)),
		entryAt(t, "2025-09-03T08:00:00Z", pointsTeam("alpha", 150)),
	}

	kinetics := BuildDailyKinetics(history, DefaultConstants(), DefaultKineticsConfig())
	series := seriesFor(t, kinetics, "alpha")
	if len(series) != 3 {
		t.Fatalf("series length = %d, want 3", len(series))
	}

	wantVelocity := []float64{0, 20, 30}
	wantAccel := []float64{0, 0, 10}
	for i := range series {
		if series[i].Velocity != wantVelocity[i] {
			t.Errorf("velocity[%d] = %v, want %v", i, series[i].Velocity, wantVelocity[i])
		}
		if series[i].Acceleration != wantAccel[i] {
			t.Errorf("acceleration[%d] = %v, want %v", i, series[i].Acceleration, wantAccel[i])
		}
	}
}

func TestBuildDailyKinetics_EMA(t *testing.T) {
	history := []HistoryEntry{
		entryAt(t, "2025-09-01T08:00:00Z", pointsTeam("alpha", 100)),
		entryAt(t, "2025-09-02T08:00:00Z", pointsTeam("alpha", 120)),
		entryAt(t, "2025-09-03T08:00:00Z", pointsTeam("alpha", 150)),
	}

	t.Run("alpha one tracks raw series", func(t *testing.T) {
		cfg := KineticsConfig{VelocityAlpha: 1, AccelerationAlpha: 1}
		series := seriesFor(t, BuildDailyKinetics(history, DefaultConstants(), cfg), "alpha")
		for i := range series {
			if series[i].VelocityEMA != series[i].Velocity {
				t.Errorf("velocityEMA[%d] = %v, want raw %v", i, series[i].VelocityEMA, series[i].Velocity)
			}
			if series[i].AccelEMA != series[i].Acceleration {
				t.Errorf("accelEMA[%d] = %v, want raw %v", i, series[i].AccelEMA, series[i].Acceleration)
			}
		}
	})

	t.Run("half alpha folds left", func(t *testing.T) {
		cfg := KineticsConfig{VelocityAlpha: 0.5, AccelerationAlpha: 0.5}
		series := seriesFor(t, BuildDailyKinetics(history, DefaultConstants(), cfg), "alpha")
		// Raw velocities 0, 20, 30 seed ema[0]=0, then 10, then 20.
		wantEMA := []float64{0, 10, 20}
		for i := range series {
			if series[i].VelocityEMA != wantEMA[i] {
				t.Errorf("velocityEMA[%d] = %v, want %v", i, series[i].VelocityEMA, wantEMA[i])
			}
		}
	})

	t.Run("out-of-range alpha falls back to default", func(t *testing.T) {
		cfg := KineticsConfig{VelocityAlpha: -3, AccelerationAlpha: 7}
		if got := cfg.velocityAlpha(); got != DefaultKineticsConfig().VelocityAlpha {
			t.Errorf("velocityAlpha() = %v, want default", got)
		}
		if got := cfg.accelerationAlpha(); got != DefaultKineticsConfig().AccelerationAlpha {
			t.Errorf("accelerationAlpha() = %v, want default", got)
		}
	})
}

func TestTeamSeries_DedupSameDay(t *testing.T) {
	// Two saves on the same calendar day: the later AsOf wins.
	history := []HistoryEntry{
		entryAt(t, "2025-09-01T08:00:00Z", pointsTeam("alpha", 100)),
		entryAt(t, "2025-09-01T17:30:00Z", pointsTeam("alpha", 140)),
		entryAt(t, "2025-09-02T08:00:00Z", pointsTeam("alpha", 160)),
	}

	series := TeamSeries(history, "alpha", DefaultConstants())
	if len(series) != 2 {
		t.Fatalf("series length = %d, want 2 (same-day entries deduped)", len(series))
	}
	if series[0].Points != 140 {
		t.Errorf("day 0 points = %v, want 140 from the later save", series[0].Points)
	}
	if series[1].Points != 160 {
		t.Errorf("day 1 points = %v, want 160", series[1].Points)
	}
}

func TestTeamSeries_EstimatesWhenPointsAbsent(t *testing.T) {
	history := []HistoryEntry{
		entryAt(t, "2025-09-01T08:00:00Z", TeamSnapshot{Name: "alpha", Steps: 10000, ActivityKm: 5}),
	}
	series := TeamSeries(history, "alpha", DefaultConstants())
	if len(series) != 1 {
		t.Fatalf("series length = %d, want 1", len(series))
	}
	if !series[0].Estimated {
		t.Error("point without teamPoints should be marked estimated")
	}
}

func TestTeamSeries_EntryConstantsFallback(t *testing.T) {
	// An entry saved without constants must resolve with the caller's.
	entry := entryAt(t, "2025-09-01T08:00:00Z", TeamSnapshot{Name: "alpha", Steps: 100000})
	entry.Constants = nil

	generous := DefaultConstants()
	generous.PtsPer10kStepsBaseline = 1000

	base := TeamSeries([]HistoryEntry{entry}, "alpha", DefaultConstants())
	boosted := TeamSeries([]HistoryEntry{entry}, "alpha", generous)
	if base[0].Points == boosted[0].Points {
		t.Error("fallback constants were ignored: estimates identical under different constants")
	}
}

func TestTeamSeries_VersionedConstantsWin(t *testing.T) {
	// Entries that carry constants must use them, not the caller's.
	entry := entryAt(t, "2025-09-01T08:00:00Z", TeamSnapshot{Name: "alpha", Steps: 100000})

	generous := DefaultConstants()
	generous.PtsPer10kStepsBaseline = 1000

	withStored := TeamSeries([]HistoryEntry{entry}, "alpha", generous)
	want, _ := ResolvePoints(entry.Teams[0], DefaultConstants())
	if withStored[0].Points != want {
		t.Errorf("points = %v, want %v computed with the entry's own constants", withStored[0].Points, want)
	}
}

func TestBuildDailyKinetics_TeamAbsentFromEntries(t *testing.T) {
	history := []HistoryEntry{
		entryAt(t, "2025-09-01T08:00:00Z", pointsTeam("alpha", 100)),
		entryAt(t, "2025-09-02T08:00:00Z", pointsTeam("alpha", 120), pointsTeam("beta", 90)),
	}

	kinetics := BuildDailyKinetics(history, DefaultConstants(), DefaultKineticsConfig())

	alpha := seriesFor(t, kinetics, "alpha")
	if len(alpha) != 2 {
		t.Errorf("alpha series length = %d, want 2", len(alpha))
	}
	// beta only appears in the latest entry and contributes a single point.
	beta := seriesFor(t, kinetics, "beta")
	if len(beta) != 1 {
		t.Errorf("beta series length = %d, want 1", len(beta))
	}
}

func TestBuildDailyKinetics_EmptyHistory(t *testing.T) {
	if got := BuildDailyKinetics(nil, DefaultConstants(), DefaultKineticsConfig()); got != nil {
		t.Errorf("BuildDailyKinetics(nil) = %v, want nil", got)
	}
}
