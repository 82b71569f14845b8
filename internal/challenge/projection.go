package challenge

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// scenarioMissionBundlePts is the flat per-mission value used by the what-if
// pace adjustment. It is intentionally independent of the configured
// StepMissionPts bundle; the two mission formulas disagree upstream and are
// preserved as-is rather than reconciled.
const scenarioMissionBundlePts = 110

// regressionDenominatorEps bounds the OLS denominator below which the x
// values are treated as contemporaneous.
const regressionDenominatorEps = 1e-6

// regressionSlope fits an ordinary-least-squares line through (xs, ys) and
// returns its slope. When the denominator degenerates (all x effectively
// equal) it falls back to the two-point slope between the first and last
// sample.
func regressionSlope(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || len(ys) != n {
		return 0
	}

	var sumX, sumXX float64
	for _, x := range xs {
		sumX += x
		sumXX += x * x
	}
	denominator := float64(n)*sumXX - sumX*sumX
	if math.Abs(denominator) < regressionDenominatorEps {
		days := xs[n-1] - xs[0]
		if days == 0 {
			return 0
		}
		return (ys[n-1] - ys[0]) / days
	}

	_, slope := stat.LinearRegression(xs, ys, nil, false)
	return slope
}

// fractionalDays returns the signed day distance between two instants.
func fractionalDays(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

// ComputePace estimates a team's daily point gain from its resolved series.
// Samples inside the trailing lookback window feed an OLS fit; with fewer
// than two windowed samples but at least two overall it falls back to the
// two-point slope across the whole series. InsufficientData is set exactly
// when the whole series has fewer than two points. Non-finite slopes are
// coerced to 0.
func ComputePace(series []SeriesPoint, lookbackDays int, asOf time.Time) PaceResult {
	if len(series) == 0 {
		return PaceResult{InsufficientData: true}
	}

	windowStart := asOf.AddDate(0, 0, -lookbackDays)
	subset := make([]SeriesPoint, 0, len(series))
	for _, p := range series {
		if !p.Date.Before(startOfDay(windowStart)) {
			subset = append(subset, p)
		}
	}

	if len(subset) < 2 {
		if len(series) >= 2 {
			first := series[0]
			last := series[len(series)-1]
			days := math.Max(fractionalDays(first.Date, last.Date), 1)
			slope := (last.Points - first.Points) / days
			if math.IsNaN(slope) || math.IsInf(slope, 0) {
				slope = 0
			}
			return PaceResult{
				PacePerDay:    slope,
				UsedEstimates: first.Estimated || last.Estimated,
			}
		}
		return PaceResult{
			UsedEstimates:    anyEstimated(series),
			InsufficientData: true,
		}
	}

	origin := subset[0].Date
	xs := make([]float64, len(subset))
	ys := make([]float64, len(subset))
	for i, p := range subset {
		xs[i] = fractionalDays(origin, p.Date)
		ys[i] = p.Points
	}

	slope := regressionSlope(xs, ys)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		slope = 0
	}

	return PaceResult{
		PacePerDay:    slope,
		UsedEstimates: anyEstimated(subset),
	}
}

func anyEstimated(series []SeriesPoint) bool {
	for _, p := range series {
		if p.Estimated {
			return true
		}
	}
	return false
}

// ProjectTeam extrapolates a current point total along a constant daily pace.
func ProjectTeam(current, pacePerDay float64, daysRemaining int) float64 {
	return current + pacePerDay*float64(daysRemaining)
}

// DaysRemaining counts the whole days from asOf to the challenge end date,
// never negative.
func DaysRemaining(asOf, endDate time.Time) int {
	days := int(math.Ceil(fractionalDays(asOf, endDate)))
	if days < 0 {
		return 0
	}
	return days
}

// GetPaceBracket classifies a daily pace for display.
func GetPaceBracket(pacePerDay float64) PaceBracket {
	switch {
	case pacePerDay > 300:
		return PaceFast
	case pacePerDay >= 150:
		return PaceModerate
	default:
		return PaceSlow
	}
}

// historySample is one history entry resolved for a single team, used by the
// scenario engine to derive daily step and activity rates.
type historySample struct {
	date          time.Time
	daysFromStart float64
	points        float64
	steps         float64
	activityKm    float64
	estimated     bool
}

// collectTeamHistory gathers a team's windowed history samples ordered by
// AsOf. The window trails the team's most recent entry, not the caller's
// clock, so a stale dataset still produces a usable rate.
func collectTeamHistory(history []HistoryEntry, teamName string, lookbackDays int, constants Constants) []historySample {
	type match struct {
		entry HistoryEntry
		team  TeamSnapshot
	}

	var matches []match
	for _, entry := range sortHistory(history) {
		for _, team := range entry.Teams {
			if team.Name == teamName {
				matches = append(matches, match{entry: entry, team: team})
				break
			}
		}
	}
	if len(matches) == 0 {
		return nil
	}

	end := matches[len(matches)-1].entry.AsOf
	windowStart := end.AddDate(0, 0, -lookbackDays)

	var windowed []match
	for _, m := range matches {
		if !m.entry.AsOf.Before(windowStart) {
			windowed = append(windowed, m)
		}
	}
	if len(windowed) == 0 {
		return nil
	}

	baseline := windowed[0].entry.AsOf
	samples := make([]historySample, 0, len(windowed))
	for _, m := range windowed {
		points, estimated := ResolvePoints(m.team, resolveEntryConstants(m.entry, constants))
		samples = append(samples, historySample{
			date:          m.entry.AsOf,
			daysFromStart: fractionalDays(baseline, m.entry.AsOf),
			points:        points,
			steps:         float64(m.team.Steps),
			activityKm:    m.team.ActivityKm,
			estimated:     estimated,
		})
	}
	return samples
}

// averageDailyDelta returns the average per-day change of a sampled field
// between the first and last sample.
func averageDailyDelta(samples []historySample, field func(historySample) float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	first := samples[0]
	last := samples[len(samples)-1]
	days := math.Max(last.daysFromStart-first.daysFromStart, 1)
	return (field(last) - field(first)) / days
}

// CrossTeamAveragePace is the fallback pace for teams without enough history:
// the mean of all teams' individually regressed paces, or, when no team has
// two windowed samples, the mean of all teams' current point totals. The
// latter is degenerate but defined.
func CrossTeamAveragePace(teams []TeamWithKPIs, history []HistoryEntry, lookbackDays int, constants Constants) float64 {
	var paces []float64
	for _, team := range teams {
		samples := collectTeamHistory(history, team.Name, lookbackDays, constants)
		if len(samples) < 2 {
			continue
		}
		xs := make([]float64, len(samples))
		ys := make([]float64, len(samples))
		for i, s := range samples {
			xs[i] = s.daysFromStart
			ys[i] = s.points
		}
		paces = append(paces, regressionSlope(xs, ys))
	}

	if len(paces) > 0 {
		return stat.Mean(paces, nil)
	}

	var totals []float64
	for _, team := range teams {
		total := team.KPIs.EstPoints
		if team.TeamPoints != nil {
			total = *team.TeamPoints
		}
		if !math.IsNaN(total) && !math.IsInf(total, 0) {
			totals = append(totals, total)
		}
	}
	if len(totals) == 0 {
		return 0
	}
	return stat.Mean(totals, nil)
}

// scenarioResult decomposes a what-if pace into its incremental parts.
type scenarioResult struct {
	basePace         float64
	scenarioPace     float64
	deltaLogging     float64
	deltaBike        float64
	deltaMissions    float64
	stepsPerDay      float64
	activityKmPerDay float64
}

// computeScenario derives the incremental daily points a team would gain by
// hitting the scenario targets, on top of its base pace. Targets at or below
// current behaviour contribute nothing.
func computeScenario(team TeamWithKPIs, samples []historySample, basePace float64, scenario Scenario, constants Constants) scenarioResult {
	stepsPerDay := averageDailyDelta(samples, func(s historySample) float64 { return s.steps })
	activityKmPerDay := averageDailyDelta(samples, func(s historySample) float64 { return s.activityKm })
	if len(samples) < 2 {
		// Too little history to measure daily rates; derive them from the
		// pace heuristically so the scenario stays usable.
		stepsPerDay = basePace * (constants.StepsPerKmFoot / math.Max(constants.PtsPer10kStepsBaseline, 1))
		activityKmPerDay = stepsPerDay / math.Max(team.KPIs.LoggingRate, 0.01)
	}

	currentLogging := team.KPIs.LoggingRate
	footKmPerDay := stepsPerDay / math.Max(constants.StepsPerKmFoot, 1)
	deltaLogging := math.Max(0, scenario.LoggingTarget-currentLogging) * footKmPerDay * constants.PtsPerKmRunWalk
	deltaLogging = math.Max(0, deltaLogging)

	bikeShareDelta := math.Max(0, scenario.BikeShareDelta)
	effectiveActivity := activityKmPerDay
	if effectiveActivity <= 0 {
		effectiveActivity = footKmPerDay / math.Max(currentLogging, 0.01)
	}
	deltaBike := effectiveActivity * bikeShareDelta * constants.PtsPerKmBike

	missionsDelta := math.Max(0, scenario.MissionsTarget-team.KPIs.MissionsPer100k)
	deltaMissions := (stepsPerDay / 100_000) * missionsDelta * scenarioMissionBundlePts

	return scenarioResult{
		basePace:         basePace,
		scenarioPace:     basePace + deltaLogging + deltaBike + deltaMissions,
		deltaLogging:     deltaLogging,
		deltaBike:        deltaBike,
		deltaMissions:    deltaMissions,
		stepsPerDay:      stepsPerDay,
		activityKmPerDay: effectiveActivity,
	}
}

// EnsureChronologicalHistory merges the current dataset into the stored
// history (replacing any entry with the same AsOf) and returns the result in
// chronological order. The inputs are not mutated.
func EnsureChronologicalHistory(dataset Dataset, history []HistoryEntry) []HistoryEntry {
	// Key by the formatted instant: time.Time equality also compares the
	// monotonic reading and location, which would defeat the dedup for two
	// values naming the same moment.
	asOfKey := func(t time.Time) string {
		return t.UTC().Format(time.RFC3339Nano)
	}
	merged := make(map[string]HistoryEntry, len(history)+1)
	for _, entry := range history {
		merged[asOfKey(entry.AsOf)] = entry
	}
	constants := dataset.Constants
	merged[asOfKey(dataset.AsOf)] = HistoryEntry{
		AsOf:      dataset.AsOf,
		SavedAt:   dataset.AsOf,
		Teams:     dataset.Teams,
		Constants: &constants,
	}

	out := make([]HistoryEntry, 0, len(merged))
	for _, entry := range merged {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AsOf.Before(out[j].AsOf) })
	return out
}

// ProjectionParams are the caller-tunable projection inputs.
type ProjectionParams struct {
	LookbackDays int
	EndDate      time.Time
	Scenario     Scenario
	RivalTeam    string
}

// BuildProjections computes the full ranked projection set for a dataset and
// its history. It is a pure function of its arguments; the caller decides
// when to recompute and whether to cache.
func BuildProjections(dataset Dataset, history []HistoryEntry, params ProjectionParams) ProjectionSet {
	chronological := EnsureChronologicalHistory(dataset, history)
	teams := AttachKPIs(dataset)
	constants := dataset.Constants

	fallbackPace := CrossTeamAveragePace(teams, chronological, params.LookbackDays, constants)
	daysRemaining := DaysRemaining(dataset.AsOf, params.EndDate)

	projections := make([]TeamProjection, 0, len(teams))
	for _, team := range teams {
		series := TeamSeries(chronological, team.Name, constants)
		pace := ComputePace(series, params.LookbackDays, dataset.AsOf)

		basePace := pace.PacePerDay
		if pace.InsufficientData {
			basePace = fallbackPace
		}

		samples := collectTeamHistory(chronological, team.Name, params.LookbackDays, constants)
		scenario := computeScenario(team, samples, basePace, params.Scenario, constants)

		current := team.KPIs.EstPoints
		if team.TeamPoints != nil {
			current = *team.TeamPoints
		}

		projection := make([]SeriesPoint, 0, daysRemaining+1)
		for day := 0; day <= daysRemaining; day++ {
			projection = append(projection, SeriesPoint{
				Date:   startOfDay(dataset.AsOf).AddDate(0, 0, day),
				Points: ProjectTeam(current, basePace, day),
			})
		}

		projections = append(projections, TeamProjection{
			Name:              team.Name,
			Current:           current,
			PacePerDay:        basePace,
			ScenarioPace:      scenario.scenarioPace,
			DaysRemaining:     daysRemaining,
			Projected:         ProjectTeam(current, basePace, daysRemaining),
			ScenarioProjected: ProjectTeam(current, scenario.scenarioPace, daysRemaining),
			DeltaLogging:      scenario.deltaLogging,
			DeltaBike:         scenario.deltaBike,
			DeltaMissions:     scenario.deltaMissions,
			UsedEstimates:     pace.UsedEstimates,
			InsufficientData:  pace.InsufficientData,
			PaceBracket:       GetPaceBracket(basePace),
			History:           series,
			Projection:        projection,
		})
	}

	rankProjections(projections)
	attachRivalGaps(projections, params.RivalTeam, daysRemaining)

	return ProjectionSet{
		AsOf:          dataset.AsOf,
		EndDate:       params.EndDate,
		DaysRemaining: daysRemaining,
		Teams:         projections,
	}
}

// rankProjections orders teams by descending projected points and assigns
// Rank and DeltaToLeader in place. The leader's delta is 0.
func rankProjections(projections []TeamProjection) {
	sort.SliceStable(projections, func(i, j int) bool {
		return projections[i].Projected > projections[j].Projected
	})
	if len(projections) == 0 {
		return
	}
	top := projections[0].Projected
	for i := range projections {
		projections[i].Rank = i + 1
		projections[i].DeltaToLeader = math.Max(0, top-projections[i].Projected)
	}
}

// attachRivalGaps fills RivalGap for every team relative to the named rival:
// the team's scenario projection minus the rival carried forward at the
// team's own base pace. When no rival is named the ranked leader is the
// rival, so the caller always sees the gap to beat.
func attachRivalGaps(projections []TeamProjection, rivalTeam string, daysRemaining int) {
	if len(projections) == 0 {
		return
	}
	if rivalTeam == "" {
		rivalTeam = projections[0].Name
	}
	var rivalCurrent float64
	found := false
	for _, p := range projections {
		if p.Name == rivalTeam {
			rivalCurrent = p.Current
			found = true
			break
		}
	}
	if !found {
		return
	}
	for i := range projections {
		rivalProjected := ProjectTeam(rivalCurrent, projections[i].PacePerDay, daysRemaining)
		gap := projections[i].ScenarioProjected - rivalProjected
		projections[i].RivalGap = &gap
	}
}
