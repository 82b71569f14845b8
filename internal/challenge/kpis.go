package challenge

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// stepsContext carries the distance decomposition shared between the KPI
// ratios and the point estimate.
type stepsContext struct {
	footKmEstimate float64
	bikeKmEstimate float64
}

// computeEstPoints estimates a team's point total from its raw counters.
// The foot-portion payout is capped at the foot estimate so bike km is not
// double-counted at the walk rate. The mission payout values every mission
// instance at the full three-tier bundle; that is a known simplification of
// the real scoring rules, kept as-is.
func computeEstPoints(team TeamSnapshot, constants Constants, ctx stepsContext) float64 {
	steps := float64(team.Steps)
	stepsFactor := SafeDivide(steps, 10_000)
	pointsFromSteps := constants.PtsPer10kStepsBaseline * stepsFactor
	pointsFromRunWalk := constants.PtsPerKmRunWalk * math.Min(team.ActivityKm, ctx.footKmEstimate)
	pointsFromBike := constants.PtsPerKmBike * ctx.bikeKmEstimate

	// Guard the mission term for zero steps: the density is scaled straight
	// back up by steps/100k, so it contributes nothing without steps.
	pointsFromMissions := 0.0
	if team.Steps > 0 {
		per100k := SafeDivide(steps, 100_000)
		missionsPer100k := SafeDivide(float64(team.Missions), per100k)
		pointsFromMissions = missionsPer100k * per100k * constants.StepMissionPts.Bundle()
	}

	return pointsFromSteps + pointsFromRunWalk + pointsFromBike + pointsFromMissions
}

// computeBalanceCV returns the coefficient of variation (population stddev /
// mean) of member point contributions, or nil when there are no members or
// the mean is effectively zero.
func computeBalanceCV(team TeamSnapshot) *float64 {
	if len(team.Members) == 0 {
		return nil
	}

	points := make([]float64, 0, len(team.Members))
	for _, m := range team.Members {
		if !math.IsNaN(m.Points) && !math.IsInf(m.Points, 0) {
			points = append(points, m.Points)
		}
	}
	if len(points) == 0 {
		return nil
	}

	mean := stat.Mean(points, nil)
	if math.Abs(mean) < cvThreshold {
		return nil
	}

	// Population variance: contributions are the whole team, not a sample.
	variance := 0.0
	for _, v := range points {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(points))

	cv := math.Sqrt(variance) / mean
	return &cv
}

// computeBoostCoverage returns the fraction of members with an active boost,
// or nil when membership or the boost count is unknown.
func computeBoostCoverage(team TeamSnapshot) *float64 {
	if len(team.Members) == 0 || team.BoostActiveCount == nil {
		return nil
	}
	coverage := Clamp(float64(*team.BoostActiveCount)/float64(len(team.Members)), 0, 1)
	return &coverage
}

// ComputeKPIs derives the full KPI set for one team snapshot. It is a total
// function: arithmetic edge cases resolve to defined sentinels (0, +Inf or a
// clamped bound) and data-quality problems surface as advisory notes, never
// as errors.
func ComputeKPIs(team TeamSnapshot, constants Constants) TeamKPIs {
	notes := []string{}
	steps := float64(team.Steps)

	stepsPerKm := math.Inf(1)
	if team.ActivityKm != 0 {
		stepsPerKm = SafeDivide(steps, team.ActivityKm)
	}

	kmPer10kSteps := 0.0
	if team.Steps != 0 {
		kmPer10kSteps = SafeDivide(team.ActivityKm, SafeDivide(steps, 10_000))
	}

	footKmEstimate := SafeDivide(steps, constants.StepsPerKmFoot)
	loggingRate := 0.0
	if team.ActivityKm != 0 {
		loggingRate = SafeDivide(team.ActivityKm, footKmEstimate)
	}
	loggingRate = Clamp(loggingRate, 0, 1)

	bikeKmEstimate := math.Max(0, team.ActivityKm-footKmEstimate)
	bikeShare := 0.0
	if team.ActivityKm > 0 {
		bikeShare = Clamp(SafeDivide(bikeKmEstimate, team.ActivityKm), 0, 1)
	}

	missionsPer100k := 0.0
	quizPer100k := 0.0
	photoPer100k := 0.0
	if team.Steps != 0 {
		per100k := SafeDivide(steps, 100_000)
		missionsPer100k = SafeDivide(float64(team.Missions), per100k)
		quizPer100k = SafeDivide(float64(team.Quizzes), per100k)
		photoPer100k = SafeDivide(float64(team.Photos), per100k)
	}

	ctx := stepsContext{footKmEstimate: footKmEstimate, bikeKmEstimate: bikeKmEstimate}
	estPoints := computeEstPoints(team, constants, ctx)

	pointsForYield := estPoints
	if team.TeamPoints != nil {
		pointsForYield = *team.TeamPoints
	}

	stepsFactor := SafeDivide(steps, 10_000)
	ptsPer10kSteps := 0.0
	if stepsFactor != 0 && !math.IsInf(stepsFactor, 0) {
		ptsPer10kSteps = SafeDivide(pointsForYield, stepsFactor)
	}
	ptsPerKm := 0.0
	if team.ActivityKm != 0 {
		ptsPerKm = SafeDivide(pointsForYield, team.ActivityKm)
	}

	if math.IsInf(stepsPerKm, 0) {
		notes = append(notes, "activity km is zero, steps per km set to Infinity")
	}
	if team.Steps == 0 {
		notes = append(notes, "step count is zero, check data quality")
	}

	return TeamKPIs{
		StepsPerKm:      stepsPerKm,
		KmPer10kSteps:   kmPer10kSteps,
		LoggingRate:     loggingRate,
		BikeShare:       bikeShare,
		MissionsPer100k: missionsPer100k,
		QuizPer100k:     quizPer100k,
		PhotoPer100k:    photoPer100k,
		PtsPer10kSteps:  ptsPer10kSteps,
		PtsPerKm:        ptsPerKm,
		EstPoints:       estPoints,
		BalanceCV:       computeBalanceCV(team),
		BoostCoverage:   computeBoostCoverage(team),
		Notes:           notes,
	}
}

// ResolvePoints returns a team's point total for trend computations: the
// authoritative TeamPoints when present, the KPI estimate otherwise. The
// boolean reports whether the value is an estimate.
func ResolvePoints(team TeamSnapshot, constants Constants) (float64, bool) {
	if team.TeamPoints != nil {
		return *team.TeamPoints, false
	}
	return ComputeKPIs(team, constants).EstPoints, true
}

// AttachKPIs computes KPIs for every team in a dataset.
func AttachKPIs(dataset Dataset) []TeamWithKPIs {
	out := make([]TeamWithKPIs, 0, len(dataset.Teams))
	for _, team := range dataset.Teams {
		out = append(out, TeamWithKPIs{
			TeamSnapshot: team,
			KPIs:         ComputeKPIs(team, dataset.Constants),
		})
	}
	return out
}
