package challenge

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func almostEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestComputeKPIs_LeagueSnapshot(t *testing.T) {
	// Real numbers from the 2025 challenge leaderboard.
	team := TeamSnapshot{
		Name:       "League",
		Steps:      810109,
		ActivityKm: 871.69,
		Missions:   121,
		Quizzes:    48,
		Photos:     17,
		TeamPoints: floatPtr(20171),
	}
	kpis := ComputeKPIs(team, DefaultConstants())

	footKm := 810109.0 / 1350.0
	if !almostEqual(footKm, 600.08, 0.01) {
		t.Fatalf("test fixture drifted: footKm = %v", footKm)
	}

	if kpis.LoggingRate != 1 {
		t.Errorf("loggingRate = %v, want 1 (activity exceeds foot estimate, clamped)", kpis.LoggingRate)
	}

	wantBikeShare := (871.69 - footKm) / 871.69
	if !almostEqual(kpis.BikeShare, wantBikeShare, 1e-9) {
		t.Errorf("bikeShare = %v, want %v", kpis.BikeShare, wantBikeShare)
	}
	if !almostEqual(kpis.BikeShare, 0.312, 0.001) {
		t.Errorf("bikeShare = %v, want about 31.2%%", kpis.BikeShare)
	}

	wantStepsPerKm := 810109.0 / 871.69
	if !almostEqual(kpis.StepsPerKm, wantStepsPerKm, 1e-9) {
		t.Errorf("stepsPerKm = %v, want %v", kpis.StepsPerKm, wantStepsPerKm)
	}

	// Authoritative points drive the yield ratios.
	wantYield := 20171.0 / (810109.0 / 10000.0)
	if !almostEqual(kpis.PtsPer10kSteps, wantYield, 1e-9) {
		t.Errorf("ptsPer10kSteps = %v, want %v", kpis.PtsPer10kSteps, wantYield)
	}
}

func TestComputeKPIs_ZeroActivity(t *testing.T) {
	team := TeamSnapshot{Name: "idle", Steps: 50000}
	kpis := ComputeKPIs(team, DefaultConstants())

	if kpis.LoggingRate != 0 {
		t.Errorf("loggingRate = %v, want 0", kpis.LoggingRate)
	}
	if kpis.BikeShare != 0 {
		t.Errorf("bikeShare = %v, want 0", kpis.BikeShare)
	}
	if !math.IsInf(kpis.StepsPerKm, 1) {
		t.Errorf("stepsPerKm = %v, want +Inf", kpis.StepsPerKm)
	}

	found := false
	for _, note := range kpis.Notes {
		if strings.Contains(note, "activity km is zero") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a zero-activity note, got %v", kpis.Notes)
	}
}

func TestComputeKPIs_ZeroSteps(t *testing.T) {
	team := TeamSnapshot{Name: "wheels", ActivityKm: 120, Missions: 3}
	kpis := ComputeKPIs(team, DefaultConstants())

	if kpis.MissionsPer100k != 0 {
		t.Errorf("missionsPer100k = %v, want 0", kpis.MissionsPer100k)
	}
	if kpis.KmPer10kSteps != 0 {
		t.Errorf("kmPer10kSteps = %v, want 0", kpis.KmPer10kSteps)
	}
	// Foot estimate is zero, so all recorded distance pays out at bike rate
	// and missions contribute nothing without steps.
	wantEst := 120 * DefaultConstants().PtsPerKmBike
	if !almostEqual(kpis.EstPoints, wantEst, 1e-9) {
		t.Errorf("estPoints = %v, want %v", kpis.EstPoints, wantEst)
	}

	found := false
	for _, note := range kpis.Notes {
		if strings.Contains(note, "step count is zero") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a zero-steps note, got %v", kpis.Notes)
	}
}

func TestComputeKPIs_ClampInvariant(t *testing.T) {
	cases := []struct {
		name  string
		steps int64
		km    float64
	}{
		{"activity wildly exceeds foot estimate", 1000, 5000},
		{"no activity", 100000, 0},
		{"balanced", 500000, 300},
		{"no data at all", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kpis := ComputeKPIs(TeamSnapshot{Name: "x", Steps: tc.steps, ActivityKm: tc.km}, DefaultConstants())
			if kpis.LoggingRate < 0 || kpis.LoggingRate > 1 {
				t.Errorf("loggingRate = %v, want within [0,1]", kpis.LoggingRate)
			}
			if kpis.BikeShare < 0 || kpis.BikeShare > 1 {
				t.Errorf("bikeShare = %v, want within [0,1]", kpis.BikeShare)
			}
		})
	}
}

func TestComputeKPIs_EstPoints(t *testing.T) {
	// steps=10000 -> footKm ~7.41, all 5 km pays at run/walk rate, no bike.
	// Mission payout is density scaled back up by steps/100k, so it reduces
	// to missions x bundle.
	team := TeamSnapshot{Name: "est", Steps: 10000, ActivityKm: 5, Missions: 2}
	constants := DefaultConstants()
	kpis := ComputeKPIs(team, constants)

	want := 60.0 + // baseline: 60 pts per 10k steps
		14.0*5 + // run/walk payout on logged km
		0 + // no bike km
		2*constants.StepMissionPts.Bundle()
	if !almostEqual(kpis.EstPoints, want, 1e-9) {
		t.Errorf("estPoints = %v, want %v", kpis.EstPoints, want)
	}

	// Without an authoritative total the estimate drives the yields.
	wantYield := want / (10000.0 / 10000.0)
	if !almostEqual(kpis.PtsPer10kSteps, wantYield, 1e-9) {
		t.Errorf("ptsPer10kSteps = %v, want %v", kpis.PtsPer10kSteps, wantYield)
	}
}

func TestComputeKPIs_Idempotent(t *testing.T) {
	team := TeamSnapshot{
		Name:             "same",
		Steps:            765154,
		ActivityKm:       459.58,
		Missions:         126,
		Quizzes:          49,
		Photos:           23,
		BoostActiveCount: intPtr(2),
		Members: []Member{
			{Name: "a", Points: 5000},
			{Name: "b", Points: 4000},
			{Name: "c", Points: 1000},
		},
	}
	first := ComputeKPIs(team, DefaultConstants())
	second := ComputeKPIs(team, DefaultConstants())
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("ComputeKPIs is not deterministic (-first +second):\n%s", diff)
	}
}

func TestComputeBalanceCV(t *testing.T) {
	t.Run("no members", func(t *testing.T) {
		kpis := ComputeKPIs(TeamSnapshot{Name: "x", Steps: 1000}, DefaultConstants())
		if kpis.BalanceCV != nil {
			t.Errorf("balanceCV = %v, want nil", *kpis.BalanceCV)
		}
	})

	t.Run("near-zero mean", func(t *testing.T) {
		team := TeamSnapshot{Name: "x", Members: []Member{{Name: "a", Points: 1e-9}, {Name: "b", Points: -1e-9}}}
		kpis := ComputeKPIs(team, DefaultConstants())
		if kpis.BalanceCV != nil {
			t.Errorf("balanceCV = %v, want nil for mean below threshold", *kpis.BalanceCV)
		}
	})

	t.Run("even split", func(t *testing.T) {
		team := TeamSnapshot{Name: "x", Members: []Member{{Name: "a", Points: 100}, {Name: "b", Points: 100}}}
		kpis := ComputeKPIs(team, DefaultConstants())
		if kpis.BalanceCV == nil || *kpis.BalanceCV != 0 {
			t.Errorf("balanceCV = %v, want 0 for even contributions", kpis.BalanceCV)
		}
	})

	t.Run("uneven split", func(t *testing.T) {
		// Population stddev of {100, 300} is 100, mean 200, CV 0.5.
		team := TeamSnapshot{Name: "x", Members: []Member{{Name: "a", Points: 100}, {Name: "b", Points: 300}}}
		kpis := ComputeKPIs(team, DefaultConstants())
		if kpis.BalanceCV == nil || !almostEqual(*kpis.BalanceCV, 0.5, 1e-9) {
			t.Errorf("balanceCV = %v, want 0.5", kpis.BalanceCV)
		}
	})
}

func TestComputeBoostCoverage(t *testing.T) {
	members := []Member{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}}

	t.Run("absent without boost count", func(t *testing.T) {
		kpis := ComputeKPIs(TeamSnapshot{Name: "x", Members: members}, DefaultConstants())
		if kpis.BoostCoverage != nil {
			t.Errorf("boostCoverage = %v, want nil", *kpis.BoostCoverage)
		}
	})

	t.Run("fraction of members", func(t *testing.T) {
		team := TeamSnapshot{Name: "x", Members: members, BoostActiveCount: intPtr(3)}
		kpis := ComputeKPIs(team, DefaultConstants())
		if kpis.BoostCoverage == nil || *kpis.BoostCoverage != 0.75 {
			t.Errorf("boostCoverage = %v, want 0.75", kpis.BoostCoverage)
		}
	})

	t.Run("clamped above member count", func(t *testing.T) {
		team := TeamSnapshot{Name: "x", Members: members, BoostActiveCount: intPtr(9)}
		kpis := ComputeKPIs(team, DefaultConstants())
		if kpis.BoostCoverage == nil || *kpis.BoostCoverage != 1 {
			t.Errorf("boostCoverage = %v, want clamped to 1", kpis.BoostCoverage)
		}
	})
}

func TestTeamKPIs_MarshalInfinity(t *testing.T) {
	kpis := ComputeKPIs(TeamSnapshot{Name: "x", Steps: 1000}, DefaultConstants())
	if !math.IsInf(kpis.StepsPerKm, 1) {
		t.Fatalf("stepsPerKm = %v, want +Inf", kpis.StepsPerKm)
	}

	data, err := json.Marshal(kpis)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded["stepsPerKm"] != nil {
		t.Errorf("stepsPerKm marshalled as %v, want null", decoded["stepsPerKm"])
	}
}

func TestResolvePoints(t *testing.T) {
	constants := DefaultConstants()

	authoritative := TeamSnapshot{Name: "a", Steps: 10000, TeamPoints: floatPtr(1234)}
	points, estimated := ResolvePoints(authoritative, constants)
	if points != 1234 || estimated {
		t.Errorf("ResolvePoints(authoritative) = %v, %v; want 1234, false", points, estimated)
	}

	estimatedTeam := TeamSnapshot{Name: "b", Steps: 10000}
	points, estimated = ResolvePoints(estimatedTeam, constants)
	if !estimated {
		t.Error("ResolvePoints without teamPoints should report an estimate")
	}
	if points != ComputeKPIs(estimatedTeam, constants).EstPoints {
		t.Errorf("ResolvePoints estimate = %v, want the KPI estimate", points)
	}
}
