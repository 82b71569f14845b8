package challenge

import "time"

// cvThreshold is the smallest mean member contribution for which a balance
// coefficient of variation is meaningful.
const cvThreshold = 1e-6

// HistoryLimit caps the number of retained history entries. Series are
// rebuilt in full on every save, so history stays deliberately small.
const HistoryLimit = 14

// DefaultConstants returns the scoring assumptions used when a dataset does
// not supply its own.
func DefaultConstants() Constants {
	return Constants{
		StepsPerKmFoot:         1350,
		PtsPerKmRunWalk:        14,
		PtsPerKmBike:           7,
		PtsPer10kStepsBaseline: 60,
		StepMissionPts: StepMissionPts{
			FiveK:  50,
			EightK: 30,
			TenK:   30,
		},
	}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// DemoDataset returns a seed dataset for dev mode so the dashboard has
// something to show before any snapshot is imported.
func DemoDataset() Dataset {
	asOf, _ := time.Parse(time.RFC3339, "2025-09-27T08:00:00Z")
	return Dataset{
		AsOf:      asOf,
		Constants: DefaultConstants(),
		Teams: []TeamSnapshot{
			{Name: "League", Steps: 810109, ActivityKm: 871.69, Missions: 121, Quizzes: 48, Photos: 17, TeamPoints: floatPtr(20171), BoostActiveCount: intPtr(3)},
			{Name: "Les Sportifs", Steps: 627315, ActivityKm: 403.29, Missions: 108, Quizzes: 43, Photos: 11, TeamPoints: floatPtr(15582), BoostActiveCount: intPtr(2)},
			{Name: "Protocole", Steps: 949448, ActivityKm: 700.46, Missions: 140, Quizzes: 50, Photos: 30},
			{Name: "RWD", Steps: 795017, ActivityKm: 758.93, Missions: 129, Quizzes: 43, Photos: 24},
			{Name: "Sanofi", Steps: 785920, ActivityKm: 401.39, Missions: 123, Quizzes: 43, Photos: 29},
			{Name: "Pas si vote", Steps: 713873, ActivityKm: 405.4, Missions: 128, Quizzes: 50, Photos: 25},
			{Name: "Wonder Woman", Steps: 764444, ActivityKm: 367.3, Missions: 120, Quizzes: 49, Photos: 31},
			{Name: "Razmoket", Steps: 765154, ActivityKm: 459.58, Missions: 126, Quizzes: 49, Photos: 23},
		},
	}
}
