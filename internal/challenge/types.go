package challenge

import (
	"encoding/json"
	"math"
	"time"
)

// Member is one participant's cumulative point contribution within a team.
type Member struct {
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// TeamSnapshot holds the raw counters recorded for one team at a point in
// time. TeamPoints is nil when the official total was not captured; consumers
// must then treat the team's point total as estimated.
type TeamSnapshot struct {
	Name             string   `json:"name"`
	Steps            int64    `json:"steps"`
	ActivityKm       float64  `json:"activityKm"`
	Missions         int64    `json:"missions"`
	Quizzes          int64    `json:"quizzes"`
	Photos           int64    `json:"photos"`
	TeamPoints       *float64 `json:"teamPoints,omitempty"`
	BoostActiveCount *int     `json:"boostActiveCount,omitempty"`
	Members          []Member `json:"members,omitempty"`
}

// StepMissionPts is the point value of each step-mission tier.
type StepMissionPts struct {
	FiveK  float64 `json:"fiveK"`
	EightK float64 `json:"eightK"`
	TenK   float64 `json:"tenK"`
}

// Bundle returns the combined value of all three mission tiers.
func (s StepMissionPts) Bundle() float64 {
	return s.FiveK + s.EightK + s.TenK
}

// Constants are the scoring assumptions in effect for a dataset. History
// entries carry the constants that were current at save time so derived
// values stay reproducible after a rule change.
type Constants struct {
	StepsPerKmFoot         float64        `json:"stepsPerKmFoot"`
	PtsPerKmRunWalk        float64        `json:"ptsPerKmRunWalk"`
	PtsPerKmBike           float64        `json:"ptsPerKmBike"`
	PtsPer10kStepsBaseline float64        `json:"ptsPer10kStepsBaseline"`
	StepMissionPts         StepMissionPts `json:"stepMissionPts"`
}

// Dataset is one recorded set of raw counters for all teams.
type Dataset struct {
	AsOf      time.Time      `json:"asOf"`
	Teams     []TeamSnapshot `json:"teams"`
	Constants Constants      `json:"constants"`
}

// HistoryEntry is one saved dataset snapshot. Constants is nil for entries
// saved before constants were versioned; resolveEntryConstants substitutes
// the caller's current constants in that case.
type HistoryEntry struct {
	ID        string         `json:"id,omitempty"`
	AsOf      time.Time      `json:"asOf"`
	SavedAt   time.Time      `json:"savedAt"`
	Teams     []TeamSnapshot `json:"teams"`
	Constants *Constants     `json:"constants,omitempty"`
}

// TeamKPIs are the derived performance ratios for one team at one snapshot.
// They are recomputed on every read and never persisted as authoritative.
type TeamKPIs struct {
	StepsPerKm      float64  `json:"stepsPerKm"`
	KmPer10kSteps   float64  `json:"kmPer10kSteps"`
	LoggingRate     float64  `json:"loggingRate"`
	BikeShare       float64  `json:"bikeShare"`
	MissionsPer100k float64  `json:"missionsPer100k"`
	QuizPer100k     float64  `json:"quizPer100k"`
	PhotoPer100k    float64  `json:"photoPer100k"`
	PtsPer10kSteps  float64  `json:"ptsPer10kSteps"`
	PtsPerKm        float64  `json:"ptsPerKm"`
	EstPoints       float64  `json:"estPoints"`
	BalanceCV       *float64 `json:"balanceCV,omitempty"`
	BoostCoverage   *float64 `json:"boostCoverage,omitempty"`
	Notes           []string `json:"notes"`
}

// MarshalJSON emits stepsPerKm as null when it is not finite; JSON has no
// encoding for Infinity and the zero-distance case deliberately produces it.
func (k TeamKPIs) MarshalJSON() ([]byte, error) {
	type alias TeamKPIs
	out := struct {
		alias
		StepsPerKm *float64 `json:"stepsPerKm"`
	}{alias: alias(k)}
	if !math.IsInf(k.StepsPerKm, 0) && !math.IsNaN(k.StepsPerKm) {
		v := k.StepsPerKm
		out.StepsPerKm = &v
	}
	return json.Marshal(out)
}

// TeamWithKPIs pairs a raw snapshot with its derived KPIs.
type TeamWithKPIs struct {
	TeamSnapshot
	KPIs TeamKPIs `json:"kpis"`
}

// KineticsPoint is one calendar day in a team's aligned point series.
// Estimated marks days whose points were synthesised (gap fill) or derived
// from EstPoints rather than an authoritative total.
type KineticsPoint struct {
	Date         time.Time `json:"date"`
	Points       float64   `json:"points"`
	Velocity     float64   `json:"velocity"`
	VelocityEMA  float64   `json:"velocityEMA"`
	Acceleration float64   `json:"acceleration"`
	AccelEMA     float64   `json:"accelEMA"`
	Estimated    bool      `json:"estimated"`
}

// TeamKinetics is one team's full daily kinetics series.
type TeamKinetics struct {
	Name   string          `json:"name"`
	Series []KineticsPoint `json:"series"`
}

// SeriesPoint is one resolved (date, points) sample in a team's history.
type SeriesPoint struct {
	Date      time.Time `json:"date"`
	Points    float64   `json:"points"`
	Estimated bool      `json:"estimated"`
}

// PaceResult is the outcome of a pace computation over a point series.
type PaceResult struct {
	PacePerDay       float64 `json:"pacePerDay"`
	UsedEstimates    bool    `json:"usedEstimates"`
	InsufficientData bool    `json:"insufficientData"`
}

// PaceBracket classifies a daily pace for display.
type PaceBracket string

const (
	PaceSlow     PaceBracket = "slow"
	PaceModerate PaceBracket = "moderate"
	PaceFast     PaceBracket = "fast"
)

// Scenario is a what-if behaviour adjustment applied on top of the base pace.
// Targets below a team's current values contribute nothing.
type Scenario struct {
	LoggingTarget  float64 `json:"loggingTarget"`
	BikeShareDelta float64 `json:"bikeShareDelta"`
	MissionsTarget float64 `json:"missionsTarget"`
}

// TeamProjection is one team's end-date projection. Rank and DeltaToLeader
// are assigned over the base Projected value; the scenario figures are a
// what-if overlay.
type TeamProjection struct {
	Name              string        `json:"name"`
	Current           float64       `json:"current"`
	PacePerDay        float64       `json:"pacePerDay"`
	ScenarioPace      float64       `json:"scenarioPace"`
	DaysRemaining     int           `json:"daysRemaining"`
	Projected         float64       `json:"projected"`
	ScenarioProjected float64       `json:"scenarioProjected"`
	Rank              int           `json:"rank"`
	DeltaToLeader     float64       `json:"deltaToLeader"`
	DeltaLogging      float64       `json:"deltaLogging"`
	DeltaBike         float64       `json:"deltaBike"`
	DeltaMissions     float64       `json:"deltaMissions"`
	RivalGap          *float64      `json:"rivalGap,omitempty"`
	UsedEstimates     bool          `json:"usedEstimates"`
	InsufficientData  bool          `json:"insufficientData"`
	PaceBracket       PaceBracket   `json:"paceBracket"`
	History           []SeriesPoint `json:"history"`
	Projection        []SeriesPoint `json:"projection"`
}

// ProjectionSet is the full ranked projection output for one recompute.
type ProjectionSet struct {
	AsOf          time.Time        `json:"asOf"`
	EndDate       time.Time        `json:"endDate"`
	DaysRemaining int              `json:"daysRemaining"`
	Teams         []TeamProjection `json:"teams"`
}
