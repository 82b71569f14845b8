package challenge

// Tone expresses how a KPI band should be read.
type Tone string

const (
	ToneGood    Tone = "good"
	ToneWatch   Tone = "watch"
	ToneFix     Tone = "fix"
	ToneNeutral Tone = "neutral"
)

// Threshold is one labelled band of a KPI's value range. Min is inclusive,
// Max exclusive; a nil bound is open.
type Threshold struct {
	Label string   `json:"label"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Tone  Tone     `json:"tone"`
}

func band(label string, min, max *float64, tone Tone) Threshold {
	return Threshold{Label: label, Min: min, Max: max, Tone: tone}
}

func bound(v float64) *float64 { return &v }

// Thresholds maps KPI names to their display bands. Band cut-offs mirror the
// challenge coaching guidance: logging below 80% needs fixing, a bike share
// over 30% is a strength, and so on.
var Thresholds = map[string][]Threshold{
	"loggingRate": {
		band("Good", bound(0.95), nil, ToneGood),
		band("Watch", bound(0.8), bound(0.95), ToneWatch),
		band("Fix", nil, bound(0.8), ToneFix),
	},
	"bikeShare": {
		band("None", nil, bound(0.05), ToneNeutral),
		band("Light", bound(0.05), bound(0.15), ToneWatch),
		band("Moderate", bound(0.15), bound(0.3), ToneGood),
		band("Heavy", bound(0.3), nil, ToneGood),
	},
	"missionsPer100k": {
		band("Good", bound(17), nil, ToneGood),
		band("Ok", bound(15), bound(17), ToneWatch),
		band("Low", nil, bound(15), ToneFix),
	},
	"ptsPer10kSteps": {
		band("Elite", bound(230), nil, ToneGood),
		band("Solid", bound(200), bound(230), ToneWatch),
		band("Low", nil, bound(200), ToneFix),
	},
	"kmPer10kSteps": {
		band("Bike-rich", bound(10), nil, ToneGood),
		band("Mixed", bound(8), nil, ToneGood),
		band("Walk/Run", bound(6.7), bound(8), ToneWatch),
	},
}

// ClassifyThreshold returns the first band containing value, or the last
// band when none matches (open-ended scales always resolve somewhere).
func ClassifyThreshold(value float64, thresholds []Threshold) Threshold {
	for _, t := range thresholds {
		withinMin := t.Min == nil || value >= *t.Min
		withinMax := t.Max == nil || value < *t.Max
		if withinMin && withinMax {
			return t
		}
	}
	return thresholds[len(thresholds)-1]
}
