package challenge

import (
	"math"
	"sort"
	"time"
)

// KineticsConfig holds the smoothing factors for the kinetics builder.
// Higher alpha tracks the raw series more closely; lower alpha smooths more.
// Valid range is (0, 1]; out-of-range values fall back to the defaults.
type KineticsConfig struct {
	// VelocityAlpha is the EMA decay applied to the velocity series.
	VelocityAlpha float64

	// AccelerationAlpha is the EMA decay applied to the acceleration series.
	AccelerationAlpha float64
}

// DefaultKineticsConfig returns the smoothing used by the dashboard.
func DefaultKineticsConfig() KineticsConfig {
	return KineticsConfig{
		VelocityAlpha:     0.4,
		AccelerationAlpha: 0.4,
	}
}

func (c KineticsConfig) velocityAlpha() float64 {
	if c.VelocityAlpha <= 0 || c.VelocityAlpha > 1 {
		return DefaultKineticsConfig().VelocityAlpha
	}
	return c.VelocityAlpha
}

func (c KineticsConfig) accelerationAlpha() float64 {
	if c.AccelerationAlpha <= 0 || c.AccelerationAlpha > 1 {
		return DefaultKineticsConfig().AccelerationAlpha
	}
	return c.AccelerationAlpha
}

// dateKey is the calendar-day bucket used for alignment.
func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// startOfDay truncates a timestamp to its UTC calendar day.
func startOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// wholeDays returns the whole-day gap between two aligned dates.
func wholeDays(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// resolveEntryConstants makes the constants fallback explicit: entries saved
// without constants use the caller-supplied current set.
func resolveEntryConstants(entry HistoryEntry, fallback Constants) Constants {
	if entry.Constants != nil {
		return *entry.Constants
	}
	return fallback
}

// sortHistory returns history ordered chronologically by AsOf without
// mutating the input.
func sortHistory(history []HistoryEntry) []HistoryEntry {
	sorted := make([]HistoryEntry, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].AsOf.Before(sorted[j].AsOf)
	})
	return sorted
}

// TeamSeries resolves a team's (date, points) series from history, one point
// per calendar day. Points come from the authoritative total when present,
// otherwise from the KPI estimate computed with that entry's own constants.
// When several entries land on the same day the one with the latest AsOf
// wins, so a manual re-save replaces the earlier save.
func TeamSeries(history []HistoryEntry, teamName string, constants Constants) []SeriesPoint {
	byDay := make(map[string]SeriesPoint)
	asOfByDay := make(map[string]time.Time)

	for _, entry := range sortHistory(history) {
		var match *TeamSnapshot
		for i := range entry.Teams {
			if entry.Teams[i].Name == teamName {
				match = &entry.Teams[i]
				break
			}
		}
		if match == nil {
			continue
		}

		points, estimated := ResolvePoints(*match, resolveEntryConstants(entry, constants))
		day := startOfDay(entry.AsOf)
		key := dateKey(day)
		if prev, ok := asOfByDay[key]; ok && !entry.AsOf.After(prev) {
			continue
		}
		asOfByDay[key] = entry.AsOf
		byDay[key] = SeriesPoint{
			Date:      day,
			Points:    math.Round(points),
			Estimated: estimated,
		}
	}

	series := make([]SeriesPoint, 0, len(byDay))
	for _, p := range byDay {
		series = append(series, p)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date.Before(series[j].Date) })
	return series
}

// fillDailyGaps linearly interpolates missing days so the series has exactly
// one point per calendar day. Synthesised days are marked estimated.
func fillDailyGaps(series []SeriesPoint) []SeriesPoint {
	if len(series) == 0 {
		return series
	}

	filled := make([]SeriesPoint, 0, len(series))
	for i := 0; i < len(series); i++ {
		filled = append(filled, series[i])
		if i == len(series)-1 {
			break
		}
		gap := wholeDays(series[i].Date, series[i+1].Date)
		if gap <= 1 {
			continue
		}
		step := (series[i+1].Points - series[i].Points) / float64(gap)
		for offset := 1; offset < gap; offset++ {
			filled = append(filled, SeriesPoint{
				Date:      series[i].Date.AddDate(0, 0, offset),
				Points:    math.Round(series[i].Points + step*float64(offset)),
				Estimated: true,
			})
		}
	}
	return filled
}

// differentiate walks the aligned series in date order and derives velocity,
// acceleration and their EMAs. The EMA is a stateful left fold seeded with
// the first raw value; the pass must stay strictly sequential.
func differentiate(series []SeriesPoint, cfg KineticsConfig) []KineticsPoint {
	alphaV := cfg.velocityAlpha()
	alphaA := cfg.accelerationAlpha()

	out := make([]KineticsPoint, 0, len(series))
	var (
		prevVel    float64
		haveVel    bool
		velEMA     float64
		accelEMA   float64
		haveVelEMA bool
		haveAccEMA bool
	)

	for i := range series {
		point := series[i]
		velocity := 0.0
		acceleration := 0.0

		if i > 0 {
			prev := series[i-1]
			// A same-day duplicate would yield a zero gap; treat it as one
			// day rather than dividing by zero.
			days := wholeDays(prev.Date, point.Date)
			if days < 1 {
				days = 1
			}
			velocity = (point.Points - prev.Points) / float64(days)
			// Acceleration needs two derived velocities; the synthetic zero
			// at the series head does not count as one.
			if haveVel {
				acceleration = velocity - prevVel
			}
			prevVel = velocity
			haveVel = true
		}

		if !haveVelEMA {
			velEMA = velocity
			haveVelEMA = true
		} else {
			velEMA = alphaV*velocity + (1-alphaV)*velEMA
		}
		if !haveAccEMA {
			accelEMA = acceleration
			haveAccEMA = true
		} else {
			accelEMA = alphaA*acceleration + (1-alphaA)*accelEMA
		}

		out = append(out, KineticsPoint{
			Date:         point.Date,
			Points:       point.Points,
			Velocity:     velocity,
			VelocityEMA:  velEMA,
			Acceleration: acceleration,
			AccelEMA:     accelEMA,
			Estimated:    point.Estimated,
		})
	}

	return out
}

// BuildDailyKinetics rebuilds every team's daily kinetics series from the
// full history. The team list comes from the most recent entry; a team with
// no aligned points yields an empty series rather than an error. The result
// is derived in full on every call and never patched incrementally.
func BuildDailyKinetics(history []HistoryEntry, constants Constants, cfg KineticsConfig) []TeamKinetics {
	sorted := sortHistory(history)
	if len(sorted) == 0 {
		return nil
	}

	latest := sorted[len(sorted)-1]
	out := make([]TeamKinetics, 0, len(latest.Teams))
	for _, team := range latest.Teams {
		aligned := fillDailyGaps(TeamSeries(sorted, team.Name, constants))
		out = append(out, TeamKinetics{
			Name:   team.Name,
			Series: differentiate(aligned, cfg),
		})
	}
	return out
}
