package challenge

import (
	"fmt"
	"math"
)

// maxInsights caps the number of diagnostics returned per team.
const maxInsights = 6

// insightContext bundles what the individual rules need.
type insightContext struct {
	team           TeamSnapshot
	kpis           TeamKPIs
	constants      Constants
	footKmEstimate float64
}

func formatPercent(value float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(value*100)))
}

func formatPoints(value float64) string {
	return fmt.Sprintf("%d pts", int(math.Round(value)))
}

func formatKm(value float64) string {
	return fmt.Sprintf("%d km", int(math.Round(value)))
}

func loggingInsight(ctx insightContext) string {
	rate := ctx.kpis.LoggingRate
	if rate < 0.8 {
		missingKm := (1 - rate) * ctx.footKmEstimate
		points := missingKm * ctx.constants.PtsPerKmRunWalk
		return fmt.Sprintf("You're recording only %s of walking. Start Active Walk/Run to reclaim about %s.",
			formatPercent(rate), formatPoints(points))
	}
	if rate < 0.95 {
		missingKm := Round((1-rate)*ctx.footKmEstimate, 1)
		return fmt.Sprintf("Good, but there's %s of walking not logged yet.", formatKm(missingKm))
	}
	return ""
}

func bikeInsight(ctx insightContext) string {
	if ctx.kpis.BikeShare < 0.05 {
		return fmt.Sprintf("No bike split detected. Adding 20-25%% bike lifts km/10k steps to 8-10 and adds easy points (~%.0f pts/km).",
			ctx.constants.PtsPerKmBike)
	}
	if ctx.kpis.BikeShare >= 0.3 {
		return "Strong bike pillar. Keep it; it boosts distance missions and pts/10k."
	}
	return ""
}

func missionInsight(ctx insightContext) string {
	if ctx.kpis.MissionsPer100k < 15 {
		return "Mission density is low. Ensure 5k+8k+10k missions are joined before moving."
	}
	if ctx.kpis.MissionsPer100k >= 17 {
		return "Mission discipline is excellent. Don't drop it."
	}
	return ""
}

func yieldInsight(ctx insightContext) string {
	if ctx.kpis.PtsPer10kSteps < 200 {
		return "Overall yield per step is low. Fix logging first, then add a light bike stream."
	}
	if ctx.kpis.PtsPer10kSteps >= 230 {
		return "Elite yield. Maintain logging + missions."
	}
	return ""
}

func balanceInsight(ctx insightContext) string {
	if ctx.kpis.BalanceCV != nil && *ctx.kpis.BalanceCV > 0.3 {
		return "Big spread in contributions; set a daily floor (10 km activity + step missions)."
	}
	if ctx.kpis.BoostCoverage != nil && *ctx.kpis.BoostCoverage < 0.6 {
		return "Boost coverage is low. Run a rota so someone's always boosted."
	}
	if len(ctx.team.Members) == 0 && ctx.team.BoostActiveCount == nil {
		return "Add member points + boosts to see balance insights."
	}
	return ""
}

// GenerateInsights produces rule-based diagnostics for one team from its
// KPIs. Rules that do not apply contribute nothing; the output is advisory
// text only and carries no severity ordering beyond rule order.
func GenerateInsights(team TeamSnapshot, kpis TeamKPIs, constants Constants) []string {
	ctx := insightContext{
		team:           team,
		kpis:           kpis,
		constants:      constants,
		footKmEstimate: float64(team.Steps) / constants.StepsPerKmFoot,
	}

	rules := []func(insightContext) string{
		loggingInsight,
		bikeInsight,
		missionInsight,
		yieldInsight,
		balanceInsight,
	}

	insights := make([]string, 0, len(rules))
	for _, rule := range rules {
		if msg := rule(ctx); msg != "" {
			insights = append(insights, msg)
		}
	}
	if len(insights) > maxInsights {
		insights = insights[:maxInsights]
	}
	return insights
}
