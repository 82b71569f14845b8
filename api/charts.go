package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/pace.report/internal/challenge"
)

// handleKineticsChart renders a quick line chart (HTML) of team kinetics
// using go-echarts. This is a debugging-only endpoint (no auth) to eyeball
// momentum without a frontend. Query params:
//   - metric (optional; velocity, velocity_ema, acceleration or points;
//     default velocity_ema)
//   - alpha_v / alpha_a (optional smoothing overrides)
func (s *Server) handleKineticsChart(w http.ResponseWriter, r *http.Request) {
	entries, err := s.db.History()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load history: %v", err))
		return
	}

	teams := challenge.BuildDailyKinetics(entries, s.cfg.Constants(), s.kineticsConfig(r))
	if len(teams) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no kinetics available; save at least one snapshot")
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "velocity_ema"
	}
	value := func(p challenge.KineticsPoint) float64 {
		switch metric {
		case "velocity":
			return p.Velocity
		case "acceleration":
			return p.Acceleration
		case "acceleration_ema":
			return p.AccelEMA
		case "points":
			return p.Points
		default:
			return p.VelocityEMA
		}
	}

	// All aligned series share the same daily axis; use the longest one.
	var dates []string
	for _, team := range teams {
		if len(team.Series) > len(dates) {
			dates = dates[:0]
			for _, p := range team.Series {
				dates = append(dates, p.Date.Format("2006-01-02"))
			}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Team Kinetics", Width: "1200px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Daily Kinetics", Subtitle: fmt.Sprintf("metric=%s teams=%d days=%d", metric, len(teams), len(dates))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Day"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "pts/day"}),
	)
	line.SetXAxis(dates)
	for _, team := range teams {
		data := make([]opts.LineData, 0, len(team.Series))
		for _, p := range team.Series {
			data = append(data, opts.LineData{Value: value(p)})
		}
		line.AddSeries(team.Name, data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleProjectionChart renders the end-date projection series for all teams
// as a line chart. Accepts the same query params as /api/projection.
func (s *Server) handleProjectionChart(w http.ResponseWriter, r *http.Request) {
	dataset, err := s.latestDataset()
	if errors.Is(err, errNoHistory) {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load snapshot: %v", err))
		return
	}
	entries, err := s.db.History()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load history: %v", err))
		return
	}

	set := challenge.BuildProjections(dataset, entries, s.projectionParams(r))
	if len(set.Teams) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no teams in the latest snapshot")
		return
	}

	var dates []string
	for _, p := range set.Teams[0].Projection {
		dates = append(dates, p.Date.Format("2006-01-02"))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Projection", Width: "1200px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Projected Points", Subtitle: fmt.Sprintf("endDate=%s daysRemaining=%d", set.EndDate.Format("2006-01-02"), set.DaysRemaining)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Day"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "pts"}),
	)
	line.SetXAxis(dates)
	for _, team := range set.Teams {
		data := make([]opts.LineData, 0, len(team.Projection))
		for _, p := range team.Projection {
			data = append(data, opts.LineData{Value: p.Points})
		}
		line.AddSeries(team.Name, data)
	}

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
