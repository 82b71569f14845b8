// Package api exposes the challenge analytics over HTTP: raw snapshots in,
// KPIs, kinetics, projections and insights out.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/pace.report/internal/challenge"
	"github.com/banshee-data/pace.report/internal/config"
	"github.com/banshee-data/pace.report/internal/db"
	"github.com/banshee-data/pace.report/internal/metrics"
	"github.com/banshee-data/pace.report/internal/monitoring"
	"github.com/banshee-data/pace.report/internal/version"
)

var errNoHistory = errors.New("no snapshots recorded yet")

type Server struct {
	db  *db.DB
	cfg *config.ChallengeConfig
}

func NewServer(database *db.DB, cfg *config.ChallengeConfig) *Server {
	return &Server{
		db:  database,
		cfg: cfg,
	}
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	// Handle the home page
	w.Write([]byte("Welcome to the Pace Report server!"))
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/teams", s.instrument("/api/teams", s.handleTeams))
	mux.HandleFunc("/api/snapshot", s.instrument("/api/snapshot", s.handleSnapshot))
	mux.HandleFunc("/api/history", s.instrument("/api/history", s.handleHistory))
	mux.HandleFunc("/api/kinetics", s.instrument("/api/kinetics", s.handleKinetics))
	mux.HandleFunc("/api/projection", s.instrument("/api/projection", s.handleProjection))
	mux.HandleFunc("/api/insights", s.instrument("/api/insights", s.handleInsights))
	mux.HandleFunc("/api/thresholds", s.instrument("/api/thresholds", s.handleThresholds))
	mux.HandleFunc("/api/export/csv", s.instrument("/api/export/csv", s.handleExportCSV))
	mux.HandleFunc("/api/import/csv", s.instrument("/api/import/csv", s.handleImportCSV))
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/charts/kinetics", s.handleKineticsChart)
	mux.HandleFunc("/charts/projection", s.handleProjectionChart)
	mux.Handle("/metrics", metrics.Handler())
	s.db.AttachAdminRoutes(mux)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"version":   version.Version,
		"gitSHA":    version.GitSHA,
		"buildTime": version.BuildTime,
	})
}

// statusRecorder captures the response status for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)
		metrics.RecordHTTPRequest(endpoint, r.Method, strconv.Itoa(rec.status))
	}
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response is already started; all we can do is log it.
		monitoring.Logf("JSON encoding error: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// constants returns the scoring constants for an entry, preferring the
// versioned constants stored with it.
func (s *Server) constants(entry *challenge.HistoryEntry) challenge.Constants {
	if entry != nil && entry.Constants != nil {
		return *entry.Constants
	}
	return s.cfg.Constants()
}

// latestDataset loads the most recent snapshot as a dataset.
func (s *Server) latestDataset() (challenge.Dataset, error) {
	entry, err := s.db.LatestEntry()
	if err != nil {
		return challenge.Dataset{}, err
	}
	if entry == nil {
		return challenge.Dataset{}, errNoHistory
	}
	return challenge.Dataset{
		AsOf:      entry.AsOf,
		Teams:     entry.Teams,
		Constants: s.constants(entry),
	}, nil
}

func (s *Server) handleTeams(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	dataset, err := s.latestDataset()
	if errors.Is(err, errNoHistory) {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load snapshot: %v", err))
		return
	}

	start := time.Now()
	teams := challenge.AttachKPIs(dataset)
	metrics.RecordRecomputeLatency(float64(time.Since(start).Milliseconds()))

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"asOf":      dataset.AsOf,
		"constants": dataset.Constants,
		"teams":     teams,
	})
}

// snapshotRequest is the POST /api/snapshot body.
type snapshotRequest struct {
	AsOf      time.Time                `json:"asOf"`
	Teams     []challenge.TeamSnapshot `json:"teams"`
	Constants *challenge.Constants     `json:"constants,omitempty"`
}

func (req *snapshotRequest) validate() error {
	if req.AsOf.IsZero() {
		return errors.New("asOf is required")
	}
	if len(req.Teams) == 0 {
		return errors.New("at least one team is required")
	}
	for i, team := range req.Teams {
		if team.Name == "" {
			return fmt.Errorf("team %d has no name", i)
		}
		if team.Steps < 0 || team.ActivityKm < 0 || team.Missions < 0 {
			return fmt.Errorf("team %q has negative counters", team.Name)
		}
	}
	return nil
}

func (s *Server) saveSnapshot(w http.ResponseWriter, req snapshotRequest) {
	constants := req.Constants
	if constants == nil {
		c := s.cfg.Constants()
		constants = &c
	}

	saved, err := s.db.SaveEntry(challenge.HistoryEntry{
		AsOf:      req.AsOf,
		Teams:     req.Teams,
		Constants: constants,
	})
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save snapshot: %v", err))
		return
	}

	metrics.RecordSnapshotSave()
	metrics.UpdateTeamCount(len(req.Teams))
	if entries, err := s.db.History(); err == nil {
		metrics.UpdateHistorySize(len(entries))
	}

	monitoring.Logf("saved snapshot %s (asOf %s, %d teams)", saved.ID, saved.AsOf.Format(time.RFC3339), len(saved.Teams))
	s.writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordSnapshotReject()
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid snapshot body: %v", err))
		return
	}
	if err := req.validate(); err != nil {
		metrics.RecordSnapshotReject()
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.saveSnapshot(w, req)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries, err := s.db.History()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load history: %v", err))
		return
	}
	if entries == nil {
		entries = []challenge.HistoryEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

// kineticsConfig builds the smoothing config from defaults plus optional
// alpha_v / alpha_a query overrides. Out-of-range values are ignored.
func (s *Server) kineticsConfig(r *http.Request) challenge.KineticsConfig {
	cfg := s.cfg.KineticsConfig()
	if v := r.URL.Query().Get("alpha_v"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 && parsed <= 1 {
			cfg.VelocityAlpha = parsed
		}
	}
	if v := r.URL.Query().Get("alpha_a"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 && parsed <= 1 {
			cfg.AccelerationAlpha = parsed
		}
	}
	return cfg
}

func (s *Server) handleKinetics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries, err := s.db.History()
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load history: %v", err))
		return
	}

	start := time.Now()
	result := challenge.BuildDailyKinetics(entries, s.cfg.Constants(), s.kineticsConfig(r))
	metrics.RecordRecomputeLatency(float64(time.Since(start).Milliseconds()))

	if result == nil {
		result = []challenge.TeamKinetics{}
	}
	s.writeJSON(w, http.StatusOK, result)
}

// projectionParams assembles projection inputs from config defaults plus
// query overrides.
func (s *Server) projectionParams(r *http.Request) challenge.ProjectionParams {
	query := r.URL.Query()

	params := challenge.ProjectionParams{
		LookbackDays: s.cfg.GetLookbackDays(),
		EndDate:      s.cfg.GetEndDate(),
		RivalTeam:    query.Get("rival"),
	}
	if v := query.Get("lookback_days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 1 {
			params.LookbackDays = parsed
		}
	}
	if v := query.Get("end_date"); v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			params.EndDate = parsed
		}
	}
	if v := query.Get("logging_target"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			params.Scenario.LoggingTarget = parsed
		}
	}
	if v := query.Get("bike_share_delta"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			params.Scenario.BikeShareDelta = parsed
		}
	}
	if v := query.Get("missions_target"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			params.Scenario.MissionsTarget = parsed
		}
	}
	return params
}

func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

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

	start := time.Now()
	set := challenge.BuildProjections(dataset, entries, s.projectionParams(r))
	metrics.RecordRecomputeLatency(float64(time.Since(start).Milliseconds()))

	s.writeJSON(w, http.StatusOK, set)
}

// teamInsights is one team's diagnostics in the insights response.
type teamInsights struct {
	Name     string   `json:"name"`
	Insights []string `json:"insights"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	dataset, err := s.latestDataset()
	if errors.Is(err, errNoHistory) {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load snapshot: %v", err))
		return
	}

	filter := r.URL.Query().Get("team")
	results := make([]teamInsights, 0, len(dataset.Teams))
	for _, team := range challenge.AttachKPIs(dataset) {
		if filter != "" && team.Name != filter {
			continue
		}
		insights := challenge.GenerateInsights(team.TeamSnapshot, team.KPIs, dataset.Constants)
		if insights == nil {
			insights = []string{}
		}
		results = append(results, teamInsights{Name: team.Name, Insights: insights})
	}
	if filter != "" && len(results) == 0 {
		s.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no team named %q in the latest snapshot", filter))
		return
	}

	s.writeJSON(w, http.StatusOK, results)
}

// teamBands is one team's classified KPI bands in the thresholds response.
type teamBands struct {
	Name  string                         `json:"name"`
	Bands map[string]challenge.Threshold `json:"bands"`
}

func (s *Server) handleThresholds(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	dataset, err := s.latestDataset()
	if errors.Is(err, errNoHistory) {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load snapshot: %v", err))
		return
	}

	teams := make([]teamBands, 0, len(dataset.Teams))
	for _, team := range challenge.AttachKPIs(dataset) {
		values := map[string]float64{
			"loggingRate":     team.KPIs.LoggingRate,
			"bikeShare":       team.KPIs.BikeShare,
			"missionsPer100k": team.KPIs.MissionsPer100k,
			"ptsPer10kSteps":  team.KPIs.PtsPer10kSteps,
			"kmPer10kSteps":   team.KPIs.KmPer10kSteps,
		}
		bands := make(map[string]challenge.Threshold, len(values))
		for kpi, value := range values {
			bands[kpi] = challenge.ClassifyThreshold(value, challenge.Thresholds[kpi])
		}
		teams = append(teams, teamBands{Name: team.Name, Bands: bands})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"definitions": challenge.Thresholds,
		"teams":       teams,
	})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	dataset, err := s.latestDataset()
	if errors.Is(err, errNoHistory) {
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load snapshot: %v", err))
		return
	}

	data, err := challenge.ExportTeamsCSV(dataset.Teams)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to export CSV: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=teams-%s.csv", dataset.AsOf.Format("2006-01-02")))
	w.Write(data)
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	teams, err := challenge.ParseTeamsCSV(r.Body)
	if err != nil {
		metrics.RecordSnapshotReject()
		s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid CSV: %v", err))
		return
	}

	asOf := time.Now().UTC()
	if v := r.URL.Query().Get("as_of"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			metrics.RecordSnapshotReject()
			s.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid as_of: %v", err))
			return
		}
		asOf = parsed
	}

	req := snapshotRequest{AsOf: asOf, Teams: teams}
	if err := req.validate(); err != nil {
		metrics.RecordSnapshotReject()
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.saveSnapshot(w, req)
}
