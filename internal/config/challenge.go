package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/pace.report/internal/challenge"
)

// DefaultConfigPath is the path to the canonical challenge defaults file.
// This is the single source of truth for all default analytics values.
const DefaultConfigPath = "config/challenge.defaults.json"

// ChallengeConfig represents the root configuration for the analytics
// engines. All fields are optional; the Get* accessors fall back to the
// built-in defaults, so partial config files are safe.
type ChallengeConfig struct {
	// Scoring constants
	StepsPerKmFoot         *float64 `json:"steps_per_km_foot,omitempty"`
	PtsPerKmRunWalk        *float64 `json:"pts_per_km_run_walk,omitempty"`
	PtsPerKmBike           *float64 `json:"pts_per_km_bike,omitempty"`
	PtsPer10kStepsBaseline *float64 `json:"pts_per_10k_steps_baseline,omitempty"`
	MissionPts5k           *float64 `json:"mission_pts_5k,omitempty"`
	MissionPts8k           *float64 `json:"mission_pts_8k,omitempty"`
	MissionPts10k          *float64 `json:"mission_pts_10k,omitempty"`

	// History params
	HistoryLimit *int `json:"history_limit,omitempty"`

	// Kinetics params
	VelocityAlpha     *float64 `json:"velocity_alpha,omitempty"`
	AccelerationAlpha *float64 `json:"acceleration_alpha,omitempty"`

	// Projection params
	LookbackDays *int    `json:"lookback_days,omitempty"`
	EndDate      *string `json:"end_date,omitempty"` // date string like "2025-10-05"
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrString(v string) *string    { return &v }

// EmptyChallengeConfig returns a ChallengeConfig with all fields set to nil.
// Use LoadChallengeConfig to load actual values from the defaults file.
func EmptyChallengeConfig() *ChallengeConfig {
	return &ChallengeConfig{}
}

// LoadChallengeConfig loads a ChallengeConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadChallengeConfig(path string) (*ChallengeConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyChallengeConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ChallengeConfig) Validate() error {
	positives := map[string]*float64{
		"steps_per_km_foot":          c.StepsPerKmFoot,
		"pts_per_km_run_walk":        c.PtsPerKmRunWalk,
		"pts_per_km_bike":            c.PtsPerKmBike,
		"pts_per_10k_steps_baseline": c.PtsPer10kStepsBaseline,
	}
	for name, v := range positives {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	alphas := map[string]*float64{
		"velocity_alpha":     c.VelocityAlpha,
		"acceleration_alpha": c.AccelerationAlpha,
	}
	for name, v := range alphas {
		if v != nil && (*v <= 0 || *v > 1) {
			return fmt.Errorf("%s must be in (0, 1], got %f", name, *v)
		}
	}

	if c.HistoryLimit != nil && *c.HistoryLimit < 1 {
		return fmt.Errorf("history_limit must be at least 1, got %d", *c.HistoryLimit)
	}
	if c.LookbackDays != nil && *c.LookbackDays < 1 {
		return fmt.Errorf("lookback_days must be at least 1, got %d", *c.LookbackDays)
	}

	if c.EndDate != nil && *c.EndDate != "" {
		if _, err := time.Parse("2006-01-02", *c.EndDate); err != nil {
			return fmt.Errorf("invalid end_date '%s': %w", *c.EndDate, err)
		}
	}

	return nil
}

// Constants assembles the scoring constants, filling unset fields from the
// built-in defaults.
func (c *ChallengeConfig) Constants() challenge.Constants {
	constants := challenge.DefaultConstants()
	if c.StepsPerKmFoot != nil {
		constants.StepsPerKmFoot = *c.StepsPerKmFoot
	}
	if c.PtsPerKmRunWalk != nil {
		constants.PtsPerKmRunWalk = *c.PtsPerKmRunWalk
	}
	if c.PtsPerKmBike != nil {
		constants.PtsPerKmBike = *c.PtsPerKmBike
	}
	if c.PtsPer10kStepsBaseline != nil {
		constants.PtsPer10kStepsBaseline = *c.PtsPer10kStepsBaseline
	}
	if c.MissionPts5k != nil {
		constants.StepMissionPts.FiveK = *c.MissionPts5k
	}
	if c.MissionPts8k != nil {
		constants.StepMissionPts.EightK = *c.MissionPts8k
	}
	if c.MissionPts10k != nil {
		constants.StepMissionPts.TenK = *c.MissionPts10k
	}
	return constants
}

// KineticsConfig assembles the smoothing factors for the kinetics builder.
func (c *ChallengeConfig) KineticsConfig() challenge.KineticsConfig {
	cfg := challenge.DefaultKineticsConfig()
	if c.VelocityAlpha != nil {
		cfg.VelocityAlpha = *c.VelocityAlpha
	}
	if c.AccelerationAlpha != nil {
		cfg.AccelerationAlpha = *c.AccelerationAlpha
	}
	return cfg
}

// GetHistoryLimit returns the history_limit value or the default.
func (c *ChallengeConfig) GetHistoryLimit() int {
	if c.HistoryLimit == nil {
		return challenge.HistoryLimit
	}
	return *c.HistoryLimit
}

// GetLookbackDays returns the lookback_days value or the default.
func (c *ChallengeConfig) GetLookbackDays() int {
	if c.LookbackDays == nil {
		return 14
	}
	return *c.LookbackDays
}

// GetEndDate parses and returns the end_date, or the zero time when unset.
// Projections without an end date report zero days remaining.
func (c *ChallengeConfig) GetEndDate() time.Time {
	if c.EndDate == nil || *c.EndDate == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", *c.EndDate)
	if err != nil {
		return time.Time{}
	}
	return t
}
