package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetterDefaults(t *testing.T) {
	// Empty config: every getter should fall back to the built-in defaults.
	cfg := EmptyChallengeConfig()

	constants := cfg.Constants()
	if constants.StepsPerKmFoot != 1350 {
		t.Errorf("StepsPerKmFoot = %f, want 1350", constants.StepsPerKmFoot)
	}
	if constants.PtsPerKmRunWalk != 14 {
		t.Errorf("PtsPerKmRunWalk = %f, want 14", constants.PtsPerKmRunWalk)
	}
	if constants.StepMissionPts.Bundle() != 110 {
		t.Errorf("mission bundle = %f, want 110", constants.StepMissionPts.Bundle())
	}

	kinetics := cfg.KineticsConfig()
	if kinetics.VelocityAlpha != 0.4 || kinetics.AccelerationAlpha != 0.4 {
		t.Errorf("kinetics alphas = %v, want 0.4/0.4", kinetics)
	}

	if cfg.GetHistoryLimit() != 14 {
		t.Errorf("GetHistoryLimit() = %d, want 14", cfg.GetHistoryLimit())
	}
	if cfg.GetLookbackDays() != 14 {
		t.Errorf("GetLookbackDays() = %d, want 14", cfg.GetLookbackDays())
	}
	if !cfg.GetEndDate().IsZero() {
		t.Errorf("GetEndDate() = %v, want zero time", cfg.GetEndDate())
	}
}

func TestLoadChallengeConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "steps_per_km_foot": 1400,
  "mission_pts_5k": 60,
  "history_limit": 30,
  "velocity_alpha": 0.25,
  "lookback_days": 7,
  "end_date": "2025-10-05"
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadChallengeConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Overridden values
	constants := cfg.Constants()
	if constants.StepsPerKmFoot != 1400 {
		t.Errorf("StepsPerKmFoot = %f, want 1400", constants.StepsPerKmFoot)
	}
	if constants.StepMissionPts.FiveK != 60 {
		t.Errorf("mission 5k pts = %f, want 60", constants.StepMissionPts.FiveK)
	}
	if cfg.GetHistoryLimit() != 30 {
		t.Errorf("GetHistoryLimit() = %d, want 30", cfg.GetHistoryLimit())
	}
	if cfg.KineticsConfig().VelocityAlpha != 0.25 {
		t.Errorf("VelocityAlpha = %f, want 0.25", cfg.KineticsConfig().VelocityAlpha)
	}
	if cfg.GetLookbackDays() != 7 {
		t.Errorf("GetLookbackDays() = %d, want 7", cfg.GetLookbackDays())
	}
	want := time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC)
	if !cfg.GetEndDate().Equal(want) {
		t.Errorf("GetEndDate() = %v, want %v", cfg.GetEndDate(), want)
	}

	// Defaults should be preserved for omitted fields
	if constants.PtsPerKmBike != 7 {
		t.Errorf("PtsPerKmBike = %f, want default 7", constants.PtsPerKmBike)
	}
	if cfg.KineticsConfig().AccelerationAlpha != 0.4 {
		t.Errorf("AccelerationAlpha = %f, want default 0.4", cfg.KineticsConfig().AccelerationAlpha)
	}
}

func TestLoadChallengeConfigMissing(t *testing.T) {
	_, err := LoadChallengeConfig("/nonexistent/path/to/config.json")
	if err == nil {
		t.Error("Expected error when loading missing file, got nil")
	}
}

func TestLoadChallengeConfigInvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid_config.json")

	invalidJSON := `{
  "steps_per_km_foot": "invalid"
`
	if err := os.WriteFile(configPath, []byte(invalidJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	if _, err := LoadChallengeConfig(configPath); err == nil {
		t.Error("Expected error when loading invalid JSON, got nil")
	}
}

func TestLoadChallengeConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadChallengeConfig("/some/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadChallengeConfigRejectsLargeFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "large.json")

	largeData := make([]byte, 2*1024*1024) // 2MB
	if err := os.WriteFile(configPath, largeData, 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}

	if _, err := LoadChallengeConfig(configPath); err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *ChallengeConfig
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			cfg:     &ChallengeConfig{},
			wantErr: false,
		},
		{
			name: "valid overrides",
			cfg: &ChallengeConfig{
				StepsPerKmFoot: ptrFloat64(1300),
				VelocityAlpha:  ptrFloat64(0.5),
				HistoryLimit:   ptrInt(20),
				EndDate:        ptrString("2025-12-31"),
			},
			wantErr: false,
		},
		{
			name: "zero steps per km",
			cfg: &ChallengeConfig{
				StepsPerKmFoot: ptrFloat64(0),
			},
			wantErr: true,
		},
		{
			name: "negative baseline",
			cfg: &ChallengeConfig{
				PtsPer10kStepsBaseline: ptrFloat64(-5),
			},
			wantErr: true,
		},
		{
			name: "alpha above one",
			cfg: &ChallengeConfig{
				AccelerationAlpha: ptrFloat64(1.5),
			},
			wantErr: true,
		},
		{
			name: "zero alpha",
			cfg: &ChallengeConfig{
				VelocityAlpha: ptrFloat64(0),
			},
			wantErr: true,
		},
		{
			name: "history limit below one",
			cfg: &ChallengeConfig{
				HistoryLimit: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "lookback below one",
			cfg: &ChallengeConfig{
				LookbackDays: ptrInt(0),
			},
			wantErr: true,
		},
		{
			name: "invalid end date",
			cfg: &ChallengeConfig{
				EndDate: ptrString("soon"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg, err := LoadChallengeConfig("../../" + DefaultConfigPath)
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}
	if cfg.Constants().StepsPerKmFoot != 1350 {
		t.Errorf("StepsPerKmFoot = %f, want 1350", cfg.Constants().StepsPerKmFoot)
	}
	if cfg.GetHistoryLimit() != 14 {
		t.Errorf("GetHistoryLimit() = %d, want 14", cfg.GetHistoryLimit())
	}
}
