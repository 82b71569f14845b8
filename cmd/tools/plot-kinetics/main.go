// Command plot-kinetics renders a team's daily kinetics from the history
// database as PNG charts. Useful for eyeballing momentum offline without
// running the server.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pace.report/internal/challenge"
	"github.com/banshee-data/pace.report/internal/config"
	"github.com/banshee-data/pace.report/internal/db"
)

var (
	dbFile     = flag.String("db", "challenge_history.db", "Path to the SQLite history database")
	configFile = flag.String("config", "", "Path to a JSON challenge config (optional)")
	teamName   = flag.String("team", "", "Team to plot (default: all teams)")
	outputDir  = flag.String("out", "plots", "Output directory for PNG files")
	alphaV     = flag.Float64("alpha-v", 0, "Velocity EMA smoothing factor (overrides config)")
	alphaA     = flag.Float64("alpha-a", 0, "Acceleration EMA smoothing factor (overrides config)")
)

func main() {
	flag.Parse()

	challengeCfg := config.EmptyChallengeConfig()
	if *configFile != "" {
		var err error
		challengeCfg, err = config.LoadChallengeConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	entries, err := database.History()
	if err != nil {
		log.Fatalf("failed to load history: %v", err)
	}
	if len(entries) == 0 {
		log.Fatal("history is empty; save at least one snapshot first")
	}

	cfg := challengeCfg.KineticsConfig()
	if *alphaV > 0 {
		cfg.VelocityAlpha = *alphaV
	}
	if *alphaA > 0 {
		cfg.AccelerationAlpha = *alphaA
	}
	teams := challenge.BuildDailyKinetics(entries, challengeCfg.Constants(), cfg)

	if *teamName != "" {
		filtered := teams[:0]
		for _, team := range teams {
			if team.Name == *teamName {
				filtered = append(filtered, team)
			}
		}
		teams = filtered
		if len(teams) == 0 {
			log.Fatalf("no team named %q in the history", *teamName)
		}
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}

	count, err := generatePlots(teams, *outputDir)
	if err != nil {
		log.Fatalf("failed to generate plots: %v", err)
	}
	log.Printf("wrote %d plots to %s", count, *outputDir)
}

// generatePlots writes one velocity and one acceleration chart, each with a
// line per team.
func generatePlots(teams []challenge.TeamKinetics, outputDir string) (int, error) {
	pVel := plot.New()
	pVel.Title.Text = "Daily Velocity (EMA)"
	pVel.X.Label.Text = "Day"
	pVel.Y.Label.Text = "pts/day"

	pAcc := plot.New()
	pAcc.Title.Text = "Daily Acceleration (EMA)"
	pAcc.X.Label.Text = "Day"
	pAcc.Y.Label.Text = "pts/day²"

	colors := generateColors(len(teams))

	for i, team := range teams {
		velPts := make(plotter.XYs, 0, len(team.Series))
		accPts := make(plotter.XYs, 0, len(team.Series))
		for day, point := range team.Series {
			velPts = append(velPts, plotter.XY{X: float64(day), Y: point.VelocityEMA})
			accPts = append(accPts, plotter.XY{X: float64(day), Y: point.AccelEMA})
		}

		velLine, err := plotter.NewLine(velPts)
		if err != nil {
			return 0, err
		}
		velLine.Color = colors[i]
		velLine.Width = vg.Points(1)
		pVel.Add(velLine)
		pVel.Legend.Add(team.Name, velLine)

		accLine, err := plotter.NewLine(accPts)
		if err != nil {
			return 0, err
		}
		accLine.Color = colors[i]
		accLine.Width = vg.Points(1)
		pAcc.Add(accLine)
		pAcc.Legend.Add(team.Name, accLine)
	}

	pVel.Legend.Top = true
	pAcc.Legend.Top = true

	velFile := filepath.Join(outputDir, "velocity.png")
	if err := pVel.Save(14*vg.Inch, 6*vg.Inch, velFile); err != nil {
		return 0, fmt.Errorf("save velocity plot: %w", err)
	}
	accFile := filepath.Join(outputDir, "acceleration.png")
	if err := pAcc.Save(14*vg.Inch, 6*vg.Inch, accFile); err != nil {
		return 1, fmt.Errorf("save acceleration plot: %w", err)
	}

	return 2, nil
}

// generateColors creates a palette of distinct colors for team lines
func generateColors(n int) []color.Color {
	if n <= 0 {
		return nil
	}

	colors := make([]color.Color, n)
	for i := 0; i < n; i++ {
		hue := float64(i) / float64(n)
		r, g, b := hslToRGB(hue, 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL to RGB (0-255 range)
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	var rf, gf, bf float64

	if s == 0 {
		rf, gf, bf = l, l, l
	} else {
		var q float64
		if l < 0.5 {
			q = l * (1 + s)
		} else {
			q = l + s - l*s
		}
		p := 2*l - q
		rf = hueToRGB(p, q, h+1.0/3.0)
		gf = hueToRGB(p, q, h)
		bf = hueToRGB(p, q, h-1.0/3.0)
	}

	return uint8(rf * 255), uint8(gf * 255), uint8(bf * 255)
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	if t < 1.0/6.0 {
		return p + (q-p)*6*t
	}
	if t < 1.0/2.0 {
		return q
	}
	if t < 2.0/3.0 {
		return p + (q-p)*(2.0/3.0-t)*6
	}
	return p
}
