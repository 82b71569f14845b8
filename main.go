package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/pace.report/api"
	"github.com/banshee-data/pace.report/internal/challenge"
	"github.com/banshee-data/pace.report/internal/config"
	"github.com/banshee-data/pace.report/internal/db"
	"github.com/banshee-data/pace.report/internal/version"
)

var (
	devMode    = flag.Bool("dev", false, "Run in dev mode (seeds a demo dataset into an empty database)")
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "challenge_history.db", "Path to the SQLite history database")
	configFile = flag.String("config", "", "Path to a JSON challenge config (optional)")
	migrations = flag.String("migrations", "migrations", "Path to the migrations directory")
)

// seedDemoData saves the demo dataset when the history is empty so dev mode
// has something to show before any snapshot is imported.
func seedDemoData(database *db.DB, cfg *config.ChallengeConfig) error {
	latest, err := database.LatestEntry()
	if err != nil {
		return err
	}
	if latest != nil {
		return nil
	}

	demo := challenge.DemoDataset()
	constants := demo.Constants
	saved, err := database.SaveEntry(challenge.HistoryEntry{
		AsOf:      demo.AsOf,
		Teams:     demo.Teams,
		Constants: &constants,
	})
	if err != nil {
		return err
	}
	log.Printf("seeded demo dataset %s (%d teams)", saved.ID, len(saved.Teams))
	return nil
}

func main() {
	flag.Parse()

	log.Printf("pace.report %s (commit %s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyChallengeConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadChallengeConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	database.HistoryLimit = cfg.GetHistoryLimit()

	// Apply pending migrations when the directory is present; NewDB already
	// created the base schema so a missing directory is fine for dev.
	if _, err := os.Stat(*migrations); err == nil {
		if err := database.MigrateUp(*migrations); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	if *devMode {
		if err := seedDemoData(database, cfg); err != nil {
			log.Fatalf("Failed to seed demo data: %v", err)
		}
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := api.NewServer(database, cfg).ServeMux()

		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("got request %q", r.URL.Path)
			mux.ServeHTTP(w, r)
		})

		server := &http.Server{
			Addr:    *listen,
			Handler: h,
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			log.Printf("listening on %s", *listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
