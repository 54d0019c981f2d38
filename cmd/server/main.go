// Package main is the entry point for the Intrinsic valuation server.
// It backs a browser-based equity research dashboard with interactive
// DCF valuation sessions, sensitivity analysis, and AI-generated
// scenario recommendations.
//
// The application follows a modular layout:
// - Pure valuation engine (no infrastructure dependencies)
// - Repository pattern for persisted fundamentals and recommendations
// - Service layer for provider sync and scenario generation
// - HTTP handlers per module, assembled by the server package
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dkaratzas/intrinsic/internal/clientdata"
	"github.com/dkaratzas/intrinsic/internal/clients/advisor"
	"github.com/dkaratzas/intrinsic/internal/clients/fmp"
	"github.com/dkaratzas/intrinsic/internal/config"
	"github.com/dkaratzas/intrinsic/internal/database"
	"github.com/dkaratzas/intrinsic/internal/events"
	"github.com/dkaratzas/intrinsic/internal/modules/fundamentals"
	fundamentalshandlers "github.com/dkaratzas/intrinsic/internal/modules/fundamentals/handlers"
	"github.com/dkaratzas/intrinsic/internal/modules/scenarios"
	scenarioshandlers "github.com/dkaratzas/intrinsic/internal/modules/scenarios/handlers"
	"github.com/dkaratzas/intrinsic/internal/modules/valuation"
	valuationhandlers "github.com/dkaratzas/intrinsic/internal/modules/valuation/handlers"
	"github.com/dkaratzas/intrinsic/internal/scheduler"
	"github.com/dkaratzas/intrinsic/internal/server"
	"github.com/dkaratzas/intrinsic/pkg/logger"
)

func main() {
	// Load configuration first to get the log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Msg("Starting Intrinsic")

	// research.db holds scenario recommendations; cache.db holds
	// provider response blobs.
	researchDB, err := database.New(database.Config{
		Name:    "research",
		Path:    filepath.Join(cfg.DataDir, "research.db"),
		Profile: database.ProfileStandard,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open research.db")
	}
	defer researchDB.Close()

	cacheDB, err := database.New(database.Config{
		Name:    "cache",
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache.db")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{researchDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("db", db.Name()).Msg("Migration failed")
		}
	}

	// history.db holds synced fundamentals and can be rebuilt from the
	// provider at any time.
	historyConn, err := fundamentals.OpenHistoryDB(filepath.Join(cfg.DataDir, "history.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history.db")
	}
	defer historyConn.Close()

	// Event plumbing
	eventBus := events.NewBus(log)
	eventManager := events.NewManager(eventBus, log)

	// External clients share the persistent response cache
	cacheRepo := clientdata.NewRepository(cacheDB.Conn())
	fmpClient := fmp.NewClient(cfg.FMPBaseURL, cfg.FMPAPIKey, cacheRepo, log)
	advisorClient := advisor.NewClient(cfg.AdvisorServiceURL, cacheRepo, log)

	// Services
	registry := valuation.NewRegistry(log)
	historyDB := fundamentals.NewHistoryDB(historyConn, log)
	fundamentalsService := fundamentals.NewService(fmpClient, historyDB, eventManager, log)
	scenarioRepo := scenarios.NewRepository(researchDB.Conn(), log)
	scenarioService := scenarios.NewService(advisorClient, scenarioRepo, registry, eventManager, log)

	// Background jobs
	sched := scheduler.New(log)
	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.RefreshSchedule, scheduler.NewQuoteRefreshJob(fundamentalsService, registry, log)},
		{"0 6 * * *", scheduler.NewHistoryRefreshJob(fundamentalsService, historyDB, registry, log)},
		{"@hourly", scheduler.NewScenarioCleanupJob(scenarioRepo, log)},
		{"@hourly", clientdata.NewCleanupJob(cacheRepo, log)},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to register job")
		}
	}
	sched.Start()

	// HTTP server
	srv := server.New(server.Config{
		Config:               cfg,
		Log:                  log,
		DevMode:              cfg.DevMode,
		EventBus:             eventBus,
		ResearchDB:           researchDB,
		CacheDB:              cacheDB,
		ValuationHandlers:    valuationhandlers.NewHandler(registry, fundamentalsService, eventManager, log),
		FundamentalsHandlers: fundamentalshandlers.NewHandler(fundamentalsService, log),
		ScenariosHandlers:    scenarioshandlers.NewHandler(scenarioService, log),
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	sched.Stop()

	// The HTTP server gets up to 10 seconds to finish in-flight requests
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
