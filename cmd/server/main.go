package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/risk-engine/internal/clients/yahoo"
	"github.com/aristath/risk-engine/internal/config"
	"github.com/aristath/risk-engine/internal/database"
	"github.com/aristath/risk-engine/internal/events"
	"github.com/aristath/risk-engine/internal/modules/analysis"
	"github.com/aristath/risk-engine/internal/modules/marketdata"
	"github.com/aristath/risk-engine/internal/modules/risk"
	"github.com/aristath/risk-engine/internal/scheduler"
	"github.com/aristath/risk-engine/internal/server"
	"github.com/aristath/risk-engine/pkg/logger"
)

func main() {
	// Load configuration first so the log level is honored
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting risk engine")

	// Price history store
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	store := marketdata.NewStore(db, log)
	if err := store.Init(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize price history schema")
	}

	// Core components
	eventManager := events.NewManager(log)
	priceSource := yahoo.NewClient(log)

	manager := risk.NewManager(risk.ManagerConfig{
		Params:         cfg.Risk,
		InitialCapital: cfg.InitialCapital,
		Log:            log,
	})

	// The manager expects a single logical owner; the risk handler is that
	// owner, so the analyzer reads holdings through it rather than through
	// the manager directly.
	riskHandler := risk.NewHandler(manager, store, cfg.HistoryBars, eventManager, log)

	analyzer := analysis.New(analysis.Config{
		Source: riskHandler,
		Log:    log,
	})

	// Handlers
	analysisHandler := analysis.NewHandler(analyzer, store, cfg.HistoryBars, log)
	marketdataHandler := marketdata.NewHandler(store, priceSource, eventManager, log)

	// Background jobs
	sched := scheduler.New(log)

	refreshJob := scheduler.NewAnalysisRefreshJob(store, analyzer, cfg.HistoryBars, eventManager, log)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register analysis refresh job")
	}
	if err := sched.AddJob("0 0 0 * * *", scheduler.NewDailyResetJob(riskHandler, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register daily reset job")
	}

	sched.Start()
	defer sched.Stop()

	// Prime the analyzer with whatever history is already stored
	if err := sched.RunNow(refreshJob); err != nil {
		log.Warn().Err(err).Msg("Initial analysis refresh failed")
	}

	// HTTP server
	srv := server.New(server.Config{
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		Log:        log,
		Risk:       riskHandler,
		Analysis:   analysisHandler,
		MarketData: marketdataHandler,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
