package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/psouza/carteira/internal/clients/bcb"
	"github.com/psouza/carteira/internal/clients/brapi"
	"github.com/psouza/carteira/internal/clients/yahoo"
	"github.com/psouza/carteira/internal/config"
	"github.com/psouza/carteira/internal/database"
	"github.com/psouza/carteira/internal/events"
	"github.com/psouza/carteira/internal/locking"
	"github.com/psouza/carteira/internal/marketdata"
	"github.com/psouza/carteira/internal/modules/analysis"
	analysishandlers "github.com/psouza/carteira/internal/modules/analysis/handlers"
	"github.com/psouza/carteira/internal/modules/history"
	historyhandlers "github.com/psouza/carteira/internal/modules/history/handlers"
	"github.com/psouza/carteira/internal/modules/ledger"
	ledgerhandlers "github.com/psouza/carteira/internal/modules/ledger/handlers"
	markethandlers "github.com/psouza/carteira/internal/modules/market/handlers"
	"github.com/psouza/carteira/internal/scheduler"
	"github.com/psouza/carteira/internal/server"
	"github.com/psouza/carteira/pkg/logger"
)

func main() {
	// Load configuration first so the log level is honored
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{Level: "info"})
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Msg("Starting Carteira")

	// Database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	eventManager := events.NewManager(log)

	// Market data stack: cache, providers, fallback resolver
	cache := marketdata.NewCache(log)
	yahooClient := yahoo.NewClient(cfg.YahooBaseURL, log)
	brapiClient := brapi.NewClient(cfg.BrapiBaseURL, cfg.BrapiToken, log)
	bcbClient := bcb.NewClient(cfg.BCBBaseURL, log)

	resolver := marketdata.NewResolver(marketdata.ResolverConfig{
		Cache:     cache,
		Primary:   yahooClient,
		Secondary: marketdata.NewBatchFetcher(brapiClient, cfg.BatchSize, cfg.BatchDelay, log),
		Single:    brapiClient,
		Series:    brapiClient,
		Dividends: brapiClient,
		Events:    eventManager,
		QuoteTTL:  cfg.QuoteCacheTTL,
		Log:       log,
	})

	// Ledger
	lockManager := locking.NewManager()
	assetRepo := ledger.NewAssetRepository(db.Conn(), log)
	txRepo := ledger.NewTransactionRepository(db.Conn(), log)
	positionRepo := ledger.NewPositionRepository(db.Conn(), log)
	ledgerService := ledger.NewService(assetRepo, txRepo, positionRepo, resolver, lockManager, eventManager, log)

	// Derived views
	historyService := history.NewService(txRepo, assetRepo, resolver, log)
	analysisService := analysis.NewService(resolver, log)

	// Background jobs
	sched := scheduler.New(log)
	if err := registerJobs(sched, cfg, positionRepo, resolver, bcbClient, cache, eventManager, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		Config:  cfg,
		DevMode: cfg.DevMode,
		Handlers: server.Handlers{
			Ledger:  ledgerhandlers.NewHandler(ledgerService, log),
			History: historyhandlers.NewHandler(historyService, log),
			Market: markethandlers.NewHandler(
				resolver, brapiClient, bcbClient, cache,
				cfg.ListCacheTTL, cfg.MacroCacheTTL, log,
			),
			Analysis: analysishandlers.NewHandler(analysisService, log),
		},
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

func registerJobs(
	sched *scheduler.Scheduler,
	cfg *config.Config,
	positions *ledger.PositionRepository,
	resolver *marketdata.Resolver,
	bcbClient *bcb.Client,
	cache *marketdata.Cache,
	eventManager *events.Manager,
	log zerolog.Logger,
) error {
	// Every 30 minutes during the day; the job itself skips closed markets
	if err := sched.AddJob("*/30 * * * *", scheduler.NewPriceRefreshJob(positions, resolver, eventManager, log)); err != nil {
		return err
	}
	// Macro indicators move slowly, hourly is plenty
	return sched.AddJob("@hourly", scheduler.NewMacroRefreshJob(bcbClient, cache, cfg.MacroCacheTTL, log))
}
