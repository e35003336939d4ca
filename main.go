package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gamification-engine/config"
	"gamification-engine/database"
	"gamification-engine/handlers"
	"gamification-engine/logging"
	"gamification-engine/services"
	"gamification-engine/utils"
	"gamification-engine/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("error", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := utils.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName)
	if err != nil {
		log.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg)
	if err != nil {
		log.Error("database init failed", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}

	engine, err := services.NewEngine(db, cfg.Economy, log)
	if err != nil {
		log.Error("failed to build engine", "error", err)
		os.Exit(1)
	}

	if source, err := catalogSource(ctx, cfg); err != nil {
		log.Error("failed to configure catalog source", "error", err)
		os.Exit(1)
	} else if source != nil {
		workers.NewCatalogSyncWorker(db, source, cfg.CatalogSyncInterval, log).Start(ctx)
	} else {
		log.Warn("⚠️  no CATALOG_PATH or CATALOG_R2_KEY set, catalog is managed out of band")
	}

	scheduler, err := engine.StartProposalFinalizer(ctx, cfg.ProposalFinalizeInterval)
	if err != nil {
		log.Error("failed to start proposal finalizer", "error", err)
		os.Exit(1)
	}

	app := handlers.NewApp(cfg, engine, log)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	log.Info("✅ server running", "port", cfg.Port, "db", cfg.DBDriver)
	log.Info("✅ proposal finalizer running", "every", cfg.ProposalFinalizeInterval)
	log.Info("✅ CORS configured", "origins", cfg.AllowedOrigins)

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	if err := scheduler.Shutdown(); err != nil {
		log.Warn("scheduler shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", "error", err)
	}
}

// catalogSource prefers the R2 object over the local file; nil means none configured.
func catalogSource(ctx context.Context, cfg *config.Config) (workers.CatalogSource, error) {
	switch {
	case cfg.CatalogR2Key != "":
		client, err := utils.NewR2Client(ctx, cfg.R2)
		if err != nil {
			return nil, err
		}
		return workers.R2Source{Client: client, Key: cfg.CatalogR2Key}, nil
	case cfg.CatalogPath != "":
		return workers.FileSource{Path: cfg.CatalogPath}, nil
	}
	return nil, nil
}
