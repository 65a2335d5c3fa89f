package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tiagofur/rpg-ai-sub004/internal/combat"
	"github.com/tiagofur/rpg-ai-sub004/internal/command"
	"github.com/tiagofur/rpg-ai-sub004/internal/config"
	"github.com/tiagofur/rpg-ai-sub004/internal/engine"
	"github.com/tiagofur/rpg-ai-sub004/internal/lock"
	"github.com/tiagofur/rpg-ai-sub004/internal/narrative"
	"github.com/tiagofur/rpg-ai-sub004/internal/repository"
	"github.com/tiagofur/rpg-ai-sub004/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting session command engine",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	if cfg.Auth.AdminPassword == "" {
		logger.Warn("admin password not configured; admin endpoints disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Database and lock backend. The backend is an explicit deployment
	// choice; a missing database with the postgres backend is a startup
	// error, never a silent fallback to in-memory locking.
	var (
		store  engine.SessionStore
		locker lock.SessionLocker
	)

	switch cfg.Lock.Backend {
	case "postgres":
		db, dbErr := repository.NewDB(ctx, cfg.Database, logger)
		if dbErr != nil {
			logger.Fatal("failed to connect to database", zap.Error(dbErr))
		}
		defer db.Close()

		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)

		store = repository.NewSessionRepository(db)
		locker = lock.NewPostgresLocker(db.Pool(), cfg.Lock.TTL, logger)

	case "memory":
		logger.Warn("using in-memory session lock; single-instance deployment only")
		locker = lock.NewMemoryLocker(cfg.Lock.TTL, logger)

		if cfg.Database.URL != "" {
			db, dbErr := repository.NewDB(ctx, cfg.Database, logger)
			if dbErr != nil {
				logger.Fatal("failed to connect to database", zap.Error(dbErr))
			}
			defer db.Close()
			store = repository.NewSessionRepository(db)
		}
	}

	narrativeClient := narrative.NewClient(cfg.Narrative.BaseURL, cfg.Narrative.Timeout, logger)
	logger.Info("narrative client initialized",
		zap.String("base_url", cfg.Narrative.BaseURL),
		zap.Duration("timeout", cfg.Narrative.Timeout),
	)

	combatMgr := combat.NewManager(
		cfg.Engine.InitiativeSeed,
		combat.StrategyByName(cfg.Engine.EnemyStrategy),
		logger,
	)
	logger.Info("combat manager initialized",
		zap.String("enemy_strategy", cfg.Engine.EnemyStrategy),
	)

	registry := command.DefaultRegistry()
	logger.Info("command registry initialized",
		zap.Strings("commands", registry.Types()),
	)

	eng := engine.New(cfg.Engine, locker, registry, combatMgr, narrativeClient, store, logger)
	eng.Start()
	logger.Info("game engine initialized",
		zap.Int("max_undo_entries", cfg.Engine.MaxUndoEntries),
		zap.Duration("autosave_interval", cfg.Engine.AutosaveInterval),
	)

	srv, err := server.NewServer(eng, cfg.Auth.AdminPassword, logger)
	if err != nil {
		logger.Fatal("failed to initialize server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", zap.String("address", cfg.Server.Address))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("HTTP server error", zap.Error(serveErr))
		}
	}()

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}
	srv.Shutdown()

	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.Warn("engine shutdown error", zap.Error(err))
	}

	logger.Info("server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
