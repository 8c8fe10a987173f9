package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cardsmith/cardsmith-server-go/internal/config"
	"github.com/cardsmith/cardsmith-server-go/internal/game/engine"
	"github.com/cardsmith/cardsmith-server-go/internal/game/schema"
	"github.com/cardsmith/cardsmith-server-go/internal/notify"
	"github.com/cardsmith/cardsmith-server-go/internal/repository"
	"github.com/cardsmith/cardsmith-server-go/internal/server"
	"github.com/cardsmith/cardsmith-server-go/internal/session"
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

	logger.Info("starting cardsmith server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := session.Options{
		Engine: engine.Options{
			RevertDelay: cfg.Engine.RevertDelay,
			PeekDelay:   cfg.Engine.PeekDelay,
			PeekCost:    cfg.Engine.PeekCost,
			PairPoints:  cfg.Engine.PairPoints,
			Seed:        cfg.Engine.Seed,
		},
		ThinkMin:      cfg.Bot.ThinkMin,
		ThinkMax:      cfg.Bot.ThinkMax,
		MaxBotActions: cfg.Bot.MaxActions,
		MaxProbes:     cfg.Bot.MaxProbes,
	}
	if cfg.Replay.Enabled {
		opts.Recorder = session.NewReplayRecorder(logger, cfg.Replay.Directory)
		logger.Info("replay recording enabled", zap.String("directory", cfg.Replay.Directory))
	}

	health := server.NewHealthServer(logger, cfg.Server.HealthInterval)

	if cfg.Redis.Addr != "" {
		cache := repository.NewSnapshotCache(cfg.Redis)
		if err := cache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable; state cache disabled", zap.Error(err))
		} else {
			defer cache.Close()
			opts.Cache = cache
			health.AddCheck("cardsmith.cache", cache.Ping)
			logger.Info("state cache initialized", zap.String("addr", cfg.Redis.Addr))
		}
	}

	var schemas server.SchemaSource
	if cfg.Database.URL != "" {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)

		health.AddCheck("cardsmith.database", db.Pool().Ping)

		repo := repository.NewSchemaRepository(db, logger)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to prepare schema table", zap.Error(err))
		}
		schemas = server.SchemaSourceFunc(func(ctx context.Context, id string) (*schema.GameRules, error) {
			stored, err := repo.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			return stored.Rules, nil
		})
	}

	manager := session.NewManager(logger, opts)
	health.AddCheck(server.SessionService, server.SessionCheck(manager))
	ws := server.New(cfg.Server, manager, schemas, logger)

	handlers := []session.NotificationHandler{ws.Notify}
	if cfg.NATS.URL != "" {
		nc, err := notify.Connect(cfg.NATS, logger)
		if err != nil {
			logger.Warn("nats unavailable; notifications stay local", zap.Error(err))
		} else {
			defer nc.Drain()
			handlers = append(handlers, notify.NewPublisher(nc, cfg.NATS.SubjectPrefix, logger).Handler())
			logger.Info("nats publisher initialized", zap.String("url", cfg.NATS.URL))
		}
	}
	manager.SetNotificationHandler(notify.Fanout(handlers...))

	logger.Info("cardsmith server initialized",
		zap.String("version", version),
		zap.String("websocket_address", cfg.Server.Address),
		zap.String("grpc_address", cfg.Server.GRPCAddress),
		zap.Strings("templates", schema.TemplateNames()),
	)

	if cfg.Server.GRPCAddress != "" {
		go func() {
			if err := health.ListenAndServe(ctx, cfg.Server.GRPCAddress); err != nil {
				logger.Error("gRPC server error", zap.Error(err))
			}
		}()
	}

	if err := ws.ListenAndServe(ctx); err != nil {
		logger.Error("WebSocket server error", zap.Error(err))
	}

	for _, s := range manager.List() {
		if err := manager.End(context.Background(), s.ID); err != nil {
			logger.Warn("failed to end session", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
	logger.Info("cardsmith server stopped")
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
