package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-engine/internal/api/http"
	"github.com/spec-kit/ticket-engine/internal/api/http/handlers"
	"github.com/spec-kit/ticket-engine/internal/auth"
	"github.com/spec-kit/ticket-engine/internal/config"
	"github.com/spec-kit/ticket-engine/internal/events"
	"github.com/spec-kit/ticket-engine/internal/observability"
	"github.com/spec-kit/ticket-engine/internal/persistence"
	"github.com/spec-kit/ticket-engine/internal/platform"
	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/schedule"
	"github.com/spec-kit/ticket-engine/internal/service"
	"github.com/spec-kit/ticket-engine/internal/token"
	"github.com/spec-kit/ticket-engine/internal/worker"
)

const drainTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketStore := repository.NewTicketStore(pool)
	configStore := repository.NewCachedConfigStore(
		repository.NewTenantConfigStore(pool), redis.Client, cfg.Redis.ConfigTTL(), logger)

	metrics := observability.NewMetrics()
	scheduler := schedule.New(cfg.Scheduler.TaskSpacing(), logger)
	codec := token.NewCodec(cfg.Token.Secret, cfg.Token.LegacySecret)
	channelOps := platform.NewRESTClient(cfg.Platform, logger)

	auditSink := events.NewInMemorySink()
	events.NewAuditLogger(logger).RegisterHandlers(auditSink)

	ticketService := service.NewTicketService(service.TicketDependencies{
		ConfigStore: configStore,
		TicketStore: ticketStore,
		Scheduler:   scheduler,
		ChannelOps:  channelOps,
		AuditSink:   auditSink,
		Metrics:     metrics,
		Logger:      logger,
	})
	transcriptService := service.NewTranscriptService(service.TranscriptDependencies{
		TicketStore: ticketStore,
		Scheduler:   scheduler,
		ChannelOps:  channelOps,
		Sink:        channelOps,
		AuditSink:   auditSink,
		Metrics:     metrics,
		Logger:      logger,
	})

	autoClose := worker.NewAutoCloseWorker(
		configStore, ticketStore, transcriptService,
		cfg.AutoClose.CheckInterval(), "system", logger)
	if cfg.AutoClose.Enabled {
		autoClose.Start()
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(configStore, tokenManager),
		Interactions:   handlers.NewInteractionsHandler(codec, ticketService, transcriptService, logger),
		Tickets:        handlers.NewTicketsHandler(ticketService, transcriptService, codec),
		Configs:        handlers.NewConfigHandler(configStore, cfg.Auth.BcryptCost),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	autoClose.Stop()

	// Wait for pending channel operations before abandoning the queues.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainTimeout)
	defer drainCancel()
	if err := scheduler.Drain(drainCtx); err != nil {
		logger.Warn("scheduler drain timed out, abandoning remaining work", zap.Error(err))
	}
	scheduler.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
