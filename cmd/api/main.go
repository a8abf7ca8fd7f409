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

	httptransport "github.com/spec-kit/ticket-escalation/internal/api/http"
	"github.com/spec-kit/ticket-escalation/internal/api/http/handlers"
	"github.com/spec-kit/ticket-escalation/internal/auth"
	"github.com/spec-kit/ticket-escalation/internal/bootstrap"
	"github.com/spec-kit/ticket-escalation/internal/config"
	"github.com/spec-kit/ticket-escalation/internal/observability"
	"github.com/spec-kit/ticket-escalation/internal/worker"
)

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

	container, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise application", zap.Error(err))
	}
	defer container.Close()

	var sweepWorker *worker.EscalationWorker
	if cfg.Escalation.Enabled {
		sweepWorker, err = worker.NewEscalationWorker(cfg.Escalation, container.Escalation, container.Redis, logger)
		if err != nil {
			logger.Fatal("failed to schedule escalation sweep", zap.Error(err))
		}
		sweepWorker.Start()
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, container.Repos.Users, container.Audit)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger, container.Metrics),
	})
	httptransport.RegisterMiddlewares(app, logger, container.Metrics, cfg.App.RequestTimeout())

	deps := map[string]handlers.Pinger{"redis": container.Redis}
	if container.Postgres != nil {
		deps["postgres"] = container.Postgres
	}
	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          healthHandler,
		Tickets:         handlers.NewTicketsHandler(container.Tickets),
		PublicTickets:   handlers.NewPublicTicketsHandler(container.Tickets),
		Escalations:     handlers.NewEscalationsHandler(container.Escalation),
		Rules:           handlers.NewRulesHandler(container.Escalation),
		AuthMiddleware:  authMiddleware,
		Matrix:          container.Matrix,
		Metrics:         container.Metrics,
		PublicRateLimit: cfg.App.PublicRateLimit,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if sweepWorker != nil {
		if err := sweepWorker.Stop(shutdownCtx); err != nil {
			logger.Warn("escalation worker shutdown", zap.Error(err))
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
