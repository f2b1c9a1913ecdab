package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/btangonan/calm-productivity-app-sub002/internal/api/http"
	"github.com/btangonan/calm-productivity-app-sub002/internal/api/http/handlers"
	"github.com/btangonan/calm-productivity-app-sub002/internal/auth"
	"github.com/btangonan/calm-productivity-app-sub002/internal/cache"
	"github.com/btangonan/calm-productivity-app-sub002/internal/config"
	"github.com/btangonan/calm-productivity-app-sub002/internal/events"
	"github.com/btangonan/calm-productivity-app-sub002/internal/observability"
	"github.com/btangonan/calm-productivity-app-sub002/internal/persistence"
	"github.com/btangonan/calm-productivity-app-sub002/internal/repository"
	"github.com/btangonan/calm-productivity-app-sub002/internal/service"
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

	metrics := observability.NewMetrics()

	table, err := persistence.NewSheetsTable(ctx, cfg.Sheets, logger)
	if err != nil {
		logger.Fatal("failed to connect spreadsheet store", zap.Error(err))
	}
	credentialRepo := repository.NewCredentialRepository(table)

	pingers := map[string]handlers.Pinger{"sheets": table}

	var registry cache.Registry
	var redisStore *persistence.Redis
	if cfg.Cache.Backend == config.CacheBackendRedis {
		redisStore = persistence.NewRedis(cfg.Redis, logger)
		defer redisStore.Close()
		registry = cache.NewRedisRegistry(redisStore.Client, cfg.Cache.TTL())
		pingers["redis"] = redisStore
	} else {
		registry = cache.NewMemoryRegistry(cfg.Cache.TTL(), nil)
	}

	validator := auth.NewValidator(auth.NewCertSource(cfg.Google.CertsEndpoint), cfg.Google.ClientID)
	tokenClient := auth.NewTokenClient(cfg.Google)

	dispatcher := events.NewInMemoryDispatcher(logger)
	observability.SubscribeSessionEvents(dispatcher, logger, metrics)

	sessions := service.NewSessionService(service.Dependencies{
		Validator:   validator,
		Tokens:      tokenClient,
		Credentials: credentialRepo,
		Registry:    registry,
		Events:      dispatcher,
	}, logger)

	authMiddleware := auth.NewMiddleware(validator)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:            cfg.App.RequestTimeout(),
		IncludeDiagnostics: !cfg.App.IsProduction(),
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pingers),
		Session:        handlers.NewSessionHandler(sessions),
		Cache:          handlers.NewCacheHandler(sessions),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
