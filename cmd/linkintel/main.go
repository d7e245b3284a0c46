package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"linkintel/internal/api"
	"linkintel/internal/api/handlers"
	"linkintel/internal/repository"
	"linkintel/internal/service"
	"linkintel/pkg/config"
	"linkintel/pkg/logger"
	"linkintel/pkg/postgres"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting Link Intelligence service")

	// Initialize database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	customerRepo := repository.NewCustomerRepository(db, appLogger)
	subscriptionRepo := repository.NewSubscriptionRepository(db, appLogger)
	linkRepo := repository.NewLinkRepository(db, appLogger)

	// Refinement is best-effort: without an API key the pipeline simply
	// skips it.
	var generator service.Generator
	if cfg.GigaChat.APIKey != "" {
		llmService, err := service.NewLLMService(&cfg.GigaChat, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to initialize LLM service", zap.Error(err))
		}
		defer llmService.Close()
		generator = llmService
	} else {
		appLogger.Warn("GIGACHAT_API_KEY is not set, evidence refinement is disabled")
	}

	// Initialize services
	discoveryService := service.NewDiscoveryService(customerRepo, subscriptionRepo, linkRepo, generator, &cfg.Discovery, appLogger)
	linkService := service.NewLinkService(linkRepo, appLogger)

	// Initialize handlers
	linkHandler := handlers.NewLinkHandler(discoveryService, linkService, cfg.Discovery.RefineEnabled, appLogger)

	// Setup router
	app := api.SetupRouter(linkHandler)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
}
