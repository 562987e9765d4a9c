package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	database "github.com/skinsage/skinsage/app/db"
	appLogger "github.com/skinsage/skinsage/app/logger"
	appMiddleware "github.com/skinsage/skinsage/app/middleware"
	"github.com/skinsage/skinsage/app/observability/metrics"
	"github.com/skinsage/skinsage/app/tracer"
	"github.com/skinsage/skinsage/config"
	"github.com/skinsage/skinsage/internal/api/chat"
	generativeAI "github.com/skinsage/skinsage/internal/api/generative_ai"
	"github.com/skinsage/skinsage/internal/api/orchestrator"
	"github.com/skinsage/skinsage/internal/api/products"
	"github.com/skinsage/skinsage/internal/api/profiles"
	"github.com/skinsage/skinsage/internal/api/safety"
	"github.com/skinsage/skinsage/internal/api/stores"
	"github.com/skinsage/skinsage/internal/router"
)

func main() {
	// Use standard log until slog is configured, in case godotenv fails
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("FATAL: Error initializing config: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Tracing + Prometheus metrics endpoint, then the app instruments.
	tracer.InitTracingAndMetrics(cfg.Handlers.Prometheus.Port)
	metrics.InitAppMetrics()

	// --- Database Setup ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		os.Exit(1)
	}

	// Run migrations *before* initializing the main pool
	err = database.RunMigrations(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Dependency Injection ---
	aiClient, err := generativeAI.NewAIClient(ctx, cfg.AI.GenerationModel, cfg.AI.EmbeddingModel, logger)
	if err != nil {
		logger.Error("Failed to initialize AI client", slog.Any("error", err))
		os.Exit(1)
	}

	productsRepo := products.NewRepository(pool, logger)
	productsService := products.NewServiceImpl(productsRepo, aiClient, logger)

	profilesRepo := profiles.NewRepository(pool, logger)
	profilesService := profiles.NewServiceImpl(profilesRepo, logger)

	engine := safety.NewEngine(safety.ConflictRules)
	var analyzer safety.DeepAnalyzer
	if cfg.Pipeline.DeepAnalysis {
		analyzer = generativeAI.NewFormulationAnalyzer(aiClient, logger)
	}
	gate := safety.NewGate(engine, analyzer, logger)

	storesService := stores.NewServiceImpl(cfg.Pipeline.StoreLocatorBaseURL, logger)
	synthesizer := orchestrator.NewSynthesizer(aiClient, logger)

	executor := orchestrator.NewExecutor(
		profilesService,
		productsService,
		gate,
		storesService,
		synthesizer,
		metrics.Get(),
		logger,
	)
	executor.SetRetrievalLimit(cfg.Pipeline.RetrievalLimit)

	chatHandler := chat.NewHandler(executor, logger)
	safetyHandler := safety.NewHandler(gate, profilesService, productsRepo, logger)

	// --- Router Setup ---
	routerConfig := &router.Config{
		ChatHandler:            chatHandler,
		SafetyHandler:          safetyHandler,
		AuthenticateMiddleware: appMiddleware.Authenticate,
		AllowedOrigins:         cfg.Server.AllowedOrigins,
	}
	mainRouter := router.SetupRouter(routerConfig)

	mux := chi.NewMux()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(appLogger.StructuredLogger(logger))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.StripSlashes)
	mux.Use(middleware.Timeout(60 * time.Second))
	mux.Use(middleware.Compress(5, "application/json"))
	mux.Mount("/", mainRouter)

	// --- HTTP Server Setup ---
	srv := &http.Server{
		Addr:    cfg.Server.HTTPPort,
		Handler: mux,
		// Streaming responses can run well past a typical write timeout.
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", srv.Addr))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutdown signal received, starting graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server exited with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		// Colored logs for development
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		// JSON logs for production or other environments
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
