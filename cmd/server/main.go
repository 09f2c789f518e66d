package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/rosterkit/roster-api/internal/config"
	"github.com/rosterkit/roster-api/internal/fetch"
	"github.com/rosterkit/roster-api/internal/handlers"
	"github.com/rosterkit/roster-api/internal/middleware"
	"github.com/rosterkit/roster-api/internal/proxy"
	"github.com/rosterkit/roster-api/internal/registry"
	"github.com/rosterkit/roster-api/internal/routes"
	"github.com/rosterkit/roster-api/internal/workflow"
	"github.com/rs/zerolog"
)

type application struct {
	config       *config.Config
	logger       zerolog.Logger
	registry     *registry.Registry
	pool         *proxy.Pool
	orchestrator *workflow.Orchestrator
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg := config.Load()

	// Wire the proxy pool, source API client and workflow orchestrator.
	pool := proxy.NewPool(cfg.Proxy.File)
	fetcher := fetch.NewClient(cfg.SourceAPI.BaseURL, cfg.SourceAPI.Timeout, pool, logger)
	orchestrator := workflow.NewOrchestrator(workflow.Config{
		DataDir:       cfg.DataDir,
		Cooldown:      cfg.Workflow.RateLimitCooldown,
		MinRosterSize: cfg.Workflow.MinRosterSize,
	}, fetcher, logger)

	// Create the application instance.
	app := &application{
		config:       cfg,
		logger:       logger,
		registry:     registry.New(),
		pool:         pool,
		orchestrator: orchestrator,
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins(cfg.CORS.AllowedOrigins),
		h.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, logger)

	logger.Info().Msg("Application terminated.")
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	defaults := handlers.RunDefaults{
		Delay:       app.config.Workflow.RequestDelay,
		Retries:     app.config.Workflow.MaxRetries,
		MaxParallel: app.config.Workflow.MaxParallelRequests,
	}

	jobHandler := handlers.NewJobHandler(app.registry, app.orchestrator, defaults, logger)
	statusHandler := handlers.NewStatusHandler(app.pool)
	downloadHandler := handlers.NewDownloadHandler(app.config.DataDir)

	return routes.NewRouter(jobHandler, statusHandler, downloadHandler)
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}
}
