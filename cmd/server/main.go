package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"med-lab/api"
	"med-lab/auth"
	"med-lab/domain"
	"med-lab/domain/event"
	"med-lab/internal"
	"med-lab/knowledge"
	"med-lab/llm/openrouter"
	"med-lab/observability"
	"med-lab/repositories"
	"med-lab/runtime"
	"med-lab/runtime/workers"
	"med-lab/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for HTTP and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := internal.LoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Database (BadgerDB)
	options := buildBadgerOpts(config, logger, ctx)

	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
		logger.Info("Debug Badger inspector available", "url", url)
		internal.StartDebugServer(db, config.DebugPort, endpoint, ConsultationMapper, nil)
	}

	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeCfg := bluge.DefaultConfig(config.BlugeFilepath)
	blugeWriter, err := bluge.OpenWriter(blugeCfg)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Setup Supervision & Orchestration
	telemetryChan := make(chan event.Event, config.BufferSize)
	eventChan := make(chan event.Event, config.BufferSize)
	sup := workers.NewSupervisor(logger).WithTelemetry(telemetryChan)
	registry := runtime.NewRegistry()
	messageRepository := repositories.NewMessageRepository(db, logger, config.LimitMessages)
	consultationRepository := repositories.NewConsultationRepository(db, logger, config.LimitMessages)
	userRepository := repositories.NewUserRepository(db)

	llmClient, err := openrouter.NewClient(openrouter.Config{
		APIKey:  config.OpenRouterAPIKey,
		BaseURL: config.OpenRouterBaseURL,
		Model:   config.Model,
		Timeout: config.LLMTimeout,
		Title:   "med-lab",
	})
	if err != nil {
		return exitConfig, fmt.Errorf("llm client error: %w", err)
	}

	monitoring := observability.NewMonitoringManager(logger)
	handlers := []event.Handler{
		monitoring,
		event.NewLatencyHandler(logger, config.LatencyThreshold),
		event.NewChannelCapacityHandler(logger, config.LowCapacityThreshold),
		event.NewEmergencyHandler(logger),
		event.NewProcessTrackerHandler(logger),
		event.NewWorkerRestartedHandler(logger),
	}

	orchestrator := runtime.NewOrchestrator(
		logger, sup, registry, telemetryChan, eventChan,
		messageRepository,
		consultationRepository,
		runtime.Pipeline{
			Client:         llmClient,
			VisionModel:    config.VisionModel,
			Index:          knowledge.NewIndex(blugeWriter, logger),
			KnowledgeLimit: config.KnowledgeLimit,
		},
		handlers,
		config.NumberOfWorkers, config.BufferSize,
		config.SinkTimeout, config.MetricInterval,
	)
	orchestrator.TrackProcess(domain.Process{PID: domain.PID(os.Getpid()), Component: domain.SERVER})

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Error (HTTP & Orchestrator)
	errChan := make(chan error, 2)

	// 5. Start the Engine (Workers and Fanout)
	go func() {
		logger.Info("Starting orchestrator...")
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 6. HTTP Server Setup
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	consultService := services.NewConsultService(orchestrator, config.ReplyTimeout, config.MaxUploadBytes)
	apiServer := api.NewServer(
		logger, authService, consultService, tokens, monitoring,
		config.MaxContentLength, config.MaxUploadBytes,
	)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           apiServer.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Use an error channel to capture ListenAndServe() issues asynchronously.
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	// We allow in-flight consultations to finish and workers to drain their channels.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown was not clean", "error", err)
	}
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// ConsultationMapper renders stored consultations and transcript messages in
// the Badger inspector. Both records are JSON, so a partial decode is enough.
func ConsultationMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	var record struct {
		Query     string   `json:"query"`
		Content   string   `json:"content"`
		Intents   []string `json:"intents"`
		Agents    []string `json:"agents"`
		Emergency bool     `json:"emergency"`
	}
	if err := json.Unmarshal(val, &record); err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}

	switch {
	case strings.HasPrefix(key, "consult:"):
		row.Type = "CONSULT"
		row.Detail = record.Query
		row.Scores = strings.Join(append(record.Intents, record.Agents...), " ")
		if record.Emergency {
			row.Type = "EMERGENCY"
		}
	case strings.HasPrefix(key, "msg:"):
		row.Type = "MESSAGE"
		row.Detail = record.Content
	case strings.HasPrefix(key, "user:"):
		row.Type = "USER"
		row.Detail = "(credentials hidden)"
	}
	return row
}
