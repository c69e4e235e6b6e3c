package main

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inkwell-hq/inkwell/internal"
	"github.com/inkwell-hq/inkwell/internal/ai"
	"github.com/inkwell-hq/inkwell/internal/ai/gemini"
	aimock "github.com/inkwell-hq/inkwell/internal/ai/mock"
	"github.com/inkwell-hq/inkwell/internal/email"
	"github.com/inkwell-hq/inkwell/internal/handler"
	"github.com/inkwell-hq/inkwell/internal/metrics"
	"github.com/inkwell-hq/inkwell/internal/middleware"
	"github.com/inkwell-hq/inkwell/internal/store"
	"github.com/inkwell-hq/inkwell/internal/store/memory"
	"github.com/inkwell-hq/inkwell/internal/store/postgres"
	"github.com/inkwell-hq/inkwell/internal/workflow"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize thread store
	var threads store.ThreadStore
	switch cfg.Store {
	case "postgres":
		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}

		if err := internal.RunMigrations(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Info("Database ready")

		threads = postgres.New(db)
	default:
		logger.Warn("Using in-memory thread store; drafts will not survive restarts")
		threads = memory.New()
	}

	// Initialize text generation provider
	var generator ai.TextGenerator
	if cfg.AIProvider == "gemini" {
		generator, err = gemini.New(gemini.Config{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("gemini provider initialization failed: %w", err)
		}
	} else {
		generator = aimock.New(logger)
	}
	logger.Info("Text generation ready", "provider", cfg.AIProvider)

	// Initialize mail sender
	smtpConfig := email.ProviderPreset(cfg.EmailProvider)
	if cfg.EmailProvider == "custom" {
		smtpConfig = email.SMTPConfig{
			Host:   cfg.SMTPHost,
			Port:   cfg.SMTPPort,
			UseTLS: cfg.SMTPUseTLS,
		}
	}
	smtpConfig.Username = cfg.SMTPUsername
	smtpConfig.Password = cfg.SMTPPassword
	smtpConfig.From = cfg.SMTPFrom
	smtpConfig.FromName = cfg.SMTPFromName
	mailer := email.NewSMTPMailer(smtpConfig, logger)

	// Initialize the workflow engine and handlers
	engine := workflow.New(threads, generator, mailer, logger)
	threadHandler := handler.NewThreadHandler(engine, mailer, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics, optionally behind basic auth
	metricsHandler := http.Handler(promhttp.Handler())
	if cfg.MetricsUsername != "" && cfg.MetricsPassword != "" {
		metricsHandler = basicAuth(metricsHandler, cfg.MetricsUsername, cfg.MetricsPassword)
	}
	mux.Handle("GET /metrics", metricsHandler)

	threadHandler.RegisterRoutes(mux)

	// Wrap the router in logging and metrics middleware
	logging := middleware.NewRequestLoggingMiddleware(logger)
	root := middleware.Stack(logging.Handler, metrics.Middleware)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// basicAuth guards a handler with HTTP basic authentication.
func basicAuth(next http.Handler, username, password string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
		if !ok || !userOK || !passOK {
			w.Header().Set("WWW-Authenticate", `Basic realm="metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
