package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/rentalflow/internal/config"
	"github.com/joao-fontenele/rentalflow/internal/email"
	"github.com/joao-fontenele/rentalflow/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	redisURL, err := config.Required("REDIS_URL")
	if err != nil {
		logger.Error("missing configuration", "error", err)
		os.Exit(1)
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "email", "0.1.0",
		config.String("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	var mailer email.Mailer
	if host := config.String("SMTP_HOST", ""); host != "" {
		mailer = email.NewSMTPMailer(
			host,
			config.Int("SMTP_PORT", 587),
			config.String("SMTP_USER", ""),
			config.String("SMTP_PASSWORD", ""),
			config.String("SMTP_FROM", "noreply@rentalflow.local"),
		)
		logger.Info("delivering email over smtp", "host", host)
	} else {
		mailer = email.NewLogMailer(logger)
		logger.Warn("SMTP_HOST not set, emails are only logged")
	}

	limiter := email.NewWindowLimiter(rdb, config.Int("CONTACT_LIMIT", 5), config.Duration("CONTACT_WINDOW", 24*time.Hour))
	handler := email.NewHandler(mailer, limiter, config.String("CONTACT_INBOX", "info@rentalflow.local"), logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", telemetry.WithHTTPRoute(handler.HandleSend))
	mux.HandleFunc("POST /contact", telemetry.WithHTTPRoute(handler.HandleContact))

	port := config.String("PORT", "8084")

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      otelhttp.NewHandler(mux, "email"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting email service", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
