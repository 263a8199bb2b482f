package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/rentalflow/internal/config"
	"github.com/joao-fontenele/rentalflow/internal/domain"
	"github.com/joao-fontenele/rentalflow/internal/messaging"
	"github.com/joao-fontenele/rentalflow/internal/telemetry"
	"github.com/joao-fontenele/rentalflow/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var missing []error
	required := func(key string) string {
		v, err := config.Required(key)
		if err != nil {
			missing = append(missing, err)
		}
		return v
	}
	emailServiceURL := required("EMAIL_SERVICE_URL")
	ordersServiceURL := required("ORDERS_SERVICE_URL")
	inventoryServiceURL := required("INVENTORY_SERVICE_URL")
	brokers := config.List("KAFKA_BROKERS", nil)
	if len(brokers) == 0 {
		missing = append(missing, errors.New("KAFKA_BROKERS is required"))
	}
	if len(missing) > 0 {
		logger.Error("missing configuration", "error", errors.Join(missing...))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "worker", "0.1.0",
		config.String("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	consumer := messaging.NewConsumer(brokers, domain.TopicOrderPaid, config.String("KAFKA_GROUP_ID", "fulfillment-worker"))
	defer func() { _ = consumer.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	fulfillment := worker.NewFulfillmentHandler(emailServiceURL, ordersServiceURL, inventoryServiceURL, httpClient, logger)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		logger.Info("shutting down")
		cancel()
	}()

	logger.Info("starting fulfillment worker", "brokers", brokers, "topic", domain.TopicOrderPaid)

	if err := consumer.Consume(ctx, fulfillment.Handle); err != nil {
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
	logger.Info("consumer stopped")
}
