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
	"github.com/joao-fontenele/rentalflow/internal/gateway"
	"github.com/joao-fontenele/rentalflow/internal/telemetry"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	var missing []error
	required := func(key string) string {
		v, err := config.Required(key)
		if err != nil {
			missing = append(missing, err)
		}
		return v
	}
	storefrontURL := required("STOREFRONT_SERVICE_URL")
	ordersServiceURL := required("ORDERS_SERVICE_URL")
	inventoryServiceURL := required("INVENTORY_SERVICE_URL")
	emailServiceURL := required("EMAIL_SERVICE_URL")
	if len(missing) > 0 {
		logger.Error("missing configuration", "error", errors.Join(missing...))
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", "0.1.0",
		config.String("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	handler := gateway.NewHandler([]gateway.Route{
		{Prefix: "/api/", Proxy: gateway.NewServiceProxy(storefrontURL, httpClient)},
		{Prefix: "/admin/orders", Rewrite: "/orders", Proxy: gateway.NewServiceProxy(ordersServiceURL, httpClient)},
		{Prefix: "/admin/stock", Rewrite: "/stock", Proxy: gateway.NewServiceProxy(inventoryServiceURL, httpClient)},
		{Prefix: "/contact", Proxy: gateway.NewServiceProxy(emailServiceURL, httpClient)},
	}, logger)

	port := config.String("PORT", "8080")

	server := &http.Server{
		Addr: ":" + port,
		Handler: otelhttp.NewHandler(handler, "gateway",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
	}

	go func() {
		logger.Info("starting gateway service", "port", port)
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
