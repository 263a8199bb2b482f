package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/joao-fontenele/rentalflow/internal/availability"
	"github.com/joao-fontenele/rentalflow/internal/cart"
	"github.com/joao-fontenele/rentalflow/internal/catalog"
	"github.com/joao-fontenele/rentalflow/internal/checkout"
	"github.com/joao-fontenele/rentalflow/internal/config"
	"github.com/joao-fontenele/rentalflow/internal/db"
	"github.com/joao-fontenele/rentalflow/internal/messaging"
	"github.com/joao-fontenele/rentalflow/internal/orders"
	"github.com/joao-fontenele/rentalflow/internal/payment"
	"github.com/joao-fontenele/rentalflow/internal/storefront"
	"github.com/joao-fontenele/rentalflow/internal/telemetry"
	"github.com/joao-fontenele/rentalflow/internal/travel"
)

const serviceVersion = "0.1.0"

type settings struct {
	postgresURL      string
	redisURL         string
	inventoryURL     string
	stripeSecretKey  string
	webhookSecret    string
	publicBaseURL    string
	brokers          []string
	travelPolicy     checkout.TravelPolicy
	tariff           travel.Tariff
	nominatimURL     string
	nominatimAgent   string
	stripeBackendURL string
}

func loadSettings() (*settings, error) {
	var errs []error
	required := func(key string) string {
		v, err := config.Required(key)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	s := &settings{
		postgresURL:      required("POSTGRES_URL"),
		redisURL:         required("REDIS_URL"),
		inventoryURL:     required("INVENTORY_SERVICE_URL"),
		stripeSecretKey:  required("STRIPE_SECRET_KEY"),
		webhookSecret:    required("STRIPE_WEBHOOK_SECRET"),
		publicBaseURL:    config.String("PUBLIC_BASE_URL", "http://localhost:8080"),
		brokers:          config.List("KAFKA_BROKERS", nil),
		travelPolicy:     checkout.TravelPolicy(config.String("TRAVEL_POLICY", string(checkout.TravelConfirmLater))),
		nominatimURL:     config.String("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		nominatimAgent:   config.String("NOMINATIM_USER_AGENT", "rentalflow/"+serviceVersion),
		stripeBackendURL: config.String("STRIPE_API_URL", ""),
	}

	if s.travelPolicy != checkout.TravelBlock && s.travelPolicy != checkout.TravelConfirmLater {
		errs = append(errs, fmt.Errorf("TRAVEL_POLICY must be %q or %q", checkout.TravelBlock, checkout.TravelConfirmLater))
	}

	def := travel.DefaultTariff()
	tariff, err := travel.ParseTariff(
		config.String("TRAVEL_BASE_FEE", def.BaseFee.String()),
		config.String("TRAVEL_THRESHOLD_KM", def.ThresholdKm.String()),
		config.String("TRAVEL_PER_KM", def.PerKm.String()),
	)
	if err != nil {
		errs = append(errs, err)
	}
	s.tariff = tariff

	return s, errors.Join(errs...)
}

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := loadSettings()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "storefront", serviceVersion,
		config.String("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"))
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("storefront", serviceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	pool, err := db.Connect(ctx, cfg.postgresURL)
	if err != nil {
		logger.Error("failed to connect catalog pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	products, err := catalog.NewRepository(pool).Load(ctx)
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}
	logger.Info("catalog loaded", "products", products.Len())

	sqlDB, err := telemetry.OpenDB("postgres", cfg.postgresURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.redisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	gate := availability.NewGate(availability.NewHTTPVerifier(cfg.inventoryURL, httpClient))

	geocoder := travel.NewCachedGeocoder(
		travel.NewNominatim(cfg.nominatimURL, cfg.nominatimAgent, "nl", httpClient),
		rdb,
		logger,
	)
	estimator := travel.NewEstimator(geocoder, travel.Zwolle, cfg.tariff)

	orderRepo := orders.NewOrderRepository(sqlDB)
	gateway := payment.NewStripeGateway(cfg.stripeSecretKey, cfg.stripeBackendURL, httpClient)

	checkoutMetrics, err := telemetry.NewCheckoutMetrics(otel.Meter("storefront"))
	if err != nil {
		logger.Error("failed to create checkout metrics", "error", err)
		os.Exit(1)
	}

	opts := []checkout.Option{
		checkout.WithMetrics(checkoutMetrics),
		checkout.WithTravelPolicy(cfg.travelPolicy),
	}

	var publisher storefront.Publisher
	if len(cfg.brokers) > 0 {
		producer := messaging.NewProducer(cfg.brokers)
		defer func() { _ = producer.Close() }()
		publisher = producer
		opts = append(opts, checkout.WithPublisher(producer))
	} else {
		logger.Warn("KAFKA_BROKERS not set, order events are not published")
	}

	orchestrator := checkout.New(products, gate, estimator, orderRepo, gateway, cfg.publicBaseURL, logger, opts...)

	server := storefront.NewServer(storefront.Dependencies{
		Carts:         cart.NewSessionRepository(rdb, config.Duration("CART_TTL", cart.DefaultSessionTTL)),
		Catalog:       products,
		Gate:          gate,
		Estimator:     estimator,
		Checkout:      orchestrator,
		Orders:        orderRepo,
		Publisher:     publisher,
		WebhookSecret: cfg.webhookSecret,
		SecureCookies: config.String("SECURE_COOKIES", "false") == "true",
	}, logger)

	mux := http.NewServeMux()
	mux.Handle("/", server.Routes(config.Duration("REQUEST_TIMEOUT", 30*time.Second)))
	mux.Handle("GET /metrics", metricsHandler)

	port := config.String("PORT", "8083")

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      otelhttp.NewHandler(mux, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
	}

	go func() {
		logger.Info("starting storefront service", "port", port, "travel_policy", cfg.travelPolicy)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
