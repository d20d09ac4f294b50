package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/aslakhn/chargebill/internal/db"
	"github.com/aslakhn/chargebill/internal/handlers"
	"github.com/aslakhn/chargebill/internal/logger"
	"github.com/aslakhn/chargebill/internal/metrics"
	"github.com/aslakhn/chargebill/internal/models"
	"github.com/aslakhn/chargebill/internal/repository/postgres"
	"github.com/aslakhn/chargebill/internal/service/auth"
	"github.com/aslakhn/chargebill/internal/service/charge"
	"github.com/aslakhn/chargebill/internal/service/ledger"
	"github.com/aslakhn/chargebill/internal/service/operator"
	"github.com/aslakhn/chargebill/internal/service/payment"
)

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	pricePerKWh, err := decimal.NewFromString(c.PricePerKWh)
	if err != nil {
		return nil, fmt.Errorf("invalid price per kWh %q: %w", c.PricePerKWh, err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	// Initialize repositories
	storage := postgres.NewStorage(pool)

	// Metrics registry owned by the app, not the package-global one
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	// Initialize services
	ledgerService := ledger.NewService(storage, logger)

	var operatorAPI operator.API
	if c.OperatorSimulated {
		operatorAPI = operator.NewSimulator(operator.SimulatorConfig{
			Chargers: []models.Charger{
				{ID: "SIM-001", Name: "Garage left"},
				{ID: "SIM-002", Name: "Garage right"},
			},
		})
	} else {
		operatorAPI = operator.NewClient(operator.Config{
			AuthBaseURL: c.OperatorAuthAddr,
			APIBaseURL:  c.OperatorAPIAddr,
			Username:    c.OperatorUsername,
			Password:    c.OperatorPassword,
		}, logger)
	}

	chargeService := charge.NewService(operatorAPI, ledgerService, storage.User(), pricePerKWh, logger, m)

	webhookProcessor := payment.NewProcessor(c.WebhookSigningSecret, ledgerService, storage.User(), logger, m)
	gateway := payment.NewGatewayClient(payment.GatewayConfig{
		BaseURL:   c.GatewayAddr,
		SecretKey: c.GatewaySecretKey,
		Currency:  c.Currency,
	})

	authService, err := auth.NewService(c.SecretKey, storage.User())
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	mux := handlers.NewRouter(
		chargeService,
		ledgerService,
		webhookProcessor,
		gateway,
		authService,
		metricsHandler,
		logger,
	)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    mux,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); err == context.DeadlineExceeded {
			slog.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		slog.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	slog.Info("Starting server")
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
