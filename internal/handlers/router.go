package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aslakhn/chargebill/internal/handlers/middleware"
	"github.com/aslakhn/chargebill/internal/logger"
	"github.com/aslakhn/chargebill/internal/models"
	"github.com/aslakhn/chargebill/internal/service/charge"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	chargeService chargeService,
	balanceService balanceService,
	webhookProcessor webhookProcessor,
	gateway paymentGateway,
	authService authService,
	metricsHandler http.Handler,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	api := http.NewServeMux()

	api.Handle("POST /charge/start", withAuth(handleChargeStart(chargeService, logger)))
	api.Handle("POST /charge/stop", withAuth(handleChargeStop(chargeService, logger)))
	api.Handle("GET /charge/status/{chargerID}", withAuth(handleChargeStatus(chargeService, logger)))
	api.Handle("GET /charge/chargers", withAuth(handleListChargers(chargeService, logger)))
	api.Handle("GET /balance", withAuth(handleBalance(balanceService, logger)))

	api.Handle("POST /payments/intent", withAuth(handleCreateIntent(gateway, logger)))
	api.Handle("POST /payments/webhook", handleWebhook(webhookProcessor, logger))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	if metricsHandler != nil {
		root.Handle("GET /metrics", metricsHandler)
	}

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type chargeService interface {
	// Start charging for user on charger
	// Has to return apperrors.ErrBalanceInsufficient when balance isn't positive
	// and apperrors.ErrCommandFailed when the operator rejects
	Start(ctx context.Context, userID uuid.UUID, chargerID string) error

	// Stop charging and settle. An unsettled stop is not an error:
	// result.Settled reports whether money moved.
	Stop(ctx context.Context, userID uuid.UUID, chargerID string) (charge.StopResult, error)

	// Live projection of the ongoing session onto the balance
	GetStatus(ctx context.Context, userID uuid.UUID, chargerID string) (charge.Status, error)

	ListChargers(ctx context.Context) ([]models.Charger, error)
}

type balanceService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (models.Balance, error)
}

type webhookProcessor interface {
	// Has to return apperrors.ErrInvalidSignature for deliveries that
	// must be rejected with 400; any other error means retry later
	HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error
}

type paymentGateway interface {
	CreatePaymentIntent(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (string, error)
}

type authService interface {
	// Get request and return user if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.User, error)
}
