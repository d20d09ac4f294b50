// Package payment applies payment-gateway top-up notifications to the
// ledger and creates checkout intents against the gateway API.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aslakhn/chargebill/internal/apperrors"
	"github.com/aslakhn/chargebill/internal/logger"
	"github.com/aslakhn/chargebill/internal/metrics"
	"github.com/aslakhn/chargebill/internal/models"
	"github.com/aslakhn/chargebill/internal/repository"
)

// Event type the gateway sends when a top-up payment completed
const eventPaymentSucceeded = "payment_intent.succeeded"

type ledgerService interface {
	Credit(ctx context.Context, topup models.TopUp) (models.Balance, error)
}

type Processor struct {
	signingSecret string
	ledger        ledgerService
	userRepo      repository.UserRepo
	logger        logger.Logger
	metrics       *metrics.Metrics

	// Clock, swappable in tests for signature tolerance checks
	now func() time.Time
}

func NewProcessor(signingSecret string, ledger ledgerService, userRepo repository.UserRepo, l logger.Logger, m *metrics.Metrics) *Processor {
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &Processor{
		signingSecret: signingSecret,
		ledger:        ledger,
		userRepo:      userRepo,
		logger:        l,
		metrics:       m,
		now:           time.Now,
	}
}

// event mirrors the gateway's webhook envelope. Amounts are integer
// minor units (øre), hence the division by 100 on application.
type event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Amount   int64             `json:"amount"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// HandleEvent verifies and applies one webhook delivery.
//
// Error contract, driven by the gateway's retry behavior: only a
// signature failure (ErrInvalidSignature), a malformed payload, or a
// genuinely transient failure comes back as an error. Business
// non-matches (unknown event type, unresolvable user, an id credited
// before) are logged and swallowed so the gateway stops redelivering an
// event that will never become processable.
func (p *Processor) HandleEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	if err := VerifySignature(payload, signatureHeader, p.signingSecret, p.now()); err != nil {
		p.metrics.WebhookEvents.WithLabelValues(metrics.OutcomeRejected).Inc()
		return err
	}

	var ev event
	if err := json.Unmarshal(payload, &ev); err != nil {
		p.metrics.WebhookEvents.WithLabelValues(metrics.OutcomeRejected).Inc()
		return fmt.Errorf("%w: malformed event payload: %w", apperrors.ErrInvalidSignature, err)
	}

	if ev.Type != eventPaymentSucceeded {
		p.logger.Info("Ignoring webhook event", "event_id", ev.ID, "type", ev.Type)
		p.metrics.WebhookEvents.WithLabelValues(metrics.OutcomeOK).Inc()
		return nil
	}

	userID, err := p.resolveUser(ctx, ev)
	switch {
	case errors.Is(err, apperrors.ErrUnresolvableTarget):
		// Acknowledged, not retried: the gateway can't fix a missing user
		p.logger.Warn("Webhook for unresolvable user", "event_id", ev.ID, "payment_id", ev.Data.Object.ID, "error", err)
		p.metrics.WebhookEvents.WithLabelValues(metrics.OutcomeOK).Inc()
		return nil
	case err != nil:
		p.metrics.WebhookEvents.WithLabelValues(metrics.OutcomeError).Inc()
		return err
	}

	topup := models.TopUp{
		TransactionID: ev.Data.Object.ID,
		UserID:        userID,
		Amount:        decimal.New(ev.Data.Object.Amount, -2),
	}

	balance, err := p.ledger.Credit(ctx, topup)
	switch {
	case err == nil:
		p.logger.Info("Top-up applied", "user_id", userID, "amount", topup.Amount, "new_balance", balance.Current)
		p.metrics.WebhookEvents.WithLabelValues(metrics.OutcomeOK).Inc()
		return nil
	case errors.Is(err, apperrors.ErrTopUpAlreadyApplied):
		p.logger.Info("Top-up re-delivered, already applied", "transaction_id", topup.TransactionID)
		p.metrics.WebhookEvents.WithLabelValues(metrics.OutcomeOK).Inc()
		return nil
	default:
		p.metrics.WebhookEvents.WithLabelValues(metrics.OutcomeError).Inc()
		return fmt.Errorf("can't apply top-up: %w", err)
	}
}

func (p *Processor) resolveUser(ctx context.Context, ev event) (uuid.UUID, error) {
	raw, ok := ev.Data.Object.Metadata["user_id"]
	if !ok || raw == "" {
		return uuid.Nil, fmt.Errorf("%w: no user_id in event metadata", apperrors.ErrUnresolvableTarget)
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad user_id %q", apperrors.ErrUnresolvableTarget, raw)
	}

	user, err := p.userRepo.GetUserByID(ctx, userID)
	switch {
	case err == nil:
		return user.ID, nil
	case errors.Is(err, apperrors.ErrUserNotFound):
		return uuid.Nil, fmt.Errorf("%w: unknown user %s", apperrors.ErrUnresolvableTarget, userID)
	default:
		return uuid.Nil, err
	}
}
