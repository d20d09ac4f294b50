package payment

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aslakhn/chargebill/internal/apperrors"
	"github.com/aslakhn/chargebill/internal/models"
)

type creditCall struct {
	topup models.TopUp
}

// fakeCreditLedger records credits and remembers seen transaction ids
type fakeCreditLedger struct {
	calls   []creditCall
	seen    map[string]bool
	failErr error
}

func (l *fakeCreditLedger) Credit(_ context.Context, topup models.TopUp) (models.Balance, error) {
	if l.failErr != nil {
		return models.Balance{}, l.failErr
	}
	if l.seen == nil {
		l.seen = map[string]bool{}
	}
	if l.seen[topup.TransactionID] {
		return models.Balance{}, apperrors.ErrTopUpAlreadyApplied
	}
	l.seen[topup.TransactionID] = true
	l.calls = append(l.calls, creditCall{topup: topup})
	return models.Balance{UserID: topup.UserID, Current: topup.Amount}, nil
}

type fakeUserRepo struct {
	user models.User
}

func (r *fakeUserRepo) CreateUser(_ context.Context, _ string) (models.User, error) {
	panic("not used")
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, userID uuid.UUID) (models.User, error) {
	if userID != r.user.ID {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return r.user, nil
}

const testSigningSecret = "whsec_test"

func newProcessor(t *testing.T, ledger *fakeCreditLedger, userID uuid.UUID, now time.Time) *Processor {
	t.Helper()

	p := NewProcessor(testSigningSecret, ledger, &fakeUserRepo{user: models.User{ID: userID, Username: "nk"}}, nil, nil)
	p.now = func() time.Time { return now }
	return p
}

func succeededEvent(paymentID string, amountMinor int64, userID string) []byte {
	return fmt.Appendf(nil, `{
		"id": "evt_1",
		"type": "payment_intent.succeeded",
		"data": {"object": {"id": %q, "amount": %d, "metadata": {"user_id": %q}}}
	}`, paymentID, amountMinor, userID)
}

func TestProcessor_HandleEvent(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	userID := uuid.New()

	sign := func(payload []byte) string {
		return SignPayload(payload, testSigningSecret, now)
	}

	t.Run("credits the user", func(t *testing.T) {
		ledger := &fakeCreditLedger{}
		p := newProcessor(t, ledger, userID, now)
		payload := succeededEvent("pi_100", 10000, userID.String())

		err := p.HandleEvent(t.Context(), payload, sign(payload))

		require.NoError(t, err)
		require.Len(t, ledger.calls, 1)
		topup := ledger.calls[0].topup
		assert.Equal(t, "pi_100", topup.TransactionID)
		assert.Equal(t, userID, topup.UserID)
		// 10000 øre = 100.00
		assert.True(t, topup.Amount.Equal(decimal.RequireFromString("100.00")),
			"want 100.00, got %s", topup.Amount)
	})

	t.Run("invalid signature returns error", func(t *testing.T) {
		ledger := &fakeCreditLedger{}
		p := newProcessor(t, ledger, userID, now)
		payload := succeededEvent("pi_100", 10000, userID.String())

		err := p.HandleEvent(t.Context(), payload, SignPayload(payload, "whsec_wrong", now))

		assert.ErrorIs(t, err, apperrors.ErrInvalidSignature)
		assert.Empty(t, ledger.calls)
	})

	t.Run("malformed payload returns error", func(t *testing.T) {
		ledger := &fakeCreditLedger{}
		p := newProcessor(t, ledger, userID, now)
		payload := []byte(`{"id": "evt_1", "type": 42`)

		err := p.HandleEvent(t.Context(), payload, sign(payload))

		require.Error(t, err)
		assert.Empty(t, ledger.calls)
	})

	t.Run("unrelated event type acknowledged", func(t *testing.T) {
		ledger := &fakeCreditLedger{}
		p := newProcessor(t, ledger, userID, now)
		payload := []byte(`{"id": "evt_2", "type": "payment_intent.created", "data": {"object": {"id": "pi_1"}}}`)

		err := p.HandleEvent(t.Context(), payload, sign(payload))

		require.NoError(t, err, "unrelated events are acknowledged, not retried")
		assert.Empty(t, ledger.calls)
	})

	t.Run("unknown user acknowledged without credit", func(t *testing.T) {
		ledger := &fakeCreditLedger{}
		p := newProcessor(t, ledger, userID, now)
		payload := succeededEvent("pi_100", 10000, uuid.NewString())

		err := p.HandleEvent(t.Context(), payload, sign(payload))

		require.NoError(t, err, "a missing user never becomes processable, no point retrying")
		assert.Empty(t, ledger.calls)
	})

	t.Run("missing user metadata acknowledged without credit", func(t *testing.T) {
		ledger := &fakeCreditLedger{}
		p := newProcessor(t, ledger, userID, now)
		payload := []byte(`{
			"id": "evt_3",
			"type": "payment_intent.succeeded",
			"data": {"object": {"id": "pi_1", "amount": 5000, "metadata": {}}}
		}`)

		err := p.HandleEvent(t.Context(), payload, sign(payload))

		require.NoError(t, err)
		assert.Empty(t, ledger.calls)
	})

	t.Run("duplicate delivery acknowledged once applied", func(t *testing.T) {
		ledger := &fakeCreditLedger{}
		p := newProcessor(t, ledger, userID, now)
		payload := succeededEvent("pi_dup", 10000, userID.String())

		require.NoError(t, p.HandleEvent(t.Context(), payload, sign(payload)))
		err := p.HandleEvent(t.Context(), payload, sign(payload))

		require.NoError(t, err, "redelivery of an applied top-up is acknowledged")
		assert.Len(t, ledger.calls, 1, "balance credited exactly once")
	})

	t.Run("transient ledger failure returned for retry", func(t *testing.T) {
		ledger := &fakeCreditLedger{failErr: errors.New("connection reset")}
		p := newProcessor(t, ledger, userID, now)
		payload := succeededEvent("pi_100", 10000, userID.String())

		err := p.HandleEvent(t.Context(), payload, sign(payload))

		require.Error(t, err, "transient failures must surface so the gateway redelivers")
		assert.NotErrorIs(t, err, apperrors.ErrInvalidSignature)
	})
}
