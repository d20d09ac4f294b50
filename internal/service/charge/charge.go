// Package charge orchestrates charging sessions: start preconditions,
// command dispatch, and settling finished sessions against the ledger.
// No state machine object lives here; the operator's session record is
// the state, every call is one request/response cycle against it.
package charge

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aslakhn/chargebill/internal/apperrors"
	"github.com/aslakhn/chargebill/internal/logger"
	"github.com/aslakhn/chargebill/internal/metrics"
	"github.com/aslakhn/chargebill/internal/models"
	"github.com/aslakhn/chargebill/internal/repository"
	"github.com/aslakhn/chargebill/internal/service/billing"
	"github.com/aslakhn/chargebill/internal/service/operator"
)

type ledgerService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (models.Balance, error)
	Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (models.Balance, error)
}

type Service struct {
	operator    operator.API
	ledger      ledgerService
	userRepo    repository.UserRepo
	pricePerKWh decimal.Decimal
	logger      logger.Logger
	metrics     *metrics.Metrics
}

func NewService(op operator.API, ledger ledgerService, userRepo repository.UserRepo, pricePerKWh decimal.Decimal, l logger.Logger, m *metrics.Metrics) *Service {
	if l == nil {
		l = logger.NewNoOpLogger()
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &Service{
		operator:    op,
		ledger:      ledger,
		userRepo:    userRepo,
		pricePerKWh: pricePerKWh,
		logger:      l,
		metrics:     m,
	}
}

// Start begins a charging session. A strictly positive balance is
// required: a user sitting at exactly zero can't start. Nothing is
// debited here, money moves only at settlement.
func (s *Service) Start(ctx context.Context, userID uuid.UUID, chargerID string) error {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	balance, err := s.ledger.GetBalance(ctx, user.ID)
	if err != nil {
		return err
	}
	if balance.Current.Sign() <= 0 {
		return apperrors.ErrBalanceInsufficient
	}

	if err := s.operator.StartCharging(ctx, chargerID); err != nil {
		s.metrics.Commands.WithLabelValues("start", metrics.OutcomeError).Inc()
		return err
	}
	s.metrics.Commands.WithLabelValues("start", metrics.OutcomeOK).Inc()

	s.logger.Info("Charging started", "user_id", user.ID, "charger_id", chargerID)
	return nil
}

type StopResult struct {
	// Settled reports whether a session was found and billed.
	// When false the stop still happened; settlement is pending.
	Settled    bool
	Cost       decimal.Decimal
	NewBalance decimal.Decimal
}

// Stop halts charging and settles the finished session. The stop
// command is issued no matter what the pre-stop session snapshot said:
// hardware that may be drawing power takes precedence over billing.
// A session that can't be read back downgrades to a pending settlement,
// never to a failed stop.
func (s *Service) Stop(ctx context.Context, userID uuid.UUID, chargerID string) (StopResult, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return StopResult{}, err
	}

	// Best-effort snapshot before the session disappears from the
	// ongoing endpoint. snapshotErr matters later: an errored fetch and
	// an absent session settle differently.
	snapshot, snapshotErr := s.operator.OngoingSession(ctx, chargerID)
	if snapshotErr != nil {
		s.logger.Warn("Pre-stop session snapshot failed, stopping anyway", "charger_id", chargerID, "error", snapshotErr)
	}

	if err := s.operator.StopCharging(ctx, chargerID); err != nil {
		s.metrics.Commands.WithLabelValues("stop", metrics.OutcomeError).Inc()
		return StopResult{}, err
	}
	s.metrics.Commands.WithLabelValues("stop", metrics.OutcomeOK).Inc()

	session := s.settlementSession(ctx, chargerID, snapshot, snapshotErr)
	if session == nil {
		s.metrics.PendingSettlements.Inc()
		s.logger.Warn("No session to settle after stop", "user_id", user.ID, "charger_id", chargerID)
		return StopResult{Settled: false}, nil
	}

	cost := billing.Cost(session, s.pricePerKWh)
	balance, err := s.ledger.Debit(ctx, user.ID, cost, strconv.FormatInt(session.SessionID, 10))
	if err != nil {
		return StopResult{}, fmt.Errorf("stop succeeded but settlement failed: %w", err)
	}
	s.metrics.SettledSessions.Inc()

	s.logger.Info("Session settled",
		"user_id", user.ID,
		"charger_id", chargerID,
		"session_id", session.SessionID,
		"energy_kwh", session.Energy,
		"cost", cost,
		"new_balance", balance.Current,
	)

	return StopResult{Settled: true, Cost: cost, NewBalance: balance.Current}, nil
}

// settlementSession picks the session to bill after a successful stop.
//
// The pre-stop snapshot slightly undercounts energy, so the finalized
// record is preferred when the operator exposes one for the same
// session. The latest-session lookup is trusted on its own only when
// the snapshot fetch errored: if the snapshot legitimately said "no
// active session", the latest record belongs to an episode that was
// settled before and must not be billed again.
func (s *Service) settlementSession(ctx context.Context, chargerID string, snapshot *models.Session, snapshotErr error) *models.Session {
	latest, err := s.operator.LatestSession(ctx, chargerID)
	if err != nil {
		s.logger.Warn("Post-stop session lookup failed", "charger_id", chargerID, "error", err)
		latest = nil
	}

	switch {
	case snapshot != nil:
		if latest != nil && latest.SessionID == snapshot.SessionID {
			return latest
		}
		return snapshot
	case snapshotErr != nil:
		return latest
	default:
		// Snapshot said no active session: nothing to bill
		return nil
	}
}

type Status struct {
	Charging         bool
	EnergyConsumed   decimal.Decimal
	LiveCost         decimal.Decimal
	RemainingBalance decimal.Decimal
	PowerKW          float64
}

// GetStatus projects the live session onto the balance for display.
// Nothing is debited: the remaining balance shown here may differ from
// the final settlement and may even dip below zero on screen.
func (s *Service) GetStatus(ctx context.Context, userID uuid.UUID, chargerID string) (Status, error) {
	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return Status{}, err
	}

	session, err := s.operator.OngoingSession(ctx, chargerID)
	if err != nil {
		return Status{}, err
	}

	status := Status{RemainingBalance: balance.Current}
	if session == nil {
		return status, nil
	}

	state, err := s.operator.ChargerState(ctx, chargerID)
	if err != nil {
		// Telemetry is nice to have, the projection works without it
		s.logger.Warn("Charger state fetch failed", "charger_id", chargerID, "error", err)
		state = models.ChargerState{}
	}

	liveCost := billing.Cost(session, s.pricePerKWh)
	status.Charging = true
	status.EnergyConsumed = session.Energy
	status.LiveCost = liveCost
	status.RemainingBalance = balance.Current.Sub(liveCost)
	status.PowerKW = state.Power()

	return status, nil
}

func (s *Service) ListChargers(ctx context.Context) ([]models.Charger, error) {
	return s.operator.Chargers(ctx)
}
