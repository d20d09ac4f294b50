package operator

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aslakhn/chargebill/internal/models"
)

const defaultSimulatedPowerKW = 7.4

// SimulatorConfig describes the simulated installation
type SimulatorConfig struct {
	// Chargers visible to the account
	Chargers []models.Charger

	// Power draw of a charging session in kW
	PowerKW float64

	// Price per kWh the simulated operator reports on its sessions.
	// Left nil the sessions carry no price, exercising the configured
	// fallback price downstream.
	PricePerKWh *decimal.Decimal

	// Clock, settable for deterministic tests
	Now func() time.Time
}

// Simulator is an in-process stand-in for the operator API. All state
// is owned by the instance, so simulators can run in parallel tests
// without seeing each other.
type Simulator struct {
	cfg SimulatorConfig

	mu            sync.Mutex
	nextSessionID int64
	active        map[string]*models.Session
	finished      map[string]*models.Session
}

func NewSimulator(cfg SimulatorConfig) *Simulator {
	if cfg.PowerKW == 0 {
		cfg.PowerKW = defaultSimulatedPowerKW
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Simulator{
		cfg:           cfg,
		nextSessionID: 1,
		active:        make(map[string]*models.Session),
		finished:      make(map[string]*models.Session),
	}
}

func (s *Simulator) StartCharging(_ context.Context, chargerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := &models.Session{
		ChargerID:    chargerID,
		SessionID:    s.nextSessionID,
		SessionStart: s.cfg.Now(),
		PricePerKWh:  s.cfg.PricePerKWh,
	}
	s.nextSessionID++
	s.active[chargerID] = session

	return nil
}

func (s *Simulator) StopCharging(_ context.Context, chargerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.active[chargerID]
	if !ok {
		return nil
	}

	now := s.cfg.Now()
	session.SessionEnd = &now
	session.Energy = s.energySince(session.SessionStart, now)
	delete(s.active, chargerID)
	s.finished[chargerID] = session

	return nil
}

func (s *Simulator) OngoingSession(_ context.Context, chargerID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.active[chargerID]
	if !ok {
		return nil, nil
	}

	snapshot := *session
	snapshot.Energy = s.energySince(session.SessionStart, s.cfg.Now())
	return &snapshot, nil
}

func (s *Simulator) LatestSession(_ context.Context, chargerID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.finished[chargerID]
	if !ok {
		return nil, nil
	}

	snapshot := *session
	return &snapshot, nil
}

func (s *Simulator) ChargerState(_ context.Context, chargerID string) (models.ChargerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	power := 0.0
	if _, ok := s.active[chargerID]; ok {
		power = s.cfg.PowerKW
	}

	return models.ChargerState{"totalChargerPower": power}, nil
}

func (s *Simulator) Chargers(_ context.Context) ([]models.Charger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chargers := make([]models.Charger, len(s.cfg.Chargers))
	copy(chargers, s.cfg.Chargers)
	return chargers, nil
}

// energy = power draw × elapsed hours
func (s *Simulator) energySince(start time.Time, now time.Time) decimal.Decimal {
	hours := decimal.NewFromFloat(now.Sub(start).Hours())
	return decimal.NewFromFloat(s.cfg.PowerKW).Mul(hours).Round(4)
}
