// Package operator talks to the charger-operator API: authentication,
// start/stop commands and session/telemetry queries. It carries no
// business logic; balance and settlement decisions stay with callers.
package operator

import (
	"context"

	"github.com/aslakhn/chargebill/internal/models"
)

// API is the operator contract. Two implementations exist: the live
// Client and the Simulator used in tests and local development.
type API interface {
	// StartCharging and StopCharging issue the command and report the
	// operator's accept/reject. Neither retries: retry policy belongs
	// to the caller.
	StartCharging(ctx context.Context, chargerID string) error
	StopCharging(ctx context.Context, chargerID string) error

	// OngoingSession returns the active session snapshot, or (nil, nil)
	// when the operator reports no active session. "No session" is a
	// normal state, not a failure.
	OngoingSession(ctx context.Context, chargerID string) (*models.Session, error)

	// LatestSession returns the most recently finished session,
	// used to settle right after a stop
	LatestSession(ctx context.Context, chargerID string) (*models.Session, error)

	// ChargerState returns the free-form telemetry document
	ChargerState(ctx context.Context, chargerID string) (models.ChargerState, error)

	// Chargers lists chargers visible to the configured account
	Chargers(ctx context.Context) ([]models.Charger, error)
}
