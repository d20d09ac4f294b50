package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session is a snapshot of one charging episode as reported by the
// operator API. The operator owns the record; nothing here is persisted
// locally. An ongoing session has no end timestamp yet.
type Session struct {
	ChargerID    string
	SessionID    int64
	SessionStart time.Time
	SessionEnd   *time.Time

	// Energy transferred so far in kWh, monotonically non-decreasing
	// while the session is ongoing
	Energy decimal.Decimal

	// Price per kWh including VAT. The operator may omit it until
	// pricing for the session is finalized.
	PricePerKWh *decimal.Decimal

	// Cost as computed by the operator, if any
	Cost *decimal.Decimal
}

func (s *Session) Ongoing() bool {
	return s.SessionEnd == nil
}
