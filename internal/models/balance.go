package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TransactionTypeCharge = "charge"
	TransactionTypeTopUp  = "topup"
)

type Balance struct {
	UserID  uuid.UUID
	Current decimal.Decimal
}

// Transaction is an audit record of a single balance mutation.
// Reference holds the charging session id for charges and the gateway
// transaction id for top-ups.
type Transaction struct {
	ID          uuid.UUID
	ProcessedAt time.Time
	UserID      uuid.UUID
	Type        string
	Amount      decimal.Decimal
	Reference   string
}

// TopUp is a payment-gateway notification to credit a user's balance.
// TransactionID is gateway assigned and acts as the idempotency key:
// a top-up is applied at most once no matter how often it is delivered.
type TopUp struct {
	TransactionID string
	UserID        uuid.UUID
	Amount        decimal.Decimal
}
