package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aslakhn/chargebill/internal/models"
)

// User repository interface
// Users are owned by the external identity service; this mirror exists
// so balances have something to hang off and tests have something to seed
type UserRepo interface {
	// Create user mirror row together with its zero balance
	// If user with username exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string) (models.User, error)

	// Get user by id
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
}

// Ledger repository interface
// The only place a balance is ever read or written
type LedgerRepo interface {
	// Create zero balance for the user
	CreateBalance(ctx context.Context, userID uuid.UUID) error

	// Get balance
	// If user has no balance must return apperrors.ErrUserNotFound
	GetBalance(ctx context.Context, userID uuid.UUID) (models.Balance, error)

	// Add delta to the balance and return the result. Delta may be
	// negative and the balance is allowed to go below zero: start
	// preconditions are checked elsewhere, settlement never clamps.
	// If user has no balance must return apperrors.ErrUserNotFound
	AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (models.Balance, error)

	// Record gateway transaction id. Reports false when the id was
	// recorded before, meaning the credit must not be applied again.
	RecordTopUp(ctx context.Context, topup models.TopUp) (applied bool, err error)

	// Append audit record of a balance mutation
	RecordTransaction(ctx context.Context, userID uuid.UUID, txType string, amount decimal.Decimal, reference string) (models.Transaction, error)

	// List audit records, newest first
	ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error)
}

// Storage aggregates repositories over one database handle.
// InTx runs fn with a Storage bound to a single transaction, so
// check-and-mutate sequences stay atomic.
type Storage interface {
	User() UserRepo
	Ledger() LedgerRepo

	InTx(ctx context.Context, fn func(Storage) error) error
}
