package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/aslakhn/chargebill/internal/apperrors"
	"github.com/aslakhn/chargebill/internal/models"
)

type LedgerRepo struct {
	db DBTX
}

func (r *LedgerRepo) CreateBalance(ctx context.Context, userID uuid.UUID) error {
	const createBalance = `
	INSERT INTO balances (user_id, current)
	VALUES ($1, 0)
	`

	_, err := r.db.Exec(ctx, createBalance, userID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("user balance already exists: %w", err)
		}

		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *LedgerRepo) GetBalance(ctx context.Context, userID uuid.UUID) (models.Balance, error) {
	const getBalance = `
	SELECT user_id, current FROM balances
	WHERE user_id = $1
	`

	rows, _ := r.db.Query(ctx, getBalance, userID)
	balance, err := pgx.CollectOneRow(rows, rowToBalance)

	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		return balance, apperrors.ErrUserNotFound
	default:
		return balance, fmt.Errorf("db error: %w", err)
	}
}

// AdjustBalance relies on the row lock the UPDATE takes: concurrent
// mutations of the same user serialize here, different users don't block
// each other.
func (r *LedgerRepo) AdjustBalance(ctx context.Context, userID uuid.UUID, delta decimal.Decimal) (models.Balance, error) {
	const adjustBalance = `
	UPDATE balances
	SET current = current + $2
	WHERE user_id = $1
	RETURNING user_id, current
	`

	rows, _ := r.db.Query(ctx, adjustBalance, userID, delta)
	balance, err := pgx.CollectOneRow(rows, rowToBalance)

	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		return balance, apperrors.ErrUserNotFound
	default:
		return balance, fmt.Errorf("db error: %w", err)
	}
}

// RecordTopUp claims the gateway transaction id. The primary key makes
// the claim race free: of two concurrent deliveries of the same id only
// one insert takes effect, the other reports applied=false.
func (r *LedgerRepo) RecordTopUp(ctx context.Context, topup models.TopUp) (bool, error) {
	const recordTopUp = `
	INSERT INTO topups (transaction_id, user_id, amount)
	VALUES ($1, $2, $3)
	ON CONFLICT (transaction_id) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, recordTopUp, topup.TransactionID, topup.UserID, topup.Amount)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

const recordTransaction = `-- name: RecordTransaction
INSERT INTO transactions (id, user_id, type, amount, reference)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, processed_at, user_id, type, amount, reference
`

func (r *LedgerRepo) RecordTransaction(ctx context.Context, userID uuid.UUID, txType string, amount decimal.Decimal, reference string) (models.Transaction, error) {
	rows, _ := r.db.Query(ctx, recordTransaction, uuid.New(), userID, txType, amount, reference)
	tr, err := pgx.CollectOneRow(rows, rowToTransaction)
	if err != nil {
		return tr, fmt.Errorf("db error: %w", err)
	}

	return tr, nil
}

const listTransactions = `-- name: ListTransactions
SELECT id, processed_at, user_id, type, amount, reference FROM transactions
WHERE user_id = $1
ORDER BY processed_at DESC
`

func (r *LedgerRepo) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.Transaction, error) {
	rows, _ := r.db.Query(ctx, listTransactions, userID)
	trs, err := pgx.CollectRows(rows, rowToTransaction)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return trs, nil
}

func rowToBalance(row pgx.CollectableRow) (models.Balance, error) {
	var b models.Balance
	err := row.Scan(&b.UserID, &b.Current)
	return b, err
}

func rowToTransaction(row pgx.CollectableRow) (models.Transaction, error) {
	var t models.Transaction
	err := row.Scan(&t.ID, &t.ProcessedAt, &t.UserID, &t.Type, &t.Amount, &t.Reference)
	return t, err
}
