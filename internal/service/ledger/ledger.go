// Package ledger is the single authority over user balances. Every
// debit and credit in the system goes through here and nowhere else.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aslakhn/chargebill/internal/apperrors"
	"github.com/aslakhn/chargebill/internal/logger"
	"github.com/aslakhn/chargebill/internal/models"
	"github.com/aslakhn/chargebill/internal/repository"
)

type Service struct {
	storage repository.Storage
	logger  logger.Logger
}

func NewService(storage repository.Storage, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		storage: storage,
		logger:  l,
	}
}

func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (models.Balance, error) {
	return s.storage.Ledger().GetBalance(ctx, userID)
}

// Debit subtracts amount from the user's balance and records the audit
// row in one transaction. There is no floor: whether charging was
// allowed to happen was decided at start, a finished session is always
// settled in full.
func (s *Service) Debit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, reference string) (models.Balance, error) {
	var balance models.Balance

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		var err error
		balance, err = st.Ledger().AdjustBalance(ctx, userID, amount.Neg())
		if err != nil {
			return err
		}

		_, err = st.Ledger().RecordTransaction(ctx, userID, models.TransactionTypeCharge, amount, reference)
		return err
	})
	if err != nil {
		return balance, fmt.Errorf("can't debit balance: %w", err)
	}

	s.logger.Info("Balance debited", "user_id", userID, "amount", amount, "reference", reference)
	return balance, nil
}

// Credit adds the top-up amount to the user's balance exactly once per
// gateway transaction id. Claiming the id and mutating the balance
// happen in the same transaction, so a crash or a concurrent delivery
// can't split them into a double credit.
// Returns apperrors.ErrTopUpAlreadyApplied when the id was seen before.
func (s *Service) Credit(ctx context.Context, topup models.TopUp) (models.Balance, error) {
	var balance models.Balance

	err := s.storage.InTx(ctx, func(st repository.Storage) error {
		applied, err := st.Ledger().RecordTopUp(ctx, topup)
		if err != nil {
			return err
		}
		if !applied {
			return apperrors.ErrTopUpAlreadyApplied
		}

		balance, err = st.Ledger().AdjustBalance(ctx, topup.UserID, topup.Amount)
		if err != nil {
			return err
		}

		_, err = st.Ledger().RecordTransaction(ctx, topup.UserID, models.TransactionTypeTopUp, topup.Amount, topup.TransactionID)
		return err
	})
	if err != nil {
		return balance, fmt.Errorf("can't credit balance: %w", err)
	}

	s.logger.Info("Balance credited", "user_id", topup.UserID, "amount", topup.Amount, "transaction_id", topup.TransactionID)
	return balance, nil
}
