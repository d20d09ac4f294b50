package ledger

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aslakhn/chargebill/internal/apperrors"
	"github.com/aslakhn/chargebill/internal/models"
	"github.com/aslakhn/chargebill/internal/repository/postgres"
	"github.com/aslakhn/chargebill/internal/testutil"
)

func TestService(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	storage := postgres.NewStorage(pg.Pool)
	service := NewService(storage, nil)

	newUser := func(t *testing.T, username string) models.User {
		t.Helper()
		user, err := storage.User().CreateUser(t.Context(), username)
		require.NoError(t, err)
		return user
	}

	t.Run("debit moves balance and leaves audit trail", func(t *testing.T) {
		user := newUser(t, "debit-user")
		_, err := storage.Ledger().AdjustBalance(t.Context(), user.ID, decimal.RequireFromString("50.00"))
		require.NoError(t, err)

		balance, err := service.Debit(t.Context(), user.ID, decimal.RequireFromString("24.00"), "42")

		require.NoError(t, err)
		assert.True(t, balance.Current.Equal(decimal.RequireFromString("26.00")),
			"want 26.00, got %s", balance.Current)

		transactions, err := storage.Ledger().ListTransactions(t.Context(), user.ID)
		require.NoError(t, err)
		require.Len(t, transactions, 1)
		assert.Equal(t, models.TransactionTypeCharge, transactions[0].Type)
		assert.Equal(t, "42", transactions[0].Reference)
		assert.True(t, transactions[0].Amount.Equal(decimal.RequireFromString("24.00")))
	})

	t.Run("credit applies top-up with audit trail", func(t *testing.T) {
		user := newUser(t, "credit-user")

		balance, err := service.Credit(t.Context(), models.TopUp{
			TransactionID: "pi_credit",
			UserID:        user.ID,
			Amount:        decimal.RequireFromString("100.00"),
		})

		require.NoError(t, err)
		assert.True(t, balance.Current.Equal(decimal.RequireFromString("100.00")))

		transactions, err := storage.Ledger().ListTransactions(t.Context(), user.ID)
		require.NoError(t, err)
		require.Len(t, transactions, 1)
		assert.Equal(t, models.TransactionTypeTopUp, transactions[0].Type)
		assert.Equal(t, "pi_credit", transactions[0].Reference)
	})

	t.Run("duplicate credit not applied", func(t *testing.T) {
		user := newUser(t, "duplicate-credit-user")
		topup := models.TopUp{
			TransactionID: "pi_dup",
			UserID:        user.ID,
			Amount:        decimal.RequireFromString("100.00"),
		}

		_, err := service.Credit(t.Context(), topup)
		require.NoError(t, err)

		_, err = service.Credit(t.Context(), topup)
		assert.ErrorIs(t, err, apperrors.ErrTopUpAlreadyApplied)

		balance, err := service.GetBalance(t.Context(), user.ID)
		require.NoError(t, err)
		assert.True(t, balance.Current.Equal(decimal.RequireFromString("100.00")),
			"balance must be credited exactly once, got %s", balance.Current)
	})

	t.Run("concurrent duplicate deliveries credit once", func(t *testing.T) {
		user := newUser(t, "concurrent-credit-user")
		topup := models.TopUp{
			TransactionID: "pi_race",
			UserID:        user.ID,
			Amount:        decimal.RequireFromString("100.00"),
		}

		var applied atomic.Int64
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := service.Credit(t.Context(), topup)
				switch {
				case err == nil:
					applied.Add(1)
				default:
					assert.ErrorIs(t, err, apperrors.ErrTopUpAlreadyApplied)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int64(1), applied.Load(), "exactly one delivery should apply")

		balance, err := service.GetBalance(t.Context(), user.ID)
		require.NoError(t, err)
		assert.True(t, balance.Current.Equal(decimal.RequireFromString("100.00")),
			"want a single 100.00 credit, got %s", balance.Current)
	})

	t.Run("failed mutation leaves no partial state", func(t *testing.T) {
		user := newUser(t, "rollback-user")

		// Credit for an unknown user fails mid-transaction, after the
		// gateway transaction id was claimed
		unknown := models.TopUp{
			TransactionID: "pi_rollback",
			UserID:        uuid.New(),
			Amount:        decimal.RequireFromString("100.00"),
		}
		_, err := service.Credit(t.Context(), unknown)
		require.Error(t, err)

		// The claim must have rolled back with the rest: the same id
		// targeting a real user applies cleanly
		retry := models.TopUp{
			TransactionID: "pi_rollback",
			UserID:        user.ID,
			Amount:        decimal.RequireFromString("100.00"),
		}
		_, err = service.Credit(t.Context(), retry)
		require.NoError(t, err, "claimed id must be released when the credit rolls back")
	})
}
