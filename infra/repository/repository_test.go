package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/finwire/backoffice/pkg/domain/ledger"
	"github.com/finwire/backoffice/pkg/domain/money"
	repo "github.com/finwire/backoffice/pkg/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDb.Close() })

	dialector := postgres.New(postgres.Config{
		Conn:       mockDb,
		DriverName: "postgres",
	})
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	return db, mock
}

func accountColumns() []string {
	return []string{"id", "owner_type", "account_type", "currency", "balance",
		"role", "parent_id", "external_address", "active", "created_at", "updated_at"}
}

func TestAccountRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	accRepo := accountRepository{db: db}
	ctx := context.Background()
	id := uuid.New()

	rows := sqlmock.NewRows(accountColumns()).
		AddRow(id, "client", "wire_sepa", "EUR", int64(1_000),
			"", nil, "", true, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT \* FROM "accounts" WHERE id = \$1 ORDER BY "accounts"\."id" LIMIT \$2`).
		WithArgs(id, 1).WillReturnRows(rows)

	acc, err := accRepo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, acc.ID)
	assert.Equal(t, ledger.OwnerClient, acc.OwnerType)
	assert.Equal(t, int64(1_000), acc.Balance.Amount())

	mock.ExpectQuery(`SELECT \* FROM "accounts"`).
		WithArgs(sqlmock.AnyArg(), 1).WillReturnError(gorm.ErrRecordNotFound)
	_, err = accRepo.Get(ctx, uuid.New())
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepository_UpdateBalance(t *testing.T) {
	db, mock := newMockDB(t)
	accRepo := accountRepository{db: db}
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "accounts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, accRepo.UpdateBalance(ctx, id, 2_500))

	// Zero rows affected means the account does not exist.
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "accounts" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	err := accRepo.UpdateBalance(ctx, uuid.New(), 2_500)
	require.ErrorIs(t, err, ledger.ErrAccountNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	txRepo := transactionRepository{db: db}
	ctx := context.Background()

	txid := "ext-1"
	tx := &ledger.Transaction{
		ID:            uuid.New(),
		Type:          ledger.TransactionCrypto,
		OperationID:   uuid.New(),
		Amount:        money.MustFromMinor(10_000, "EUR"),
		FromAccountID: uuid.New(),
		ToAccountID:   uuid.New(),
		Status:        ledger.TransactionPending,
		TxID:          &txid,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "transactions" (.+) VALUES (.+)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, txRepo.Create(ctx, tx))

	// The unique index on the external reference id rejects replays.
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "transactions" (.+) VALUES (.+)`).
		WillReturnError(gorm.ErrDuplicatedKey)
	mock.ExpectRollback()
	err := txRepo.Create(ctx, tx)
	require.ErrorIs(t, err, ledger.ErrDuplicateReference)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepository_SumsForAccount(t *testing.T) {
	db, mock := newMockDB(t)
	txRepo := transactionRepository{db: db}
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(COALESCE\(recipient_amount, amount\)\), 0\) FROM "transactions" WHERE to_account_id = \$1 AND status = \$2`).
		WithArgs(id, "SUCCESSFUL").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(2_200)))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount\), 0\) FROM "transactions" WHERE from_account_id = \$1 AND status = \$2`).
		WithArgs(id, "SUCCESSFUL").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(700)))

	sums, err := txRepo.SumsForAccount(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2_200), sums.Credits)
	assert.Equal(t, int64(700), sums.Debits)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepository_GetForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	opRepo := operationRepository{db: db}
	ctx := context.Background()
	id := uuid.New()

	rows := sqlmock.NewRows([]string{"id", "type", "status", "step",
		"from_account_id", "to_account_id", "amount", "currency", "amount_eur",
		"received_amount", "received_currency", "exchange_rate", "profile_id",
		"created_at", "updated_at"}).
		AddRow(id, "wire_topup", "PENDING", 2, uuid.New(), uuid.New(),
			int64(100_000), "EUR", int64(100_000), nil, nil, nil, uuid.New(),
			time.Now(), time.Now())
	mock.ExpectQuery(`SELECT \* FROM "operations" WHERE id = \$1 ORDER BY "operations"\."id" LIMIT \$2 FOR UPDATE`).
		WithArgs(id, 1).WillReturnRows(rows)

	op, err := opRepo.GetForUpdate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, op.ID)
	assert.Equal(t, 2, op.Step)
	assert.True(t, op.IsPending())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOperationRepository_MonthlySum(t *testing.T) {
	db, mock := newMockDB(t)
	opRepo := operationRepository{db: db}
	ctx := context.Background()
	profileID := uuid.New()
	since := time.Now().AddDate(0, -1, 0)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(amount_eur\), 0\) FROM "operations" WHERE profile_id = \$1 AND created_at >= \$2 AND status <> \$3`).
		WithArgs(profileID, since, "DECLINED").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(400_000)))

	total, err := opRepo.MonthlySum(ctx, profileID, since)
	require.NoError(t, err)
	assert.Equal(t, int64(400_000), total)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUoW_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUoW(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("step failed")
	err := uow.Do(ctx, func(u repo.UnitOfWork) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUoW_NestedDoReusesTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	uow := NewUoW(db)
	ctx := context.Background()

	// One Begin/Commit pair even with a nested Do inside.
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := uow.Do(ctx, func(outer repo.UnitOfWork) error {
		return outer.Do(ctx, func(inner repo.UnitOfWork) error {
			return nil
		})
	})
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}
