package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/segyhp/loan-tracker/internal/config"
	"github.com/segyhp/loan-tracker/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const integrationSchema = "loan_tracker_test"

// newPostgresDB connects to DATABASE_URL and points the session at a
// throwaway schema. Tests using it are skipped when no database is set.
func newPostgresDB(t *testing.T) *sqlx.DB {
	t.Helper()

	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping Postgres integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	require.NoError(t, err)

	// search_path is per session, so pin the pool to one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, err = db.Exec(`DROP SCHEMA IF EXISTS ` + integrationSchema + ` CASCADE`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE SCHEMA ` + integrationSchema)
	require.NoError(t, err)
	_, err = db.Exec(`SET search_path TO ` + integrationSchema)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Exec(`DROP SCHEMA IF EXISTS ` + integrationSchema + ` CASCADE`)
		db.Close()
	})

	return db
}

func countPayments(t *testing.T, db *sqlx.DB, query string, args ...interface{}) int {
	t.Helper()

	var n int
	require.NoError(t, db.Get(&n, query, args...))
	return n
}

func TestPostgres_PaymentsAndSettledDelete(t *testing.T) {
	db := newPostgresDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Migrate runs on every deploy.
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, Migrate(ctx, db))

	loans := NewLoanRepository(db)
	payments := NewPaymentRepository(db)
	today := domain.NewDate(time.Now())

	loan := &domain.Loan{
		BorrowerID: "B-100",
		Borrower:   "Integration Borrower",
		Amount:     decimal.NewFromInt(1000),
		Interest:   decimal.NewFromInt(10),
		Weeks:      2,
		StartDate:  today,
	}
	require.NoError(t, loans.Create(ctx, loan))
	require.NotZero(t, loan.ID)

	t.Run("a week is recorded once", func(t *testing.T) {
		first := &domain.Payment{LoanID: loan.ID, Week: 1, Amount: decimal.NewFromInt(550), PaymentDate: today}
		created, err := payments.CreateIfAbsent(ctx, first)
		require.NoError(t, err)
		assert.True(t, created)

		retry := &domain.Payment{LoanID: loan.ID, Week: 1, Amount: decimal.NewFromInt(999), PaymentDate: today}
		created, err = payments.CreateIfAbsent(ctx, retry)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, retry.ID)
		assert.True(t, first.Amount.Equal(retry.Amount), "stored amount %s", retry.Amount)

		assert.Equal(t, 1, countPayments(t, db, `SELECT COUNT(*) FROM payments WHERE loan_id = $1 AND week = $2`, loan.ID, 1))
	})

	t.Run("partially paid loan is kept", func(t *testing.T) {
		deleted, err := loans.DeleteSettled(ctx, loan.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = loans.GetByID(ctx, loan.ID)
		assert.NoError(t, err)
	})

	t.Run("completed loan is deleted with its payments", func(t *testing.T) {
		_, err := payments.CreateIfAbsent(ctx, &domain.Payment{LoanID: loan.ID, Week: 2, Amount: decimal.NewFromInt(550), PaymentDate: today})
		require.NoError(t, err)

		deleted, err := loans.DeleteSettled(ctx, loan.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		assert.Equal(t, 0, countPayments(t, db, `SELECT COUNT(*) FROM payments WHERE loan_id = $1`, loan.ID))
	})

	t.Run("missing loan is not deleted", func(t *testing.T) {
		deleted, err := loans.DeleteSettled(ctx, loan.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("payment for a deleted loan is a reference error", func(t *testing.T) {
		_, err := payments.CreateIfAbsent(ctx, &domain.Payment{LoanID: loan.ID, Week: 1, Amount: decimal.NewFromInt(550), PaymentDate: today})
		assert.True(t, errors.Is(err, ErrLoanReference), "got %v", err)
	})

	t.Run("unpaid loan is deleted", func(t *testing.T) {
		fresh := &domain.Loan{
			BorrowerID: "B-101",
			Borrower:   "Unpaid Borrower",
			Amount:     decimal.NewFromInt(500),
			Interest:   decimal.Zero,
			Weeks:      4,
			StartDate:  today,
		}
		require.NoError(t, loans.Create(ctx, fresh))

		deleted, err := loans.DeleteSettled(ctx, fresh.ID)
		require.NoError(t, err)
		assert.True(t, deleted)
	})

	t.Run("values outside the columns are rejected", func(t *testing.T) {
		tooLarge := &domain.Loan{
			BorrowerID: "B-102",
			Borrower:   "Overflow Borrower",
			Amount:     decimal.RequireFromString("10000000000"),
			Interest:   decimal.NewFromInt(5),
			Weeks:      10,
			StartDate:  today,
		}
		err := loans.Create(ctx, tooLarge)
		assert.True(t, errors.Is(err, ErrValueRejected), "got %v", err)
	})
}
