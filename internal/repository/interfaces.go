package repository

import (
	"context"
	"errors"

	"github.com/segyhp/loan-tracker/internal/domain"
)

// ErrLoanReference is returned when a write references a loan that does not
// exist (foreign key violation).
var ErrLoanReference = errors.New("referenced loan does not exist")

// ErrValueRejected is returned when Postgres rejects a value through a CHECK
// constraint or a numeric overflow.
var ErrValueRejected = errors.New("value rejected by the database")

// LoanRepository defines the interface for loan data operations.
// Lookups by id return sql.ErrNoRows when the loan is absent.
type LoanRepository interface {
	// Create inserts a loan and fills in its id and timestamps
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan by its id
	GetByID(ctx context.Context, id int64) (*domain.Loan, error)

	// List returns all loans, newest first
	List(ctx context.Context) ([]*domain.Loan, error)

	// Update writes every mutable field of the loan and refreshes updated_at
	Update(ctx context.Context, loan *domain.Loan) error

	// DeleteSettled deletes the loan only if it has no payments or is fully
	// paid, in a single statement. It reports whether a row was deleted.
	DeleteSettled(ctx context.Context, id int64) (bool, error)

	// GetSummary returns the loan with its paid-week count and total paid
	GetSummary(ctx context.Context, id int64) (*domain.LoanSummary, error)

	// ListSummaries returns every loan with its paid-week count and total paid
	ListSummaries(ctx context.Context) ([]*domain.LoanSummary, error)

	// ListSummariesByBorrowerID returns one borrower's loans with payment totals
	ListSummariesByBorrowerID(ctx context.Context, borrowerID string) ([]*domain.LoanSummary, error)

	// Ping checks database connectivity
	Ping(ctx context.Context) error
}

// PaymentRepository defines the interface for payment data operations
type PaymentRepository interface {
	// CreateIfAbsent inserts the payment unless one exists for its
	// (loan, week); in that case payment is overwritten with the stored row.
	// It reports whether a new row was inserted.
	CreateIfAbsent(ctx context.Context, payment *domain.Payment) (bool, error)

	// GetByLoanAndWeek retrieves the payment for one week of a loan
	GetByLoanAndWeek(ctx context.Context, loanID int64, week int) (*domain.Payment, error)

	// List returns all payments
	List(ctx context.Context) ([]*domain.Payment, error)

	// ListByLoanIDs returns the payments of the given loans ordered by loan and week
	ListByLoanIDs(ctx context.Context, loanIDs []int64) ([]*domain.Payment, error)

	// MaxWeek returns the highest paid week of a loan, or 0
	MaxWeek(ctx context.Context, loanID int64) (int, error)

	// Delete removes a payment; sql.ErrNoRows when it does not exist
	Delete(ctx context.Context, id int64) error

	// Count returns the number of stored payments
	Count(ctx context.Context) (int, error)
}
