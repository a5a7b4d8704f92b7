package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/segyhp/loan-tracker/internal/domain"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const paymentColumns = `id, loan_id, week, amount, payment_date, created_at`

// Postgres error codes
const (
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqNumericOutOfRange   = "22003"
)

// classify wraps err with ErrValueRejected when Postgres refused the value
// itself rather than failing.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && (pqErr.Code == pqCheckViolation || pqErr.Code == pqNumericOutOfRange) {
		return fmt.Errorf("%w: %s", ErrValueRejected, pqErr.Message)
	}
	return err
}

type paymentRepository struct {
	db *sqlx.DB
}

func NewPaymentRepository(db *sqlx.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) CreateIfAbsent(ctx context.Context, payment *domain.Payment) (bool, error) {
	// The unique (loan_id, week) constraint decides; no read-then-write.
	query := `
		INSERT INTO payments (loan_id, week, amount, payment_date)
		VALUES ($1, $2, $3, COALESCE($4::date, CURRENT_DATE))
		ON CONFLICT (loan_id, week) DO NOTHING
		RETURNING ` + paymentColumns

	err := r.db.QueryRowxContext(ctx, query,
		payment.LoanID,
		payment.Week,
		payment.Amount,
		payment.PaymentDate,
	).StructScan(payment)
	if err == nil {
		return true, nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation {
		return false, fmt.Errorf("insert payment for loan %d: %w", payment.LoanID, ErrLoanReference)
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("insert payment for loan %d week %d: %w", payment.LoanID, payment.Week, classify(err))
	}

	existing, err := r.GetByLoanAndWeek(ctx, payment.LoanID, payment.Week)
	if err != nil {
		return false, fmt.Errorf("read existing payment for loan %d week %d: %w", payment.LoanID, payment.Week, err)
	}
	*payment = *existing

	return false, nil
}

func (r *paymentRepository) GetByLoanAndWeek(ctx context.Context, loanID int64, week int) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE loan_id = $1 AND week = $2`

	var payment domain.Payment
	if err := r.db.GetContext(ctx, &payment, query, loanID, week); err != nil {
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepository) List(ctx context.Context) ([]*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY loan_id, week`

	payments := []*domain.Payment{}
	if err := r.db.SelectContext(ctx, &payments, query); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) ListByLoanIDs(ctx context.Context, loanIDs []int64) ([]*domain.Payment, error) {
	payments := []*domain.Payment{}
	if len(loanIDs) == 0 {
		return payments, nil
	}

	query, args, err := sqlx.In(`SELECT `+paymentColumns+` FROM payments WHERE loan_id IN (?) ORDER BY loan_id, week`, loanIDs)
	if err != nil {
		return nil, fmt.Errorf("build payments query: %w", err)
	}

	if err := r.db.SelectContext(ctx, &payments, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list payments by loan: %w", err)
	}

	return payments, nil
}

func (r *paymentRepository) MaxWeek(ctx context.Context, loanID int64) (int, error) {
	query := `SELECT COALESCE(MAX(week), 0) FROM payments WHERE loan_id = $1`

	var week int
	if err := r.db.GetContext(ctx, &week, query, loanID); err != nil {
		return 0, fmt.Errorf("max paid week for loan %d: %w", loanID, err)
	}

	return week, nil
}

func (r *paymentRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete payment %d: %w", id, err)
	}

	if affected == 0 {
		return sql.ErrNoRows
	}

	return nil
}

func (r *paymentRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM payments`); err != nil {
		return 0, fmt.Errorf("count payments: %w", err)
	}

	return count, nil
}
