package repository

import (
	"context"
	"fmt"

	"github.com/segyhp/loan-tracker/internal/domain"

	"github.com/jmoiron/sqlx"
)

const loanColumns = `id, borrower_id, borrower, amount, interest, weeks, start_date, created_at, updated_at`

const summarySelect = `
	SELECT l.id, l.borrower_id, l.borrower, l.amount, l.interest, l.weeks, l.start_date, l.created_at, l.updated_at,
		COALESCE(p.paid_weeks, 0) AS paid_weeks,
		COALESCE(p.total_paid, 0) AS total_paid
	FROM loans l
	LEFT JOIN (
		SELECT loan_id, COUNT(*) AS paid_weeks, SUM(amount) AS total_paid
		FROM payments
		GROUP BY loan_id
	) p ON p.loan_id = l.id
`

type loanRepository struct {
	db *sqlx.DB
}

func NewLoanRepository(db *sqlx.DB) LoanRepository {
	return &loanRepository{db: db}
}

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (borrower_id, borrower, amount, interest, weeks, start_date)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::date, CURRENT_DATE))
		RETURNING ` + loanColumns

	err := r.db.QueryRowxContext(ctx, query,
		loan.BorrowerID,
		loan.Borrower,
		loan.Amount,
		loan.Interest,
		loan.Weeks,
		loan.StartDate,
	).StructScan(loan)
	if err != nil {
		return fmt.Errorf("insert loan: %w", classify(err))
	}

	return nil
}

func (r *loanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	var loan domain.Loan
	if err := r.db.GetContext(ctx, &loan, query, id); err != nil {
		return nil, err
	}

	return &loan, nil
}

func (r *loanRepository) List(ctx context.Context) ([]*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans ORDER BY id DESC`

	loans := []*domain.Loan{}
	if err := r.db.SelectContext(ctx, &loans, query); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	return loans, nil
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	query := `
		UPDATE loans
		SET borrower_id = $2, borrower = $3, amount = $4, interest = $5, weeks = $6, start_date = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + loanColumns

	// Wrapped with %w so callers can still match sql.ErrNoRows.
	err := r.db.QueryRowxContext(ctx, query,
		loan.ID,
		loan.BorrowerID,
		loan.Borrower,
		loan.Amount,
		loan.Interest,
		loan.Weeks,
		loan.StartDate,
	).StructScan(loan)
	if err != nil {
		return fmt.Errorf("update loan %d: %w", loan.ID, classify(err))
	}

	return nil
}

func (r *loanRepository) DeleteSettled(ctx context.Context, id int64) (bool, error) {
	query := `
		WITH paid AS (
			SELECT COUNT(*) AS weeks FROM payments WHERE loan_id = $1
		)
		DELETE FROM loans l
		USING paid
		WHERE l.id = $1 AND (paid.weeks = 0 OR paid.weeks >= l.weeks)
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete loan %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete loan %d: %w", id, err)
	}

	return affected > 0, nil
}

func (r *loanRepository) GetSummary(ctx context.Context, id int64) (*domain.LoanSummary, error) {
	query := summarySelect + ` WHERE l.id = $1`

	var summary domain.LoanSummary
	if err := r.db.GetContext(ctx, &summary, query, id); err != nil {
		return nil, err
	}

	return &summary, nil
}

func (r *loanRepository) ListSummaries(ctx context.Context) ([]*domain.LoanSummary, error) {
	query := summarySelect + ` ORDER BY l.id DESC`

	summaries := []*domain.LoanSummary{}
	if err := r.db.SelectContext(ctx, &summaries, query); err != nil {
		return nil, fmt.Errorf("list loan summaries: %w", err)
	}

	return summaries, nil
}

func (r *loanRepository) ListSummariesByBorrowerID(ctx context.Context, borrowerID string) ([]*domain.LoanSummary, error) {
	query := summarySelect + ` WHERE l.borrower_id = $1 ORDER BY l.id DESC`

	summaries := []*domain.LoanSummary{}
	if err := r.db.SelectContext(ctx, &summaries, query, borrowerID); err != nil {
		return nil, fmt.Errorf("list summaries for borrower %s: %w", borrowerID, err)
	}

	return summaries, nil
}

func (r *loanRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
