package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema provisions the tables and reporting views. Every statement is
// idempotent so migrate can run on each deploy.
// loans must be created before payments because of the foreign key.
const schema = `
CREATE TABLE IF NOT EXISTS loans (
    id BIGSERIAL PRIMARY KEY,
    borrower_id VARCHAR(50) NOT NULL,
    borrower VARCHAR(255) NOT NULL,
    amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
    interest NUMERIC(5,2) NOT NULL CHECK (interest >= 0),
    weeks INTEGER NOT NULL CHECK (weeks >= 1),
    start_date DATE NOT NULL DEFAULT CURRENT_DATE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_loans_borrower_id ON loans(borrower_id);

CREATE TABLE IF NOT EXISTS payments (
    id BIGSERIAL PRIMARY KEY,
    loan_id BIGINT NOT NULL REFERENCES loans(id) ON DELETE CASCADE,
    week INTEGER NOT NULL CHECK (week >= 1),
    amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
    payment_date DATE NOT NULL DEFAULT CURRENT_DATE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT unique_loan_week UNIQUE (loan_id, week)
);

CREATE OR REPLACE VIEW loan_payment_summary AS
SELECT
    l.id AS loan_id,
    l.borrower_id,
    l.borrower,
    l.amount AS loan_amount,
    l.interest,
    l.weeks AS total_weeks,
    COALESCE(p.paid_weeks, 0) AS paid_weeks,
    GREATEST(l.weeks - COALESCE(p.paid_weeks, 0), 0) AS remaining_weeks,
    COALESCE(p.total_paid, 0) AS total_paid,
    ROUND(l.amount * (1 + l.interest / 100) / l.weeks, 2) AS weekly_installment,
    CASE
        WHEN COALESCE(p.paid_weeks, 0) >= l.weeks THEN 'Completed'
        ELSE 'In Progress'
    END AS status
FROM loans l
LEFT JOIN (
    SELECT loan_id, COUNT(*) AS paid_weeks, SUM(amount) AS total_paid
    FROM payments
    GROUP BY loan_id
) p ON l.id = p.loan_id;

CREATE OR REPLACE VIEW payments_with_details AS
SELECT
    p.*,
    l.borrower_id,
    l.borrower,
    l.amount AS loan_amount,
    l.interest,
    l.weeks AS loan_weeks,
    ROUND(l.amount * (1 + l.interest / 100) / l.weeks, 2) AS weekly_installment
FROM payments p
JOIN loans l ON p.loan_id = l.id;
`

const resetStatement = `TRUNCATE TABLE payments, loans RESTART IDENTITY CASCADE`

// Migrate creates the tables and views if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Reset removes every loan and payment and restarts the id sequences.
func Reset(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, resetStatement); err != nil {
		return fmt.Errorf("reset tables: %w", err)
	}
	return nil
}
