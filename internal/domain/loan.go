package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatus is derived from the paid-week count and never stored.
type LoanStatus string

const (
	LoanStatusInProgress LoanStatus = "In Progress"
	LoanStatusCompleted  LoanStatus = "Completed"
)

// Loan represents a loan entity
type Loan struct {
	ID         int64           `json:"id" db:"id"`
	BorrowerID string          `json:"borrower_id" db:"borrower_id"`
	Borrower   string          `json:"borrower" db:"borrower"`
	Amount     decimal.Decimal `json:"amount" db:"amount"`
	Interest   decimal.Decimal `json:"interest" db:"interest"`
	Weeks      int             `json:"weeks" db:"weeks"`
	StartDate  Date            `json:"start_date" db:"start_date"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" db:"updated_at"`
}

// LoanSummary is a loan together with the values derived from its payments.
type LoanSummary struct {
	Loan
	PaidWeeks         int             `json:"paid_weeks" db:"paid_weeks"`
	TotalPaid         decimal.Decimal `json:"total_paid" db:"total_paid"`
	RemainingWeeks    int             `json:"remaining_weeks" db:"-"`
	WeeklyInstallment decimal.Decimal `json:"weekly_installment" db:"-"`
	TotalDue          decimal.Decimal `json:"total_due" db:"-"`
	Outstanding       decimal.Decimal `json:"outstanding" db:"-"`
	Status            LoanStatus      `json:"status" db:"-"`
	NextDueWeek       int             `json:"next_due_week,omitempty" db:"-"`
	NextDueDate       *Date           `json:"next_due_date,omitempty" db:"-"`
	Overdue           bool            `json:"overdue" db:"-"`
}

// DTOs for requests and responses

// Request bounds follow the column types: amount NUMERIC(12,2), interest
// NUMERIC(5,2). Terms are capped at 20 years of weeks.

type CreateLoanRequest struct {
	BorrowerID string           `json:"borrower_id" validate:"required,max=50"`
	Borrower   string           `json:"borrower" validate:"required,max=255"`
	Amount     decimal.Decimal  `json:"amount" validate:"gt=0,lte=9999999999.99"`
	Interest   *decimal.Decimal `json:"interest" validate:"required,gte=0,lte=999.99"`
	Weeks      int              `json:"weeks" validate:"required,gt=0,max=1040"`
	StartDate  *Date            `json:"start_date"`
}

// UpdateLoanRequest carries a partial update; nil fields keep their value.
type UpdateLoanRequest struct {
	BorrowerID *string          `json:"borrower_id" validate:"omitempty,min=1,max=50"`
	Borrower   *string          `json:"borrower" validate:"omitempty,min=1,max=255"`
	Amount     *decimal.Decimal `json:"amount" validate:"omitempty,gt=0,lte=9999999999.99"`
	Interest   *decimal.Decimal `json:"interest" validate:"omitempty,gte=0,lte=999.99"`
	Weeks      *int             `json:"weeks" validate:"omitempty,gt=0,max=1040"`
	StartDate  *Date            `json:"start_date"`
}

// Apply copies the non-nil fields of r onto loan.
func (r *UpdateLoanRequest) Apply(loan *Loan) {
	if r.BorrowerID != nil {
		loan.BorrowerID = *r.BorrowerID
	}
	if r.Borrower != nil {
		loan.Borrower = *r.Borrower
	}
	if r.Amount != nil {
		loan.Amount = *r.Amount
	}
	if r.Interest != nil {
		loan.Interest = *r.Interest
	}
	if r.Weeks != nil {
		loan.Weeks = *r.Weeks
	}
	if r.StartDate != nil && !r.StartDate.IsZero() {
		loan.StartDate = *r.StartDate
	}
}

type DeleteResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

type BorrowerSummaryResponse struct {
	BorrowerID string         `json:"borrower_id"`
	Loans      []*LoanSummary `json:"loans"`
	Payments   []*Payment     `json:"payments"`
}

// PortfolioStats is a status breakdown over every loan.
type PortfolioStats struct {
	Loans      int `json:"loans"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Overdue    int `json:"overdue"`
	Payments   int `json:"payments"`
}
