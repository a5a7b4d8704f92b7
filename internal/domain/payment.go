package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one weekly installment recorded against a loan.
type Payment struct {
	ID          int64           `json:"id" db:"id"`
	LoanID      int64           `json:"loan_id" db:"loan_id"`
	Week        int             `json:"week" db:"week"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	PaymentDate Date            `json:"payment_date" db:"payment_date"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type CreatePaymentRequest struct {
	LoanID      int64            `json:"loan_id" validate:"required,gt=0"`
	Week        int              `json:"week" validate:"required,gt=0,max=1040"`
	Amount      *decimal.Decimal `json:"amount" validate:"omitempty,gt=0,lte=9999999999.99"`
	PaymentDate *Date            `json:"payment_date"`
}

// PaymentResult reports whether a payment was newly recorded or already
// existed for its (loan, week).
type PaymentResult struct {
	Payment *Payment
	Created bool
}
