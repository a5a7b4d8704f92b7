package utils

import (
	"time"

	"github.com/segyhp/loan-tracker/internal/domain"
	customError "github.com/segyhp/loan-tracker/pkg/errors"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CalculateTotalDue returns principal plus interest, where ratePercent is a
// percentage (10 means 10%).
// Formula: Principal * (1 + Rate/100)
func CalculateTotalDue(principal decimal.Decimal, ratePercent decimal.Decimal) decimal.Decimal {
	multiplier := decimal.NewFromInt(1).Add(ratePercent.Div(hundred))
	return principal.Mul(multiplier).Round(2)
}

// CalculateWeeklyInstallment calculates the weekly installment amount
// Formula: Principal * (1 + Rate/100) / Weeks
func CalculateWeeklyInstallment(principal decimal.Decimal, ratePercent decimal.Decimal, weeks int) (decimal.Decimal, error) {
	if weeks <= 0 {
		return decimal.Zero, customError.WrapInvalidTerm(weeks)
	}

	multiplier := decimal.NewFromInt(1).Add(ratePercent.Div(hundred))
	installment := principal.Mul(multiplier).Div(decimal.NewFromInt(int64(weeks)))

	// Round to 2 decimal places
	return installment.Round(2), nil
}

// ClassifyStatus reports Completed once every week of the term has a payment.
func ClassifyStatus(termWeeks, paidWeeks int) domain.LoanStatus {
	if paidWeeks >= termWeeks {
		return domain.LoanStatusCompleted
	}
	return domain.LoanStatusInProgress
}

// RemainingWeeks returns the unpaid weeks of the term, never negative.
func RemainingWeeks(termWeeks, paidWeeks int) int {
	if paidWeeks >= termWeeks {
		return 0
	}
	return termWeeks - paidWeeks
}

// CalculateDueDate calculates the due date for a specific week
// Assumes weekly payments are due every 7 days starting from the loan start date
func CalculateDueDate(loanStartDate domain.Date, weekNumber int) domain.Date {
	return loanStartDate.AddDays(weekNumber * 7) // Week 1 is due 7 days after start, Week 2 is due 14 days after, etc.
}

// GetCurrentWeek calculates which week we're currently in based on loan start date
func GetCurrentWeek(loanStartDate time.Time, now time.Time) int {
	duration := now.Sub(loanStartDate)
	days := int(duration.Hours() / 24)
	week := (days / 7) + 1

	if week < 1 {
		return 1
	}

	return week
}

// WeeksDue returns how many installments have fallen due by now, capped at
// the term.
func WeeksDue(loanStartDate domain.Date, termWeeks int, now time.Time) int {
	due := GetCurrentWeek(loanStartDate.Time, now) - 1
	if due > termWeeks {
		return termWeeks
	}
	return due
}

// IsDateOverdue checks if a date is overdue (before the current date)
func IsDateOverdue(dueDate domain.Date, now time.Time) bool {
	return domain.NewDate(now).After(dueDate.Time)
}

// Summarize fills the derived fields of a summary from its loan and its
// paid-week count and total.
func Summarize(summary *domain.LoanSummary, now time.Time) {
	loan := summary.Loan

	summary.RemainingWeeks = RemainingWeeks(loan.Weeks, summary.PaidWeeks)
	summary.Status = ClassifyStatus(loan.Weeks, summary.PaidWeeks)
	summary.TotalDue = CalculateTotalDue(loan.Amount, loan.Interest)
	summary.Outstanding = summary.TotalDue.Sub(summary.TotalPaid)
	if summary.Outstanding.IsNegative() {
		summary.Outstanding = decimal.Zero
	}

	if installment, err := CalculateWeeklyInstallment(loan.Amount, loan.Interest, loan.Weeks); err == nil {
		summary.WeeklyInstallment = installment
	}

	summary.NextDueWeek = 0
	summary.NextDueDate = nil
	summary.Overdue = false
	if summary.Status == domain.LoanStatusInProgress {
		next := summary.PaidWeeks + 1
		dueDate := CalculateDueDate(loan.StartDate, next)
		summary.NextDueWeek = next
		summary.NextDueDate = &dueDate
		summary.Overdue = IsDateOverdue(dueDate, now)
	}
}
