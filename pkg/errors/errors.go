package errors

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrLoanNotFound       = errors.New("loan not found")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrInvalidTerm        = errors.New("term must be at least one week")
	ErrWeekOutOfRange     = errors.New("week is outside the loan term")
	ErrLoanInProgress     = errors.New("loan has partial payments")
	ErrTermBelowPaidWeeks = errors.New("term is shorter than the weeks already paid")
	ErrValidation         = errors.New("validation failed")
	ErrConfig             = errors.New("invalid configuration")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeLoanNotFound       = "LOAN_NOT_FOUND"
	ErrCodePaymentNotFound    = "PAYMENT_NOT_FOUND"
	ErrCodeInvalidTerm        = "INVALID_TERM"
	ErrCodeWeekOutOfRange     = "WEEK_OUT_OF_RANGE"
	ErrCodeLoanInProgress     = "LOAN_IN_PROGRESS"
	ErrCodeTermBelowPaidWeeks = "TERM_BELOW_PAID_WEEKS"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeConfig             = "CONFIG_ERROR"
	ErrCodeDatabaseError      = "DATABASE_ERROR"
	ErrCodeCacheError         = "CACHE_ERROR"
)

// CodeOf returns the business code carried by err, or "" when err is not a
// BusinessError.
func CodeOf(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// Wrap common errors with business context
func WrapLoanNotFound(loanID int64) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan with ID %d not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapPaymentNotFound(paymentID int64) *BusinessError {
	return NewBusinessError(
		ErrCodePaymentNotFound,
		fmt.Sprintf("Payment with ID %d not found", paymentID),
		ErrPaymentNotFound,
	)
}

func WrapInvalidTerm(weeks int) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidTerm,
		fmt.Sprintf("Loan term of %d weeks is invalid", weeks),
		ErrInvalidTerm,
	)
}

func WrapWeekOutOfRange(loanID int64, week, weeks int) *BusinessError {
	return NewBusinessError(
		ErrCodeWeekOutOfRange,
		fmt.Sprintf("Week %d is outside 1..%d for loan %d", week, weeks, loanID),
		ErrWeekOutOfRange,
	)
}

func WrapLoanInProgress(loanID int64, paidWeeks, weeks int) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanInProgress,
		fmt.Sprintf("Loan %d has %d of %d weeks paid and cannot be deleted", loanID, paidWeeks, weeks),
		ErrLoanInProgress,
	)
}

func WrapTermBelowPaidWeeks(loanID int64, weeks, paidWeek int) *BusinessError {
	return NewBusinessError(
		ErrCodeTermBelowPaidWeeks,
		fmt.Sprintf("Loan %d already has a payment for week %d; term cannot be %d weeks", loanID, paidWeek, weeks),
		ErrTermBelowPaidWeeks,
	)
}

func WrapValidation(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeValidation,
		"request validation failed",
		fmt.Errorf("%w: %v", ErrValidation, err),
	)
}

func WrapConfigError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeConfig,
		"service is not configured",
		fmt.Errorf("%w: %v", ErrConfig, err),
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"Cache operation failed",
		err,
	)
}
