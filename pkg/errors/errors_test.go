package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusinessError_Unwrap(t *testing.T) {
	err := WrapLoanNotFound(42)

	assert.True(t, errors.Is(err, ErrLoanNotFound))
	assert.Equal(t, ErrCodeLoanNotFound, err.Code)
	assert.Contains(t, err.Error(), "Loan with ID 42 not found")
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{name: "business error", err: WrapPaymentNotFound(7), expected: ErrCodePaymentNotFound},
		{name: "wrapped business error", err: fmt.Errorf("delete: %w", WrapLoanInProgress(1, 3, 10)), expected: ErrCodeLoanInProgress},
		{name: "plain error", err: errors.New("boom"), expected: ""},
		{name: "nil", err: nil, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CodeOf(tt.err))
		})
	}
}

func TestWrapValidation_KeepsCause(t *testing.T) {
	err := WrapValidation(errors.New("weeks must be greater than 0"))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.Contains(t, err.Error(), "weeks must be greater than 0")
}
