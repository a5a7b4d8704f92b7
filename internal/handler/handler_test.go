package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/segyhp/loan-tracker/internal/domain"
	"github.com/segyhp/loan-tracker/internal/handler"
	"github.com/segyhp/loan-tracker/internal/mocks"
	customError "github.com/segyhp/loan-tracker/pkg/errors"
	"github.com/segyhp/loan-tracker/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

func newRouter(service *mocks.MockLoanService) *mux.Router {
	log := logger.Discard()
	return handler.NewRouter(
		handler.NewLoanHandler(service, log),
		handler.NewHealthHandler(stubPinger{}, nil, time.Second),
		log,
	)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func sampleLoan() *domain.Loan {
	start, _ := domain.ParseDate("2024-01-01")
	return &domain.Loan{
		ID:         1,
		BorrowerID: "B-001",
		Borrower:   "Ana Lopez",
		Amount:     decimal.NewFromInt(50000),
		Interest:   decimal.NewFromInt(10),
		Weeks:      20,
		StartDate:  start,
	}
}

func TestLoanHandler_Routes(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		body           string
		setupMock      func(*mocks.MockLoanService)
		expectedStatus int
		expectedCode   string
		checkResponse  func(*testing.T, envelope)
	}{
		{
			name:   "create loan",
			method: http.MethodPost,
			path:   "/api/loans",
			body:   `{"borrower_id":"B-001","borrower":"Ana Lopez","amount":50000,"interest":10,"weeks":20,"start_date":"2024-01-01"}`,
			setupMock: func(s *mocks.MockLoanService) {
				s.On("CreateLoan", mock.Anything, mock.MatchedBy(func(req *domain.CreateLoanRequest) bool {
					return req.BorrowerID == "B-001" &&
						req.Amount.Equal(decimal.NewFromInt(50000)) &&
						req.Interest.Equal(decimal.NewFromInt(10)) &&
						req.StartDate.String() == "2024-01-01"
				})).Return(sampleLoan(), nil).Once()
			},
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, body envelope) {
				var loan domain.Loan
				require.NoError(t, json.Unmarshal(body.Data, &loan))
				assert.Equal(t, int64(1), loan.ID)
				assert.Equal(t, "2024-01-01", loan.StartDate.String())
			},
		},
		{
			name:           "create loan without interest fails validation",
			method:         http.MethodPost,
			path:           "/api/loans",
			body:           `{"borrower_id":"B-001","borrower":"Ana","amount":1000,"weeks":4}`,
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeValidation,
		},
		{
			name:           "create loan with negative amount fails validation",
			method:         http.MethodPost,
			path:           "/api/loans",
			body:           `{"borrower_id":"B-001","borrower":"Ana","amount":-5,"interest":0,"weeks":4}`,
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeValidation,
		},
		{
			name:           "create loan with amount beyond column precision",
			method:         http.MethodPost,
			path:           "/api/loans",
			body:           `{"borrower_id":"B-001","borrower":"Ana","amount":1e10,"interest":5,"weeks":4}`,
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeValidation,
		},
		{
			name:           "create loan with interest beyond column precision",
			method:         http.MethodPost,
			path:           "/api/loans",
			body:           `{"borrower_id":"B-001","borrower":"Ana","amount":1000,"interest":1000,"weeks":4}`,
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeValidation,
		},
		{
			name:           "create loan with oversized term",
			method:         http.MethodPost,
			path:           "/api/loans",
			body:           `{"borrower_id":"B-001","borrower":"Ana","amount":1000,"interest":5,"weeks":3000000000}`,
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeValidation,
		},
		{
			name:           "update loan with interest beyond column precision",
			method:         http.MethodPut,
			path:           "/api/loans/1",
			body:           `{"interest":1000}`,
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeValidation,
		},
		{
			name:           "update loan with amount beyond column precision",
			method:         http.MethodPut,
			path:           "/api/loans/1",
			body:           `{"amount":"10000000000"}`,
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeValidation,
		},
		{
			name:           "update loan with oversized term",
			method:         http.MethodPut,
			path:           "/api/loans/1",
			body:           `{"weeks":3000000000}`,
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeValidation,
		},
		{
			name:   "update loan at the interest ceiling",
			method: http.MethodPut,
			path:   "/api/loans/1",
			body:   `{"interest":999.99}`,
			setupMock: func(s *mocks.MockLoanService) {
				s.On("UpdateLoan", mock.Anything, int64(1), mock.Anything).Return(sampleLoan(), nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "payment amount beyond column precision",
			method:         http.MethodPost,
			path:           "/api/payments",
			body:           `{"loan_id":1,"week":1,"amount":1e10}`,
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeValidation,
		},
		{
			name:           "malformed body",
			method:         http.MethodPost,
			path:           "/api/loans",
			body:           `{"borrower_id":`,
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeValidation,
		},
		{
			name:   "list loans",
			method: http.MethodGet,
			path:   "/api/loans",
			setupMock: func(s *mocks.MockLoanService) {
				s.On("ListLoans", mock.Anything).Return([]*domain.Loan{sampleLoan()}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "summary route is not captured by id route",
			method: http.MethodGet,
			path:   "/api/loans/summary",
			setupMock: func(s *mocks.MockLoanService) {
				s.On("ListSummaries", mock.Anything).Return([]*domain.LoanSummary{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "get missing loan",
			method: http.MethodGet,
			path:   "/api/loans/7",
			setupMock: func(s *mocks.MockLoanService) {
				s.On("GetLoan", mock.Anything, int64(7)).Return(nil, customError.WrapLoanNotFound(7)).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   customError.ErrCodeLoanNotFound,
		},
		{
			name:   "update loan term below paid weeks",
			method: http.MethodPut,
			path:   "/api/loans/1",
			body:   `{"weeks":5}`,
			setupMock: func(s *mocks.MockLoanService) {
				s.On("UpdateLoan", mock.Anything, int64(1), mock.MatchedBy(func(req *domain.UpdateLoanRequest) bool {
					return req.Weeks != nil && *req.Weeks == 5 && req.Borrower == nil
				})).Return(nil, customError.WrapTermBelowPaidWeeks(1, 5, 8)).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   customError.ErrCodeTermBelowPaidWeeks,
		},
		{
			name:   "delete loan",
			method: http.MethodDelete,
			path:   "/api/loans/1",
			setupMock: func(s *mocks.MockLoanService) {
				s.On("DeleteLoan", mock.Anything, int64(1)).Return(nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "delete partially paid loan",
			method: http.MethodDelete,
			path:   "/api/loans/1",
			setupMock: func(s *mocks.MockLoanService) {
				s.On("DeleteLoan", mock.Anything, int64(1)).Return(customError.WrapLoanInProgress(1, 3, 20)).Once()
			},
			expectedStatus: http.StatusConflict,
			expectedCode:   customError.ErrCodeLoanInProgress,
		},
		{
			name:           "mass delete loans",
			method:         http.MethodDelete,
			path:           "/api/loans",
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "mass delete payments",
			method:         http.MethodDelete,
			path:           "/api/payments",
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "record new payment",
			method: http.MethodPost,
			path:   "/api/payments",
			body:   `{"loan_id":1,"week":1}`,
			setupMock: func(s *mocks.MockLoanService) {
				s.On("RecordPayment", mock.Anything, mock.MatchedBy(func(req *domain.CreatePaymentRequest) bool {
					return req.LoanID == 1 && req.Week == 1 && req.Amount == nil
				})).Return(&domain.PaymentResult{
					Payment: &domain.Payment{ID: 10, LoanID: 1, Week: 1, Amount: decimal.NewFromInt(2750)},
					Created: true,
				}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:   "repeat payment returns the stored row",
			method: http.MethodPost,
			path:   "/api/payments",
			body:   `{"loan_id":1,"week":1,"amount":"2750.00"}`,
			setupMock: func(s *mocks.MockLoanService) {
				s.On("RecordPayment", mock.Anything, mock.Anything).Return(&domain.PaymentResult{
					Payment: &domain.Payment{ID: 10, LoanID: 1, Week: 1, Amount: decimal.NewFromInt(2750)},
					Created: false,
				}, nil).Once()
			},
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, body envelope) {
				var payment domain.Payment
				require.NoError(t, json.Unmarshal(body.Data, &payment))
				assert.Equal(t, int64(10), payment.ID)
			},
		},
		{
			name:           "payment with zero week fails validation",
			method:         http.MethodPost,
			path:           "/api/payments",
			body:           `{"loan_id":1,"week":0}`,
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeValidation,
		},
		{
			name:   "payment beyond term",
			method: http.MethodPost,
			path:   "/api/payments",
			body:   `{"loan_id":1,"week":21}`,
			setupMock: func(s *mocks.MockLoanService) {
				s.On("RecordPayment", mock.Anything, mock.Anything).Return(nil, customError.WrapWeekOutOfRange(1, 21, 20)).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   customError.ErrCodeWeekOutOfRange,
		},
		{
			name:   "list payments for a loan",
			method: http.MethodGet,
			path:   "/api/payments?loan_id=3",
			setupMock: func(s *mocks.MockLoanService) {
				s.On("ListPayments", mock.Anything, int64(3)).Return([]*domain.Payment{}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "list payments with bad filter",
			method:         http.MethodGet,
			path:           "/api/payments?loan_id=abc",
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:   "delete missing payment",
			method: http.MethodDelete,
			path:   "/api/payments/9",
			setupMock: func(s *mocks.MockLoanService) {
				s.On("DeletePayment", mock.Anything, int64(9)).Return(customError.WrapPaymentNotFound(9)).Once()
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   customError.ErrCodePaymentNotFound,
		},
		{
			name:   "borrower summary",
			method: http.MethodGet,
			path:   "/api/borrowers/B-001/summary",
			setupMock: func(s *mocks.MockLoanService) {
				s.On("GetBorrowerSummary", mock.Anything, "B-001").Return(&domain.BorrowerSummaryResponse{BorrowerID: "B-001"}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "stats",
			method: http.MethodGet,
			path:   "/api/stats",
			setupMock: func(s *mocks.MockLoanService) {
				s.On("Stats", mock.Anything).Return(&domain.PortfolioStats{Loans: 2, Completed: 1, InProgress: 1}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "storage failure",
			method: http.MethodGet,
			path:   "/api/loans",
			setupMock: func(s *mocks.MockLoanService) {
				s.On("ListLoans", mock.Anything).Return(nil, errors.New("connection reset")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   customError.ErrCodeDatabaseError,
			checkResponse: func(t *testing.T, body envelope) {
				assert.Equal(t, "connection reset", body.Error)
			},
		},
		{
			name:           "unknown method",
			method:         http.MethodPatch,
			path:           "/api/loans/1",
			setupMock:      func(*mocks.MockLoanService) {},
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := mocks.NewMockLoanService()
			tt.setupMock(service)

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			newRouter(service).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			body := decodeEnvelope(t, w)
			assert.Equal(t, tt.expectedStatus < 300, body.Success)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, body.Code)
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, body)
			}
			service.AssertExpectations(t)
		})
	}
}

func TestRouter_Preflight(t *testing.T) {
	service := mocks.NewMockLoanService()
	req := httptest.NewRequest(http.MethodOptions, "/api/payments", nil)
	w := httptest.NewRecorder()

	newRouter(service).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}

func TestRouter_UnmatchedRequestsCarryCORS(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{name: "unknown route", method: http.MethodGet, path: "/api/nowhere", expectedStatus: http.StatusNotFound},
		{name: "unknown method", method: http.MethodPatch, path: "/api/loans/1", expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			newRouter(mocks.NewMockLoanService()).ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.False(t, decodeEnvelope(t, w).Success)
		})
	}
}

func TestRouter_RequestID(t *testing.T) {
	service := mocks.NewMockLoanService()
	service.On("ListLoans", mock.Anything).Return([]*domain.Loan{}, nil)

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(service).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/loans", nil))

		assert.Len(t, w.Header().Get(handler.RequestIDHeader), 36)
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/loans", nil)
		req.Header.Set(handler.RequestIDHeader, "abc-123")
		w := httptest.NewRecorder()
		newRouter(service).ServeHTTP(w, req)

		assert.Equal(t, "abc-123", w.Header().Get(handler.RequestIDHeader))
	})
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name           string
		database       handler.Pinger
		cache          handler.Pinger
		expectedStatus int
		expectedChecks map[string]string
	}{
		{
			name:           "all dependencies up",
			database:       stubPinger{},
			cache:          stubPinger{},
			expectedStatus: http.StatusOK,
			expectedChecks: map[string]string{"database": "ok", "cache": "ok"},
		},
		{
			name:           "cache disabled",
			database:       stubPinger{},
			expectedStatus: http.StatusOK,
			expectedChecks: map[string]string{"database": "ok", "cache": "disabled"},
		},
		{
			name:           "database down",
			database:       stubPinger{err: errors.New("dial tcp: refused")},
			cache:          stubPinger{},
			expectedStatus: http.StatusServiceUnavailable,
			expectedChecks: map[string]string{"database": "failed: dial tcp: refused", "cache": "ok"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewHealthHandler(tt.database, tt.cache, time.Second)
			w := httptest.NewRecorder()

			h.Ready(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			var status handler.HealthStatus
			require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &status))
			assert.Equal(t, tt.expectedChecks, status.Checks)
		})
	}
}
