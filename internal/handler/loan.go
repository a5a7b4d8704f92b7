package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"github.com/segyhp/loan-tracker/internal/domain"
	customError "github.com/segyhp/loan-tracker/pkg/errors"
	"github.com/segyhp/loan-tracker/pkg/logger"
	"github.com/segyhp/loan-tracker/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LoanService is the subset of the service layer the HTTP handlers use.
type LoanService interface {
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error)
	ListLoans(ctx context.Context) ([]*domain.Loan, error)
	GetLoan(ctx context.Context, loanID int64) (*domain.LoanSummary, error)
	UpdateLoan(ctx context.Context, loanID int64, request *domain.UpdateLoanRequest) (*domain.Loan, error)
	DeleteLoan(ctx context.Context, loanID int64) error
	ListSummaries(ctx context.Context) ([]*domain.LoanSummary, error)
	Stats(ctx context.Context) (*domain.PortfolioStats, error)
	GetBorrowerSummary(ctx context.Context, borrowerID string) (*domain.BorrowerSummaryResponse, error)
	ListPayments(ctx context.Context, loanID int64) ([]*domain.Payment, error)
	RecordPayment(ctx context.Context, request *domain.CreatePaymentRequest) (*domain.PaymentResult, error)
	DeletePayment(ctx context.Context, paymentID int64) error
}

type LoanHandler struct {
	service   LoanService
	validator *validator.Validate
	log       *logrus.Logger
}

func NewLoanHandler(service LoanService, log *logrus.Logger) *LoanHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &LoanHandler{
		service:   service,
		validator: newValidator(),
		log:       log,
	}
}

// newValidator teaches the validator to compare decimal amounts with gt/gte.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// ListLoans handles GET /api/loans
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, loans)
}

// CreateLoan handles POST /api/loans
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	var request domain.CreateLoanRequest
	if !h.decode(w, r, &request) {
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), &request)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Created(w, loan)
}

// ListSummaries handles GET /api/loans/summary
func (h *LoanHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListSummaries(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, summaries)
}

// GetLoan handles GET /api/loans/{id}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, summary)
}

// UpdateLoan handles PUT /api/loans/{id}
func (h *LoanHandler) UpdateLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r)
	if !ok {
		return
	}

	var request domain.UpdateLoanRequest
	if !h.decode(w, r, &request) {
		return
	}

	loan, err := h.service.UpdateLoan(r.Context(), loanID, &request)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, loan)
}

// DeleteLoan handles DELETE /api/loans/{id}
func (h *LoanHandler) DeleteLoan(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteLoan(r.Context(), loanID); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, domain.DeleteResponse{ID: loanID, Message: "Loan and its payments deleted"})
}

// Stats handles GET /api/stats
func (h *LoanHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, stats)
}

// GetBorrowerSummary handles GET /api/borrowers/{borrowerId}/summary
func (h *LoanHandler) GetBorrowerSummary(w http.ResponseWriter, r *http.Request) {
	borrowerID := mux.Vars(r)["borrowerId"]

	summary, err := h.service.GetBorrowerSummary(r.Context(), borrowerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, summary)
}

// ListPayments handles GET /api/payments with an optional loan_id filter
func (h *LoanHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	var loanID int64
	if raw := r.URL.Query().Get("loan_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			response.BadRequest(w, "loan_id must be a positive integer", err)
			return
		}
		loanID = id
	}

	payments, err := h.service.ListPayments(r.Context(), loanID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, payments)
}

// CreatePayment handles POST /api/payments. A repeated (loan_id, week)
// returns the stored payment with 200 instead of 201.
func (h *LoanHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var request domain.CreatePaymentRequest
	if !h.decode(w, r, &request) {
		return
	}

	result, err := h.service.RecordPayment(r.Context(), &request)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if result.Created {
		response.Created(w, result.Payment)
		return
	}
	response.Success(w, result.Payment)
}

// DeletePayment handles DELETE /api/payments/{id}
func (h *LoanHandler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	paymentID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePayment(r.Context(), paymentID); err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, domain.DeleteResponse{ID: paymentID, Message: "Payment deleted"})
}

// RejectMassDelete answers DELETE on a collection
func (h *LoanHandler) RejectMassDelete(w http.ResponseWriter, r *http.Request) {
	response.BadRequest(w, "Mass deletion is not allowed; delete by id", nil)
}

// decode reads a JSON body into dst and validates it, writing a 400 on failure
func (h *LoanHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.ErrorWithCode(w, http.StatusBadRequest, customError.ErrCodeValidation, "Invalid request body", err)
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		be := customError.WrapValidation(err)
		response.ErrorWithCode(w, http.StatusBadRequest, be.Code, be.Message, err)
		return false
	}

	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(w, "id must be a positive integer", err)
		return 0, false
	}
	return id, true
}

// writeError maps a service error to its HTTP status
func (h *LoanHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var be *customError.BusinessError
	if !errors.As(err, &be) {
		be = customError.WrapDatabaseError(err)
	}

	status := statusFor(be.Code)
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": RequestIDFrom(r.Context()),
		}).Error("request failed")
	}

	response.ErrorWithCode(w, status, be.Code, be.Message, err)
}

func statusFor(code string) int {
	switch code {
	case customError.ErrCodeValidation, customError.ErrCodeInvalidTerm, customError.ErrCodeWeekOutOfRange:
		return http.StatusBadRequest
	case customError.ErrCodeLoanNotFound, customError.ErrCodePaymentNotFound:
		return http.StatusNotFound
	case customError.ErrCodeLoanInProgress, customError.ErrCodeTermBelowPaidWeeks:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
