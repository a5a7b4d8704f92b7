package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/segyhp/loan-tracker/internal/cache"
	"github.com/segyhp/loan-tracker/internal/domain"
	"github.com/segyhp/loan-tracker/internal/repository"
	customError "github.com/segyhp/loan-tracker/pkg/errors"
	"github.com/segyhp/loan-tracker/pkg/logger"
	"github.com/segyhp/loan-tracker/pkg/utils"

	"github.com/sirupsen/logrus"
)

type LoanService struct {
	LoanRepo    repository.LoanRepository
	PaymentRepo repository.PaymentRepository
	cache       cache.SummaryCache
	log         *logrus.Logger
	now         func() time.Time
}

func NewLoanService(
	loanRepo repository.LoanRepository,
	paymentRepo repository.PaymentRepository,
	summaryCache cache.SummaryCache,
	log *logrus.Logger,
) *LoanService {
	if summaryCache == nil {
		summaryCache = cache.NewNopCache()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &LoanService{
		LoanRepo:    loanRepo,
		PaymentRepo: paymentRepo,
		cache:       summaryCache,
		log:         log,
		now:         time.Now,
	}
}

// WithClock replaces the time source used for due dates; tests use it to pin
// "today".
func (s *LoanService) WithClock(now func() time.Time) *LoanService {
	s.now = now
	return s
}

// CreateLoan validates the term and inserts a new loan with zero payments
func (s *LoanService) CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error) {
	if request.Weeks <= 0 {
		return nil, customError.WrapInvalidTerm(request.Weeks)
	}

	loan := &domain.Loan{
		BorrowerID: request.BorrowerID,
		Borrower:   request.Borrower,
		Amount:     request.Amount,
		Weeks:      request.Weeks,
		StartDate:  domain.NewDate(s.now()),
	}
	if request.Interest != nil {
		loan.Interest = *request.Interest
	}
	if request.StartDate != nil && !request.StartDate.IsZero() {
		loan.StartDate = *request.StartDate
	}

	if err := s.LoanRepo.Create(ctx, loan); err != nil {
		return nil, writeError(err)
	}

	s.invalidate(ctx)
	s.log.WithFields(logrus.Fields{
		"loan_id":     loan.ID,
		"borrower_id": loan.BorrowerID,
		"weeks":       loan.Weeks,
	}).Info("loan created")

	return loan, nil
}

// ListLoans returns every loan, newest first
func (s *LoanService) ListLoans(ctx context.Context) ([]*domain.Loan, error) {
	loans, err := s.LoanRepo.List(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return loans, nil
}

// GetLoan returns one loan with its derived installment and status
func (s *LoanService) GetLoan(ctx context.Context, loanID int64) (*domain.LoanSummary, error) {
	summary, err := s.LoanRepo.GetSummary(ctx, loanID)
	if err != nil {
		return nil, s.loanLookupError(loanID, err)
	}

	utils.Summarize(summary, s.now())
	return summary, nil
}

// UpdateLoan applies a partial update. The term cannot shrink below a week
// that already has a payment.
func (s *LoanService) UpdateLoan(ctx context.Context, loanID int64, request *domain.UpdateLoanRequest) (*domain.Loan, error) {
	loan, err := s.LoanRepo.GetByID(ctx, loanID)
	if err != nil {
		return nil, s.loanLookupError(loanID, err)
	}

	previousWeeks := loan.Weeks
	request.Apply(loan)

	if loan.Weeks <= 0 {
		return nil, customError.WrapInvalidTerm(loan.Weeks)
	}

	if loan.Weeks < previousWeeks {
		maxWeek, err := s.PaymentRepo.MaxWeek(ctx, loanID)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		if maxWeek > loan.Weeks {
			return nil, customError.WrapTermBelowPaidWeeks(loanID, loan.Weeks, maxWeek)
		}
	}

	if err := s.LoanRepo.Update(ctx, loan); err != nil {
		if errors.Is(err, repository.ErrValueRejected) {
			return nil, customError.WrapValidation(err)
		}
		return nil, s.loanLookupError(loanID, err)
	}

	s.invalidate(ctx)
	s.log.WithField("loan_id", loanID).Info("loan updated")

	return loan, nil
}

// DeleteLoan removes a loan and, through the cascade, its payments. Only
// loans with no payments or with every week paid may be deleted.
func (s *LoanService) DeleteLoan(ctx context.Context, loanID int64) error {
	summary, err := s.LoanRepo.GetSummary(ctx, loanID)
	if err != nil {
		return s.loanLookupError(loanID, err)
	}

	if !deletable(summary) {
		return customError.WrapLoanInProgress(loanID, summary.PaidWeeks, summary.Weeks)
	}

	deleted, err := s.LoanRepo.DeleteSettled(ctx, loanID)
	if err != nil {
		return customError.WrapDatabaseError(err)
	}

	if !deleted {
		// A payment or a delete landed between the read and the delete.
		current, err := s.LoanRepo.GetSummary(ctx, loanID)
		if err != nil {
			return s.loanLookupError(loanID, err)
		}
		return customError.WrapLoanInProgress(loanID, current.PaidWeeks, current.Weeks)
	}

	s.invalidate(ctx)
	s.log.WithFields(logrus.Fields{
		"loan_id":    loanID,
		"paid_weeks": summary.PaidWeeks,
	}).Info("loan deleted")

	return nil
}

func deletable(summary *domain.LoanSummary) bool {
	return summary.PaidWeeks == 0 || summary.PaidWeeks >= summary.Weeks
}

// ListSummaries returns every loan with derived values, served from the
// cache when possible
func (s *LoanService) ListSummaries(ctx context.Context) ([]*domain.LoanSummary, error) {
	cached, found, err := s.cache.GetSummaries(ctx)
	if err != nil {
		s.log.WithError(customError.WrapCacheError(err)).Warn("reading cached summaries failed")
	}
	if found {
		return cached, nil
	}

	return s.RefreshSummaries(ctx)
}

// RefreshSummaries recomputes every summary from the database and stores the
// result in the cache unless a write invalidated it meanwhile
func (s *LoanService) RefreshSummaries(ctx context.Context) ([]*domain.LoanSummary, error) {
	version, versionErr := s.cache.Version(ctx)
	if versionErr != nil {
		s.log.WithError(customError.WrapCacheError(versionErr)).Warn("reading summary cache version failed")
	}

	summaries, err := s.LoanRepo.ListSummaries(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	now := s.now()
	for _, summary := range summaries {
		utils.Summarize(summary, now)
	}

	if versionErr != nil {
		return summaries, nil
	}

	stored, err := s.cache.SetSummaries(ctx, version, summaries)
	if err != nil {
		s.log.WithError(customError.WrapCacheError(err)).Warn("caching summaries failed")
	} else if !stored {
		s.log.WithField("version", version).Debug("summaries changed while loading; not cached")
	}

	return summaries, nil
}

// Stats returns a status breakdown of every loan
func (s *LoanService) Stats(ctx context.Context) (*domain.PortfolioStats, error) {
	summaries, err := s.RefreshSummaries(ctx)
	if err != nil {
		return nil, err
	}

	payments, err := s.PaymentRepo.Count(ctx)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	stats := &domain.PortfolioStats{Loans: len(summaries), Payments: payments}
	for _, summary := range summaries {
		switch summary.Status {
		case domain.LoanStatusCompleted:
			stats.Completed++
		default:
			stats.InProgress++
		}
		if summary.Overdue {
			stats.Overdue++
		}
	}

	return stats, nil
}

// GetBorrowerSummary returns a borrower's loans and all of their payments
func (s *LoanService) GetBorrowerSummary(ctx context.Context, borrowerID string) (*domain.BorrowerSummaryResponse, error) {
	summaries, err := s.LoanRepo.ListSummariesByBorrowerID(ctx, borrowerID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	now := s.now()
	loanIDs := make([]int64, 0, len(summaries))
	for _, summary := range summaries {
		utils.Summarize(summary, now)
		loanIDs = append(loanIDs, summary.ID)
	}

	payments, err := s.PaymentRepo.ListByLoanIDs(ctx, loanIDs)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	return &domain.BorrowerSummaryResponse{
		BorrowerID: borrowerID,
		Loans:      summaries,
		Payments:   payments,
	}, nil
}

// ListPayments returns all payments, or only those of loanID when it is
// non-zero
func (s *LoanService) ListPayments(ctx context.Context, loanID int64) ([]*domain.Payment, error) {
	var (
		payments []*domain.Payment
		err      error
	)
	if loanID > 0 {
		payments, err = s.PaymentRepo.ListByLoanIDs(ctx, []int64{loanID})
	} else {
		payments, err = s.PaymentRepo.List(ctx)
	}
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return payments, nil
}

// RecordPayment stores the payment for (loan, week) or, when that week is
// already paid, returns the stored payment unchanged. The amount defaults to
// the loan's weekly installment.
func (s *LoanService) RecordPayment(ctx context.Context, request *domain.CreatePaymentRequest) (*domain.PaymentResult, error) {
	loan, err := s.LoanRepo.GetByID(ctx, request.LoanID)
	if err != nil {
		return nil, s.loanLookupError(request.LoanID, err)
	}

	if request.Week < 1 || request.Week > loan.Weeks {
		return nil, customError.WrapWeekOutOfRange(loan.ID, request.Week, loan.Weeks)
	}

	payment := &domain.Payment{
		LoanID:      loan.ID,
		Week:        request.Week,
		PaymentDate: domain.NewDate(s.now()),
	}
	if request.PaymentDate != nil && !request.PaymentDate.IsZero() {
		payment.PaymentDate = *request.PaymentDate
	}
	if request.Amount != nil {
		payment.Amount = *request.Amount
	} else {
		installment, err := utils.CalculateWeeklyInstallment(loan.Amount, loan.Interest, loan.Weeks)
		if err != nil {
			return nil, err
		}
		payment.Amount = installment
	}

	created, err := s.PaymentRepo.CreateIfAbsent(ctx, payment)
	if err != nil {
		if errors.Is(err, repository.ErrLoanReference) {
			return nil, customError.WrapLoanNotFound(request.LoanID)
		}
		return nil, writeError(err)
	}

	entry := s.log.WithFields(logrus.Fields{
		"loan_id":    payment.LoanID,
		"week":       payment.Week,
		"payment_id": payment.ID,
	})
	if created {
		s.invalidate(ctx)
		entry.Info("payment recorded")
	} else {
		entry.Info("payment already recorded for week")
	}

	return &domain.PaymentResult{Payment: payment, Created: created}, nil
}

// DeletePayment removes a payment by id
func (s *LoanService) DeletePayment(ctx context.Context, paymentID int64) error {
	if err := s.PaymentRepo.Delete(ctx, paymentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return customError.WrapPaymentNotFound(paymentID)
		}
		return customError.WrapDatabaseError(err)
	}

	s.invalidate(ctx)
	s.log.WithField("payment_id", paymentID).Info("payment deleted")

	return nil
}

func (s *LoanService) loanLookupError(loanID int64, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return customError.WrapLoanNotFound(loanID)
	}
	return customError.WrapDatabaseError(err)
}

// writeError reports values the database refused as validation errors.
func writeError(err error) error {
	if errors.Is(err, repository.ErrValueRejected) {
		return customError.WrapValidation(err)
	}
	return customError.WrapDatabaseError(err)
}

func (s *LoanService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.WithError(customError.WrapCacheError(err)).Warn("invalidating summary cache failed")
	}
}
