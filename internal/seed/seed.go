// Package seed fills an empty database with reproducible sample loans.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/segyhp/loan-tracker/internal/domain"
	"github.com/segyhp/loan-tracker/pkg/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LoanWriter is the part of the service layer the seeder writes through.
type LoanWriter interface {
	CreateLoan(ctx context.Context, request *domain.CreateLoanRequest) (*domain.Loan, error)
	RecordPayment(ctx context.Context, request *domain.CreatePaymentRequest) (*domain.PaymentResult, error)
}

type Options struct {
	Loans int
	Seed  int64
	// MaxAgeDays bounds how far in the past a start date may be.
	MaxAgeDays int
}

type Report struct {
	Loans    int `json:"loans"`
	Payments int `json:"payments"`
}

var (
	firstNames = []string{"Ana", "Ben", "Carla", "Dimas", "Eka", "Farah", "Gilang", "Hana", "Irfan", "Joko", "Kirana", "Lukas"}
	lastNames  = []string{"Lopez", "Santoso", "Wijaya", "Nguyen", "Halim", "Pratama", "Okafor", "Rahman"}
	interests  = []string{"0", "2.5", "5", "7.5", "10", "12"}
	terms      = []int{4, 8, 12, 20, 26, 52}
)

type Seeder struct {
	writer LoanWriter
	log    *logrus.Logger
	now    func() time.Time
}

func New(writer LoanWriter, log *logrus.Logger) *Seeder {
	return &Seeder{writer: writer, log: log, now: time.Now}
}

// WithClock pins the reference date used for start dates and due weeks.
func (s *Seeder) WithClock(now func() time.Time) *Seeder {
	s.now = now
	return s
}

// Plan returns the loans Run would create, without writing anything. The
// same seed always yields the same plan for the same reference date.
func (s *Seeder) Plan(opts Options) []*domain.CreateLoanRequest {
	if opts.MaxAgeDays <= 0 {
		opts.MaxAgeDays = 365
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	today := domain.NewDate(s.now())

	requests := make([]*domain.CreateLoanRequest, 0, opts.Loans)
	for i := 0; i < opts.Loans; i++ {
		borrower := rng.Intn(len(firstNames) * len(lastNames))
		interest := decimal.RequireFromString(interests[rng.Intn(len(interests))])
		start := today.AddDays(-rng.Intn(opts.MaxAgeDays + 1))

		requests = append(requests, &domain.CreateLoanRequest{
			BorrowerID: fmt.Sprintf("B-%03d", borrower+1),
			Borrower:   firstNames[borrower%len(firstNames)] + " " + lastNames[borrower/len(firstNames)],
			Amount:     decimal.NewFromInt(int64(rng.Intn(100)+1) * 500),
			Interest:   &interest,
			Weeks:      terms[rng.Intn(len(terms))],
			StartDate:  &start,
		})
	}
	return requests
}

// Run creates the planned loans and pays every week that has fallen due,
// each on its due date.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Report, error) {
	report := &Report{}
	now := s.now()

	for _, request := range s.Plan(opts) {
		loan, err := s.writer.CreateLoan(ctx, request)
		if err != nil {
			return report, fmt.Errorf("create loan for %s: %w", request.BorrowerID, err)
		}
		report.Loans++

		due := utils.WeeksDue(loan.StartDate, loan.Weeks, now)
		for week := 1; week <= due; week++ {
			paidOn := utils.CalculateDueDate(loan.StartDate, week)
			result, err := s.writer.RecordPayment(ctx, &domain.CreatePaymentRequest{
				LoanID:      loan.ID,
				Week:        week,
				PaymentDate: &paidOn,
			})
			if err != nil {
				return report, fmt.Errorf("pay week %d of loan %d: %w", week, loan.ID, err)
			}
			if result.Created {
				report.Payments++
			}
		}

		s.log.WithFields(logrus.Fields{
			"loan_id":     loan.ID,
			"borrower_id": loan.BorrowerID,
			"weeks":       loan.Weeks,
			"paid_weeks":  due,
		}).Debug("seeded loan")
	}

	return report, nil
}
