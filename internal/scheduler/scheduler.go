// Package scheduler runs the periodic summary refresh.
package scheduler

import (
	"context"
	"time"

	"github.com/segyhp/loan-tracker/internal/config"
	"github.com/segyhp/loan-tracker/internal/domain"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StatsSource recomputes the loan summaries, refreshing the cache as a side
// effect, and reports the counts.
type StatsSource interface {
	Stats(ctx context.Context) (*domain.PortfolioStats, error)
}

type Scheduler struct {
	cron    *cron.Cron
	source  StatsSource
	log     *logrus.Logger
	timeout time.Duration
}

// New builds a scheduler whose refresh job runs on cfg.Spec in cfg's
// timezone. Each run is bounded by timeout.
func New(cfg config.SchedulerConfig, loc *time.Location, source StatsSource, log *logrus.Logger, timeout time.Duration) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}

	s := &Scheduler{
		cron: cron.New(
			cron.WithParser(cron.NewParser(config.CronParseOptions)),
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.DiscardLogger)),
		),
		source:  source,
		log:     log,
		timeout: timeout,
	}

	if _, err := s.cron.AddFunc(cfg.Spec, func() {
		s.RefreshSummaries(context.Background())
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// RefreshSummaries runs one refresh and logs the resulting counts.
func (s *Scheduler) RefreshSummaries(ctx context.Context) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	stats, err := s.source.Stats(ctx)
	if err != nil {
		s.log.WithError(err).Error("summary refresh failed")
		return
	}

	s.log.WithFields(logrus.Fields{
		"loans":       stats.Loans,
		"in_progress": stats.InProgress,
		"completed":   stats.Completed,
		"overdue":     stats.Overdue,
		"payments":    stats.Payments,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("summary refresh finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
