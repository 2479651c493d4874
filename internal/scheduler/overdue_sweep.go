package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"bookloan/internal/circulation"
)

const sweepTimeout = 30 * time.Second

// OverdueLister is the slice of the circulation service the sweep needs.
type OverdueLister interface {
	OverdueBorrowings(ctx context.Context, page circulation.Page) (*circulation.PageResult, error)
}

// OverdueSweep periodically counts overdue borrowings, logs the count and
// records it as a gauge.
type OverdueSweep struct {
	lister   OverdueLister
	schedule string
	logger   *slog.Logger
	gauge    metric.Int64Gauge

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
}

// SweepOption configures an OverdueSweep.
type SweepOption func(*OverdueSweep)

// WithMeterProvider records the gauge on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) SweepOption {
	return func(s *OverdueSweep) {
		s.gauge, _ = mp.Meter("bookloan/scheduler").Int64Gauge("circulation.borrowings.overdue")
	}
}

// NewOverdueSweep creates a sweep running on a five-field cron schedule.
func NewOverdueSweep(lister OverdueLister, schedule string, logger *slog.Logger, opts ...SweepOption) *OverdueSweep {
	if logger == nil {
		logger = slog.Default()
	}
	s := &OverdueSweep{
		lister:   lister,
		schedule: schedule,
		logger:   logger.With("job", "overdue_sweep"),
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
	s.gauge, _ = otel.Meter("bookloan/scheduler").Int64Gauge("circulation.borrowings.overdue")
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start schedules the sweep. It stops when ctx is done or Stop is called.
func (s *OverdueSweep) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.RunNow(s.ctx); err != nil {
			s.logger.Error("overdue sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}
	s.entryID = entryID
	s.ctx = context.WithoutCancel(ctx)

	s.cron.Start()
	s.isRunning = true
	s.logger.Info("overdue sweep scheduled",
		"schedule", s.schedule,
		"next_run", s.cron.Entry(entryID).Schedule.Next(time.Now()),
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop removes the job and waits for a running sweep to finish.
func (s *OverdueSweep) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.cron.Remove(s.entryID)
	<-s.cron.Stop().Done()
	s.isRunning = false
	s.logger.Info("overdue sweep stopped")
}

// IsRunning reports whether the sweep is scheduled.
func (s *OverdueSweep) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// RunNow performs one sweep and returns the number of overdue borrowings.
func (s *OverdueSweep) RunNow(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.lister.OverdueBorrowings(ctx, circulation.Page{Size: 1})
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue borrowings: %w", err)
	}

	s.gauge.Record(ctx, int64(result.TotalItems))
	s.logger.InfoContext(ctx, "overdue sweep completed",
		"overdue", result.TotalItems,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result.TotalItems, nil
}
