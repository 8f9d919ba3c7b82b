package billing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fabric/gateway/internal/database"
	"github.com/fabric/gateway/internal/events"
	"github.com/fabric/gateway/internal/metrics"
)

// DefaultResetInterval is how often the scheduler sweeps for expired
// budgets.
const DefaultResetInterval = 5 * time.Minute

// BudgetStore is the slice of the persistent store the scheduler needs.
// *database.Store satisfies it.
type BudgetStore interface {
	ExpiredBudgets(ctx context.Context, now time.Time) ([]database.Budget, error)
	ResetBudget(ctx context.Context, id string, nextReset time.Time) error
}

// BudgetResetScheduler is a recurring job that resets budgets whose
// period has elapsed and schedules their next reset boundary.
//
// It keeps no persisted last-run state: a sweep that finds nothing due
// does nothing, so running redundantly, or concurrently on another
// pod, is safe. A single budget's failure is logged and skipped; the
// sweep continues.
type BudgetResetScheduler struct {
	store   BudgetStore
	emitter events.Emitter
	metrics *metrics.Metrics
	logger  *slog.Logger

	interval time.Duration
	now      func() time.Time // injectable clock for tests

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewBudgetResetScheduler creates a scheduler. emitter may be nil.
func NewBudgetResetScheduler(store BudgetStore, emitter events.Emitter, m *metrics.Metrics, interval time.Duration, logger *slog.Logger) *BudgetResetScheduler {
	if interval <= 0 {
		interval = DefaultResetInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BudgetResetScheduler{
		store:    store,
		emitter:  emitter,
		metrics:  m,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Start launches the sweep timer. Only one timer instance may be
// active; starting twice is a no-op.
func (s *BudgetResetScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})

	go s.run(s.stopCh)
	s.logger.Info("budget reset scheduler started", "interval", s.interval)
}

// Stop halts the sweep timer.
func (s *BudgetResetScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return
	}
	close(s.stopCh)
	s.stopCh = nil
}

func (s *BudgetResetScheduler) run(stopCh chan struct{}) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if count, err := s.ResetExpired(ctx); err != nil {
				s.logger.Error("budget reset sweep failed", "error", err)
			} else if count > 0 {
				s.logger.Info("reset expired budgets", "count", count)
			}
			cancel()
		case <-stopCh:
			s.logger.Info("budget reset scheduler stopped")
			return
		}
	}
}

// ResetExpired performs one sweep: every budget with resetAt <= now is
// zeroed and given its next boundary. Returns how many were reset.
func (s *BudgetResetScheduler) ResetExpired(ctx context.Context) (int, error) {
	now := s.now()

	expired, err := s.store.ExpiredBudgets(ctx, now)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, budget := range expired {
		next := NextReset(budget.PeriodType, now)
		if err := s.store.ResetBudget(ctx, budget.ID, next); err != nil {
			// Isolated per-item failure: log and move on.
			s.logger.Error("budget reset failed, skipping",
				"budget", budget.ID, "error", err)
			s.metrics.BudgetResetErrors.Inc()
			continue
		}
		count++
		s.metrics.BudgetResets.Inc()

		if s.emitter != nil {
			s.emitter.Emit(events.TypeBudgetReset, budget.ID, map[string]interface{}{
				"budgetId":   budget.ID,
				"accountId":  budget.AccountID,
				"periodType": budget.PeriodType,
				"nextReset":  next,
			})
		}
	}
	return count, nil
}

// NextReset computes a budget's next reset boundary from now:
// weekly → now + 7 days, monthly → first day of the next calendar
// month, daily (the default) → start of the next calendar day. Daily
// and monthly boundaries are calendar-based in now's location.
func NextReset(periodType string, now time.Time) time.Time {
	switch periodType {
	case "weekly":
		return now.Add(7 * 24 * time.Hour)
	case "monthly":
		return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, now.Location())
	default: // daily
		return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
	}
}
