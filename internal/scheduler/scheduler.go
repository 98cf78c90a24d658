// Package scheduler runs the periodic maintenance jobs the access gate
// relies on.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/starteducation/starteducation/internal/database"
	"github.com/starteducation/starteducation/internal/metrics"
)

const jobTimeout = 30 * time.Second

type Scheduler struct {
	scheduler *gocron.Scheduler
	db        database.DBTX
	interval  time.Duration
}

func New(db database.DBTX, sweepInterval time.Duration) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		db:        db,
		interval:  sweepInterval,
	}
}

// Start schedules the subscription sweep and runs it once immediately.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.interval).SingletonMode().Do(s.expireSubscriptions); err != nil {
		return fmt.Errorf("schedule subscription sweep: %w", err)
	}
	s.scheduler.StartAsync()
	slog.Info("scheduler: started", "subscription_sweep_interval", s.interval.String())
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) expireSubscriptions() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := ExpireSubscriptions(ctx, s.db); err != nil {
		slog.Error("scheduler: subscription sweep failed", "error", err)
	}
}

// ExpireSubscriptions marks active subscriptions past their expiry as expired.
func ExpireSubscriptions(ctx context.Context, db database.DBTX) (int64, error) {
	tag, err := db.Exec(ctx,
		`UPDATE subscriptions SET status = 'expired', updated_at = now()
		 WHERE status = 'active' AND expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("expire subscriptions: %w", err)
	}
	n := tag.RowsAffected()
	metrics.RecordSubscriptionsExpired(n)
	if n > 0 {
		slog.Info("scheduler: expired subscriptions", "count", n)
	}
	return n, nil
}
