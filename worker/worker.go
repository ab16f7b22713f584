// Package worker contains the autonomous outreach control loop: a single
// locked process that advances campaigns through dispatch, reply intake,
// decision and alerting once per cycle.
package worker

import (
	"context"
	"fmt"
	"time"

	"outreachd/models"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Options configures the loop itself; component tuning lives on the
// individual components.
type Options struct {
	WorkerID string
	Interval time.Duration
	LockTTL  time.Duration
}

// Worker orchestrates the cycle steps in a fixed order and owns the
// advisory lock for its lifetime.
type Worker struct {
	db     *gorm.DB
	logger *logrus.Logger
	opts   Options

	lock       *LockManager
	dispatcher *Dispatcher
	intake     *ReplyIntake
	decisions  *DecisionEngine
	alerts     *AlertDispatcher
}

func New(db *gorm.DB, logger *logrus.Logger, opts Options, dispatcher *Dispatcher, intake *ReplyIntake, decisions *DecisionEngine, alerts *AlertDispatcher) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	return &Worker{
		db:         db,
		logger:     logger,
		opts:       opts,
		lock:       NewLockManager(db, logger),
		dispatcher: dispatcher,
		intake:     intake,
		decisions:  decisions,
		alerts:     alerts,
	}
}

// Start runs the worker until the context is cancelled. It blocks while
// another instance holds the lock, retrying every interval. Lock and
// heartbeat failures stop the loop: better to halt than to run unlocked.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.WithField("worker_id", w.opts.WorkerID).Info("Starting outreach worker...")

	if err := w.waitForLock(ctx); err != nil {
		return err
	}
	defer func() {
		if err := w.lock.Release(w.opts.WorkerID); err != nil {
			w.logger.WithField("error", err).Error("Failed to release worker lock")
		} else {
			w.logger.WithField("worker_id", w.opts.WorkerID).Info("Worker lock released")
		}
	}()

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		w.RunCycle(ctx, time.Now())

		// The lock persists across cycles; only the heartbeat moves.
		if err := w.lock.Heartbeat(w.opts.WorkerID); err != nil {
			return fmt.Errorf("heartbeat update failed: %w", err)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("Stopping outreach worker...")
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Worker) waitForLock(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		acquired, err := w.lock.Acquire(w.opts.WorkerID, w.opts.LockTTL)
		if err != nil {
			return fmt.Errorf("lock acquisition failed: %w", err)
		}
		if acquired {
			w.logger.WithField("worker_id", w.opts.WorkerID).Info("Worker lock acquired")
			return nil
		}

		w.logger.WithField("worker_id", w.opts.WorkerID).Info("Another worker is active, waiting...")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle executes one full pass: dispatch, reply intake, stale-lead
// sweep, campaign decisions, alerts. Every step is isolated: a failing or
// panicking step is logged and reported, and the remaining steps still
// run. A cancelled context skips the steps that have not started yet.
func (w *Worker) RunCycle(ctx context.Context, now time.Time) []error {
	var errs []error

	step := func(name string, fields logrus.Fields, fn func() error) {
		if ctx.Err() != nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic: %v", r)
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				w.reportStepFailure(name, err, fields)
			}
		}()
		if err := fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			w.reportStepFailure(name, err, fields)
		}
	}

	var campaigns []models.Campaign
	step("load_campaigns", nil, func() error {
		return w.db.Where("active = ?", true).Order("id ASC").Find(&campaigns).Error
	})

	for i := range campaigns {
		campaign := &campaigns[i]
		step("outreach", logrus.Fields{"campaign_id": campaign.ID}, func() error {
			result, err := w.dispatcher.RunDueOutreach(ctx, campaign, now)
			for _, leadErr := range result.Errors {
				errs = append(errs, fmt.Errorf("outreach: %w", leadErr))
			}
			if result.Sent+result.Failed+result.Skipped > 0 {
				w.logger.WithFields(logrus.Fields{
					"campaign_id": campaign.ID,
					"sent":        result.Sent,
					"failed":      result.Failed,
					"skipped":     result.Skipped,
				}).Info("Outreach dispatch completed")
			}
			return err
		})
	}

	step("replies", nil, func() error {
		counts, err := w.intake.ProcessNewReplies(ctx, now)
		if len(counts) > 0 {
			fields := logrus.Fields{}
			for category, n := range counts {
				fields[category] = n
			}
			w.logger.WithFields(fields).Info("Processed new replies")
		}
		return err
	})

	for i := range campaigns {
		campaign := &campaigns[i]
		step("sweep", logrus.Fields{"campaign_id": campaign.ID}, func() error {
			_, err := w.decisions.SweepStaleLeads(campaign, now)
			return err
		})
		step("decide", logrus.Fields{"campaign_id": campaign.ID}, func() error {
			_, _, err := w.decisions.EvaluateCampaign(campaign, now)
			return err
		})
	}

	step("alerts", nil, func() error {
		delivered, err := w.alerts.DispatchAlerts(ctx)
		if delivered > 0 {
			w.logger.WithField("delivered", delivered).Info("Dispatched human alerts")
		}
		return err
	})

	return errs
}

// reportStepFailure logs a step failure with structured context and ships
// it to Sentry; step errors never propagate out of the cycle.
func (w *Worker) reportStepFailure(stepName string, err error, fields logrus.Fields) {
	entry := w.logger.WithFields(logrus.Fields{
		"step":  stepName,
		"error": err.Error(),
	})
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Error("Worker step failed")

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("step", stepName)
		for k, v := range fields {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}
