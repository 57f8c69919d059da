package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bilancio/internal/amqp"
	applog "bilancio/internal/log"

	"github.com/robfig/cron/v3"
)

// Reminders is the reminder logic driven by the worker.
type Reminders interface {
	ProcessAll(ctx context.Context) (int, error)
	RemindOwner(ctx context.Context, ownerID string) (bool, error)
}

// ReminderWorker runs the reminder sweep on a cron schedule and re-evaluates
// owners whose budget changed.
type ReminderWorker struct {
	reminders Reminders
	schedule  string
	loc       *time.Location
	logger    *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

func NewReminderWorker(reminders Reminders, schedule string, loc *time.Location, logger *slog.Logger) *ReminderWorker {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &ReminderWorker{
		reminders: reminders,
		schedule:  schedule,
		loc:       loc,
		logger:    logger.With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleBudgetChanged processes a single change event from AMQP.
func (w *ReminderWorker) HandleBudgetChanged(ctx context.Context, msg *amqp.BudgetChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing budget change",
		applog.FieldOwnerID, msg.OwnerID,
		applog.FieldMessageEntity, msg.Entity,
		"entity_id", msg.EntityID,
		applog.FieldMessageAction, msg.Action)

	sent, err := w.reminders.RemindOwner(ctx, msg.OwnerID)
	if err != nil {
		return fmt.Errorf("re-evaluate owner %s: %w", msg.OwnerID, err)
	}
	if sent {
		w.logger.InfoContext(ctx, "Reminder sent after budget change", "owner_id", msg.OwnerID)
	}
	return nil
}

// RunNow performs one sweep immediately.
func (w *ReminderWorker) RunNow(ctx context.Context) error {
	start := time.Now()
	sent, err := w.reminders.ProcessAll(ctx)
	if err != nil {
		return fmt.Errorf("reminder sweep: %w", err)
	}
	w.logger.InfoContext(ctx, "Reminder sweep finished", "sent", sent, "duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// Start schedules the sweep. Runs never overlap; a run that is still going when
// the next one is due makes the next one skip.
func (w *ReminderWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return errors.New("reminder worker is already running")
	}

	c := cron.New(
		cron.WithLocation(w.loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := c.AddFunc(w.schedule, func() {
		if err := w.RunNow(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Scheduled reminder sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", w.schedule, err)
	}

	c.Start()
	w.cron = c
	w.logger.InfoContext(ctx, "Reminder schedule started", "schedule", w.schedule, "location", w.loc.String())
	return nil
}

// Stop halts the schedule and waits up to the context deadline for a running
// sweep to finish.
func (w *ReminderWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next returns the next scheduled run, or the zero time when not started.
func (w *ReminderWorker) Next() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron == nil {
		return time.Time{}
	}
	entries := w.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
