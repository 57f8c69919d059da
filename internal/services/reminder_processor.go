package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/notify"

	"github.com/mitchellh/hashstructure/v2"
)

// ReminderProcessor sends one reminder per owner listing unpaid expenses that are
// overdue in the current month or due within the horizon.
type ReminderProcessor struct {
	budget      *BudgetService
	notifier    notify.Notifier
	checker     DuenessChecker
	horizonDays int
	logger      *slog.Logger

	// lastSent remembers the fingerprint of the last reminder per owner so that
	// re-evaluations with nothing new stay quiet.
	mu       sync.Mutex
	lastSent map[string]uint64
}

func NewReminderProcessor(svc *BudgetService, notifier notify.Notifier, horizonDays int, logger *slog.Logger) *ReminderProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderProcessor{
		budget:      svc,
		notifier:    notifier,
		checker:     DefaultDuenessChecker(horizonDays),
		horizonDays: max(horizonDays, 0),
		logger:      logger.With("component", "reminder"),
		lastSent:    map[string]uint64{},
	}
}

// BuildReminder collects the owner's rows that need a reminder today.
func (p *ReminderProcessor) BuildReminder(ctx context.Context, owner core.Owner) (notify.Reminder, error) {
	today := p.budget.Today()
	start := today.FirstOfMonth()
	end := today.AddDays(p.horizonDays + 1)

	snap, err := p.budget.UnpaidInRange(ctx, owner.ID, start, end)
	if err != nil {
		return notify.Reminder{}, fmt.Errorf("unpaid rows for %s: %w", owner.ID, err)
	}

	r := notify.Reminder{Owner: owner, Today: today}
	for _, row := range snap.Rows {
		switch p.checker.Check(row, today) {
		case Overdue:
			r.Overdue = append(r.Overdue, row)
		case DueSoon:
			r.Upcoming = append(r.Upcoming, row)
		}
	}
	return r, nil
}

// RemindOwner evaluates one owner and sends a reminder when there is something new
// to say. It reports whether a reminder went out.
func (p *ReminderProcessor) RemindOwner(ctx context.Context, ownerID string) (bool, error) {
	owner, err := p.budget.GetOwner(ctx, ownerID)
	if errors.Is(err, core.ErrNotFound) {
		owner = core.Owner{ID: ownerID}
	} else if err != nil {
		return false, err
	}
	return p.remind(ctx, owner, false)
}

// ForceRemindOwner sends the reminder even if an identical one already went out.
func (p *ReminderProcessor) ForceRemindOwner(ctx context.Context, ownerID string) (bool, error) {
	owner, err := p.budget.GetOwner(ctx, ownerID)
	if errors.Is(err, core.ErrNotFound) {
		owner = core.Owner{ID: ownerID}
	} else if err != nil {
		return false, err
	}
	return p.remind(ctx, owner, true)
}

func (p *ReminderProcessor) remind(ctx context.Context, owner core.Owner, force bool) (bool, error) {
	r, err := p.BuildReminder(ctx, owner)
	if err != nil {
		return false, err
	}
	if r.Empty() {
		p.forget(owner.ID)
		return false, nil
	}

	fp, err := fingerprint(r)
	if err != nil {
		return false, fmt.Errorf("fingerprint reminder: %w", err)
	}
	if !force && p.alreadySent(owner.ID, fp) {
		p.logger.DebugContext(ctx, "Reminder unchanged, not resending", "owner_id", owner.ID)
		return false, nil
	}

	if err := p.notifier.SendReminder(ctx, r); err != nil {
		return false, fmt.Errorf("send reminder to %s: %w", owner.ID, err)
	}
	p.mu.Lock()
	p.lastSent[owner.ID] = fp
	p.mu.Unlock()
	return true, nil
}

// ProcessAll sweeps every known owner. Failures are logged and the sweep goes on.
func (p *ReminderProcessor) ProcessAll(ctx context.Context) (int, error) {
	owners, err := p.budget.ListOwners(ctx)
	if err != nil {
		return 0, fmt.Errorf("list owners: %w", err)
	}

	sent := 0
	for _, owner := range owners {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		ok, err := p.remind(ctx, owner, false)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to process reminder",
				applog.NewFields().WithOwner(owner.ID).WithOperation(applog.OpRemind).WithError(err).ToSlice()...)
			continue
		}
		if ok {
			sent++
		}
	}

	p.logger.InfoContext(ctx, "Reminder sweep complete", "owners", len(owners), "sent", sent)
	return sent, nil
}

func (p *ReminderProcessor) alreadySent(ownerID string, fp uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev, ok := p.lastSent[ownerID]
	return ok && prev == fp
}

func (p *ReminderProcessor) forget(ownerID string) {
	p.mu.Lock()
	delete(p.lastSent, ownerID)
	p.mu.Unlock()
}

// fingerprint identifies a reminder by its day and the occurrences it lists.
func fingerprint(r notify.Reminder) (uint64, error) {
	key := struct {
		Today    string
		Overdue  []string
		Upcoming []string
	}{Today: r.Today.String()}
	for _, row := range r.Overdue {
		key.Overdue = append(key.Overdue, rowIdentity(row))
	}
	for _, row := range r.Upcoming {
		key.Upcoming = append(key.Upcoming, rowIdentity(row))
	}
	return hashstructure.Hash(key, hashstructure.FormatV2, nil)
}

func rowIdentity(row core.UnifiedRow) string {
	if row.OccurrenceID != "" {
		return row.OccurrenceID
	}
	return row.ID + "|" + row.EffectiveDate.String()
}
