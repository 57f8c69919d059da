package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"slices"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/backend"
	"bilancio/internal/budget"
	"bilancio/internal/cache"
	"bilancio/internal/core"
	applog "bilancio/internal/log"
	"bilancio/internal/sheets"

	"github.com/google/uuid"
	"github.com/mitchellh/hashstructure/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrValidation marks input rejected before anything was stored.
var ErrValidation = errors.New("validation failed")

// ErrNoExporter is returned by ExportSnapshot when no exporter is wired.
var ErrNoExporter = errors.New("no snapshot exporter configured")

// ChangePublisher announces successful mutations.
type ChangePublisher interface {
	PublishBudgetChanged(ctx context.Context, msg *amqp.BudgetChangedMessage) error
}

// SnapshotKey identifies a memoized snapshot. Hash covers the owner's entries,
// rules and overrides, so any stored change yields a different key.
type SnapshotKey struct {
	Owner string
	Hash  uint64
	Mode  string
	Start string
	End   string
	Today string
}

type snapshotInputs struct {
	Entries   []core.OneTimeEntry
	Rules     []core.Rule
	Overrides []core.Override
}

const (
	modeMonths = "months"
	modeRange  = "range"
	modeUnpaid = "unpaid"
)

// BudgetService loads an owner's budget data, runs the snapshot engine over it and
// applies mutations, publishing a change event after each one.
type BudgetService struct {
	store     backend.Backend
	publisher ChangePublisher
	exporter  sheets.SnapshotExporter
	cache     *cache.LRUCache[SnapshotKey, core.Snapshot]
	group     singleflight.Group
	now       func() time.Time
	loc       *time.Location
	logger    *slog.Logger
}

type Option func(*BudgetService)

func WithPublisher(p ChangePublisher) Option {
	return func(s *BudgetService) { s.publisher = p }
}

func WithExporter(e sheets.SnapshotExporter) Option {
	return func(s *BudgetService) { s.exporter = e }
}

// WithCache memoizes snapshots in c. Without it every call recomputes.
func WithCache(c *cache.LRUCache[SnapshotKey, core.Snapshot]) Option {
	return func(s *BudgetService) { s.cache = c }
}

// WithClock sets the time source and the location "today" is evaluated in.
func WithClock(now func() time.Time, loc *time.Location) Option {
	return func(s *BudgetService) {
		s.now = now
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *BudgetService) { s.logger = l }
}

func NewBudgetService(store backend.Backend, opts ...Option) *BudgetService {
	s := &BudgetService{
		store:  store,
		now:    time.Now,
		loc:    time.Local,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "budget")
	return s
}

// Ping checks that the backing store is reachable.
func (s *BudgetService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Today is the current calendar day in the service's location.
func (s *BudgetService) Today() core.Date {
	return core.DateOf(s.now().In(s.loc))
}

// Snapshot computes the snapshot for the months monthStart..monthEnd.
func (s *BudgetService) Snapshot(ctx context.Context, ownerID string, monthStart, monthEnd core.Date) (core.Snapshot, error) {
	if _, err := budget.MonthWindow(monthStart, monthEnd); err != nil {
		return core.Snapshot{}, err
	}
	return s.compute(ctx, ownerID, modeMonths, monthStart, monthEnd, func(in snapshotInputs, today core.Date) (core.Snapshot, error) {
		return budget.ComputeSnapshot(budget.SnapshotInput{
			Entries:    in.Entries,
			Rules:      in.Rules,
			Overrides:  in.Overrides,
			MonthStart: monthStart,
			MonthEnd:   monthEnd,
			TodayLocal: today,
		})
	})
}

// MonthSnapshot computes the snapshot of one "YYYY-MM" month.
func (s *BudgetService) MonthSnapshot(ctx context.Context, ownerID, month string) (core.Snapshot, error) {
	first, last, err := budget.ParseMonth(month)
	if err != nil {
		return core.Snapshot{}, err
	}
	return s.Snapshot(ctx, ownerID, first, last)
}

// Range returns the rows with an effective date in [start, end).
func (s *BudgetService) Range(ctx context.Context, ownerID string, start, end core.Date) (core.Snapshot, error) {
	return s.rangeSnapshot(ctx, ownerID, start, end, false)
}

// UnpaidInRange returns the unpaid rows with an effective date in [start, end).
func (s *BudgetService) UnpaidInRange(ctx context.Context, ownerID string, start, end core.Date) (core.Snapshot, error) {
	return s.rangeSnapshot(ctx, ownerID, start, end, true)
}

func (s *BudgetService) rangeSnapshot(ctx context.Context, ownerID string, start, end core.Date, unpaidOnly bool) (core.Snapshot, error) {
	if err := budget.ValidateRange(start, end); err != nil {
		return core.Snapshot{}, err
	}
	mode := modeRange
	if unpaidOnly {
		mode = modeUnpaid
	}
	return s.compute(ctx, ownerID, mode, start, end, func(in snapshotInputs, today core.Date) (core.Snapshot, error) {
		return budget.ComputeRange(budget.RangeInput{
			Entries:    in.Entries,
			Rules:      in.Rules,
			Overrides:  in.Overrides,
			Start:      start,
			End:        end,
			TodayLocal: today,
			UnpaidOnly: unpaidOnly,
		})
	})
}

func (s *BudgetService) compute(ctx context.Context, ownerID, mode string, start, end core.Date,
	run func(snapshotInputs, core.Date) (core.Snapshot, error)) (core.Snapshot, error) {
	in, err := s.loadInputs(ctx, ownerID)
	if err != nil {
		return core.Snapshot{}, err
	}
	today := s.Today()

	if s.cache == nil {
		return run(in, today)
	}

	hash, err := hashstructure.Hash(in, hashstructure.FormatV2, nil)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to hash snapshot inputs, skipping cache", applog.FieldOwnerID, ownerID, applog.FieldError, err)
		return run(in, today)
	}
	key := SnapshotKey{Owner: ownerID, Hash: hash, Mode: mode, Start: start.String(), End: end.String(), Today: today.String()}

	if snap, ok := s.cache.Get(key); ok {
		s.logger.DebugContext(ctx, "Snapshot cache hit",
			applog.NewFields().WithOwner(ownerID).WithWindow(key.Start, key.End).ToSlice()...)
		return cloneSnapshot(snap), nil
	}

	v, err, _ := s.group.Do(fmt.Sprintf("%+v", key), func() (any, error) {
		snap, err := run(in, today)
		if err != nil {
			return nil, err
		}
		s.cache.Set(key, snap)
		return snap, nil
	})
	if err != nil {
		return core.Snapshot{}, err
	}
	return cloneSnapshot(v.(core.Snapshot)), nil
}

// loadInputs fetches the three collections concurrently.
func (s *BudgetService) loadInputs(ctx context.Context, ownerID string) (snapshotInputs, error) {
	var in snapshotInputs
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		in.Entries, err = s.store.ListEntries(gctx, ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		in.Rules, err = s.store.ListRules(gctx, ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		in.Overrides, err = s.store.ListOverrides(gctx, ownerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshotInputs{}, fmt.Errorf("load budget data: %w", err)
	}
	return in, nil
}

// ExportSnapshot computes the month's snapshot and hands it to the exporter.
func (s *BudgetService) ExportSnapshot(ctx context.Context, ownerID, month string) (string, error) {
	if s.exporter == nil {
		return "", ErrNoExporter
	}
	snap, err := s.MonthSnapshot(ctx, ownerID, month)
	if err != nil {
		return "", err
	}
	ref, err := s.exporter.ExportSnapshot(ctx, ownerID, snap)
	if err != nil {
		return "", fmt.Errorf("export snapshot: %w", err)
	}
	s.logger.InfoContext(ctx, "Snapshot exported", applog.FieldOperation, applog.OpExport, applog.FieldOwnerID, ownerID, "month", month, applog.FieldSheetsRef, ref)
	return ref, nil
}

// Entries

func (s *BudgetService) ListEntries(ctx context.Context, ownerID string) ([]core.OneTimeEntry, error) {
	return s.store.ListEntries(ctx, ownerID)
}

func (s *BudgetService) GetEntry(ctx context.Context, ownerID, id string) (core.OneTimeEntry, error) {
	return s.store.GetEntry(ctx, ownerID, id)
}

func (s *BudgetService) CreateEntry(ctx context.Context, ownerID string, e core.OneTimeEntry) (core.OneTimeEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if err := e.Validate(); err != nil {
		return core.OneTimeEntry{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.EnsureOwner(ctx, ownerID); err != nil {
		return core.OneTimeEntry{}, err
	}
	if err := s.store.SaveEntry(ctx, ownerID, e); err != nil {
		return core.OneTimeEntry{}, fmt.Errorf("save entry: %w", err)
	}
	s.changed(ctx, ownerID, amqp.EntityEntry, e.ID, amqp.ActionCreated)
	return e, nil
}

func (s *BudgetService) UpdateEntry(ctx context.Context, ownerID, id string, e core.OneTimeEntry) (core.OneTimeEntry, error) {
	if _, err := s.store.GetEntry(ctx, ownerID, id); err != nil {
		return core.OneTimeEntry{}, err
	}
	e.ID = id
	if err := e.Validate(); err != nil {
		return core.OneTimeEntry{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.store.SaveEntry(ctx, ownerID, e); err != nil {
		return core.OneTimeEntry{}, fmt.Errorf("save entry: %w", err)
	}
	s.changed(ctx, ownerID, amqp.EntityEntry, id, amqp.ActionUpdated)
	return e, nil
}

func (s *BudgetService) DeleteEntry(ctx context.Context, ownerID, id string) error {
	if err := s.store.DeleteEntry(ctx, ownerID, id); err != nil {
		return err
	}
	s.changed(ctx, ownerID, amqp.EntityEntry, id, amqp.ActionDeleted)
	return nil
}

// Rules

func (s *BudgetService) ListRules(ctx context.Context, ownerID string) ([]core.Rule, error) {
	return s.store.ListRules(ctx, ownerID)
}

func (s *BudgetService) GetRule(ctx context.Context, ownerID, id string) (core.Rule, error) {
	return s.store.GetRule(ctx, ownerID, id)
}

func (s *BudgetService) CreateRule(ctx context.Context, ownerID string, r core.Rule) (core.Rule, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := s.validateRule(ctx, ownerID, &r); err != nil {
		return core.Rule{}, err
	}
	if err := s.EnsureOwner(ctx, ownerID); err != nil {
		return core.Rule{}, err
	}
	if err := s.store.SaveRule(ctx, ownerID, r); err != nil {
		return core.Rule{}, fmt.Errorf("save rule: %w", err)
	}
	s.changed(ctx, ownerID, amqp.EntityRule, r.ID, amqp.ActionCreated)
	return r, nil
}

func (s *BudgetService) UpdateRule(ctx context.Context, ownerID, id string, r core.Rule) (core.Rule, error) {
	if _, err := s.store.GetRule(ctx, ownerID, id); err != nil {
		return core.Rule{}, err
	}
	r.ID = id
	if err := s.validateRule(ctx, ownerID, &r); err != nil {
		return core.Rule{}, err
	}
	if err := s.store.SaveRule(ctx, ownerID, r); err != nil {
		return core.Rule{}, fmt.Errorf("save rule: %w", err)
	}
	s.changed(ctx, ownerID, amqp.EntityRule, id, amqp.ActionUpdated)
	return r, nil
}

// SetRuleActive switches a rule on or off without touching its overrides.
func (s *BudgetService) SetRuleActive(ctx context.Context, ownerID, id string, active bool) (core.Rule, error) {
	r, err := s.store.GetRule(ctx, ownerID, id)
	if err != nil {
		return core.Rule{}, err
	}
	if r.Active == active {
		return r, nil
	}
	r.Active = active
	if err := s.store.SaveRule(ctx, ownerID, r); err != nil {
		return core.Rule{}, fmt.Errorf("save rule: %w", err)
	}
	s.changed(ctx, ownerID, amqp.EntityRule, id, amqp.ActionUpdated)
	return r, nil
}

func (s *BudgetService) DeleteRule(ctx context.Context, ownerID, id string) error {
	if err := s.store.DeleteRule(ctx, ownerID, id); err != nil {
		return err
	}
	s.changed(ctx, ownerID, amqp.EntityRule, id, amqp.ActionDeleted)
	return nil
}

func (s *BudgetService) validateRule(ctx context.Context, ownerID string, r *core.Rule) error {
	if r.Interval == 0 {
		r.Interval = 1
	}
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if r.EntryID == "" {
		return nil
	}
	if _, err := s.store.GetEntry(ctx, ownerID, r.EntryID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("%w: linked entry %s does not exist", ErrValidation, r.EntryID)
		}
		return err
	}
	return nil
}

// Overrides

func (s *BudgetService) ListOverrides(ctx context.Context, ownerID string) ([]core.Override, error) {
	return s.store.ListOverrides(ctx, ownerID)
}

func (s *BudgetService) DeleteOverride(ctx context.Context, ownerID, id string) error {
	if err := s.store.DeleteOverride(ctx, ownerID, id); err != nil {
		return err
	}
	s.changed(ctx, ownerID, amqp.EntityOverride, id, amqp.ActionDeleted)
	return nil
}

// OccurrenceOverride returns the decision stored for the occurrence of ruleID
// scheduled on occurrence. The bool is false when none is stored.
func (s *BudgetService) OccurrenceOverride(ctx context.Context, ownerID, ruleID string, occurrence core.Date) (core.Override, bool, error) {
	existing, err := s.store.ListOverrides(ctx, ownerID)
	if err != nil {
		return core.Override{}, false, fmt.Errorf("list overrides: %w", err)
	}
	o, ok := findOverride(existing, ruleID, occurrence)
	return o, ok, nil
}

func findOverride(overrides []core.Override, ruleID string, occurrence core.Date) (core.Override, bool) {
	for _, o := range overrides {
		if o.RuleID == ruleID && o.OccurrenceDate.Equal(occurrence) {
			return o, true
		}
	}
	return core.Override{}, false
}

// MarkOccurrencePaid records a payment for the occurrence scheduled on occurrence.
// A zero paidOn means today. The payment replaces any postponement of the same
// occurrence, so the paid row falls back to its scheduled date.
func (s *BudgetService) MarkOccurrencePaid(ctx context.Context, ownerID, ruleID string, occurrence, paidOn core.Date) (core.Override, error) {
	if paidOn.IsZero() {
		paidOn = s.Today()
	}
	return s.applyOverride(ctx, ownerID, core.Override{
		RuleID:         ruleID,
		OccurrenceDate: occurrence,
		Type:           core.OverridePaid,
		PaidOn:         paidOn,
	})
}

// PostponeOccurrence moves the occurrence scheduled on occurrence to newDate.
func (s *BudgetService) PostponeOccurrence(ctx context.Context, ownerID, ruleID string, occurrence, newDate core.Date) (core.Override, error) {
	return s.applyOverride(ctx, ownerID, core.Override{
		RuleID:         ruleID,
		OccurrenceDate: occurrence,
		Type:           core.OverridePostponed,
		NewDate:        newDate,
	})
}

// SkipOccurrence marks the occurrence scheduled on occurrence as skipped.
func (s *BudgetService) SkipOccurrence(ctx context.Context, ownerID, ruleID string, occurrence core.Date) (core.Override, error) {
	return s.applyOverride(ctx, ownerID, core.Override{
		RuleID:         ruleID,
		OccurrenceDate: occurrence,
		Type:           core.OverrideSkipped,
	})
}

// applyOverride stores o, replacing an earlier override for the same occurrence so
// each occurrence keeps a single stored decision.
func (s *BudgetService) applyOverride(ctx context.Context, ownerID string, o core.Override) (core.Override, error) {
	if err := o.Validate(); err != nil {
		return core.Override{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	rule, err := s.store.GetRule(ctx, ownerID, o.RuleID)
	if err != nil {
		return core.Override{}, err
	}
	var base *core.OneTimeEntry
	if rule.EntryID != "" {
		if e, err := s.store.GetEntry(ctx, ownerID, rule.EntryID); err == nil {
			base = &e
		}
	}
	if !budget.IsScheduled(rule, base, o.OccurrenceDate) {
		return core.Override{}, fmt.Errorf("%w: rule %s has no occurrence on %s", ErrValidation, rule.ID, o.OccurrenceDate)
	}

	existing, err := s.store.ListOverrides(ctx, ownerID)
	if err != nil {
		return core.Override{}, fmt.Errorf("list overrides: %w", err)
	}
	now := s.now().UTC()
	action := amqp.ActionCreated
	o.ID = uuid.NewString()
	o.CreatedAt = now
	if prev, ok := findOverride(existing, o.RuleID, o.OccurrenceDate); ok {
		o.ID, o.CreatedAt = prev.ID, prev.CreatedAt
		action = amqp.ActionUpdated
		if prev.Type != o.Type {
			s.logger.InfoContext(ctx, "Occurrence decision replaced", applog.FieldOwnerID, ownerID,
				"rule_id", o.RuleID, "occurrence", o.OccurrenceDate, "from", prev.Type, "to", o.Type)
		}
	}
	o.UpdatedAt = now

	if err := s.EnsureOwner(ctx, ownerID); err != nil {
		return core.Override{}, err
	}
	if err := s.store.SaveOverride(ctx, ownerID, o); err != nil {
		return core.Override{}, fmt.Errorf("save override: %w", err)
	}
	s.changed(ctx, ownerID, amqp.EntityOverride, o.ID, action)
	return o, nil
}

// Owners

// EnsureOwner registers ownerID in the owner directory on first use.
func (s *BudgetService) EnsureOwner(ctx context.Context, ownerID string) error {
	_, err := s.store.GetOwner(ctx, ownerID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("get owner: %w", err)
	}
	if err := s.store.SaveOwner(ctx, core.Owner{ID: ownerID}); err != nil {
		return fmt.Errorf("register owner: %w", err)
	}
	s.logger.InfoContext(ctx, "Registered new owner", "owner_id", ownerID)
	return nil
}

// SaveOwner updates an owner's contact details.
func (s *BudgetService) SaveOwner(ctx context.Context, o core.Owner) error {
	if o.ID == "" {
		return fmt.Errorf("%w: owner id is required", ErrValidation)
	}
	if o.Email != "" {
		addr, err := mail.ParseAddress(o.Email)
		if err != nil {
			return fmt.Errorf("%w: email %q: %v", ErrValidation, o.Email, err)
		}
		o.Email = addr.Address
	}
	return s.store.SaveOwner(ctx, o)
}

func (s *BudgetService) GetOwner(ctx context.Context, id string) (core.Owner, error) {
	return s.store.GetOwner(ctx, id)
}

func (s *BudgetService) ListOwners(ctx context.Context) ([]core.Owner, error) {
	return s.store.ListOwners(ctx)
}

// changed drops the owner's memoized snapshots and publishes a change event.
// Publishing is best effort: the mutation is already stored.
func (s *BudgetService) changed(ctx context.Context, ownerID, entity, entityID, action string) {
	if s.cache != nil {
		s.cache.DeleteFunc(func(k SnapshotKey) bool { return k.Owner == ownerID })
	}
	if s.publisher == nil {
		return
	}
	msg := amqp.NewBudgetChangedMessage(ownerID, entity, entityID, action)
	if err := s.publisher.PublishBudgetChanged(ctx, msg); err != nil {
		fields := applog.NewFields().WithOwner(ownerID).WithOperation(applog.OpPublish).WithError(err)
		fields[applog.FieldMessageEntity] = entity
		fields[applog.FieldMessageAction] = action
		s.logger.ErrorContext(ctx, "Failed to publish budget change", append(fields.ToSlice(), "entity_id", entityID)...)
	}
}

func cloneSnapshot(s core.Snapshot) core.Snapshot {
	s.Rows = slices.Clone(s.Rows)
	if s.Rows == nil {
		s.Rows = []core.UnifiedRow{}
	}
	return s
}
