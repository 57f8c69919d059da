package budget

import (
	"testing"
	"time"

	"bilancio/internal/core"
)

func TestResolveOverride(t *testing.T) {
	base := core.MustParseDate("2026-03-02")
	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	postponed := core.Override{
		ID: "ov-postpone", RuleID: "r1", OccurrenceDate: base,
		Type: core.OverridePostponed, NewDate: core.MustParseDate("2026-03-05"),
		CreatedAt: t1, UpdatedAt: t1,
	}
	paid := core.Override{
		ID: "ov-paid", RuleID: "r1", OccurrenceDate: base,
		Type: core.OverridePaid, PaidOn: core.MustParseDate("2026-03-02"),
		CreatedAt: t1, UpdatedAt: t2,
	}

	tests := []struct {
		name      string
		overrides []core.Override
		wantDate  string
		wantPaid  bool
		wantID    string
		wantType  core.OverrideType
	}{
		{
			name:     "no overrides",
			wantDate: "2026-03-02",
		},
		{
			name:      "postponed moves the date",
			overrides: []core.Override{postponed},
			wantDate:  "2026-03-05", wantID: "ov-postpone", wantType: core.OverridePostponed,
		},
		{
			name:      "paid marks as paid",
			overrides: []core.Override{paid},
			wantDate:  "2026-03-02", wantPaid: true, wantID: "ov-paid", wantType: core.OverridePaid,
		},
		{
			name:      "latest updated wins regardless of order",
			overrides: []core.Override{paid, postponed},
			wantDate:  "2026-03-02", wantPaid: true, wantID: "ov-paid", wantType: core.OverridePaid,
		},
		{
			name:      "latest updated wins when listed last",
			overrides: []core.Override{postponed, paid},
			wantDate:  "2026-03-02", wantPaid: true, wantID: "ov-paid", wantType: core.OverridePaid,
		},
		{
			name: "created_at used when never updated",
			overrides: []core.Override{
				{ID: "old", RuleID: "r1", OccurrenceDate: base, Type: core.OverrideSkipped, CreatedAt: t1},
				{ID: "new", RuleID: "r1", OccurrenceDate: base, Type: core.OverridePostponed, NewDate: core.MustParseDate("2026-03-09"), CreatedAt: t2},
			},
			wantDate: "2026-03-09", wantID: "new", wantType: core.OverridePostponed,
		},
		{
			name: "ties keep input order",
			overrides: []core.Override{
				{ID: "first", RuleID: "r1", OccurrenceDate: base, Type: core.OverrideSkipped, UpdatedAt: t1},
				{ID: "second", RuleID: "r1", OccurrenceDate: base, Type: core.OverrideSkipped, UpdatedAt: t1},
			},
			wantDate: "2026-03-02", wantID: "first", wantType: core.OverrideSkipped,
		},
		{
			name: "other rule ignored",
			overrides: []core.Override{
				{ID: "x", RuleID: "r2", OccurrenceDate: base, Type: core.OverridePaid, PaidOn: base},
			},
			wantDate: "2026-03-02",
		},
		{
			name: "other day ignored",
			overrides: []core.Override{
				{ID: "x", RuleID: "r1", OccurrenceDate: base.AddDays(1), Type: core.OverridePaid, PaidOn: base},
			},
			wantDate: "2026-03-02",
		},
		{
			name: "missing occurrence date never matches",
			overrides: []core.Override{
				{ID: "x", RuleID: "r1", Type: core.OverridePaid, PaidOn: base},
			},
			wantDate: "2026-03-02",
		},
		{
			name: "postponed without new date keeps base",
			overrides: []core.Override{
				{ID: "x", RuleID: "r1", OccurrenceDate: base, Type: core.OverridePostponed},
			},
			wantDate: "2026-03-02", wantID: "x", wantType: core.OverridePostponed,
		},
		{
			name: "paid without payment date stays unpaid",
			overrides: []core.Override{
				{ID: "x", RuleID: "r1", OccurrenceDate: base, Type: core.OverridePaid},
			},
			wantDate: "2026-03-02", wantID: "x", wantType: core.OverridePaid,
		},
		{
			name: "skipped is recorded but not removed",
			overrides: []core.Override{
				{ID: "x", RuleID: "r1", OccurrenceDate: base, Type: core.OverrideSkipped},
			},
			wantDate: "2026-03-02", wantID: "x", wantType: core.OverrideSkipped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveOverride(base, "r1", tt.overrides)
			if got.EffectiveDate.String() != tt.wantDate {
				t.Errorf("EffectiveDate = %s, want %s", got.EffectiveDate, tt.wantDate)
			}
			if got.IsPaid != tt.wantPaid {
				t.Errorf("IsPaid = %v, want %v", got.IsPaid, tt.wantPaid)
			}
			if got.OccurrenceID != tt.wantID {
				t.Errorf("OccurrenceID = %q, want %q", got.OccurrenceID, tt.wantID)
			}
			if got.OverrideType != tt.wantType {
				t.Errorf("OverrideType = %q, want %q", got.OverrideType, tt.wantType)
			}
			if got.Matched != (tt.wantID != "") {
				t.Errorf("Matched = %v", got.Matched)
			}
		})
	}
}

func TestResolveOverrideZeroBase(t *testing.T) {
	got := ResolveOverride(core.Date{}, "r1", []core.Override{{ID: "x", RuleID: "r1", Type: core.OverrideSkipped}})
	if got.Matched || !got.EffectiveDate.IsZero() {
		t.Errorf("zero base date should not match, got %+v", got)
	}
}

func TestOccurrenceID(t *testing.T) {
	if got := OccurrenceID("r1", core.MustParseDate("2026-03-16")); got != "r1:2026-03-16" {
		t.Errorf("OccurrenceID() = %q", got)
	}
}

func TestIsScheduled(t *testing.T) {
	d := core.MustParseDate
	dow := 1
	monthly := core.Rule{ID: "r1", Frequency: core.Monthly, DayOfMonth: 31, StartAnchor: d("2026-01-31")}
	biweekly := core.Rule{ID: "r2", Frequency: core.Biweekly, DayOfWeek: &dow, StartAnchor: d("2026-03-02")}
	linked := core.Rule{ID: "r3", Frequency: core.Monthly, DayOfMonth: 10}
	base := &core.OneTimeEntry{ID: "e1", DueDate: d("2026-02-10")}

	tests := []struct {
		name string
		rule core.Rule
		base *core.OneTimeEntry
		date string
		want bool
	}{
		{"monthly on clamped day", monthly, nil, "2026-04-30", true},
		{"monthly off day", monthly, nil, "2026-04-29", false},
		{"monthly before anchor", monthly, nil, "2025-12-31", false},
		{"biweekly on step", biweekly, nil, "2026-03-16", true},
		{"biweekly between steps", biweekly, nil, "2026-03-09", false},
		{"anchor from linked entry", linked, base, "2026-03-10", true},
		{"no anchor at all", linked, nil, "2026-03-10", false},
		{"inactive rules still schedule", core.Rule{Frequency: core.Weekly, StartAnchor: d("2026-03-02"), Active: false}, nil, "2026-03-09", true},
		{"unknown frequency", core.Rule{Frequency: "yearly", StartAnchor: d("2026-03-02")}, nil, "2026-03-02", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsScheduled(tt.rule, tt.base, d(tt.date)); got != tt.want {
				t.Errorf("IsScheduled(%s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}

	if IsScheduled(monthly, nil, core.Date{}) {
		t.Error("zero date should never be scheduled")
	}
}
