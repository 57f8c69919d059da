package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false},
		{NewDate(1200, 1, 1), false},
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Date
		wantErr bool
	}{
		{"iso", "2026-03-31", NewDate(2026, 3, 31), false},
		{"rfc3339 from driver", "2026-03-31T00:00:00Z", NewDate(2026, 3, 31), false},
		{"datetime prefix", "2026-03-31 00:00:00+00:00", NewDate(2026, 3, 31), false},
		{"padded", "  2026-01-02 ", NewDate(2026, 1, 2), false},
		{"empty", "", Date{}, true},
		{"garbage", "31/03/2026", Date{}, true},
		{"trailing garbage", "2026-03-01garbage", Date{}, true},
		{"trailing digits", "2026-03-011", Date{}, true},
		{"sqlite timestamp", "2026-03-01T00:00:00.000", NewDate(2026, 3, 1), false},
		{"impossible day", "2026-02-30", Date{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidDate) {
				t.Errorf("ParseDate(%q) error = %v, want ErrInvalidDate", tt.in, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDateJSON(t *testing.T) {
	type wrapper struct {
		D Date `json:"d"`
	}

	b, err := json.Marshal(wrapper{D: NewDate(2026, 10, 5)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"d":"2026-10-05"}` {
		t.Errorf("marshal = %s", b)
	}

	b, _ = json.Marshal(wrapper{})
	if string(b) != `{"d":null}` {
		t.Errorf("zero date marshal = %s", b)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"d":""}`), &w); err != nil || !w.D.IsZero() {
		t.Errorf("empty string should decode to zero date, got %v err=%v", w.D, err)
	}
	if err := json.Unmarshal([]byte(`{"d":"nope"}`), &w); err == nil {
		t.Error("expected error for malformed date")
	}
}

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		year, month, want int
	}{
		{2024, 2, 29},
		{2025, 2, 28},
		{2026, 4, 30},
		{2026, 12, 31},
	}
	for _, tt := range tests {
		if got := DaysInMonth(tt.year, tt.month); got != tt.want {
			t.Errorf("DaysInMonth(%d, %d) = %d, want %d", tt.year, tt.month, got, tt.want)
		}
	}
}

func TestOneTimeEntryValidate(t *testing.T) {
	good := OneTimeEntry{
		ID:          "e1",
		Type:        Expense,
		Description: "Rent",
		Amount:      decimal.NewFromInt(900),
		DueDate:     NewDate(2026, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []OneTimeEntry{
		{Type: "gift", Description: "a", Amount: decimal.NewFromInt(1), DueDate: NewDate(2026, 1, 1)},
		{Type: Income, Description: "a", Amount: decimal.NewFromInt(1)},
		{Type: Income, Description: " ", Amount: decimal.NewFromInt(1), DueDate: NewDate(2026, 1, 1)},
		{Type: Income, Description: "a", Amount: decimal.Zero, DueDate: NewDate(2026, 1, 1)},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestRuleValidate(t *testing.T) {
	dow := 9
	base := Rule{
		ID:          "r1",
		Type:        Expense,
		Description: "Gym",
		Amount:      decimal.NewFromInt(30),
		Frequency:   Monthly,
		DayOfMonth:  31,
		StartAnchor: NewDate(2026, 1, 31),
		Active:      true,
	}

	tests := []struct {
		name    string
		mutate  func(r *Rule)
		wantErr error
	}{
		{"valid", func(r *Rule) {}, nil},
		{"unknown frequency", func(r *Rule) { r.Frequency = "daily" }, ErrInvalidFrequency},
		{"unknown type", func(r *Rule) { r.Type = "" }, ErrInvalidEntryType},
		{"linked entry replaces anchor", func(r *Rule) { r.StartAnchor = Date{}; r.EntryID = "e1" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}

	invalid := []func(r *Rule){
		func(r *Rule) { r.StartAnchor = Date{} },
		func(r *Rule) { r.DayOfMonth = 32 },
		func(r *Rule) { r.DayOfWeek = &dow },
		func(r *Rule) { r.Interval = -1 },
	}
	for i, mutate := range invalid {
		r := base
		mutate(&r)
		if err := r.Validate(); err == nil {
			t.Errorf("case %d expected error", i)
		}
	}
}

func TestOverrideValidate(t *testing.T) {
	day := NewDate(2026, 2, 1)
	tests := []struct {
		name    string
		o       Override
		wantErr bool
	}{
		{"paid with date", Override{RuleID: "r", OccurrenceDate: day, Type: OverridePaid, PaidOn: day}, false},
		{"paid without date", Override{RuleID: "r", OccurrenceDate: day, Type: OverridePaid}, true},
		{"postponed with new date", Override{RuleID: "r", OccurrenceDate: day, Type: OverridePostponed, NewDate: day.AddDays(3)}, false},
		{"postponed without new date", Override{RuleID: "r", OccurrenceDate: day, Type: OverridePostponed}, true},
		{"skipped", Override{RuleID: "r", OccurrenceDate: day, Type: OverrideSkipped}, false},
		{"no rule", Override{OccurrenceDate: day, Type: OverrideSkipped}, true},
		{"unknown type", Override{RuleID: "r", OccurrenceDate: day, Type: "moved"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.o.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOverrideLastTouched(t *testing.T) {
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	o := Override{CreatedAt: created}
	if !o.LastTouched().Equal(created) {
		t.Errorf("LastTouched() should fall back to created_at")
	}
	o.UpdatedAt = created.Add(time.Hour)
	if !o.LastTouched().Equal(o.UpdatedAt) {
		t.Errorf("LastTouched() should prefer updated_at")
	}
}
