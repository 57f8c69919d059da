// Package budget expands recurring rules into dated occurrences, merges them with
// one-time entries, applies per-occurrence overrides and aggregates the result into
// a snapshot.
//
// Everything in this package is a pure function of its arguments. Callers fetch the
// input collections, already scoped to one owner, and own any memoization.
package budget

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"bilancio/internal/core"
)

var ErrInvalidWindow = errors.New("invalid window")

const secondsPerDay = 24 * 60 * 60

// Window is a half-open range of calendar dates [Start, End).
type Window struct {
	Start core.Date
	End   core.Date
}

// Empty reports whether the window contains no dates.
func (w Window) Empty() bool {
	return w.Start.IsZero() || w.End.IsZero() || !w.End.After(w.Start)
}

// Contains reports whether d falls in [Start, End). The zero date is never contained.
func (w Window) Contains(d core.Date) bool {
	if d.IsZero() || w.Empty() {
		return false
	}
	return !d.Before(w.Start) && d.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start, w.End)
}

// MonthWindow normalizes an inclusive month range to [monthStart, first day of the
// month after monthEnd), so the last calendar day of monthEnd's month is always in.
func MonthWindow(monthStart, monthEnd core.Date) (Window, error) {
	if monthStart.IsZero() || monthEnd.IsZero() {
		return Window{}, fmt.Errorf("%w: missing bound", ErrInvalidWindow)
	}
	if err := checkBounds(monthStart, monthEnd); err != nil {
		return Window{}, err
	}
	w := Window{Start: monthStart, End: addMonths(monthEnd.FirstOfMonth(), 1)}
	if w.Empty() || monthEnd.Before(monthStart) {
		return Window{}, fmt.Errorf("%w: %s is after %s", ErrInvalidWindow, monthStart, monthEnd)
	}
	return w, nil
}

// ParseWindow parses ISO bounds and normalizes them with MonthWindow.
func ParseWindow(startISO, endISO string) (Window, error) {
	start, err := core.ParseDate(startISO)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start: %v", ErrInvalidWindow, err)
	}
	end, err := core.ParseDate(endISO)
	if err != nil {
		return Window{}, fmt.Errorf("%w: end: %v", ErrInvalidWindow, err)
	}
	return MonthWindow(start, end)
}

// ParseMonth parses "YYYY-MM" into the first and last day of that month.
func ParseMonth(s string) (core.Date, core.Date, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: month %q", ErrInvalidWindow, s)
	}
	first := core.NewDate(t.Year(), int(t.Month()), 1)
	if err := checkBounds(first); err != nil {
		return core.Date{}, core.Date{}, err
	}
	return first, addMonths(first, 1).AddDays(-1), nil
}

// ValidateRange checks that [start, end) is non-empty and that both ends lie in
// the supported calendar years.
func ValidateRange(start, end core.Date) error {
	w := Window{Start: start, End: end}
	if w.Empty() {
		return fmt.Errorf("%w: range %s", ErrInvalidWindow, w)
	}
	return checkBounds(start, end.AddDays(-1))
}

func checkBounds(dates ...core.Date) error {
	for _, d := range dates {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidWindow, err)
		}
	}
	return nil
}

// monthsBetween counts whole calendar months from a's month to b's month.
func monthsBetween(a, b core.Date) int {
	return (b.Year()-a.Year())*12 + (b.Month() - a.Month())
}

// addMonths shifts the first of d's month by n months.
func addMonths(d core.Date, n int) core.Date {
	return core.NewDate(d.Year(), d.Month()+n, 1)
}

// daysBetween counts calendar days from a to b. Both are UTC midnights, so the
// Unix difference is an exact multiple of a day and never saturates.
func daysBetween(a, b core.Date) int {
	return int((b.Unix() - a.Unix()) / secondsPerDay)
}

func sameDay(a, b core.Date) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
