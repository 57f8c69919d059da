package budget

import (
	"fmt"

	"bilancio/internal/core"
)

// Generator produces the ordered candidate dates of a rule within a window.
// Each frequency has its own implementation.
type Generator interface {
	Occurrences(anchor core.Date, rule core.Rule, w Window) []core.Date
}

// MonthlyGenerator emits on the rule's day of month every Interval months.
type MonthlyGenerator struct{}

func (MonthlyGenerator) Occurrences(anchor core.Date, rule core.Rule, w Window) []core.Date {
	return GenerateMonthly(anchor, rule.DayOfMonth, rule.Interval, w.Start, w.End)
}

// WeeklyGenerator steps from the anchor by a number of weeks. A zero Weeks takes
// the rule's interval.
type WeeklyGenerator struct {
	Weeks int
}

func (g WeeklyGenerator) Occurrences(anchor core.Date, rule core.Rule, w Window) []core.Date {
	weeks := g.Weeks
	if weeks == 0 {
		weeks = rule.Interval
	}
	return GenerateWeekly(anchor, weeks, w.Start, w.End)
}

// GeneratorFor returns the generator for a frequency.
func GeneratorFor(f core.Frequency) (Generator, error) {
	switch f {
	case core.Monthly:
		return MonthlyGenerator{}, nil
	case core.Weekly:
		return WeeklyGenerator{}, nil
	case core.Biweekly:
		return WeeklyGenerator{Weeks: 2}, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, f)
	}
}

// GenerateMonthly returns the dates in [windowStart, windowEnd) of a monthly series.
//
// A month is due when the months elapsed since the anchor's month is non-negative and
// a multiple of intervalMonths (values below 1 mean 1). The day is dayOfMonth clamped
// to the month length; dayOfMonth <= 0 uses the anchor's day.
func GenerateMonthly(anchor core.Date, dayOfMonth, intervalMonths int, windowStart, windowEnd core.Date) []core.Date {
	w := Window{Start: windowStart, End: windowEnd}
	if anchor.IsZero() || w.Empty() || !anchor.Before(windowEnd) {
		return nil
	}
	interval := max(intervalMonths, 1)
	day := dayOfMonth
	if day <= 0 {
		day = anchor.Day()
	}

	var out []core.Date
	for m := windowStart.FirstOfMonth(); m.Before(windowEnd); m = addMonths(m, 1) {
		elapsed := monthsBetween(anchor, m)
		if elapsed < 0 || elapsed%interval != 0 {
			continue
		}
		d := core.NewDate(m.Year(), m.Month(), min(day, core.DaysInMonth(m.Year(), m.Month())))
		if w.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}

// GenerateWeekly returns the dates in [windowStart, windowEnd) reached by stepping
// from the anchor by intervalWeeks (values below 1 mean 1).
func GenerateWeekly(anchor core.Date, intervalWeeks int, windowStart, windowEnd core.Date) []core.Date {
	w := Window{Start: windowStart, End: windowEnd}
	if anchor.IsZero() || w.Empty() {
		return nil
	}
	step := max(intervalWeeks, 1) * 7

	d := anchor
	if d.Before(windowStart) {
		steps := (daysBetween(d, windowStart) + step - 1) / step
		d = d.AddDays(steps * step)
	}

	var out []core.Date
	for ; d.Before(windowEnd); d = d.AddDays(step) {
		out = append(out, d)
	}
	return out
}
