// Package services provides business logic and orchestration services.
//
// This file holds the strategies that decide whether a snapshot row deserves a
// payment reminder. Each checker looks at one condition; ChainChecker combines them.
package services

import (
	"bilancio/internal/core"
)

// Dueness classifies a row for reminder purposes.
type Dueness int

const (
	NotDue Dueness = iota
	DueSoon
	Overdue
)

func (d Dueness) String() string {
	switch d {
	case DueSoon:
		return "due_soon"
	case Overdue:
		return "overdue"
	default:
		return "not_due"
	}
}

// DuenessChecker is the strategy interface for classifying a row against today.
type DuenessChecker interface {
	Check(row core.UnifiedRow, today core.Date) Dueness
}

// OverdueChecker flags unpaid expenses whose effective date has passed.
type OverdueChecker struct{}

func (OverdueChecker) Check(row core.UnifiedRow, today core.Date) Dueness {
	if row.Type != core.Expense || row.EffectiveDate.IsZero() || !row.IsOverdue(today) {
		return NotDue
	}
	return Overdue
}

// HorizonChecker flags unpaid expenses due between today and Days days from now,
// both ends included.
type HorizonChecker struct {
	Days int
}

func (h HorizonChecker) Check(row core.UnifiedRow, today core.Date) Dueness {
	if row.Type != core.Expense || row.IsPaid || row.EffectiveDate.IsZero() {
		return NotDue
	}
	if row.EffectiveDate.Before(today) || row.EffectiveDate.After(today.AddDays(h.Days)) {
		return NotDue
	}
	return DueSoon
}

// ChainChecker returns the first classification other than NotDue.
type ChainChecker []DuenessChecker

func (c ChainChecker) Check(row core.UnifiedRow, today core.Date) Dueness {
	for _, checker := range c {
		if d := checker.Check(row, today); d != NotDue {
			return d
		}
	}
	return NotDue
}

// DefaultDuenessChecker flags overdue expenses, then ones due within horizonDays.
func DefaultDuenessChecker(horizonDays int) DuenessChecker {
	return ChainChecker{OverdueChecker{}, HorizonChecker{Days: max(horizonDays, 0)}}
}
