package budget

import (
	"sort"

	"bilancio/internal/core"
)

// Resolution is the outcome of applying overrides to one scheduled occurrence.
type Resolution struct {
	EffectiveDate core.Date
	IsPaid        bool
	PaidOn        core.Date
	OccurrenceID  string // winning override id, empty when none matched
	OverrideType  core.OverrideType
	Matched       bool
}

// ResolveOverride applies the winning override for (ruleID, baseDate).
//
// Only overrides with the same rule and the same calendar day are considered. When
// several match, the most recently updated one wins (created_at when never updated)
// and the others are ignored. Input order breaks ties.
func ResolveOverride(baseDate core.Date, ruleID string, overrides []core.Override) Resolution {
	res := Resolution{EffectiveDate: baseDate}
	winner, ok := winningOverride(baseDate, ruleID, overrides)
	if !ok {
		return res
	}

	res.Matched = true
	res.OccurrenceID = winner.ID
	res.OverrideType = winner.Type

	switch winner.Type {
	case core.OverridePostponed:
		if !winner.NewDate.IsZero() {
			res.EffectiveDate = winner.NewDate
		}
	case core.OverridePaid:
		if !winner.PaidOn.IsZero() {
			res.IsPaid = true
			res.PaidOn = winner.PaidOn
		}
	case core.OverrideSkipped:
		// kept in the output; consumers see OverrideType
	default:
		// unknown kinds still claim the occurrence id but change nothing
	}
	return res
}

func winningOverride(baseDate core.Date, ruleID string, overrides []core.Override) (core.Override, bool) {
	if baseDate.IsZero() || ruleID == "" {
		return core.Override{}, false
	}

	var matches []core.Override
	for _, o := range overrides {
		if o.RuleID == ruleID && sameDay(o.OccurrenceDate, baseDate) {
			matches = append(matches, o)
		}
	}
	if len(matches) == 0 {
		return core.Override{}, false
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].LastTouched().After(matches[j].LastTouched())
	})
	return matches[0], true
}

// OccurrenceID is the synthetic identity of an occurrence with no override.
func OccurrenceID(ruleID string, effective core.Date) string {
	return ruleID + ":" + effective.String()
}
