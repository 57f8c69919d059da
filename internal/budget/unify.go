package budget

import (
	"sort"

	"bilancio/internal/core"
)

// UnifyRows merges one-time and recurring rows for [windowStart, windowEnd), drops
// duplicates (first wins) and sorts by effective date, occurrence id, then id.
func UnifyRows(entries []core.OneTimeEntry, rules []core.Rule, overrides []core.Override, windowStart, windowEnd core.Date) []core.UnifiedRow {
	rows := BuildOneTimeRows(entries, windowStart, windowEnd)
	rows = append(rows, BuildRecurringRows(entries, rules, overrides, windowStart, windowEnd)...)

	rows = dedupRows(rows)
	sortRows(rows)
	return rows
}

func rowKey(r core.UnifiedRow) string {
	if r.Kind == core.Recurring {
		return "rec|" + r.RuleID + "|" + r.EffectiveDate.String()
	}
	return "one|" + r.ID + "|" + r.EffectiveDate.String()
}

func dedupRows(rows []core.UnifiedRow) []core.UnifiedRow {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		k := rowKey(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

func sortRows(rows []core.UnifiedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.EffectiveDate.Equal(b.EffectiveDate) {
			return a.EffectiveDate.Before(b.EffectiveDate)
		}
		if a.OccurrenceID != b.OccurrenceID {
			return a.OccurrenceID < b.OccurrenceID
		}
		return a.ID < b.ID
	})
}
