package budget

import (
	"bilancio/internal/core"
)

// BuildOneTimeRows maps every entry due in [windowStart, windowEnd) to a row.
// Entries without a due date are dropped.
func BuildOneTimeRows(entries []core.OneTimeEntry, windowStart, windowEnd core.Date) []core.UnifiedRow {
	w := Window{Start: windowStart, End: windowEnd}
	var rows []core.UnifiedRow
	for _, e := range entries {
		if !w.Contains(e.DueDate) {
			continue
		}
		rows = append(rows, core.UnifiedRow{
			ID:            e.ID,
			Kind:          core.OneTime,
			Type:          e.Type,
			Category:      e.Category,
			Description:   e.Description,
			Amount:        e.Amount,
			EffectiveDate: e.DueDate,
			DueDate:       e.DueDate,
			Date:          e.DueDate,
			IsPaid:        e.IsPaid(),
			Status:        e.Status,
		})
	}
	return rows
}

// BuildRecurringRows expands every active rule in [windowStart, windowEnd) and
// applies overrides. Window membership is decided on the post-override date, so a
// postponement can move an occurrence into or out of the window.
func BuildRecurringRows(entries []core.OneTimeEntry, rules []core.Rule, overrides []core.Override, windowStart, windowEnd core.Date) []core.UnifiedRow {
	w := Window{Start: windowStart, End: windowEnd}
	if w.Empty() {
		return nil
	}

	byID := make(map[string]core.OneTimeEntry, len(entries))
	for _, e := range entries {
		if _, dup := byID[e.ID]; !dup {
			byID[e.ID] = e
		}
	}

	var rows []core.UnifiedRow
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		gen, err := GeneratorFor(rule.Frequency)
		if err != nil {
			continue
		}

		var base *core.OneTimeEntry
		if e, ok := byID[rule.EntryID]; ok && rule.EntryID != "" {
			base = &e
		}
		anchor := ruleAnchor(rule, base)
		if anchor.IsZero() {
			continue
		}

		candidates := gen.Occurrences(anchor, rule, w)
		candidates = append(candidates, postponedInto(gen, anchor, rule, overrides, w)...)

		seen := make(map[string]struct{}, len(candidates))
		for _, occ := range candidates {
			if _, ok := seen[occ.String()]; ok {
				continue
			}
			seen[occ.String()] = struct{}{}

			res := ResolveOverride(occ, rule.ID, overrides)
			if !w.Contains(res.EffectiveDate) {
				continue
			}
			rows = append(rows, recurringRow(rule, base, occ, res))
		}
	}
	return rows
}

// IsScheduled reports whether the rule, ignoring overrides and its active flag,
// generates an occurrence on d. base is the rule's linked entry, if any.
func IsScheduled(rule core.Rule, base *core.OneTimeEntry, d core.Date) bool {
	gen, err := GeneratorFor(rule.Frequency)
	if err != nil || d.IsZero() {
		return false
	}
	anchor := ruleAnchor(rule, base)
	if anchor.IsZero() {
		return false
	}
	return len(gen.Occurrences(anchor, rule, Window{Start: d, End: d.AddDays(1)})) == 1
}

func ruleAnchor(rule core.Rule, base *core.OneTimeEntry) core.Date {
	if rule.StartAnchor.IsZero() && base != nil {
		return base.DueDate
	}
	return rule.StartAnchor
}

// postponedInto returns scheduled dates outside w whose override moves them into w.
func postponedInto(gen Generator, anchor core.Date, rule core.Rule, overrides []core.Override, w Window) []core.Date {
	var out []core.Date
	for _, o := range overrides {
		if o.RuleID != rule.ID || o.Type != core.OverridePostponed {
			continue
		}
		if o.OccurrenceDate.IsZero() || w.Contains(o.OccurrenceDate) || !w.Contains(o.NewDate) {
			continue
		}
		day := Window{Start: o.OccurrenceDate, End: o.OccurrenceDate.AddDays(1)}
		if len(gen.Occurrences(anchor, rule, day)) == 1 {
			out = append(out, o.OccurrenceDate)
		}
	}
	return out
}

func recurringRow(rule core.Rule, base *core.OneTimeEntry, occ core.Date, res Resolution) core.UnifiedRow {
	row := core.UnifiedRow{
		ID:             rule.ID,
		Kind:           core.Recurring,
		RuleID:         rule.ID,
		OccurrenceID:   res.OccurrenceID,
		OccurrenceDate: occ,
		Type:           rule.Type,
		Category:       rule.Category,
		Description:    rule.Description,
		Amount:         rule.Amount,
		EffectiveDate:  res.EffectiveDate,
		DueDate:        res.EffectiveDate,
		Date:           res.EffectiveDate,
		IsPaid:         res.IsPaid,
		OverrideType:   res.OverrideType,
	}
	if row.OccurrenceID == "" {
		row.OccurrenceID = OccurrenceID(rule.ID, res.EffectiveDate)
	}

	if base != nil {
		if base.Type.Valid() {
			row.Type = base.Type
		}
		if base.Category != "" {
			row.Category = base.Category
		}
		if base.Description != "" {
			row.Description = base.Description
		}
		if !base.Amount.IsZero() {
			row.Amount = base.Amount
		}
	}
	return row
}
