package budget

import "bilancio/internal/core"

// RangeInput asks for the rows with an effective date in [Start, End).
type RangeInput struct {
	Entries    []core.OneTimeEntry
	Rules      []core.Rule
	Overrides  []core.Override
	Start      core.Date
	End        core.Date
	TodayLocal core.Date
	UnpaidOnly bool
}

// ComputeRange composes one snapshot per month covering [Start, End) and keeps the
// rows inside the range. The result's MonthEnd is the last day of the range.
func ComputeRange(in RangeInput) (core.Snapshot, error) {
	if err := ValidateRange(in.Start, in.End); err != nil {
		return core.Snapshot{}, err
	}
	w := Window{Start: in.Start, End: in.End}

	rows := []core.UnifiedRow{}
	for m := in.Start.FirstOfMonth(); m.Before(in.End); m = addMonths(m, 1) {
		snap, err := ComputeSnapshot(SnapshotInput{
			Entries:    in.Entries,
			Rules:      in.Rules,
			Overrides:  in.Overrides,
			MonthStart: m,
			MonthEnd:   m,
			TodayLocal: in.TodayLocal,
		})
		if err != nil {
			return core.Snapshot{}, err
		}
		for _, r := range snap.Rows {
			if !w.Contains(r.EffectiveDate) {
				continue
			}
			if in.UnpaidOnly && r.IsPaid {
				continue
			}
			rows = append(rows, r)
		}
	}
	sortRows(rows)

	return core.Snapshot{
		MonthStart: in.Start,
		MonthEnd:   in.End.AddDays(-1),
		AsOf:       in.TodayLocal,
		Rows:       rows,
		Totals:     ComputeTotals(rows),
	}, nil
}
