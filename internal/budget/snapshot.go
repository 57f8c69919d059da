package budget

import (
	"bilancio/internal/core"
)

// SnapshotInput carries one owner's collections and the requested month range.
type SnapshotInput struct {
	Entries    []core.OneTimeEntry
	Rules      []core.Rule
	Overrides  []core.Override
	MonthStart core.Date
	MonthEnd   core.Date
	TodayLocal core.Date
}

// ComputeSnapshot builds the rows and totals for [MonthStart, first day of the month
// after MonthEnd). It fails only when the bounds are missing or inverted.
func ComputeSnapshot(in SnapshotInput) (core.Snapshot, error) {
	w, err := MonthWindow(in.MonthStart, in.MonthEnd)
	if err != nil {
		return core.Snapshot{}, err
	}

	rows := UnifyRows(in.Entries, in.Rules, in.Overrides, w.Start, w.End)
	if rows == nil {
		rows = []core.UnifiedRow{}
	}
	for i := range rows {
		rows[i].Status = DeriveStatus(rows[i])
	}

	return core.Snapshot{
		MonthStart: in.MonthStart,
		MonthEnd:   in.MonthEnd,
		AsOf:       in.TodayLocal,
		Rows:       rows,
		Totals:     ComputeTotals(rows),
	}, nil
}
