package sheets

import (
	"context"
	"fmt"

	"bilancio/internal/core"
)

// Ports for outbound adapters.
type (
	// SnapshotExporter writes a computed snapshot somewhere a human can read it.
	SnapshotExporter interface {
		// ExportSnapshot replaces any previous export for the same owner and period
		// and returns a reference to what was written.
		ExportSnapshot(ctx context.Context, ownerID string, snap core.Snapshot) (ref string, err error)
	}
)

// Header is the column layout shared by every exporter.
var Header = []string{"Date", "Kind", "Type", "Category", "Description", "Amount", "Status", "Occurrence"}

// Title names the export for an owner and period, e.g. "alice 2026-03" or
// "alice 2026-01..2026-03" when the snapshot spans several months.
func Title(ownerID string, snap core.Snapshot) string {
	start := snap.MonthStart.Format("2006-01")
	end := snap.MonthEnd.Format("2006-01")
	if snap.MonthEnd.IsZero() || start == end {
		return fmt.Sprintf("%s %s", ownerID, start)
	}
	return fmt.Sprintf("%s %s..%s", ownerID, start, end)
}

// Rows renders the snapshot as header, one line per row and a totals block.
func Rows(snap core.Snapshot) [][]string {
	out := make([][]string, 0, len(snap.Rows)+5)
	out = append(out, Header)
	for _, r := range snap.Rows {
		out = append(out, []string{
			r.EffectiveDate.String(),
			string(r.Kind),
			string(r.Type),
			r.Category,
			r.Description,
			r.Amount.StringFixed(2),
			r.Status,
			r.OccurrenceID,
		})
	}
	out = append(out,
		[]string{},
		[]string{"Total income", "", "", "", "", snap.Totals.TotalIncome.StringFixed(2)},
		[]string{"Total expenses", "", "", "", "", snap.Totals.TotalExpenses.StringFixed(2)},
		[]string{"Remaining to pay", "", "", "", "", snap.Totals.RemainingToPay.StringFixed(2)},
	)
	return out
}
