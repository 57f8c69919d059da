package budget

import (
	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

// ComputeTotals sums income as signed amounts and expenses as absolute values.
// RemainingToPay covers unpaid expenses only.
func ComputeTotals(rows []core.UnifiedRow) core.Totals {
	t := core.Totals{
		TotalIncome:    decimal.Zero,
		TotalExpenses:  decimal.Zero,
		RemainingToPay: decimal.Zero,
	}
	for _, r := range rows {
		switch r.Type {
		case core.Income:
			t.TotalIncome = t.TotalIncome.Add(r.Amount)
		case core.Expense:
			t.TotalExpenses = t.TotalExpenses.Add(r.Amount.Abs())
			if !r.IsPaid {
				t.RemainingToPay = t.RemainingToPay.Add(r.Amount.Abs())
			}
		}
	}
	return t
}

// DeriveStatus returns the display status of a row.
func DeriveStatus(r core.UnifiedRow) string {
	if r.IsPaid {
		return core.StatusPaid
	}
	if r.Status != "" {
		return r.Status
	}
	return core.StatusPending
}
