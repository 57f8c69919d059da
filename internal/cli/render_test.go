package cli

import (
	"strings"
	"testing"

	"bilancio/internal/core"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

func TestRenderTable(t *testing.T) {
	out := RenderTable(Table{
		Title:   "Rules",
		Headers: []string{"Name", "Amount"},
		Rows:    [][]string{{"Caffè", "3,00"}, {"---"}, {"Rent", "800,00"}},
		Numeric: []bool{false, true},
	})

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("got %d lines, want 8:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "Rules") {
		t.Errorf("title line = %q", lines[0])
	}

	// Every bordered line has the same display width even with multi-byte cells.
	want := lipgloss.Width(lines[1])
	for i, l := range lines[1:] {
		if got := lipgloss.Width(l); got != want {
			t.Errorf("line %d width = %d, want %d: %q", i+1, got, want, l)
		}
	}
	if !strings.Contains(out, "   3,00 ") {
		t.Errorf("numeric column should be right-aligned:\n%s", out)
	}
}

func TestRenderTableEmpty(t *testing.T) {
	if got := RenderTable(Table{}); got != "" {
		t.Errorf("RenderTable(empty) = %q, want empty", got)
	}
}

func TestRenderSnapshot(t *testing.T) {
	today := core.MustParseDate("2026-03-15")
	snap := core.Snapshot{
		MonthStart: core.MustParseDate("2026-03-01"),
		MonthEnd:   core.MustParseDate("2026-03-31"),
		AsOf:       today,
		Rows: []core.UnifiedRow{
			{
				Kind: core.Recurring, Type: core.Expense, Category: "Casa", Description: "Rent",
				Amount: decimal.RequireFromString("800"), EffectiveDate: core.MustParseDate("2026-03-01"),
				Status: core.StatusPending,
			},
			{
				Kind: core.OneTime, Type: core.Income, Category: "Lavoro", Description: "Salary",
				Amount: decimal.RequireFromString("2500"), EffectiveDate: core.MustParseDate("2026-03-27"),
				IsPaid: true, Status: core.StatusPaid,
			},
		},
		Totals: core.Totals{
			TotalIncome:    decimal.RequireFromString("2500"),
			TotalExpenses:  decimal.RequireFromString("800"),
			RemainingToPay: decimal.RequireFromString("800"),
		},
	}

	out := RenderSnapshot(snap, today)
	for _, want := range []string{"March 2026", "Rent", "€800,00", "Pending !", "Salary", "€2500,00", "Remaining to pay"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Paid !") {
		t.Errorf("paid rows must not be flagged overdue:\n%s", out)
	}
}

func TestRenderSnapshotEmptyRange(t *testing.T) {
	snap := core.Snapshot{
		MonthStart: core.MustParseDate("2026-01-01"),
		MonthEnd:   core.MustParseDate("2026-03-31"),
	}
	out := RenderSnapshot(snap, core.MustParseDate("2026-01-10"))
	if !strings.Contains(out, "January 2026 to March 2026") {
		t.Errorf("range title missing:\n%s", out)
	}
	if !strings.Contains(out, "No rows in this period") {
		t.Errorf("empty marker missing:\n%s", out)
	}
}
