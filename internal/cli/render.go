package cli

import (
	"fmt"
	"strings"

	"bilancio/internal/core"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	ColorBorder = lipgloss.Color("#403E3C")
	ColorText   = lipgloss.Color("#FFFCF0")
	ColorMuted  = lipgloss.Color("#878580")
	ColorAccent = lipgloss.Color("#3AA99F")
	ColorIncome = lipgloss.Color("#879A39")
	ColorDue    = lipgloss.Color("#DA702C")
	ColorLate   = lipgloss.Color("#D14D41")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(ColorText).Align(lipgloss.Center)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	valueStyle  = lipgloss.NewStyle().Foreground(ColorText)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	borderStyle = lipgloss.NewStyle().Foreground(ColorBorder)
	incomeStyle = lipgloss.NewStyle().Foreground(ColorIncome)
	dueStyle    = lipgloss.NewStyle().Foreground(ColorDue)
	lateStyle   = lipgloss.NewStyle().Foreground(ColorLate).Bold(true)
)

// Table is a bordered text table. Every column but the first is right-aligned
// when Numeric marks it.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
	Numeric []bool
}

// RenderTitle renders a centered title in a rounded box.
func RenderTitle(title string) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Width(60).
		Align(lipgloss.Center).
		Padding(0, 1)
	return box.Render(titleStyle.Render(title))
}

// RenderTable renders t with box-drawing borders. A row holding the single
// cell "---" becomes a separator.
func RenderTable(t Table) string {
	cols := len(t.Headers)
	if cols == 0 && len(t.Rows) > 0 {
		cols = len(t.Rows[0])
	}
	if cols == 0 {
		return ""
	}

	widths := make([]int, cols)
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < cols && i < len(row); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	var b strings.Builder
	if t.Title != "" {
		b.WriteString("  " + headerStyle.Render(t.Title) + "\n")
	}

	b.WriteString(rule(widths, "╭", "┬", "╮"))
	if len(t.Headers) > 0 {
		b.WriteString(line(t.Headers, widths, t.Numeric, headerStyle))
		b.WriteString(rule(widths, "├", "┼", "┤"))
	}
	for _, row := range t.Rows {
		if len(row) == 1 && row[0] == "---" {
			b.WriteString(rule(widths, "├", "┼", "┤"))
			continue
		}
		b.WriteString(line(row, widths, t.Numeric, valueStyle))
	}
	b.WriteString(rule(widths, "╰", "┴", "╯"))
	return b.String()
}

func rule(widths []int, left, mid, right string) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w+2)
	}
	return borderStyle.Render(left+strings.Join(parts, mid)+right) + "\n"
}

func line(cells []string, widths []int, numeric []bool, style lipgloss.Style) string {
	var b strings.Builder
	b.WriteString(borderStyle.Render("│"))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		pad := strings.Repeat(" ", w-lipgloss.Width(cell))
		if i < len(numeric) && numeric[i] {
			cell = pad + cell
		} else {
			cell += pad
		}
		b.WriteString(style.Render(" " + cell + " "))
		b.WriteString(borderStyle.Render("│"))
	}
	b.WriteString("\n")
	return b.String()
}

// RenderSnapshot renders the rows of a snapshot followed by its totals.
// Unpaid rows due before today are flagged.
func RenderSnapshot(snap core.Snapshot, today core.Date) string {
	var b strings.Builder
	b.WriteString(RenderTitle(snapshotTitle(snap)))
	b.WriteString("\n")

	if len(snap.Rows) == 0 {
		b.WriteString(mutedStyle.Render("  No rows in this period") + "\n")
	} else {
		t := Table{
			Headers: []string{"Date", "Type", "Category", "Description", "Amount", "Status"},
			Numeric: []bool{false, false, false, false, true, false},
		}
		for _, r := range snap.Rows {
			t.Rows = append(t.Rows, []string{
				r.EffectiveDate.String(),
				string(r.Type),
				r.Category,
				r.Description,
				core.FormatAmount(r.Amount),
				rowStatus(r, today),
			})
		}
		b.WriteString(RenderTable(t))
	}

	b.WriteString(RenderTotals(snap.Totals))
	return b.String()
}

// RenderTotals renders the three aggregate figures of a snapshot.
func RenderTotals(t core.Totals) string {
	return fmt.Sprintf("  %s %s\n  %s %s\n  %s %s\n",
		mutedStyle.Render("Income          "), incomeStyle.Render(core.FormatAmount(t.TotalIncome)),
		mutedStyle.Render("Expenses        "), valueStyle.Render(core.FormatAmount(t.TotalExpenses)),
		mutedStyle.Render("Remaining to pay"), dueStyle.Render(core.FormatAmount(t.RemainingToPay)),
	)
}

func rowStatus(r core.UnifiedRow, today core.Date) string {
	status := r.Status
	if r.OverrideType != "" {
		status += " (" + string(r.OverrideType) + ")"
	}
	if r.IsOverdue(today) {
		return lateStyle.Render(status + " !")
	}
	return status
}

func snapshotTitle(snap core.Snapshot) string {
	start := snap.MonthStart.Format("January 2006")
	if snap.MonthEnd.IsZero() || snap.MonthStart.Format("2006-01") == snap.MonthEnd.Format("2006-01") {
		return "Budget · " + start
	}
	return "Budget · " + start + " to " + snap.MonthEnd.Format("January 2006")
}
