// Package notify delivers payment reminders to budget owners.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bilancio/internal/core"

	"github.com/shopspring/decimal"
)

// Reminder lists one owner's unpaid expenses that need attention.
type Reminder struct {
	Owner    core.Owner
	Today    core.Date
	Overdue  []core.UnifiedRow
	Upcoming []core.UnifiedRow
}

// Empty reports whether there is nothing to remind about.
func (r Reminder) Empty() bool {
	return len(r.Overdue) == 0 && len(r.Upcoming) == 0
}

// Total sums the amounts of every listed row.
func (r Reminder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, row := range r.Overdue {
		total = total.Add(row.Amount)
	}
	for _, row := range r.Upcoming {
		total = total.Add(row.Amount)
	}
	return total
}

type Notifier interface {
	SendReminder(ctx context.Context, r Reminder) error
}

// Render produces the subject and plain-text body of a reminder e-mail.
func Render(r Reminder) (subject, body string) {
	if len(r.Overdue) > 0 {
		subject = fmt.Sprintf("%d overdue payment(s) to settle", len(r.Overdue))
	} else {
		subject = fmt.Sprintf("%d payment(s) due soon", len(r.Upcoming))
	}

	name := r.Owner.DisplayName
	if name == "" {
		name = r.Owner.ID
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	if len(r.Overdue) > 0 {
		b.WriteString("These payments are overdue:\n")
		writeRows(&b, r.Overdue)
		b.WriteString("\n")
	}
	if len(r.Upcoming) > 0 {
		b.WriteString("These payments are coming up:\n")
		writeRows(&b, r.Upcoming)
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Total: %s\n\nBilancio", core.FormatAmount(r.Total()))
	return subject, b.String()
}

func writeRows(b *strings.Builder, rows []core.UnifiedRow) {
	for _, row := range rows {
		fmt.Fprintf(b, "  %s  %-30s %10s\n", row.EffectiveDate, row.Description, core.FormatAmount(row.Amount))
	}
}

// LogNotifier writes reminders to the log instead of sending them.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendReminder(ctx context.Context, r Reminder) error {
	subject, _ := Render(r)
	n.logger.InfoContext(ctx, "Payment reminder",
		"owner_id", r.Owner.ID,
		"subject", subject,
		"overdue", len(r.Overdue),
		"upcoming", len(r.Upcoming),
		"total", r.Total().StringFixed(2))
	return nil
}
