package core

import "github.com/shopspring/decimal"

const (
	OneTime   RowKind = "one_time"
	Recurring RowKind = "recurring"
)

// Display statuses derived per row.
const (
	StatusPaid    = "Paid"
	StatusPending = "Pending"
)

type RowKind string

// UnifiedRow is the single row shape shared by one-time entries and rule occurrences.
type UnifiedRow struct {
	ID             string          `json:"id"`
	Kind           RowKind         `json:"kind"`
	RuleID         string          `json:"rule_id,omitempty"`
	OccurrenceID   string          `json:"occurrence_id,omitempty"`
	OccurrenceDate Date            `json:"occurrence_date"`
	Type           EntryType       `json:"type"`
	Category       string          `json:"category"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	EffectiveDate  Date            `json:"effective_date"`
	DueDate        Date            `json:"due_date"`
	Date           Date            `json:"date"`
	IsPaid         bool            `json:"is_paid"`
	Status         string          `json:"status"`
	OverrideType   OverrideType    `json:"override_type,omitempty"`
}

// IsOverdue reports an unpaid row whose effective date is before today.
func (r UnifiedRow) IsOverdue(today Date) bool {
	return !r.IsPaid && r.EffectiveDate.Before(today)
}

// Totals aggregates a set of rows.
type Totals struct {
	TotalIncome    decimal.Decimal `json:"total_income"`
	TotalExpenses  decimal.Decimal `json:"total_expenses"`
	RemainingToPay decimal.Decimal `json:"remaining_to_pay"`
}

// Snapshot is the computed set of rows and totals for a window.
type Snapshot struct {
	MonthStart Date         `json:"month_start"`
	MonthEnd   Date         `json:"month_end"`
	AsOf       Date         `json:"as_of"`
	Rows       []UnifiedRow `json:"rows"`
	Totals     Totals       `json:"totals"`
}
