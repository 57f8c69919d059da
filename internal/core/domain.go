package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

const (
	Monthly  Frequency = "monthly"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
)

const (
	OverridePaid      OverrideType = "paid"
	OverridePostponed OverrideType = "postponed"
	OverrideSkipped   OverrideType = "skipped"
)

const maxDescriptionLen = 200

type (
	EntryType    string
	Frequency    string
	OverrideType string

	// OneTimeEntry is a single non-recurring transaction.
	OneTimeEntry struct {
		ID          string          `json:"id"`
		Type        EntryType       `json:"type"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount" hash:"string"`
		DueDate     Date            `json:"due_date" hash:"string"`
		PaidOn      Date            `json:"paid_on" hash:"string"`
		Status      string          `json:"status,omitempty"`
	}

	// Rule defines an open-ended series of occurrences until deactivated.
	Rule struct {
		ID          string          `json:"id"`
		EntryID     string          `json:"entry_id,omitempty"` // linked base entry
		Type        EntryType       `json:"type"`
		Category    string          `json:"category"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount" hash:"string"`
		Frequency   Frequency       `json:"frequency"`
		DayOfMonth  int             `json:"dom,omitempty"`
		DayOfWeek   *int            `json:"dow,omitempty"`
		Interval    int             `json:"interval,omitempty"`
		StartAnchor Date            `json:"start_anchor" hash:"string"`
		Active      bool            `json:"active"`
	}

	// Override alters a single scheduled occurrence of a rule.
	Override struct {
		ID             string       `json:"id"`
		RuleID         string       `json:"rule_id"`
		OccurrenceDate Date         `json:"occurrence_date" hash:"string"` // unmodified scheduled date
		Type           OverrideType `json:"override_type"`
		PaidOn         Date         `json:"paid_on" hash:"string"`
		NewDate        Date         `json:"new_date" hash:"string"`
		CreatedAt      time.Time    `json:"created_at" hash:"string"`
		UpdatedAt      time.Time    `json:"updated_at" hash:"string"`
	}

	// Owner is the account that budget data is scoped to.
	Owner struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	}
)

var (
	ErrNotFound            = errors.New("not found")
	ErrEmptyDescription    = errors.New("empty description")
	ErrDescriptionTooLong  = fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	ErrInvalidEntryType    = errors.New("invalid entry type")
	ErrInvalidFrequency    = errors.New("invalid frequency")
	ErrInvalidOverrideType = errors.New("invalid override type")
)

func (t EntryType) Valid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (f Frequency) Valid() bool {
	switch f {
	case Monthly, Weekly, Biweekly:
		return true
	default:
		return false
	}
}

func (o OverrideType) Valid() bool {
	switch o {
	case OverridePaid, OverridePostponed, OverrideSkipped:
		return true
	default:
		return false
	}
}

// IsPaid reports whether the entry carries a payment date.
func (e OneTimeEntry) IsPaid() bool {
	return !e.PaidOn.IsZero()
}

func (e OneTimeEntry) Validate() error {
	if !e.Type.Valid() {
		return ErrInvalidEntryType
	}
	if err := e.DueDate.Validate(); err != nil {
		return fmt.Errorf("invalid due date: %w", err)
	}
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	return ValidateAmount(e.Amount)
}

func (r Rule) Validate() error {
	if !r.Type.Valid() {
		return ErrInvalidEntryType
	}
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if r.StartAnchor.IsZero() && strings.TrimSpace(r.EntryID) == "" {
		return errors.New("start anchor is required when no base entry is linked")
	}
	if !r.StartAnchor.IsZero() {
		if err := r.StartAnchor.Validate(); err != nil {
			return fmt.Errorf("invalid start anchor: %w", err)
		}
	}
	if r.DayOfMonth < 0 || r.DayOfMonth > 31 {
		return fmt.Errorf("invalid day of month %d: must be between 1 and 31", r.DayOfMonth)
	}
	if r.DayOfWeek != nil && (*r.DayOfWeek < 0 || *r.DayOfWeek > 6) {
		return fmt.Errorf("invalid day of week %d: must be between 0 and 6", *r.DayOfWeek)
	}
	if r.Interval < 0 {
		return fmt.Errorf("invalid interval %d: must not be negative", r.Interval)
	}
	if err := validateDescription(r.Description); err != nil {
		return err
	}
	return ValidateAmount(r.Amount)
}

func (o Override) Validate() error {
	if strings.TrimSpace(o.RuleID) == "" {
		return errors.New("override must reference a rule")
	}
	if err := o.OccurrenceDate.Validate(); err != nil {
		return fmt.Errorf("invalid occurrence date: %w", err)
	}
	switch o.Type {
	case OverridePostponed:
		if o.NewDate.IsZero() {
			return errors.New("postponed override requires a new date")
		}
	case OverridePaid:
		if o.PaidOn.IsZero() {
			return errors.New("paid override requires a payment date")
		}
	case OverrideSkipped:
	default:
		return ErrInvalidOverrideType
	}
	return nil
}

// LastTouched is the timestamp used to pick between competing overrides.
func (o Override) LastTouched() time.Time {
	if !o.UpdatedAt.IsZero() {
		return o.UpdatedAt
	}
	return o.CreatedAt
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	return nil
}
