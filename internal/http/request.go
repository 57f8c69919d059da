package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/services"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks malformed requests, as opposed to well-formed but invalid data.
var errBadRequest = errors.New("bad request")

// decodeJSON reads a single JSON object into dst. An empty body is accepted
// when optional is set and leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && optional {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return fmt.Errorf("%w: body larger than %d bytes", errBadRequest, maxErr.Limit)
		}
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: body must contain a single JSON object", errBadRequest)
	}
	return nil
}

// sanitizeInput trims and strips control characters except tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// queryDate parses an optional ISO date query parameter.
func queryDate(q url.Values, key string) (core.Date, bool, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return core.Date{}, false, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, false, fmt.Errorf("%w: %s: %v", errBadRequest, key, err)
	}
	return d, true, nil
}

func parseAmount(n json.Number) (decimal.Decimal, error) {
	amount, err := core.ParseAmount(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q: %v", services.ErrValidation, n.String(), err)
	}
	return amount, nil
}

type entryRequest struct {
	Type        core.EntryType `json:"type"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Amount      json.Number    `json:"amount"`
	DueDate     core.Date      `json:"due_date"`
	PaidOn      core.Date      `json:"paid_on"`
	Status      string         `json:"status"`
}

func (req entryRequest) toEntry() (core.OneTimeEntry, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return core.OneTimeEntry{}, err
	}
	return core.OneTimeEntry{
		Type:        core.EntryType(strings.ToLower(strings.TrimSpace(string(req.Type)))),
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		DueDate:     req.DueDate,
		PaidOn:      req.PaidOn,
		Status:      sanitizeInput(req.Status),
	}, nil
}

type ruleRequest struct {
	EntryID     string         `json:"entry_id"`
	Type        core.EntryType `json:"type"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Amount      json.Number    `json:"amount"`
	Frequency   core.Frequency `json:"frequency"`
	DayOfMonth  int            `json:"dom"`
	DayOfWeek   *int           `json:"dow"`
	Interval    int            `json:"interval"`
	StartAnchor core.Date      `json:"start_anchor"`
	Active      *bool          `json:"active"`
}

// toRule builds the rule; an omitted active flag takes defaultActive.
func (req ruleRequest) toRule(defaultActive bool) (core.Rule, error) {
	amount, err := parseAmount(req.Amount)
	if err != nil {
		return core.Rule{}, err
	}
	active := defaultActive
	if req.Active != nil {
		active = *req.Active
	}
	return core.Rule{
		EntryID:     strings.TrimSpace(req.EntryID),
		Type:        core.EntryType(strings.ToLower(strings.TrimSpace(string(req.Type)))),
		Category:    sanitizeInput(req.Category),
		Description: sanitizeInput(req.Description),
		Amount:      amount,
		Frequency:   core.Frequency(strings.ToLower(strings.TrimSpace(string(req.Frequency)))),
		DayOfMonth:  req.DayOfMonth,
		DayOfWeek:   req.DayOfWeek,
		Interval:    req.Interval,
		StartAnchor: req.StartAnchor,
		Active:      active,
	}, nil
}

type occurrenceRequest struct {
	PaidOn  core.Date `json:"paid_on"`
	NewDate core.Date `json:"new_date"`
}

type ownerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}
