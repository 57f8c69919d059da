package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bilancio/internal/core"
)

const entryColumns = `id, entry_type, category, description, amount, due_date, paid_on, status`

func (r *Repository) ListEntries(ctx context.Context, ownerID string) ([]core.OneTimeEntry, error) {
	rows, err := r.query(ctx,
		`SELECT `+entryColumns+` FROM budget_entries WHERE owner_id = ? ORDER BY due_date, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []core.OneTimeEntry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *Repository) GetEntry(ctx context.Context, ownerID, id string) (core.OneTimeEntry, error) {
	row := r.queryRow(ctx,
		`SELECT `+entryColumns+` FROM budget_entries WHERE owner_id = ? AND id = ?`, ownerID, id)
	e, err := r.scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.OneTimeEntry{}, fmt.Errorf("entry %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.OneTimeEntry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

func (r *Repository) SaveEntry(ctx context.Context, ownerID string, e core.OneTimeEntry) error {
	now := formatTimestamp(r.now())
	res, err := r.exec(ctx, `
		INSERT INTO budget_entries
			(id, owner_id, entry_type, category, description, amount, due_date, paid_on, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			entry_type = excluded.entry_type,
			category = excluded.category,
			description = excluded.description,
			amount = excluded.amount,
			due_date = excluded.due_date,
			paid_on = excluded.paid_on,
			status = excluded.status,
			updated_at = excluded.updated_at
		WHERE budget_entries.owner_id = excluded.owner_id`,
		e.ID, ownerID, string(e.Type), e.Category, e.Description, e.Amount,
		e.DueDate, e.PaidOn, e.Status, now, now)
	if err != nil {
		return fmt.Errorf("save entry: %w", err)
	}
	return checkAffected(res, "entry", e.ID)
}

func (r *Repository) DeleteEntry(ctx context.Context, ownerID, id string) error {
	res, err := r.exec(ctx, `DELETE FROM budget_entries WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return checkAffected(res, "entry", id)
}

func (r *Repository) scanEntry(sc scanner) (core.OneTimeEntry, error) {
	var (
		e         core.OneTimeEntry
		typ       string
		due, paid sql.NullString
	)
	if err := sc.Scan(&e.ID, &typ, &e.Category, &e.Description, &e.Amount, &due, &paid, &e.Status); err != nil {
		return core.OneTimeEntry{}, err
	}
	e.Type = core.EntryType(typ)
	e.DueDate = r.parseDate(due, "budget_entries", "due_date", e.ID)
	e.PaidOn = r.parseDate(paid, "budget_entries", "paid_on", e.ID)
	return e, nil
}
