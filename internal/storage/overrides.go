package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bilancio/internal/core"
)

const overrideColumns = `id, rule_id, occurrence_date, override_type, paid_on, new_date, created_at, updated_at`

func (r *Repository) ListOverrides(ctx context.Context, ownerID string) ([]core.Override, error) {
	rows, err := r.query(ctx,
		`SELECT `+overrideColumns+` FROM occurrence_overrides WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var overrides []core.Override
	for rows.Next() {
		o, err := r.scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

func (r *Repository) GetOverride(ctx context.Context, ownerID, id string) (core.Override, error) {
	o, err := r.scanOverride(r.queryRow(ctx,
		`SELECT `+overrideColumns+` FROM occurrence_overrides WHERE owner_id = ? AND id = ?`, ownerID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Override{}, fmt.Errorf("override %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Override{}, fmt.Errorf("get override: %w", err)
	}
	return o, nil
}

func (r *Repository) SaveOverride(ctx context.Context, ownerID string, o core.Override) error {
	created, updated := o.CreatedAt, o.UpdatedAt
	if created.IsZero() {
		created = r.now()
	}
	if updated.IsZero() {
		updated = created
	}

	res, err := r.exec(ctx, `
		INSERT INTO occurrence_overrides
			(id, owner_id, rule_id, occurrence_date, override_type, paid_on, new_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			occurrence_date = excluded.occurrence_date,
			override_type = excluded.override_type,
			paid_on = excluded.paid_on,
			new_date = excluded.new_date,
			updated_at = excluded.updated_at
		WHERE occurrence_overrides.owner_id = excluded.owner_id`,
		o.ID, ownerID, o.RuleID, o.OccurrenceDate, string(o.Type), o.PaidOn, o.NewDate,
		formatTimestamp(created), formatTimestamp(updated))
	if err != nil {
		return fmt.Errorf("save override: %w", err)
	}
	return checkAffected(res, "override", o.ID)
}

func (r *Repository) DeleteOverride(ctx context.Context, ownerID, id string) error {
	res, err := r.exec(ctx, `DELETE FROM occurrence_overrides WHERE owner_id = ? AND id = ?`, ownerID, id)
	if err != nil {
		return fmt.Errorf("delete override: %w", err)
	}
	return checkAffected(res, "override", id)
}

func (r *Repository) scanOverride(sc scanner) (core.Override, error) {
	var (
		o                     core.Override
		typ                   string
		occ, paid, newDate    sql.NullString
		createdAt, updatedAt  sql.NullString
	)
	err := sc.Scan(&o.ID, &o.RuleID, &occ, &typ, &paid, &newDate, &createdAt, &updatedAt)
	if err != nil {
		return core.Override{}, err
	}
	o.Type = core.OverrideType(typ)
	o.OccurrenceDate = r.parseDate(occ, "occurrence_overrides", "occurrence_date", o.ID)
	o.PaidOn = r.parseDate(paid, "occurrence_overrides", "paid_on", o.ID)
	o.NewDate = r.parseDate(newDate, "occurrence_overrides", "new_date", o.ID)
	o.CreatedAt = parseTimestamp(createdAt)
	o.UpdatedAt = parseTimestamp(updatedAt)
	return o, nil
}
