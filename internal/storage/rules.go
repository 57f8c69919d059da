package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bilancio/internal/core"
)

const ruleColumns = `id, entry_id, entry_type, category, description, amount, frequency,
	day_of_month, day_of_week, interval_count, start_anchor, active`

func (r *Repository) ListRules(ctx context.Context, ownerID string) ([]core.Rule, error) {
	rows, err := r.query(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []core.Rule
	for rows.Next() {
		rule, err := r.scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *Repository) GetRule(ctx context.Context, ownerID, id string) (core.Rule, error) {
	rule, err := r.scanRule(r.queryRow(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE owner_id = ? AND id = ?`, ownerID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Rule{}, fmt.Errorf("rule %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Rule{}, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

func (r *Repository) SaveRule(ctx context.Context, ownerID string, rule core.Rule) error {
	var dow sql.NullInt64
	if rule.DayOfWeek != nil {
		dow = sql.NullInt64{Int64: int64(*rule.DayOfWeek), Valid: true}
	}

	now := formatTimestamp(r.now())
	res, err := r.exec(ctx, `
		INSERT INTO recurring_rules
			(id, owner_id, entry_id, entry_type, category, description, amount, frequency,
			 day_of_month, day_of_week, interval_count, start_anchor, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			entry_id = excluded.entry_id,
			entry_type = excluded.entry_type,
			category = excluded.category,
			description = excluded.description,
			amount = excluded.amount,
			frequency = excluded.frequency,
			day_of_month = excluded.day_of_month,
			day_of_week = excluded.day_of_week,
			interval_count = excluded.interval_count,
			start_anchor = excluded.start_anchor,
			active = excluded.active,
			updated_at = excluded.updated_at
		WHERE recurring_rules.owner_id = excluded.owner_id`,
		rule.ID, ownerID, rule.EntryID, string(rule.Type), rule.Category, rule.Description, rule.Amount,
		string(rule.Frequency), rule.DayOfMonth, dow, rule.Interval, rule.StartAnchor, rule.Active, now, now)
	if err != nil {
		return fmt.Errorf("save rule: %w", err)
	}
	return checkAffected(res, "rule", rule.ID)
}

// DeleteRule removes the rule and its overrides in one transaction.
func (r *Repository) DeleteRule(ctx context.Context, ownerID, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		r.rebind(`DELETE FROM occurrence_overrides WHERE owner_id = ? AND rule_id = ?`), ownerID, id); err != nil {
		return fmt.Errorf("delete rule overrides: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		r.rebind(`DELETE FROM recurring_rules WHERE owner_id = ? AND id = ?`), ownerID, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if err := checkAffected(res, "rule", id); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repository) scanRule(sc scanner) (core.Rule, error) {
	var (
		rule      core.Rule
		typ, freq string
		dow       sql.NullInt64
		anchor    sql.NullString
	)
	err := sc.Scan(&rule.ID, &rule.EntryID, &typ, &rule.Category, &rule.Description, &rule.Amount, &freq,
		&rule.DayOfMonth, &dow, &rule.Interval, &anchor, &rule.Active)
	if err != nil {
		return core.Rule{}, err
	}
	rule.Type = core.EntryType(typ)
	rule.Frequency = core.Frequency(freq)
	if dow.Valid {
		v := int(dow.Int64)
		rule.DayOfWeek = &v
	}
	rule.StartAnchor = r.parseDate(anchor, "recurring_rules", "start_anchor", rule.ID)
	return rule, nil
}
