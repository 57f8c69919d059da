package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bilancio/internal/core"
)

func (r *Repository) ListOwners(ctx context.Context) ([]core.Owner, error) {
	rows, err := r.query(ctx, `SELECT id, email, display_name FROM budget_owners ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var owners []core.Owner
	for rows.Next() {
		var o core.Owner
		if err := rows.Scan(&o.ID, &o.Email, &o.DisplayName); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}

func (r *Repository) GetOwner(ctx context.Context, id string) (core.Owner, error) {
	var o core.Owner
	err := r.queryRow(ctx, `SELECT id, email, display_name FROM budget_owners WHERE id = ?`, id).
		Scan(&o.ID, &o.Email, &o.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Owner{}, fmt.Errorf("owner %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Owner{}, fmt.Errorf("get owner: %w", err)
	}
	return o, nil
}

// SaveOwner inserts the owner or refreshes its contact details.
func (r *Repository) SaveOwner(ctx context.Context, o core.Owner) error {
	_, err := r.exec(ctx, `
		INSERT INTO budget_owners (id, email, display_name) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name`,
		o.ID, o.Email, o.DisplayName)
	if err != nil {
		return fmt.Errorf("save owner: %w", err)
	}
	return nil
}
