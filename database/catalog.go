package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"food-order-service/apperr"
	"food-order-service/models"
)

func (q *Queries) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	var (
		it     models.MenuItem
		bundle string
	)
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name, kind, price, available, bundle_items FROM menu_items WHERE id = ?", id).
		Scan(&it.ID, &it.Name, &it.Kind, &it.Price, &it.Available, &bundle)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.E(apperr.NotFound, "menu item %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	if bundle != "" {
		if err := json.Unmarshal([]byte(bundle), &it.BundleItems); err != nil {
			return nil, fmt.Errorf("decode bundle of %s: %w", id, err)
		}
	}
	return &it, nil
}

func (q *Queries) GetVariant(ctx context.Context, id string) (*models.Variant, error) {
	var v models.Variant
	err := q.db.QueryRowContext(ctx,
		"SELECT id, menu_item_id, name, price, available FROM menu_variants WHERE id = ?", id).
		Scan(&v.ID, &v.MenuItemID, &v.Name, &v.Price, &v.Available)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.E(apperr.NotFound, "variant %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get variant: %w", err)
	}
	return &v, nil
}

// GetChoiceGroups returns the item's groups with their choices, in menu order.
func (q *Queries) GetChoiceGroups(ctx context.Context, menuItemID string) ([]models.ChoiceGroup, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, menu_item_id, name, required, max_selections
		FROM choice_groups WHERE menu_item_id = ? ORDER BY sort_order, id`, menuItemID)
	if err != nil {
		return nil, fmt.Errorf("list choice groups: %w", err)
	}
	var groups []models.ChoiceGroup
	for rows.Next() {
		var g models.ChoiceGroup
		if err := rows.Scan(&g.ID, &g.MenuItemID, &g.Name, &g.Required, &g.MaxSelections); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan choice group: %w", err)
		}
		groups = append(groups, g)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Choices are read after the group cursor is closed; a transaction
	// holds a single connection.
	for i := range groups {
		choices, err := q.listChoices(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Choices = choices
	}
	return groups, nil
}

func (q *Queries) listChoices(ctx context.Context, groupID string) ([]models.Choice, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, group_id, name, price, available FROM choices WHERE group_id = ? ORDER BY sort_order, id", groupID)
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	defer rows.Close()
	var out []models.Choice
	for rows.Next() {
		var c models.Choice
		if err := rows.Scan(&c.ID, &c.GroupID, &c.Name, &c.Price, &c.Available); err != nil {
			return nil, fmt.Errorf("scan choice: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveMenuItem replaces the item together with its variants and choice
// groups. It is used by seeding and the test fixtures.
func (q *Queries) SaveMenuItem(ctx context.Context, it *models.MenuItem, variants []models.Variant, groups []models.ChoiceGroup) error {
	bundle := ""
	if len(it.BundleItems) > 0 {
		raw, err := json.Marshal(it.BundleItems)
		if err != nil {
			return fmt.Errorf("encode bundle: %w", err)
		}
		bundle = string(raw)
	}

	for _, stmt := range []struct {
		query string
		arg   string
	}{
		{"DELETE FROM choices WHERE group_id IN (SELECT id FROM choice_groups WHERE menu_item_id = ?)", it.ID},
		{"DELETE FROM choice_groups WHERE menu_item_id = ?", it.ID},
		{"DELETE FROM menu_variants WHERE menu_item_id = ?", it.ID},
		{"DELETE FROM menu_items WHERE id = ?", it.ID},
	} {
		if _, err := q.db.ExecContext(ctx, stmt.query, stmt.arg); err != nil {
			return fmt.Errorf("clear menu item: %w", err)
		}
	}

	if _, err := q.db.ExecContext(ctx,
		"INSERT INTO menu_items (id, name, kind, price, available, bundle_items) VALUES (?, ?, ?, ?, ?, ?)",
		it.ID, it.Name, string(it.Kind), it.Price, it.Available, bundle); err != nil {
		return fmt.Errorf("insert menu item: %w", err)
	}
	for _, v := range variants {
		if _, err := q.db.ExecContext(ctx,
			"INSERT INTO menu_variants (id, menu_item_id, name, price, available) VALUES (?, ?, ?, ?, ?)",
			v.ID, it.ID, v.Name, v.Price, v.Available); err != nil {
			return fmt.Errorf("insert variant: %w", err)
		}
	}
	for gi, g := range groups {
		if _, err := q.db.ExecContext(ctx,
			"INSERT INTO choice_groups (id, menu_item_id, name, required, max_selections, sort_order) VALUES (?, ?, ?, ?, ?, ?)",
			g.ID, it.ID, g.Name, g.Required, g.MaxSelections, gi); err != nil {
			return fmt.Errorf("insert choice group: %w", err)
		}
		for ci, c := range g.Choices {
			if _, err := q.db.ExecContext(ctx,
				"INSERT INTO choices (id, group_id, name, price, available, sort_order) VALUES (?, ?, ?, ?, ?, ?)",
				c.ID, g.ID, c.Name, c.Price, c.Available, ci); err != nil {
				return fmt.Errorf("insert choice: %w", err)
			}
		}
	}
	return nil
}
