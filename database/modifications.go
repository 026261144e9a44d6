package database

import (
	"context"
	"fmt"

	"food-order-service/models"
)

func (q *Queries) InsertModification(ctx context.Context, m *models.OrderModification) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO order_modifications (id, order_id, modified_by, modified_by_name, modification_type,
			previous_value, new_value, item_details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OrderID, m.ModifiedBy, m.ModifiedByName, string(m.ModificationType),
		m.PreviousValue, m.NewValue, m.ItemDetails, micros(m.Timestamp))
	if err != nil {
		return fmt.Errorf("insert modification: %w", err)
	}
	return nil
}

// ListModifications returns the audit trail oldest first.
func (q *Queries) ListModifications(ctx context.Context, orderID string) ([]models.OrderModification, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, order_id, modified_by, modified_by_name, modification_type,
			previous_value, new_value, item_details, created_at
		FROM order_modifications WHERE order_id = ? ORDER BY created_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list modifications: %w", err)
	}
	defer rows.Close()

	out := []models.OrderModification{}
	for rows.Next() {
		var (
			m  models.OrderModification
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.OrderID, &m.ModifiedBy, &m.ModifiedByName, &m.ModificationType,
			&m.PreviousValue, &m.NewValue, &m.ItemDetails, &ts); err != nil {
			return nil, fmt.Errorf("scan modification: %w", err)
		}
		m.Timestamp = fromMicros(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}
