package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"food-order-service/models"
)

func (q *Queries) InsertChatMessage(ctx context.Context, m *models.ChatMessage) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, order_id, sender_id, sender_name, sender_role, message, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.OrderID, m.SenderID, m.SenderName, string(m.SenderRole), m.Message, m.ImageURL, micros(m.Timestamp))
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ListChatMessages returns an order's messages oldest first.
func (q *Queries) ListChatMessages(ctx context.Context, orderID string) ([]models.ChatMessage, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, order_id, sender_id, sender_name, sender_role, message, image_url, created_at
		FROM chat_messages WHERE order_id = ? ORDER BY created_at ASC, id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	out := []models.ChatMessage{}
	for rows.Next() {
		var (
			m  models.ChatMessage
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.SenderName, &m.SenderRole,
			&m.Message, &m.ImageURL, &ts); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.Timestamp = fromMicros(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListChatMessagesForOrders groups the messages of several orders by order id.
func (q *Queries) ListChatMessagesForOrders(ctx context.Context, orderIDs []string) (map[string][]models.ChatMessage, error) {
	out := make(map[string][]models.ChatMessage, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(orderIDs)), ", ")
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, order_id, sender_id, sender_name, sender_role, message, image_url, created_at
		FROM chat_messages WHERE order_id IN (`+placeholders+`) ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m  models.ChatMessage
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.SenderName, &m.SenderRole,
			&m.Message, &m.ImageURL, &ts); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		m.Timestamp = fromMicros(ts)
		out[m.OrderID] = append(out[m.OrderID], m)
	}
	return out, rows.Err()
}

// GetReadCursor returns nil when the user has never read the order's chat.
func (q *Queries) GetReadCursor(ctx context.Context, orderID, userID string) (*models.ReadCursor, error) {
	var ts int64
	err := q.db.QueryRowContext(ctx,
		"SELECT last_read_at FROM read_cursors WHERE order_id = ? AND user_id = ?", orderID, userID).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get read cursor: %w", err)
	}
	return &models.ReadCursor{OrderID: orderID, UserID: userID, LastReadTimestamp: fromMicros(ts)}, nil
}

// AdvanceReadCursor moves the cursor to at, never backwards, and returns
// the stored value.
func (q *Queries) AdvanceReadCursor(ctx context.Context, orderID, userID string, at time.Time) (*models.ReadCursor, error) {
	cur, err := q.GetReadCursor(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		_, err = q.db.ExecContext(ctx,
			"INSERT INTO read_cursors (order_id, user_id, last_read_at) VALUES (?, ?, ?)",
			orderID, userID, micros(at))
		if err != nil {
			return nil, fmt.Errorf("insert read cursor: %w", err)
		}
		return &models.ReadCursor{OrderID: orderID, UserID: userID, LastReadTimestamp: fromMicros(micros(at))}, nil
	}
	if !at.After(cur.LastReadTimestamp) {
		return cur, nil
	}
	_, err = q.db.ExecContext(ctx,
		"UPDATE read_cursors SET last_read_at = ? WHERE order_id = ? AND user_id = ? AND last_read_at < ?",
		micros(at), orderID, userID, micros(at))
	if err != nil {
		return nil, fmt.Errorf("update read cursor: %w", err)
	}
	cur.LastReadTimestamp = fromMicros(micros(at))
	return cur, nil
}

// ListReadCursors returns the user's cursors keyed by order id.
func (q *Queries) ListReadCursors(ctx context.Context, userID string, orderIDs []string) (map[string]time.Time, error) {
	out := make(map[string]time.Time, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	args := []any{userID}
	for _, id := range orderIDs {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(orderIDs)), ", ")
	rows, err := q.db.QueryContext(ctx,
		"SELECT order_id, last_read_at FROM read_cursors WHERE user_id = ? AND order_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("list read cursors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			ts int64
		)
		if err := rows.Scan(&id, &ts); err != nil {
			return nil, err
		}
		out[id] = fromMicros(ts)
	}
	return out, rows.Err()
}
