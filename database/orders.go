package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"food-order-service/apperr"
	"food-order-service/models"
)

const orderColumns = `id, customer_id, customer_name, customer_gcash_number, order_type,
	pre_order_fulfillment, pre_order_scheduled_at, status, denial_reason, accepted_at,
	finalized_at, items, subtotal, platform_fee, delivery_fee, discount, total,
	voucher_code, payment_plan, payment_proof_url, downpayment_amount,
	downpayment_proof_url, remaining_payment_method, remaining_payment_proof_url,
	customer_address, customer_lat, customer_lng, distance_meters,
	delivery_fee_fallback, allow_chat, allow_customer_images, created_at, updated_at`

func scanOrder(row scanner) (*models.Order, error) {
	var (
		o                              models.Order
		scheduled, accepted, finalized sql.NullInt64
		items                          string
		lat, lng, distance             sql.NullFloat64
		createdAt, updatedAt           int64
	)
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.CustomerName, &o.CustomerGcashNumber, &o.OrderType,
		&o.PreOrderFulfillment, &scheduled, &o.Status, &o.DenialReason, &accepted,
		&finalized, &items, &o.Subtotal, &o.PlatformFee, &o.DeliveryFee, &o.Discount, &o.Total,
		&o.VoucherCode, &o.PaymentPlan, &o.PaymentProofURL, &o.DownpaymentAmount,
		&o.DownpaymentProofURL, &o.RemainingPaymentMethod, &o.RemainingPaymentProofURL,
		&o.CustomerAddress, &lat, &lng, &distance,
		&o.DeliveryFeeFallback, &o.AllowChat, &o.AllowCustomerImages, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &o.Items); err != nil {
		return nil, fmt.Errorf("decode items of order %s: %w", o.ID, err)
	}
	o.PreOrderScheduledAt = timePtr(scheduled)
	o.AcceptedAt = timePtr(accepted)
	o.FinalizedAt = timePtr(finalized)
	if lat.Valid && lng.Valid {
		o.CustomerCoordinates = &models.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	o.DistanceMeters = floatPtr(distance)
	o.CreatedAt = fromMicros(createdAt)
	o.UpdatedAt = fromMicros(updatedAt)
	return &o, nil
}

func orderArgs(o *models.Order) ([]any, error) {
	items := o.Items
	if items == nil {
		items = []models.OrderItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	var lat, lng sql.NullFloat64
	if o.CustomerCoordinates != nil {
		lat = sql.NullFloat64{Float64: o.CustomerCoordinates.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: o.CustomerCoordinates.Lng, Valid: true}
	}
	return []any{
		o.ID, o.CustomerID, o.CustomerName, o.CustomerGcashNumber, string(o.OrderType),
		string(o.PreOrderFulfillment), nullMicros(o.PreOrderScheduledAt), string(o.Status), o.DenialReason, nullMicros(o.AcceptedAt),
		nullMicros(o.FinalizedAt), string(raw), o.Subtotal, o.PlatformFee, o.DeliveryFee, o.Discount, o.Total,
		o.VoucherCode, string(o.PaymentPlan), o.PaymentProofURL, o.DownpaymentAmount,
		o.DownpaymentProofURL, o.RemainingPaymentMethod, o.RemainingPaymentProofURL,
		o.CustomerAddress, lat, lng, nullFloat(o.DistanceMeters),
		o.DeliveryFeeFallback, o.AllowChat, o.AllowCustomerImages, micros(o.CreatedAt), micros(o.UpdatedAt),
	}, nil
}

func (q *Queries) InsertOrder(ctx context.Context, o *models.Order) error {
	args, err := orderArgs(o)
	if err != nil {
		return err
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	_, err = q.db.ExecContext(ctx,
		"INSERT INTO orders ("+orderColumns+") VALUES ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// UpdateOrder overwrites every mutable column of the stored order.
func (q *Queries) UpdateOrder(ctx context.Context, o *models.Order) error {
	args, err := orderArgs(o)
	if err != nil {
		return err
	}
	cols := strings.Split(orderColumns, ",")
	sets := make([]string, 0, len(cols)-1)
	for _, c := range cols[1:] {
		sets = append(sets, strings.TrimSpace(c)+" = ?")
	}
	args = append(args[1:], o.ID)
	res, err := q.db.ExecContext(ctx,
		"UPDATE orders SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperr.E(apperr.NotFound, "order %s not found", o.ID)
	}
	return nil
}

func (q *Queries) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return q.getOrder(ctx, id, "")
}

// GetOrderForUpdate reads the order and holds its row lock for the rest
// of the transaction.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return q.getOrder(ctx, id, q.forUpdate())
}

func (q *Queries) getOrder(ctx context.Context, id, suffix string) (*models.Order, error) {
	row := q.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = ?"+suffix, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.E(apperr.NotFound, "order not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

type OrderFilter struct {
	CustomerID string
	Status     models.OrderStatus
	Limit      int
	Offset     int
}

// ListOrders returns orders newest first.
func (q *Queries) ListOrders(ctx context.Context, f OrderFilter) ([]*models.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.CustomerID != "" {
		where = append(where, "customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	query := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListOrderIDsWithOpenChat returns finalized orders that still allow chat,
// for the grace period sweep.
func (q *Queries) ListOrderIDsWithOpenChat(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id FROM orders WHERE allow_chat = ? AND finalized_at IS NOT NULL", true)
	if err != nil {
		return nil, fmt.Errorf("list open chats: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
