package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"food-order-service/apperr"
	"food-order-service/models"
)

// GetVoucherByCode matches codes case-insensitively; codes are stored
// upper-cased.
func (q *Queries) GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var (
		v       models.Voucher
		expires sql.NullInt64
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, code, voucher_type, amount, max_discount, min_order_amount,
			usage_limit, usage_count, expires_at, active
		FROM vouchers WHERE code = ?`, strings.ToUpper(strings.TrimSpace(code))).
		Scan(&v.ID, &v.Code, &v.Type, &v.Value, &v.MaxDiscount, &v.MinOrderAmount,
			&v.UsageLimit, &v.UsageCount, &expires, &v.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.E(apperr.NotFound, "voucher not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get voucher: %w", err)
	}
	if expires.Valid {
		v.ExpiresAt = fromMicros(expires.Int64)
	}
	return &v, nil
}

// IncrementUsage counts one redemption. The limit check and the increment
// are a single statement so concurrent redemptions cannot overshoot.
func (q *Queries) IncrementUsage(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE vouchers SET usage_count = usage_count + 1
		WHERE id = ? AND (usage_limit = 0 OR usage_count < usage_limit)`, id)
	if err != nil {
		return fmt.Errorf("increment voucher usage: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment voucher usage: %w", err)
	}
	if n == 0 {
		return apperr.E(apperr.VoucherExhausted, "voucher usage limit reached")
	}
	return nil
}

func (q *Queries) SaveVoucher(ctx context.Context, v *models.Voucher) error {
	var expires sql.NullInt64
	if !v.ExpiresAt.IsZero() {
		expires = sql.NullInt64{Int64: micros(v.ExpiresAt), Valid: true}
	}
	if _, err := q.db.ExecContext(ctx, "DELETE FROM vouchers WHERE id = ?", v.ID); err != nil {
		return fmt.Errorf("clear voucher: %w", err)
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO vouchers (id, code, voucher_type, amount, max_discount, min_order_amount,
			usage_limit, usage_count, expires_at, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, strings.ToUpper(strings.TrimSpace(v.Code)), string(v.Type), v.Value, v.MaxDiscount, v.MinOrderAmount,
		v.UsageLimit, v.UsageCount, expires, v.Active)
	if err != nil {
		return fmt.Errorf("insert voucher: %w", err)
	}
	return nil
}
