package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"food-order-service/apperr"
	"food-order-service/models"
)

// The service runs a single restaurant; its settings live in row 1.
const restaurantRow = 1

func (q *Queries) GetRestaurant(ctx context.Context) (models.RestaurantConfig, error) {
	var r models.RestaurantConfig
	err := q.db.QueryRowContext(ctx,
		`SELECT name, owner_id, platform_fee, platform_fee_enabled, fee_per_km, lat, lng,
			closing_time, timezone, allow_delivery, allow_new_orders, gcash_number
		FROM restaurants WHERE id = ?`, restaurantRow).
		Scan(&r.Name, &r.OwnerID, &r.PlatformFee, &r.PlatformFeeEnabled, &r.FeePerKilometer,
			&r.Coordinates.Lat, &r.Coordinates.Lng, &r.ClosingTime, &r.Timezone,
			&r.AllowDelivery, &r.AllowNewOrders, &r.GcashNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return r, apperr.E(apperr.NotFound, "restaurant is not configured")
	}
	if err != nil {
		return r, fmt.Errorf("get restaurant: %w", err)
	}
	return r, nil
}

func (q *Queries) SaveRestaurant(ctx context.Context, r models.RestaurantConfig) error {
	if _, err := q.db.ExecContext(ctx, "DELETE FROM restaurants WHERE id = ?", restaurantRow); err != nil {
		return fmt.Errorf("clear restaurant: %w", err)
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO restaurants (id, name, owner_id, platform_fee, platform_fee_enabled, fee_per_km,
			lat, lng, closing_time, timezone, allow_delivery, allow_new_orders, gcash_number)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		restaurantRow, r.Name, r.OwnerID, r.PlatformFee, r.PlatformFeeEnabled, r.FeePerKilometer,
		r.Coordinates.Lat, r.Coordinates.Lng, r.ClosingTime, r.Timezone,
		r.AllowDelivery, r.AllowNewOrders, r.GcashNumber)
	if err != nil {
		return fmt.Errorf("insert restaurant: %w", err)
	}
	return nil
}
