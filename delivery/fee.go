// Package delivery turns a routed distance into a delivery fee.
package delivery

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"food-order-service/apperr"
	"food-order-service/models"
)

const (
	freeRadiusMeters = 500
	flatRadiusMeters = 1000
)

var flatFee = decimal.NewFromInt(20)

// Fee maps a distance in meters to a tiered fee. A nil or negative distance
// is unknown and costs nothing.
func Fee(distanceMeters *float64, feePerKm decimal.Decimal) decimal.Decimal {
	if distanceMeters == nil {
		return decimal.Zero
	}
	d := *distanceMeters
	if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return decimal.Zero
	}
	switch {
	case d <= freeRadiusMeters:
		return decimal.Zero
	case d <= flatRadiusMeters:
		return flatFee
	}
	extraKm := decimal.NewFromFloat(d).Div(decimal.NewFromInt(1000)).Sub(decimal.NewFromInt(1))
	return flatFee.Add(extraKm.Mul(feePerKm)).Round(2)
}

// ValidateCoordinates rejects non-finite, out of range and null-island points.
func ValidateCoordinates(c models.Coordinates) error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return apperr.E(apperr.InvalidCoordinates, "coordinates must be finite")
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lng < -180 || c.Lng > 180 {
		return apperr.E(apperr.InvalidCoordinates, "coordinates out of range")
	}
	if c.Lat == 0 && c.Lng == 0 {
		return apperr.E(apperr.InvalidCoordinates, "coordinates are not set")
	}
	return nil
}

// DistanceProvider returns the routed distance in meters. A nil distance
// with a nil error means no route exists.
type DistanceProvider interface {
	RouteDistance(ctx context.Context, from, to models.Coordinates) (*float64, error)
}

// Quote is the outcome of a delivery fee lookup.
type Quote struct {
	Fee            decimal.Decimal
	DistanceMeters *float64
	// Fallback is set when the provider was unreachable and the client fee
	// was accepted instead.
	Fallback bool
	// ProviderFailed is set whenever the provider errored, with or without
	// a client fee to fall back on.
	ProviderFailed bool
}

type Calculator struct {
	provider DistanceProvider
	timeout  time.Duration
	log      *logrus.Logger
	onFail   func()
}

type Option func(*Calculator)

// WithFailureHook registers a callback run on every provider failure.
func WithFailureHook(fn func()) Option {
	return func(c *Calculator) { c.onFail = fn }
}

func NewCalculator(provider DistanceProvider, timeout time.Duration, log *logrus.Logger, opts ...Option) *Calculator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Calculator{provider: provider, timeout: timeout, log: log}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote validates the destination, asks the provider for a distance and
// prices it. Provider failures are soft: the fee degrades to the client's
// fee when one was supplied, and to zero otherwise.
func (c *Calculator) Quote(ctx context.Context, restaurant models.RestaurantConfig, to models.Coordinates, clientFee decimal.NullDecimal) (Quote, error) {
	if err := ValidateCoordinates(to); err != nil {
		return Quote{}, err
	}
	if c.provider == nil {
		return c.degraded(clientFee, nil), nil
	}
	if err := ValidateCoordinates(restaurant.Coordinates); err != nil {
		c.log.WithError(err).Warn("restaurant coordinates not configured, skipping routing")
		return c.degraded(clientFee, err), nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	distance, err := c.provider.RouteDistance(ctx, restaurant.Coordinates, to)
	if err != nil {
		c.log.WithError(err).Warn("distance provider unavailable")
		return c.degraded(clientFee, err), nil
	}
	return Quote{
		Fee:            Fee(distance, restaurant.FeePerKilometer),
		DistanceMeters: distance,
	}, nil
}

func (c *Calculator) degraded(clientFee decimal.NullDecimal, cause error) Quote {
	q := Quote{Fee: decimal.Zero, ProviderFailed: cause != nil}
	if cause != nil && c.onFail != nil {
		c.onFail()
	}
	if clientFee.Valid && !clientFee.Decimal.IsNegative() {
		q.Fee = clientFee.Decimal.Round(2)
		q.Fallback = true
	}
	return q
}
