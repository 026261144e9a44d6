// Package pricing recomputes every monetary field of an order from catalog,
// restaurant and voucher data, and checks the client's claimed amounts
// against the result.
package pricing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"food-order-service/apperr"
	"food-order-service/delivery"
	"food-order-service/models"
)

const maxQuantity = 999

var (
	// DefaultTolerance applies to every amount computed from our own data.
	DefaultTolerance = decimal.RequireFromString("0.01")
	// DefaultDeliveryTolerance is wider: routed distances drift between the
	// client's estimate and ours.
	DefaultDeliveryTolerance = decimal.RequireFromString("5.00")

	hundred = decimal.NewFromInt(100)
)

// Catalog is the read side of the menu. Lookups of unknown ids return an
// error of kind apperr.NotFound.
type Catalog interface {
	GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error)
	GetVariant(ctx context.Context, id string) (*models.Variant, error)
	GetChoiceGroups(ctx context.Context, menuItemID string) ([]models.ChoiceGroup, error)
}

type VoucherStore interface {
	GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
	// IncrementUsage must fail with apperr.VoucherExhausted when the
	// increment would pass the usage limit.
	IncrementUsage(ctx context.Context, id string) error
}

type ChoiceSelection struct {
	GroupID  string `json:"group_id"`
	ChoiceID string `json:"choice_id" binding:"required"`
}

type LineRequest struct {
	MenuItemID string            `json:"menu_item_id" binding:"required"`
	Quantity   int               `json:"quantity"`
	VariantID  string            `json:"variant_id"`
	Choices    []ChoiceSelection `json:"choices"`
	// ClaimedPrice is the client's line total, checked when present.
	ClaimedPrice decimal.NullDecimal `json:"price"`
}

// Claims are the amounts the client displayed at checkout.
type Claims struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

type Candidate struct {
	Lines       []LineRequest
	VoucherCode string
	Claims      Claims
	// Delivery is nil for orders without a delivery leg.
	Delivery *delivery.Quote
}

type Quote struct {
	Items       []models.OrderItem
	Subtotal    decimal.Decimal
	PlatformFee decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	Voucher     *models.Voucher
}

type Engine struct {
	catalog           Catalog
	vouchers          VoucherStore
	now               func() time.Time
	tolerance         decimal.Decimal
	deliveryTolerance decimal.Decimal
	onMismatch        func(field string)
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithTolerances(amount, deliveryFee decimal.Decimal) Option {
	return func(e *Engine) {
		e.tolerance = amount
		e.deliveryTolerance = deliveryFee
	}
}

// WithMismatchHook is called with the name of each field that failed the
// tolerance check. The field never reaches the client.
func WithMismatchHook(fn func(field string)) Option {
	return func(e *Engine) { e.onMismatch = fn }
}

func NewEngine(catalog Catalog, vouchers VoucherStore, opts ...Option) *Engine {
	e := &Engine{
		catalog:           catalog,
		vouchers:          vouchers,
		now:               time.Now,
		tolerance:         DefaultTolerance,
		deliveryTolerance: DefaultDeliveryTolerance,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Price computes the server-side quote for c and verifies the client's
// claims. The voucher usage counter is bumped last, only when everything
// else passed; callers run Price inside the order transaction so the bump
// rolls back with it.
func (e *Engine) Price(ctx context.Context, restaurant models.RestaurantConfig, c Candidate) (*Quote, error) {
	if len(c.Lines) == 0 {
		return nil, apperr.E(apperr.InvalidRequest, "order must contain at least one item")
	}

	q := &Quote{Items: make([]models.OrderItem, 0, len(c.Lines))}
	for i, line := range c.Lines {
		item, err := e.PriceLine(ctx, line)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		q.Items = append(q.Items, item)
		q.Subtotal = q.Subtotal.Add(item.Price)
	}

	q.PlatformFee = PlatformFee(restaurant)
	if c.Delivery != nil {
		q.DeliveryFee = c.Delivery.Fee
	}

	if code := NormalizeCode(c.VoucherCode); code != "" {
		v, discount, err := e.discount(ctx, code, q.Subtotal)
		if err != nil {
			return nil, err
		}
		q.Voucher = v
		q.Discount = discount
	}

	q.Total = q.Subtotal.Add(q.PlatformFee).Add(q.DeliveryFee).Sub(q.Discount).Round(2)

	if err := e.verify(c, q); err != nil {
		return nil, err
	}

	if q.Voucher != nil {
		if err := e.vouchers.IncrementUsage(ctx, q.Voucher.ID); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// PlatformFee is the flat fee from the restaurant profile, zero when
// disabled.
func PlatformFee(r models.RestaurantConfig) decimal.Decimal {
	if !r.PlatformFeeEnabled || r.PlatformFee.IsNegative() {
		return decimal.Zero
	}
	return r.PlatformFee.Round(2)
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// verify compares every claimed amount with the computed one. The error is
// deliberately generic.
func (e *Engine) verify(c Candidate, q *Quote) error {
	var bad []string
	check := func(field string, claimed, actual, tol decimal.Decimal) {
		if claimed.Sub(actual).Abs().GreaterThan(tol) {
			bad = append(bad, field)
		}
	}

	for i, line := range c.Lines {
		if line.ClaimedPrice.Valid {
			check(fmt.Sprintf("items[%d].price", i), line.ClaimedPrice.Decimal, q.Items[i].Price, e.tolerance)
		}
	}
	check("subtotal", c.Claims.Subtotal, q.Subtotal, e.tolerance)
	check("platform_fee", c.Claims.PlatformFee, q.PlatformFee, e.tolerance)

	deliveryTol := e.deliveryTolerance
	totalTol := e.tolerance
	if c.Delivery != nil && !c.Delivery.Fallback {
		// The delivery fee drift carries into the total.
		totalTol = totalTol.Add(deliveryTol)
	}
	check("delivery_fee", c.Claims.DeliveryFee, q.DeliveryFee, deliveryTol)
	check("discount", c.Claims.Discount, q.Discount, e.tolerance)
	check("total", c.Claims.Total, q.Total, totalTol)

	if len(bad) == 0 {
		return nil
	}
	if e.onMismatch != nil {
		for _, f := range bad {
			e.onMismatch(f)
		}
	}
	return apperr.E(apperr.AmountMismatch, "submitted amounts do not match current prices, please refresh your cart")
}

func (e *Engine) discount(ctx context.Context, code string, subtotal decimal.Decimal) (*models.Voucher, decimal.Decimal, error) {
	v, err := e.vouchers.GetVoucherByCode(ctx, code)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, decimal.Zero, apperr.E(apperr.InvalidVoucher, "voucher %s is not valid", code)
		}
		return nil, decimal.Zero, err
	}
	if !v.Active {
		return nil, decimal.Zero, apperr.E(apperr.InvalidVoucher, "voucher %s is not valid", code)
	}
	if !v.ExpiresAt.IsZero() && !e.now().Before(v.ExpiresAt) {
		return nil, decimal.Zero, apperr.E(apperr.VoucherExpired, "voucher %s has expired", code)
	}
	if v.UsageLimit > 0 && v.UsageCount >= v.UsageLimit {
		return nil, decimal.Zero, apperr.E(apperr.VoucherExhausted, "voucher %s has been fully redeemed", code)
	}
	if subtotal.LessThan(v.MinOrderAmount) {
		return nil, decimal.Zero, apperr.E(apperr.MinOrderNotMet, "voucher %s requires a minimum order of %s", code, v.MinOrderAmount.StringFixed(2))
	}
	return v, Discount(v, subtotal), nil
}

// Discount computes the voucher discount for subtotal. It never exceeds the
// subtotal.
func Discount(v *models.Voucher, subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch v.Type {
	case models.VoucherFixed:
		d = v.Value
	case models.VoucherPercentage:
		d = subtotal.Mul(v.Value).Div(hundred)
		if v.MaxDiscount.Valid && d.GreaterThan(v.MaxDiscount.Decimal) {
			d = v.MaxDiscount.Decimal
		}
	default:
		return decimal.Zero
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	return d.Round(2)
}
