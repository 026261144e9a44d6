package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type VoucherType string

const (
	VoucherFixed      VoucherType = "fixed"
	VoucherPercentage VoucherType = "percentage"
)

type Voucher struct {
	ID             string              `json:"id"`
	Code           string              `json:"code"`
	Type           VoucherType         `json:"type"`
	Value          decimal.Decimal     `json:"value"`
	MaxDiscount    decimal.NullDecimal `json:"max_discount"`
	MinOrderAmount decimal.Decimal     `json:"min_order_amount"`
	UsageLimit     int                 `json:"usage_limit"`
	UsageCount     int                 `json:"usage_count"`
	ExpiresAt      time.Time           `json:"expires_at"`
	Active         bool                `json:"active"`
}
