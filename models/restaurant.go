package models

import (
	"fmt"
	"time"
	// Restaurant timezones must resolve on hosts without a zoneinfo db.
	_ "time/tzdata"

	"github.com/shopspring/decimal"
)

// RestaurantConfig is the restaurant profile the order core depends on. It
// is loaded once per operation and passed explicitly.
type RestaurantConfig struct {
	Name               string          `json:"name"`
	OwnerID            string          `json:"owner_id"`
	PlatformFee        decimal.Decimal `json:"platform_fee"`
	PlatformFeeEnabled bool            `json:"platform_fee_enabled"`
	FeePerKilometer    decimal.Decimal `json:"fee_per_kilometer"`
	Coordinates        Coordinates     `json:"coordinates"`
	// ClosingTime is "HH:MM" in Timezone, empty when not configured.
	ClosingTime    string `json:"closing_time,omitempty"`
	Timezone       string `json:"timezone"`
	AllowDelivery  bool   `json:"allow_delivery"`
	AllowNewOrders bool   `json:"allow_new_orders"`
	GcashNumber    string `json:"gcash_number,omitempty"`
}

// Location resolves Timezone, falling back to UTC.
func (r RestaurantConfig) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Closing parses ClosingTime into hour and minute. ok is false when unset
// or malformed.
func (r RestaurantConfig) Closing() (hour, minute int, ok bool) {
	if r.ClosingTime == "" {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(r.ClosingTime, "%d:%d", &hour, &minute); err != nil {
		return 0, 0, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

// DisplayName is the sender name used for automatic owner messages.
func (r RestaurantConfig) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return "Restaurant"
}
