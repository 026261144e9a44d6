package models

import "github.com/shopspring/decimal"

// ItemKind tags how a menu item is priced.
type ItemKind string

const (
	KindSimple  ItemKind = "simple"
	KindVariant ItemKind = "variant"
	KindBundle  ItemKind = "bundle"
)

type MenuItem struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Kind        ItemKind          `json:"kind"`
	Price       decimal.Decimal   `json:"price"`
	Available   bool              `json:"available"`
	BundleItems []BundleComponent `json:"bundle_items,omitempty"`
}

type BundleComponent struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

type Variant struct {
	ID         string          `json:"id"`
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Available  bool            `json:"available"`
}

type ChoiceGroup struct {
	ID            string   `json:"id"`
	MenuItemID    string   `json:"menu_item_id"`
	Name          string   `json:"name"`
	Required      bool     `json:"required"`
	MaxSelections int      `json:"max_selections"`
	Choices       []Choice `json:"choices"`
}

type Choice struct {
	ID        string          `json:"id"`
	GroupID   string          `json:"group_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}
