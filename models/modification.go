package models

import "time"

type ModificationType string

const (
	ModItemAdded           ModificationType = "item_added"
	ModItemRemoved         ModificationType = "item_removed"
	ModItemQuantityChanged ModificationType = "item_quantity_changed"
	ModItemPriceChanged    ModificationType = "item_price_changed"
	ModOrderEdited         ModificationType = "order_edited"
	ModStatusChanged       ModificationType = "status_changed"
)

func (t ModificationType) Valid() bool {
	switch t {
	case ModItemAdded, ModItemRemoved, ModItemQuantityChanged, ModItemPriceChanged,
		ModOrderEdited, ModStatusChanged:
		return true
	}
	return false
}

// OrderModification is an append-only audit row. PreviousValue and NewValue
// hold JSON snapshots.
type OrderModification struct {
	ID               string           `json:"id"`
	OrderID          string           `json:"order_id"`
	ModifiedBy       string           `json:"modified_by"`
	ModifiedByName   string           `json:"modified_by_name"`
	ModificationType ModificationType `json:"modification_type"`
	PreviousValue    string           `json:"previous_value"`
	NewValue         string           `json:"new_value"`
	ItemDetails      string           `json:"item_details"`
	Timestamp        time.Time        `json:"timestamp"`
}
