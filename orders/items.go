package orders

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"food-order-service/apperr"
	"food-order-service/chat"
	"food-order-service/models"
)

// ItemsEditable reports whether the owner may still change the items.
func ItemsEditable(s models.OrderStatus) bool {
	switch s {
	case models.StatusPending, models.StatusPreOrderPending, models.StatusDenied, models.StatusReady:
		return true
	}
	return false
}

// CheckItemsEditable runs the role and status checks of EditItems alone, so
// callers can fail fast before resolving the new items.
func CheckItemsEditable(o *models.Order, actor Actor) error {
	if !actor.IsOwner() {
		return apperr.E(apperr.Unauthorized, "only the restaurant can edit order items")
	}
	if o.Status.Final() {
		return apperr.E(apperr.OrderFinal, "order is already %s", o.Status)
	}
	if !ItemsEditable(o.Status) {
		return apperr.E(apperr.InvalidState, "items cannot be edited while the order is %s", o.Status)
	}
	return nil
}

// EditItems replaces the order's items with items, which the caller has
// already resolved to server prices. Subtotal and total are recomputed;
// platform fee, delivery fee and discount are kept.
func EditItems(o *models.Order, actor Actor, items []models.OrderItem, modType models.ModificationType, note string, r models.RestaurantConfig, now time.Time) (Outcome, error) {
	if err := CheckItemsEditable(o, actor); err != nil {
		return Outcome{}, err
	}
	if len(items) == 0 {
		return Outcome{}, apperr.E(apperr.InvalidRequest, "order must keep at least one item")
	}
	if modType != "" && !modType.Valid() {
		return Outcome{}, apperr.E(apperr.InvalidRequest, "unknown modification type %q", modType)
	}

	n := o.Clone()
	n.Items = make([]models.OrderItem, len(items))
	n.Subtotal = decimal.Zero
	for i, it := range items {
		if it.Quantity <= 0 {
			return Outcome{}, apperr.E(apperr.InvalidQuantity, "quantity for %s must be positive", it.Name)
		}
		if it.UnitPrice.IsNegative() {
			return Outcome{}, apperr.E(apperr.InvalidRequest, "price for %s cannot be negative", it.Name)
		}
		it = it.Clone()
		it.UnitPrice = it.UnitPrice.Round(2)
		it.Price = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Round(2)
		n.Items[i] = it
		n.Subtotal = n.Subtotal.Add(it.Price)
	}
	n.RecomputeTotal()

	d := diffItems(o.Items, n.Items)
	if d.empty() {
		return unchanged(o), nil
	}
	if modType == "" {
		modType = d.kind()
	}
	n.UpdatedAt = now

	summary := d.String()
	details := summary
	if note = chat.StripTags(note); note != "" {
		details += " (" + note + ")"
	}

	type itemsSnap struct {
		Items    []models.OrderItem `json:"items"`
		Subtotal decimal.Decimal    `json:"subtotal"`
		Total    decimal.Decimal    `json:"total"`
	}
	return Outcome{
		Order:   n,
		Changed: true,
		Events: []Event{
			audit(n, actor, modType,
				itemsSnap{Items: o.Items, Subtotal: o.Subtotal, Total: o.Total},
				itemsSnap{Items: n.Items, Subtotal: n.Subtotal, Total: n.Total},
				details, now),
			ownerChat(n, r, actor, chat.ItemsChangedMessage(summary, note), now),
		},
	}, nil
}

// LineKey identifies "the same line" across an edit: same menu item,
// variant and choices.
func LineKey(it models.OrderItem) string {
	ids := make([]string, 0, len(it.SelectedChoices))
	for _, c := range it.SelectedChoices {
		ids = append(ids, c.ChoiceID)
	}
	sort.Strings(ids)
	return it.MenuItemID + "|" + it.VariantID + "|" + strings.Join(ids, ",")
}

type itemChange struct {
	name          string
	before, after models.OrderItem
}

type itemDiff struct {
	added, removed  []models.OrderItem
	quantity, price []itemChange
}

func diffItems(before, after []models.OrderItem) itemDiff {
	var d itemDiff
	old := make(map[string]models.OrderItem, len(before))
	for _, it := range before {
		k := LineKey(it)
		if prev, ok := old[k]; ok {
			prev.Quantity += it.Quantity
			old[k] = prev
			continue
		}
		old[k] = it
	}

	seen := make(map[string]bool, len(after))
	merged := make(map[string]models.OrderItem, len(after))
	var order []string
	for _, it := range after {
		k := LineKey(it)
		if m, ok := merged[k]; ok {
			m.Quantity += it.Quantity
			merged[k] = m
			continue
		}
		merged[k] = it
		order = append(order, k)
	}

	for _, k := range order {
		it := merged[k]
		seen[k] = true
		prev, ok := old[k]
		if !ok {
			d.added = append(d.added, it)
			continue
		}
		if prev.Quantity != it.Quantity {
			d.quantity = append(d.quantity, itemChange{name: it.DisplayName(), before: prev, after: it})
		}
		if !prev.UnitPrice.Equal(it.UnitPrice) {
			d.price = append(d.price, itemChange{name: it.DisplayName(), before: prev, after: it})
		}
	}
	for _, it := range before {
		k := LineKey(it)
		if !seen[k] {
			seen[k] = true
			d.removed = append(d.removed, old[k])
		}
	}
	return d
}

func (d itemDiff) empty() bool {
	return len(d.added) == 0 && len(d.removed) == 0 && len(d.quantity) == 0 && len(d.price) == 0
}

// kind picks the modification type when exactly one kind of change
// happened.
func (d itemDiff) kind() models.ModificationType {
	var kinds []models.ModificationType
	if len(d.added) > 0 {
		kinds = append(kinds, models.ModItemAdded)
	}
	if len(d.removed) > 0 {
		kinds = append(kinds, models.ModItemRemoved)
	}
	if len(d.quantity) > 0 {
		kinds = append(kinds, models.ModItemQuantityChanged)
	}
	if len(d.price) > 0 {
		kinds = append(kinds, models.ModItemPriceChanged)
	}
	if len(kinds) == 1 {
		return kinds[0]
	}
	return models.ModOrderEdited
}

func (d itemDiff) String() string {
	var parts []string
	for _, it := range d.added {
		parts = append(parts, fmt.Sprintf("added: %s x%d", it.DisplayName(), it.Quantity))
	}
	for _, it := range d.removed {
		parts = append(parts, fmt.Sprintf("removed: %s x%d", it.DisplayName(), it.Quantity))
	}
	for _, c := range d.quantity {
		parts = append(parts, fmt.Sprintf("quantity: %s x%d -> x%d", c.name, c.before.Quantity, c.after.Quantity))
	}
	for _, c := range d.price {
		parts = append(parts, fmt.Sprintf("price: %s %s -> %s", c.name, c.before.UnitPrice.StringFixed(2), c.after.UnitPrice.StringFixed(2)))
	}
	return strings.Join(parts, "; ")
}
