package pricing

import (
	"context"

	"github.com/shopspring/decimal"

	"food-order-service/apperr"
	"food-order-service/models"
)

// PriceLine resolves one cart line against the catalog and returns the
// stored order item with server prices.
func (e *Engine) PriceLine(ctx context.Context, line LineRequest) (models.OrderItem, error) {
	if line.Quantity <= 0 || line.Quantity > maxQuantity {
		return models.OrderItem{}, apperr.E(apperr.InvalidQuantity, "quantity must be between 1 and %d", maxQuantity)
	}

	menuItem, err := e.catalog.GetMenuItem(ctx, line.MenuItemID)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return models.OrderItem{}, apperr.E(apperr.ItemUnavailable, "menu item %s is not available", line.MenuItemID)
		}
		return models.OrderItem{}, err
	}
	if !menuItem.Available {
		return models.OrderItem{}, apperr.E(apperr.ItemUnavailable, "%s is not available", menuItem.Name)
	}

	item := models.OrderItem{
		MenuItemID: menuItem.ID,
		Name:       menuItem.Name,
		Quantity:   line.Quantity,
	}

	var base decimal.Decimal
	switch menuItem.Kind {
	case models.KindSimple:
		if line.VariantID != "" {
			return models.OrderItem{}, apperr.E(apperr.VariantUnavailable, "%s has no variants", menuItem.Name)
		}
		base = menuItem.Price
	case models.KindVariant:
		base = menuItem.Price
		if line.VariantID != "" {
			v, err := e.variant(ctx, menuItem, line.VariantID)
			if err != nil {
				return models.OrderItem{}, err
			}
			item.VariantID = v.ID
			item.VariantName = v.Name
			base = v.Price
		}
	case models.KindBundle:
		if line.VariantID != "" {
			return models.OrderItem{}, apperr.E(apperr.VariantUnavailable, "%s has no variants", menuItem.Name)
		}
		parts, sum, err := e.bundle(ctx, menuItem)
		if err != nil {
			return models.OrderItem{}, err
		}
		item.BundleItems = parts
		base = sum
	default:
		return models.OrderItem{}, apperr.E(apperr.Internal, "menu item %s has unknown kind %q", menuItem.ID, menuItem.Kind)
	}

	choices, adjust, err := e.choices(ctx, menuItem, line.Choices)
	if err != nil {
		return models.OrderItem{}, err
	}
	item.SelectedChoices = choices

	item.UnitPrice = base.Add(adjust).Round(2)
	item.Price = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
	return item, nil
}

func (e *Engine) variant(ctx context.Context, menuItem *models.MenuItem, id string) (*models.Variant, error) {
	v, err := e.catalog.GetVariant(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.NotFound {
			return nil, apperr.E(apperr.VariantUnavailable, "variant %s is not available", id)
		}
		return nil, err
	}
	if v.MenuItemID != menuItem.ID || !v.Available {
		return nil, apperr.E(apperr.VariantUnavailable, "variant %s is not available for %s", id, menuItem.Name)
	}
	return v, nil
}

// bundle prices a bundle as the sum of its parts.
func (e *Engine) bundle(ctx context.Context, menuItem *models.MenuItem) ([]models.BundleItem, decimal.Decimal, error) {
	if len(menuItem.BundleItems) == 0 {
		return nil, decimal.Zero, apperr.E(apperr.BundleItemUnavailable, "%s has no bundle contents", menuItem.Name)
	}
	parts := make([]models.BundleItem, 0, len(menuItem.BundleItems))
	sum := decimal.Zero
	for _, comp := range menuItem.BundleItems {
		if comp.Quantity <= 0 {
			return nil, decimal.Zero, apperr.E(apperr.BundleItemUnavailable, "%s has an invalid bundle entry", menuItem.Name)
		}
		sub, err := e.catalog.GetMenuItem(ctx, comp.MenuItemID)
		if err != nil {
			if apperr.KindOf(err) == apperr.NotFound {
				return nil, decimal.Zero, apperr.E(apperr.BundleItemUnavailable, "an item in %s is no longer available", menuItem.Name)
			}
			return nil, decimal.Zero, err
		}
		if !sub.Available || sub.Kind == models.KindBundle {
			return nil, decimal.Zero, apperr.E(apperr.BundleItemUnavailable, "%s in %s is not available", sub.Name, menuItem.Name)
		}
		price := sub.Price.Round(2)
		parts = append(parts, models.BundleItem{
			MenuItemID: sub.ID,
			Name:       sub.Name,
			Quantity:   comp.Quantity,
			Price:      price,
		})
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(comp.Quantity))))
	}
	return parts, sum, nil
}

func (e *Engine) choices(ctx context.Context, menuItem *models.MenuItem, selected []ChoiceSelection) ([]models.SelectedChoice, decimal.Decimal, error) {
	groups, err := e.catalog.GetChoiceGroups(ctx, menuItem.ID)
	if err != nil {
		return nil, decimal.Zero, err
	}

	byGroup := make(map[string]int, len(groups))
	seen := make(map[string]bool, len(selected))
	out := make([]models.SelectedChoice, 0, len(selected))
	adjust := decimal.Zero

	for _, sel := range selected {
		if seen[sel.ChoiceID] {
			return nil, decimal.Zero, apperr.E(apperr.ChoiceUnavailable, "choice %s selected twice", sel.ChoiceID)
		}
		seen[sel.ChoiceID] = true

		group, choice := findChoice(groups, sel)
		if group == nil || choice == nil || !choice.Available {
			return nil, decimal.Zero, apperr.E(apperr.ChoiceUnavailable, "choice %s is not available for %s", sel.ChoiceID, menuItem.Name)
		}
		byGroup[group.ID]++
		if group.MaxSelections > 0 && byGroup[group.ID] > group.MaxSelections {
			return nil, decimal.Zero, apperr.E(apperr.ChoiceUnavailable, "at most %d choices allowed for %s", group.MaxSelections, group.Name)
		}

		price := choice.Price.Round(2)
		out = append(out, models.SelectedChoice{
			GroupID:   group.ID,
			GroupName: group.Name,
			ChoiceID:  choice.ID,
			Name:      choice.Name,
			Price:     price,
		})
		adjust = adjust.Add(price)
	}

	for _, g := range groups {
		if g.Required && byGroup[g.ID] == 0 {
			return nil, decimal.Zero, apperr.E(apperr.ChoiceUnavailable, "%s requires a selection for %s", menuItem.Name, g.Name)
		}
	}
	return out, adjust, nil
}

func findChoice(groups []models.ChoiceGroup, sel ChoiceSelection) (*models.ChoiceGroup, *models.Choice) {
	for gi := range groups {
		g := &groups[gi]
		if sel.GroupID != "" && g.ID != sel.GroupID {
			continue
		}
		for ci := range g.Choices {
			if g.Choices[ci].ID == sel.ChoiceID {
				return g, &g.Choices[ci]
			}
		}
	}
	return nil, nil
}
