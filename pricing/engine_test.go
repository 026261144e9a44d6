package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-order-service/apperr"
	"food-order-service/delivery"
	"food-order-service/models"
)

type fakeCatalog struct {
	items    map[string]*models.MenuItem
	variants map[string]*models.Variant
	groups   map[string][]models.ChoiceGroup
}

func (f *fakeCatalog) GetMenuItem(ctx context.Context, id string) (*models.MenuItem, error) {
	if it, ok := f.items[id]; ok {
		return it, nil
	}
	return nil, apperr.E(apperr.NotFound, "menu item %s not found", id)
}

func (f *fakeCatalog) GetVariant(ctx context.Context, id string) (*models.Variant, error) {
	if v, ok := f.variants[id]; ok {
		return v, nil
	}
	return nil, apperr.E(apperr.NotFound, "variant %s not found", id)
}

func (f *fakeCatalog) GetChoiceGroups(ctx context.Context, menuItemID string) ([]models.ChoiceGroup, error) {
	return f.groups[menuItemID], nil
}

type fakeVouchers struct {
	vouchers   map[string]*models.Voucher
	increments int
}

func (f *fakeVouchers) GetVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	if v, ok := f.vouchers[code]; ok {
		return v, nil
	}
	return nil, apperr.E(apperr.NotFound, "voucher %s not found", code)
}

func (f *fakeVouchers) IncrementUsage(ctx context.Context, id string) error {
	for _, v := range f.vouchers {
		if v.ID == id {
			if v.UsageLimit > 0 && v.UsageCount >= v.UsageLimit {
				return apperr.E(apperr.VoucherExhausted, "exhausted")
			}
			v.UsageCount++
			f.increments++
		}
	}
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var now = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

func newCatalog() *fakeCatalog {
	return &fakeCatalog{
		items: map[string]*models.MenuItem{
			"pizza":  {ID: "pizza", Name: "Pizza", Kind: models.KindVariant, Price: dec("300"), Available: true},
			"soda":   {ID: "soda", Name: "Soda", Kind: models.KindSimple, Price: dec("50"), Available: true},
			"fries":  {ID: "fries", Name: "Fries", Kind: models.KindSimple, Price: dec("80"), Available: true},
			"gone":   {ID: "gone", Name: "Lasagna", Kind: models.KindSimple, Price: dec("200"), Available: false},
			"combo":  {ID: "combo", Name: "Combo", Kind: models.KindBundle, Available: true, BundleItems: []models.BundleComponent{{MenuItemID: "soda", Quantity: 2}, {MenuItemID: "fries", Quantity: 1}}},
			"broken": {ID: "broken", Name: "Broken Combo", Kind: models.KindBundle, Available: true, BundleItems: []models.BundleComponent{{MenuItemID: "gone", Quantity: 1}}},
		},
		variants: map[string]*models.Variant{
			"pizza-large": {ID: "pizza-large", MenuItemID: "pizza", Name: "Large", Price: dec("450"), Available: true},
			"pizza-xl":    {ID: "pizza-xl", MenuItemID: "pizza", Name: "XL", Price: dec("600"), Available: false},
			"other":       {ID: "other", MenuItemID: "soda", Name: "Can", Price: dec("40"), Available: true},
		},
		groups: map[string][]models.ChoiceGroup{
			"pizza": {
				{ID: "crust", MenuItemID: "pizza", Name: "Crust", Required: true, MaxSelections: 1, Choices: []models.Choice{
					{ID: "thin", GroupID: "crust", Name: "Thin", Price: dec("0"), Available: true},
					{ID: "stuffed", GroupID: "crust", Name: "Stuffed", Price: dec("60"), Available: true},
				}},
				{ID: "toppings", MenuItemID: "pizza", Name: "Toppings", MaxSelections: 2, Choices: []models.Choice{
					{ID: "cheese", GroupID: "toppings", Name: "Extra cheese", Price: dec("25.50"), Available: true},
					{ID: "ham", GroupID: "toppings", Name: "Ham", Price: dec("30"), Available: true},
					{ID: "olives", GroupID: "toppings", Name: "Olives", Price: dec("20"), Available: false},
					{ID: "bacon", GroupID: "toppings", Name: "Bacon", Price: dec("35"), Available: true},
				}},
			},
		},
	}
}

func newVouchers() *fakeVouchers {
	return &fakeVouchers{vouchers: map[string]*models.Voucher{
		"SAVE10":  {ID: "v1", Code: "SAVE10", Type: models.VoucherPercentage, Value: dec("10"), MaxDiscount: decimal.NewNullDecimal(dec("50")), UsageLimit: 100, ExpiresAt: now.Add(24 * time.Hour), Active: true},
		"FLAT30":  {ID: "v2", Code: "FLAT30", Type: models.VoucherFixed, Value: dec("30"), MinOrderAmount: dec("200"), UsageLimit: 5, ExpiresAt: now.Add(24 * time.Hour), Active: true},
		"OLD":     {ID: "v3", Code: "OLD", Type: models.VoucherFixed, Value: dec("30"), UsageLimit: 5, ExpiresAt: now.Add(-time.Minute), Active: true},
		"USEDUP":  {ID: "v4", Code: "USEDUP", Type: models.VoucherFixed, Value: dec("30"), UsageLimit: 2, UsageCount: 2, ExpiresAt: now.Add(time.Hour), Active: true},
		"OFF":     {ID: "v5", Code: "OFF", Type: models.VoucherFixed, Value: dec("30"), UsageLimit: 2, ExpiresAt: now.Add(time.Hour), Active: false},
		"BIGFLAT": {ID: "v6", Code: "BIGFLAT", Type: models.VoucherFixed, Value: dec("1000"), ExpiresAt: now.Add(time.Hour), Active: true},
	}}
}

var restaurant = models.RestaurantConfig{
	PlatformFee:        dec("10"),
	PlatformFeeEnabled: true,
	FeePerKilometer:    dec("15"),
}

func newEngine(vouchers *fakeVouchers) *Engine {
	return NewEngine(newCatalog(), vouchers, WithClock(func() time.Time { return now }))
}

func TestPriceLineKinds(t *testing.T) {
	e := newEngine(newVouchers())
	ctx := context.Background()

	t.Run("variant with choices", func(t *testing.T) {
		it, err := e.PriceLine(ctx, LineRequest{
			MenuItemID: "pizza", Quantity: 2, VariantID: "pizza-large",
			Choices: []ChoiceSelection{{GroupID: "crust", ChoiceID: "stuffed"}, {ChoiceID: "cheese"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "535.5", it.UnitPrice.String())
		assert.Equal(t, "1071", it.Price.String())
		assert.Equal(t, "Large", it.VariantName)
		require.Len(t, it.SelectedChoices, 2)
		assert.Equal(t, "toppings", it.SelectedChoices[1].GroupID)
	})

	t.Run("variant kind without variant uses base", func(t *testing.T) {
		it, err := e.PriceLine(ctx, LineRequest{MenuItemID: "pizza", Quantity: 1, Choices: []ChoiceSelection{{ChoiceID: "thin"}}})
		require.NoError(t, err)
		assert.Equal(t, "300", it.Price.String())
	})

	t.Run("bundle is sum of parts", func(t *testing.T) {
		it, err := e.PriceLine(ctx, LineRequest{MenuItemID: "combo", Quantity: 3})
		require.NoError(t, err)
		assert.Equal(t, "180", it.UnitPrice.String())
		assert.Equal(t, "540", it.Price.String())
		require.Len(t, it.BundleItems, 2)
		assert.Equal(t, "Soda", it.BundleItems[0].Name)
		assert.Equal(t, 2, it.BundleItems[0].Quantity)
	})
}

func TestPriceLineFailures(t *testing.T) {
	e := newEngine(newVouchers())
	ctx := context.Background()

	tests := []struct {
		name string
		line LineRequest
		want apperr.Kind
	}{
		{"missing item", LineRequest{MenuItemID: "nope", Quantity: 1}, apperr.ItemUnavailable},
		{"unavailable item", LineRequest{MenuItemID: "gone", Quantity: 1}, apperr.ItemUnavailable},
		{"zero quantity", LineRequest{MenuItemID: "soda", Quantity: 0}, apperr.InvalidQuantity},
		{"negative quantity", LineRequest{MenuItemID: "soda", Quantity: -2}, apperr.InvalidQuantity},
		{"variant on simple item", LineRequest{MenuItemID: "soda", Quantity: 1, VariantID: "other"}, apperr.VariantUnavailable},
		{"unknown variant", LineRequest{MenuItemID: "pizza", Quantity: 1, VariantID: "nope", Choices: []ChoiceSelection{{ChoiceID: "thin"}}}, apperr.VariantUnavailable},
		{"foreign variant", LineRequest{MenuItemID: "pizza", Quantity: 1, VariantID: "other", Choices: []ChoiceSelection{{ChoiceID: "thin"}}}, apperr.VariantUnavailable},
		{"unavailable variant", LineRequest{MenuItemID: "pizza", Quantity: 1, VariantID: "pizza-xl", Choices: []ChoiceSelection{{ChoiceID: "thin"}}}, apperr.VariantUnavailable},
		{"unavailable choice", LineRequest{MenuItemID: "pizza", Quantity: 1, Choices: []ChoiceSelection{{ChoiceID: "thin"}, {ChoiceID: "olives"}}}, apperr.ChoiceUnavailable},
		{"choice from wrong group", LineRequest{MenuItemID: "pizza", Quantity: 1, Choices: []ChoiceSelection{{GroupID: "crust", ChoiceID: "ham"}}}, apperr.ChoiceUnavailable},
		{"choice on item without groups", LineRequest{MenuItemID: "soda", Quantity: 1, Choices: []ChoiceSelection{{ChoiceID: "thin"}}}, apperr.ChoiceUnavailable},
		{"required group missing", LineRequest{MenuItemID: "pizza", Quantity: 1}, apperr.ChoiceUnavailable},
		{"too many selections", LineRequest{MenuItemID: "pizza", Quantity: 1, Choices: []ChoiceSelection{{ChoiceID: "thin"}, {ChoiceID: "cheese"}, {ChoiceID: "ham"}, {ChoiceID: "bacon"}}}, apperr.ChoiceUnavailable},
		{"duplicate choice", LineRequest{MenuItemID: "pizza", Quantity: 1, Choices: []ChoiceSelection{{ChoiceID: "thin"}, {ChoiceID: "thin"}}}, apperr.ChoiceUnavailable},
		{"bundle with unavailable part", LineRequest{MenuItemID: "broken", Quantity: 1}, apperr.BundleItemUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.PriceLine(ctx, tt.line)
			assert.Equal(t, tt.want, apperr.KindOf(err), err)
		})
	}
}

func candidate(lines []LineRequest, code string, claims Claims) Candidate {
	return Candidate{Lines: lines, VoucherCode: code, Claims: claims}
}

func TestPriceTotals(t *testing.T) {
	vouchers := newVouchers()
	e := newEngine(vouchers)

	q, err := e.Price(context.Background(), restaurant, Candidate{
		Lines:       []LineRequest{{MenuItemID: "soda", Quantity: 2}, {MenuItemID: "fries", Quantity: 1}},
		VoucherCode: " flat30 ",
		Claims: Claims{
			Subtotal:    dec("180"),
			PlatformFee: dec("10"),
			DeliveryFee: dec("27.5"),
			Discount:    dec("0"),
			Total:       dec("217.5"),
		},
		Delivery: &delivery.Quote{Fee: dec("27.5")},
	})
	// FLAT30 needs a 200 minimum.
	assert.Equal(t, apperr.MinOrderNotMet, apperr.KindOf(err))
	assert.Nil(t, q)
	assert.Zero(t, vouchers.increments)

	q, err = e.Price(context.Background(), restaurant, Candidate{
		Lines:       []LineRequest{{MenuItemID: "soda", Quantity: 2}, {MenuItemID: "fries", Quantity: 2}},
		VoucherCode: "flat30",
		Claims: Claims{
			Subtotal:    dec("260"),
			PlatformFee: dec("10"),
			DeliveryFee: dec("27.5"),
			Discount:    dec("30"),
			Total:       dec("267.5"),
		},
		Delivery: &delivery.Quote{Fee: dec("27.5")},
	})
	require.NoError(t, err)
	assert.Equal(t, "260", q.Subtotal.String())
	assert.Equal(t, "30", q.Discount.String())
	assert.Equal(t, "267.5", q.Total.String())
	assert.True(t, q.Total.Equal(q.Subtotal.Add(q.PlatformFee).Add(q.DeliveryFee).Sub(q.Discount)))
	assert.Equal(t, 1, vouchers.increments)
	assert.Equal(t, 1, vouchers.vouchers["FLAT30"].UsageCount)
}

func TestPercentageVoucherIsCapped(t *testing.T) {
	vouchers := newVouchers()
	e := newEngine(vouchers)

	// 20 sodas at 50 = 1000; 10% would be 100 but the cap is 50.
	q, err := e.Price(context.Background(), models.RestaurantConfig{}, candidate(
		[]LineRequest{{MenuItemID: "soda", Quantity: 20}},
		"SAVE10",
		Claims{Subtotal: dec("1000"), Discount: dec("50"), Total: dec("950")},
	))
	require.NoError(t, err)
	assert.Equal(t, "50", q.Discount.String())
	assert.Equal(t, "950", q.Total.String())
}

func TestFixedVoucherNeverExceedsSubtotal(t *testing.T) {
	e := newEngine(newVouchers())

	q, err := e.Price(context.Background(), models.RestaurantConfig{}, candidate(
		[]LineRequest{{MenuItemID: "soda", Quantity: 1}},
		"BIGFLAT",
		Claims{Subtotal: dec("50"), Discount: dec("50"), Total: dec("0")},
	))
	require.NoError(t, err)
	assert.Equal(t, "50", q.Discount.String())
	assert.True(t, q.Total.IsZero())
}

func TestVoucherFailures(t *testing.T) {
	lines := []LineRequest{{MenuItemID: "soda", Quantity: 10}}
	claims := Claims{Subtotal: dec("500"), Total: dec("500")}

	tests := map[string]apperr.Kind{
		"MISSING": apperr.InvalidVoucher,
		"OFF":     apperr.InvalidVoucher,
		"OLD":     apperr.VoucherExpired,
		"USEDUP":  apperr.VoucherExhausted,
	}
	for code, want := range tests {
		t.Run(code, func(t *testing.T) {
			vouchers := newVouchers()
			_, err := newEngine(vouchers).Price(context.Background(), models.RestaurantConfig{}, candidate(lines, code, claims))
			assert.Equal(t, want, apperr.KindOf(err))
			assert.Zero(t, vouchers.increments)
		})
	}
}

func TestAmountMismatchIsGenericAndSkipsVoucher(t *testing.T) {
	vouchers := newVouchers()
	var fields []string
	e := NewEngine(newCatalog(), vouchers,
		WithClock(func() time.Time { return now }),
		WithMismatchHook(func(f string) { fields = append(fields, f) }))

	_, err := e.Price(context.Background(), restaurant, candidate(
		[]LineRequest{{MenuItemID: "soda", Quantity: 10}},
		"SAVE10",
		Claims{Subtotal: dec("499.50"), PlatformFee: dec("10"), Discount: dec("50"), Total: dec("459.50")},
	))
	require.Error(t, err)
	assert.Equal(t, apperr.AmountMismatch, apperr.KindOf(err))
	assert.NotContains(t, apperr.Message(err), "500")
	assert.Contains(t, fields, "subtotal")
	assert.Zero(t, vouchers.increments)
}

func TestToleranceAllowsCentRounding(t *testing.T) {
	e := newEngine(newVouchers())

	_, err := e.Price(context.Background(), restaurant, candidate(
		[]LineRequest{{MenuItemID: "soda", Quantity: 1}},
		"",
		Claims{Subtotal: dec("50.01"), PlatformFee: dec("10"), Total: dec("59.99")},
	))
	assert.NoError(t, err)
}

func TestLineClaimsAreChecked(t *testing.T) {
	e := newEngine(newVouchers())

	_, err := e.Price(context.Background(), models.RestaurantConfig{}, candidate(
		[]LineRequest{{MenuItemID: "soda", Quantity: 2, ClaimedPrice: decimal.NewNullDecimal(dec("60"))}},
		"",
		Claims{Subtotal: dec("100"), Total: dec("100")},
	))
	assert.Equal(t, apperr.AmountMismatch, apperr.KindOf(err))
}

func TestDeliveryToleranceIsWider(t *testing.T) {
	e := newEngine(newVouchers())
	lines := []LineRequest{{MenuItemID: "soda", Quantity: 1}}

	_, err := e.Price(context.Background(), models.RestaurantConfig{}, Candidate{
		Lines:    lines,
		Claims:   Claims{Subtotal: dec("50"), DeliveryFee: dec("31"), Total: dec("81")},
		Delivery: &delivery.Quote{Fee: dec("27.5")},
	})
	assert.NoError(t, err)

	_, err = e.Price(context.Background(), models.RestaurantConfig{}, Candidate{
		Lines:    lines,
		Claims:   Claims{Subtotal: dec("50"), DeliveryFee: dec("40"), Total: dec("90")},
		Delivery: &delivery.Quote{Fee: dec("27.5")},
	})
	assert.Equal(t, apperr.AmountMismatch, apperr.KindOf(err))
}

func TestFallbackDeliveryFeeIsAccepted(t *testing.T) {
	e := newEngine(newVouchers())

	q, err := e.Price(context.Background(), models.RestaurantConfig{}, Candidate{
		Lines:    []LineRequest{{MenuItemID: "soda", Quantity: 1}},
		Claims:   Claims{Subtotal: dec("50"), DeliveryFee: dec("120"), Total: dec("170")},
		Delivery: &delivery.Quote{Fee: dec("120"), Fallback: true},
	})
	require.NoError(t, err)
	assert.Equal(t, "120", q.DeliveryFee.String())
}

func TestPlatformFeeDisabled(t *testing.T) {
	r := restaurant
	r.PlatformFeeEnabled = false
	assert.True(t, PlatformFee(r).IsZero())
	assert.Equal(t, "10", PlatformFee(restaurant).String())
}

func TestEmptyCart(t *testing.T) {
	_, err := newEngine(newVouchers()).Price(context.Background(), restaurant, Candidate{})
	assert.Equal(t, apperr.InvalidRequest, apperr.KindOf(err))
}
