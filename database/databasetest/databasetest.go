// Package databasetest opens migrated in-memory SQLite stores for tests.
package databasetest

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"food-order-service/database"
	"food-order-service/models"
)

var seq int64

// New returns a Store backed by a private in-memory database that is
// closed when the test ends.
func New(t testing.TB) *database.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared&_busy_timeout=5000", atomic.AddInt64(&seq, 1))
	db, err := sql.Open("sqlite3", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(context.Background(), db, database.SQLite))
	return database.NewStore(db, database.SQLite)
}

// Restaurant is a fixture with delivery enabled and a 10.00 platform fee.
func Restaurant() models.RestaurantConfig {
	return models.RestaurantConfig{
		Name:               "Kusina",
		OwnerID:            "owner-1",
		PlatformFee:        decimal.NewFromInt(10),
		PlatformFeeEnabled: true,
		FeePerKilometer:    decimal.NewFromInt(15),
		Coordinates:        models.Coordinates{Lat: 14.5995, Lng: 120.9842},
		ClosingTime:        "22:00",
		Timezone:           "Asia/Manila",
		AllowDelivery:      true,
		AllowNewOrders:     true,
		GcashNumber:        "09171234567",
	}
}

// SeedMenu stores a small menu:
//
//	pizza  simple, 150, one optional "Extras" group (cheese +20, olives +15 unavailable)
//	coffee variant item with "small" 80 and "large" 100
//	combo  bundle of pizza x1 and soda x2
//	soda   simple, 30
//	cake   simple, 90, unavailable
func SeedMenu(t testing.TB, s *database.Store) {
	t.Helper()
	ctx := context.Background()
	q := s.Queries()

	require.NoError(t, q.SaveMenuItem(ctx,
		&models.MenuItem{ID: "pizza", Name: "Pizza", Kind: models.KindSimple, Price: decimal.NewFromInt(150), Available: true},
		nil,
		[]models.ChoiceGroup{{
			ID: "extras", Name: "Extras", MaxSelections: 2,
			Choices: []models.Choice{
				{ID: "cheese", Name: "Cheese", Price: decimal.NewFromInt(20), Available: true},
				{ID: "olives", Name: "Olives", Price: decimal.NewFromInt(15), Available: false},
			},
		}}))
	require.NoError(t, q.SaveMenuItem(ctx,
		&models.MenuItem{ID: "coffee", Name: "Coffee", Kind: models.KindVariant, Price: decimal.NewFromInt(80), Available: true},
		[]models.Variant{
			{ID: "small", Name: "Small", Price: decimal.NewFromInt(80), Available: true},
			{ID: "large", Name: "Large", Price: decimal.NewFromInt(100), Available: true},
		}, nil))
	require.NoError(t, q.SaveMenuItem(ctx,
		&models.MenuItem{ID: "soda", Name: "Soda", Kind: models.KindSimple, Price: decimal.NewFromInt(30), Available: true},
		nil, nil))
	require.NoError(t, q.SaveMenuItem(ctx,
		&models.MenuItem{ID: "cake", Name: "Cake", Kind: models.KindSimple, Price: decimal.NewFromInt(90), Available: false},
		nil, nil))
	require.NoError(t, q.SaveMenuItem(ctx,
		&models.MenuItem{ID: "combo", Name: "Combo", Kind: models.KindBundle, Available: true,
			BundleItems: []models.BundleComponent{{MenuItemID: "pizza", Quantity: 1}, {MenuItemID: "soda", Quantity: 2}}},
		nil, nil))
}
