package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tudbom/counter-api/internal/database"
	"github.com/tudbom/counter-api/internal/enum"
)

// mockCatalogReader implements CatalogReader with configurable behavior.
type mockCatalogReader struct {
	getProductFn       func(ctx context.Context, id int64) (database.GetProductForOrderRow, error)
	getProductByNameFn func(ctx context.Context, name string) (database.GetProductForOrderRow, error)
	listAddonsFn       func(ctx context.Context, lowerNames []string) ([]database.Addon, error)
	addonQueries       int
}

func (m *mockCatalogReader) GetProductForOrder(ctx context.Context, id int64) (database.GetProductForOrderRow, error) {
	return m.getProductFn(ctx, id)
}
func (m *mockCatalogReader) GetProductForOrderByName(ctx context.Context, name string) (database.GetProductForOrderRow, error) {
	return m.getProductByNameFn(ctx, name)
}
func (m *mockCatalogReader) ListAddonsByNames(ctx context.Context, lowerNames []string) ([]database.Addon, error) {
	m.addonQueries++
	return m.listAddonsFn(ctx, lowerNames)
}

func defaultCatalogReader() *mockCatalogReader {
	sundae := database.GetProductForOrderRow{
		ID:           7,
		Name:         "Sundae",
		Price:        numeric("10.00"),
		Stock:        5,
		CategoryID:   pgtype.Int8{Int64: 3, Valid: true},
		CategoryName: pgtype.Text{String: "Sobremesas", Valid: true},
	}
	shake := database.GetProductForOrderRow{ID: 8, Name: "Milkshake", Price: numeric("12.50"), Stock: 9}
	return &mockCatalogReader{
		getProductFn: func(ctx context.Context, id int64) (database.GetProductForOrderRow, error) {
			switch id {
			case 7:
				return sundae, nil
			case 8:
				return shake, nil
			}
			return database.GetProductForOrderRow{}, pgx.ErrNoRows
		},
		getProductByNameFn: func(ctx context.Context, name string) (database.GetProductForOrderRow, error) {
			switch name {
			case "Sundae":
				return sundae, nil
			case "Milkshake":
				return shake, nil
			}
			return database.GetProductForOrderRow{}, pgx.ErrNoRows
		},
		listAddonsFn: func(ctx context.Context, lowerNames []string) ([]database.Addon, error) {
			all := map[string]database.Addon{
				"nuts":      {ID: 20, Name: "Nuts", Price: numeric("1.50"), Stock: 10},
				"sprinkles": {ID: 21, Name: "Sprinkles", Price: numeric("0.75"), Stock: 3},
			}
			var out []database.Addon
			for _, n := range lowerNames {
				if a, ok := all[n]; ok {
					out = append(out, a)
				}
			}
			return out, nil
		},
	}
}

func TestLoadSnapshot_BatchesAddonLookup(t *testing.T) {
	catalog := defaultCatalogReader()
	var asked []string
	inner := catalog.listAddonsFn
	catalog.listAddonsFn = func(ctx context.Context, lowerNames []string) ([]database.Addon, error) {
		asked = lowerNames
		return inner(ctx, lowerNames)
	}

	items := []CartLine{
		{Product: "Sundae", Quantity: 1, Addons: []CartAddon{{Name: "Nuts", Quantity: 1}, {Name: "SPRINKLES", Quantity: 1}}},
		{ProductID: 8, Quantity: 1, Addons: []CartAddon{{Name: "nuts", Quantity: 2}}},
	}
	snap, err := LoadSnapshot(context.Background(), catalog, items)
	require.NoError(t, err)

	assert.Equal(t, 1, catalog.addonQueries)
	assert.Equal(t, []string{"nuts", "sprinkles"}, asked)
	require.Len(t, snap.Products, 2)
	assert.Equal(t, "Sobremesas", snap.Products[0].Category)
	assert.Equal(t, int64(3), snap.Products[0].CategoryID)
	assert.Equal(t, enum.CategoryUncategorized, snap.Products[1].Category)
	assert.Zero(t, snap.Products[1].CategoryID)
}

func TestLoadSnapshot_NoAddonsSkipsQuery(t *testing.T) {
	catalog := defaultCatalogReader()
	_, err := LoadSnapshot(context.Background(), catalog, []CartLine{{Product: "Sundae", Quantity: 1}})
	require.NoError(t, err)
	assert.Zero(t, catalog.addonQueries)
}

func TestLoadSnapshot_StoreError(t *testing.T) {
	catalog := defaultCatalogReader()
	catalog.getProductByNameFn = func(ctx context.Context, name string) (database.GetProductForOrderRow, error) {
		return database.GetProductForOrderRow{}, errors.New("connection reset")
	}
	_, err := LoadSnapshot(context.Background(), catalog, []CartLine{{Product: "Sundae", Quantity: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item[0]: get product")
}

func TestPrice(t *testing.T) {
	catalog := defaultCatalogReader()
	items := []CartLine{
		{Product: "Sundae", Quantity: 2, Addons: []CartAddon{{Name: "Nuts", Quantity: 1}}},
		{Product: "Milkshake", Quantity: 1, Addons: []CartAddon{{Name: "Sprinkles", Quantity: 3}}},
	}
	snap, err := LoadSnapshot(context.Background(), catalog, items)
	require.NoError(t, err)

	q, err := Price(items, snap)
	require.NoError(t, err)
	// 2×10.00 + 2×1.50 + 12.50 + 3×0.75
	assert.Equal(t, "37.75", q.Total.StringFixed(2))
	require.Len(t, q.Lines, 2)
	assert.Equal(t, "23.00", q.Lines[0].Total.StringFixed(2))
	assert.Equal(t, int32(2), q.Lines[0].Addons[0].Quantity)
	assert.Equal(t, int64(20), q.Lines[0].Addons[0].AddonID)
	assert.Equal(t, int32(3), q.Lines[1].Addons[0].Quantity)
}

func TestPrice_MissingProduct(t *testing.T) {
	items := []CartLine{{Product: "Banana Split", Quantity: 1}}
	snap, err := LoadSnapshot(context.Background(), defaultCatalogReader(), items)
	require.NoError(t, err)

	_, err = Price(items, snap)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Contains(t, err.Error(), "Banana Split")
}

func TestPrice_MissingAddon(t *testing.T) {
	items := []CartLine{{Product: "Sundae", Quantity: 1, Addons: []CartAddon{{Name: "Caramelo", Quantity: 1}}}}
	snap, err := LoadSnapshot(context.Background(), defaultCatalogReader(), items)
	require.NoError(t, err)

	_, err = Price(items, snap)
	assert.ErrorIs(t, err, ErrAddonNotFound)
	assert.Contains(t, err.Error(), "item[0].addons[0]")
}

func TestPersistedTotal(t *testing.T) {
	items := []database.OrderItem{
		{Quantity: 2, UnitPrice: numeric("10.00")},
		{Quantity: 1, UnitPrice: numeric("12.50")},
	}
	addons := []database.OrderItemAddon{
		{Quantity: 2, UnitPrice: numeric("1.50")},
		{Quantity: 3, UnitPrice: numeric("0.75")},
	}
	assert.Equal(t, "37.75", PersistedTotal(items, addons).StringFixed(2))
	assert.True(t, PersistedTotal(nil, nil).IsZero())
}

func TestNumericConversions(t *testing.T) {
	assert.Equal(t, "1.50", numericToDecimal(decimalToNumeric(dec("1.5"))).StringFixed(2))
	assert.True(t, numericToDecimal(pgtype.Numeric{}).IsZero())
}
