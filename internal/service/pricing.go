package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/tudbom/counter-api/internal/database"
	"github.com/tudbom/counter-api/internal/enum"
)

// ResolvedProduct is a catalog product as seen by one pricing pass.
// CategoryID is zero for uncategorised products.
type ResolvedProduct struct {
	ID         int64
	Name       string
	Price      decimal.Decimal
	CategoryID int64
	Category   string
}

// Snapshot holds the catalog rows a cart refers to. Products is indexed
// like the cart; a nil entry means the line's product was not found.
type Snapshot struct {
	Products []*ResolvedProduct
	Addons   map[string]database.Addon
}

// LoadSnapshot resolves every line's product and, in a single query, every
// distinct add-on name of the cart.
func LoadSnapshot(ctx context.Context, catalog CatalogReader, items []CartLine) (Snapshot, error) {
	snap := Snapshot{Products: make([]*ResolvedProduct, len(items))}
	for i, item := range items {
		row, err := resolveProduct(ctx, catalog, item)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue
			}
			return Snapshot{}, fmt.Errorf("item[%d]: get product: %w", i, err)
		}
		p := &ResolvedProduct{
			ID:       row.ID,
			Name:     row.Name,
			Price:    numericToDecimal(row.Price),
			Category: enum.CategoryUncategorized,
		}
		if row.CategoryID.Valid {
			p.CategoryID = row.CategoryID.Int64
		}
		if row.CategoryName.Valid && row.CategoryName.String != "" {
			p.Category = row.CategoryName.String
		}
		snap.Products[i] = p
	}

	addons, err := loadAddons(ctx, catalog, items)
	if err != nil {
		return Snapshot{}, err
	}
	snap.Addons = addons
	return snap, nil
}

// AddonQuote is one priced add-on of a line. Quantity is already
// multiplied by the line quantity.
type AddonQuote struct {
	AddonID   int64
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int32
}

// LineQuote is one priced cart line.
type LineQuote struct {
	Product  ResolvedProduct
	Quantity int32
	Addons   []AddonQuote
	Total    decimal.Decimal
}

// Quote is the priced cart.
type Quote struct {
	Total decimal.Decimal
	Lines []LineQuote
}

// Price computes the cart total from a snapshot:
// Σ product.price × qty + Σ addon.price × addon_qty × qty.
func Price(items []CartLine, snap Snapshot) (Quote, error) {
	if len(snap.Products) != len(items) {
		return Quote{}, fmt.Errorf("snapshot covers %d lines, cart has %d", len(snap.Products), len(items))
	}

	q := Quote{Total: decimal.Zero, Lines: make([]LineQuote, 0, len(items))}
	for i, item := range items {
		p := snap.Products[i]
		if p == nil {
			return Quote{}, fmt.Errorf("item[%d]: %w: %s", i, ErrProductNotFound, item.label())
		}
		qty := decimal.NewFromInt32(item.Quantity)
		line := LineQuote{
			Product:  *p,
			Quantity: item.Quantity,
			Total:    p.Price.Mul(qty),
		}
		for j, a := range item.Addons {
			found, ok := snap.Addons[strings.ToLower(strings.TrimSpace(a.Name))]
			if !ok {
				return Quote{}, fmt.Errorf("item[%d].addons[%d]: %w: %s", i, j, ErrAddonNotFound, a.Name)
			}
			unit := numericToDecimal(found.Price)
			units := a.Quantity * item.Quantity
			line.Addons = append(line.Addons, AddonQuote{
				AddonID:   found.ID,
				Name:      found.Name,
				UnitPrice: unit,
				Quantity:  units,
			})
			line.Total = line.Total.Add(unit.Mul(decimal.NewFromInt32(units)))
		}
		q.Total = q.Total.Add(line.Total)
		q.Lines = append(q.Lines, line)
	}
	return q, nil
}

// PersistedTotal re-prices an order from its stored line and add-on
// snapshots.
func PersistedTotal(items []database.OrderItem, addons []database.OrderItemAddon) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(numericToDecimal(it.UnitPrice).Mul(decimal.NewFromInt32(it.Quantity)))
	}
	for _, a := range addons {
		total = total.Add(numericToDecimal(a.UnitPrice).Mul(decimal.NewFromInt32(a.Quantity)))
	}
	return total
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	s, ok := val.(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
