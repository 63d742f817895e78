package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/tudbom/counter-api/internal/database"
	"github.com/tudbom/counter-api/internal/enum"
)

// maxQuantity caps a single line or add-on quantity.
const maxQuantity = 1000

// CatalogReader is the read side of the catalog needed to check and price
// a cart. Satisfied by *database.Queries.
type CatalogReader interface {
	GetProductForOrder(ctx context.Context, id int64) (database.GetProductForOrderRow, error)
	GetProductForOrderByName(ctx context.Context, name string) (database.GetProductForOrderRow, error)
	ListAddonsByNames(ctx context.Context, lowerNames []string) ([]database.Addon, error)
}

// CartLine is one product line of a cart. ProductID wins over Product when
// both are set.
type CartLine struct {
	ProductID int64
	Product   string
	Quantity  int32
	Addons    []CartAddon
}

// CartAddon is an add-on requested on a line, per unit of the line.
type CartAddon struct {
	Name     string
	Quantity int32
}

// label names the line in messages.
func (l CartLine) label() string {
	if l.Product != "" {
		return l.Product
	}
	return fmt.Sprintf("produto #%d", l.ProductID)
}

// validateCart checks the shape of every line without touching a store.
func validateCart(items []CartLine) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}
	for i, item := range items {
		if item.ProductID <= 0 && strings.TrimSpace(item.Product) == "" {
			return fmt.Errorf("item[%d]: %w", i, ErrMissingProduct)
		}
		if item.Quantity <= 0 || item.Quantity > maxQuantity {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		for j, a := range item.Addons {
			if strings.TrimSpace(a.Name) == "" {
				return fmt.Errorf("item[%d].addons[%d]: %w", i, j, ErrMissingAddonName)
			}
			if a.Quantity <= 0 || a.Quantity > maxQuantity {
				return fmt.Errorf("item[%d].addons[%d]: %w", i, j, ErrInvalidQuantity)
			}
		}
	}
	return nil
}

// validateCustomer trims the name and checks the fulfilment type.
func validateCustomer(name, fulfillment string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) < 2 {
		return "", ErrInvalidCustomerName
	}
	if !enum.IsFulfillmentType(fulfillment) {
		return "", ErrInvalidFulfillmentType
	}
	return name, nil
}

// VerifyResult is the outcome of an advisory stock check.
type VerifyResult struct {
	OK        bool
	Detail    string
	Shortages []Shortage
}

// StockVerifier checks a cart against current stock without writing.
type StockVerifier struct {
	catalog CatalogReader
}

func NewStockVerifier(catalog CatalogReader) *StockVerifier {
	return &StockVerifier{catalog: catalog}
}

// demand accumulates requested units per catalog id in first-seen order.
type demand struct {
	order []int64
	units map[int64]int64
	names map[int64]string
	stock map[int64]int64
}

func newDemand() *demand {
	return &demand{
		units: make(map[int64]int64),
		names: make(map[int64]string),
		stock: make(map[int64]int64),
	}
}

func (d *demand) add(id int64, name string, stock, units int64) {
	if _, ok := d.units[id]; !ok {
		d.order = append(d.order, id)
		d.names[id] = name
		d.stock[id] = stock
	}
	d.units[id] += units
}

func (d *demand) shortages() []Shortage {
	var out []Shortage
	for _, id := range d.order {
		if d.stock[id] < d.units[id] {
			out = append(out, Shortage{
				Item:      d.names[id],
				Available: d.stock[id],
				Requested: d.units[id],
			})
		}
	}
	return out
}

// Verify resolves every line and reports each product or add-on whose
// current stock cannot cover the cart's summed demand. Unknown products
// are reported and the scan continues; unknown add-ons are left to pricing.
// The result is advisory: the conditional decrement at commit is binding.
func (v *StockVerifier) Verify(ctx context.Context, items []CartLine) (VerifyResult, error) {
	var shortages []Shortage
	products := newDemand()

	for i, item := range items {
		p, err := resolveProduct(ctx, v.catalog, item)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				shortages = append(shortages, Shortage{Item: item.label(), Reason: ReasonProductNotFound})
				continue
			}
			return VerifyResult{}, fmt.Errorf("item[%d]: get product: %w", i, err)
		}
		products.add(p.ID, p.Name, int64(p.Stock), int64(item.Quantity))
	}
	shortages = append(shortages, products.shortages()...)

	addons, err := loadAddons(ctx, v.catalog, items)
	if err != nil {
		return VerifyResult{}, err
	}
	addonDemand := newDemand()
	for _, item := range items {
		for _, a := range item.Addons {
			found, ok := addons[strings.ToLower(strings.TrimSpace(a.Name))]
			if !ok {
				continue
			}
			addonDemand.add(found.ID, found.Name, int64(found.Stock), int64(a.Quantity)*int64(item.Quantity))
		}
	}
	shortages = append(shortages, addonDemand.shortages()...)

	if len(shortages) == 0 {
		return VerifyResult{OK: true}, nil
	}
	return VerifyResult{
		OK:        false,
		Detail:    joinShortages(shortages),
		Shortages: shortages,
	}, nil
}

// resolveProduct looks a line's product up by id, or by case-insensitive
// name when no id was given.
func resolveProduct(ctx context.Context, catalog CatalogReader, item CartLine) (database.GetProductForOrderRow, error) {
	if item.ProductID > 0 {
		return catalog.GetProductForOrder(ctx, item.ProductID)
	}
	return catalog.GetProductForOrderByName(ctx, strings.TrimSpace(item.Product))
}

// loadAddons fetches every distinct add-on named in the cart with one query.
// Keys are lowercased names; duplicate names resolve to the oldest add-on.
func loadAddons(ctx context.Context, catalog CatalogReader, items []CartLine) (map[string]database.Addon, error) {
	seen := make(map[string]bool)
	var names []string
	for _, item := range items {
		for _, a := range item.Addons {
			key := strings.ToLower(strings.TrimSpace(a.Name))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			names = append(names, key)
		}
	}

	out := make(map[string]database.Addon, len(names))
	if len(names) == 0 {
		return out, nil
	}
	rows, err := catalog.ListAddonsByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("list add-ons: %w", err)
	}
	for _, row := range rows {
		key := strings.ToLower(row.Name)
		if _, dup := out[key]; !dup {
			out[key] = row
		}
	}
	return out, nil
}

// clampQuantity converts summed demand to the decrement parameter type.
// Demand past the column range can never be covered, so it saturates.
func clampQuantity(n int64) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(n)
}
