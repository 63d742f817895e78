package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tudbom/counter-api/internal/database"
	"github.com/tudbom/counter-api/internal/enum"
	"github.com/tudbom/counter-api/internal/events"
)

const (
	defaultStoreTimeout = 10 * time.Second
	defaultLockTimeout  = 5 * time.Second
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CatalogStore defines the catalog methods needed to take an order.
// Satisfied by *database.Queries (and its WithTx variant).
type CatalogStore interface {
	CatalogReader
	DecrementProductStock(ctx context.Context, arg database.DecrementStockParams) (int32, error)
	DecrementAddonStock(ctx context.Context, arg database.DecrementStockParams) (int32, error)
	GetProductStock(ctx context.Context, id int64) (int32, error)
	GetAddonStock(ctx context.Context, id int64) (int32, error)
	CreateAppliedStockMovement(ctx context.Context, id uuid.UUID) error
	StockMovementApplied(ctx context.Context, id uuid.UUID) (bool, error)
	SetLockTimeout(ctx context.Context, timeout string) error
}

// OrderStore defines the order-side methods needed to persist an order.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemAddon(ctx context.Context, arg database.CreateOrderItemAddonParams) (database.OrderItemAddon, error)
	CreateAddonSale(ctx context.Context, arg database.CreateAddonSaleParams) (database.AddonSale, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) error
	UpdateStockMovementStatus(ctx context.Context, arg database.UpdateStockMovementStatusParams) error
	SetLockTimeout(ctx context.Context, timeout string) error
}

// NewCatalogStore creates a CatalogStore from a DBTX (pool or tx).
type NewCatalogStore func(db database.DBTX) CatalogStore

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// SubmitOrderRequest is a customer's cart.
type SubmitOrderRequest struct {
	CustomerName    string
	FulfillmentType string
	Items           []CartLine
}

// OrderReceipt is returned once an order is committed.
type OrderReceipt struct {
	OrderID int64
	Total   decimal.Decimal
}

// OrderServiceConfig tunes an OrderService. Zero values take defaults.
type OrderServiceConfig struct {
	// StoreTimeout bounds a whole submission, stock check included.
	StoreTimeout time.Duration
	// LockTimeout bounds each row-lock wait inside the transaction.
	LockTimeout time.Duration
	Publisher   events.Publisher
	Now         func() time.Time
}

// OrderService takes orders: it checks stock, prices the cart, persists the
// order and decrements stock as one unit.
type OrderService struct {
	orderDB    TxBeginner
	newOrders  NewOrderStore
	catalogDB  TxBeginner
	newCatalog NewCatalogStore
	verifier   *StockVerifier

	storeTimeout time.Duration
	lockTimeout  time.Duration
	publisher    events.Publisher
	now          func() time.Time
}

// NewOrderService creates an OrderService. A nil catalogDB means the catalog
// shares the order database, and one transaction covers both stores.
func NewOrderService(
	orderDB TxBeginner,
	newOrders NewOrderStore,
	catalogDB TxBeginner,
	newCatalog NewCatalogStore,
	verifier *StockVerifier,
	cfg OrderServiceConfig,
) *OrderService {
	s := &OrderService{
		orderDB:      orderDB,
		newOrders:    newOrders,
		catalogDB:    catalogDB,
		newCatalog:   newCatalog,
		verifier:     verifier,
		storeTimeout: cfg.StoreTimeout,
		lockTimeout:  cfg.LockTimeout,
		publisher:    cfg.Publisher,
		now:          cfg.Now,
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = defaultStoreTimeout
	}
	if s.lockTimeout <= 0 {
		s.lockTimeout = defaultLockTimeout
	}
	if s.publisher == nil {
		s.publisher = events.Discard
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *OrderService) split() bool {
	return s.catalogDB != nil
}

// Submit validates the cart, checks stock, and commits the order. Stock
// shortages found at any point return *InsufficientStockError and leave
// both stores untouched.
func (s *OrderService) Submit(ctx context.Context, req SubmitOrderRequest) (*OrderReceipt, error) {
	customer, err := validateCustomer(req.CustomerName, req.FulfillmentType)
	if err != nil {
		return nil, err
	}
	if err := validateCart(req.Items); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	check, err := s.verifier.Verify(ctx, req.Items)
	if err != nil {
		return nil, classifyStoreError(fmt.Errorf("verify stock: %w", err))
	}
	if !check.OK {
		return nil, &InsufficientStockError{Shortages: check.Shortages}
	}

	view, err := s.submitTx(ctx, customer, req)
	if err != nil {
		return nil, classifyStoreError(err)
	}

	publishOrder(ctx, s.publisher, enum.EventOrderCreated, view, view.Order.CreatedAt)

	return &OrderReceipt{
		OrderID: view.Order.ID,
		Total:   numericToDecimal(view.Order.TotalValue),
	}, nil
}

// submitTx runs the write protocol. Every early return rolls back all open
// transactions through the deferred Rollback calls.
func (s *OrderService) submitTx(ctx context.Context, customer string, req SubmitOrderRequest) (*OrderView, error) {
	// --- Begin transaction(s) ---
	orderTx, err := s.orderDB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin order tx: %w", err)
	}
	defer orderTx.Rollback(ctx) //nolint:errcheck

	catalogTx := orderTx
	if s.split() {
		catalogTx, err = s.catalogDB.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin catalog tx: %w", err)
		}
		defer catalogTx.Rollback(ctx) //nolint:errcheck
	}

	orders := s.newOrders(orderTx)
	catalog := s.newCatalog(catalogTx)

	lockTimeout := fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())
	if err := catalog.SetLockTimeout(ctx, lockTimeout); err != nil {
		return nil, fmt.Errorf("set lock timeout: %w", err)
	}
	if s.split() {
		if err := orders.SetLockTimeout(ctx, lockTimeout); err != nil {
			return nil, fmt.Errorf("set lock timeout: %w", err)
		}
	}

	// --- Price against the transaction's view of the catalog ---
	snap, err := LoadSnapshot(ctx, catalog, req.Items)
	if err != nil {
		return nil, err
	}
	quote, err := Price(req.Items, snap)
	if err != nil {
		return nil, err
	}

	// --- Insert order ---
	now := s.now()
	order, err := orders.CreateOrder(ctx, database.CreateOrderParams{
		CustomerName:    customer,
		FulfillmentType: req.FulfillmentType,
		TotalValue:      decimalToNumeric(quote.Total),
		Status:          enum.OrderStatusReceived,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Insert items and add-ons ---
	view := &OrderView{Order: order, Items: make([]OrderItemView, 0, len(quote.Lines))}
	var (
		persistedItems  []database.OrderItem
		persistedAddons []database.OrderItemAddon
	)
	sales := newSalesAccumulator()
	productUnits := newDemand()
	addonUnits := newDemand()

	for i, line := range quote.Lines {
		item, err := orders.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:     order.ID,
			ProductName: line.Product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   decimalToNumeric(line.Product.Price),
		})
		if err != nil {
			return nil, fmt.Errorf("item[%d]: create order item: %w", i, err)
		}
		persistedItems = append(persistedItems, item)
		productUnits.add(line.Product.ID, line.Product.Name, 0, int64(line.Quantity))

		iv := OrderItemView{Item: item}
		for j, a := range line.Addons {
			row, err := orders.CreateOrderItemAddon(ctx, database.CreateOrderItemAddonParams{
				OrderItemID: item.ID,
				AddonName:   a.Name,
				Quantity:    a.Quantity,
				UnitPrice:   decimalToNumeric(a.UnitPrice),
			})
			if err != nil {
				return nil, fmt.Errorf("item[%d].addons[%d]: create order item add-on: %w", i, j, err)
			}
			persistedAddons = append(persistedAddons, row)
			iv.Addons = append(iv.Addons, row)
			sales.add(line.Product, a)
			addonUnits.add(a.AddonID, a.Name, 0, int64(a.Quantity))
		}
		view.Items = append(view.Items, iv)
	}

	// --- Aggregate add-on sales per product category ---
	saleDate, saleTime := splitInstant(now)
	saleLines, err := sales.lines()
	if err != nil {
		return nil, err
	}
	for _, sale := range saleLines {
		if _, err := orders.CreateAddonSale(ctx, database.CreateAddonSaleParams{
			OrderID:    order.ID,
			Category:   sale.category,
			AddonName:  sale.addon,
			Quantity:   int32(sale.quantity),
			UnitPrice:  decimalToNumeric(sale.unitPrice),
			TotalValue: decimalToNumeric(sale.unitPrice.Mul(decimal.NewFromInt(sale.quantity))),
			SaleDate:   saleDate,
			SaleTime:   saleTime,
		}); err != nil {
			return nil, fmt.Errorf("create add-on sale: %w", err)
		}
	}

	// --- Decrement stock ---
	movement := newStockMovement(order.ID, productUnits, addonUnits)
	shortages, err := applyStockMovement(ctx, catalog, movement)
	if err != nil {
		return nil, err
	}
	if len(shortages) > 0 {
		return nil, &InsufficientStockError{Shortages: shortages}
	}

	// --- Consistency guard ---
	if persisted := PersistedTotal(persistedItems, persistedAddons); !persisted.Equal(quote.Total) {
		return nil, fmt.Errorf("persisted total %s does not match quoted total %s",
			persisted.StringFixed(2), quote.Total.StringFixed(2))
	}

	// --- Commit ---
	if !s.split() {
		if err := orderTx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit tx: %w", err)
		}
		return view, nil
	}

	movementID := uuid.New()
	payload, err := json.Marshal(movement)
	if err != nil {
		return nil, fmt.Errorf("encode stock movement: %w", err)
	}
	if err := orders.CreateStockMovement(ctx, database.CreateStockMovementParams{
		ID:      movementID,
		OrderID: order.ID,
		Payload: payload,
	}); err != nil {
		return nil, fmt.Errorf("create stock movement: %w", err)
	}
	if err := catalog.CreateAppliedStockMovement(ctx, movementID); err != nil {
		return nil, fmt.Errorf("create applied stock movement: %w", err)
	}

	if err := orderTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit order tx: %w", err)
	}
	// The order row is durable from here on. A failed catalog commit leaves
	// the movement pending for the reconciler and the caller gets an error.
	if err := catalogTx.Commit(ctx); err != nil {
		log.Error().Err(err).
			Int64("order_id", order.ID).
			Str("movement_id", movementID.String()).
			Msg("Catalog commit failed after order commit, stock movement left pending")
		return nil, fmt.Errorf("%w: order %d: commit catalog tx: %w", ErrStockNotSettled, order.ID, err)
	}
	s.markMovementApplied(ctx, movementID)
	return view, nil
}

func (s *OrderService) markMovementApplied(ctx context.Context, id uuid.UUID) {
	err := func() error {
		tx, err := s.orderDB.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx) //nolint:errcheck
		if err := s.newOrders(tx).UpdateStockMovementStatus(ctx, database.UpdateStockMovementStatusParams{
			ID:     id,
			Status: enum.StockMovementApplied,
		}); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}()
	if err != nil {
		log.Warn().Err(err).Str("movement_id", id.String()).Msg("Could not mark stock movement applied")
	}
}

// --- Add-on sales aggregation ---

type salesKey struct {
	categoryID int64
	addonID    int64
}

type saleLine struct {
	category  string
	addon     string
	quantity  int64
	unitPrice decimal.Decimal
}

// salesAccumulator sums add-on units per (product category, add-on) in
// first-seen order. The unit price is taken from the first occurrence.
type salesAccumulator struct {
	keys  []salesKey
	sales map[salesKey]*saleLine
}

func newSalesAccumulator() *salesAccumulator {
	return &salesAccumulator{sales: make(map[salesKey]*saleLine)}
}

func (a *salesAccumulator) add(product ResolvedProduct, addon AddonQuote) {
	key := salesKey{categoryID: product.CategoryID, addonID: addon.AddonID}
	if line, ok := a.sales[key]; ok {
		line.quantity += int64(addon.Quantity)
		return
	}
	a.keys = append(a.keys, key)
	a.sales[key] = &saleLine{
		category:  product.Category,
		addon:     addon.Name,
		quantity:  int64(addon.Quantity),
		unitPrice: addon.UnitPrice,
	}
}

// lines returns the sums in first-seen order. A sum that does not fit the
// quantity column rejects the cart.
func (a *salesAccumulator) lines() ([]saleLine, error) {
	out := make([]saleLine, len(a.keys))
	for i, k := range a.keys {
		line := *a.sales[k]
		if line.quantity > math.MaxInt32 {
			return nil, fmt.Errorf("add-on %s: %d units: %w", line.addon, line.quantity, ErrInvalidQuantity)
		}
		out[i] = line
	}
	return out, nil
}

// splitInstant returns the calendar date and wall-clock time of t, as seen
// in t's own location.
func splitInstant(t time.Time) (pgtype.Date, pgtype.Time) {
	y, m, d := t.Date()
	date := pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
	micros := int64(t.Hour())*3600_000_000 +
		int64(t.Minute())*60_000_000 +
		int64(t.Second())*1_000_000 +
		int64(t.Nanosecond()/1000)
	return date, pgtype.Time{Microseconds: micros, Valid: true}
}

// --- Stock movements ---

// stockMovement is the set of decrements one order needs, in ascending id
// order per table. It is also the outbox payload in split mode.
type stockMovement struct {
	OrderID  int64          `json:"order_id"`
	Products []movementLine `json:"products"`
	Addons   []movementLine `json:"addons"`
}

type movementLine struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

func newStockMovement(orderID int64, products, addons *demand) stockMovement {
	return stockMovement{
		OrderID:  orderID,
		Products: products.sortedLines(),
		Addons:   addons.sortedLines(),
	}
}

func (d *demand) sortedLines() []movementLine {
	out := make([]movementLine, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, movementLine{ID: id, Name: d.names[id], Quantity: d.units[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// applyStockMovement runs the conditional decrements, products first, each
// table in ascending id order so concurrent orders lock rows in the same
// sequence. It keeps going after a miss so every shortage is reported.
func applyStockMovement(ctx context.Context, catalog CatalogStore, mv stockMovement) ([]Shortage, error) {
	var shortages []Shortage

	for _, line := range mv.Products {
		_, err := catalog.DecrementProductStock(ctx, database.DecrementStockParams{
			ID:       line.ID,
			Quantity: clampQuantity(line.Quantity),
		})
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("decrement product %d: %w", line.ID, err)
		}
		stock, err := catalog.GetProductStock(ctx, line.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				shortages = append(shortages, Shortage{Item: line.Name, Reason: ReasonProductNotFound})
				continue
			}
			return nil, fmt.Errorf("get product %d stock: %w", line.ID, err)
		}
		shortages = append(shortages, Shortage{Item: line.Name, Available: int64(stock), Requested: line.Quantity})
	}

	for _, line := range mv.Addons {
		_, err := catalog.DecrementAddonStock(ctx, database.DecrementStockParams{
			ID:       line.ID,
			Quantity: clampQuantity(line.Quantity),
		})
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("decrement add-on %d: %w", line.ID, err)
		}
		stock, err := catalog.GetAddonStock(ctx, line.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				shortages = append(shortages, Shortage{Item: line.Name, Reason: ReasonAddonNotFound})
				continue
			}
			return nil, fmt.Errorf("get add-on %d stock: %w", line.ID, err)
		}
		shortages = append(shortages, Shortage{Item: line.Name, Available: int64(stock), Requested: line.Quantity})
	}

	return shortages, nil
}
