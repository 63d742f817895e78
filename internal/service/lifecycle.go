package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/tudbom/counter-api/internal/database"
	"github.com/tudbom/counter-api/internal/enum"
	"github.com/tudbom/counter-api/internal/events"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// LifecycleStore defines the DB methods needed to read and move orders.
// Satisfied by *database.Queries.
type LifecycleStore interface {
	GetOrder(ctx context.Context, id int64) (database.Order, error)
	ListOrdersByStatus(ctx context.Context, arg database.ListOrdersByStatusParams) ([]database.Order, error)
	ListOrderItemsByOrders(ctx context.Context, orderIDs []int64) ([]database.OrderItem, error)
	ListOrderItemAddonsByItems(ctx context.Context, itemIDs []int64) ([]database.OrderItemAddon, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

// OrderView is an order with its items and their add-ons.
type OrderView struct {
	Order database.Order
	Items []OrderItemView
}

// OrderItemView is an item with its add-ons.
type OrderItemView struct {
	Item   database.OrderItem
	Addons []database.OrderItemAddon
}

// OrderPayload is the wire shape of an order, shared by HTTP responses,
// the realtime board and the broker.
type OrderPayload struct {
	ID              int64              `json:"id"`
	CustomerName    string             `json:"customer_name,omitempty"`
	FulfillmentType string             `json:"fulfillment_type"`
	Total           json.Number        `json:"total"`
	Status          string             `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	Items           []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	Product   string         `json:"product"`
	Quantity  int32          `json:"quantity"`
	UnitPrice json.Number    `json:"unit_price"`
	Addons    []AddonPayload `json:"addons"`
}

type AddonPayload struct {
	Name      string      `json:"name"`
	Quantity  int32       `json:"quantity"`
	UnitPrice json.Number `json:"unit_price"`
}

// Payload projects the view for the wire. The public projection drops the
// customer name for display on shared screens.
func (v OrderView) Payload(public bool) OrderPayload {
	p := OrderPayload{
		ID:              v.Order.ID,
		FulfillmentType: v.Order.FulfillmentType,
		Total:           money(numericToDecimal(v.Order.TotalValue)),
		Status:          v.Order.Status,
		CreatedAt:       v.Order.CreatedAt,
		Items:           make([]OrderItemPayload, 0, len(v.Items)),
	}
	if !public {
		p.CustomerName = v.Order.CustomerName
	}
	for _, it := range v.Items {
		ip := OrderItemPayload{
			Product:   it.Item.ProductName,
			Quantity:  it.Item.Quantity,
			UnitPrice: money(numericToDecimal(it.Item.UnitPrice)),
			Addons:    make([]AddonPayload, 0, len(it.Addons)),
		}
		for _, a := range it.Addons {
			ip.Addons = append(ip.Addons, AddonPayload{
				Name:      a.AddonName,
				Quantity:  a.Quantity,
				UnitPrice: money(numericToDecimal(a.UnitPrice)),
			})
		}
		p.Items = append(p.Items, ip)
	}
	return p
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// ListOrdersRequest filters the order board.
type ListOrdersRequest struct {
	Statuses []string
	Public   bool
	Limit    int32
	Offset   int32
}

// LifecycleService moves orders through their statuses and lists them.
type LifecycleService struct {
	store     LifecycleStore
	publisher events.Publisher
	now       func() time.Time
}

func NewLifecycleService(store LifecycleStore, publisher events.Publisher) *LifecycleService {
	if publisher == nil {
		publisher = events.Discard
	}
	return &LifecycleService{store: store, publisher: publisher, now: time.Now}
}

// SetStatus moves an order to any of the known statuses. Transitions are
// not ordered: staff may step an order back.
func (s *LifecycleService) SetStatus(ctx context.Context, id int64, status string) (*OrderView, error) {
	if !enum.IsOrderStatus(status) {
		return nil, ErrInvalidStatus
	}

	order, err := s.store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{ID: id, Status: status})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, classifyStoreError(fmt.Errorf("update order status: %w", err))
	}

	views, err := s.loadViews(ctx, []database.Order{order})
	if err != nil {
		return nil, err
	}
	view := &views[0]
	publishOrder(ctx, s.publisher, enum.EventOrderStatusChanged, view, s.now())
	return view, nil
}

// List returns orders in the requested statuses, ascending by id. Unknown
// statuses are dropped; with none left the board shows received orders.
func (s *LifecycleService) List(ctx context.Context, req ListOrdersRequest) ([]OrderView, error) {
	statuses := normalizeStatuses(req.Statuses)

	limit := req.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	orders, err := s.store.ListOrdersByStatus(ctx, database.ListOrdersByStatusParams{
		Statuses: statuses,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return nil, classifyStoreError(fmt.Errorf("list orders: %w", err))
	}
	return s.loadViews(ctx, orders)
}

// Get returns one order with its items.
func (s *LifecycleService) Get(ctx context.Context, id int64) (*OrderView, error) {
	order, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, classifyStoreError(fmt.Errorf("get order: %w", err))
	}
	views, err := s.loadViews(ctx, []database.Order{order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// loadViews attaches items and add-ons with one query each.
func (s *LifecycleService) loadViews(ctx context.Context, orders []database.Order) ([]OrderView, error) {
	views := make([]OrderView, len(orders))
	if len(orders) == 0 {
		return views, nil
	}

	orderIDs := make([]int64, len(orders))
	byOrder := make(map[int64]int, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
		byOrder[o.ID] = i
		views[i] = OrderView{Order: o, Items: []OrderItemView{}}
	}

	items, err := s.store.ListOrderItemsByOrders(ctx, orderIDs)
	if err != nil {
		return nil, classifyStoreError(fmt.Errorf("list order items: %w", err))
	}
	if len(items) == 0 {
		return views, nil
	}

	itemIDs := make([]int64, len(items))
	for i, it := range items {
		itemIDs[i] = it.ID
	}
	addons, err := s.store.ListOrderItemAddonsByItems(ctx, itemIDs)
	if err != nil {
		return nil, classifyStoreError(fmt.Errorf("list order item add-ons: %w", err))
	}
	addonsByItem := make(map[int64][]database.OrderItemAddon, len(items))
	for _, a := range addons {
		addonsByItem[a.OrderItemID] = append(addonsByItem[a.OrderItemID], a)
	}

	for _, it := range items {
		idx, ok := byOrder[it.OrderID]
		if !ok {
			continue
		}
		views[idx].Items = append(views[idx].Items, OrderItemView{
			Item:   it,
			Addons: addonsByItem[it.ID],
		})
	}
	return views, nil
}

func normalizeStatuses(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if enum.IsOrderStatus(s) && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{enum.OrderStatusReceived}
	}
	return out
}
