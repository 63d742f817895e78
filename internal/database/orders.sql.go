package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (customer_name, fulfillment_type, total_value, status, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, customer_name, fulfillment_type, total_value, status, created_at
`

type CreateOrderParams struct {
	CustomerName    string         `json:"customer_name"`
	FulfillmentType string         `json:"fulfillment_type"`
	TotalValue      pgtype.Numeric `json:"total_value"`
	Status          string         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.CustomerName,
		arg.FulfillmentType,
		arg.TotalValue,
		arg.Status,
		arg.CreatedAt,
	)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.CustomerName,
		&i.FulfillmentType,
		&i.TotalValue,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, product_name, quantity, unit_price)
VALUES ($1, $2, $3, $4)
RETURNING id, order_id, product_name, quantity, unit_price
`

type CreateOrderItemParams struct {
	OrderID     int64          `json:"order_id"`
	ProductName string         `json:"product_name"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductName,
		arg.Quantity,
		arg.UnitPrice,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductName,
		&i.Quantity,
		&i.UnitPrice,
	)
	return i, err
}

const createOrderItemAddon = `-- name: CreateOrderItemAddon :one
INSERT INTO order_item_addons (order_item_id, addon_name, quantity, unit_price)
VALUES ($1, $2, $3, $4)
RETURNING id, order_item_id, addon_name, quantity, unit_price
`

type CreateOrderItemAddonParams struct {
	OrderItemID int64          `json:"order_item_id"`
	AddonName   string         `json:"addon_name"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
}

func (q *Queries) CreateOrderItemAddon(ctx context.Context, arg CreateOrderItemAddonParams) (OrderItemAddon, error) {
	row := q.db.QueryRow(ctx, createOrderItemAddon,
		arg.OrderItemID,
		arg.AddonName,
		arg.Quantity,
		arg.UnitPrice,
	)
	var i OrderItemAddon
	err := row.Scan(
		&i.ID,
		&i.OrderItemID,
		&i.AddonName,
		&i.Quantity,
		&i.UnitPrice,
	)
	return i, err
}

const getOrder = `-- name: GetOrder :one
SELECT id, customer_name, fulfillment_type, total_value, status, created_at
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrder(ctx context.Context, id int64) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, id)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.CustomerName,
		&i.FulfillmentType,
		&i.TotalValue,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}

const listOrdersByStatus = `-- name: ListOrdersByStatus :many
SELECT id, customer_name, fulfillment_type, total_value, status, created_at
FROM orders
WHERE status = ANY($1::text[])
ORDER BY id ASC
LIMIT $2 OFFSET $3
`

type ListOrdersByStatusParams struct {
	Statuses []string `json:"statuses"`
	Limit    int32    `json:"limit"`
	Offset   int32    `json:"offset"`
}

func (q *Queries) ListOrdersByStatus(ctx context.Context, arg ListOrdersByStatusParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByStatus, arg.Statuses, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		var i Order
		if err := rows.Scan(
			&i.ID,
			&i.CustomerName,
			&i.FulfillmentType,
			&i.TotalValue,
			&i.Status,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemsByOrders = `-- name: ListOrderItemsByOrders :many
SELECT id, order_id, product_name, quantity, unit_price
FROM order_items
WHERE order_id = ANY($1::bigint[])
ORDER BY order_id, id
`

func (q *Queries) ListOrderItemsByOrders(ctx context.Context, orderIDs []int64) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrders, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductName,
			&i.Quantity,
			&i.UnitPrice,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemAddonsByItems = `-- name: ListOrderItemAddonsByItems :many
SELECT id, order_item_id, addon_name, quantity, unit_price
FROM order_item_addons
WHERE order_item_id = ANY($1::bigint[])
ORDER BY order_item_id, id
`

func (q *Queries) ListOrderItemAddonsByItems(ctx context.Context, itemIDs []int64) ([]OrderItemAddon, error) {
	rows, err := q.db.Query(ctx, listOrderItemAddonsByItems, itemIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItemAddon{}
	for rows.Next() {
		var i OrderItemAddon
		if err := rows.Scan(
			&i.ID,
			&i.OrderItemID,
			&i.AddonName,
			&i.Quantity,
			&i.UnitPrice,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2
WHERE id = $1
RETURNING id, customer_name, fulfillment_type, total_value, status, created_at
`

type UpdateOrderStatusParams struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status)
	var i Order
	err := row.Scan(
		&i.ID,
		&i.CustomerName,
		&i.FulfillmentType,
		&i.TotalValue,
		&i.Status,
		&i.CreatedAt,
	)
	return i, err
}
