package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getProductForOrder = `-- name: GetProductForOrder :one
SELECT p.id, p.name, p.price, p.stock, p.category_id, c.name AS category_name
FROM products p
LEFT JOIN categories c ON c.id = p.category_id
WHERE p.id = $1
`

type GetProductForOrderRow struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Price        pgtype.Numeric `json:"price"`
	Stock        int32          `json:"stock"`
	CategoryID   pgtype.Int8    `json:"category_id"`
	CategoryName pgtype.Text    `json:"category_name"`
}

func (q *Queries) GetProductForOrder(ctx context.Context, id int64) (GetProductForOrderRow, error) {
	row := q.db.QueryRow(ctx, getProductForOrder, id)
	var i GetProductForOrderRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Price,
		&i.Stock,
		&i.CategoryID,
		&i.CategoryName,
	)
	return i, err
}

const getProductForOrderByName = `-- name: GetProductForOrderByName :one
SELECT p.id, p.name, p.price, p.stock, p.category_id, c.name AS category_name
FROM products p
LEFT JOIN categories c ON c.id = p.category_id
WHERE LOWER(p.name) = LOWER($1)
ORDER BY p.id
LIMIT 1
`

// GetProductForOrderByName matches case-insensitively. Duplicate names
// resolve to the oldest product.
func (q *Queries) GetProductForOrderByName(ctx context.Context, name string) (GetProductForOrderRow, error) {
	row := q.db.QueryRow(ctx, getProductForOrderByName, name)
	var i GetProductForOrderRow
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Price,
		&i.Stock,
		&i.CategoryID,
		&i.CategoryName,
	)
	return i, err
}

const listAddonsByNames = `-- name: ListAddonsByNames :many
SELECT id, name, price, category_id, stock
FROM addons
WHERE LOWER(name) = ANY($1::text[])
ORDER BY id
`

// ListAddonsByNames expects names already lowercased.
func (q *Queries) ListAddonsByNames(ctx context.Context, lowerNames []string) ([]Addon, error) {
	rows, err := q.db.Query(ctx, listAddonsByNames, lowerNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Addon{}
	for rows.Next() {
		var i Addon
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Price,
			&i.CategoryID,
			&i.Stock,
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

const decrementProductStock = `-- name: DecrementProductStock :one
UPDATE products
SET stock = stock - $2
WHERE id = $1 AND stock >= $2
RETURNING stock
`

type DecrementStockParams struct {
	ID       int64 `json:"id"`
	Quantity int32 `json:"quantity"`
}

// DecrementProductStock returns pgx.ErrNoRows when the product is gone or
// holds fewer than Quantity units.
func (q *Queries) DecrementProductStock(ctx context.Context, arg DecrementStockParams) (int32, error) {
	row := q.db.QueryRow(ctx, decrementProductStock, arg.ID, arg.Quantity)
	var stock int32
	err := row.Scan(&stock)
	return stock, err
}

const decrementAddonStock = `-- name: DecrementAddonStock :one
UPDATE addons
SET stock = stock - $2
WHERE id = $1 AND stock >= $2
RETURNING stock
`

// DecrementAddonStock returns pgx.ErrNoRows when the add-on is gone or
// holds fewer than Quantity units.
func (q *Queries) DecrementAddonStock(ctx context.Context, arg DecrementStockParams) (int32, error) {
	row := q.db.QueryRow(ctx, decrementAddonStock, arg.ID, arg.Quantity)
	var stock int32
	err := row.Scan(&stock)
	return stock, err
}

const getProductStock = `-- name: GetProductStock :one
SELECT stock FROM products WHERE id = $1
`

func (q *Queries) GetProductStock(ctx context.Context, id int64) (int32, error) {
	row := q.db.QueryRow(ctx, getProductStock, id)
	var stock int32
	err := row.Scan(&stock)
	return stock, err
}

const getAddonStock = `-- name: GetAddonStock :one
SELECT stock FROM addons WHERE id = $1
`

func (q *Queries) GetAddonStock(ctx context.Context, id int64) (int32, error) {
	row := q.db.QueryRow(ctx, getAddonStock, id)
	var stock int32
	err := row.Scan(&stock)
	return stock, err
}

const listCategories = `-- name: ListCategories :many
SELECT id, name FROM categories ORDER BY id
`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Category{}
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listProducts = `-- name: ListProducts :many
SELECT id, name, price, image, category_id, stock
FROM products
ORDER BY category_id NULLS LAST, id
`

func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Product{}
	for rows.Next() {
		var i Product
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Price,
			&i.Image,
			&i.CategoryID,
			&i.Stock,
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

const listAddons = `-- name: ListAddons :many
SELECT id, name, price, category_id, stock
FROM addons
ORDER BY category_id NULLS LAST, id
`

func (q *Queries) ListAddons(ctx context.Context) ([]Addon, error) {
	rows, err := q.db.Query(ctx, listAddons)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Addon{}
	for rows.Next() {
		var i Addon
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Price,
			&i.CategoryID,
			&i.Stock,
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

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (name) VALUES ($1)
ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
RETURNING id, name
`

func (q *Queries) CreateCategory(ctx context.Context, name string) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory, name)
	var i Category
	err := row.Scan(&i.ID, &i.Name)
	return i, err
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (name, price, image, category_id, stock)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, name, price, image, category_id, stock
`

type CreateProductParams struct {
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
	Image      pgtype.Text    `json:"image"`
	CategoryID pgtype.Int8    `json:"category_id"`
	Stock      int32          `json:"stock"`
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.Name,
		arg.Price,
		arg.Image,
		arg.CategoryID,
		arg.Stock,
	)
	var i Product
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Price,
		&i.Image,
		&i.CategoryID,
		&i.Stock,
	)
	return i, err
}

const createAddon = `-- name: CreateAddon :one
INSERT INTO addons (name, price, category_id, stock)
VALUES ($1, $2, $3, $4)
RETURNING id, name, price, category_id, stock
`

type CreateAddonParams struct {
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
	CategoryID pgtype.Int8    `json:"category_id"`
	Stock      int32          `json:"stock"`
}

func (q *Queries) CreateAddon(ctx context.Context, arg CreateAddonParams) (Addon, error) {
	row := q.db.QueryRow(ctx, createAddon,
		arg.Name,
		arg.Price,
		arg.CategoryID,
		arg.Stock,
	)
	var i Addon
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Price,
		&i.CategoryID,
		&i.Stock,
	)
	return i, err
}

const createAppliedStockMovement = `-- name: CreateAppliedStockMovement :exec
INSERT INTO applied_stock_movements (id) VALUES ($1)
`

func (q *Queries) CreateAppliedStockMovement(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, createAppliedStockMovement, id)
	return err
}

const stockMovementApplied = `-- name: StockMovementApplied :one
SELECT EXISTS (SELECT 1 FROM applied_stock_movements WHERE id = $1)
`

func (q *Queries) StockMovementApplied(ctx context.Context, id uuid.UUID) (bool, error) {
	row := q.db.QueryRow(ctx, stockMovementApplied, id)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}
