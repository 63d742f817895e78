package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createAddonSale = `-- name: CreateAddonSale :one
INSERT INTO addon_sales (order_id, category, addon_name, quantity, unit_price, total_value, sale_date, sale_time)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, order_id, category, addon_name, quantity, unit_price, total_value, sale_date, sale_time
`

type CreateAddonSaleParams struct {
	OrderID    int64          `json:"order_id"`
	Category   string         `json:"category"`
	AddonName  string         `json:"addon_name"`
	Quantity   int32          `json:"quantity"`
	UnitPrice  pgtype.Numeric `json:"unit_price"`
	TotalValue pgtype.Numeric `json:"total_value"`
	SaleDate   pgtype.Date    `json:"sale_date"`
	SaleTime   pgtype.Time    `json:"sale_time"`
}

func (q *Queries) CreateAddonSale(ctx context.Context, arg CreateAddonSaleParams) (AddonSale, error) {
	row := q.db.QueryRow(ctx, createAddonSale,
		arg.OrderID,
		arg.Category,
		arg.AddonName,
		arg.Quantity,
		arg.UnitPrice,
		arg.TotalValue,
		arg.SaleDate,
		arg.SaleTime,
	)
	var i AddonSale
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.Category,
		&i.AddonName,
		&i.Quantity,
		&i.UnitPrice,
		&i.TotalValue,
		&i.SaleDate,
		&i.SaleTime,
	)
	return i, err
}

const listAddonSales = `-- name: ListAddonSales :many
SELECT id, order_id, category, addon_name, quantity, unit_price, total_value, sale_date, sale_time
FROM addon_sales
WHERE ($1::date IS NULL OR sale_date >= $1)
  AND ($2::date IS NULL OR sale_date <= $2)
  AND ($3::text IS NULL OR category = $3)
ORDER BY sale_date DESC, sale_time DESC, id DESC
`

type ListAddonSalesParams struct {
	StartDate pgtype.Date `json:"start_date"`
	EndDate   pgtype.Date `json:"end_date"`
	Category  pgtype.Text `json:"category"`
}

func (q *Queries) ListAddonSales(ctx context.Context, arg ListAddonSalesParams) ([]AddonSale, error) {
	rows, err := q.db.Query(ctx, listAddonSales, arg.StartDate, arg.EndDate, arg.Category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []AddonSale{}
	for rows.Next() {
		var i AddonSale
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.Category,
			&i.AddonName,
			&i.Quantity,
			&i.UnitPrice,
			&i.TotalValue,
			&i.SaleDate,
			&i.SaleTime,
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

const summarizeAddonSales = `-- name: SummarizeAddonSales :many
SELECT category, addon_name,
       SUM(quantity)::bigint AS quantity,
       SUM(total_value)::numeric(12,2) AS total_value
FROM addon_sales
WHERE ($1::date IS NULL OR sale_date >= $1)
  AND ($2::date IS NULL OR sale_date <= $2)
  AND ($3::text IS NULL OR category = $3)
GROUP BY category, addon_name
ORDER BY category, quantity DESC, addon_name
`

type SummarizeAddonSalesRow struct {
	Category   string         `json:"category"`
	AddonName  string         `json:"addon_name"`
	Quantity   int64          `json:"quantity"`
	TotalValue pgtype.Numeric `json:"total_value"`
}

func (q *Queries) SummarizeAddonSales(ctx context.Context, arg ListAddonSalesParams) ([]SummarizeAddonSalesRow, error) {
	rows, err := q.db.Query(ctx, summarizeAddonSales, arg.StartDate, arg.EndDate, arg.Category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []SummarizeAddonSalesRow{}
	for rows.Next() {
		var i SummarizeAddonSalesRow
		if err := rows.Scan(
			&i.Category,
			&i.AddonName,
			&i.Quantity,
			&i.TotalValue,
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
