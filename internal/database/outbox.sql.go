package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const createStockMovement = `-- name: CreateStockMovement :exec
INSERT INTO stock_movements (id, order_id, payload, status)
VALUES ($1, $2, $3, 'pending')
`

type CreateStockMovementParams struct {
	ID      uuid.UUID `json:"id"`
	OrderID int64     `json:"order_id"`
	Payload []byte    `json:"payload"`
}

func (q *Queries) CreateStockMovement(ctx context.Context, arg CreateStockMovementParams) error {
	_, err := q.db.Exec(ctx, createStockMovement, arg.ID, arg.OrderID, arg.Payload)
	return err
}

const listPendingStockMovements = `-- name: ListPendingStockMovements :many
SELECT id, order_id, payload, status, created_at, updated_at
FROM stock_movements
WHERE status = 'pending' AND created_at < $1
ORDER BY created_at
LIMIT $2
`

type ListPendingStockMovementsParams struct {
	CreatedBefore time.Time `json:"created_before"`
	Limit         int32     `json:"limit"`
}

func (q *Queries) ListPendingStockMovements(ctx context.Context, arg ListPendingStockMovementsParams) ([]StockMovement, error) {
	rows, err := q.db.Query(ctx, listPendingStockMovements, arg.CreatedBefore, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []StockMovement{}
	for rows.Next() {
		var i StockMovement
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.Payload,
			&i.Status,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const updateStockMovementStatus = `-- name: UpdateStockMovementStatus :exec
UPDATE stock_movements
SET status = $2, updated_at = now()
WHERE id = $1
`

type UpdateStockMovementStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateStockMovementStatus(ctx context.Context, arg UpdateStockMovementStatusParams) error {
	_, err := q.db.Exec(ctx, updateStockMovementStatus, arg.ID, arg.Status)
	return err
}
