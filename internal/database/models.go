package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
	Image      pgtype.Text    `json:"image"`
	CategoryID pgtype.Int8    `json:"category_id"`
	Stock      int32          `json:"stock"`
}

type Addon struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	Price      pgtype.Numeric `json:"price"`
	CategoryID pgtype.Int8    `json:"category_id"`
	Stock      int32          `json:"stock"`
}

type AppliedStockMovement struct {
	ID        uuid.UUID `json:"id"`
	AppliedAt time.Time `json:"applied_at"`
}

type Order struct {
	ID              int64          `json:"id"`
	CustomerName    string         `json:"customer_name"`
	FulfillmentType string         `json:"fulfillment_type"`
	TotalValue      pgtype.Numeric `json:"total_value"`
	Status          string         `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
}

type OrderItem struct {
	ID          int64          `json:"id"`
	OrderID     int64          `json:"order_id"`
	ProductName string         `json:"product_name"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
}

type OrderItemAddon struct {
	ID          int64          `json:"id"`
	OrderItemID int64          `json:"order_item_id"`
	AddonName   string         `json:"addon_name"`
	Quantity    int32          `json:"quantity"`
	UnitPrice   pgtype.Numeric `json:"unit_price"`
}

type AddonSale struct {
	ID         int64          `json:"id"`
	OrderID    int64          `json:"order_id"`
	Category   string         `json:"category"`
	AddonName  string         `json:"addon_name"`
	Quantity   int32          `json:"quantity"`
	UnitPrice  pgtype.Numeric `json:"unit_price"`
	TotalValue pgtype.Numeric `json:"total_value"`
	SaleDate   pgtype.Date    `json:"sale_date"`
	SaleTime   pgtype.Time    `json:"sale_time"`
}

type StockMovement struct {
	ID        uuid.UUID `json:"id"`
	OrderID   int64     `json:"order_id"`
	Payload   []byte    `json:"payload"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
