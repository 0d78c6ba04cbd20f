package models

import (
	"time"

	"github.com/google/uuid"
)

// Stock is the quantity on hand for a single product. There is exactly one
// row per product and quantity never goes below zero.
type Stock struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LowStockItem is one row of the low stock report
type LowStockItem struct {
	ProductID   uuid.UUID `json:"product_id" db:"product_id"`
	ProductName string    `json:"product_name" db:"product_name"`
	Quantity    int       `json:"quantity" db:"quantity"`
}
