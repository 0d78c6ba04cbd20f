package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is immutable once committed
type Order struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Amount    int64     `json:"amount" db:"amount"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PlacedOrder is the result of a successful purchase
type PlacedOrder struct {
	Order          *Order `json:"order"`
	RemainingStock int    `json:"remaining_stock"`
}

// OrderPlacedEvent is published after an order commits
type OrderPlacedEvent struct {
	EventID        string    `json:"event_id"`
	OrderID        uuid.UUID `json:"order_id"`
	UserID         uuid.UUID `json:"user_id"`
	ProductID      uuid.UUID `json:"product_id"`
	Quantity       int       `json:"quantity"`
	Amount         int64     `json:"amount"`
	RemainingStock int       `json:"remaining_stock"`
	Timestamp      time.Time `json:"timestamp"`
}
